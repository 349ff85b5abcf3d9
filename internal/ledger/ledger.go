// Package ledger implements user-scoped transaction CRUD and the dashboard summary.
package ledger

import (
	"context"
	"fmt"
	"strings"
	"time"

	applog "moneymate/internal/log"
	"moneymate/internal/models"
	"moneymate/internal/storage"

	"github.com/shopspring/decimal"
)

// Input holds raw form values for creating or replacing a transaction.
type Input struct {
	Amount      string
	Category    string
	Description string
	Date        string // YYYY-MM-DD
	Kind        string
}

// Parse validates in and converts it into a transaction owned by userID.
// Every failure wraps models.ErrValidation.
func (in Input) Parse(userID int64) (*models.Transaction, error) {
	kind := models.Kind(strings.ToLower(strings.TrimSpace(in.Kind)))
	if !kind.Valid() {
		return nil, fmt.Errorf("%w: type must be income or expense", models.ErrValidation)
	}

	amount, err := decimal.NewFromString(strings.TrimSpace(in.Amount))
	if err != nil {
		return nil, fmt.Errorf("%w: amount must be a number", models.ErrValidation)
	}

	category := strings.TrimSpace(in.Category)
	if category == "" {
		return nil, fmt.Errorf("%w: category is required", models.ErrValidation)
	}

	date, err := time.Parse(models.DateLayout, strings.TrimSpace(in.Date))
	if err != nil {
		return nil, fmt.Errorf("%w: date must be YYYY-MM-DD", models.ErrValidation)
	}

	return &models.Transaction{
		Amount:      amount,
		Category:    category,
		Description: strings.TrimSpace(in.Description),
		Date:        date,
		Kind:        kind,
		UserID:      userID,
	}, nil
}

// Service is the transaction repository and aggregation component.
type Service struct {
	db     *storage.DB
	logger *applog.Logger
}

// NewService creates a Service backed by db.
func NewService(db *storage.DB, logger *applog.Logger) *Service {
	return &Service{db: db, logger: logger.WithComponent(applog.ComponentLedger)}
}

// Create validates in and records a new transaction for userID.
func (s *Service) Create(ctx context.Context, userID int64, in Input) (int64, error) {
	t, err := in.Parse(userID)
	if err != nil {
		return 0, err
	}
	id, err := s.db.CreateTransaction(ctx, t)
	if err != nil {
		return 0, err
	}
	s.logger.DebugContext(ctx, "Transaction created",
		applog.FieldUserID, userID, applog.FieldTxID, id, applog.FieldOperation, applog.OpCreate)
	return id, nil
}

// Get returns a transaction of userID or models.ErrNotFound.
func (s *Service) Get(ctx context.Context, userID, id int64) (*models.Transaction, error) {
	return s.db.GetTransaction(ctx, userID, id)
}

// List returns every transaction of userID, newest first.
func (s *Service) List(ctx context.Context, userID int64) ([]models.Transaction, error) {
	return s.db.ListTransactions(ctx, userID)
}

// Update replaces all fields of transaction id. Transactions of other users are
// reported as models.ErrNotFound.
func (s *Service) Update(ctx context.Context, userID, id int64, in Input) error {
	t, err := in.Parse(userID)
	if err != nil {
		return err
	}
	t.ID = id
	if err := s.db.UpdateTransaction(ctx, t); err != nil {
		return err
	}
	s.logger.DebugContext(ctx, "Transaction updated",
		applog.FieldUserID, userID, applog.FieldTxID, id, applog.FieldOperation, applog.OpUpdate)
	return nil
}

// Delete removes transaction id if userID owns it. Missing rows are not an error.
func (s *Service) Delete(ctx context.Context, userID, id int64) error {
	if err := s.db.DeleteTransaction(ctx, userID, id); err != nil {
		return err
	}
	s.logger.DebugContext(ctx, "Transaction deleted",
		applog.FieldUserID, userID, applog.FieldTxID, id, applog.FieldOperation, applog.OpDelete)
	return nil
}

// Categories returns the categories userID has used so far.
func (s *Service) Categories(ctx context.Context, userID int64) ([]string, error) {
	return s.db.ListCategories(ctx, userID)
}
