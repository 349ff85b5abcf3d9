package storage

import (
	"context"
	"fmt"
	"time"

	"moneymate/internal/models"

	"github.com/shopspring/decimal"
)

const transactionColumns = "id, amount, category, COALESCE(description, ''), date, type, user_id"

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTransaction(row rowScanner) (*models.Transaction, error) {
	var (
		t    models.Transaction
		date string
		kind string
	)
	if err := row.Scan(&t.ID, &t.Amount, &t.Category, &t.Description, &date, &kind, &t.UserID); err != nil {
		return nil, err
	}
	d, err := time.Parse(models.DateLayout, date)
	if err != nil {
		return nil, fmt.Errorf("parse date %q of transaction %d: %w", date, t.ID, err)
	}
	t.Date = d
	t.Kind = models.Kind(kind)
	return &t, nil
}

// CreateTransaction inserts t and returns its new identifier. t.UserID must be set.
func (db *DB) CreateTransaction(ctx context.Context, t *models.Transaction) (int64, error) {
	result, err := db.conn.ExecContext(ctx,
		"INSERT INTO transactions (amount, category, description, date, type, user_id) VALUES (?, ?, ?, ?, ?, ?)",
		amountArg(t.Amount), t.Category, t.Description, t.Date.Format(models.DateLayout), string(t.Kind), t.UserID,
	)
	if err != nil {
		return 0, fmt.Errorf("create transaction: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("create transaction: %w", err)
	}
	return id, nil
}

// GetTransaction retrieves a single transaction owned by userID.
// Rows owned by other users are reported as models.ErrNotFound.
func (db *DB) GetTransaction(ctx context.Context, userID, id int64) (*models.Transaction, error) {
	row := db.conn.QueryRowContext(ctx,
		"SELECT "+transactionColumns+" FROM transactions WHERE id = ? AND user_id = ?",
		id, userID,
	)
	t, err := scanTransaction(row)
	if err != nil {
		return nil, notFound(err, "transaction %d", id)
	}
	return t, nil
}

// ListTransactions retrieves all transactions of userID, newest date first.
// Rows sharing a date are ordered by id descending.
func (db *DB) ListTransactions(ctx context.Context, userID int64) ([]models.Transaction, error) {
	rows, err := db.conn.QueryContext(ctx,
		"SELECT "+transactionColumns+" FROM transactions WHERE user_id = ? ORDER BY date DESC, id DESC",
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	var transactions []models.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("list transactions: %w", err)
		}
		transactions = append(transactions, *t)
	}
	return transactions, rows.Err()
}

// UpdateTransaction replaces every field of an existing transaction owned by t.UserID.
func (db *DB) UpdateTransaction(ctx context.Context, t *models.Transaction) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("update transaction: %w", err)
	}
	defer tx.Rollback()

	var exists bool
	err = tx.QueryRowContext(ctx,
		"SELECT EXISTS (SELECT 1 FROM transactions WHERE id = ? AND user_id = ?)",
		t.ID, t.UserID,
	).Scan(&exists)
	if err != nil {
		return fmt.Errorf("update transaction: %w", err)
	}
	if !exists {
		return fmt.Errorf("%w: transaction %d", models.ErrNotFound, t.ID)
	}

	_, err = tx.ExecContext(ctx,
		"UPDATE transactions SET amount = ?, category = ?, description = ?, date = ?, type = ? WHERE id = ? AND user_id = ?",
		amountArg(t.Amount), t.Category, t.Description, t.Date.Format(models.DateLayout), string(t.Kind), t.ID, t.UserID,
	)
	if err != nil {
		return fmt.Errorf("update transaction: %w", err)
	}
	return tx.Commit()
}

// DeleteTransaction removes a transaction owned by userID. Deleting a missing row is not an error.
func (db *DB) DeleteTransaction(ctx context.Context, userID, id int64) error {
	_, err := db.conn.ExecContext(ctx, "DELETE FROM transactions WHERE id = ? AND user_id = ?", id, userID)
	if err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}
	return nil
}

// ListCategories returns the distinct categories userID has used, alphabetically.
func (db *DB) ListCategories(ctx context.Context, userID int64) ([]string, error) {
	rows, err := db.conn.QueryContext(ctx,
		"SELECT DISTINCT category FROM transactions WHERE user_id = ? ORDER BY category",
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	var categories []string
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, fmt.Errorf("list categories: %w", err)
		}
		categories = append(categories, c)
	}
	return categories, rows.Err()
}

// amountArg binds amounts as REAL.
func amountArg(d decimal.Decimal) float64 {
	f, _ := d.Float64()
	return f
}
