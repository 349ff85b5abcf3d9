package ledger

import (
	"context"

	"moneymate/internal/models"

	"github.com/shopspring/decimal"
)

// TotalIncome sums the income of userID.
func (s *Service) TotalIncome(ctx context.Context, userID int64) (decimal.Decimal, error) {
	income, _, err := s.db.TotalsByKind(ctx, userID)
	return income, err
}

// TotalExpense sums the expenses of userID.
func (s *Service) TotalExpense(ctx context.Context, userID int64) (decimal.Decimal, error) {
	_, expense, err := s.db.TotalsByKind(ctx, userID)
	return expense, err
}

// Balance is total income minus total expense.
func (s *Service) Balance(ctx context.Context, userID int64) (decimal.Decimal, error) {
	income, expense, err := s.db.TotalsByKind(ctx, userID)
	if err != nil {
		return decimal.Zero, err
	}
	return income.Sub(expense), nil
}

// ExpenseByCategory sums expenses per category.
func (s *Service) ExpenseByCategory(ctx context.Context, userID int64) ([]models.LabelAmount, error) {
	return s.db.ExpenseByCategory(ctx, userID)
}

// ExpenseByMonth sums expenses per YYYY-MM month.
func (s *Service) ExpenseByMonth(ctx context.Context, userID int64) ([]models.LabelAmount, error) {
	return s.db.ExpenseByMonth(ctx, userID)
}

// Summary computes every dashboard figure for userID. Nothing is cached.
func (s *Service) Summary(ctx context.Context, userID int64) (*models.Summary, error) {
	income, expense, err := s.db.TotalsByKind(ctx, userID)
	if err != nil {
		return nil, err
	}
	byCategory, err := s.db.ExpenseByCategory(ctx, userID)
	if err != nil {
		return nil, err
	}
	byMonth, err := s.db.ExpenseByMonth(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &models.Summary{
		TotalIncome:  income,
		TotalExpense: expense,
		Balance:      income.Sub(expense),
		ByCategory:   byCategory,
		ByMonth:      byMonth,
	}, nil
}
