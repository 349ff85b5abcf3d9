package storage

import (
	"context"
	"fmt"

	"moneymate/internal/models"

	"github.com/shopspring/decimal"
)

// TotalsByKind returns the summed income and expense amounts of userID.
// Both are zero when the user has no transactions of that kind.
func (db *DB) TotalsByKind(ctx context.Context, userID int64) (income, expense decimal.Decimal, err error) {
	rows, err := db.conn.QueryContext(ctx,
		"SELECT type, SUM(amount) FROM transactions WHERE user_id = ? GROUP BY type",
		userID,
	)
	if err != nil {
		return decimal.Zero, decimal.Zero, fmt.Errorf("totals by kind: %w", err)
	}
	defer rows.Close()

	income, expense = decimal.Zero, decimal.Zero
	for rows.Next() {
		var (
			kind  string
			total decimal.Decimal
		)
		if err := rows.Scan(&kind, &total); err != nil {
			return decimal.Zero, decimal.Zero, fmt.Errorf("totals by kind: %w", err)
		}
		switch models.Kind(kind) {
		case models.KindIncome:
			income = total
		case models.KindExpense:
			expense = total
		}
	}
	return income, expense, rows.Err()
}

// ExpenseByCategory returns summed expense amounts per category, largest first.
func (db *DB) ExpenseByCategory(ctx context.Context, userID int64) ([]models.LabelAmount, error) {
	return db.groupedExpenses(ctx, "expense by category", `
		SELECT category, SUM(amount) AS total
		FROM transactions
		WHERE user_id = ? AND type = 'expense'
		GROUP BY category
		ORDER BY total DESC, category
	`, userID)
}

// ExpenseByMonth returns summed expense amounts per YYYY-MM month, oldest first.
func (db *DB) ExpenseByMonth(ctx context.Context, userID int64) ([]models.LabelAmount, error) {
	return db.groupedExpenses(ctx, "expense by month", `
		SELECT substr(date, 1, 7) AS month, SUM(amount)
		FROM transactions
		WHERE user_id = ? AND type = 'expense'
		GROUP BY month
		ORDER BY month
	`, userID)
}

func (db *DB) groupedExpenses(ctx context.Context, op, query string, args ...any) ([]models.LabelAmount, error) {
	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	result := []models.LabelAmount{}
	for rows.Next() {
		var la models.LabelAmount
		if err := rows.Scan(&la.Label, &la.Amount); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, la)
	}
	return result, rows.Err()
}
