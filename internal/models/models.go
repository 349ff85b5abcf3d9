package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// DateLayout is the storage and form format for transaction dates.
const DateLayout = "2006-01-02"

// Kind classifies a transaction as income or expense.
type Kind string

const (
	KindIncome  Kind = "income"
	KindExpense Kind = "expense"
)

// Valid reports whether k is one of the two known kinds.
func (k Kind) Valid() bool {
	return k == KindIncome || k == KindExpense
}

// Transaction represents a single recorded income or expense event.
type Transaction struct {
	ID          int64           `json:"id"`
	Amount      decimal.Decimal `json:"amount"`
	Category    string          `json:"category"`
	Description string          `json:"description"`
	Date        time.Time       `json:"date"`
	Kind        Kind            `json:"type"`
	UserID      int64           `json:"user_id"`
}

// IsIncome reports whether the transaction is income.
func (t Transaction) IsIncome() bool {
	return t.Kind == KindIncome
}

// User represents a user account.
type User struct {
	ID           int64     `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// Session represents a user session.
type Session struct {
	Token        string    `json:"token"`
	UserID       int64     `json:"user_id"`
	ExpiresAt    time.Time `json:"expires_at"`
	LastActivity time.Time `json:"last_activity"`
}

// LabelAmount is one row of a grouped sum, e.g. a category or a YYYY-MM month.
type LabelAmount struct {
	Label  string          `json:"label"`
	Amount decimal.Decimal `json:"amount"`
}

// Summary is the dashboard read model for a single user.
type Summary struct {
	TotalIncome  decimal.Decimal `json:"total_income"`
	TotalExpense decimal.Decimal `json:"total_expense"`
	Balance      decimal.Decimal `json:"balance"`
	ByCategory   []LabelAmount   `json:"by_category"`
	ByMonth      []LabelAmount   `json:"by_month"`
}
