package handlers

import (
	"net/http"

	"moneymate/internal/models"

	"github.com/shopspring/decimal"
)

// chartColors cycles across breakdown rows.
var chartColors = []string{"#60a5fa", "#a78bfa", "#f472b6", "#fbbf24", "#818cf8", "#fb7185", "#34d399", "#94a3b8"}

// BreakdownItem is one row of a category or month breakdown.
type BreakdownItem struct {
	Label      string
	Total      decimal.Decimal
	Percentage float64
	Color      string
}

// DashboardViewModel is the data passed to the dashboard template.
type DashboardViewModel struct {
	Page
	TotalIncome  decimal.Decimal
	TotalExpense decimal.Decimal
	Balance      decimal.Decimal
	ByCategory   []BreakdownItem
	ByMonth      []BreakdownItem
}

// Dashboard renders income, expense and balance with the expense breakdowns.
func (h *Handlers) Dashboard(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r)
	summary, err := h.ledger.Summary(r.Context(), user.ID)
	if err != nil {
		h.serverError(w, r, "Dashboard error", err)
		return
	}

	h.render(w, r, http.StatusOK, "dashboard.html", DashboardViewModel{
		Page:         h.page(w, r, "Dashboard"),
		TotalIncome:  summary.TotalIncome,
		TotalExpense: summary.TotalExpense,
		Balance:      summary.Balance,
		ByCategory:   breakdown(summary.ByCategory, summary.TotalExpense),
		ByMonth:      breakdown(summary.ByMonth, summary.TotalExpense),
	})
}

func breakdown(rows []models.LabelAmount, total decimal.Decimal) []BreakdownItem {
	items := make([]BreakdownItem, 0, len(rows))
	for i, row := range rows {
		percentage := 0.0
		if total.IsPositive() {
			percentage = row.Amount.Div(total).Mul(decimal.NewFromInt(100)).InexactFloat64()
		}
		items = append(items, BreakdownItem{
			Label:      row.Label,
			Total:      row.Amount,
			Percentage: percentage,
			Color:      chartColors[i%len(chartColors)],
		})
	}
	return items
}
