package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"moneymate/internal/ledger"
	"moneymate/internal/models"
)

// ListViewModel is the data passed to the list view template.
type ListViewModel struct {
	Page
	Transactions []models.Transaction
}

// DetailViewModel is the data passed to the single transaction view.
type DetailViewModel struct {
	Page
	Transaction *models.Transaction
}

// FormViewModel is the data passed to the create/edit form template.
type FormViewModel struct {
	Page
	ID         int64
	IsEdit     bool
	Form       ledger.Input
	Categories []string
}

// ListTransactions renders every transaction of the current user.
func (h *Handlers) ListTransactions(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r)
	transactions, err := h.ledger.List(r.Context(), user.ID)
	if err != nil {
		h.serverError(w, r, "ListTransactions error", err)
		return
	}
	h.render(w, r, http.StatusOK, "list.html", ListViewModel{
		Page:         h.page(w, r, "Transactions"),
		Transactions: transactions,
	})
}

// ViewTransaction renders a single transaction. Missing ones are a 404.
func (h *Handlers) ViewTransaction(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r)
	id, ok := pathID(r)
	if !ok {
		http.Error(w, "Transaction not found", http.StatusNotFound)
		return
	}
	t, err := h.ledger.Get(r.Context(), user.ID, id)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			http.Error(w, "Transaction not found", http.StatusNotFound)
			return
		}
		h.serverError(w, r, "ViewTransaction error", err)
		return
	}
	h.render(w, r, http.StatusOK, "detail.html", DetailViewModel{
		Page:        h.page(w, r, "Transaction"),
		Transaction: t,
	})
}

// CreateTransactionForm renders the form to create a new transaction.
func (h *Handlers) CreateTransactionForm(w http.ResponseWriter, r *http.Request) {
	h.renderForm(w, r, http.StatusOK, FormViewModel{
		Page: h.page(w, r, "Add transaction"),
		Form: ledger.Input{Kind: string(models.KindExpense), Date: time.Now().Format(models.DateLayout)},
	})
}

// CreateTransaction handles the creation of a new transaction.
func (h *Handlers) CreateTransaction(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r)
	vm := FormViewModel{Page: Page{Title: "Add transaction", UserEmail: user.Email}}
	if err := r.ParseForm(); err != nil {
		vm.Error = "Invalid form submission"
		h.renderForm(w, r, http.StatusBadRequest, vm)
		return
	}
	vm.Form = inputFromForm(r)

	if _, err := h.ledger.Create(r.Context(), user.ID, vm.Form); err != nil {
		if errors.Is(err, models.ErrValidation) {
			vm.Error = userMessage(err)
			h.renderForm(w, r, http.StatusUnprocessableEntity, vm)
			return
		}
		h.serverError(w, r, "CreateTransaction error", err)
		return
	}
	redirectWithFlash(w, r, "/dashboard", "Transaction added.")
}

// EditTransactionForm renders the form to edit an existing transaction.
func (h *Handlers) EditTransactionForm(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r)
	id, ok := pathID(r)
	if !ok {
		redirectWithFlash(w, r, "/transactions", "Transaction not found.")
		return
	}
	t, err := h.ledger.Get(r.Context(), user.ID, id)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			redirectWithFlash(w, r, "/transactions", "Transaction not found.")
			return
		}
		h.serverError(w, r, "EditTransactionForm error", err)
		return
	}
	h.renderForm(w, r, http.StatusOK, FormViewModel{
		Page:   h.page(w, r, "Edit transaction"),
		ID:     t.ID,
		IsEdit: true,
		Form: ledger.Input{
			Amount:      t.Amount.String(),
			Category:    t.Category,
			Description: t.Description,
			Date:        t.Date.Format(models.DateLayout),
			Kind:        string(t.Kind),
		},
	})
}

// UpdateTransaction handles the update of an existing transaction.
func (h *Handlers) UpdateTransaction(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r)
	id, ok := pathID(r)
	if !ok {
		redirectWithFlash(w, r, "/transactions", "Transaction not found.")
		return
	}
	vm := FormViewModel{Page: Page{Title: "Edit transaction", UserEmail: user.Email}, ID: id, IsEdit: true}
	if err := r.ParseForm(); err != nil {
		vm.Error = "Invalid form submission"
		h.renderForm(w, r, http.StatusBadRequest, vm)
		return
	}
	vm.Form = inputFromForm(r)

	err := h.ledger.Update(r.Context(), user.ID, id, vm.Form)
	switch {
	case err == nil:
		redirectWithFlash(w, r, "/transaction/"+strconv.FormatInt(id, 10), "Transaction updated.")
	case errors.Is(err, models.ErrValidation):
		vm.Error = userMessage(err)
		h.renderForm(w, r, http.StatusUnprocessableEntity, vm)
	case errors.Is(err, models.ErrNotFound):
		redirectWithFlash(w, r, "/transactions", "Transaction not found.")
	default:
		h.serverError(w, r, "UpdateTransaction error", err)
	}
}

// DeleteTransaction removes a transaction. Deleting a missing one still succeeds.
func (h *Handlers) DeleteTransaction(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r)
	if id, ok := pathID(r); ok {
		if err := h.ledger.Delete(r.Context(), user.ID, id); err != nil {
			h.serverError(w, r, "DeleteTransaction error", err)
			return
		}
	}
	redirectWithFlash(w, r, "/transactions", "Transaction deleted.")
}

func (h *Handlers) renderForm(w http.ResponseWriter, r *http.Request, status int, vm FormViewModel) {
	if user := GetUserFromContext(r); user != nil {
		// Suggestions only; the form still renders without them.
		vm.Categories, _ = h.ledger.Categories(r.Context(), user.ID)
	}
	h.render(w, r, status, "form.html", vm)
}

func inputFromForm(r *http.Request) ledger.Input {
	return ledger.Input{
		Amount:      r.FormValue("amount"),
		Category:    r.FormValue("category"),
		Description: r.FormValue("description"),
		Date:        r.FormValue("date"),
		Kind:        r.FormValue("type"),
	}
}
