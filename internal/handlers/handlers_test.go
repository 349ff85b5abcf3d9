package handlers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"moneymate/internal/auth"
	"moneymate/internal/ledger"
	applog "moneymate/internal/log"
	"moneymate/internal/models"
	"moneymate/internal/storage"
	"moneymate/web"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

func newRouter(h *Handlers) http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/", h.Index).Methods(http.MethodGet)
	r.HandleFunc("/register", h.RegisterForm).Methods(http.MethodGet)
	r.HandleFunc("/register", h.Register).Methods(http.MethodPost)
	r.HandleFunc("/login", h.LoginForm).Methods(http.MethodGet)
	r.HandleFunc("/login", h.Login).Methods(http.MethodPost)
	r.HandleFunc("/logout", h.Logout).Methods(http.MethodGet)

	protected := r.NewRoute().Subrouter()
	protected.Use(h.AuthMiddleware)
	protected.HandleFunc("/dashboard", h.Dashboard).Methods(http.MethodGet)
	protected.HandleFunc("/add", h.CreateTransactionForm).Methods(http.MethodGet)
	protected.HandleFunc("/add", h.CreateTransaction).Methods(http.MethodPost)
	protected.HandleFunc("/transactions", h.ListTransactions).Methods(http.MethodGet)
	protected.HandleFunc("/transaction/{id:[0-9]+}", h.ViewTransaction).Methods(http.MethodGet)
	protected.HandleFunc("/edit/{id:[0-9]+}", h.EditTransactionForm).Methods(http.MethodGet)
	protected.HandleFunc("/edit/{id:[0-9]+}", h.UpdateTransaction).Methods(http.MethodPost)
	protected.HandleFunc("/delete/{id:[0-9]+}", h.DeleteTransaction).Methods(http.MethodPost)
	return r
}

// HandlersTestSuite drives the handlers through a real HTTP server with a cookie jar
type HandlersTestSuite struct {
	suite.Suite
	db     *storage.DB
	server *httptest.Server
	client *http.Client
}

// SetupTest runs before each test
func (suite *HandlersTestSuite) SetupTest() {
	db, err := storage.NewDB(":memory:")
	require.NoError(suite.T(), err, "failed to create test database")
	suite.db = db

	templates, err := fs.Sub(web.TemplatesFS, "templates")
	require.NoError(suite.T(), err)

	logger := applog.Discard()
	h := NewHandlers(
		auth.NewService(db, []byte("handlers-test-secret"), logger),
		ledger.NewService(db, logger),
		db, templates, false,
	)
	suite.server = httptest.NewServer(newRouter(h))
	suite.client = suite.newClient()
}

// TearDownTest runs after each test
func (suite *HandlersTestSuite) TearDownTest() {
	suite.server.Close()
	suite.db.Close()
}

func (suite *HandlersTestSuite) newClient() *http.Client {
	jar, err := cookiejar.New(nil)
	require.NoError(suite.T(), err)
	return &http.Client{Jar: jar}
}

// do performs a request, follows redirects and returns the final status, path and body.
func (suite *HandlersTestSuite) do(client *http.Client, method, path string, form url.Values) (int, string, string) {
	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}
	req, err := http.NewRequest(method, suite.server.URL+path, body)
	require.NoError(suite.T(), err)
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	resp, err := client.Do(req)
	require.NoError(suite.T(), err)
	defer resp.Body.Close()

	b, err := io.ReadAll(resp.Body)
	require.NoError(suite.T(), err)
	return resp.StatusCode, resp.Request.URL.Path, string(b)
}

func (suite *HandlersTestSuite) get(path string) (int, string, string) {
	return suite.do(suite.client, http.MethodGet, path, nil)
}

func (suite *HandlersTestSuite) post(path string, form url.Values) (int, string, string) {
	return suite.do(suite.client, http.MethodPost, path, form)
}

func (suite *HandlersTestSuite) registerAndLogin(client *http.Client, email string) *models.User {
	status, _, _ := suite.do(client, http.MethodPost, "/register", url.Values{
		"email": {email}, "password": {"pw123"}, "confirm_password": {"pw123"},
	})
	require.Equal(suite.T(), http.StatusOK, status)

	status, path, _ := suite.do(client, http.MethodPost, "/login", url.Values{
		"email": {email}, "password": {"pw123"},
	})
	require.Equal(suite.T(), http.StatusOK, status)
	require.Equal(suite.T(), "/dashboard", path)

	user, err := suite.db.GetUserByEmail(context.Background(), email)
	require.NoError(suite.T(), err)
	return user
}

func (suite *HandlersTestSuite) addTransaction(client *http.Client, kind, amount, category, date string) {
	status, path, body := suite.do(client, http.MethodPost, "/add", url.Values{
		"type": {kind}, "amount": {amount}, "category": {category}, "description": {category + " note"}, "date": {date},
	})
	require.Equal(suite.T(), http.StatusOK, status, body)
	require.Equal(suite.T(), "/dashboard", path)
}

func (suite *HandlersTestSuite) onlyTransaction(userID int64) models.Transaction {
	list, err := suite.db.ListTransactions(context.Background(), userID)
	require.NoError(suite.T(), err)
	require.Len(suite.T(), list, 1)
	return list[0]
}

func (suite *HandlersTestSuite) TestUnauthenticatedRedirectsToLogin() {
	for _, path := range []string{"/", "/dashboard", "/transactions", "/add", "/transaction/1", "/edit/1"} {
		status, final, body := suite.get(path)
		assert.Equal(suite.T(), http.StatusOK, status, path)
		assert.Equal(suite.T(), "/login", final, path)
		assert.Contains(suite.T(), body, "login-form", path)
	}
}

func (suite *HandlersTestSuite) TestRegisterThenLogin() {
	status, path, body := suite.post("/register", url.Values{
		"email": {"New@Example.com"}, "password": {"pw"}, "confirm_password": {"pw"},
	})
	assert.Equal(suite.T(), http.StatusOK, status)
	assert.Equal(suite.T(), "/login", path, "registration does not log the user in")
	assert.Contains(suite.T(), body, "Registration successful. Please log in.")

	status, path, body = suite.post("/login", url.Values{"email": {"new@example.com"}, "password": {"pw"}})
	assert.Equal(suite.T(), http.StatusOK, status)
	assert.Equal(suite.T(), "/dashboard", path)
	assert.Contains(suite.T(), body, "new@example.com")
	assert.Contains(suite.T(), body, `id="balance">0.00<`)

	// Logged-in users skip the login page and index.
	_, path, _ = suite.get("/login")
	assert.Equal(suite.T(), "/dashboard", path)
	_, path, _ = suite.get("/")
	assert.Equal(suite.T(), "/dashboard", path)
}

func (suite *HandlersTestSuite) TestRegisterErrors() {
	status, _, body := suite.post("/register", url.Values{
		"email": {"a@example.com"}, "password": {"pw"}, "confirm_password": {"other"},
	})
	assert.Equal(suite.T(), http.StatusUnprocessableEntity, status)
	assert.Contains(suite.T(), body, "passwords do not match")
	assert.Contains(suite.T(), body, `value="a@example.com"`, "email is kept in the form")

	status, _, _ = suite.post("/register", url.Values{
		"email": {"a@example.com"}, "password": {"pw"}, "confirm_password": {"pw"},
	})
	require.Equal(suite.T(), http.StatusOK, status)

	status, _, body = suite.post("/register", url.Values{
		"email": {"A@example.com"}, "password": {"x"}, "confirm_password": {"x"},
	})
	assert.Equal(suite.T(), http.StatusConflict, status)
	assert.Contains(suite.T(), body, "An account with this email already exists")
}

func (suite *HandlersTestSuite) TestLoginErrors() {
	suite.registerAndLogin(suite.newClient(), "a@example.com")

	status, _, body := suite.post("/login", url.Values{"email": {"a@example.com"}, "password": {"nope"}})
	assert.Equal(suite.T(), http.StatusUnauthorized, status)
	assert.Contains(suite.T(), body, "Invalid email or password")

	status, _, body = suite.post("/login", url.Values{"email": {"ghost@example.com"}, "password": {"pw123"}})
	assert.Equal(suite.T(), http.StatusUnauthorized, status)
	assert.Contains(suite.T(), body, "Invalid email or password")

	status, _, body = suite.post("/login", url.Values{"email": {""}, "password": {""}})
	assert.Equal(suite.T(), http.StatusUnprocessableEntity, status)
	assert.Contains(suite.T(), body, "Email and password are required")

	// No session was established by any of the failures.
	_, path, _ := suite.get("/dashboard")
	assert.Equal(suite.T(), "/login", path)
}

func (suite *HandlersTestSuite) TestDashboardFigures() {
	suite.registerAndLogin(suite.client, "a@example.com")
	suite.addTransaction(suite.client, "income", "2500", "Salary", "2024-03-01")
	suite.addTransaction(suite.client, "expense", "400", "Groceries", "2024-03-04")

	status, _, body := suite.get("/dashboard")
	require.Equal(suite.T(), http.StatusOK, status)
	assert.Contains(suite.T(), body, `id="total-income">2500.00<`)
	assert.Contains(suite.T(), body, `id="total-expense">400.00<`)
	assert.Contains(suite.T(), body, `id="balance">2100.00<`)
	assert.Contains(suite.T(), body, "Groceries")
	assert.Contains(suite.T(), body, "2024-03")
	assert.NotContains(suite.T(), body, "No expenses yet.")
}

func (suite *HandlersTestSuite) TestAddShowsFlashAndList() {
	suite.registerAndLogin(suite.client, "a@example.com")

	status, path, body := suite.post("/add", url.Values{
		"type": {"expense"}, "amount": {"12.5"}, "category": {"Food"}, "description": {"lunch"}, "date": {"2024-03-05"},
	})
	require.Equal(suite.T(), http.StatusOK, status)
	assert.Equal(suite.T(), "/dashboard", path)
	assert.Contains(suite.T(), body, "Transaction added.")

	status, _, body = suite.get("/transactions")
	require.Equal(suite.T(), http.StatusOK, status)
	assert.Contains(suite.T(), body, "lunch")
	assert.Contains(suite.T(), body, "12.50")
	assert.Contains(suite.T(), body, "2024-03-05")
	assert.NotContains(suite.T(), body, "Transaction added.", "flash is shown once")

	// The form suggests categories already in use.
	_, _, body = suite.get("/add")
	assert.Contains(suite.T(), body, `<option value="Food">`)
}

func (suite *HandlersTestSuite) TestAddValidationError() {
	user := suite.registerAndLogin(suite.client, "a@example.com")

	status, path, body := suite.post("/add", url.Values{
		"type": {"expense"}, "amount": {"abc"}, "category": {"Food"}, "date": {"2024-03-05"},
	})
	assert.Equal(suite.T(), http.StatusUnprocessableEntity, status)
	assert.Equal(suite.T(), "/add", path)
	assert.Contains(suite.T(), body, "amount must be a number")
	assert.Contains(suite.T(), body, `value="abc"`, "submitted values are kept")

	list, err := suite.db.ListTransactions(context.Background(), user.ID)
	require.NoError(suite.T(), err)
	assert.Empty(suite.T(), list)
}

func (suite *HandlersTestSuite) TestViewEditAndDelete() {
	user := suite.registerAndLogin(suite.client, "a@example.com")
	suite.addTransaction(suite.client, "income", "75", "Gift", "2024-02-14")
	tx := suite.onlyTransaction(user.ID)
	detail := fmt.Sprintf("/transaction/%d", tx.ID)

	status, _, body := suite.get(detail)
	require.Equal(suite.T(), http.StatusOK, status)
	assert.Contains(suite.T(), body, "75.00")
	assert.Contains(suite.T(), body, "Gift note")

	status, _, body = suite.get(fmt.Sprintf("/edit/%d", tx.ID))
	require.Equal(suite.T(), http.StatusOK, status)
	assert.Contains(suite.T(), body, `value="Gift"`)
	assert.Contains(suite.T(), body, `value="2024-02-14"`)

	status, path, body := suite.post(fmt.Sprintf("/edit/%d", tx.ID), url.Values{
		"type": {"expense"}, "amount": {"80"}, "category": {"Gear"}, "description": {""}, "date": {"2024-02-15"},
	})
	require.Equal(suite.T(), http.StatusOK, status)
	assert.Equal(suite.T(), detail, path)
	assert.Contains(suite.T(), body, "Transaction updated.")
	assert.Contains(suite.T(), body, "80.00")
	assert.Contains(suite.T(), body, "Gear")

	updated := suite.onlyTransaction(user.ID)
	assert.Equal(suite.T(), models.KindExpense, updated.Kind)
	assert.Empty(suite.T(), updated.Description)

	status, path, body = suite.post(fmt.Sprintf("/delete/%d", tx.ID), url.Values{})
	require.Equal(suite.T(), http.StatusOK, status)
	assert.Equal(suite.T(), "/transactions", path)
	assert.Contains(suite.T(), body, "Transaction deleted.")
	assert.Contains(suite.T(), body, "No transactions yet.")

	// Deleting again still succeeds.
	status, path, _ = suite.post(fmt.Sprintf("/delete/%d", tx.ID), url.Values{})
	assert.Equal(suite.T(), http.StatusOK, status)
	assert.Equal(suite.T(), "/transactions", path)

	status, _, _ = suite.get(detail)
	assert.Equal(suite.T(), http.StatusNotFound, status)
}

func (suite *HandlersTestSuite) TestEditValidationError() {
	user := suite.registerAndLogin(suite.client, "a@example.com")
	suite.addTransaction(suite.client, "expense", "10", "Food", "2024-02-14")
	tx := suite.onlyTransaction(user.ID)

	status, _, body := suite.post(fmt.Sprintf("/edit/%d", tx.ID), url.Values{
		"type": {"expense"}, "amount": {"10"}, "category": {"Food"}, "date": {"14/02/2024"},
	})
	assert.Equal(suite.T(), http.StatusUnprocessableEntity, status)
	assert.Contains(suite.T(), body, "date must be YYYY-MM-DD")

	assert.Equal(suite.T(), "2024-02-14", suite.onlyTransaction(user.ID).Date.Format(models.DateLayout))
}

func (suite *HandlersTestSuite) TestOtherUsersTransactionsAreHidden() {
	owner := suite.newClient()
	ownerUser := suite.registerAndLogin(owner, "owner@example.com")
	suite.addTransaction(owner, "expense", "99", "Rent", "2024-01-01")
	tx := suite.onlyTransaction(ownerUser.ID)

	suite.registerAndLogin(suite.client, "intruder@example.com")

	status, _, _ := suite.get(fmt.Sprintf("/transaction/%d", tx.ID))
	assert.Equal(suite.T(), http.StatusNotFound, status)

	_, path, body := suite.get(fmt.Sprintf("/edit/%d", tx.ID))
	assert.Equal(suite.T(), "/transactions", path)
	assert.Contains(suite.T(), body, "Transaction not found.")

	_, path, _ = suite.post(fmt.Sprintf("/edit/%d", tx.ID), url.Values{
		"type": {"income"}, "amount": {"1"}, "category": {"Mine"}, "date": {"2024-01-01"},
	})
	assert.Equal(suite.T(), "/transactions", path)

	_, _, _ = suite.post(fmt.Sprintf("/delete/%d", tx.ID), url.Values{})

	_, _, body = suite.get("/transactions")
	assert.NotContains(suite.T(), body, "Rent")

	survivor := suite.onlyTransaction(ownerUser.ID)
	assert.Equal(suite.T(), "Rent", survivor.Category)
	assert.True(suite.T(), survivor.Amount.Equal(decimal.NewFromInt(99)))
}

func (suite *HandlersTestSuite) TestMissingTransaction() {
	suite.registerAndLogin(suite.client, "a@example.com")

	status, _, body := suite.get("/transaction/999")
	assert.Equal(suite.T(), http.StatusNotFound, status)
	assert.Contains(suite.T(), body, "Transaction not found")
}

func (suite *HandlersTestSuite) TestLogout() {
	suite.registerAndLogin(suite.client, "a@example.com")

	status, path, body := suite.get("/logout")
	assert.Equal(suite.T(), http.StatusOK, status)
	assert.Equal(suite.T(), "/login", path)
	assert.Contains(suite.T(), body, "You have been logged out.")

	_, path, _ = suite.get("/dashboard")
	assert.Equal(suite.T(), "/login", path)
}

func (suite *HandlersTestSuite) TestTamperedCookieIsCleared() {
	req := httptest.NewRequest(http.MethodGet, "/dashboard", http.NoBody)
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: "forged.value.here"})
	w := httptest.NewRecorder()

	suite.server.Config.Handler.ServeHTTP(w, req)

	assert.Equal(suite.T(), http.StatusFound, w.Code)
	assert.Equal(suite.T(), "/login", w.Header().Get("Location"))
	var cleared bool
	for _, c := range w.Result().Cookies() {
		if c.Name == SessionCookieName && c.MaxAge < 0 {
			cleared = true
		}
	}
	assert.True(suite.T(), cleared, "invalid session cookie should be cleared")
}

func (suite *HandlersTestSuite) TestHTMXRendersContentOnly() {
	suite.registerAndLogin(suite.client, "a@example.com")

	req, err := http.NewRequest(http.MethodGet, suite.server.URL+"/transactions", http.NoBody)
	require.NoError(suite.T(), err)
	req.Header.Set("HX-Request", "true")
	resp, err := suite.client.Do(req)
	require.NoError(suite.T(), err)
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	require.NoError(suite.T(), err)

	assert.Equal(suite.T(), http.StatusOK, resp.StatusCode)
	assert.Contains(suite.T(), string(b), "list-screen")
	assert.NotContains(suite.T(), string(b), "<html")
}

func TestHandlersSuite(t *testing.T) {
	suite.Run(t, new(HandlersTestSuite))
}

func TestBreakdown(t *testing.T) {
	rows := []models.LabelAmount{
		{Label: "Rent", Amount: decimal.NewFromInt(75)},
		{Label: "Food", Amount: decimal.NewFromInt(25)},
	}

	items := breakdown(rows, decimal.NewFromInt(100))
	require.Len(t, items, 2)
	assert.Equal(t, "Rent", items[0].Label)
	assert.InDelta(t, 75.0, items[0].Percentage, 0.001)
	assert.InDelta(t, 25.0, items[1].Percentage, 0.001)
	assert.NotEqual(t, items[0].Color, items[1].Color)

	assert.Empty(t, breakdown(nil, decimal.Zero))

	zero := breakdown(rows, decimal.Zero)
	assert.Zero(t, zero[0].Percentage)
}

func TestUserMessage(t *testing.T) {
	assert.Equal(t, "category is required",
		userMessage(fmt.Errorf("%w: category is required", models.ErrValidation)))
	assert.Equal(t, "user x already exists",
		userMessage(fmt.Errorf("%w: user x already exists", models.ErrConflict)))
	assert.Equal(t, "boom", userMessage(errors.New("boom")))
}
