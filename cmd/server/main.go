package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"moneymate/internal/auth"
	"moneymate/internal/config"
	"moneymate/internal/handlers"
	"moneymate/internal/ledger"
	applog "moneymate/internal/log"
	"moneymate/internal/storage"
	"moneymate/web"

	"github.com/gorilla/mux"
	"golang.org/x/sync/errgroup"
)

func main() {
	envFile := flag.String("env", ".env", "Optional .env file loaded before the environment")
	flag.Parse()

	if err := run(*envFile); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(envFile string) error {
	cfg, err := config.Load(envFile)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger := cfg.Logger()
	applog.SetDefault(logger)

	db, err := storage.NewDB(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	authSvc := auth.NewService(db, []byte(cfg.SessionSecret), logger)
	ledgerSvc := ledger.NewService(db, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := authSvc.Bootstrap(ctx, cfg.AdminEmail, cfg.AdminPassword); err != nil {
		return fmt.Errorf("failed to create bootstrap user: %w", err)
	}

	templates, err := fs.Sub(web.TemplatesFS, "templates")
	if err != nil {
		return err
	}
	static, err := fs.Sub(web.StaticFS, "static")
	if err != nil {
		return err
	}

	h := handlers.NewHandlers(authSvc, ledgerSvc, db, templates, cfg.SecureCookie)
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           applog.Middleware(logger)(setupRouter(h, static)),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    1 << 16,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Starting MoneyMate server", "port", cfg.Port, "db", cfg.DBPath)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	g.Go(func() error {
		sweepSessions(gctx, authSvc, cfg.SessionSweepInterval, logger.WithComponent(applog.ComponentSweeper))
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("Server stopped gracefully")
	return nil
}

// sweepSessions removes expired sessions every interval until ctx is done.
func sweepSessions(ctx context.Context, authSvc *auth.Service, interval time.Duration, logger *applog.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := authSvc.SweepExpired(ctx); err != nil && ctx.Err() == nil {
				logger.Error("Session sweep failed", applog.FieldError, err)
			}
		case <-ctx.Done():
			return
		}
	}
}

func setupRouter(h *handlers.Handlers, static fs.FS) http.Handler {
	r := mux.NewRouter()

	r.PathPrefix("/static/").Handler(http.StripPrefix("/static/", http.FileServer(http.FS(static))))
	r.HandleFunc("/healthz", h.Health).Methods(http.MethodGet)

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
