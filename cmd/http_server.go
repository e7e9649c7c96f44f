package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/wibowo/expense-report/internal"
	"github.com/wibowo/expense-report/internal/auth"
	authpg "github.com/wibowo/expense-report/internal/auth/postgres"
	"github.com/wibowo/expense-report/internal/core/events"
	"github.com/wibowo/expense-report/internal/expense"
	expensepg "github.com/wibowo/expense-report/internal/expense/postgres"
	"github.com/wibowo/expense-report/internal/notifier"
	"github.com/wibowo/expense-report/internal/storage"
	"github.com/wibowo/expense-report/internal/taxonomy"
	"github.com/wibowo/expense-report/internal/title"
	titlepg "github.com/wibowo/expense-report/internal/title/postgres"
	"github.com/wibowo/expense-report/internal/transport/rest"
	"github.com/wibowo/expense-report/pkg/logger"
)

var httpServerCmd = &cobra.Command{
	Use:   "server",
	Short: "Start HTTP server",
	Long:  `Start the HTTP server to handle API requests`,
	Run: func(cmd *cobra.Command, args []string) {
		startHTTPServer()
	},
}

type Dependencies struct {
	Config *internal.Config
	DB     *sqlx.DB
	GormDB *gorm.DB
	Router *chi.Mux
	Logger *slog.Logger

	AuthHandler     *auth.Handler
	TitleHandler    *title.Handler
	ExpenseHandler  *expense.Handler
	TaxonomyHandler *taxonomy.Handler
}

func startHTTPServer() {
	deps, err := initializeDependencies()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize dependencies: %v\n", err)
		os.Exit(1)
	}

	rest.RegisterAllRoutes(
		deps.Router,
		deps.DB,
		deps.Config.Server.AllowedOrigins,
		deps.AuthHandler,
		deps.TitleHandler,
		deps.ExpenseHandler,
		deps.TaxonomyHandler,
		deps.Logger,
	)

	addr := fmt.Sprintf(":%d", deps.Config.Server.Port)
	deps.Logger.Info("starting HTTP server", "address", addr)

	server := &http.Server{
		Addr:              addr,
		Handler:           deps.Router,
		ReadHeaderTimeout: deps.Config.Server.ReadHeaderTimeout,
		ReadTimeout:       deps.Config.Server.ReadTimeout,
		WriteTimeout:      deps.Config.Server.WriteTimeout,
		IdleTimeout:       deps.Config.Server.IdleTimeout,
	}

	// Signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	serverErrChan := make(chan error, 1)
	go func() {
		serverErrChan <- server.ListenAndServe()
	}()

	select {
	case sig := <-sigChan:
		deps.Logger.Info("received signal, shutting down...", "signal", sig.String())
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			deps.Logger.Error("server shutdown error", "error", err)
		}
		if err := deps.DB.Close(); err != nil {
			deps.Logger.Error("database close error", "error", err)
		}
	case err := <-serverErrChan:
		if err != nil && err != http.ErrServerClosed {
			deps.Logger.Error("server failed to start", "error", err)
			os.Exit(1)
		}
	}

	deps.Logger.Info("server stopped")
}

func initializeDependencies() (*Dependencies, error) {
	config, err := loadConfig(".")
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger.Init(config.Logging.Level, config.Logging.Format)
	log := logger.L()

	db, err := initDB(config.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	gormDB, err := gorm.Open(postgres.New(postgres.Config{Conn: db.DB}), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize gorm: %w", err)
	}

	store, err := storage.NewS3Store(config.Storage, log)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize attachment storage: %w", err)
	}

	eventBus := events.NewEventBus(log)
	notifier.New(log).RegisterEventHandlers(eventBus)

	userRepo := authpg.NewUserRepository(gormDB)
	tokenGen := auth.NewJWTTokenGenerator(config.Security.TokenSecret, config.Security.TokenDuration)
	authService := auth.NewService(userRepo, tokenGen, config.Security.BCryptCost)

	expenseRepo := expensepg.NewExpenseRepository(gormDB)
	expenseService := expense.NewService(expenseRepo, store, eventBus, log)

	titleRepo := titlepg.NewTitleRepository(gormDB)
	titleService := title.NewService(titleRepo, expenseRepo, store, eventBus, log)

	return &Dependencies{
		Config:          config,
		Logger:          log,
		DB:              db,
		GormDB:          gormDB,
		Router:          chi.NewRouter(),
		AuthHandler:     auth.NewHandler(authService),
		TitleHandler:    title.NewHandler(titleService),
		ExpenseHandler:  expense.NewHandler(expenseService),
		TaxonomyHandler: taxonomy.NewHandler(),
	}, nil
}

// initDB initializes the database connection
func initDB(cfg internal.DatabaseConfig) (*sqlx.DB, error) {
	const driver = "pgx"

	dbConn, err := sqlx.Connect(driver, cfg.Source)
	if err != nil {
		return nil, fmt.Errorf("failed to open db connection: %w", err)
	}

	dbConn.SetMaxIdleConns(cfg.MaxIdleConns)
	dbConn.SetMaxOpenConns(cfg.MaxOpenConns)
	dbConn.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	if err := dbConn.Ping(); err != nil {
		_ = dbConn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return dbConn, nil
}
