// Package server assembles and runs the ronnia web server: it opens the
// database, applies migrations, wires the linking services and serves HTTP
// until a shutdown signal arrives.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"github.com/dmitrijs2005/ronnia/internal/logging"
	"github.com/dmitrijs2005/ronnia/internal/server/auth"
	"github.com/dmitrijs2005/ronnia/internal/server/config"
	"github.com/dmitrijs2005/ronnia/internal/server/oauth"
	"github.com/dmitrijs2005/ronnia/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/ronnia/internal/server/services"

	hs "github.com/dmitrijs2005/ronnia/internal/server/http"
)

type App struct {
	config   *config.Config
	logger   logging.Logger
	db       *sql.DB
	sessions *services.SessionService
}

// NewApp opens the database and applies migrations. The caller owns the
// returned App and must Run it so the database gets closed.
func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	logger := logging.NewJSON(os.Stdout, c.LogLevel)

	rm, err := repomanager.New(c.DatabaseDriver)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(c.DatabaseDriver, c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}
	if c.DatabaseDriver == repomanager.DriverSQLite {
		// single writer
		db.SetMaxOpenConns(1)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("db ping error: %w", err)
	}
	if err := rm.RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("db migration error: %w", err)
	}

	store := services.NewSQLAccountStore(db, rm)
	issuer := auth.NewIssuer(c.SecretKey, c.SignupTokenTTL, c.SessionTokenTTL)
	client := oauth.NewClient(&http.Client{}, c.ProviderTimeout,
		oauth.OsuProvider(c.OsuClientID, c.OsuClientSecret, c.OsuRedirectURI),
		oauth.TwitchProvider(c.TwitchClientID, c.TwitchClientSecret, c.TwitchRedirectURI),
	)
	linker := services.NewAccountLinker(client, store, issuer, logger, c.LinkTimeout)
	sessions := services.NewSessionService(linker, client, store, issuer, logger)

	return &App{config: c, logger: logger, db: db, sessions: sessions}, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) startHTTPServer(ctx context.Context, cancelFunc context.CancelFunc) {
	secure := strings.HasPrefix(app.config.PublicURL, "https://")
	s := hs.NewHTTPServer(app.config.HTTPAddr, app.logger, app.sessions, secure, app.config.ShutdownTimeout)

	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

// Run serves until ctx is cancelled or a termination signal arrives, then
// closes the database.
func (app *App) Run(ctx context.Context) {

	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.startHTTPServer(ctx, cancelFunc)
	}()

	wg.Wait()

	if err := app.db.Close(); err != nil {
		app.logger.Error(ctx, "db close error", "error", err)
	}
	app.logger.Info(ctx, "App stopped")
}
