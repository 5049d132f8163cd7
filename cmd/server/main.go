package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"

	"github.com/iliyamo/club-membership/internal/cache"
	"github.com/iliyamo/club-membership/internal/config"
	"github.com/iliyamo/club-membership/internal/database"
	"github.com/iliyamo/club-membership/internal/handler"
	"github.com/iliyamo/club-membership/internal/queue"
	"github.com/iliyamo/club-membership/internal/router"
	"github.com/iliyamo/club-membership/internal/service"
	"github.com/iliyamo/club-membership/internal/utils"
)

func main() {
	cfg := config.Load()

	e := echo.New()
	e.HideBanner = true
	e.Logger.SetLevel(logLevel(cfg.LogLevel))

	db, dialect, err := database.Open(cfg.Database(false))
	if err != nil {
		e.Logger.Fatalf("database: %v", err)
	}
	defer db.Close()

	if cfg.Migrate {
		if err := migrate(cfg, db, dialect); err != nil {
			e.Logger.Fatalf("migrate: %v", err)
		}
		e.Logger.Infof("migrations applied (%s)", dialect)
	}

	tokens, err := utils.NewTokenCodec(cfg.Tokens())
	if err != nil {
		e.Logger.Fatalf("tokens: %v", err)
	}

	// Redis backs the charge cache.  It is skipped when the server is
	// unreachable.
	rdb := config.NewRedisClient()
	var charges service.ChargeCache
	if rdb != nil {
		defer rdb.Close()
		charges = cache.NewChargeCache(rdb, 0)
	} else {
		e.Logger.Warn("redis unavailable; charge cache disabled")
	}

	var events service.EventPublisher
	if qc := config.LoadQueueConfig(); qc.Enabled {
		events = queue.NewPublisher(qc.URL, qc.Queue)
		e.Logger.Infof("publishing events to %s", qc.Queue)
	}

	store := service.NewStore(db, dialect)
	deps := router.Deps{
		DB:       db,
		Sessions: service.NewSessionAuthority(store, tokens, e.Logger),
		Accounts: service.NewAccounts(store, events, e.Logger, cfg.BcryptCost),
		Ledger:   service.NewLedger(store, charges, events, e.Logger),
		Cookie: handler.CookieConfig{
			Secure:   cfg.CookieSecure,
			SameSite: cfg.CookieSameSite,
			Domain:   cfg.CookieDomain,
		},
	}

	e.Use(echomw.Recover())
	e.Use(echomw.Logger())
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins:     cfg.CORSOrigins,
		AllowCredentials: true,
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowHeaders:     []string{echo.HeaderAuthorization, echo.HeaderContentType},
	}))
	router.Register(e, deps)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	addr := ":" + cfg.Port
	go func() {
		e.Logger.Infof("listening on %s (env=%s, db=%s)", addr, cfg.Env, dialect)
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			e.Logger.Fatal(err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		e.Logger.Errorf("shutdown: %v", err)
	}
}

// migrate applies the embedded migrations.  MySQL needs multi-statement
// support for the schema files, which the app pool deliberately lacks, so
// it gets a short-lived handle of its own.
func migrate(cfg config.Config, db *sql.DB, d database.Dialect) error {
	if d != database.MySQL {
		return database.Migrate(db, d)
	}
	mdb, _, err := database.Open(cfg.Database(true))
	if err != nil {
		return err
	}
	defer mdb.Close()
	return database.Migrate(mdb, d)
}

func logLevel(s string) log.Lvl {
	switch strings.ToLower(s) {
	case "debug":
		return log.DEBUG
	case "warn":
		return log.WARN
	case "error":
		return log.ERROR
	}
	return log.INFO
}
