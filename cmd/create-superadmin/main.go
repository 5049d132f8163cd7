// Command create-superadmin creates the initial SUPERADMIN account from
// SUPERADMIN_* environment variables.  It does nothing when a SUPERADMIN
// already exists.
package main

import (
	"context"
	"time"

	"github.com/labstack/gommon/log"

	"github.com/iliyamo/club-membership/internal/config"
	"github.com/iliyamo/club-membership/internal/database"
	"github.com/iliyamo/club-membership/internal/service"
)

func main() {
	cfg := config.Load()
	sa := config.LoadSuperadmin()
	logger := log.New("create-superadmin")

	db, dialect, err := database.Open(cfg.Database(false))
	if err != nil {
		logger.Fatalf("database: %v", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	accounts := service.NewAccounts(service.NewStore(db, dialect), nil, logger, cfg.BcryptCost)
	u, created, err := accounts.BootstrapSuperadmin(ctx, service.BootstrapInput{
		Email:     sa.Email,
		Password:  sa.Password,
		Name:      sa.Name,
		StudentID: sa.StudentID,
		Phone:     sa.Phone,
		Grade:     sa.Grade,
	})
	if err != nil {
		logger.Fatalf("create superadmin: %v", err)
	}
	if !created {
		logger.Info("a SUPERADMIN already exists; nothing to do")
		return
	}
	logger.Infof("SUPERADMIN created: id=%s email=%s", u.ID, u.Email)
}
