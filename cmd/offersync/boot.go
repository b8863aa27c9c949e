package main

import (
	"context"
	"fmt"
	"io"

	"gorm.io/gorm"

	"github.com/shashiranjanraj/offersync/internal/kernel"
	"github.com/shashiranjanraj/offersync/pkg/database"
	"github.com/shashiranjanraj/offersync/pkg/logger"
	"github.com/shashiranjanraj/offersync/pkg/migration"
)

// app is a booted process: an open database with the schema applied and the
// kernel wired on top of it.
type app struct {
	db *gorm.DB
	k  *kernel.Kernel
}

func boot(ctx context.Context) (*app, error) {
	db, err := database.Connect()
	if err != nil {
		return nil, err
	}
	if err := migration.New(db).WithOutput(io.Discard).Run(); err != nil {
		_ = database.Close(db)
		return nil, fmt.Errorf("migrate: %w", err)
	}

	k, err := kernel.New(ctx, kernel.FromEnv(), db)
	if err != nil {
		_ = database.Close(db)
		return nil, err
	}
	return &app{db: db, k: k}, nil
}

// authenticate makes sure a vendor token exists before any vendor call.
func (a *app) authenticate(ctx context.Context) error {
	inst, created, err := a.k.Auth.Start(ctx)
	if err != nil {
		return fmt.Errorf("authenticate: %w", err)
	}
	logger.Info("vendor instance ready", "instance_id", inst.ID, "new", created)
	return nil
}

func (a *app) close() {
	if err := a.k.Close(); err != nil {
		logger.Warn("kernel close", "error", err)
	}
	if err := database.Close(a.db); err != nil {
		logger.Warn("database close", "error", err)
	}
}
