// Package migrations contains all database migration files.
// Each migration file uses init() to call migration.Register().
// This package is imported by cmd/offersync and pkg/testkit so the
// migrations are registered before the runner is used.
package migrations
