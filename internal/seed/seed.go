// Package seed provisions the configured databases and fills them with
// generated rows, giving a fresh fleet something to back up.
package seed

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"

	"pgbackup/internal/config"
	"pgbackup/internal/database"
	"pgbackup/internal/logger"

	"github.com/jackc/pgx/v5"
)

const usersTable = `
CREATE TABLE IF NOT EXISTS users (
	id serial PRIMARY KEY,
	full_name text NOT NULL,
	email text NOT NULL UNIQUE,
	username text NOT NULL UNIQUE,
	bio text,
	created_at timestamp DEFAULT now()
)`

// Engine provisions roles, databases and seed rows
type Engine struct {
	cfg *config.Config
	log logger.Logger
	db  *database.PostgreSQL
}

// New creates a new seed engine
func New(cfg *config.Config, log logger.Logger, db *database.PostgreSQL) *Engine {
	return &Engine{cfg: cfg, log: log, db: db}
}

// Result reports what one database ended up with
type Result struct {
	Database string
	User     string
	Inserted int
}

// Run creates each configured role and database if missing, grants
// privileges, and inserts rows up to the configured count. Everything is
// idempotent; per-database failures are logged and do not stop the rest.
func (e *Engine) Run(ctx context.Context) ([]Result, error) {
	var results []Result

	for _, cred := range e.cfg.Databases {
		user := cred.User
		if user == "" {
			user = cred.Name + "_user"
		}
		password := cred.Password
		if password == "" {
			password = randomToken(12)
		}

		e.log.Info("Provisioning database", "database", cred.Name, "user", user)

		if err := e.provision(ctx, cred.Name, user, password); err != nil {
			e.log.Error("Provisioning failed", "database", cred.Name, "error", err)
			continue
		}

		inserted, err := e.seedRows(ctx, cred.Name, e.cfg.SeedRows)
		if err != nil {
			e.log.Error("Seeding failed", "database", cred.Name, "error", err)
			continue
		}

		e.log.Info("Seeded database", "database", cred.Name, "rows", inserted)
		results = append(results, Result{Database: cred.Name, User: user, Inserted: inserted})
	}

	return results, nil
}

func (e *Engine) provision(ctx context.Context, dbName, user, password string) error {
	exists, err := e.db.RoleExists(ctx, user)
	if err != nil {
		return err
	}
	if !exists {
		if err := e.db.CreateRole(ctx, user, password); err != nil {
			return err
		}
	}

	if err := e.db.CreateDatabaseOwned(ctx, dbName, user); err != nil {
		return err
	}

	return e.db.GrantAllPrivileges(ctx, dbName, user)
}

// seedRows inserts generated rows until the target count is reached.
// Unique-constraint collisions are retried with fresh values under a
// bounded attempt cap.
func (e *Engine) seedRows(ctx context.Context, dbName string, rows int) (int, error) {
	pool, err := e.db.ConnectDatabase(ctx, dbName)
	if err != nil {
		return 0, err
	}
	defer pool.Close()

	if _, err := pool.Exec(ctx, usersTable); err != nil {
		return 0, fmt.Errorf("failed to ensure users table: %w", err)
	}

	inserted := 0
	maxAttempts := rows * 10
	for attempts := 0; inserted < rows && attempts < maxAttempts; attempts++ {
		name := "user " + randomToken(4)
		email := fmt.Sprintf("%s_%s@example.com", randomToken(4), randomToken(3))
		username := "user_" + randomToken(4)
		bio := "generated account " + randomToken(6)

		var id int
		err := pool.QueryRow(ctx,
			`INSERT INTO users (full_name, email, username, bio)
			 VALUES ($1, $2, $3, $4)
			 ON CONFLICT DO NOTHING
			 RETURNING id`,
			name, email, username, bio).Scan(&id)
		if errors.Is(err, pgx.ErrNoRows) {
			continue // collision, try fresh values
		}
		if err != nil {
			e.log.Warn("Insert failed", "database", dbName, "error", err)
			continue
		}
		inserted++
	}

	return inserted, nil
}

func randomToken(n int) string {
	buf := make([]byte, n)
	rand.Read(buf)
	return hex.EncodeToString(buf)
}
