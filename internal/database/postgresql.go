// Package database provides the administrative PostgreSQL client and the
// argv builders for the external dump/restore tools.
package database

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"pgbackup/internal/logger"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// duplicate_database, raised by CREATE DATABASE when the target exists
const pgDuplicateDatabase = "42P04"

// PostgreSQL is an administrative connection to one server, used for
// database existence checks, idempotent creation and seeding.
type PostgreSQL struct {
	host     string
	port     int
	user     string
	password string

	pool *pgxpool.Pool
	log  logger.Logger
}

// NewPostgreSQL creates a new PostgreSQL admin client
func NewPostgreSQL(host string, port int, user, password string, log logger.Logger) *PostgreSQL {
	return &PostgreSQL{
		host:     host,
		port:     port,
		user:     user,
		password: password,
		log:      log,
	}
}

// Connect establishes the admin connection pool against the maintenance
// database.
func (p *PostgreSQL) Connect(ctx context.Context) error {
	dsn := p.buildDSN("postgres")
	p.log.Debug("Connecting to PostgreSQL", "dsn", sanitizeDSN(dsn))

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return fmt.Errorf("failed to create pgx pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return fmt.Errorf("failed to ping PostgreSQL at %s:%d: %w", p.host, p.port, err)
	}

	p.pool = pool
	return nil
}

// Close closes the admin connection pool
func (p *PostgreSQL) Close() {
	if p.pool != nil {
		p.pool.Close()
	}
}

// DatabaseExists checks if a database exists
func (p *PostgreSQL) DatabaseExists(ctx context.Context, name string) (bool, error) {
	if p.pool == nil {
		return false, fmt.Errorf("not connected to database")
	}

	var exists bool
	err := p.pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM pg_database WHERE datname = $1)`, name).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check database existence: %w", err)
	}

	return exists, nil
}

// EnsureDatabase creates the database when missing. A database that
// already exists is not an error.
func (p *PostgreSQL) EnsureDatabase(ctx context.Context, name string) error {
	if p.pool == nil {
		return fmt.Errorf("not connected to database")
	}

	// CREATE DATABASE cannot be parameterized
	_, err := p.pool.Exec(ctx, fmt.Sprintf("CREATE DATABASE %s", QuoteIdentifier(name)))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgDuplicateDatabase {
			p.log.Debug("Database already exists", "name", name)
			return nil
		}
		return fmt.Errorf("failed to create database %s: %w", name, err)
	}

	p.log.Info("Created database", "name", name)
	return nil
}

// RoleExists checks if a role exists
func (p *PostgreSQL) RoleExists(ctx context.Context, name string) (bool, error) {
	if p.pool == nil {
		return false, fmt.Errorf("not connected to database")
	}

	var exists bool
	err := p.pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM pg_roles WHERE rolname = $1)`, name).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check role existence: %w", err)
	}

	return exists, nil
}

// CreateRole creates a login role with the given password
func (p *PostgreSQL) CreateRole(ctx context.Context, name, password string) error {
	if p.pool == nil {
		return fmt.Errorf("not connected to database")
	}

	_, err := p.pool.Exec(ctx, fmt.Sprintf("CREATE ROLE %s WITH LOGIN PASSWORD %s",
		QuoteIdentifier(name), QuoteLiteral(password)))
	if err != nil {
		return fmt.Errorf("failed to create role %s: %w", name, err)
	}

	p.log.Info("Created role", "name", name)
	return nil
}

// CreateDatabaseOwned creates a database owned by the given role
func (p *PostgreSQL) CreateDatabaseOwned(ctx context.Context, name, owner string) error {
	if p.pool == nil {
		return fmt.Errorf("not connected to database")
	}

	_, err := p.pool.Exec(ctx, fmt.Sprintf("CREATE DATABASE %s OWNER %s",
		QuoteIdentifier(name), QuoteIdentifier(owner)))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgDuplicateDatabase {
			p.log.Debug("Database already exists", "name", name)
			return nil
		}
		return fmt.Errorf("failed to create database %s: %w", name, err)
	}

	p.log.Info("Created database", "name", name, "owner", owner)
	return nil
}

// GrantAllPrivileges grants all privileges on a database to a role
func (p *PostgreSQL) GrantAllPrivileges(ctx context.Context, database, role string) error {
	if p.pool == nil {
		return fmt.Errorf("not connected to database")
	}

	_, err := p.pool.Exec(ctx, fmt.Sprintf("GRANT ALL PRIVILEGES ON DATABASE %s TO %s",
		QuoteIdentifier(database), QuoteIdentifier(role)))
	if err != nil {
		return fmt.Errorf("failed to grant privileges on %s: %w", database, err)
	}

	return nil
}

// ConnectDatabase opens a separate pool against a specific database on the
// same server, with the same credentials. The caller owns the pool.
func (p *PostgreSQL) ConnectDatabase(ctx context.Context, name string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, p.buildDSN(name))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database %s: %w", name, err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database %s: %w", name, err)
	}

	return pool, nil
}

// BuildDumpCommand builds the pg_dump invocation for one database. The
// flags are a fixed contract: custom format, compression level 9, output
// to file. The password is never part of the argv; callers inject it via
// PGPASSWORD in the child environment.
func BuildDumpCommand(host string, port int, user, database, outputFile string) []string {
	return []string{
		"pg_dump",
		"-h", host,
		"-p", strconv.Itoa(port),
		"-U", user,
		"-F", "c",
		"-Z", "9",
		"-f", outputFile,
		database,
	}
}

// BuildRestoreCommand builds the pg_restore invocation for one dump
// artifact. The flags are a fixed contract: drop conflicting objects
// before recreating them, tolerate missing objects during the pre-drop
// phase, and skip ownership and access-control metadata from the source.
func BuildRestoreCommand(host string, port int, user, database, inputFile string) []string {
	return []string{
		"pg_restore",
		"-h", host,
		"-p", strconv.Itoa(port),
		"-U", user,
		"-d", database,
		"--clean",
		"--if-exists",
		"--no-owner",
		"--no-acl",
		inputFile,
	}
}

// QuoteIdentifier quotes a SQL identifier for statements that cannot be
// parameterized (CREATE DATABASE, CREATE ROLE).
func QuoteIdentifier(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// QuoteLiteral quotes a SQL string literal
func QuoteLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// buildDSN constructs the pgx connection string
func (p *PostgreSQL) buildDSN(database string) string {
	var dsn strings.Builder
	dsn.WriteString("postgres://")
	dsn.WriteString(p.user)
	if p.password != "" {
		dsn.WriteString(":")
		dsn.WriteString(p.password)
	}
	dsn.WriteString("@")
	dsn.WriteString(p.host)
	dsn.WriteString(":")
	dsn.WriteString(strconv.Itoa(p.port))
	dsn.WriteString("/")
	dsn.WriteString(database)
	dsn.WriteString("?sslmode=prefer&connect_timeout=10&application_name=pgbackup")
	return dsn.String()
}

// sanitizeDSN removes the password from a DSN for logging
func sanitizeDSN(dsn string) string {
	at := strings.LastIndex(dsn, "@")
	if at < 0 {
		return dsn
	}
	colon := strings.Index(dsn[len("postgres://"):], ":")
	if colon < 0 {
		return dsn
	}
	colon += len("postgres://")
	if colon > at {
		return dsn
	}
	return dsn[:colon] + ":***" + dsn[at:]
}
