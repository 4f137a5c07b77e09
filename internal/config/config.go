package config

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// TimestampFormat names every run's artifacts, archives and log files.
// Restore relies on this layout when recovering database identity from
// dump filenames.
const TimestampFormat = "2006-01-02_15-04-05"

// ServerTarget is one database server endpoint taken from a SERVER_* key.
// Label is the last dotted component of the host and names the server's
// archives.
type ServerTarget struct {
	Host  string
	Port  int
	Label string
}

// Credential is one entry of the numbered DB_<n>_NAME/USER/PASS family.
type Credential struct {
	Index    int
	Name     string
	User     string
	Password string
}

// Config is an immutable snapshot of one configuration file. It is built
// once per run and threaded through the orchestrators; nothing in this
// program mutates the process environment.
type Config struct {
	Servers       []ServerTarget
	Databases     []Credential
	BackupRoot    string
	LogRoot       string
	RetentionDays int

	// Administrative endpoint used by restore and seed.
	AdminHost     string
	AdminPort     int
	AdminUser     string
	AdminPassword string

	SeedRows int
}

// Load reads and resolves the configuration file at path.
func Load(path string) (*Config, error) {
	ef, err := LoadEnvFile(path, false)
	if err != nil {
		return nil, err
	}
	return FromEnvFile(ef)
}

// FromEnvFile derives the run configuration from a parsed file.
func FromEnvFile(ef *EnvFile) (*Config, error) {
	cfg := &Config{}

	for _, key := range ef.Keys() {
		if !strings.HasPrefix(key, "SERVER_") {
			continue
		}
		uri := strings.TrimSpace(ef.Get(key))
		if uri == "" {
			continue
		}
		target, err := ParseServerTarget(uri)
		if err != nil {
			return nil, &ConfigError{Field: key, Value: uri, Message: err.Error()}
		}
		cfg.Servers = append(cfg.Servers, target)
	}

	// The numbered credential family is contiguous from 1; the first
	// missing or empty DB_<n>_NAME ends the list, so a numbering gap
	// silently hides everything after it.
	for i := 1; ; i++ {
		name := ef.Get(fmt.Sprintf("DB_%d_NAME", i))
		if name == "" {
			break
		}
		cfg.Databases = append(cfg.Databases, Credential{
			Index:    i,
			Name:     name,
			User:     ef.Get(fmt.Sprintf("DB_%d_USER", i)),
			Password: ef.Get(fmt.Sprintf("DB_%d_PASS", i)),
		})
	}

	cfg.BackupRoot = ef.GetDefault("BACKUP_ROOT", "./postgres_backup")
	cfg.LogRoot = ef.GetDefault("LOG_ROOT", cfg.BackupRoot+"/pg_logs")

	retention := ef.GetDefault("RETENTION_DAYS", "7")
	days, err := strconv.Atoi(retention)
	if err != nil {
		return nil, &ConfigError{Field: "RETENTION_DAYS", Value: retention, Message: "must be an integer"}
	}
	cfg.RetentionDays = days

	cfg.AdminHost = ef.GetDefault("PG_HOST", "localhost")
	port := ef.GetDefault("PG_PORT", "5432")
	adminPort, err := strconv.Atoi(port)
	if err != nil {
		return nil, &ConfigError{Field: "PG_PORT", Value: port, Message: "must be an integer"}
	}
	cfg.AdminPort = adminPort
	cfg.AdminUser = ef.GetDefault("PG_USER", "postgres")
	cfg.AdminPassword = ef.Get("PG_PASS")

	rows := ef.GetDefault("SEED_ROWS", "100")
	seedRows, err := strconv.Atoi(rows)
	if err != nil {
		return nil, &ConfigError{Field: "SEED_ROWS", Value: rows, Message: "must be an integer"}
	}
	cfg.SeedRows = seedRows

	return cfg, nil
}

// ParseServerTarget parses a connection-URI-shaped string such as
// postgres://172.16.61.155:5432 into a ServerTarget.
func ParseServerTarget(uri string) (ServerTarget, error) {
	u, err := url.Parse(uri)
	if err != nil {
		return ServerTarget{}, fmt.Errorf("invalid server URI: %w", err)
	}

	host := u.Hostname()
	if host == "" {
		return ServerTarget{}, fmt.Errorf("server URI has no host")
	}

	port := 5432
	if p := u.Port(); p != "" {
		port, err = strconv.Atoi(p)
		if err != nil {
			return ServerTarget{}, fmt.Errorf("invalid server port %q", p)
		}
	}

	parts := strings.Split(host, ".")
	label := parts[len(parts)-1]

	return ServerTarget{Host: host, Port: port, Label: label}, nil
}

// ConfigError represents a configuration resolution error
type ConfigError struct {
	Field   string
	Value   string
	Message string
}

func (e *ConfigError) Error() string {
	return "config error in field '" + e.Field + "' with value '" + e.Value + "': " + e.Message
}
