package config

import (
	"errors"
	"testing"
)

func loadConfig(t *testing.T, content string) (*Config, error) {
	t.Helper()
	ef, err := LoadEnvFile(writeEnvFile(t, content), false)
	if err != nil {
		t.Fatalf("LoadEnvFile() error = %v", err)
	}
	return FromEnvFile(ef)
}

func TestParseServerTarget(t *testing.T) {
	tests := []struct {
		name     string
		uri      string
		wantHost string
		wantPort int
		wantLbl  string
		wantErr  bool
	}{
		{
			name:     "full URI",
			uri:      "postgres://172.16.61.155:5432",
			wantHost: "172.16.61.155",
			wantPort: 5432,
			wantLbl:  "155",
		},
		{
			name:     "port defaults to 5432",
			uri:      "postgres://172.16.61.156",
			wantHost: "172.16.61.156",
			wantPort: 5432,
			wantLbl:  "156",
		},
		{
			name:     "hostname label is last dotted component",
			uri:      "postgres://db1.fleet.internal:5433",
			wantHost: "db1.fleet.internal",
			wantPort: 5433,
			wantLbl:  "internal",
		},
		{
			name:     "bare hostname",
			uri:      "postgres://pgserver",
			wantHost: "pgserver",
			wantPort: 5432,
			wantLbl:  "pgserver",
		},
		{
			name:    "no host",
			uri:     "postgres://",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseServerTarget(tt.uri)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("ParseServerTarget(%s) expected error, got %+v", tt.uri, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseServerTarget(%s) error = %v", tt.uri, err)
			}
			if got.Host != tt.wantHost || got.Port != tt.wantPort || got.Label != tt.wantLbl {
				t.Errorf("ParseServerTarget(%s) = %+v, want {%s %d %s}",
					tt.uri, got, tt.wantHost, tt.wantPort, tt.wantLbl)
			}
		})
	}
}

func TestFromEnvFile_ServersInFileOrder(t *testing.T) {
	cfg, err := loadConfig(t, `
SERVER_B=postgres://172.16.61.156:5432
SERVER_A=postgres://172.16.61.155:5432
`)
	if err != nil {
		t.Fatalf("FromEnvFile() error = %v", err)
	}

	if len(cfg.Servers) != 2 {
		t.Fatalf("expected 2 servers, got %d", len(cfg.Servers))
	}
	if cfg.Servers[0].Host != "172.16.61.156" || cfg.Servers[1].Host != "172.16.61.155" {
		t.Errorf("servers out of file order: %+v", cfg.Servers)
	}
}

func TestFromEnvFile_CredentialEnumeration(t *testing.T) {
	cfg, err := loadConfig(t, `
DB_1_NAME=alpha
DB_1_USER=alpha_user
DB_1_PASS=secret
DB_2_NAME=beta
DB_2_USER=beta_user
`)
	if err != nil {
		t.Fatalf("FromEnvFile() error = %v", err)
	}

	if len(cfg.Databases) != 2 {
		t.Fatalf("expected exactly 2 credentials, got %d", len(cfg.Databases))
	}
	first := cfg.Databases[0]
	if first.Index != 1 || first.Name != "alpha" || first.User != "alpha_user" || first.Password != "secret" {
		t.Errorf("unexpected first credential: %+v", first)
	}
	second := cfg.Databases[1]
	if second.Index != 2 || second.Name != "beta" || second.Password != "" {
		t.Errorf("unexpected second credential: %+v", second)
	}
}

func TestFromEnvFile_CredentialGapEndsEnumeration(t *testing.T) {
	cfg, err := loadConfig(t, `
DB_1_NAME=alpha
DB_3_NAME=gamma
`)
	if err != nil {
		t.Fatalf("FromEnvFile() error = %v", err)
	}

	// The missing DB_2_NAME ends the list; DB_3 is never consulted.
	if len(cfg.Databases) != 1 || cfg.Databases[0].Name != "alpha" {
		t.Errorf("expected enumeration to stop at the gap, got %+v", cfg.Databases)
	}
}

func TestFromEnvFile_Defaults(t *testing.T) {
	cfg, err := loadConfig(t, "SERVER_1=postgres://10.0.0.1\n")
	if err != nil {
		t.Fatalf("FromEnvFile() error = %v", err)
	}

	if cfg.BackupRoot != "./postgres_backup" {
		t.Errorf("BackupRoot = %q", cfg.BackupRoot)
	}
	if cfg.LogRoot != "./postgres_backup/pg_logs" {
		t.Errorf("LogRoot = %q", cfg.LogRoot)
	}
	if cfg.RetentionDays != 7 {
		t.Errorf("RetentionDays = %d, want 7", cfg.RetentionDays)
	}
	if cfg.AdminHost != "localhost" || cfg.AdminPort != 5432 || cfg.AdminUser != "postgres" {
		t.Errorf("unexpected admin defaults: %s:%d user %s", cfg.AdminHost, cfg.AdminPort, cfg.AdminUser)
	}
	if cfg.SeedRows != 100 {
		t.Errorf("SeedRows = %d, want 100", cfg.SeedRows)
	}
}

func TestFromEnvFile_InvalidRetention(t *testing.T) {
	_, err := loadConfig(t, "RETENTION_DAYS=soon\n")
	if err == nil {
		t.Fatal("expected error for non-integer RETENTION_DAYS")
	}

	var cfgErr *ConfigError
	if !errors.As(err, &cfgErr) {
		t.Errorf("expected *ConfigError, got %T", err)
	}
}
