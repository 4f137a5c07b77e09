package restore

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"pgbackup/internal/config"
	"pgbackup/internal/logger"
	"pgbackup/internal/runner"
)

func TestRestoreOutcome_Succeeded(t *testing.T) {
	tests := []struct {
		name    string
		outcome RestoreOutcome
		want    bool
	}{
		{
			name:    "clean exit",
			outcome: RestoreOutcome{ExitCode: 0},
			want:    true,
		},
		{
			name: "non-zero exit with ignored errors",
			outcome: RestoreOutcome{
				ExitCode: 2,
				Output:   "pg_restore: warning: errors ignored on restore: 3",
			},
			want: true,
		},
		{
			name: "non-zero exit with real errors",
			outcome: RestoreOutcome{
				ExitCode: 2,
				Output:   "pg_restore: error: could not connect to server",
			},
			want: false,
		},
		{
			name:    "failed to start",
			outcome: RestoreOutcome{ExitCode: -1, Err: os.ErrNotExist},
			want:    false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.outcome.Succeeded(); got != tt.want {
				t.Errorf("Succeeded() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDiscoverDumps(t *testing.T) {
	root := t.TempDir()
	nested := filepath.Join(root, "extracted", "tmp_backup_10.0.0.5")
	if err := os.MkdirAll(nested, 0755); err != nil {
		t.Fatal(err)
	}
	for _, f := range []string{
		filepath.Join(root, "zeta_2024-01-02_03-04-05.dump"),
		filepath.Join(nested, "alpha_2024-01-02_03-04-05.dump"),
		filepath.Join(root, "README.txt"),
		filepath.Join(root, "backup.tar.gz"),
	} {
		if err := os.WriteFile(f, []byte("x"), 0644); err != nil {
			t.Fatal(err)
		}
	}

	dumps, err := DiscoverDumps(root)
	if err != nil {
		t.Fatalf("DiscoverDumps() error = %v", err)
	}

	want := []string{
		filepath.Join(nested, "alpha_2024-01-02_03-04-05.dump"),
		filepath.Join(root, "zeta_2024-01-02_03-04-05.dump"),
	}
	if !reflect.DeepEqual(dumps, want) {
		t.Errorf("DiscoverDumps() = %v, want %v", dumps, want)
	}
}

// creatorStub records EnsureDatabase calls and optionally fails them.
type creatorStub struct {
	created []string
	err     error
}

func (c *creatorStub) EnsureDatabase(_ context.Context, name string) error {
	c.created = append(c.created, name)
	return c.err
}

// fakePgRestore puts a pg_restore stand-in on PATH. Restores into "broken"
// fail hard; restores into "dirty" exit 1 but report only ignored errors.
func fakePgRestore(t *testing.T) {
	t.Helper()
	binDir := t.TempDir()
	script := `#!/bin/sh
db=""
while [ $# -gt 0 ]; do
	case "$1" in
	-d) db="$2"; shift ;;
	-h|-p|-U) shift ;;
	esac
	shift
done
case "$db" in
broken)
	echo "pg_restore: error: could not execute query" 1>&2
	exit 1
	;;
dirty)
	echo "pg_restore: warning: errors ignored on restore: 2" 1>&2
	exit 1
	;;
esac
exit 0
`
	if err := os.WriteFile(filepath.Join(binDir, "pg_restore"), []byte(script), 0755); err != nil {
		t.Fatalf("Failed to install fake pg_restore: %v", err)
	}
	t.Setenv("PATH", binDir+string(os.PathListSeparator)+os.Getenv("PATH"))
}

func restoreConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		LogRoot:       filepath.Join(t.TempDir(), "logs"),
		AdminHost:     "localhost",
		AdminPort:     5432,
		AdminUser:     "postgres",
		AdminPassword: "s3cret",
	}
}

func writeDump(t *testing.T, dir, name string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte("PGDMP"), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestRun_RestoresEveryDumpAndTallies(t *testing.T) {
	fakePgRestore(t)
	cfg := restoreConfig(t)

	root := t.TempDir()
	writeDump(t, root, "alpha_2024-05-06_07-08-09.dump")
	writeDump(t, root, "broken_2024-05-06_07-08-09.dump")
	writeDump(t, root, "dirty_2024-05-06_07-08-09.dump")

	creator := &creatorStub{}
	log := logger.NewNullLogger()
	engine := New(cfg, log, creator, runner.New(log))

	timestamp := "2024-05-06_07-08-09"
	summary, err := engine.Run(context.Background(), root, timestamp)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if summary.Success != 2 || summary.Fail != 1 {
		t.Errorf("summary = %d/%d, want 2/1", summary.Success, summary.Fail)
	}
	if !reflect.DeepEqual(summary.FailedDB, []string{"broken"}) {
		t.Errorf("FailedDB = %v, want [broken]", summary.FailedDB)
	}
	if !reflect.DeepEqual(creator.created, []string{"alpha", "broken", "dirty"}) {
		t.Errorf("created databases = %v", creator.created)
	}

	logPath := filepath.Join(cfg.LogRoot, "restore_"+timestamp+".log")
	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("restore log missing: %v", err)
	}
	content := string(data)
	if !strings.Contains(content, "=== Running: pg_restore") {
		t.Errorf("restore log missing command marker:\n%s", content)
	}
	if strings.Contains(content, "s3cret") {
		t.Errorf("password leaked into restore log")
	}
}

func TestRun_CreationFailureOnlyWarns(t *testing.T) {
	fakePgRestore(t)
	cfg := restoreConfig(t)

	root := t.TempDir()
	writeDump(t, root, "alpha_2024-05-06_07-08-09.dump")

	creator := &creatorStub{err: errors.New("permission denied")}
	log := logger.NewNullLogger()
	engine := New(cfg, log, creator, runner.New(log))

	summary, err := engine.Run(context.Background(), root, "2024-05-06_07-08-09")
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if summary.Success != 1 || summary.Fail != 0 {
		t.Errorf("summary = %d/%d, want 1/0", summary.Success, summary.Fail)
	}
}

func TestRun_NoDumpsIsFatal(t *testing.T) {
	cfg := restoreConfig(t)

	creator := &creatorStub{}
	log := logger.NewNullLogger()
	engine := New(cfg, log, creator, runner.New(log))

	_, err := engine.Run(context.Background(), t.TempDir(), "2024-05-06_07-08-09")
	if err == nil {
		t.Fatal("expected error for empty restore root")
	}
	if !strings.Contains(err.Error(), "no .dump files found") {
		t.Errorf("unexpected error: %v", err)
	}
}
