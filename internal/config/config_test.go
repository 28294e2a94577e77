package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"todo-sync-go/internal/domain/todos"
	"todo-sync-go/pkg/logger"
)

func TestParseEnvLine(t *testing.T) {
	cases := []struct {
		line  string
		key   string
		value string
		ok    bool
	}{
		{`TODO_PATH=todos`, "TODO_PATH", "todos", true},
		{`export TODO_PATH=todos`, "TODO_PATH", "todos", true},
		{`TODO_PATH = "shared/todos"`, "TODO_PATH", "shared/todos", true},
		{`TOKEN='abc#def'`, "TOKEN", "abc#def", true},
		{`HTTP_PORT=9090 # local`, "HTTP_PORT", "9090", true},
		{`COLOR=#fff`, "COLOR", "#fff", true},
		{`EMPTY=`, "EMPTY", "", true},
		{`=value`, "", "", false},
		{`BAD KEY=value`, "", "", false},
		{`no separator`, "", "", false},
	}

	for _, tc := range cases {
		key, value, ok := parseEnvLine(tc.line)
		if key != tc.key || value != tc.value || ok != tc.ok {
			t.Fatalf("parseEnvLine(%q) = %q, %q, %v", tc.line, key, value, ok)
		}
	}
}

func TestReadEnvEntriesReportsMalformedLines(t *testing.T) {
	content := "# comment\n\nTODO_PATH=todos\nnot an assignment\nexport TODO_ORDER=store\n"

	entries, malformed, err := readEnvEntries(strings.NewReader(content))
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if len(entries) != 2 || entries[0].key != "TODO_PATH" || entries[1].line != 5 {
		t.Fatalf("unexpected entries %+v", entries)
	}
	if len(malformed) != 1 || malformed[0] != 4 {
		t.Fatalf("expected line 4 malformed, got %v", malformed)
	}
}

func TestEnvFileKeepsExistingEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "todo-sync.env")
	content := "export TODO_SYNC_TEST_A=from-file\nTODO_SYNC_TEST_B=from-file\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write env file: %v", err)
	}

	t.Setenv(envFileVar, path)
	t.Setenv("TODO_SYNC_TEST_B", "from-env")
	t.Setenv("TODO_SYNC_TEST_A", "")
	os.Unsetenv("TODO_SYNC_TEST_A")

	if err := loadDotEnv(logger.NewDiscard()); err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if got := os.Getenv("TODO_SYNC_TEST_A"); got != "from-file" {
		t.Fatalf("expected value from file, got %q", got)
	}
	if got := os.Getenv("TODO_SYNC_TEST_B"); got != "from-env" {
		t.Fatalf("existing env must win, got %q", got)
	}
}

func TestExplicitEnvFileMustExist(t *testing.T) {
	t.Setenv(envFileVar, filepath.Join(t.TempDir(), "missing.env"))

	if err := loadDotEnv(logger.NewDiscard()); !errors.Is(err, ErrMissingDotEnv) {
		t.Fatalf("expected ErrMissingDotEnv, got %v", err)
	}
}

func TestMissingDotEnvIsNotAnError(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv(envFileVar, "")

	if err := loadDotEnv(logger.NewDiscard()); err != nil {
		t.Fatalf("expected no error without .env, got %v", err)
	}
}

func TestLoadDefaults(t *testing.T) {
	chdir(t, t.TempDir())
	for _, key := range []string{"HTTP_PORT", "DB_DRIVER", "TODO_PATH", "TODO_ORDER", "CORS_ALLOWED_ORIGINS", "STREAM_PING_INTERVAL"} {
		t.Setenv(key, "")
	}

	cfg, err := Load(logger.NewDiscard())
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.HTTPPort != "8080" || cfg.DB.Driver != DriverPostgres {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
	if cfg.Todo.Path != "todos" || cfg.Todo.Order != todos.OrderNewestFirst {
		t.Fatalf("unexpected todo config %+v", cfg.Todo)
	}
	if cfg.HTTP.StreamPingInterval != 30*time.Second {
		t.Fatalf("unexpected ping interval %s", cfg.HTTP.StreamPingInterval)
	}
	if len(cfg.HTTP.AllowedOrigins) != 1 || cfg.HTTP.AllowedOrigins[0] != "http://localhost:5173" {
		t.Fatalf("unexpected origins %v", cfg.HTTP.AllowedOrigins)
	}
}

func TestLoadOverrides(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("DB_DRIVER", "SQLite")
	t.Setenv("TODO_ORDER", "store")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, ,https://b.example")
	t.Setenv("STREAM_PING_INTERVAL", "not-a-duration")

	cfg, err := Load(logger.NewDiscard())
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.DB.Driver != DriverSQLite || cfg.Todo.Order != todos.OrderStore {
		t.Fatalf("unexpected config %+v", cfg)
	}
	if len(cfg.HTTP.AllowedOrigins) != 2 || cfg.HTTP.AllowedOrigins[1] != "https://b.example" {
		t.Fatalf("unexpected origins %v", cfg.HTTP.AllowedOrigins)
	}
	if cfg.HTTP.StreamPingInterval != 30*time.Second {
		t.Fatalf("invalid duration must fall back, got %s", cfg.HTTP.StreamPingInterval)
	}
}

func TestLoadRejectsUnknownValues(t *testing.T) {
	chdir(t, t.TempDir())

	t.Setenv("DB_DRIVER", "mysql")
	if _, err := Load(logger.NewDiscard()); err == nil {
		t.Fatalf("expected error for unknown driver")
	}

	t.Setenv("DB_DRIVER", "memory")
	t.Setenv("TODO_ORDER", "oldest")
	if _, err := Load(logger.NewDiscard()); err == nil {
		t.Fatalf("expected error for unknown order")
	}
}

func TestDBConfigDSN(t *testing.T) {
	cfg := DBConfig{Host: "db", User: "u", Password: "p", Name: "n", Port: "5432", SSLMode: "disable", TimeZone: "UTC"}
	want := "host=db user=u password=p dbname=n port=5432 sslmode=disable TimeZone=UTC"
	if got := cfg.GetDSN(); got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}

	cfg.DSN = "postgres://explicit"
	if got := cfg.GetDSN(); got != "postgres://explicit" {
		t.Fatalf("explicit DSN must win, got %q", got)
	}
}

// chdir changes the working directory for the duration of the test
// (equivalent of testing.T.Chdir, which requires Go 1.24).
func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("chdir: %v", err)
	}
	t.Cleanup(func() {
		if err := os.Chdir(prev); err != nil {
			t.Fatalf("restore working directory: %v", err)
		}
	})
}
