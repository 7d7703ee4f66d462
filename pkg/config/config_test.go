package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadFileWithEnvOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := `
env: dev
calendar:
  default_calendar_id: team@example.com
  user_calendar_map: "alice:cal-a"
sync:
  interval: 5m
google:
  credentials_file: /etc/taskflow/credentials.json
  token_file: /etc/taskflow/token.json
`
	if err := os.WriteFile(path, []byte(body), 0600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("GLOBAL_VERIFIERS", "boss,auditor")
	t.Setenv("USER_CALENDAR_MAP", "bob:cal-b")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Env != EnvDev || cfg.Calendar.DefaultCalendarID != "team@example.com" {
		t.Errorf("file values not read: %+v", cfg)
	}
	if cfg.Calendar.UserCalendarMap != "bob:cal-b" || cfg.Calendar.GlobalVerifiers != "boss,auditor" {
		t.Errorf("env should override file: %+v", cfg.Calendar)
	}
	if cfg.Sync.Interval != 5*time.Minute {
		t.Errorf("Interval = %v", cfg.Sync.Interval)
	}
	if cfg.Reminder.Cooldown() != 12*time.Hour || cfg.Calendar.Lookback() != 7*24*time.Hour {
		t.Errorf("defaults not applied: %+v %+v", cfg.Reminder, cfg.Calendar)
	}
	if cfg.Postgres.Enabled() || cfg.Redis.Enabled() {
		t.Error("postgres and redis should be disabled without hosts")
	}
}

func TestLoadMissingFileUsesEnv(t *testing.T) {
	t.Setenv("ENV", "prod")
	t.Setenv("DEFAULT_CALENDAR_ID", "team")
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Env != EnvProd || cfg.Calendar.DefaultCalendarID != "team" || cfg.HTTP.Port != "8080" {
		t.Errorf("unexpected config: %+v", cfg)
	}
	if cfg.Google.TokenFile == "" || !strings.HasSuffix(cfg.Google.TokenFile, "token.json") {
		t.Errorf("token path not defaulted: %q", cfg.Google.TokenFile)
	}
}

func TestLoadRejectsUnknownEnv(t *testing.T) {
	t.Setenv("ENV", "staging")
	if _, err := Load(""); err == nil {
		t.Fatal("expected error for unknown env")
	}
}

func TestSaveAndLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile on missing file: %v", err)
	}
	cfg.Calendar.DefaultCalendarID = "team@example.com"
	cfg.Sync.Interval = 2 * time.Minute
	if err := Save(path, cfg); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	b, _ := os.ReadFile(path)
	if !strings.Contains(string(b), "default_calendar_id: team@example.com") || !strings.Contains(string(b), "interval: 2m0s") {
		t.Errorf("unexpected file:\n%s", b)
	}
	again, err := LoadFile(path)
	if err != nil || again.Calendar.DefaultCalendarID != "team@example.com" || again.Sync.Interval != 2*time.Minute {
		t.Errorf("LoadFile = %+v, %v", again, err)
	}
}

func TestConnURL(t *testing.T) {
	c := PostgresConfig{Host: "db", Port: 5432, Username: "app", Password: "p@ss", Database: "taskflow", SSLMode: "disable"}
	want := "postgres://app:p%40ss@db:5432/taskflow?sslmode=disable"
	if got := c.ConnURL(); got != want {
		t.Errorf("ConnURL = %q, want %q", got, want)
	}
}
