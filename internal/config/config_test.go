package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestJWTConfigValidate(t *testing.T) {
	long := strings.Repeat("a", MinSecretLength)
	other := strings.Repeat("b", MinSecretLength)

	cases := []struct {
		name    string
		cfg     JWTConfig
		wantErr bool
	}{
		{name: "valid", cfg: JWTConfig{AccessSecret: long, RefreshSecret: other}},
		{name: "missing access", cfg: JWTConfig{RefreshSecret: other}, wantErr: true},
		{name: "missing refresh", cfg: JWTConfig{AccessSecret: long}, wantErr: true},
		{name: "short access", cfg: JWTConfig{AccessSecret: "short", RefreshSecret: other}, wantErr: true},
		{name: "identical", cfg: JWTConfig{AccessSecret: long, RefreshSecret: long}, wantErr: true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.cfg.Validate()
			if tc.wantErr && !errors.Is(err, ErrWeakSecrets) {
				t.Fatalf("expected ErrWeakSecrets got %v", err)
			}
			if !tc.wantErr && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return dir
}

func TestLoadConfigDefaults(t *testing.T) {
	dir := writeConfig(t, `
server:
  mode: test
storage:
  type: minio
jwt:
  access_secret: "`+strings.Repeat("x", 40)+`"
  refresh_secret: "`+strings.Repeat("y", 40)+`"
`)

	cfg, err := LoadConfig(dir)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.JWT.AccessTTL() != 15*time.Minute {
		t.Fatalf("expected 15m access ttl got %s", cfg.JWT.AccessTTL())
	}
	if cfg.JWT.RefreshTTL() != 7*24*time.Hour {
		t.Fatalf("expected 7d refresh ttl got %s", cfg.JWT.RefreshTTL())
	}
	socket := cfg.RateLimit.Socket
	if socket.Window() != time.Second || socket.MaxEvents != 15 || socket.Block() != 30*time.Second {
		t.Fatalf("unexpected socket limit defaults: %+v", socket)
	}
}

func TestLoadConfigRefusesWeakSecrets(t *testing.T) {
	dir := writeConfig(t, `
storage:
  type: minio
jwt:
  access_secret: "too-short"
  refresh_secret: "too-short"
`)

	if _, err := LoadConfig(dir); !errors.Is(err, ErrWeakSecrets) {
		t.Fatalf("expected ErrWeakSecrets got %v", err)
	}
}
