package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")

	yaml := `
server:
  port: 9090
relay:
  poll_interval: 500ms
sessions:
  - name: surv
    rcon:
      port: 25575
      password: hunter2
    game:
      file_path: /srv/surv/world
      backup_interval: 3600
      backup_keep: 24
  - name: creative
    game:
      file_path: /srv/creative/world
      capture_suffix: console.log
`
	if err := os.WriteFile(cfgPath, []byte(yaml), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(cfgPath)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Errorf("Server.Port = %d, want 9090", cfg.Server.Port)
	}
	if cfg.Server.Path != "/lupus" {
		t.Errorf("Server.Path = %q, want default /lupus", cfg.Server.Path)
	}
	if cfg.Relay.PollInterval != 500*time.Millisecond {
		t.Errorf("Relay.PollInterval = %v, want 500ms", cfg.Relay.PollInterval)
	}
	// Defaults should still be applied for unspecified fields.
	if cfg.Relay.MaintenanceInterval != time.Second {
		t.Errorf("Relay.MaintenanceInterval = %v, want 1s", cfg.Relay.MaintenanceInterval)
	}
	if len(cfg.Sessions) != 2 {
		t.Fatalf("len(Sessions) = %d, want 2", len(cfg.Sessions))
	}

	surv, ok := cfg.Session("surv")
	if !ok {
		t.Fatal("Session(surv) not found")
	}
	if surv.RCON == nil || surv.RCON.Password != "hunter2" {
		t.Fatalf("surv.RCON = %+v, want password hunter2", surv.RCON)
	}
	if got := surv.RCON.Addr(); got != "127.0.0.1:25575" {
		t.Errorf("surv.RCON.Addr() = %q, want 127.0.0.1:25575", got)
	}
	if surv.Game.BackupInterval != 3600 || surv.Game.BackupKeep != 24 {
		t.Errorf("surv.Game = %+v", surv.Game)
	}
	if got := cfg.CaptureSuffix(surv); got != "taurus.log" {
		t.Errorf("CaptureSuffix(surv) = %q, want taurus.log", got)
	}

	creative, _ := cfg.Session("creative")
	if creative.RCON != nil {
		t.Error("creative.RCON should be nil")
	}
	if got := cfg.CaptureSuffix(creative); got != "console.log" {
		t.Errorf("CaptureSuffix(creative) = %q, want console.log", got)
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	if err == nil {
		t.Fatal("Load() on missing file should return error")
	}
}

func TestParseInvalidYAML(t *testing.T) {
	_, err := Parse([]byte(":::not valid yaml"))
	if err == nil {
		t.Fatal("Parse() with invalid YAML should return error")
	}
}

func TestParseNoSessions(t *testing.T) {
	_, err := Parse([]byte("server:\n  port: 8080\n"))
	if !errors.Is(err, ErrNoSessions) {
		t.Fatalf("Parse() error = %v, want ErrNoSessions", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{
			name:    "MissingName",
			yaml:    "sessions:\n  - game: {file_path: /x}\n",
			wantErr: "name is required",
		},
		{
			name:    "DuplicateName",
			yaml:    "sessions:\n  - name: a\n  - name: a\n",
			wantErr: "duplicate session name",
		},
		{
			name:    "BadRCONPort",
			yaml:    "sessions:\n  - name: a\n    rcon: {port: 70000}\n",
			wantErr: "out of range",
		},
		{
			name:    "ZeroPollInterval",
			yaml:    "relay: {poll_interval: 0s}\nsessions:\n  - name: a\n",
			wantErr: "poll_interval",
		},
		{
			name:    "UnknownProvider",
			yaml:    "backup: {provider: ftp}\nsessions:\n  - name: a\n",
			wantErr: "unknown backup provider",
		},
		{
			name:    "S3WithoutBucket",
			yaml:    "backup: {provider: s3}\nsessions:\n  - name: a\n",
			wantErr: "bucket and region",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			if err == nil {
				t.Fatalf("Parse() error = nil, want %q", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Parse() error = %q, want substring %q", err, tt.wantErr)
			}
		})
	}
}

func TestRCONAddrExplicitHost(t *testing.T) {
	r := &RCONConfig{Address: "10.0.0.5", Port: 27015}
	if got := r.Addr(); got != "10.0.0.5:27015" {
		t.Errorf("Addr() = %q, want 10.0.0.5:27015", got)
	}
}
