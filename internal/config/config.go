package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultRCONAddress is dialed when a session's rcon block omits the address.
const DefaultRCONAddress = "127.0.0.1"

var ErrNoSessions = errors.New("no sessions configured")

type Config struct {
	Server   ServerConfig `yaml:"server"`
	Log      LogConfig    `yaml:"log"`
	Relay    RelayConfig  `yaml:"relay"`
	Backup   BackupConfig `yaml:"backup"`
	Sessions []Session    `yaml:"sessions"`
}

type ServerConfig struct {
	Port int    `yaml:"port"`
	Host string `yaml:"host"`
	Path string `yaml:"path"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type RelayConfig struct {
	PollInterval        time.Duration `yaml:"poll_interval"`
	MaintenanceInterval time.Duration `yaml:"maintenance_interval"`
	StatusEvery         int           `yaml:"status_every"`
	CaptureDir          string        `yaml:"capture_dir"`
	CaptureSuffix       string        `yaml:"capture_suffix"`
	RCONTimeout         time.Duration `yaml:"rcon_timeout"`
	Workers             int           `yaml:"workers"`
	QueueSize           int           `yaml:"queue_size"`
}

type BackupConfig struct {
	Location string   `yaml:"location"`
	Provider string   `yaml:"provider"`
	S3       S3Config `yaml:"s3"`
}

type S3Config struct {
	Bucket          string `yaml:"bucket"`
	Region          string `yaml:"region"`
	Prefix          string `yaml:"prefix"`
	Endpoint        string `yaml:"endpoint"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
}

// Session is one tmux-hosted game server.
type Session struct {
	Name string      `yaml:"name"`
	RCON *RCONConfig `yaml:"rcon,omitempty"`
	Game *GameConfig `yaml:"game,omitempty"`
}

type RCONConfig struct {
	Address  string `yaml:"address"`
	Port     int    `yaml:"port"`
	Password string `yaml:"password"`
}

// Addr returns host:port, falling back to DefaultRCONAddress.
func (r *RCONConfig) Addr() string {
	host := r.Address
	if host == "" {
		host = DefaultRCONAddress
	}
	return fmt.Sprintf("%s:%d", host, r.Port)
}

type GameConfig struct {
	FilePath       string `yaml:"file_path"`
	BackupInterval int    `yaml:"backup_interval"`
	BackupKeep     int    `yaml:"backup_keep"`
	CaptureSuffix  string `yaml:"capture_suffix"`
}

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port: 8080,
			Host: "0.0.0.0",
			Path: "/lupus",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Relay: RelayConfig{
			PollInterval:        250 * time.Millisecond,
			MaintenanceInterval: time.Second,
			StatusEvery:         30,
			CaptureDir:          "/tmp",
			CaptureSuffix:       "taurus.log",
			RCONTimeout:         5 * time.Second,
			Workers:             4,
			QueueSize:           64,
		},
		Backup: BackupConfig{
			Location: "./backups",
			Provider: "local",
		},
	}
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Parse decodes YAML over the defaults and validates the result.
func Parse(data []byte) (*Config, error) {
	cfg := defaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if len(c.Sessions) == 0 {
		return ErrNoSessions
	}
	if c.Relay.PollInterval <= 0 {
		return fmt.Errorf("relay.poll_interval must be positive, got %v", c.Relay.PollInterval)
	}
	if c.Relay.MaintenanceInterval <= 0 {
		return fmt.Errorf("relay.maintenance_interval must be positive, got %v", c.Relay.MaintenanceInterval)
	}
	if c.Relay.StatusEvery < 0 {
		return fmt.Errorf("relay.status_every must not be negative, got %d", c.Relay.StatusEvery)
	}
	if c.Relay.Workers < 1 {
		return fmt.Errorf("relay.workers must be at least 1, got %d", c.Relay.Workers)
	}
	switch c.Backup.Provider {
	case "local":
	case "s3":
		if c.Backup.S3.Bucket == "" || c.Backup.S3.Region == "" {
			return errors.New("backup.s3 requires bucket and region")
		}
	default:
		return fmt.Errorf("unknown backup provider %q", c.Backup.Provider)
	}

	seen := make(map[string]bool, len(c.Sessions))
	for i, s := range c.Sessions {
		if s.Name == "" {
			return fmt.Errorf("sessions[%d]: name is required", i)
		}
		if seen[s.Name] {
			return fmt.Errorf("sessions[%d]: duplicate session name %q", i, s.Name)
		}
		seen[s.Name] = true
		if s.RCON != nil && (s.RCON.Port < 1 || s.RCON.Port > 65535) {
			return fmt.Errorf("session %q: rcon port %d out of range", s.Name, s.RCON.Port)
		}
		if s.Game != nil && s.Game.BackupInterval < 0 {
			return fmt.Errorf("session %q: backup_interval must not be negative", s.Name)
		}
	}
	return nil
}

// Session returns the named session.
func (c *Config) Session(name string) (Session, bool) {
	for _, s := range c.Sessions {
		if s.Name == name {
			return s, true
		}
	}
	return Session{}, false
}

// CaptureSuffix returns the per-session suffix, falling back to the relay default.
func (c *Config) CaptureSuffix(s Session) string {
	if s.Game != nil && s.Game.CaptureSuffix != "" {
		return s.Game.CaptureSuffix
	}
	return c.Relay.CaptureSuffix
}
