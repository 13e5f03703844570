package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/NotCreative21/taurus/internal/backup"
	"github.com/NotCreative21/taurus/internal/backup/providers"
	"github.com/NotCreative21/taurus/internal/client"
	"github.com/NotCreative21/taurus/internal/config"
	"github.com/NotCreative21/taurus/internal/logging"
	"github.com/NotCreative21/taurus/internal/ws"
)

var (
	version  = "0.1.0"
	cfgFile  string
	port     int
	logLevel string
	relayURL string
)

var rootCmd = &cobra.Command{
	Use:           "taurus",
	Short:         "Game server chat relay",
	Long:          `taurus relays chat between tmux-hosted game servers and websocket subscribers.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the relay",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		return serve(ctx, cfg)
	},
}

var sendCmd = &cobra.Command{
	Use:   "send <session|*> <command...>",
	Short: "Send a console command to a session through a running relay",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
		defer cancel()
		return sendCommand(ctx, args[0], strings.Join(args[1:], " "))
	},
}

var backupCmd = &cobra.Command{
	Use:   "backup <session>",
	Short: "Back up a session's data directory now",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		return runBackup(cmd.Context(), cfg, args[0])
	},
}

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check the configuration file",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		fmt.Printf("config ok: %d session(s)\n", len(cfg.Sessions))
		for _, s := range cfg.Sessions {
			fmt.Printf("  %s%s\n", s.Name, describeSession(s))
		}
		return nil
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("taurus v%s\n", version)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "taurus.yaml", "config file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override log level (debug, info, warn, error)")
	serveCmd.Flags().IntVar(&port, "port", 0, "override server port")
	sendCmd.Flags().StringVar(&relayURL, "url", "ws://127.0.0.1:8080/lupus", "relay websocket URL")

	rootCmd.AddCommand(serveCmd, sendCmd, backupCmd, validateCmd, versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "taurus: %v\n", err)
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("load config %s: %w", cfgFile, err)
	}
	if port > 0 {
		cfg.Server.Port = port
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	logging.Init(cfg.Log.Format, cfg.Log.Level, os.Stderr)
	return cfg, nil
}

func describeSession(s config.Session) string {
	var parts []string
	if s.RCON != nil {
		parts = append(parts, "rcon "+s.RCON.Addr())
	} else {
		parts = append(parts, "keystrokes")
	}
	if s.Game != nil {
		parts = append(parts, "tailed")
		if s.Game.BackupInterval > 0 {
			parts = append(parts, fmt.Sprintf("backup every %d ticks", s.Game.BackupInterval))
		}
	}
	return " (" + strings.Join(parts, ", ") + ")"
}

// sendCommand connects as an ERROR-only subscriber, sends one CMD frame and
// waits briefly for a rejection.
func sendCommand(ctx context.Context, target, command string) error {
	u, err := client.WithTopics(relayURL, ws.KindError)
	if err != nil {
		return fmt.Errorf("relay url: %w", err)
	}
	c := client.New(u)
	if err := c.Connect(ctx); err != nil {
		return err
	}
	defer c.Close()

	if err := c.Send(ws.Frame{Kind: ws.KindCommand, Payload: target + " " + command}); err != nil {
		return fmt.Errorf("send: %w", err)
	}

	reply := make(chan ws.Frame, 1)
	go func() {
		if f, err := c.Read(); err == nil {
			reply <- f
		}
	}()
	select {
	case f := <-reply:
		if f.Kind == ws.KindError {
			return errors.New(f.Payload)
		}
	case <-time.After(500 * time.Millisecond):
	case <-ctx.Done():
	}
	return nil
}

func runBackup(ctx context.Context, cfg *config.Config, name string) error {
	s, ok := cfg.Session(name)
	if !ok {
		return fmt.Errorf("unknown session %q", name)
	}
	if s.Game == nil || s.Game.FilePath == "" {
		return fmt.Errorf("session %q has no game.file_path to back up", name)
	}
	provider, err := providers.FromConfig(ctx, cfg.Backup)
	if err != nil {
		return err
	}
	res, err := backup.NewManager(provider).Run(ctx, s.Name, s.Game.FilePath, s.Game.BackupKeep)
	if res != nil {
		fmt.Printf("%s: %d files, %d bytes, pruned %d, took %s\n",
			res.RemotePath, res.Files, res.Bytes, res.Pruned, res.Duration.Round(time.Millisecond))
	}
	return err
}
