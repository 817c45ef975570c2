package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/daviddao/triadic/pkg/config"
	"github.com/daviddao/triadic/pkg/kvstore"
	"github.com/daviddao/triadic/pkg/store"
)

// app holds shared state for all subcommands.
type app struct {
	cfg    *config.Config
	store  *store.Store
	logger *slog.Logger
	out    io.Writer
}

// loadConfig resolves the effective configuration: file, environment, then
// the persistent flags.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	if db, _ := cmd.Flags().GetString("db"); db != "" {
		cfg.Database.Path = db
	}
	if lvl, _ := cmd.Flags().GetString("log-level"); lvl != "" {
		cfg.Log.Level = lvl
	}
	return cfg, nil
}

// newApp loads and validates the configuration and opens the database.
func newApp(cmd *cobra.Command) (*app, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	logger, err := newLogger(cfg.Log, cmd.ErrOrStderr())
	if err != nil {
		return nil, err
	}
	s, err := store.New(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("cannot open database %q: %w", cfg.Database.Path, err)
	}
	return &app{cfg: cfg, store: s, logger: logger, out: cmd.OutOrStdout()}, nil
}

// Close releases the database connection.
func (a *app) Close() { a.store.Close() }

// openSink returns the configured motif store and a function releasing it.
func (a *app) openSink() (store.MotifStore, func(), error) {
	switch a.cfg.Sink.Kind {
	case config.SinkBadger:
		kv, err := kvstore.Open(kvstore.Options{Dir: a.cfg.Sink.BadgerDir})
		if err != nil {
			return nil, nil, err
		}
		return kv, func() { kv.Close() }, nil
	default:
		return a.store, func() {}, nil
	}
}

// applySinkFlags lets --sink and --badger-dir override the configuration.
func (a *app) applySinkFlags(cmd *cobra.Command) error {
	if cmd.Flags().Changed("sink") {
		a.cfg.Sink.Kind, _ = cmd.Flags().GetString("sink")
	}
	if cmd.Flags().Changed("badger-dir") {
		a.cfg.Sink.BadgerDir, _ = cmd.Flags().GetString("badger-dir")
	}
	return a.cfg.Validate()
}

func addSinkFlags(cmd *cobra.Command) {
	cmd.Flags().String("sink", "", "Motif sink: sqlite or badger")
	cmd.Flags().String("badger-dir", "", "Badger data directory (badger sink)")
}

func newLogger(cfg config.Log, w io.Writer) (*slog.Logger, error) {
	level, err := config.ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	}
	return slog.New(slog.NewTextHandler(w, opts)), nil
}

func printJSON(w io.Writer, v any) {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		fmt.Fprintf(os.Stderr, "triad: json encode: %v\n", err)
	}
}
