package cli

import (
	"errors"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/Joseda-hg/lazytracker/internal/config"
	"github.com/Joseda-hg/lazytracker/internal/storage"
	"github.com/Joseda-hg/lazytracker/internal/tracker"
)

// session is the state one command works on.
type session struct {
	cfg      config.Config
	backend  storage.Backend
	manager  *tracker.Manager
	autosave *storage.Autosave
	logger   *slog.Logger
}

func openSession(cmd *cobra.Command, opts *RootOptions) (*session, error) {
	configPath, err := resolveConfigPath(opts.ConfigPath)
	if err != nil {
		return nil, err
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	cfg = applyOverrides(cfg, opts).WithDefaults(configPath)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := config.Save(configPath, cfg); err != nil {
		return nil, err
	}

	logger, err := newLogger(cmd, opts, cfg)
	if err != nil {
		return nil, err
	}

	ctx := cmd.Context()
	logger.Debug("opening storage", "backend", cfg.Storage.Backend, "path", cfg.Storage.Path)
	backend, err := storage.Open(ctx, cfg)
	if err != nil {
		return nil, err
	}

	manager, err := storage.LoadManager(ctx, backend,
		tracker.WithHistoryLimit(cfg.HistoryLimit),
		tracker.WithLogger(logger),
	)
	if err != nil {
		_ = backend.Close()
		return nil, err
	}

	return &session{
		cfg:      cfg,
		backend:  backend,
		manager:  manager,
		autosave: storage.NewAutosave(manager, backend, logger),
		logger:   logger,
	}, nil
}

// close reports a failed autosave along with the backend's close error.
func (s *session) close() error {
	return errors.Join(s.autosave.Err(), s.backend.Close())
}

// finish closes s and keeps the first error.
func (s *session) finish(err error) error {
	if closeErr := s.close(); err == nil {
		return closeErr
	}
	return err
}

func resolveConfigPath(flagValue string) (string, error) {
	if flagValue != "" {
		return flagValue, nil
	}
	return config.DefaultConfigPath()
}

func applyOverrides(cfg config.Config, opts *RootOptions) config.Config {
	if opts.Backend != "" && opts.Backend != cfg.Storage.Backend {
		cfg.Storage.Backend = opts.Backend
		cfg.Storage.Path = ""
	}
	if opts.Path != "" {
		cfg.Storage.Path = opts.Path
	}
	if opts.DSN != "" {
		cfg.Storage.DSN = opts.DSN
	}
	if opts.Web {
		cfg.Web.Enabled = true
	}
	if opts.Port != 0 {
		cfg.Web.Port = opts.Port
	}
	return cfg
}

func newLogger(cmd *cobra.Command, opts *RootOptions, cfg config.Config) (*slog.Logger, error) {
	level, err := config.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	if opts.Verbose {
		level = slog.LevelDebug
	}
	handler := slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{
		Level: level,
	})
	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger, nil
}
