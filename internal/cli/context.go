package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/vem-project/vem/internal/manager"
	"github.com/vem-project/vem/pkg/color"
	"github.com/vem-project/vem/pkg/config"
	"github.com/vem-project/vem/pkg/errclass"
	"github.com/vem-project/vem/pkg/logging"
)

// loadConfig resolves the home directory and configuration file, writing
// the defaults on first use.
func loadConfig() (*config.Config, string, error) {
	home, err := config.Home()
	if err != nil {
		return nil, "", err
	}
	path := configFile
	if path == "" {
		if path, err = config.ConfigPath(home); err != nil {
			return nil, "", err
		}
	}

	created, err := config.EnsureDefault(home, path)
	if err != nil {
		return nil, "", err
	}

	cfg, err := config.Load(home, path)
	if err != nil {
		return nil, "", err
	}
	if err := configureLogging(cfg); err != nil {
		return nil, "", err
	}
	if created {
		logging.Debug("wrote default configuration", "path", path)
	}
	return cfg, path, nil
}

// configureLogging installs the global logger. --verbose and --quiet take
// precedence over the configured level.
func configureLogging(cfg *config.Config) error {
	level := cfg.Logging.Level
	switch {
	case verbose:
		level = "debug"
	case quiet:
		level = "error"
	}
	logger, err := logging.New(logging.Options{
		Level:  level,
		Format: cfg.Logging.Format,
		Output: rootCmd.ErrOrStderr(),
		Prefix: "vem",
	})
	if err != nil {
		return errclass.ErrConfigInvalid.WithMessage("invalid logging configuration").Wrap(err)
	}
	logging.SetGlobal(logger)
	return nil
}

// requireManager loads the configuration and builds the manager.
func requireManager() (*manager.Manager, error) {
	cfg, _, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return manager.New(cfg, manager.WithLogger(logging.Global()))
}

// success prints a confirmation unless --quiet or --json is set.
func success(cmd *cobra.Command, format string, args ...any) {
	if quiet || jsonOutput {
		return
	}
	fmt.Fprintln(cmd.OutOrStdout(), color.Successf(format, args...))
}

func fmtErr(w io.Writer, format string, args ...any) {
	prefix := "vem: "
	if color.Enabled() {
		prefix = color.Error("vem:") + " "
	}
	fmt.Fprintf(w, prefix+format+"\n", args...)
}
