package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/vem-project/vem/pkg/errclass"
)

var configCmd = &cobra.Command{
	Use:   "config <command>",
	Short: "Inspect VEM configuration",
	Long: `Inspect VEM configuration.

Configuration is read from $VEM_HOME/config.yaml (or $VEM_CONFIG, or --config)
and every key can be overridden with a VEM_ variable, e.g. VEM_EDITOR or
VEM_BACKUP_RETENTION_DAYS.

Configuration options:
  environment_root       - Directory holding environments
  default_environment    - Environment used by 'vem switch' without a name
  editor                 - Command used by 'vem edit'
  auto_switch            - Switch to new environments on create (true, false)
  backup.enabled         - Archive environments before removal (true, false)
  backup.retention_days  - Days to keep archives (0 keeps them forever)
  logging.level          - debug, info, warn, error
  logging.format         - text, json, logfmt`,
	DisableFlagsInUseLine: true,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	Args:  argsUsage(cobra.NoArgs),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, path, err := loadConfig()
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if jsonOutput {
			return outputJSON(out, cfg)
		}

		data, err := yaml.Marshal(cfg)
		if err != nil {
			return errclass.ErrConfigInvalid.WithMessage("cannot encode configuration").Wrap(err)
		}
		fmt.Fprintln(out, "# VEM Configuration")
		fmt.Fprintf(out, "# Location: %s\n\n", path)
		fmt.Fprint(out, string(data))
		return nil
	},
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the configuration file path",
	Args:  argsUsage(cobra.NoArgs),
	RunE: func(cmd *cobra.Command, args []string) error {
		_, path, err := loadConfig()
		if err != nil {
			return err
		}
		if jsonOutput {
			return outputJSON(cmd.OutOrStdout(), map[string]string{"path": path})
		}
		fmt.Fprintln(cmd.OutOrStdout(), path)
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configPathCmd)
	rootCmd.AddCommand(configCmd)
}
