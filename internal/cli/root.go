// Package cli implements the vem command tree.
package cli

import (
	"encoding/json"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/vem-project/vem/pkg/color"
)

var (
	jsonOutput bool
	verbose    bool
	quiet      bool
	noColor    bool
	configFile string

	rootCmd = &cobra.Command{
		Use:   "vem",
		Short: "VEM - Vim Environment Manager",
		Long: `VEM manages named, isolated Vim configuration environments and switches
the active one. Each environment owns a .vimrc, a .vim plugin tree and a
metadata record; the current environment is designated by a symlink.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			color.Init(noColor)
			if noColor {
				color.Disable()
			}
		},
	}
)

func init() {
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output in JSON format")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging and error details")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "suppress confirmations")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "configuration file (default $VEM_HOME/config.yaml)")
	rootCmd.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return usageError(err)
	})
}

// Execute runs the root command against the process arguments and returns
// the exit status.
func Execute() int {
	return execute(rootCmd, os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
}

func execute(root *cobra.Command, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	root.SetArgs(args)
	root.SetIn(stdin)
	root.SetOut(stdout)
	root.SetErr(stderr)

	err := root.Execute()
	if err == nil {
		return ExitOK
	}
	// cobra reports unknown subcommands as plain errors.
	if strings.HasPrefix(err.Error(), "unknown command") {
		err = usageError(err)
	}
	printError(stderr, err)
	return exitCode(err)
}

// outputJSON prints v as indented JSON.
func outputJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
