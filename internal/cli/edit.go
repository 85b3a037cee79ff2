package cli

import (
	"github.com/spf13/cobra"

	"github.com/vem-project/vem/internal/editor"
	"github.com/vem-project/vem/pkg/model"
)

// editorRunner replaces process execution in tests.
var editorRunner editor.Runner

var editCmd = &cobra.Command{
	Use:               "edit [<name>]",
	Short:             "Open an environment's .vimrc in the configured editor",
	Long:              "Open an environment's .vimrc in the configured editor. Without a name, the current environment is edited.",
	Args:              argsUsage(cobra.MaximumNArgs(1)),
	ValidArgsFunction: completeEnvironmentNames,
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := requireManager()
		if err != nil {
			return err
		}

		var env *model.Environment
		if len(args) > 0 {
			if env, err = m.Get(args[0]); err != nil {
				return notFoundHint(m, args[0], err)
			}
		} else if env, err = m.Current(); err != nil {
			return err
		}

		opts := []editor.Option{editor.WithIO(cmd.InOrStdin(), cmd.OutOrStdout(), cmd.ErrOrStderr())}
		if editorRunner != nil {
			opts = append(opts, editor.WithRunner(editorRunner))
		}
		ed, err := editor.New(m.Config().Editor, opts...)
		if err != nil {
			return err
		}
		return ed.Open(cmd.Context(), env)
	},
}

func init() {
	rootCmd.AddCommand(editCmd)
}
