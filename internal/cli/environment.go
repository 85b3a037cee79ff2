package cli

import (
	"bufio"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/vem-project/vem/internal/manager"
	"github.com/vem-project/vem/internal/store"
	"github.com/vem-project/vem/pkg/color"
	"github.com/vem-project/vem/pkg/errclass"
	"github.com/vem-project/vem/pkg/model"
)

var (
	createDescription string

	listVerbose bool

	updateDescription      string
	updateClearDescription bool
	updateTags             []string
	updateUntags           []string

	removeForce bool
)

var createCmd = &cobra.Command{
	Use:   "create <name>",
	Short: "Create a new environment",
	Long: `Create a new environment.

The environment directory gets a .vimrc stub, a .vim/{autoload,bundle,colors,plugin}
skeleton and a meta.toml metadata record. Names may contain letters, digits,
'-' and '_'.`,
	Args: argsUsage(cobra.ExactArgs(1)),
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := requireManager()
		if err != nil {
			return err
		}

		var desc *string
		if cmd.Flags().Changed("description") {
			desc = &createDescription
		}

		env, err := m.Create(args[0], desc)
		if err != nil {
			return err
		}

		if jsonOutput {
			return outputJSON(cmd.OutOrStdout(), env)
		}
		success(cmd, "Environment '%s' created successfully", env.Name)
		if m.Config().AutoSwitch {
			success(cmd, "Switched to environment '%s'", env.Name)
		}
		return nil
	},
}

// listItem is the JSON shape of one list entry.
type listItem struct {
	*model.Environment
	Current bool `json:"current"`
}

var listCmd = &cobra.Command{
	Use:     "list",
	Short:   "List environments",
	Aliases: []string{"ls"},
	Args:    argsUsage(cobra.NoArgs),
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := requireManager()
		if err != nil {
			return err
		}

		envs, err := m.List()
		if err != nil {
			return err
		}
		var currentName string
		if cur, err := m.Current(); err == nil {
			currentName = cur.Name
		}

		out := cmd.OutOrStdout()
		if jsonOutput {
			items := make([]listItem, 0, len(envs))
			for _, env := range envs {
				items = append(items, listItem{Environment: env, Current: env.Name == currentName})
			}
			return outputJSON(out, items)
		}

		if len(envs) == 0 {
			fmt.Fprintln(out, "No environments found")
			return nil
		}
		for _, env := range envs {
			marker, name := " ", env.Name
			if env.Name == currentName {
				marker, name = "*", color.Current(env.Name)
			}
			if listVerbose {
				fmt.Fprintf(out, "%s %s (%s)\n", marker, name, color.Dim(env.Path))
			} else {
				fmt.Fprintf(out, "%s %s\n", marker, name)
			}
		}
		return nil
	},
}

var switchCmd = &cobra.Command{
	Use:               "switch [<name>]",
	Short:             "Make an environment current",
	Long:              "Make an environment current. Without a name, default_environment is used.",
	Aliases:           []string{"use"},
	Args:              argsUsage(cobra.MaximumNArgs(1)),
	ValidArgsFunction: completeEnvironmentNames,
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := requireManager()
		if err != nil {
			return err
		}

		var name string
		if len(args) > 0 {
			name = args[0]
		}
		env, err := m.Switch(name)
		if err != nil {
			return notFoundHint(m, name, err)
		}

		if jsonOutput {
			return outputJSON(cmd.OutOrStdout(), env)
		}
		success(cmd, "Switched to environment '%s'", env.Name)
		return nil
	},
}

var currentCmd = &cobra.Command{
	Use:   "current",
	Short: "Show the current environment",
	Args:  argsUsage(cobra.NoArgs),
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := requireManager()
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		env, err := m.Current()
		if errors.Is(err, errclass.ErrNoCurrent) {
			if jsonOutput {
				return outputJSON(out, map[string]any{"current": nil})
			}
			fmt.Fprintln(out, "No environment currently active")
			return nil
		}
		if err != nil {
			return err
		}

		if jsonOutput {
			return outputJSON(out, map[string]any{"current": env})
		}
		fmt.Fprintln(out, env.Name)
		return nil
	},
}

var updateCmd = &cobra.Command{
	Use:   "update <name>",
	Short: "Update an environment's description or tags",
	Long: `Update an environment's description or tags.

-d sets the description (an empty string included); --clear-description
removes it. Tags are an ordered set: --tag appends a tag unless present,
--untag removes it. All changes are written at once.`,
	Args:              argsUsage(cobra.ExactArgs(1)),
	ValidArgsFunction: completeEnvironmentNames,
	RunE: func(cmd *cobra.Command, args []string) error {
		descChanged := cmd.Flags().Changed("description")
		if descChanged && updateClearDescription {
			return usageError(errors.New("--description and --clear-description cannot be used together"))
		}
		change := store.Change{
			SetDescription: descChanged || updateClearDescription,
			AddTags:        updateTags,
			RemoveTags:     updateUntags,
		}
		if descChanged {
			change.Description = &updateDescription
		}
		if change.Empty() {
			return usageError(errors.New("nothing to update; use --description, --clear-description, --tag or --untag"))
		}

		m, err := requireManager()
		if err != nil {
			return err
		}

		name := args[0]
		env, err := m.Edit(name, change)
		if err != nil {
			return notFoundHint(m, name, err)
		}

		if jsonOutput {
			return outputJSON(cmd.OutOrStdout(), env)
		}
		success(cmd, "Environment '%s' updated successfully", env.Name)
		return nil
	},
}

var removeCmd = &cobra.Command{
	Use:               "remove <name>",
	Short:             "Remove an environment",
	Long:              "Remove an environment. The current environment cannot be removed.",
	Aliases:           []string{"rm"},
	Args:              argsUsage(cobra.ExactArgs(1)),
	ValidArgsFunction: completeEnvironmentNames,
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := requireManager()
		if err != nil {
			return err
		}

		name := args[0]
		env, err := m.Get(name)
		if err != nil {
			return notFoundHint(m, name, err)
		}
		if cur, err := m.Current(); err == nil && cur.Name == env.Name {
			return withHint(
				errclass.ErrActiveEnvironment.WithMessagef("cannot remove active environment '%s'", env.Name),
				fmt.Sprintf("Run %s first.", color.Code("vem switch <other>")),
			)
		}

		if !removeForce {
			ok, err := confirm(cmd, fmt.Sprintf("Remove environment '%s'? [y/N]: ", env.Name))
			if err != nil {
				return err
			}
			if !ok {
				fmt.Fprintln(cmd.OutOrStdout(), "Operation cancelled")
				return nil
			}
		}

		res, err := m.Remove(env.Name)
		if err != nil {
			return err
		}

		if jsonOutput {
			return outputJSON(cmd.OutOrStdout(), res)
		}
		success(cmd, "Environment '%s' removed successfully", res.Name)
		if res.Backup != "" && !quiet {
			fmt.Fprintln(cmd.OutOrStdout(), color.Dim("Backup: "+res.Backup))
		}
		return nil
	},
}

var showCmd = &cobra.Command{
	Use:               "show <name>",
	Short:             "Show environment details",
	Aliases:           []string{"info"},
	Args:              argsUsage(cobra.ExactArgs(1)),
	ValidArgsFunction: completeEnvironmentNames,
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := requireManager()
		if err != nil {
			return err
		}

		env, err := m.Get(args[0])
		if err != nil {
			return notFoundHint(m, args[0], err)
		}
		current := false
		if cur, err := m.Current(); err == nil {
			current = cur.Name == env.Name
		}

		out := cmd.OutOrStdout()
		if jsonOutput {
			return outputJSON(out, listItem{Environment: env, Current: current})
		}

		lastUsed := "never"
		if env.Meta.LastUsed != nil {
			lastUsed = env.Meta.LastUsed.Local().Format(time.RFC3339)
		}
		tags := "(none)"
		if len(env.Meta.Tags) > 0 {
			styled := make([]string, len(env.Meta.Tags))
			for i, t := range env.Meta.Tags {
				styled[i] = color.Tag(t)
			}
			tags = strings.Join(styled, ", ")
		}

		fmt.Fprintf(out, "%s %s\n", color.Header("Name:       "), env.Name)
		fmt.Fprintf(out, "%s %s\n", color.Header("Path:       "), env.Path)
		fmt.Fprintf(out, "%s %s\n", color.Header("Description:"), env.Meta.DescriptionOr("(none)"))
		fmt.Fprintf(out, "%s %s\n", color.Header("Created:    "), env.Meta.Created.Local().Format(time.RFC3339))
		fmt.Fprintf(out, "%s %s\n", color.Header("Last used:  "), lastUsed)
		fmt.Fprintf(out, "%s %s\n", color.Header("Tags:       "), tags)
		fmt.Fprintf(out, "%s %v\n", color.Header("Current:    "), current)
		return nil
	},
}

// confirm asks a y/N question on the command's streams. Anything but y or
// yes, including end of input, declines.
func confirm(cmd *cobra.Command, prompt string) (bool, error) {
	fmt.Fprint(cmd.OutOrStdout(), prompt)
	line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	if err != nil && line == "" {
		fmt.Fprintln(cmd.OutOrStdout())
		return false, nil
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true, nil
	default:
		return false, nil
	}
}

// notFoundHint adds suggestions to not-found errors.
func notFoundHint(m *manager.Manager, name string, err error) error {
	if name == "" || !errors.Is(err, errclass.ErrNotFound) {
		return err
	}
	return withHint(err, suggestEnvironments(m, name))
}

func argsUsage(fn cobra.PositionalArgs) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := fn(cmd, args); err != nil {
			return usageError(err)
		}
		return nil
	}
}

func init() {
	createCmd.Flags().StringVarP(&createDescription, "description", "d", "", "environment description")
	listCmd.Flags().BoolVarP(&listVerbose, "verbose", "v", false, "show environment paths")
	updateCmd.Flags().StringVarP(&updateDescription, "description", "d", "", "new description")
	updateCmd.Flags().BoolVar(&updateClearDescription, "clear-description", false, "remove the description")
	updateCmd.Flags().StringArrayVar(&updateTags, "tag", nil, "add a tag (repeatable)")
	updateCmd.Flags().StringArrayVar(&updateUntags, "untag", nil, "remove a tag (repeatable)")
	removeCmd.Flags().BoolVarP(&removeForce, "force", "f", false, "do not ask for confirmation")

	rootCmd.AddCommand(createCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(switchCmd)
	rootCmd.AddCommand(currentCmd)
	rootCmd.AddCommand(updateCmd)
	rootCmd.AddCommand(removeCmd)
	rootCmd.AddCommand(showCmd)
}
