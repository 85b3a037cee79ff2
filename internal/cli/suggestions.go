package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/vem-project/vem/internal/manager"
	"github.com/vem-project/vem/pkg/color"
)

// suggestEnvironments provides helpful suggestions when an environment is
// not found. Returns a formatted suggestion string.
func suggestEnvironments(m *manager.Manager, name string) string {
	list, err := m.List()
	if err != nil {
		return fmt.Sprintf("Run %s to see available environments.", color.Code("vem list"))
	}
	if len(list) == 0 {
		return fmt.Sprintf("No environments exist yet. Run %s to create one.", color.Code("vem create <name>"))
	}

	query := strings.ToLower(name)

	var matches []string
	for _, env := range list {
		if strings.HasPrefix(strings.ToLower(env.Name), query) {
			matches = append(matches, color.Success(env.Name))
		}
	}

	// If no prefix matches, try substring
	if len(matches) == 0 {
		for _, env := range list {
			n := strings.ToLower(env.Name)
			if strings.Contains(n, query) || strings.Contains(query, n) {
				matches = append(matches, color.Success(env.Name))
			}
		}
	}

	if len(matches) > 0 {
		hint := "Did you mean"
		if len(matches) > 1 {
			hint += " one of"
		}
		return fmt.Sprintf("%s: %s?", hint, strings.Join(matches, ", "))
	}

	var names []string
	for _, env := range list {
		names = append(names, color.Success(env.Name))
	}
	return fmt.Sprintf("Available environments: %s", strings.Join(names, ", "))
}

// completeEnvironmentNames completes the first argument with existing
// environment names.
func completeEnvironmentNames(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	if len(args) > 0 {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	m, err := requireManager()
	if err != nil {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	list, err := m.List()
	if err != nil {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}

	var names []string
	for _, env := range list {
		if strings.HasPrefix(env.Name, toComplete) {
			names = append(names, env.Name)
		}
	}
	return names, cobra.ShellCompDirectiveNoFileComp
}
