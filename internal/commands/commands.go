package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/weibokit/weibo/internal/appctx"
	"github.com/weibokit/weibo/internal/output"
)

// CommandInfo describes a CLI command.
type CommandInfo struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Actions     []string `json:"actions,omitempty"`
	Flags       []string `json:"flags,omitempty"`
}

// catalog describes the visible commands under root.
func catalog(root *cobra.Command) []CommandInfo {
	var out []CommandInfo
	for _, c := range root.Commands() {
		if c.Hidden || !c.IsAvailableCommand() {
			continue
		}
		info := CommandInfo{
			Name:        c.Name(),
			Description: c.Short,
			Flags:       flagNames(c.LocalNonPersistentFlags()),
		}
		for _, sub := range c.Commands() {
			if sub.IsAvailableCommand() {
				info.Actions = append(info.Actions, sub.Name())
			}
		}
		out = append(out, info)
	}
	return out
}

// NewCommandsCmd creates the commands listing command.
func NewCommandsCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "commands",
		Aliases: []string{"cmds"},
		Short:   "List all available commands",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app := appctx.FromContext(cmd.Context())
			if app == nil {
				return fmt.Errorf("app not initialized")
			}

			return app.OK(catalog(cmd.Root()),
				output.WithSummary("All available weibo commands"),
				output.WithBreadcrumbs(output.Breadcrumb{
					Action:      "help",
					Cmd:         "weibo --help",
					Description: "View help",
				}),
			)
		},
	}
}
