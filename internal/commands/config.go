package commands

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/weibokit/weibo/internal/appctx"
	"github.com/weibokit/weibo/internal/config"
	"github.com/weibokit/weibo/internal/output"
)

// NewConfigCmd creates the config command group.
func NewConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage configuration",
		Long: `View and edit configuration.

Configuration is layered: flags > env > local (.weibo/config.json) > global
(~/.config/weibo/config.json) > system (/etc/weibo/config.json) > defaults.
Keys that control credentials or where tokens are sent are only read from the
global and system files.`,
	}

	cmd.AddCommand(
		newConfigShowCmd(),
		newConfigSetCmd(),
		newConfigUnsetCmd(),
		newConfigPathCmd(),
	)

	return cmd
}

func newConfigShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show effective configuration",
		Long:  "Display the current effective configuration with source information.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app := appctx.FromContext(cmd.Context())
			if app == nil {
				return fmt.Errorf("app not initialized")
			}
			return app.OK(effectiveConfig(app.Config),
				output.WithSummary("Effective configuration"),
				output.WithBreadcrumbs(output.Breadcrumb{
					Action:      "set",
					Cmd:         "weibo config set <key> <value>",
					Description: "Set config value",
				}),
			)
		},
	}
}

// effectiveConfig lists resolved values with their source. The app secret is
// never printed.
func effectiveConfig(cfg *config.Config) map[string]any {
	out := make(map[string]any)
	add := func(key string, value any, include bool) {
		if !include {
			return
		}
		source := cfg.Sources[key]
		if source == "" {
			source = string(config.SourceDefault)
		}
		out[key] = map[string]any{"value": value, "source": source}
	}

	add("provider", cfg.Provider, true)
	add("provider_file", cfg.ProviderFile, cfg.ProviderFile != "")
	add("base_url", cfg.BaseURL, cfg.BaseURL != "")
	add("app_key", cfg.AppKey, cfg.AppKey != "")
	add("app_secret", redact(cfg.AppSecret), cfg.AppSecret != "")
	add("callback", cfg.Callback, cfg.Callback != "")
	add("timeout", cfg.Timeout.String(), true)
	add("format", cfg.Format, cfg.Format != "")
	add("default_app", cfg.DefaultApp, cfg.DefaultApp != "")
	if cfg.Stats != nil {
		add("stats", *cfg.Stats, true)
	}
	if cfg.Verbose != nil {
		add("verbose", *cfg.Verbose, true)
	}
	if cfg.ActiveApp != "" {
		out["active_app"] = cfg.ActiveApp
	}
	if len(cfg.Apps) > 0 {
		names := make([]string, 0, len(cfg.Apps))
		for name := range cfg.Apps {
			names = append(names, name)
		}
		sort.Strings(names)
		out["apps"] = names
	}
	return out
}

func redact(secret string) string {
	if len(secret) <= 4 {
		return "****"
	}
	return secret[:2] + strings.Repeat("*", len(secret)-4) + secret[len(secret)-2:]
}

func configPath(global bool) (string, string) {
	if global {
		return "global", config.GlobalConfigPath()
	}
	return "local", config.LocalConfigPath()
}

func newConfigSetCmd() *cobra.Command {
	var global bool

	cmd := &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Set a configuration value",
		Long: fmt.Sprintf(`Set a configuration value in the local or global config file.

Valid keys: %s`, strings.Join(config.SettableKeys(), ", ")),
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			app := appctx.FromContext(cmd.Context())
			if app == nil {
				return fmt.Errorf("app not initialized")
			}
			key, value := args[0], args[1]

			if !global && config.IsAuthorityKey(key) {
				return output.ErrUsageHint(
					fmt.Sprintf("%s is ignored in local config", key),
					fmt.Sprintf("Run: weibo config set %s <value> --global", key))
			}

			scope, path := configPath(global)
			stored, err := config.Set(path, key, value)
			if err != nil {
				return output.ErrUsage(err.Error())
			}

			shown := stored
			if key == "app_secret" {
				shown = redact(value)
			}
			return app.OK(map[string]any{
				"key":   key,
				"value": shown,
				"scope": scope,
				"path":  path,
			}, output.WithSummary(fmt.Sprintf("Set %s (%s)", key, scope)))
		},
	}

	cmd.Flags().BoolVarP(&global, "global", "g", false, "Write to the global config file")

	return cmd
}

func newConfigUnsetCmd() *cobra.Command {
	var global bool

	cmd := &cobra.Command{
		Use:   "unset <key>",
		Short: "Remove a configuration value",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app := appctx.FromContext(cmd.Context())
			if app == nil {
				return fmt.Errorf("app not initialized")
			}
			key := args[0]

			scope, path := configPath(global)
			if err := config.Unset(path, key); err != nil {
				return output.ErrUsage(err.Error())
			}

			return app.OK(map[string]any{
				"key":   key,
				"scope": scope,
				"path":  path,
			}, output.WithSummary(fmt.Sprintf("Unset %s (%s)", key, scope)))
		},
	}

	cmd.Flags().BoolVarP(&global, "global", "g", false, "Edit the global config file")

	return cmd
}

func newConfigPathCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Show config file locations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app := appctx.FromContext(cmd.Context())
			if app == nil {
				return fmt.Errorf("app not initialized")
			}
			return app.OK(map[string]string{
				"global": config.GlobalConfigPath(),
				"local":  config.LocalConfigPath(),
				"tokens": app.TokenStore().Path(),
			}, output.WithSummary("Config file locations"))
		},
	}
}
