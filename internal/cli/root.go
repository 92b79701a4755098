// Package cli wires the root command, global flags and error handling.
package cli

import (
	"io"
	"os"
	"regexp"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/weibokit/weibo/internal/appctx"
	"github.com/weibokit/weibo/internal/commands"
	"github.com/weibokit/weibo/internal/config"
	"github.com/weibokit/weibo/internal/output"
	"github.com/weibokit/weibo/internal/version"
	"github.com/weibokit/weibo/pkg/weibo/provider"
)

// NewRootCmd creates the root cobra command.
func NewRootCmd() *cobra.Command {
	var flags appctx.GlobalFlags

	cmd := &cobra.Command{
		Use:   "weibo",
		Short: "Command-line client for microblogging APIs",
		Long: `weibo signs and sends API calls to Sina, Tencent and NetEase microblogs
over OAuth 1.0 or OAuth 2.0.

  weibo auth login
  weibo call statuses.user_timeline.get count=5`,
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Name() == "help" || cmd.Name() == cobra.ShellCompRequestCmd {
				return nil
			}

			overrides := config.FlagOverrides{
				Provider: flags.Provider,
				App:      flags.App,
				Timeout:  flags.Timeout,
			}
			cfg, err := config.Load(overrides)
			if err != nil {
				return err
			}
			if err := selectApp(cfg, overrides); err != nil {
				return err
			}

			app := appctx.NewApp(cfg)
			app.Flags = flags
			app.ApplyFlags()

			cmd.SetContext(appctx.WithApp(cmd.Context(), app))
			return nil
		},
	}
	cmd.SetVersionTemplate(version.Full() + "\n")

	// Allow flags anywhere in the command line
	cmd.Flags().SetInterspersed(true)
	cmd.PersistentFlags().SetInterspersed(true)

	// Output format flags
	cmd.PersistentFlags().BoolVarP(&flags.JSON, "json", "j", false, "Output as JSON")
	cmd.PersistentFlags().BoolVarP(&flags.Quiet, "quiet", "q", false, "Output data only, no envelope")
	cmd.PersistentFlags().BoolVar(&flags.Styled, "styled", false, "Force styled output (ANSI colors)")
	cmd.PersistentFlags().StringVar(&flags.JQ, "jq", "", "Filter the data with a jq expression")

	// Context flags
	cmd.PersistentFlags().StringVarP(&flags.Provider, "provider", "p", "", "Provider profile (sina, sina2, qq, netease, netease2)")
	cmd.PersistentFlags().StringVarP(&flags.App, "app", "a", "", "Named application from config")
	cmd.PersistentFlags().DurationVar(&flags.Timeout, "timeout", 0, "HTTP timeout per request (e.g. 15s)")

	// Behavior flags
	cmd.PersistentFlags().CountVarP(&flags.Verbose, "verbose", "v", "Verbose output (-v for calls, -vv for requests)")
	cmd.PersistentFlags().BoolVar(&flags.Stats, "stats", false, "Show session statistics")

	_ = cmd.RegisterFlagCompletionFunc("provider", providerCompletion)

	return cmd
}

// NewApp returns the root command with every subcommand attached.
func NewApp() *cobra.Command {
	cmd := NewRootCmd()
	cmd.AddCommand(
		commands.NewAuthCmd(),
		commands.NewCallCmd(),
		commands.NewProvidersCmd(),
		commands.NewConfigCmd(),
		commands.NewCommandsCmd(),
		commands.NewVersionCmd(),
	)
	return cmd
}

// Execute runs the CLI and exits with the resulting code.
func Execute() {
	os.Exit(run(NewApp(), os.Stdout))
}

// run executes cmd and reports any error on stdout, returning the exit code.
func run(cmd *cobra.Command, stdout io.Writer) int {
	executedCmd, err := cmd.ExecuteC()
	if err == nil {
		return 0
	}

	err = transformCobraError(err)
	apiErr := output.AsError(err)

	// app.Err prints --stats to stderr as well
	if app := appctx.FromContext(executedCmd.Context()); app != nil {
		_ = app.Err(err)
		return apiErr.ExitCode()
	}

	// Setup failed before the app existed
	pf := cmd.PersistentFlags()
	format := output.FormatAuto
	quiet, _ := pf.GetBool("quiet")
	styled, _ := pf.GetBool("styled")
	jsonFlag, _ := pf.GetBool("json")
	switch {
	case quiet:
		format = output.FormatQuiet
	case jsonFlag:
		format = output.FormatJSON
	case styled:
		format = output.FormatStyled
	}

	writer := output.New(output.Options{
		Format: format,
		Writer: stdout,
	})
	_ = writer.Err(err)

	return apiErr.ExitCode()
}

// selectApp overlays the named application, or the configured default, then
// re-applies env and flags so they keep precedence over the app.
func selectApp(cfg *config.Config, overrides config.FlagOverrides) error {
	name := overrides.App
	explicit := name != ""
	if !explicit {
		name = os.Getenv("WEIBO_APP")
	}
	if name == "" {
		name = cfg.DefaultApp
	}
	if name == "" {
		return nil
	}

	if err := cfg.ApplyApp(name); err != nil {
		hint := "Configure apps in " + config.GlobalConfigPath()
		if names := appNames(cfg); len(names) > 0 {
			hint = "Available apps: " + strings.Join(names, ", ")
		}
		return output.ErrUsageHint(err.Error(), hint)
	}

	config.LoadFromEnv(cfg)
	config.ApplyOverrides(cfg, overrides)
	if explicit {
		cfg.Sources["app"] = string(config.SourceFlag)
	}
	return nil
}

func appNames(cfg *config.Config) []string {
	names := make([]string, 0, len(cfg.Apps))
	for name := range cfg.Apps {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

var shorthandRe = regexp.MustCompile(`unknown shorthand flag: '.' in (-\w)`)

// transformCobraError turns cobra's parsing errors into usage errors.
func transformCobraError(err error) error {
	msg := err.Error()

	if flag, ok := strings.CutPrefix(msg, "flag needs an argument: "); ok {
		return output.ErrUsage(flag + " requires a value")
	}

	if flag, ok := strings.CutPrefix(msg, "unknown flag: "); ok {
		return output.ErrUsage("Unknown option: " + flag)
	}

	if strings.HasPrefix(msg, "unknown shorthand flag: ") {
		if matches := shorthandRe.FindStringSubmatch(msg); len(matches) > 1 {
			return output.ErrUsage("Unknown option: " + matches[1])
		}
	}

	if strings.HasPrefix(msg, "unknown command ") {
		return output.ErrUsageHint(msg, "Run: weibo commands")
	}

	if strings.Contains(msg, "invalid argument") ||
		strings.Contains(msg, "arg(s), received") ||
		strings.HasPrefix(msg, "requires at least") {
		return output.ErrUsage(msg)
	}

	return err
}

// providerCompletion completes --provider with the built-in profile names.
func providerCompletion(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	var out []string
	for _, name := range provider.Names() {
		if strings.HasPrefix(name, toComplete) {
			out = append(out, name)
		}
	}
	return out, cobra.ShellCompDirectiveNoFileComp
}
