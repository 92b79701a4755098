// Package appctx provides application context helpers.
package appctx

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/x/term"

	"github.com/weibokit/weibo/internal/config"
	"github.com/weibokit/weibo/internal/hostutil"
	"github.com/weibokit/weibo/internal/observability"
	"github.com/weibokit/weibo/internal/output"
	"github.com/weibokit/weibo/internal/tokenstore"
	"github.com/weibokit/weibo/internal/version"
	"github.com/weibokit/weibo/pkg/weibo"
	"github.com/weibokit/weibo/pkg/weibo/auth"
	"github.com/weibokit/weibo/pkg/weibo/provider"
)

// contextKey is a private type for context keys.
type contextKey string

const appKey contextKey = "app"

// App holds the shared application context for all commands.
type App struct {
	Config *config.Config
	Output *output.Writer
	Logger *slog.Logger

	// Tokens is created on first use by TokenStore so that commands which
	// never touch credentials do not probe the keyring.
	Tokens *tokenstore.Store

	// Observability
	Collector *observability.SessionCollector
	Hooks     *observability.CLIHooks

	// Flags holds the global flag values
	Flags GlobalFlags

	// Stdout and Stderr default to the process streams.
	Stdout io.Writer
	Stderr io.Writer

	// ClientOptions are appended when building API clients.
	ClientOptions []weibo.Option
}

// GlobalFlags holds values for global CLI flags.
type GlobalFlags struct {
	// Output format flags
	JSON   bool
	Quiet  bool
	Styled bool // Force ANSI styled output (even when piped)
	JQ     string

	// Context flags
	Provider string
	App      string
	Timeout  time.Duration

	// Behavior flags
	Verbose int // 0=off, 1=operations, 2=operations+requests (stacks with -v -v or -vv)
	Stats   bool
}

// NewApp creates a new App with the given configuration.
func NewApp(cfg *config.Config) *App {
	// Collector always runs to gather stats; hooks control output verbosity.
	// Level 0 initially; ApplyFlags sets the actual level from -v flags.
	collector := observability.NewSessionCollector()
	traceWriter := observability.NewTraceWriter()
	hooks := observability.NewCLIHooks(0, collector, traceWriter)

	return &App{
		Config:    cfg,
		Logger:    slog.New(slog.DiscardHandler),
		Collector: collector,
		Hooks:     hooks,
		Stdout:    os.Stdout,
		Stderr:    os.Stderr,
		Output: output.New(output.Options{
			Format: output.ParseFormat(cfg.Format),
			Writer: os.Stdout,
		}),
	}
}

// ApplyFlags applies global flag values to the app configuration.
func (a *App) ApplyFlags() {
	format := output.ParseFormat(a.Config.Format)
	switch {
	case a.Flags.Quiet:
		format = output.FormatQuiet
	case a.Flags.JSON:
		format = output.FormatJSON
	case a.Flags.Styled:
		format = output.FormatStyled
	}
	a.Output = output.New(output.Options{
		Format: format,
		Writer: a.Stdout,
		JQ:     a.Flags.JQ,
	})

	// Config verbosity is the floor; flags and WEIBO_DEBUG can raise it
	verboseLevel := a.Flags.Verbose
	if a.Config.Verbose != nil && *a.Config.Verbose > verboseLevel {
		verboseLevel = *a.Config.Verbose
	}
	if debugEnv := os.Getenv("WEIBO_DEBUG"); debugEnv != "" {
		// WEIBO_DEBUG can be "1", "2", or "true" (treated as 2 for full debug)
		if level, err := strconv.Atoi(debugEnv); err == nil {
			if level > verboseLevel {
				verboseLevel = level
			}
		} else if debugEnv == "true" {
			verboseLevel = 2
		}
	}
	if !a.Flags.Stats && a.Config.Stats != nil && *a.Config.Stats {
		a.Flags.Stats = true
	}

	if a.Hooks != nil {
		a.Hooks.SetLevel(verboseLevel)
	}
	if verboseLevel > 0 {
		a.Logger = slog.New(slog.NewTextHandler(a.Stderr, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		}))
	}
}

// TokenStore returns the token store, creating it on first use.
func (a *App) TokenStore() *tokenstore.Store {
	if a.Tokens == nil {
		a.Tokens = tokenstore.NewStore(config.GlobalConfigDir())
	}
	return a.Tokens
}

// Profile resolves the configured provider profile, applying a provider file
// and base URL override when configured.
func (a *App) Profile() (*provider.Profile, error) {
	var (
		p   *provider.Profile
		err error
	)
	if a.Config.ProviderFile != "" {
		p, err = provider.LoadFile(a.Config.ProviderFile)
		if err != nil {
			return nil, output.ErrUsageHint(fmt.Sprintf("Invalid provider file: %v", err), a.Config.ProviderFile)
		}
	} else {
		p, err = provider.Lookup(a.Config.Provider)
		if err != nil {
			return nil, output.ErrNotFoundHint("provider", a.Config.Provider, "Run: weibo providers list")
		}
	}

	if a.Config.BaseURL != "" {
		p.BaseURL = hostutil.BaseURL(a.Config.BaseURL)
	}
	return p, nil
}

// Credentials returns the configured application credentials.
func (a *App) Credentials() (auth.Credentials, error) {
	if a.Config.AppKey == "" || a.Config.AppSecret == "" {
		return auth.Credentials{}, output.ErrUsageHint(
			"App key and secret are not configured",
			"Run: weibo config set app_key <key> --global && weibo config set app_secret <secret> --global",
		)
	}
	return auth.Credentials{AppKey: a.Config.AppKey, AppSecret: a.Config.AppSecret}, nil
}

// Client builds an API client for the configured provider and application.
func (a *App) Client() (*weibo.Client, error) {
	p, err := a.Profile()
	if err != nil {
		return nil, err
	}
	creds, err := a.Credentials()
	if err != nil {
		return nil, err
	}

	opts := []weibo.Option{
		weibo.WithHooks(a.Hooks),
		weibo.WithLogger(a.Logger),
		weibo.WithUserAgent(version.UserAgent()),
	}
	if a.Config.Timeout > 0 {
		opts = append(opts, weibo.WithTimeout(a.Config.Timeout))
	}
	opts = append(opts, a.ClientOptions...)

	return weibo.New(p, creds, opts...)
}

// TokenKey returns the storage key for the configured application on p.
func (a *App) TokenKey(p *provider.Profile) string {
	return tokenstore.Key(p.Name, a.Config.AppKey)
}

// Authorizer loads the stored credential for p. It fails with an auth error
// when nothing usable is stored.
func (a *App) Authorizer(p *provider.Profile) (auth.Authorizer, *tokenstore.Record, error) {
	rec, err := a.TokenStore().Load(a.TokenKey(p))
	if errors.Is(err, tokenstore.ErrNotFound) {
		return nil, nil, output.ErrAuth(fmt.Sprintf("Not logged in to %s", p.Name))
	}
	if err != nil {
		return nil, nil, err
	}

	if rec.OAuthVersion != 0 && rec.OAuthVersion != p.OAuthVersion {
		return nil, rec, output.ErrAuth(fmt.Sprintf("Stored token is for OAuth %d but %s uses OAuth %d",
			rec.OAuthVersion, p.Name, p.OAuthVersion))
	}
	if rec.Pending() {
		return nil, rec, &output.Error{
			Code:    output.CodeAuth,
			Message: "Authorization is pending",
			Hint:    "Run: weibo auth verify <verifier>",
		}
	}
	if rec.Expired(time.Now()) {
		return nil, rec, output.ErrAuth("Access token expired")
	}

	authz := rec.Authorizer()
	if authz == nil {
		return nil, rec, output.ErrAuth("Stored token is unusable")
	}
	return authz, rec, nil
}

// OK outputs a success response, automatically including stats if --stats flag is set.
func (a *App) OK(data any, opts ...output.ResponseOption) error {
	if a.Flags.Stats && a.Collector != nil {
		stats := a.Collector.Summary()
		opts = append(opts, output.WithStats(&stats))
	}
	return a.Output.OK(data, opts...)
}

// Err outputs an error response, printing stats to stderr if --stats flag is set.
func (a *App) Err(err error) error {
	if outputErr := a.Output.Err(err); outputErr != nil {
		return outputErr
	}

	// Machine-consumable modes keep stderr clean
	if a.Flags.Stats && a.Collector != nil && !a.isMachineOutput() {
		stats := a.Collector.Summary()
		a.printStatsToStderr(&stats)
	}
	return nil
}

// isMachineOutput returns true if the output mode is intended for programmatic consumption.
func (a *App) isMachineOutput() bool {
	if a.Flags.Quiet || a.Flags.JQ != "" {
		return true
	}
	return a.Config != nil && a.Config.Format == "quiet"
}

// printStatsToStderr outputs a compact stats line to stderr.
func (a *App) printStatsToStderr(stats *observability.SessionMetrics) {
	if stats == nil {
		return
	}

	var parts []string

	duration := stats.EndTime.Sub(stats.StartTime)
	if duration < time.Second {
		parts = append(parts, fmt.Sprintf("%dms", duration.Milliseconds()))
	} else {
		parts = append(parts, fmt.Sprintf("%.1fs", duration.Seconds()))
	}

	switch stats.TotalRequests {
	case 0:
	case 1:
		parts = append(parts, "1 request")
	default:
		parts = append(parts, fmt.Sprintf("%d requests", stats.TotalRequests))
	}

	if stats.FailedOps > 0 {
		parts = append(parts, fmt.Sprintf("%d failed", stats.FailedOps))
	}

	fmt.Fprintf(a.Stderr, "\nStats: %s\n", strings.Join(parts, " | "))
}

// IsInteractive returns true if the user can answer prompts.
func (a *App) IsInteractive() bool {
	if a.Flags.JSON || a.Flags.Quiet || a.Flags.JQ != "" {
		return false
	}
	return term.IsTerminal(os.Stdin.Fd()) && term.IsTerminal(os.Stdout.Fd())
}

// WithApp stores the app in the context.
func WithApp(ctx context.Context, app *App) context.Context {
	return context.WithValue(ctx, appKey, app)
}

// FromContext retrieves the app from the context.
func FromContext(ctx context.Context) *App {
	app, _ := ctx.Value(appKey).(*App)
	return app
}
