// Package commands implements the CLI commands.
package commands

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/weibokit/weibo/internal/appctx"
	"github.com/weibokit/weibo/internal/output"
	"github.com/weibokit/weibo/internal/tokenstore"
	"github.com/weibokit/weibo/pkg/weibo"
	"github.com/weibokit/weibo/pkg/weibo/provider"
)

// NewAuthCmd creates the auth command group.
func NewAuthCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Manage authentication",
		Long:  "Authorize the configured application with a provider and manage the stored token.",
	}

	cmd.AddCommand(
		newAuthLoginCmd(),
		newAuthVerifyCmd(),
		newAuthStatusCmd(),
		newAuthLogoutCmd(),
		newAuthTokenCmd(),
	)

	return cmd
}

// session bundles what every auth subcommand needs.
type session struct {
	app     *appctx.App
	profile *provider.Profile
	client  *weibo.Client
}

func newSession(cmd *cobra.Command) (*session, error) {
	app := appctx.FromContext(cmd.Context())
	if app == nil {
		return nil, fmt.Errorf("app not initialized")
	}
	client, err := app.Client()
	if err != nil {
		return nil, err
	}
	return &session{app: app, profile: client.Profile(), client: client}, nil
}

func (s *session) key() string {
	return s.app.TokenKey(s.profile)
}

func newAuthLoginCmd() *cobra.Command {
	var callback string
	var noPrompt bool

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Authorize with the provider",
		Long: `Start the OAuth flow for the configured provider.

The authorization URL is printed; open it, approve the application and enter
the verifier (OAuth 1.0) or code (OAuth 2.0) shown by the provider.

With --no-prompt the command only prints the URL. For OAuth 1.0 the pending
request token is stored; finish with "weibo auth verify <verifier>".`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := newSession(cmd)
			if err != nil {
				return err
			}
			if callback == "" {
				callback = s.app.Config.Callback
			}
			interactive := !noPrompt && s.app.IsInteractive()

			if s.profile.OAuthVersion == 2 {
				return s.login2(cmd, s.profile.Callback(callback), interactive)
			}
			return s.login1(cmd, callback, interactive)
		},
	}

	cmd.Flags().StringVar(&callback, "callback", "", "Callback URL (default from config or provider)")
	cmd.Flags().BoolVar(&noPrompt, "no-prompt", false, "Print the authorization URL without prompting")

	return cmd
}

func (s *session) login1(cmd *cobra.Command, callback string, interactive bool) error {
	ctx := cmd.Context()
	tok, err := s.client.CreateToken(ctx, callback)
	if err != nil {
		return err
	}
	authURL, err := s.client.AuthorizationURL(tok)
	if err != nil {
		return err
	}

	if !interactive {
		rec := &tokenstore.Record{Provider: s.profile.Name, OAuthVersion: 1, Token: tok}
		if err := s.app.TokenStore().Save(s.key(), rec); err != nil {
			return err
		}
		return s.app.OK(map[string]any{
			"status":            "pending",
			"provider":          s.profile.Name,
			"authorization_url": authURL,
		},
			output.WithSummary("Open the authorization URL, then run weibo auth verify"),
			output.WithBreadcrumbs(output.Breadcrumb{
				Action:      "verify",
				Cmd:         "weibo auth verify <verifier>",
				Description: "Complete authorization",
			}),
		)
	}

	fmt.Fprintf(s.app.Stderr, "Open this URL to authorize %s:\n\n  %s\n\n", s.profile.Name, authURL)
	verifier, err := promptInput("Verifier", "The code shown after approving access", s.profile.OptionalVerifier)
	if err != nil {
		return output.ErrUsage("authorization canceled")
	}

	if _, err := s.client.ExchangeVerifier(ctx, tok, verifier); err != nil {
		return err
	}
	return s.saveVerified(&tokenstore.Record{Provider: s.profile.Name, OAuthVersion: 1, Token: tok})
}

func (s *session) login2(cmd *cobra.Command, redirectURI string, interactive bool) error {
	authURL, err := s.client.AuthorizationURL2(redirectURI)
	if err != nil {
		return err
	}

	if !interactive {
		return s.app.OK(map[string]any{
			"status":            "pending",
			"provider":          s.profile.Name,
			"authorization_url": authURL,
			"redirect_uri":      redirectURI,
		},
			output.WithSummary("Open the authorization URL, then run weibo auth verify"),
			output.WithBreadcrumbs(output.Breadcrumb{
				Action:      "verify",
				Cmd:         "weibo auth verify <code>",
				Description: "Exchange the authorization code",
			}),
		)
	}

	fmt.Fprintf(s.app.Stderr, "Open this URL to authorize %s:\n\n  %s\n\n", s.profile.Name, authURL)
	code, err := promptInput("Authorization code", "The code parameter of the redirect URL", false)
	if err != nil {
		return output.ErrUsage("authorization canceled")
	}

	bearer, err := s.client.ExchangeCode(cmd.Context(), code, redirectURI)
	if err != nil {
		return err
	}
	return s.saveVerified(&tokenstore.Record{Provider: s.profile.Name, OAuthVersion: 2, Bearer: bearer})
}

func (s *session) saveVerified(rec *tokenstore.Record) error {
	if err := s.app.TokenStore().Save(s.key(), rec); err != nil {
		return err
	}

	data := map[string]any{
		"status":   "authorized",
		"provider": rec.Provider,
	}
	summary := "Authorized with " + rec.Provider
	switch {
	case rec.Token != nil:
		if rec.Token.UserID != "" {
			data["user_id"] = rec.Token.UserID
		}
		if rec.Token.Name != "" {
			data["name"] = rec.Token.Name
			summary += " as " + rec.Token.Name
		}
	case rec.Bearer != nil:
		if rec.Bearer.UID != "" {
			data["user_id"] = rec.Bearer.UID
		}
		if at, ok := rec.ExpiresAt(); ok {
			data["expires_at"] = at.Format(time.RFC3339)
		}
	}

	return s.app.OK(data,
		output.WithSummary(summary),
		output.WithBreadcrumbs(output.Breadcrumb{
			Action:      "call",
			Cmd:         "weibo call statuses.user_timeline.get",
			Description: "Try an API call",
		}),
	)
}

func newAuthVerifyCmd() *cobra.Command {
	var callback string

	cmd := &cobra.Command{
		Use:   "verify [verifier|code]",
		Short: "Complete a pending authorization",
		Long: `Exchange the verifier (OAuth 1.0) or authorization code (OAuth 2.0) for an
access token and store it.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := newSession(cmd)
			if err != nil {
				return err
			}
			var verifier string
			if len(args) > 0 {
				verifier = args[0]
			}

			if s.profile.OAuthVersion == 2 {
				if callback == "" {
					callback = s.app.Config.Callback
				}
				bearer, err := s.client.ExchangeCode(cmd.Context(), verifier, s.profile.Callback(callback))
				if err != nil {
					return err
				}
				return s.saveVerified(&tokenstore.Record{Provider: s.profile.Name, OAuthVersion: 2, Bearer: bearer})
			}

			rec, err := s.app.TokenStore().Load(s.key())
			if errors.Is(err, tokenstore.ErrNotFound) || (err == nil && !rec.Pending()) {
				return output.ErrUsageHint("No pending authorization", "Run: weibo auth login --no-prompt")
			}
			if err != nil {
				return err
			}

			if _, err := s.client.ExchangeVerifier(cmd.Context(), rec.Token, verifier); err != nil {
				return err
			}
			return s.saveVerified(&tokenstore.Record{Provider: s.profile.Name, OAuthVersion: 1, Token: rec.Token})
		},
	}

	cmd.Flags().StringVar(&callback, "callback", "", "Redirect URI used at login (OAuth 2.0)")

	return cmd
}

func newAuthStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show authentication status",
		Long:  "Display whether a token is stored for the configured provider and application.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app := appctx.FromContext(cmd.Context())
			if app == nil {
				return fmt.Errorf("app not initialized")
			}
			p, err := app.Profile()
			if err != nil {
				return err
			}

			status := map[string]any{
				"provider":      p.Name,
				"oauth_version": p.OAuthVersion,
				"app_key":       app.Config.AppKey,
				"keyring":       app.TokenStore().UsingKeyring(),
			}

			rec, err := app.TokenStore().Load(app.TokenKey(p))
			if errors.Is(err, tokenstore.ErrNotFound) {
				status["authenticated"] = false
				return app.OK(status,
					output.WithSummary("Not authenticated"),
					output.WithBreadcrumbs(output.Breadcrumb{
						Action:      "login",
						Cmd:         "weibo auth login",
						Description: "Authorize",
					}),
				)
			}
			if err != nil {
				return err
			}

			status["saved_at"] = rec.SavedAt.Format(time.RFC3339)
			summary := "Authenticated with " + p.Name
			switch {
			case rec.Pending():
				status["authenticated"] = false
				status["pending"] = true
				summary = "Authorization pending"
			case rec.Token != nil:
				status["authenticated"] = true
				if rec.Token.UserID != "" {
					status["user_id"] = rec.Token.UserID
				}
				if rec.Token.Name != "" {
					status["name"] = rec.Token.Name
					summary += " as " + rec.Token.Name
				}
			case rec.Bearer != nil:
				expired := rec.Expired(time.Now())
				status["authenticated"] = !expired
				status["expired"] = expired
				if rec.Bearer.UID != "" {
					status["user_id"] = rec.Bearer.UID
				}
				if at, ok := rec.ExpiresAt(); ok {
					status["expires_at"] = at.Format(time.RFC3339)
					status["expires_in"] = time.Until(at).Round(time.Second).String()
				}
				if expired {
					summary = "Access token expired"
				}
			}

			return app.OK(status, output.WithSummary(summary))
		},
	}
}

func newAuthLogoutCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "logout",
		Short: "Remove the stored token",
		Long:  "Remove the stored token for the configured provider and application.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app := appctx.FromContext(cmd.Context())
			if app == nil {
				return fmt.Errorf("app not initialized")
			}
			p, err := app.Profile()
			if err != nil {
				return err
			}

			if !force && app.IsInteractive() {
				ok, err := promptConfirm(fmt.Sprintf("Remove the stored %s token?", p.Name), false)
				if err != nil || !ok {
					return output.ErrUsage("logout canceled")
				}
			}

			err = app.TokenStore().Delete(app.TokenKey(p))
			if errors.Is(err, tokenstore.ErrNotFound) {
				return app.OK(map[string]string{"status": "not_logged_in"},
					output.WithSummary("Not logged in to "+p.Name))
			}
			if err != nil {
				return err
			}

			return app.OK(map[string]string{
				"status": "logged_out",
			}, output.WithSummary("Logged out of "+p.Name))
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "Skip the confirmation prompt")

	return cmd
}

func newAuthTokenCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "token",
		Short: "Print the stored access token",
		Long:  "Print the stored access token for use in scripts.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app := appctx.FromContext(cmd.Context())
			if app == nil {
				return fmt.Errorf("app not initialized")
			}
			p, err := app.Profile()
			if err != nil {
				return err
			}

			_, rec, err := app.Authorizer(p)
			if err != nil {
				return err
			}

			if rec.Bearer != nil {
				return app.OK(map[string]string{"access_token": rec.Bearer.AccessToken})
			}
			return app.OK(map[string]string{
				"oauth_token":        rec.Token.Key,
				"oauth_token_secret": rec.Token.Secret,
			})
		},
	}
}
