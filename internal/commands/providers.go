package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/weibokit/weibo/internal/appctx"
	"github.com/weibokit/weibo/internal/output"
	"github.com/weibokit/weibo/pkg/weibo/provider"
)

// NewProvidersCmd creates the providers command group.
func NewProvidersCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "providers",
		Aliases: []string{"provider"},
		Short:   "List supported providers",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List built-in provider profiles",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				app := appctx.FromContext(cmd.Context())
				if app == nil {
					return fmt.Errorf("app not initialized")
				}
				profiles := provider.All()
				rows := make([]map[string]any, 0, len(profiles))
				for _, p := range profiles {
					rows = append(rows, profileSummary(p))
				}
				return app.OK(rows,
					output.WithSummary(fmt.Sprintf("%d providers", len(rows))),
					output.WithBreadcrumbs(output.Breadcrumb{
						Action:      "show",
						Cmd:         "weibo providers show <name>",
						Description: "Show provider details",
					}),
				)
			},
		},
		&cobra.Command{
			Use:   "show [name]",
			Short: "Show a provider profile",
			Long:  "Show a provider profile. Without a name, shows the configured provider.",
			Args:  cobra.MaximumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				app := appctx.FromContext(cmd.Context())
				if app == nil {
					return fmt.Errorf("app not initialized")
				}

				var p *provider.Profile
				var err error
				if len(args) == 1 {
					p, err = provider.Lookup(args[0])
					if err != nil {
						return output.ErrNotFoundHint("provider", args[0], "Run: weibo providers list")
					}
				} else if p, err = app.Profile(); err != nil {
					return err
				}

				return app.OK(profileDetail(p), output.WithSummary(p.Title))
			},
		},
	)

	return cmd
}

func profileSummary(p *provider.Profile) map[string]any {
	style := p.SignatureStyle
	if style == "" {
		style = provider.StyleQuery
	}
	if p.OAuthVersion == 2 {
		style = "bearer"
	}
	return map[string]any{
		"name":            p.Name,
		"title":           p.Title,
		"oauth_version":   p.OAuthVersion,
		"base_url":        p.BaseURL,
		"signature_style": style,
	}
}

func profileDetail(p *provider.Profile) map[string]any {
	out := profileSummary(p)
	out["authorize_url"] = p.AuthorizeURL
	out["access_token_url"] = p.AccessTokenURL
	out["access_token_method"] = p.TokenMethod()
	out["default_callback"] = p.Callback("")
	out["upload_field"] = p.Upload.FieldName()
	if p.RequestTokenURL != "" {
		out["request_token_url"] = p.RequestTokenURL
	}
	if p.PathSuffix != "" {
		out["path_suffix"] = p.PathSuffix
	}
	if len(p.ReservedWords) > 0 {
		out["reserved_words"] = p.ReservedWords
	}
	if len(p.ParamPrefixes) > 0 {
		out["param_prefixes"] = p.ParamPrefixes
	}
	return out
}
