package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weibokit/weibo/internal/config"
	"github.com/weibokit/weibo/internal/output"
)

func isolate(t *testing.T) {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Chdir(home)
	for _, k := range []string{"WEIBO_APP", "WEIBO_PROVIDER", "WEIBO_APP_KEY", "WEIBO_APP_SECRET", "WEIBO_TIMEOUT"} {
		t.Setenv(k, "")
	}
}

func appsConfig() *config.Config {
	cfg := config.Default()
	cfg.Apps = map[string]*config.AppConfig{
		"work": {Provider: "qq", AppKey: "qq-key", AppSecret: "qq-secret"},
		"home": {Provider: "sina2", AppKey: "sina-key"},
	}
	return cfg
}

func TestNewAppRegistersCommands(t *testing.T) {
	cmd := NewApp()
	var names []string
	for _, c := range cmd.Commands() {
		names = append(names, c.Name())
	}
	for _, want := range []string{"auth", "call", "providers", "config", "commands", "version"} {
		assert.Contains(t, names, want)
	}

	for _, flag := range []string{"json", "quiet", "styled", "jq", "provider", "app", "timeout", "verbose", "stats"} {
		assert.NotNil(t, cmd.PersistentFlags().Lookup(flag), flag)
	}
}

func TestSelectAppExplicit(t *testing.T) {
	isolate(t)
	cfg := appsConfig()

	require.NoError(t, selectApp(cfg, config.FlagOverrides{App: "work"}))
	assert.Equal(t, "work", cfg.ActiveApp)
	assert.Equal(t, "qq", cfg.Provider)
	assert.Equal(t, "qq-key", cfg.AppKey)
	assert.Equal(t, string(config.SourceFlag), cfg.Sources["app"])
}

func TestSelectAppFlagsWin(t *testing.T) {
	isolate(t)
	cfg := appsConfig()

	err := selectApp(cfg, config.FlagOverrides{App: "work", Provider: "netease", Timeout: 3 * time.Second})
	require.NoError(t, err)
	assert.Equal(t, "netease", cfg.Provider)
	assert.Equal(t, 3*time.Second, cfg.Timeout)
	assert.Equal(t, "qq-key", cfg.AppKey)
}

func TestSelectAppEnvWins(t *testing.T) {
	isolate(t)
	t.Setenv("WEIBO_APP_KEY", "env-key")
	cfg := appsConfig()

	require.NoError(t, selectApp(cfg, config.FlagOverrides{App: "work"}))
	assert.Equal(t, "env-key", cfg.AppKey)
}

func TestSelectAppDefaultAndEnvName(t *testing.T) {
	isolate(t)

	cfg := appsConfig()
	cfg.DefaultApp = "home"
	require.NoError(t, selectApp(cfg, config.FlagOverrides{}))
	assert.Equal(t, "home", cfg.ActiveApp)
	assert.Empty(t, cfg.Sources["app"])

	t.Setenv("WEIBO_APP", "work")
	cfg = appsConfig()
	cfg.DefaultApp = "home"
	require.NoError(t, selectApp(cfg, config.FlagOverrides{}))
	assert.Equal(t, "work", cfg.ActiveApp)
}

func TestSelectAppNone(t *testing.T) {
	isolate(t)
	cfg := config.Default()
	require.NoError(t, selectApp(cfg, config.FlagOverrides{}))
	assert.Empty(t, cfg.ActiveApp)
	assert.Equal(t, "sina", cfg.Provider)
}

func TestSelectAppUnknown(t *testing.T) {
	isolate(t)
	cfg := appsConfig()

	err := selectApp(cfg, config.FlagOverrides{App: "nope"})
	require.Error(t, err)
	e := output.AsError(err)
	assert.Equal(t, output.CodeUsage, e.Code)
	assert.Equal(t, "Available apps: home, work", e.Hint)

	err = selectApp(config.Default(), config.FlagOverrides{App: "nope"})
	require.Error(t, err)
	assert.Contains(t, output.AsError(err).Hint, "Configure apps in")
}

func TestTransformCobraError(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"flag needs an argument: --jq", "--jq requires a value"},
		{"unknown flag: --nope", "Unknown option: --nope"},
		{"unknown shorthand flag: 'z' in -z", "Unknown option: -z"},
		{`invalid argument "x" for "--timeout" flag`, `invalid argument "x" for "--timeout" flag`},
		{"accepts 1 arg(s), received 0", "accepts 1 arg(s), received 0"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			e := output.AsError(transformCobraError(errors.New(tt.in)))
			assert.Equal(t, output.CodeUsage, e.Code)
			assert.Equal(t, tt.want, e.Message)
		})
	}

	e := output.AsError(transformCobraError(errors.New(`unknown command "x" for "weibo"`)))
	assert.Equal(t, "Run: weibo commands", e.Hint)

	other := errors.New("boom")
	assert.Same(t, other, transformCobraError(other))
}

func TestRunReportsSetupErrors(t *testing.T) {
	isolate(t)

	var stdout bytes.Buffer
	cmd := NewApp()
	cmd.SetArgs([]string{"--json", "--app", "missing", "version"})
	code := run(cmd, &stdout)

	assert.Equal(t, output.ExitUsage, code)
	var resp output.ErrorResponse
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &resp))
	assert.False(t, resp.OK)
	assert.Equal(t, output.CodeUsage, resp.Code)
	assert.Equal(t, "no apps configured", resp.Error)
}

func TestRunReportsUnknownFlag(t *testing.T) {
	isolate(t)

	var stdout bytes.Buffer
	cmd := NewApp()
	cmd.SetArgs([]string{"--json", "providers", "list", "--bogus"})
	code := run(cmd, &stdout)

	assert.Equal(t, output.ExitUsage, code)
	assert.Contains(t, stdout.String(), "Unknown option: --bogus")
}

func TestProviderCompletion(t *testing.T) {
	got, directive := providerCompletion(nil, nil, "sin")
	assert.Equal(t, []string{"sina", "sina2"}, got)
	assert.NotZero(t, directive)
}
