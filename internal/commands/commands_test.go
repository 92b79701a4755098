package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weibokit/weibo/internal/appctx"
	"github.com/weibokit/weibo/internal/config"
	"github.com/weibokit/weibo/internal/output"
	"github.com/weibokit/weibo/internal/tokenstore"
	"github.com/weibokit/weibo/pkg/weibo/auth"
	"github.com/weibokit/weibo/pkg/weibo/request"
)

// fakeProvider serves the token endpoints and a small API.
type fakeProvider struct {
	*httptest.Server

	mu       sync.Mutex
	requests []*http.Request
	forms    []map[string]string
}

func newFakeProvider(t *testing.T) *fakeProvider {
	t.Helper()
	fp := &fakeProvider{}
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth/request_token", func(w http.ResponseWriter, r *http.Request) {
		fp.record(r)
		fmt.Fprint(w, "oauth_token=req-key&oauth_token_secret=req-secret")
	})
	mux.HandleFunc("/oauth/access_token", func(w http.ResponseWriter, r *http.Request) {
		fp.record(r)
		fmt.Fprint(w, "oauth_token=acc-key&oauth_token_secret=acc-secret&user_id=42&name=alice")
	})
	mux.HandleFunc("/oauth2/access_token", func(w http.ResponseWriter, r *http.Request) {
		fp.record(r)
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"access_token":"bearer-1","expires_in":3600,"uid":"42"}`)
	})
	mux.HandleFunc("/statuses/user_timeline", func(w http.ResponseWriter, r *http.Request) {
		fp.record(r)
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `[{"id":3500000000000000001,"text":"hello"},{"id":2,"text":"world"}]`)
	})
	mux.HandleFunc("/statuses/update", func(w http.ResponseWriter, r *http.Request) {
		fp.record(r)
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"id":7,"text":%q}`, r.FormValue("status"))
	})
	fp.Server = httptest.NewServer(mux)
	t.Cleanup(fp.Close)
	return fp
}

func (fp *fakeProvider) record(r *http.Request) {
	_ = r.ParseForm()
	form := map[string]string{}
	for k, vs := range r.Form {
		form[k] = vs[0]
	}
	fp.mu.Lock()
	defer fp.mu.Unlock()
	fp.requests = append(fp.requests, r)
	fp.forms = append(fp.forms, form)
}

func (fp *fakeProvider) last() (*http.Request, map[string]string) {
	fp.mu.Lock()
	defer fp.mu.Unlock()
	n := len(fp.requests)
	return fp.requests[n-1], fp.forms[n-1]
}

// writeProfile writes a provider file pointing at the fake provider.
func (fp *fakeProvider) writeProfile(t *testing.T, version int) string {
	t.Helper()
	var b strings.Builder
	fmt.Fprintf(&b, "name: fake\ntitle: Fake Provider\noauth_version: %d\nbase_url: %s/\n", version, fp.URL)
	if version == 1 {
		fmt.Fprintf(&b, "request_token_url: %s/oauth/request_token\n", fp.URL)
		fmt.Fprintf(&b, "authorize_url: %s/oauth/authorize\n", fp.URL)
		fmt.Fprintf(&b, "access_token_url: %s/oauth/access_token\n", fp.URL)
		b.WriteString("signature_style: header\n")
	} else {
		fmt.Fprintf(&b, "authorize_url: %s/oauth2/authorize\n", fp.URL)
		fmt.Fprintf(&b, "access_token_url: %s/oauth2/access_token\n", fp.URL)
		b.WriteString("access_token_method: POST\ndefault_callback: http://localhost/cb\n")
	}
	path := filepath.Join(t.TempDir(), "fake.yaml")
	require.NoError(t, os.WriteFile(path, []byte(b.String()), 0600))
	return path
}

func testApp(t *testing.T, providerFile string) (*appctx.App, *bytes.Buffer) {
	t.Helper()
	cfg := config.Default()
	cfg.ProviderFile = providerFile
	cfg.AppKey = "app-key"
	cfg.AppSecret = "app-secret"

	var stdout bytes.Buffer
	app := appctx.NewApp(cfg)
	app.Stdout = &stdout
	app.Stderr = io.Discard
	app.Tokens = tokenstore.NewFileStore(t.TempDir())
	app.Flags.JSON = true
	app.ApplyFlags()
	return app, &stdout
}

func run(app *appctx.App, cmd *cobra.Command, args ...string) error {
	cmd.SetArgs(args)
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)
	cmd.SilenceUsage = true
	cmd.SilenceErrors = true
	return cmd.ExecuteContext(appctx.WithApp(context.Background(), app))
}

// lastData decodes the data of the last JSON envelope written to stdout.
func lastData(t *testing.T, stdout *bytes.Buffer) map[string]any {
	t.Helper()
	type envelope struct {
		OK   bool           `json:"ok"`
		Data map[string]any `json:"data"`
	}
	var last envelope
	dec := json.NewDecoder(bytes.NewReader(stdout.Bytes()))
	for dec.More() {
		var resp envelope
		require.NoError(t, dec.Decode(&resp), stdout.String())
		last = resp
	}
	assert.True(t, last.OK)
	return last.Data
}

func requireCode(t *testing.T, err error, code string) {
	t.Helper()
	require.Error(t, err)
	e := output.AsError(err)
	assert.Equal(t, code, e.Code, e.Message)
}

func TestAuthLoginNoPromptStoresPendingToken(t *testing.T) {
	fp := newFakeProvider(t)
	app, stdout := testApp(t, fp.writeProfile(t, 1))

	require.NoError(t, run(app, NewAuthCmd(), "login", "--no-prompt"))

	data := lastData(t, stdout)
	assert.Equal(t, "pending", data["status"])
	assert.Contains(t, data["authorization_url"], fp.URL+"/oauth/authorize")
	assert.Contains(t, data["authorization_url"], "oauth_token=req-key")

	rec, err := app.TokenStore().Load(tokenstore.Key("fake", "app-key"))
	require.NoError(t, err)
	assert.True(t, rec.Pending())
	assert.Equal(t, "req-key", rec.Token.Key)

	p, err := app.Profile()
	require.NoError(t, err)
	_, _, err = app.Authorizer(p)
	requireCode(t, err, output.CodeAuth)
}

func TestAuthLoginInteractiveOAuth1(t *testing.T) {
	fp := newFakeProvider(t)
	app, stdout := testApp(t, fp.writeProfile(t, 1))

	// Interactive login is only reachable through a TTY; exercise the
	// session path directly with a scripted verifier.
	saved := promptInput
	t.Cleanup(func() { promptInput = saved })
	promptInput = func(title, _ string, _ bool) (string, error) {
		assert.Equal(t, "Verifier", title)
		return "1234", nil
	}

	cmd := NewAuthCmd()
	cmd.SetContext(appctx.WithApp(context.Background(), app))
	s, err := newSession(cmd)
	require.NoError(t, err)
	require.NoError(t, s.login1(cmd, "", true))

	data := lastData(t, stdout)
	assert.Equal(t, "authorized", data["status"])
	assert.Equal(t, "alice", data["name"])

	_, form := fp.last()
	assert.Equal(t, "1234", form["oauth_verifier"])

	authz, rec, err := app.Authorizer(s.profile)
	require.NoError(t, err)
	assert.NotNil(t, authz)
	assert.Equal(t, "acc-key", rec.Token.Key)
}

func TestAuthVerifyCompletesPendingLogin(t *testing.T) {
	fp := newFakeProvider(t)
	app, stdout := testApp(t, fp.writeProfile(t, 1))

	require.NoError(t, run(app, NewAuthCmd(), "login", "--no-prompt"))
	stdout.Reset()
	require.NoError(t, run(app, NewAuthCmd(), "verify", "5678"))

	data := lastData(t, stdout)
	assert.Equal(t, "authorized", data["status"])
	assert.Equal(t, "42", data["user_id"])

	rec, err := app.TokenStore().Load(tokenstore.Key("fake", "app-key"))
	require.NoError(t, err)
	assert.True(t, rec.Token.Verified())
	assert.Equal(t, "acc-secret", rec.Token.Secret)
}

func TestAuthVerifyWithoutPendingLogin(t *testing.T) {
	fp := newFakeProvider(t)
	app, _ := testApp(t, fp.writeProfile(t, 1))

	err := run(app, NewAuthCmd(), "verify", "5678")
	requireCode(t, err, output.CodeUsage)
	assert.Contains(t, output.AsError(err).Hint, "auth login")
}

func TestAuthOAuth2Flow(t *testing.T) {
	fp := newFakeProvider(t)
	app, stdout := testApp(t, fp.writeProfile(t, 2))

	require.NoError(t, run(app, NewAuthCmd(), "login", "--no-prompt"))
	data := lastData(t, stdout)
	assert.Equal(t, "http://localhost/cb", data["redirect_uri"])
	assert.Contains(t, data["authorization_url"], "client_id=app-key")

	stdout.Reset()
	require.NoError(t, run(app, NewAuthCmd(), "verify", "the-code"))
	data = lastData(t, stdout)
	assert.Equal(t, "authorized", data["status"])
	assert.NotEmpty(t, data["expires_at"])

	r, form := fp.last()
	assert.Equal(t, http.MethodPost, r.Method)
	assert.Equal(t, "the-code", form["code"])
	assert.Equal(t, "http://localhost/cb", form["redirect_uri"])

	stdout.Reset()
	require.NoError(t, run(app, NewAuthCmd(), "token"))
	assert.Equal(t, "bearer-1", lastData(t, stdout)["access_token"])
}

func TestAuthStatus(t *testing.T) {
	fp := newFakeProvider(t)
	app, stdout := testApp(t, fp.writeProfile(t, 1))

	require.NoError(t, run(app, NewAuthCmd(), "status"))
	data := lastData(t, stdout)
	assert.Equal(t, false, data["authenticated"])
	assert.Equal(t, false, data["keyring"])

	require.NoError(t, app.TokenStore().Save(tokenstore.Key("fake", "app-key"), &tokenstore.Record{
		Provider: "fake", OAuthVersion: 1, Token: &auth.Token{Key: "k", Secret: "s", Name: "bob", State: auth.StateVerified},
	}))
	stdout.Reset()
	require.NoError(t, run(app, NewAuthCmd(), "status"))
	data = lastData(t, stdout)
	assert.Equal(t, true, data["authenticated"])
	assert.Equal(t, "bob", data["name"])
}

func TestAuthLogout(t *testing.T) {
	fp := newFakeProvider(t)
	app, stdout := testApp(t, fp.writeProfile(t, 1))

	require.NoError(t, run(app, NewAuthCmd(), "logout"))
	assert.Equal(t, "not_logged_in", lastData(t, stdout)["status"])

	key := tokenstore.Key("fake", "app-key")
	require.NoError(t, app.TokenStore().Save(key, &tokenstore.Record{
		Provider: "fake", OAuthVersion: 1, Token: auth.NewAccessToken("k", "s"),
	}))
	stdout.Reset()
	require.NoError(t, run(app, NewAuthCmd(), "logout"))
	assert.Equal(t, "logged_out", lastData(t, stdout)["status"])

	_, err := app.TokenStore().Load(key)
	assert.ErrorIs(t, err, tokenstore.ErrNotFound)
}

func TestAuthTokenRequiresLogin(t *testing.T) {
	fp := newFakeProvider(t)
	app, _ := testApp(t, fp.writeProfile(t, 1))

	requireCode(t, run(app, NewAuthCmd(), "token"), output.CodeAuth)
}

func TestCallSignsWithStoredToken(t *testing.T) {
	fp := newFakeProvider(t)
	app, stdout := testApp(t, fp.writeProfile(t, 1))
	require.NoError(t, app.TokenStore().Save(tokenstore.Key("fake", "app-key"), &tokenstore.Record{
		Provider: "fake", OAuthVersion: 1, Token: auth.NewAccessToken("acc-key", "acc-secret"),
	}))

	require.NoError(t, run(app, NewCallCmd(), "statuses.update.post", "status=hello world"))
	data := lastData(t, stdout)
	assert.Equal(t, "hello world", data["text"])

	r, _ := fp.last()
	assert.Equal(t, http.MethodPost, r.Method)
	assert.Contains(t, r.Header.Get("Authorization"), `oauth_token="acc-key"`)
}

func TestCallKeepsLargeIDs(t *testing.T) {
	fp := newFakeProvider(t)
	app, stdout := testApp(t, fp.writeProfile(t, 1))

	require.NoError(t, run(app, NewCallCmd(), "--no-auth", "statuses.user_timeline.get", "-F", "count=2"))
	assert.Contains(t, stdout.String(), "3500000000000000001")
	assert.Contains(t, stdout.String(), "GET statuses/user_timeline: 2 items")

	r, form := fp.last()
	assert.Empty(t, r.Header.Get("Authorization"))
	assert.Equal(t, "2", form["count"])
}

func TestCallErrors(t *testing.T) {
	fp := newFakeProvider(t)
	app, _ := testApp(t, fp.writeProfile(t, 1))

	requireCode(t, run(app, NewCallCmd(), "statuses.user_timeline"), output.CodeUsage)
	requireCode(t, run(app, NewCallCmd(), "--no-auth", "statuses.update.post", "novalue"), output.CodeUsage)
	requireCode(t, run(app, NewCallCmd(), "statuses.update.post", "status=x"), output.CodeAuth)
}

func TestParseKeyValues(t *testing.T) {
	flags := request.Params{"count": "5", "status": "from flag"}
	got, err := parseKeyValues(flags, []string{"status=a=b", "empty="})
	require.NoError(t, err)
	assert.Equal(t, request.Params{"count": "5", "status": "a=b", "empty": ""}, got)
	assert.Equal(t, "from flag", flags["status"], "input is not modified")

	_, err = parseKeyValues(nil, []string{"=x"})
	requireCode(t, err, output.CodeUsage)
}

func TestParamsValue(t *testing.T) {
	v := newParamsValue()
	require.NoError(t, v.Set("b=2"))
	require.NoError(t, v.Set("a= 1"))
	assert.Error(t, v.Set("nope"))
	assert.Equal(t, "[a= 1,b=2]", v.String())
	assert.Equal(t, "key=value", v.Type())
}

func TestProvidersList(t *testing.T) {
	app, stdout := testApp(t, "")

	require.NoError(t, run(app, NewProvidersCmd(), "list"))
	out := stdout.String()
	for _, name := range []string{"sina", "sina2", "qq", "netease", "netease2"} {
		assert.Contains(t, out, `"name": "`+name+`"`)
	}
	assert.Contains(t, out, `"signature_style": "bearer"`)
}

func TestProvidersShow(t *testing.T) {
	app, stdout := testApp(t, "")

	require.NoError(t, run(app, NewProvidersCmd(), "show", "qq"))
	assert.Equal(t, "qq", lastData(t, stdout)["name"])

	stdout.Reset()
	require.NoError(t, run(app, NewProvidersCmd(), "show"))
	assert.Equal(t, "sina", lastData(t, stdout)["name"])

	requireCode(t, run(app, NewProvidersCmd(), "show", "nope"), output.CodeNotFound)
}

func TestConfigSetAndShow(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Chdir(t.TempDir())
	app, stdout := testApp(t, "")

	require.NoError(t, run(app, NewConfigCmd(), "set", "format", "json"))
	data := lastData(t, stdout)
	assert.Equal(t, "local", data["scope"])

	raw, err := os.ReadFile(config.LocalConfigPath())
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"format": "json"`)

	err = run(app, NewConfigCmd(), "set", "app_secret", "s3cret")
	requireCode(t, err, output.CodeUsage)
	assert.Contains(t, output.AsError(err).Hint, "--global")

	stdout.Reset()
	require.NoError(t, run(app, NewConfigCmd(), "set", "app_secret", "s3cret-value", "--global"))
	assert.Equal(t, "s3********ue", lastData(t, stdout)["value"])

	stdout.Reset()
	require.NoError(t, run(app, NewConfigCmd(), "show"))
	assert.NotContains(t, stdout.String(), "app-secret")
	assert.Contains(t, stdout.String(), `"app_key"`)

	requireCode(t, run(app, NewConfigCmd(), "set", "verbose", "9"), output.CodeUsage)

	require.NoError(t, run(app, NewConfigCmd(), "unset", "format"))
	raw, err = os.ReadFile(config.LocalConfigPath())
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "format")
}

func TestRedact(t *testing.T) {
	assert.Equal(t, "****", redact("abc"))
	assert.Equal(t, "ab**ef", redact("abcdef"))
}

func TestCallSummary(t *testing.T) {
	fp := newFakeProvider(t)
	app, stdout := testApp(t, fp.writeProfile(t, 1))

	require.NoError(t, run(app, NewCallCmd(), "--no-auth", "statuses.update.post", "status=hi"))
	assert.Contains(t, stdout.String(), "POST statuses/update: hi")
}

func TestCommandsCatalog(t *testing.T) {
	app, stdout := testApp(t, "")

	root := &cobra.Command{Use: "weibo"}
	root.AddCommand(NewAuthCmd(), NewCallCmd(), NewProvidersCmd(), NewCommandsCmd())
	require.NoError(t, run(app, root, "commands"))

	out := stdout.String()
	assert.Contains(t, out, `"name": "auth"`)
	assert.Contains(t, out, `"login"`)
	assert.Contains(t, out, `"no-auth"`)
}

func TestVersion(t *testing.T) {
	app, stdout := testApp(t, "")
	require.NoError(t, run(app, NewVersionCmd()))
	assert.Equal(t, "dev", lastData(t, stdout)["version"])
}
