package request

import (
	"bytes"
	"io"
	"mime"
	"mime/multipart"
	"net/textproto"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weibokit/weibo/pkg/weibo/apierr"
	"github.com/weibokit/weibo/pkg/weibo/oauth1"
)

var testKey = &oauth1.Key{ConsumerSecret: "app-secret", TokenSecret: "token-secret"}

func signedParams(extra Params) Params {
	p := Params(oauth1.CommonParams("app-key",
		oauth1.FixedClock{Time: time.Unix(1318622958, 0)},
		oauth1.FixedNoncer("nonce")))
	p[oauth1.ParamToken] = "token"
	for k, v := range extra {
		p[k] = v
	}
	return p
}

func writeFile(t *testing.T, name string, size int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, bytes.Repeat([]byte{0xFF}, size), 0600))
	return path
}

func TestBuildGetAppendsQuery(t *testing.T) {
	req, err := Build(Input{
		Method: "get",
		URL:    "http://api.example.com/statuses/show.json?id=1",
		Params: Params{"count": "5", "q": "a b"},
	})
	require.NoError(t, err)

	assert.Equal(t, "GET", req.Method)
	assert.Empty(t, req.Body)
	u, err := url.Parse(req.URL)
	require.NoError(t, err)
	assert.Equal(t, "/statuses/show.json", u.Path)
	assert.Equal(t, url.Values{"id": {"1"}, "count": {"5"}, "q": {"a b"}}, u.Query())
	assert.Empty(t, req.Header.Get("Authorization"))
}

func TestBuildGetNoParams(t *testing.T) {
	req, err := Build(Input{Method: "GET", URL: "http://api.example.com/x.json"})
	require.NoError(t, err)
	assert.Equal(t, "http://api.example.com/x.json", req.URL)
}

func TestBuildPostForm(t *testing.T) {
	req, err := Build(Input{
		Method: "POST",
		URL:    "http://api.example.com/statuses/update.json",
		Params: Params{"status": "hi there"},
	})
	require.NoError(t, err)

	assert.Equal(t, ContentTypeForm, req.Header.Get("Content-Type"))
	assert.Equal(t, "15", req.Header.Get("Content-Length"))
	assert.Equal(t, "status=hi+there", string(req.Body))
	assert.Equal(t, "http://api.example.com/statuses/update.json", req.URL)
}

func TestBuildSignedQueryStyle(t *testing.T) {
	params := signedParams(Params{"content": "hello"})
	req, err := Build(Input{
		Method: "POST",
		URL:    "http://open.example.com/api/t/add",
		Params: params,
		Key:    testKey,
		Style:  StyleQuery,
	})
	require.NoError(t, err)

	form, err := DecodeForm(req.Body)
	require.NoError(t, err)

	expected := oauth1.Sign("POST", "http://open.example.com/api/t/add", params, *testKey, oauth1.All())
	assert.Equal(t, expected, form[oauth1.ParamSignature])
	assert.Equal(t, "token", form[oauth1.ParamToken])
	assert.Equal(t, "hello", form["content"])
	assert.Empty(t, req.Header.Get("Authorization"))
}

func TestBuildSignedHeaderStyle(t *testing.T) {
	params := signedParams(Params{"status": "hello"})
	req, err := Build(Input{
		Method: "POST",
		URL:    "http://api.example.com/statuses/update.json",
		Params: params,
		Key:    testKey,
		Style:  StyleHeader,
	})
	require.NoError(t, err)

	// Only the non-oauth fields remain in the body.
	form, err := DecodeForm(req.Body)
	require.NoError(t, err)
	assert.Equal(t, Params{"status": "hello"}, form)

	header := req.Header.Get("Authorization")
	assert.True(t, strings.HasPrefix(header, `OAuth realm="", oauth_consumer_key="app-key", oauth_nonce="nonce", oauth_signature="`), header)
	assert.Contains(t, header, `oauth_token="token"`)
	assert.NotContains(t, header, "status")

	sig := oauth1.Sign("POST", "http://api.example.com/statuses/update.json", params, *testKey, oauth1.All())
	assert.Contains(t, header, `oauth_signature="`+oauth1.PercentEncode(sig)+`"`)
}

func TestBuildSignedGetHeaderStyle(t *testing.T) {
	params := signedParams(Params{"count": "20"})
	req, err := Build(Input{
		Method: "GET",
		URL:    "http://api.example.com/statuses/home_timeline.json",
		Params: params,
		Key:    testKey,
		Style:  StyleHeader,
	})
	require.NoError(t, err)

	u, err := url.Parse(req.URL)
	require.NoError(t, err)
	assert.Equal(t, url.Values{"count": {"20"}}, u.Query())
	assert.Contains(t, req.Header.Get("Authorization"), "oauth_signature=")
}

func TestBuildDoesNotMutateInput(t *testing.T) {
	params := signedParams(Params{"status": "x"})
	before := params.Clone()

	_, err := Build(Input{Method: "POST", URL: "http://api.example.com/x", Params: params, Key: testKey, Style: StyleHeader})
	require.NoError(t, err)
	assert.Equal(t, before, params)
}

func TestBuildUnsupportedMethod(t *testing.T) {
	_, err := Build(Input{Method: "DELETE", URL: "http://api.example.com/x"})
	require.Error(t, err)
	assert.True(t, apierr.IsValidation(err))
}

type formPart struct {
	header   textproto.MIMEHeader
	filename string
	body     string
}

func readParts(t *testing.T, req *Request) map[string]formPart {
	t.Helper()
	mediaType, mp, err := mime.ParseMediaType(req.Header.Get("Content-Type"))
	require.NoError(t, err)
	require.Equal(t, ContentTypeMultipart, mediaType)
	require.True(t, strings.HasPrefix(mp["boundary"], "------"), mp["boundary"])

	parts := map[string]formPart{}
	r := multipart.NewReader(bytes.NewReader(req.Body), mp["boundary"])
	for {
		p, err := r.NextPart()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		body, err := io.ReadAll(p)
		require.NoError(t, err)
		parts[p.FormName()] = formPart{header: p.Header, filename: p.FileName(), body: string(body)}
	}
	return parts
}

func TestBuildMultipart(t *testing.T) {
	path := writeFile(t, "photo.png", 2048)

	req, err := Build(Input{
		Method: "POST",
		URL:    "http://api.example.com/statuses/upload.json",
		Params: Params{"status": "with picture", "pic": path},
		Upload: &UploadRule{MaxBytes: 5 * 1024 * 1024},
	})
	require.NoError(t, err)
	assert.Equal(t, "POST", req.Method)

	mediaType, mp, err := mime.ParseMediaType(req.Header.Get("Content-Type"))
	require.NoError(t, err)
	assert.Equal(t, ContentTypeMultipart, mediaType)
	assert.Len(t, mp["boundary"], 42)

	r := multipart.NewReader(bytes.NewReader(req.Body), mp["boundary"])

	text, err := r.NextPart()
	require.NoError(t, err)
	assert.Equal(t, "status", text.FormName())
	assert.Equal(t, "text/plain; charset=UTF-8", text.Header.Get("Content-Type"))
	assert.Equal(t, "8bit", text.Header.Get("Content-Transfer-Encoding"))
	body, err := io.ReadAll(text)
	require.NoError(t, err)
	assert.Equal(t, "with picture", string(body))

	file, err := r.NextPart()
	require.NoError(t, err)
	assert.Equal(t, "pic", file.FormName())
	assert.Equal(t, "photo.png", file.FileName())
	assert.Equal(t, "image/png", file.Header.Get("Content-Type"))
	assert.Equal(t, "binary", file.Header.Get("Content-Transfer-Encoding"))
	data, err := io.ReadAll(file)
	require.NoError(t, err)
	assert.Len(t, data, 2048)

	_, err = r.NextPart()
	assert.Equal(t, io.EOF, err)

	assert.Equal(t, strconv.Itoa(len(req.Body)), req.Header.Get("Content-Length"))
}

func TestBuildMultipartUnknownExtension(t *testing.T) {
	path := writeFile(t, "blob.zzunknown", 10)
	req, err := Build(Input{
		Method: "POST",
		URL:    "http://api.example.com/upload",
		Params: Params{"pic": path},
		Upload: &UploadRule{},
	})
	require.NoError(t, err)

	parts := readParts(t, req)
	require.Contains(t, parts, "pic")
	assert.Equal(t, "application/octet-stream", parts["pic"].header.Get("Content-Type"))
}

func TestBuildMultipartOAuthOnlySigning(t *testing.T) {
	path := writeFile(t, "a.jpg", 100)
	params := signedParams(Params{"status": "s", "pic": path})

	req, err := Build(Input{
		Method: "POST",
		URL:    "http://api.example.com/statuses/upload.json",
		Params: params,
		Key:    testKey,
		Style:  StyleHeader,
		Upload: &UploadRule{Filter: oauth1.OAuthOnly()},
	})
	require.NoError(t, err)

	oauthOnly := map[string]string{}
	for k, v := range params {
		if strings.HasPrefix(k, "oauth_") {
			oauthOnly[k] = v
		}
	}
	sig := oauth1.Sign("POST", "http://api.example.com/statuses/upload.json", oauthOnly, *testKey, nil)
	assert.Contains(t, req.Header.Get("Authorization"), `oauth_signature="`+oauth1.PercentEncode(sig)+`"`)

	parts := readParts(t, req)
	assert.Contains(t, parts, "status")
	assert.Contains(t, parts, "pic")
	assert.NotContains(t, parts, "oauth_token")
}

func TestBuildMultipartQueryStyleSignsAllButFile(t *testing.T) {
	path := writeFile(t, "a.gif", 100)
	params := signedParams(Params{"content": "c", "pic": path})

	req, err := Build(Input{
		Method: "POST",
		URL:    "http://open.example.com/api/t/add_pic",
		Params: params,
		Key:    testKey,
		Style:  StyleQuery,
		Upload: &UploadRule{MaxBytes: 4 * 1024 * 1024},
	})
	require.NoError(t, err)

	withoutFile := map[string]string{}
	for k, v := range params {
		if k != "pic" {
			withoutFile[k] = v
		}
	}
	expected := oauth1.Sign("POST", "http://open.example.com/api/t/add_pic", withoutFile, *testKey, nil)

	parts := readParts(t, req)
	require.Contains(t, parts, oauth1.ParamSignature)
	assert.Equal(t, expected, parts[oauth1.ParamSignature].body)
	assert.Contains(t, parts, oauth1.ParamToken)
}

func TestBuildUploadValidation(t *testing.T) {
	empty := writeFile(t, "empty.jpg", 0)
	small := writeFile(t, "small.jpg", 512)
	big := writeFile(t, "big.jpg", 3000)

	cases := []struct {
		name   string
		path   string
		rule   UploadRule
		errMsg string
	}{
		{"missing", filepath.Join(t.TempDir(), "nope.jpg"), UploadRule{}, "not exist"},
		{"directory", t.TempDir(), UploadRule{}, "not exist"},
		{"zero bytes", empty, UploadRule{MaxBytes: 5000}, "at least 1"},
		{"below min", small, UploadRule{MinBytes: 1024, MaxBytes: 2048}, "at least 1024"},
		{"above max", big, UploadRule{MaxBytes: 2048}, "at most 2048"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			rule := c.rule
			_, err := Build(Input{
				Method: "POST",
				URL:    "http://api.example.com/upload",
				Params: Params{"pic": c.path},
				Upload: &rule,
			})
			require.Error(t, err)
			assert.True(t, apierr.IsValidation(err), "got %v", err)
			assert.Contains(t, err.Error(), c.errMsg)
		})
	}
}

func TestBuildUploadRequiresPost(t *testing.T) {
	path := writeFile(t, "a.jpg", 10)
	_, err := Build(Input{
		Method: "GET",
		URL:    "http://api.example.com/upload",
		Params: Params{"pic": path},
		Upload: &UploadRule{},
	})
	require.Error(t, err)
	assert.True(t, apierr.IsValidation(err))
}

func TestBuildCustomUploadField(t *testing.T) {
	path := writeFile(t, "a.jpg", 10)
	req, err := Build(Input{
		Method: "POST",
		URL:    "http://api.example.com/upload",
		Params: Params{"image": path, "pic": "not a file"},
		Upload: &UploadRule{Field: "image"},
	})
	require.NoError(t, err)

	parts := readParts(t, req)
	assert.Equal(t, "a.jpg", parts["image"].filename)
	assert.Contains(t, parts, "pic")
}

func TestBuildNoUploadRuleSendsPathAsText(t *testing.T) {
	req, err := Build(Input{
		Method: "POST",
		URL:    "http://api.example.com/x",
		Params: Params{"pic": "/tmp/a.jpg"},
	})
	require.NoError(t, err)
	assert.Equal(t, ContentTypeForm, req.Header.Get("Content-Type"))
}

func TestFormRoundTrip(t *testing.T) {
	cases := []Params{
		{},
		{"status": "Hello Ladies + Gentlemen, a signed OAuth request!"},
		{"a": "1", "b": "", "c": "~!*()'", "中文": "微博 测试", "k=v": "x&y"},
	}
	for _, original := range cases {
		req, err := Build(Input{Method: "POST", URL: "http://api.example.com/x", Params: original})
		require.NoError(t, err)

		decoded, err := DecodeForm(req.Body)
		require.NoError(t, err)
		assert.Equal(t, original, decoded)
	}
}

func TestExpandHome(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	assert.Equal(t, filepath.Join(home, "a.jpg"), expandHome("~/a.jpg"))
	assert.Equal(t, "/abs/a.jpg", expandHome("/abs/a.jpg"))
	assert.Equal(t, "~user/a.jpg", expandHome("~user/a.jpg"))
}
