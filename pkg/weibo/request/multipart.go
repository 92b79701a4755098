package request

import (
	"bytes"
	"fmt"
	"mime"
	"mime/multipart"
	"net/textproto"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/weibokit/weibo/pkg/weibo/apierr"
	"github.com/weibokit/weibo/pkg/weibo/oauth1"
)

// UploadRule bounds a multipart file upload.
type UploadRule struct {
	// Field names the parameter that carries the file path. Defaults to "pic".
	Field string
	// MinBytes is the smallest accepted file. Zero means one byte.
	MinBytes int64
	// MaxBytes is the largest accepted file. Zero means unbounded.
	MaxBytes int64
	// Filter selects the signed parameters. The file field is never signed.
	Filter oauth1.Filter
}

type uploadFile struct {
	field string
	path  string
	size  int64
}

func (r *UploadRule) field() string {
	if r.Field == "" {
		return "pic"
	}
	return r.Field
}

func (r *UploadRule) filter() oauth1.Filter {
	if r.Filter == nil {
		return oauth1.All()
	}
	return r.Filter
}

// check validates that path names a regular file within bounds.
func (r *UploadRule) check(path string) (*uploadFile, error) {
	path = expandHome(path)

	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		return nil, apierr.ErrValidation("file %q not exist", path)
	}

	minBytes := r.MinBytes
	if minBytes <= 0 {
		minBytes = 1
	}
	size := info.Size()
	if size < minBytes {
		return nil, apierr.ErrValidation("size of file %q is %d bytes, must be at least %d", path, size, minBytes)
	}
	if r.MaxBytes > 0 && size > r.MaxBytes {
		return nil, apierr.ErrValidation("size of file %q is %d bytes, must be at most %d", path, size, r.MaxBytes)
	}
	return &uploadFile{field: r.field(), path: path, size: size}, nil
}

// encodeMultipart writes one text part per parameter, sorted by key, then
// the file part.
func encodeMultipart(params Params, file *uploadFile) ([]byte, string, error) {
	data, err := os.ReadFile(file.path)
	if err != nil {
		return nil, "", apierr.ErrIO("reading upload", err)
	}
	if int64(len(data)) != file.size {
		return nil, "", apierr.ErrIO("reading upload", fmt.Errorf("file %q changed size while reading", file.path))
	}

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	if err := w.SetBoundary("------" + uuid.NewString()); err != nil {
		return nil, "", apierr.ErrIO("multipart boundary", err)
	}

	for _, k := range params.Keys() {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"`, escapeQuotes(k)))
		h.Set("Content-Type", "text/plain; charset=UTF-8")
		h.Set("Content-Transfer-Encoding", "8bit")
		part, err := w.CreatePart(h)
		if err != nil {
			return nil, "", apierr.ErrIO("writing multipart", err)
		}
		if _, err := part.Write([]byte(params[k])); err != nil {
			return nil, "", apierr.ErrIO("writing multipart", err)
		}
	}

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`,
		escapeQuotes(file.field), escapeQuotes(filepath.Base(file.path))))
	h.Set("Content-Type", guessContentType(file.path))
	h.Set("Content-Transfer-Encoding", "binary")
	part, err := w.CreatePart(h)
	if err != nil {
		return nil, "", apierr.ErrIO("writing multipart", err)
	}
	if _, err := part.Write(data); err != nil {
		return nil, "", apierr.ErrIO("writing multipart", err)
	}

	if err := w.Close(); err != nil {
		return nil, "", apierr.ErrIO("writing multipart", err)
	}
	return buf.Bytes(), w.FormDataContentType(), nil
}

func guessContentType(path string) string {
	if t := mime.TypeByExtension(strings.ToLower(filepath.Ext(path))); t != "" {
		return t
	}
	return "application/octet-stream"
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func escapeQuotes(s string) string {
	return quoteEscaper.Replace(s)
}

func expandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}
