// Package artifact writes finished idea documents to disk.
package artifact

// #region imports
import (
	"bytes"
	"errors"
	"fmt"
	"html"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/danielpatrickdp/idea-forge/internal/document"
)

// #endregion

// #region types

const (
	fileTimeLayout = "20060102-150405"
	maxSlugLen     = 60
)

// ErrExists means the target file is already there. Documents are written
// once and never overwritten.
var ErrExists = errors.New("artifact: file already exists")

// Writer stores documents under BaseDir.
type Writer struct {
	BaseDir    string
	RenderHTML bool
}

// Written lists the files produced for one document. HTMLErr is set when
// the markdown was stored but the HTML rendition was not.
type Written struct {
	Path     string
	HTMLPath string
	HTMLErr  error
}

var openFile = os.OpenFile

// #endregion

// #region write

// Write renders doc and stores it at target, or at a path derived from the
// document title and creation time when target is empty. Only a failure to
// store the markdown is returned as an error.
func (w Writer) Write(doc document.IdeaDocument, target string) (Written, error) {
	content, err := document.Render(doc)
	if err != nil {
		return Written{}, err
	}
	path := target
	if path == "" {
		path = w.DerivePath(doc.Title, doc.CreatedAt)
	}
	if err := writeOnce(path, content); err != nil {
		return Written{}, err
	}
	out := Written{Path: path}

	if w.RenderHTML {
		htmlPath := strings.TrimSuffix(path, filepath.Ext(path)) + ".html"
		page, err := RenderHTML(doc)
		if err == nil {
			err = writeOnce(htmlPath, page)
		}
		if err != nil {
			out.HTMLErr = err
		} else {
			out.HTMLPath = htmlPath
		}
	}
	return out, nil
}

// DerivePath is <base>/<slug>/<slug>_<YYYYMMDD-HHMMSS>.md.
func (w Writer) DerivePath(title string, at time.Time) string {
	slug := Slugify(title)
	base := w.BaseDir
	if base == "" {
		base = "."
	}
	return filepath.Join(base, slug, fmt.Sprintf("%s_%s.md", slug, at.UTC().Format(fileTimeLayout)))
}

func writeOnce(path string, content []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("artifact: create dir: %w", err)
	}
	f, err := openFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return fmt.Errorf("%w: %s", ErrExists, path)
		}
		return fmt.Errorf("artifact: create %s: %w", path, err)
	}
	// No partial file is left behind.
	if _, err := f.Write(content); err != nil {
		f.Close()
		os.Remove(path)
		return fmt.Errorf("artifact: write %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return fmt.Errorf("artifact: close %s: %w", path, err)
	}
	return nil
}

// #endregion

// #region slug

// Slugify lowercases title and keeps letters and digits, joining words
// with hyphens. An empty result becomes "untitled".
func Slugify(title string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(title) {
		switch {
		case r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)):
			b.WriteRune(r)
			dash = false
		case b.Len() > 0 && !dash:
			b.WriteByte('-')
			dash = true
		}
		if b.Len() >= maxSlugLen {
			break
		}
	}
	slug := strings.Trim(b.String(), "-")
	if slug == "" {
		return "untitled"
	}
	return slug
}

// #endregion

// #region html

// RenderHTML converts the document body to a standalone HTML page.
func RenderHTML(doc document.IdeaDocument) ([]byte, error) {
	md := goldmark.New(goldmark.WithExtensions(extension.Table))
	var body bytes.Buffer
	if err := md.Convert([]byte(document.Body(doc)), &body); err != nil {
		return nil, fmt.Errorf("artifact: render html: %w", err)
	}
	var buf bytes.Buffer
	buf.WriteString("<!DOCTYPE html>\n<html>\n<head>\n<meta charset=\"utf-8\">\n")
	fmt.Fprintf(&buf, "<title>%s</title>\n", html.EscapeString(doc.Title))
	buf.WriteString("</head>\n<body>\n")
	buf.Write(body.Bytes())
	buf.WriteString("</body>\n</html>\n")
	return buf.Bytes(), nil
}

// #endregion
