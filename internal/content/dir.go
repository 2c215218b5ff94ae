package content

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rs/zerolog"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"gopkg.in/yaml.v3"
)

var documentExts = []string{".mdx", ".md"}

var frontMatterDelim = []byte("---")

// Dir is a Repository backed by a directory of Markdown documents.
type Dir struct {
	log  zerolog.Logger
	fsys fs.FS
	md   goldmark.Markdown
}

// Document is a record together with its rendered body.
type Document struct {
	Record
	HTML string `json:"html"`
}

func NewDir(log zerolog.Logger, root string) *Dir {
	return NewFS(log, os.DirFS(root))
}

func NewFS(log zerolog.Logger, fsys fs.FS) *Dir {
	return &Dir{
		log:  log,
		fsys: fsys,
		md:   goldmark.New(goldmark.WithExtensions(extension.GFM)),
	}
}

// ListRecords returns every published document, newest first. Unreadable or
// incomplete documents are logged and skipped.
func (d *Dir) ListRecords(ctx context.Context) ([]Record, error) {
	entries, err := fs.ReadDir(d.fsys, ".")
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []Record{}, nil
		}
		return nil, fmt.Errorf("read content dir: %w", err)
	}

	out := make([]Record, 0, len(entries))
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if e.IsDir() {
			continue
		}
		slug, ok := slugFromFilename(e.Name())
		if !ok {
			continue
		}

		rec, err := d.load(e.Name(), slug)
		if err != nil {
			d.log.Warn().Err(err).Str("file", e.Name()).Msg("skipping content file")
			continue
		}
		if rec.Draft {
			d.log.Debug().Str("slug", slug).Msg("skipping draft")
			continue
		}
		out = append(out, rec)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Date.After(out[j].Date)
	})
	return out, nil
}

// Document loads and renders a single published document by slug.
func (d *Dir) Document(ctx context.Context, slug string) (Document, error) {
	if err := ctx.Err(); err != nil {
		return Document{}, err
	}

	slug = sanitizeSlug(slug)
	if slug == "" {
		return Document{}, ErrNotFound
	}

	for _, ext := range documentExts {
		name := slug + ext
		rec, err := d.load(name, slug)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return Document{}, err
		}
		if rec.Draft {
			return Document{}, ErrNotFound
		}

		var buf bytes.Buffer
		if err := d.md.Convert(rec.body, &buf); err != nil {
			return Document{}, fmt.Errorf("render %s: %w", name, err)
		}
		return Document{Record: rec, HTML: buf.String()}, nil
	}
	return Document{}, ErrNotFound
}

func (d *Dir) load(name, slug string) (Record, error) {
	raw, err := fs.ReadFile(d.fsys, name)
	if err != nil {
		return Record{}, err
	}

	fmRaw, body, err := splitFrontMatter(raw)
	if err != nil {
		return Record{}, fmt.Errorf("%s: %w", name, err)
	}

	fm := map[string]any{}
	if err := yaml.Unmarshal(fmRaw, &fm); err != nil {
		return Record{}, fmt.Errorf("%s: parse front matter: %w", name, err)
	}

	rec := recordFromFrontMatter(slug, fm)
	if rec.Title == "" || rec.Date.IsZero() {
		return Record{}, fmt.Errorf("%s: missing required front matter (title or date)", name)
	}
	rec.body = body
	return rec, nil
}

func splitFrontMatter(raw []byte) ([]byte, []byte, error) {
	raw = bytes.TrimPrefix(raw, []byte("\xef\xbb\xbf"))
	if !bytes.HasPrefix(raw, frontMatterDelim) {
		return nil, nil, errors.New("missing front matter")
	}

	rest := raw[len(frontMatterDelim):]
	nl := bytes.IndexByte(rest, '\n')
	if nl < 0 {
		return nil, nil, errors.New("unterminated front matter")
	}
	rest = rest[nl+1:]

	for off := 0; off < len(rest); {
		end := bytes.IndexByte(rest[off:], '\n')
		line := rest[off:]
		if end >= 0 {
			line = rest[off : off+end]
		}
		if bytes.Equal(bytes.TrimRight(line, " \t\r"), frontMatterDelim) {
			body := []byte{}
			if end >= 0 {
				body = rest[off+end+1:]
			}
			return rest[:off], body, nil
		}
		if end < 0 {
			break
		}
		off += end + 1
	}
	return nil, nil, errors.New("unterminated front matter")
}

func slugFromFilename(name string) (string, bool) {
	for _, ext := range documentExts {
		if strings.HasSuffix(name, ext) {
			return strings.TrimSuffix(name, ext), true
		}
	}
	return "", false
}

// sanitizeSlug keeps only the final path element so a slug can never
// escape the content directory.
func sanitizeSlug(slug string) string {
	slug = strings.TrimSpace(slug)
	if slug == "" {
		return ""
	}
	base := filepath.Base(filepath.Clean("/" + slug))
	if base == "/" || base == "." || base == ".." {
		return ""
	}
	return base
}
