// Package render loads page templates from disk and renders them.
//
// Templates use the Django/Jinja dialect implemented by pongo2. A template is
// read and parsed on every call; nothing is cached, so edits on disk are picked
// up by the next request.
package render

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/flosch/pongo2/v6"
)

// ContentType is the media type of rendered pages.
const ContentType = "text/html; charset=utf-8"

var (
	// ErrTemplateNotFound is returned when the named template is missing or unreadable.
	ErrTemplateNotFound = errors.New("template not found")
	// ErrTemplateInvalid is returned when a template fails to parse or execute.
	ErrTemplateInvalid = errors.New("template invalid")
)

// Renderer renders templates stored under a base directory.
type Renderer struct {
	dir string
}

// New returns a Renderer for templates under dir. The directory does not need
// to exist yet.
func New(dir string) *Renderer {
	return &Renderer{dir: dir}
}

// Dir returns the template directory.
func (r *Renderer) Dir() string {
	return r.dir
}

// Render renders the named template with an empty context.
func (r *Renderer) Render(name string) ([]byte, error) {
	if err := r.Check(name); err != nil {
		return nil, err
	}

	loader, err := pongo2.NewLocalFileSystemLoader(r.dir)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrTemplateNotFound, name, err)
	}
	set := pongo2.NewSet("handview", loader)

	tpl, err := set.FromFile(name)
	if err != nil {
		return nil, fmt.Errorf("%w: parse %s: %v", ErrTemplateInvalid, name, err)
	}

	out, err := tpl.ExecuteBytes(pongo2.Context{})
	if err != nil {
		return nil, fmt.Errorf("%w: execute %s: %v", ErrTemplateInvalid, name, err)
	}
	return out, nil
}

// Check reports whether the named template exists and is readable.
func (r *Renderer) Check(name string) error {
	if name == "" || !filepath.IsLocal(name) {
		return fmt.Errorf("%w: %q", ErrTemplateNotFound, name)
	}

	path := filepath.Join(r.dir, name)
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrTemplateNotFound, path)
	}
	if info.IsDir() {
		return fmt.Errorf("%w: %s is a directory", ErrTemplateNotFound, path)
	}

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrTemplateNotFound, path, err)
	}
	return f.Close()
}
