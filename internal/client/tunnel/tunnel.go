// Package tunnel hands rendered configurations to whatever brings tunnels
// up. FileInstaller writes wg-quick files into a directory.
package tunnel

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/dmitrijs2005/wgdaemon/internal/filex"
)

// ErrConflict is returned by Install when a configuration with the same
// name already exists.
var ErrConflict = errors.New("tunnel configuration already exists")

// Installer is the tunnel-install collaborator.
type Installer interface {
	Install(ctx context.Context, name, config string) error
	Remove(ctx context.Context, name string) error
}

const confExt = ".conf"

// FileInstaller stores each tunnel as <dir>/<name>.conf with mode 0600.
type FileInstaller struct {
	dir string
}

func NewFileInstaller(dir string) (*FileInstaller, error) {
	abs, err := filex.EnsureDir(dir)
	if err != nil {
		return nil, err
	}
	return &FileInstaller{dir: abs}, nil
}

func (f *FileInstaller) Dir() string {
	return f.dir
}

func (f *FileInstaller) path(name string) (string, error) {
	if name == "" || strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
		return "", fmt.Errorf("invalid tunnel name %q", name)
	}
	return filepath.Join(f.dir, name+confExt), nil
}

func (f *FileInstaller) Install(ctx context.Context, name, config string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p, err := f.path(name)
	if err != nil {
		return err
	}
	if err := filex.WriteExclusive(p, []byte(config), 0o600); err != nil {
		if errors.Is(err, os.ErrExist) {
			return fmt.Errorf("%w: %s", ErrConflict, name)
		}
		return fmt.Errorf("write tunnel config: %w", err)
	}
	return nil
}

// Remove deletes the configuration; a missing one is not an error.
func (f *FileInstaller) Remove(ctx context.Context, name string) error {
	p, err := f.path(name)
	if err != nil {
		return err
	}
	return filex.RemoveIfExists(p)
}

// Read returns an installed configuration.
func (f *FileInstaller) Read(name string) (string, error) {
	p, err := f.path(name)
	if err != nil {
		return "", err
	}
	b, err := os.ReadFile(p)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Replace overwrites an installed configuration in place.
func (f *FileInstaller) Replace(ctx context.Context, name, config string) error {
	p, err := f.path(name)
	if err != nil {
		return err
	}
	if _, err := os.Stat(p); err != nil {
		return err
	}
	return os.WriteFile(p, []byte(config), 0o600)
}

// List returns the installed tunnel names, sorted.
func (f *FileInstaller) List() ([]string, error) {
	entries, err := os.ReadDir(f.dir)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), confExt) {
			continue
		}
		names = append(names, strings.TrimSuffix(e.Name(), confExt))
	}
	sort.Strings(names)
	return names, nil
}
