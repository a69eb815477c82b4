// Package dirs locates plan files and the ledger directory.
//
// Plans live in $XDG_CONFIG_HOME/ontime; when the variable is unset, empty, or
// the directory holds no YAML files, /etc/ontime is used. The ledger lives in
// $XDG_CACHE_HOME, falling back to /etc.
package dirs

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/afero"
)

const (
	AppName = "ontime"

	ConfigEnv = "XDG_CONFIG_HOME"
	CacheEnv  = "XDG_CACHE_HOME"

	etcDir = "/etc"
)

// ErrNoPlans is returned when no candidate plan file exists anywhere.
var ErrNoPlans = errors.New("no plan files found")

// Env looks up an environment variable. os.Getenv satisfies it.
type Env func(key string) string

// Resolver resolves plan and cache locations against a filesystem.
type Resolver struct {
	FS  afero.Fs
	Env Env
	// Etc overrides the system fallback root (tests). Empty means /etc.
	Etc string
}

// NewResolver resolves against the OS filesystem and process environment.
func NewResolver() *Resolver {
	return &Resolver{FS: afero.NewOsFs(), Env: os.Getenv}
}

func (r *Resolver) etc() string {
	if r.Etc != "" {
		return r.Etc
	}
	return etcDir
}

func (r *Resolver) env(key string) string {
	if r.Env == nil {
		return ""
	}
	return strings.TrimSpace(r.Env(key))
}

// PlanDir returns the directory plans are read from, following the same
// fallback rules as PlanFiles.
func (r *Resolver) PlanDir() string {
	if base := r.env(ConfigEnv); base != "" {
		dir := filepath.Join(base, AppName)
		if files, _ := r.yamlFiles(dir); len(files) > 0 {
			return dir
		}
	}
	return filepath.Join(r.etc(), AppName)
}

// PlanFiles returns the candidate plan files (.yml/.yaml), sorted by name.
func (r *Resolver) PlanFiles() ([]string, error) {
	if base := r.env(ConfigEnv); base != "" {
		files, err := r.yamlFiles(filepath.Join(base, AppName))
		if err == nil && len(files) > 0 {
			return files, nil
		}
	}

	dir := filepath.Join(r.etc(), AppName)
	if ok, _ := afero.DirExists(r.FS, dir); !ok {
		return nil, fmt.Errorf("%w: make sure %s/ exists in either %s or $%s", ErrNoPlans, AppName, r.etc(), ConfigEnv)
	}
	files, err := r.yamlFiles(dir)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("%w in %s", ErrNoPlans, dir)
	}
	return files, nil
}

func (r *Resolver) yamlFiles(dir string) ([]string, error) {
	infos, err := afero.ReadDir(r.FS, dir)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(infos))
	for _, fi := range infos {
		if !fi.Mode().IsRegular() {
			continue
		}
		if IsPlanFile(fi.Name()) {
			out = append(out, filepath.Join(dir, fi.Name()))
		}
	}
	sort.Strings(out)
	return out, nil
}

// IsPlanFile reports whether name has a recognized plan extension.
func IsPlanFile(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	return ext == ".yml" || ext == ".yaml"
}

// CacheDir returns $XDG_CACHE_HOME when it exists, else /etc.
func (r *Resolver) CacheDir() string {
	if base := r.env(CacheEnv); base != "" {
		if ok, _ := afero.DirExists(r.FS, base); ok {
			return base
		}
	}
	return r.etc()
}
