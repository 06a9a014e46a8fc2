// Package modules manages the on-disk module store under /data/adb/modules.
package modules

import (
	"bufio"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// Flag file names inside a module directory.
const (
	DisableFlag   = "disable"
	SkipMountFlag = "skip_mount"
	RemoveFlag    = "remove"
	UpdateFlag    = "update"
)

// Module is one installed module.
type Module struct {
	ID        string
	Dir       string
	Disabled  bool
	SkipMount bool
	Remove    bool
	Update    bool
	Props     map[string]string
}

// Store enumerates and mutates modules below root.
type Store struct {
	root string
}

// NewStore returns a Store over root. The directory may not exist yet.
func NewStore(root string) *Store {
	return &Store{root: root}
}

// Root returns the module directory.
func (s *Store) Root() string { return s.root }

// List returns all modules sorted by ID. A missing root yields an empty list.
func (s *Store) List() ([]Module, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read module dir: %w", err)
	}

	var mods []Module
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		mods = append(mods, s.load(e.Name()))
	}
	sort.Slice(mods, func(i, j int) bool { return mods[i].ID < mods[j].ID })
	return mods, nil
}

// Get returns a single module by ID.
func (s *Store) Get(id string) (Module, error) {
	dir := filepath.Join(s.root, id)
	fi, err := os.Stat(dir)
	if err != nil {
		return Module{}, fmt.Errorf("module %s: %w", id, err)
	}
	if !fi.IsDir() {
		return Module{}, fmt.Errorf("module %s: not a directory", id)
	}
	return s.load(id), nil
}

func (s *Store) load(id string) Module {
	dir := filepath.Join(s.root, id)
	m := Module{
		ID:        id,
		Dir:       dir,
		Disabled:  flagSet(dir, DisableFlag),
		SkipMount: flagSet(dir, SkipMountFlag),
		Remove:    flagSet(dir, RemoveFlag),
		Update:    flagSet(dir, UpdateFlag),
	}
	if props, err := loadProp(filepath.Join(dir, "module.prop")); err == nil {
		m.Props = props
	}
	return m
}

// Disable marks a module disabled by creating its disable flag.
func (s *Store) Disable(id string) error {
	return touch(filepath.Join(s.root, id, DisableFlag))
}

// Enable removes a module's disable flag.
func (s *Store) Enable(id string) error {
	err := os.Remove(filepath.Join(s.root, id, DisableFlag))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// DisableAll flags every module disabled. Used in safe mode.
func (s *Store) DisableAll() error {
	mods, err := s.List()
	if err != nil {
		return err
	}
	for _, m := range mods {
		if err := s.Disable(m.ID); err != nil {
			return fmt.Errorf("disable %s: %w", m.ID, err)
		}
	}
	return nil
}

// Prune deletes modules flagged for removal and returns their IDs.
func (s *Store) Prune() ([]string, error) {
	mods, err := s.List()
	if err != nil {
		return nil, err
	}

	var removed []string
	for _, m := range mods {
		if !m.Remove {
			continue
		}
		if err := os.RemoveAll(m.Dir); err != nil {
			return removed, fmt.Errorf("prune %s: %w", m.ID, err)
		}
		removed = append(removed, m.ID)
	}
	return removed, nil
}

// PromoteUpdates moves staged module directories from updateDir into the
// live store, replacing existing versions, and clears their update flags.
func (s *Store) PromoteUpdates(updateDir string) ([]string, error) {
	entries, err := os.ReadDir(updateDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read update dir: %w", err)
	}

	if err := os.MkdirAll(s.root, 0o755); err != nil {
		return nil, err
	}

	var promoted []string
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		id := e.Name()
		src := filepath.Join(updateDir, id)
		dst := filepath.Join(s.root, id)

		if err := os.RemoveAll(dst); err != nil {
			return promoted, fmt.Errorf("replace %s: %w", id, err)
		}
		if err := os.Rename(src, dst); err != nil {
			return promoted, fmt.Errorf("promote %s: %w", id, err)
		}
		if err := os.Remove(filepath.Join(dst, UpdateFlag)); err != nil && !os.IsNotExist(err) {
			slog.Warn("modules: clear update flag", "module", id, "error", err)
		}
		promoted = append(promoted, id)
	}
	return promoted, nil
}

// SystemPropFiles returns the system.prop files of all mountable modules.
func (s *Store) SystemPropFiles() ([]string, error) {
	matches, err := doublestar.FilepathGlob(filepath.Join(s.root, "*", "system.prop"))
	if err != nil {
		return nil, err
	}

	var files []string
	for _, path := range matches {
		m := s.load(filepath.Base(filepath.Dir(path)))
		if m.Disabled || m.Remove {
			continue
		}
		files = append(files, path)
	}
	return files, nil
}

// StageScripts returns per-module <stage>.sh scripts for enabled modules.
func (s *Store) StageScripts(stage string) ([]string, error) {
	matches, err := doublestar.FilepathGlob(filepath.Join(s.root, "*", stage+".sh"))
	if err != nil {
		return nil, err
	}

	var scripts []string
	for _, path := range matches {
		m := s.load(filepath.Base(filepath.Dir(path)))
		if m.Disabled || m.Remove {
			continue
		}
		scripts = append(scripts, path)
	}
	sort.Strings(scripts)
	return scripts, nil
}

func flagSet(dir, name string) bool {
	_, err := os.Stat(filepath.Join(dir, name))
	return err == nil
}

func touch(path string) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	return f.Close()
}

// loadProp parses a module.prop key=value file.
func loadProp(path string) (map[string]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	props := make(map[string]string)
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		props[strings.TrimSpace(key)] = strings.TrimSpace(value)
	}
	return props, scanner.Err()
}
