// Package icons manages pools of icon images used as card symbols.
//
// An icon set is a directory of image files plus a metadata.json file.
// The deck and layout packages only see Resource values (name plus pixel
// dimensions); decoding the actual pixels happens at render time via
// Set.Open.
package icons

import (
	"encoding/json"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/disintegration/imaging"
	"github.com/google/uuid"
)

// ErrSetNotFound is returned when a set reference does not resolve.
var ErrSetNotFound = errors.New("icons: set not found")

// allowedExt lists the image extensions accepted in a set directory.
var allowedExt = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".gif":  true,
}

// Resource identifies one icon and its pixel dimensions.
type Resource struct {
	Name   string `json:"name"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

// AspectRatio returns width/height. Icons with unknown dimensions
// report 1.
func (r Resource) AspectRatio() float64 {
	if r.Width <= 0 || r.Height <= 0 {
		return 1
	}
	return float64(r.Width) / float64(r.Height)
}

// SetInfo describes an icon set without loading its images.
type SetInfo struct {
	ID        string    `json:"id"` // "default:<dir>" or "user:<dir>"
	Name      string    `json:"name"`
	Count     int       `json:"count"`
	CreatedAt time.Time `json:"created_at"`
}

// Set is a loaded icon set: resource metadata plus the file paths needed
// to decode each icon on demand.
type Set struct {
	Info      SetInfo
	Resources []Resource

	paths map[string]string
}

// Path returns the on-disk file backing the named icon.
func (s *Set) Path(name string) (string, bool) {
	path, ok := s.paths[name]
	return path, ok
}

// Open decodes the named icon image.
func (s *Set) Open(name string) (image.Image, error) {
	path, ok := s.paths[name]
	if !ok {
		return nil, fmt.Errorf("icons: no icon named %q in set %s", name, s.Info.ID)
	}
	return imaging.Open(path)
}

// Store gives access to the default (read-only) and user-uploaded icon
// sets on disk.
type Store struct {
	DefaultDir string
	UserDir    string
}

// NewStore prepares a store, creating the user directory if needed.
func NewStore(defaultDir, userDir string) (*Store, error) {
	if err := os.MkdirAll(userDir, 0o755); err != nil {
		return nil, fmt.Errorf("icons: creating user dir: %w", err)
	}
	return &Store{DefaultDir: defaultDir, UserDir: userDir}, nil
}

// List returns the available sets, default sets first.
func (st *Store) List() ([]SetInfo, error) {
	var out []SetInfo
	for _, kind := range []struct {
		prefix, dir string
	}{
		{"default", st.DefaultDir},
		{"user", st.UserDir},
	} {
		entries, err := os.ReadDir(kind.dir)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, err
		}
		for _, e := range entries {
			if !e.IsDir() {
				continue
			}
			info := readSetInfo(filepath.Join(kind.dir, e.Name()), kind.prefix, e.Name())
			out = append(out, info)
		}
	}
	return out, nil
}

// Load resolves a set reference of the form "default:<id>" or
// "user:<id>" and reads the dimensions of every icon in it.
func (st *Store) Load(ref string) (*Set, error) {
	prefix, id, ok := strings.Cut(ref, ":")
	if !ok {
		return nil, fmt.Errorf("icons: invalid set reference %q", ref)
	}
	var dir string
	switch prefix {
	case "default":
		dir = filepath.Join(st.DefaultDir, id)
	case "user":
		dir = filepath.Join(st.UserDir, id)
	default:
		return nil, fmt.Errorf("icons: invalid set reference %q", ref)
	}
	set, err := LoadDir(dir)
	if err != nil {
		return nil, err
	}
	set.Info = readSetInfo(dir, prefix, id)
	return set, nil
}

// Upload is one file received from a client.
type Upload struct {
	Name string
	Data []byte
}

// Save writes a new user set and returns its info. Files with
// unsupported extensions are skipped.
func (st *Store) Save(name string, files []Upload) (SetInfo, error) {
	id := sanitizeID(name)
	if id == "" {
		id = uuid.NewString()
	}
	dir := filepath.Join(st.UserDir, id)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return SetInfo{}, err
	}
	count := 0
	for _, f := range files {
		base := filepath.Base(f.Name)
		if !allowedExt[strings.ToLower(filepath.Ext(base))] {
			continue
		}
		if err := os.WriteFile(filepath.Join(dir, base), f.Data, 0o644); err != nil {
			return SetInfo{}, err
		}
		count++
	}
	info := SetInfo{
		ID:        "user:" + id,
		Name:      name,
		Count:     count,
		CreatedAt: time.Now().UTC(),
	}
	meta, err := json.Marshal(info)
	if err != nil {
		return SetInfo{}, err
	}
	if err := os.WriteFile(filepath.Join(dir, "metadata.json"), meta, 0o644); err != nil {
		return SetInfo{}, err
	}
	return info, nil
}

// Delete removes a user set. Default sets cannot be deleted.
func (st *Store) Delete(ref string) error {
	prefix, id, ok := strings.Cut(ref, ":")
	if !ok || prefix != "user" {
		return fmt.Errorf("icons: only user sets can be deleted, got %q", ref)
	}
	dir := filepath.Join(st.UserDir, filepath.Base(id))
	if _, err := os.Stat(dir); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrSetNotFound, ref)
		}
		return err
	}
	return os.RemoveAll(dir)
}

// LoadDir reads every supported image in dir as an icon resource,
// sorted by file name.
func LoadDir(dir string) (*Set, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrSetNotFound, dir)
		}
		return nil, err
	}
	set := &Set{paths: make(map[string]string)}
	for _, e := range entries {
		if e.IsDir() || !allowedExt[strings.ToLower(filepath.Ext(e.Name()))] {
			continue
		}
		path := filepath.Join(dir, e.Name())
		w, h, err := imageDims(path)
		if err != nil {
			continue // unreadable files are not part of the pool
		}
		set.Resources = append(set.Resources, Resource{Name: e.Name(), Width: w, Height: h})
		set.paths[e.Name()] = path
	}
	sort.Slice(set.Resources, func(i, j int) bool {
		return set.Resources[i].Name < set.Resources[j].Name
	})
	set.Info.Count = len(set.Resources)
	return set, nil
}

func imageDims(path string) (int, int, error) {
	fd, err := os.Open(path)
	if err != nil {
		return 0, 0, err
	}
	defer fd.Close()
	cfg, _, err := image.DecodeConfig(fd)
	if err != nil {
		return 0, 0, err
	}
	return cfg.Width, cfg.Height, nil
}

func readSetInfo(dir, prefix, id string) SetInfo {
	info := SetInfo{ID: prefix + ":" + id, Name: displayName(id)}
	if data, err := os.ReadFile(filepath.Join(dir, "metadata.json")); err == nil {
		var meta SetInfo
		if json.Unmarshal(data, &meta) == nil && meta.Name != "" {
			info.Name = meta.Name
			info.CreatedAt = meta.CreatedAt
		}
	}
	if entries, err := os.ReadDir(dir); err == nil {
		for _, e := range entries {
			if !e.IsDir() && allowedExt[strings.ToLower(filepath.Ext(e.Name()))] {
				info.Count++
			}
		}
	}
	return info
}

func displayName(id string) string {
	words := strings.Fields(strings.ReplaceAll(id, "_", " "))
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

func sanitizeID(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(name) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == ' ', r == '-', r == '_':
			b.WriteRune('_')
		}
	}
	return strings.Trim(b.String(), "_")
}
