// Package library persists saved datasets on disk.
package library

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/KaramelBytes/dataloom/internal/loader"
	"github.com/KaramelBytes/dataloom/internal/table"
	"github.com/KaramelBytes/dataloom/internal/utils"
)

const indexFileName = "library.json"

// ErrNotFound is returned for unknown ids or names.
var ErrNotFound = errors.New("saved file not found")

type index struct {
	Entries   []Entry   `json:"entries"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Library is a directory holding library.json plus one CSV per dataset.
// It is safe for concurrent use within one process.
type Library struct {
	dir string
	mu  sync.Mutex
}

// Open prepares dir as a library root.
func Open(dir string) (*Library, error) {
	if dir == "" {
		return nil, errors.New("library directory not set")
	}
	if err := utils.EnsureDir(dir); err != nil {
		return nil, fmt.Errorf("ensure dir: %w", err)
	}
	return &Library{dir: dir}, nil
}

// Dir returns the library root.
func (l *Library) Dir() string { return l.dir }

func (l *Library) readIndex() (*index, error) {
	b, err := os.ReadFile(filepath.Join(l.dir, indexFileName))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return &index{}, nil
		}
		return nil, fmt.Errorf("read library index: %w", err)
	}
	var idx index
	if err := json.Unmarshal(b, &idx); err != nil {
		return nil, fmt.Errorf("parse library index: %w", err)
	}
	return &idx, nil
}

func (l *Library) writeIndex(idx *index) error {
	idx.UpdatedAt = time.Now().UTC()
	data, err := utils.PrettyJSON(idx)
	if err != nil {
		return err
	}
	return utils.SafeWriteFile(filepath.Join(l.dir, indexFileName), data)
}

func (idx *index) find(ref string) int {
	for i, e := range idx.Entries {
		if e.ID == ref || e.Name == ref {
			return i
		}
	}
	return -1
}

// Save stores t under name. Saving a name that already exists is a no-op
// returning the existing entry with created=false.
func (l *Library) Save(name string, t *table.Table) (e Entry, created bool, err error) {
	if name == "" {
		return Entry{}, false, errors.New("name cannot be empty")
	}
	if ok, reason := table.Validate(t); !ok {
		return Entry{}, false, errors.New(reason)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	idx, err := l.readIndex()
	if err != nil {
		return Entry{}, false, err
	}
	for _, e := range idx.Entries {
		if e.Name == name {
			return e, false, nil
		}
	}
	id := uuid.NewString()
	e = Entry{
		ID:      id,
		Name:    name,
		File:    fmt.Sprintf("%s-%s.csv", utils.SafeFileName(name), id[:8]),
		Rows:    t.NumRows(),
		Cols:    t.NumCols(),
		SavedAt: time.Now().UTC(),
	}
	var buf bytes.Buffer
	if err := table.WriteCSV(&buf, t); err != nil {
		return Entry{}, false, fmt.Errorf("encode %s: %w", name, err)
	}
	if err := utils.SafeWriteFile(filepath.Join(l.dir, e.File), buf.Bytes()); err != nil {
		return Entry{}, false, err
	}
	idx.Entries = append(idx.Entries, e)
	if err := l.writeIndex(idx); err != nil {
		_ = os.Remove(filepath.Join(l.dir, e.File))
		return Entry{}, false, err
	}
	return e, true, nil
}

// List returns entries newest first.
func (l *Library) List() ([]Entry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	idx, err := l.readIndex()
	if err != nil {
		return nil, err
	}
	out := append([]Entry(nil), idx.Entries...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].SavedAt.After(out[j].SavedAt) })
	return out, nil
}

// Get resolves ref (id or name) to its entry.
func (l *Library) Get(ref string) (Entry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	idx, err := l.readIndex()
	if err != nil {
		return Entry{}, err
	}
	i := idx.find(ref)
	if i < 0 {
		return Entry{}, fmt.Errorf("%w: %s", ErrNotFound, ref)
	}
	return idx.Entries[i], nil
}

// Load reads a saved dataset back. Date parsing is forced on so datetime
// columns survive the CSV round trip.
func (l *Library) Load(ref string, opt loader.Options) (*table.Table, Entry, error) {
	e, err := l.Get(ref)
	if err != nil {
		return nil, Entry{}, err
	}
	opt.ParseDates = true
	opt.SampleSize = 0
	t, err := loader.LoadFile(filepath.Join(l.dir, e.File), opt)
	if err != nil {
		return nil, Entry{}, fmt.Errorf("load %s: %w", e.Name, err)
	}
	return t, e, nil
}

// Remove deletes an entry and its data file.
func (l *Library) Remove(ref string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	idx, err := l.readIndex()
	if err != nil {
		return err
	}
	i := idx.find(ref)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, ref)
	}
	e := idx.Entries[i]
	idx.Entries = append(idx.Entries[:i], idx.Entries[i+1:]...)
	if err := l.writeIndex(idx); err != nil {
		return err
	}
	if err := os.Remove(filepath.Join(l.dir, e.File)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove data file: %w", err)
	}
	return nil
}
