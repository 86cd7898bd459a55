// Package classpath reads stored class files from directories, jars and jmods.
package classpath

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	lru "github.com/hashicorp/golang-lru"
	"github.com/klauspost/compress/zip"

	"github.com/wippyai/classmeta/errors"
)

// DefaultCacheSize is the number of class files kept in memory.
const DefaultCacheSize = 1024

var jmodMagic = []byte{'J', 'M', 0x01, 0x00}

// Entry is one class path element.
type Entry interface {
	// Read returns the class file for an internal name. ok is false when
	// the entry does not contain it.
	Read(internalName string) (data []byte, ok bool, err error)
	// Classes lists the internal names the entry contains.
	Classes() ([]string, error)
	Close() error
	String() string
}

// Path is an ordered list of entries. The first entry holding a class wins.
type Path struct {
	cache   *lru.Cache
	entries []Entry
}

// New opens each element. Directories are read as class trees; files
// ending in .jar, .zip or .jmod are read as archives.
func New(elems ...string) (*Path, error) {
	return NewWithCache(DefaultCacheSize, elems...)
}

// NewWithCache is New with an explicit cache size. A size of 0 disables caching.
func NewWithCache(size int, elems ...string) (*Path, error) {
	p := &Path{}
	if size > 0 {
		c, err := lru.New(size)
		if err != nil {
			return nil, errors.Wrap(errors.PhaseLoad, errors.KindInvalidArgument, err, "class path cache")
		}
		p.cache = c
	}
	for _, e := range elems {
		if e == "" {
			continue
		}
		entry, err := Open(e)
		if err != nil {
			p.Close()
			return nil, err
		}
		p.entries = append(p.entries, entry)
	}
	return p, nil
}

// Split parses an OS path list such as "classes:lib/a.jar".
func Split(list string) []string {
	if list == "" {
		return nil
	}
	return filepath.SplitList(list)
}

// Open opens a single class path element.
func Open(path string) (Entry, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, errors.Load(fmt.Sprintf("class path entry %s", path), err)
	}
	if info.IsDir() {
		return Dir(path), nil
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jar", ".zip", ".jmod":
		return OpenArchive(path)
	}
	return nil, errors.New(errors.PhaseLoad, errors.KindInvalidArgument).
		Value(path).
		Detail("class path entry %s is neither a directory nor an archive", path).
		Build()
}

// Append adds entries after the existing ones.
func (p *Path) Append(entries ...Entry) {
	p.entries = append(p.entries, entries...)
}

// Entries returns the entries in lookup order.
func (p *Path) Entries() []Entry {
	return p.entries
}

// Bytes returns the class file for an internal name.
func (p *Path) Bytes(internalName string) ([]byte, error) {
	if p.cache != nil {
		if v, ok := p.cache.Get(internalName); ok {
			return v.([]byte), nil
		}
	}
	for _, e := range p.entries {
		data, ok, err := e.Read(internalName)
		if err != nil {
			return nil, errors.New(errors.PhaseLoad, errors.KindInvalidData).
				Class(internalName).
				Cause(err).
				Detail("reading from %s", e).
				Build()
		}
		if ok {
			if p.cache != nil {
				p.cache.Add(internalName, data)
			}
			return data, nil
		}
	}
	return nil, errors.NotFound(errors.PhaseLoad, "class file", internalName)
}

// Classes lists every class on the path once, sorted.
func (p *Path) Classes() ([]string, error) {
	seen := make(map[string]struct{})
	var out []string
	for _, e := range p.entries {
		names, err := e.Classes()
		if err != nil {
			return nil, err
		}
		for _, n := range names {
			if _, ok := seen[n]; ok {
				continue
			}
			seen[n] = struct{}{}
			out = append(out, n)
		}
	}
	sort.Strings(out)
	return out, nil
}

// Close closes every entry.
func (p *Path) Close() error {
	var first error
	for _, e := range p.entries {
		if err := e.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Dir is a directory of class files laid out by package.
type Dir string

func (d Dir) Read(internalName string) ([]byte, bool, error) {
	data, err := os.ReadFile(filepath.Join(string(d), filepath.FromSlash(internalName)+".class"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return data, true, nil
}

func (d Dir) Classes() ([]string, error) {
	var out []string
	err := filepath.WalkDir(string(d), func(path string, de os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if de.IsDir() || !strings.HasSuffix(path, ".class") {
			return nil
		}
		rel, err := filepath.Rel(string(d), path)
		if err != nil {
			return err
		}
		out = append(out, strings.TrimSuffix(filepath.ToSlash(rel), ".class"))
		return nil
	})
	return out, err
}

func (d Dir) Close() error   { return nil }
func (d Dir) String() string { return string(d) }

// Archive is a jar, zip or jmod file. Jmod files carry a four-byte header
// and keep classes under classes/.
type Archive struct {
	files  map[string]*zip.File
	closer io.Closer
	path   string
	prefix string
}

// OpenArchive reads the directory of a jar, zip or jmod. Entries are read
// from the file on demand until Close.
func OpenArchive(path string) (*Archive, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Load(fmt.Sprintf("cannot read %s", path), err)
	}
	head := make([]byte, len(jmodMagic))
	n, _ := io.ReadFull(f, head)
	if n == len(jmodMagic) && bytes.Equal(head, jmodMagic) {
		info, err := f.Stat()
		if err != nil {
			f.Close()
			return nil, errors.Load(fmt.Sprintf("cannot read %s", path), err)
		}
		size := info.Size() - int64(len(jmodMagic))
		zr, err := zip.NewReader(io.NewSectionReader(f, int64(len(jmodMagic)), size), size)
		if err != nil {
			f.Close()
			return nil, errors.Load(fmt.Sprintf("%s is not a valid archive", path), err)
		}
		return newArchive(path, "classes/", zr.File, f), nil
	}
	f.Close()

	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, errors.Load(fmt.Sprintf("%s is not a valid archive", path), err)
	}
	return newArchive(path, "", zr.File, zr), nil
}

// NewArchive reads an in-memory archive. name is used in messages only.
func NewArchive(name string, data []byte) (*Archive, error) {
	prefix := ""
	if bytes.HasPrefix(data, jmodMagic) {
		data = data[len(jmodMagic):]
		prefix = "classes/"
	}
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, errors.Load(fmt.Sprintf("%s is not a valid archive", name), err)
	}
	return newArchive(name, prefix, zr.File, nil), nil
}

func newArchive(name, prefix string, files []*zip.File, closer io.Closer) *Archive {
	a := &Archive{path: name, prefix: prefix, closer: closer, files: make(map[string]*zip.File)}
	for _, f := range files {
		if !strings.HasSuffix(f.Name, ".class") || !strings.HasPrefix(f.Name, prefix) {
			continue
		}
		a.files[strings.TrimSuffix(strings.TrimPrefix(f.Name, prefix), ".class")] = f
	}
	return a
}

func (a *Archive) Read(internalName string) ([]byte, bool, error) {
	f, ok := a.files[internalName]
	if !ok {
		return nil, false, nil
	}
	rc, err := f.Open()
	if err != nil {
		return nil, false, err
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, false, err
	}
	return data, true, nil
}

func (a *Archive) Classes() ([]string, error) {
	out := make([]string, 0, len(a.files))
	for n := range a.files {
		out = append(out, n)
	}
	sort.Strings(out)
	return out, nil
}

// Close releases the underlying file of an archive opened from disk.
func (a *Archive) Close() error {
	if a.closer == nil {
		return nil
	}
	return a.closer.Close()
}

func (a *Archive) String() string { return a.path }

// Map is an in-memory entry keyed by internal name.
type Map map[string][]byte

func (m Map) Read(internalName string) ([]byte, bool, error) {
	data, ok := m[internalName]
	return data, ok, nil
}

// Bytes returns the class file for an internal name.
func (m Map) Bytes(internalName string) ([]byte, error) {
	if data, ok := m[internalName]; ok {
		return data, nil
	}
	return nil, errors.NotFound(errors.PhaseLoad, "class file", internalName)
}

func (m Map) Classes() ([]string, error) {
	out := make([]string, 0, len(m))
	for n := range m {
		out = append(out, n)
	}
	sort.Strings(out)
	return out, nil
}

func (m Map) Close() error   { return nil }
func (m Map) String() string { return "memory" }
