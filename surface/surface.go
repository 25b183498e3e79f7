/*
Copyright © 2024 the geo2fds authors.
This file is part of geo2fds.

geo2fds is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

geo2fds is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with geo2fds.  If not, see <http://www.gnu.org/licenses/>.
*/

// Package surface holds the catalog of simulator surface definitions
// keyed by land-cover class.
package surface

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"sync"

	log "github.com/sirupsen/logrus"
	"github.com/tealeg/xlsx"
)

var (
	// ErrMalformedSurface is returned for a definition without an ID.
	ErrMalformedSurface = errors.New("surface: malformed surface definition")

	// ErrDuplicateID is returned when two definitions share an ID.
	ErrDuplicateID = errors.New("surface: duplicate surface ID")

	// ErrEmptyCatalog is returned for a table without any entries.
	ErrEmptyCatalog = errors.New("surface: empty catalog")
)

var idRE = regexp.MustCompile(`\bID\s*=\s*(?:'([^']*)'|"([^"]*)")`)

// ParseID returns the surface ID declared in definition line.
func ParseID(line string) (string, error) {
	m := idRE.FindStringSubmatch(line)
	if m == nil {
		return "", fmt.Errorf("%w: no ID in %q", ErrMalformedSurface, line)
	}
	if m[1] != "" {
		return m[1], nil
	}
	return m[2], nil
}

// Catalog is an ordered mapping from land-cover keys to surface IDs and
// the definition lines that declare them.
type Catalog struct {
	keys  []int
	ids   map[int]string
	lines map[int]string

	mu     sync.Mutex
	warned map[int]bool
}

// Default returns the catalog used when no surface table is given: a
// single inert surface with key 0.
func Default() *Catalog {
	c := newCatalog()
	c.keys = []int{0}
	c.ids[0] = "INERT"
	return c
}

func newCatalog() *Catalog {
	return &Catalog{
		ids:    make(map[int]string),
		lines:  make(map[int]string),
		warned: make(map[int]bool),
	}
}

// Load reads a surface table from a CSV file, or from the first sheet
// of an .xlsx workbook.
func Load(path string) (*Catalog, error) {
	if strings.EqualFold(filepath.Ext(path), ".xlsx") {
		return loadXLSX(path)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("surface: opening catalog: %w", err)
	}
	defer f.Close()
	c, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return c, nil
}

// Parse reads a comma-delimited surface table. The first row is a
// header and every following row holds an integer key and a surface
// definition line. Unquoted definitions that contain commas are
// rejoined.
func Parse(r io.Reader) (*Catalog, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.TrimLeadingSpace = true
	var rows [][]string
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("surface: reading catalog: %w", err)
		}
		rows = append(rows, rec)
	}
	return fromRows(rows)
}

func loadXLSX(path string) (*Catalog, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("surface: opening catalog: %w", err)
	}
	if len(f.Sheets) == 0 {
		return nil, fmt.Errorf("%w: %s has no sheets", ErrEmptyCatalog, path)
	}
	var rows [][]string
	for _, row := range f.Sheets[0].Rows {
		var rec []string
		for _, cell := range row.Cells {
			rec = append(rec, cell.Value)
		}
		rows = append(rows, rec)
	}
	return fromRows(rows)
}

func fromRows(rows [][]string) (*Catalog, error) {
	var body [][]string
	for _, r := range rows {
		if len(r) == 0 || (len(r) == 1 && strings.TrimSpace(r[0]) == "") {
			continue
		}
		body = append(body, r)
	}
	if len(body) < 2 {
		return nil, fmt.Errorf("%w: %d rows", ErrEmptyCatalog, len(body))
	}
	c := newCatalog()
	seen := make(map[string]int)
	for n, r := range body[1:] {
		if len(r) < 2 {
			return nil, fmt.Errorf("%w: row %d: want key and definition", ErrMalformedSurface, n+2)
		}
		key, err := strconv.Atoi(strings.TrimSpace(r[0]))
		if err != nil {
			return nil, fmt.Errorf("%w: row %d: key %q is not an integer", ErrMalformedSurface, n+2, r[0])
		}
		line := strings.TrimSpace(strings.Join(r[1:], ","))
		id, err := ParseID(line)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", n+2, err)
		}
		if k, ok := seen[id]; ok {
			return nil, fmt.Errorf("%w: %q used by keys %d and %d", ErrDuplicateID, id, k, key)
		}
		if _, ok := c.ids[key]; ok {
			return nil, fmt.Errorf("%w: key %d appears twice", ErrDuplicateID, key)
		}
		seen[id] = key
		c.keys = append(c.keys, key)
		c.ids[key] = id
		c.lines[key] = line
	}
	return c, nil
}

// Keys returns the land-cover keys in insertion order.
func (c *Catalog) Keys() []int { return append([]int(nil), c.keys...) }

// Len returns the number of entries.
func (c *Catalog) Len() int { return len(c.keys) }

// ID returns the surface ID for key.
func (c *Catalog) ID(key int) (string, bool) {
	id, ok := c.ids[key]
	return id, ok
}

// Line returns the definition line for key. The default catalog has no
// definition lines.
func (c *Catalog) Line(key int) (string, bool) {
	l, ok := c.lines[key]
	return l, ok
}

// Index returns the 1-based insertion position of key.
func (c *Catalog) Index(key int) (int, bool) {
	for i, k := range c.keys {
		if k == key {
			return i + 1, true
		}
	}
	return 0, false
}

// Lookup returns the 1-based index and ID for key. Unknown keys resolve
// to the first entry and log a warning, once per key.
func (c *Catalog) Lookup(key int) (int, string) {
	if i, ok := c.Index(key); ok {
		return i, c.ids[key]
	}
	c.mu.Lock()
	if !c.warned[key] {
		c.warned[key] = true
		log.WithFields(log.Fields{
			"key":     key,
			"surface": c.ids[c.keys[0]],
		}).Warn("surface: unknown land cover; using the first catalog entry")
	}
	c.mu.Unlock()
	return 1, c.ids[c.keys[0]]
}

// BCInside returns the default boundary condition inside a fire
// perimeter: the last catalog key.
func (c *Catalog) BCInside() int { return c.keys[len(c.keys)-1] }

// BCBorder returns the default boundary condition on the border of a
// fire perimeter: the second-to-last catalog key, or the only key of a
// single-entry catalog.
func (c *Catalog) BCBorder() int {
	if len(c.keys) < 2 {
		return c.keys[0]
	}
	return c.keys[len(c.keys)-2]
}

// IDs returns the surface IDs in insertion order.
func (c *Catalog) IDs() []string {
	o := make([]string, len(c.keys))
	for i, k := range c.keys {
		o[i] = c.ids[k]
	}
	return o
}

// IDList returns the quoted, comma separated surface IDs, e.g. 'A','B'.
func (c *Catalog) IDList() string {
	ids := c.IDs()
	for i, id := range ids {
		ids[i] = "'" + id + "'"
	}
	return strings.Join(ids, ",")
}

// Lines returns the definition lines in insertion order.
func (c *Catalog) Lines() []string {
	var o []string
	for _, k := range c.keys {
		if l, ok := c.lines[k]; ok {
			o = append(o, l)
		}
	}
	return o
}
