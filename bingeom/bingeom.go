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

// Package bingeom reads and writes the binary geometry files referenced
// by GEOM namelists. Files are a sequence of little-endian records,
// each framed by a 32-bit byte count before and after its payload.
package bingeom

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Geometry types.
const (
	Manifold int32 = 1
	Terrain  int32 = 2
)

// ErrFraming is returned when a record's leading and trailing length
// tags disagree with each other or with the expected payload size.
var ErrFraming = errors.New("bingeom: bad record framing")

// Geom is the content of a binary geometry file.
type Geom struct {
	Type int32
	// NSurfs is the number of surface IDs referenced by Surfs.
	NSurfs int32
	// Verts holds x, y, z triples.
	Verts []float64
	// Faces holds 1-based vertex index triples.
	Faces []int32
	// Surfs holds a 1-based surface index for each face.
	Surfs []int32
	// Volus holds 1-based vertex index quadruples.
	Volus []int32
}

// NVerts returns the number of vertices.
func (g *Geom) NVerts() int { return len(g.Verts) / 3 }

// NFaces returns the number of faces.
func (g *Geom) NFaces() int { return len(g.Faces) / 3 }

// NVolus returns the number of volumes.
func (g *Geom) NVolus() int { return len(g.Volus) / 4 }

// writeRecord writes data, which must be a fixed-size value or a slice
// of fixed-size values, as a single framed record.
func writeRecord(w io.Writer, data interface{}) error {
	n := binary.Size(data)
	if n < 0 {
		return fmt.Errorf("bingeom: cannot encode %T", data)
	}
	b := bytes.NewBuffer(make([]byte, 0, n+8))
	binary.Write(b, binary.LittleEndian, int32(n))
	if err := binary.Write(b, binary.LittleEndian, data); err != nil {
		return fmt.Errorf("bingeom: encoding record: %w", err)
	}
	binary.Write(b, binary.LittleEndian, int32(n))
	_, err := w.Write(b.Bytes())
	return err
}

// readRecord reads a framed record into data, which must be a pointer
// to a fixed-size value or a slice of the expected length.
func readRecord(r io.Reader, data interface{}) error {
	var head, tail int32
	if err := binary.Read(r, binary.LittleEndian, &head); err != nil {
		return fmt.Errorf("bingeom: reading record header: %w", err)
	}
	if want := binary.Size(data); int(head) != want {
		return fmt.Errorf("%w: record of %d bytes, want %d", ErrFraming, head, want)
	}
	if err := binary.Read(r, binary.LittleEndian, data); err != nil {
		return fmt.Errorf("bingeom: reading record: %w", err)
	}
	if err := binary.Read(r, binary.LittleEndian, &tail); err != nil {
		return fmt.Errorf("bingeom: reading record trailer: %w", err)
	}
	if tail != head {
		return fmt.Errorf("%w: header %d, trailer %d", ErrFraming, head, tail)
	}
	return nil
}

// Encode writes g to w.
func Encode(w io.Writer, g *Geom) error {
	if len(g.Verts)%3 != 0 || len(g.Faces)%3 != 0 || len(g.Volus)%4 != 0 {
		return fmt.Errorf("bingeom: ragged arrays: %d vertex, %d face and %d volume values",
			len(g.Verts), len(g.Faces), len(g.Volus))
	}
	if len(g.Surfs) != g.NFaces() {
		return fmt.Errorf("bingeom: %d surface indices for %d faces", len(g.Surfs), g.NFaces())
	}
	counts := [4]int32{int32(g.NVerts()), int32(g.NFaces()), g.NSurfs, int32(g.NVolus())}
	for _, rec := range []interface{}{g.Type, counts, g.Verts, g.Faces, g.Surfs, g.Volus} {
		if err := writeRecord(w, rec); err != nil {
			return err
		}
	}
	return nil
}

// Decode reads a geometry written by Encode.
func Decode(r io.Reader) (*Geom, error) {
	g := new(Geom)
	if err := readRecord(r, &g.Type); err != nil {
		return nil, err
	}
	var counts [4]int32
	if err := readRecord(r, &counts); err != nil {
		return nil, err
	}
	for _, c := range counts {
		if c < 0 {
			return nil, fmt.Errorf("%w: negative count %d", ErrFraming, c)
		}
	}
	g.NSurfs = counts[2]
	g.Verts = make([]float64, 3*counts[0])
	g.Faces = make([]int32, 3*counts[1])
	g.Surfs = make([]int32, counts[1])
	g.Volus = make([]int32, 4*counts[3])
	for _, rec := range []interface{}{g.Verts, g.Faces, g.Surfs, g.Volus} {
		if err := readRecord(r, rec); err != nil {
			return nil, err
		}
	}
	return g, nil
}

// Write writes g to the file at path, creating its directory if needed.
func Write(path string, g *Geom) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("bingeom: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("bingeom: %w", err)
	}
	w := bufio.NewWriter(f)
	if err := Encode(w, g); err != nil {
		f.Close()
		return err
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return fmt.Errorf("bingeom: writing %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("bingeom: closing %s: %w", path, err)
	}
	return nil
}

// Read reads the geometry file at path.
func Read(path string) (*Geom, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("bingeom: %w", err)
	}
	defer f.Close()
	return Decode(bufio.NewReader(f))
}
