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

package geo2fds

import (
	"context"
	"errors"
	"io/ioutil"
	"math"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/ctessum/geom"
	"github.com/ctessum/geom/encoding/shp"
	goshp "github.com/jonas-p/go-shp"
	"github.com/kr/pretty"

	"github.com/spatialmodel/geo2fds/bingeom"
	"github.com/spatialmodel/geo2fds/raster"
)

// flatSource returns rasters of constant value covering each request,
// ignoring the input file.
type flatSource struct {
	dem, cover float64
	opened     []string
}

func (s *flatSource) Open(ctx context.Context, path string, req raster.Request) (*raster.Grid, error) {
	s.opened = append(s.opened, path)
	b := req.Bounds
	nx := int(math.Round((b.Max.X - b.Min.X) / req.PixelSize))
	ny := int(math.Round((b.Max.Y - b.Min.Y) / req.PixelSize))
	g := raster.NewGrid(req.Name, nx, ny, req.PixelSize, req.PixelSize, b.Min.X, b.Max.Y)
	v := s.dem
	if req.Resampling == raster.Nearest {
		v = s.cover
	}
	for i := range g.Data {
		g.Data[i] = v
	}
	return g, nil
}

const testConfig = `
[geo2fds]
chid = "hill"
fds_path = "fds"
extent = [500000.0, 5000000.0, 500030.0, 5000030.0]
extent_crs = "EPSG:32632"
pixel_size = 10.0
dem_layer = "dem.tif"
t_end = 600.0
`

const utm32PRJ = `PROJCS["WGS_1984_UTM_Zone_32N",GEOGCS["GCS_WGS_1984",DATUM["D_WGS_1984",SPHEROID["WGS_1984",6378137.0,298.257223563]],PRIMEM["Greenwich",0.0],UNIT["Degree",0.0174532925199433]],PROJECTION["Transverse_Mercator"],PARAMETER["False_Easting",500000.0],PARAMETER["False_Northing",0.0],PARAMETER["Central_Meridian",9.0],PARAMETER["Scale_Factor",0.9996],PARAMETER["Latitude_Of_Origin",0.0],UNIT["Meter",1.0]]`

// project writes a project directory holding the test configuration
// and returns its parameters.
func project(t *testing.T) (string, *Params) {
	dir, err := ioutil.TempDir("", "geo2fds")
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(dir, "project.toml")
	if err := ioutil.WriteFile(path, []byte(testConfig), 0644); err != nil {
		t.Fatal(err)
	}
	p, err := LoadParams(path)
	if err != nil {
		t.Fatal(err)
	}
	p.ProjectPath = path
	return dir, p
}

var clock = WithClock(func() time.Time { return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC) })

func readDeck(t *testing.T, out Outputs) string {
	b, err := ioutil.ReadFile(out[OutDeck])
	if err != nil {
		t.Fatal(err)
	}
	return string(b)
}

func TestLoadParams(t *testing.T) {
	dir, p := project(t)
	defer os.RemoveAll(dir)
	want := DefaultParams()
	want.CHID = "hill"
	want.FDSPath = "fds"
	want.Extent = [4]float64{500000, 5000000, 500030, 5000030}
	want.ExtentCRS = "EPSG:32632"
	want.DEMLayer = "dem.tif"
	want.TEnd = 600
	want.ProjectPath = p.ProjectPath
	if !reflect.DeepEqual(p, want) {
		t.Errorf("params: %v", pretty.Diff(p, want))
	}
}

func TestSaveParams(t *testing.T) {
	dir, p := project(t)
	defer os.RemoveAll(dir)
	p.Origin = []float64{500010, 5000020}
	p.ExportObst = true
	p.LandUseLayer = "https://example.com/landuse.tif"
	path := ParamsPath(dir, p.CHID)
	if err := SaveParams(path, p); err != nil {
		t.Fatal(err)
	}
	var raw map[string]interface{}
	if _, err := toml.DecodeFile(path, &raw); err != nil {
		t.Fatal(err)
	}
	if _, ok := raw["geo2fds"]; !ok || len(raw) != 1 {
		t.Errorf("parameters are not in their own table: %v", raw)
	}
	p2, err := LoadParams(path)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(p, p2) {
		t.Errorf("round trip: %v", pretty.Diff(p, p2))
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		edit func(*Params)
	}{
		{"chid", func(p *Params) { p.CHID = "two words" }},
		{"extent", func(p *Params) { p.Extent = [4]float64{1, 1, 0, 2} }},
		{"pixel", func(p *Params) { p.PixelSize = 0.001 }},
		{"nmesh", func(p *Params) { p.NMesh = 0 }},
		{"origin", func(p *Params) { p.Origin = []float64{1} }},
		{"time", func(p *Params) { p.TBegin = 10 }},
		{"dem", func(p *Params) { p.DEMLayer = "" }},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			p := DefaultParams()
			p.DEMLayer = "dem.tif"
			p.Extent = [4]float64{0, 0, 1, 1}
			p.TEnd = 1
			if err := p.Validate(); err != nil {
				t.Fatalf("defaults: %v", err)
			}
			test.edit(p)
			if err := p.Validate(); !errors.Is(err, ErrInvalidParams) {
				t.Errorf("have %v", err)
			}
		})
	}
}

func TestResolve(t *testing.T) {
	p := DefaultParams()
	if _, err := p.Resolve("dem.tif"); !errors.Is(err, ErrMissingProject) {
		t.Errorf("have %v", err)
	}
	for _, abs := range []string{"", "/data/dem.tif", "s3://bucket/dem.tif"} {
		if have, err := p.Resolve(abs); err != nil || have != abs {
			t.Errorf("Resolve(%q) = %q, %v", abs, have, err)
		}
	}
	p.ProjectPath = "/work/site/project.toml"
	if have, _ := p.Resolve("layers/dem.tif"); have != filepath.FromSlash("/work/site/layers/dem.tif") {
		t.Errorf("have %s", have)
	}
}

func TestRun_geom(t *testing.T) {
	dir, p := project(t)
	defer os.RemoveAll(dir)
	src := &flatSource{dem: 100}
	out, err := Run(context.Background(), p, WithSource(src), clock)
	if err != nil {
		t.Fatal(err)
	}
	fds := filepath.Join(dir, "fds")
	want := Outputs{
		OutDeck:     filepath.Join(fds, "hill.fds"),
		OutBinGeom:  filepath.Join(fds, "hill_terrain.bingeom"),
		OutParams:   filepath.Join(fds, "hill.geo2fds.toml"),
		OutSampling: filepath.Join(fds, LayersDir, "hill_sampling.shp"),
		OutExtent:   filepath.Join(fds, LayersDir, "hill_extent.shp"),
		OutDomain:   filepath.Join(fds, LayersDir, "hill_domain.shp"),
	}
	if !reflect.DeepEqual(out, want) {
		t.Errorf("outputs: %v", pretty.Diff(out, want))
	}
	for _, f := range out {
		if _, err := os.Stat(f); err != nil {
			t.Error(err)
		}
	}
	if want := []string{filepath.Join(dir, "dem.tif")}; !reflect.DeepEqual(src.opened, want) {
		t.Errorf("opened %v, want %v", src.opened, want)
	}

	g, err := bingeom.Read(out[OutBinGeom])
	if err != nil {
		t.Fatal(err)
	}
	if g.NVerts() != 16 || g.NFaces() != 18 {
		t.Errorf("%d verts and %d faces", g.NVerts(), g.NFaces())
	}
	if v := g.Verts[:3]; !reflect.DeepEqual(v, []float64{-15, 15, 100}) {
		t.Errorf("first vertex %v", v)
	}
	if v := g.Verts[len(g.Verts)-3:]; !reflect.DeepEqual(v, []float64{15, -15, 100}) {
		t.Errorf("last vertex %v", v)
	}
	for _, s := range g.Surfs {
		if s != 1 {
			t.Fatalf("surface %d", s)
		}
	}

	s := readDeck(t, out)
	for _, want := range []string{
		"! Reference system: WGS 84 / UTM zone 32N\n",
		"! Domain origin: 500015.0, 5000015.0\n",
		"&HEAD CHID='hill', TITLE='Description of hill' /\n",
		"&TIME T_BEGIN=0, T_END=600 /\n",
		"&MESH IJK=3,3,10, MULT_ID='Meshes', XB=-15.000,15.000,-15.000,15.000,99.000,200.000 /\n",
		"&GEOM ID='Terrain', SURF_ID='INERT', BINARY_FILE='hill_terrain.bingeom', IS_TERRAIN=T, EXTEND_TERRAIN=F /\n",
	} {
		if !strings.Contains(s, want) {
			t.Errorf("deck lacks %q:\n%s", want, s)
		}
	}

	saved, err := LoadParams(out[OutParams])
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(saved, p) {
		t.Errorf("saved parameters: %v", pretty.Diff(saved, p))
	}
}

// writePerimeter writes a 2 m square fire perimeter around (x, y).
func writePerimeter(t *testing.T, path string, x, y float64, bcIn, bcOut int) {
	e, err := shp.NewEncoderFromFields(path, goshp.POLYGON,
		goshp.NumberField("bc_in", 10), goshp.NumberField("bc_out", 10))
	if err != nil {
		t.Fatal(err)
	}
	sq := geom.Polygon{{{X: x - 1, Y: y - 1}, {X: x + 1, Y: y - 1}, {X: x + 1, Y: y + 1}, {X: x - 1, Y: y + 1}, {X: x - 1, Y: y - 1}}}
	if err := e.EncodeFields(sq, bcIn, bcOut); err != nil {
		t.Fatal(err)
	}
	e.Close()
	prj := strings.TrimSuffix(path, ".shp") + ".prj"
	if err := ioutil.WriteFile(prj, []byte(utm32PRJ), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestRun_obst(t *testing.T) {
	dir, p := project(t)
	defer os.RemoveAll(dir)
	surfaces := "key,definition\n1,&SURF ID='A' /\n4,&SURF ID='B' /\n5,&SURF ID='C' /\n"
	if err := ioutil.WriteFile(filepath.Join(dir, "surfaces.csv"), []byte(surfaces), 0644); err != nil {
		t.Fatal(err)
	}
	writePerimeter(t, filepath.Join(dir, "fire.shp"), 500015, 5000015, 5, 4)
	if err := ioutil.WriteFile(filepath.Join(dir, "wind.csv"), []byte("t,s,d\n0,5,0\n600,10,45\n1200,20,90\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := ioutil.WriteFile(filepath.Join(dir, "extra.txt"), []byte("&REAC FUEL='WOOD' /\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := ioutil.WriteFile(filepath.Join(dir, "tex.png"), []byte("png"), 0644); err != nil {
		t.Fatal(err)
	}
	p.ExportObst = true
	p.LandUseLayer = "landuse.tif"
	p.LandUseTypeFile = "surfaces.csv"
	p.FireLayer = "fire.shp"
	p.WindFile = "wind.csv"
	p.TextFile = "extra.txt"
	p.TexLayer = "tex.png"

	out, err := Run(context.Background(), p, WithSource(&flatSource{dem: 100, cover: 1}), clock)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := out[OutBinGeom]; ok {
		t.Error("OBST run wrote a terrain geometry")
	}
	if b, err := ioutil.ReadFile(out[OutTexture]); err != nil || string(b) != "png" {
		t.Errorf("texture %q, %v", b, err)
	}
	s := readDeck(t, out)
	if n := strings.Count(s, "&OBST "); n != 13 {
		t.Errorf("%d obstructions, want 13", n)
	}
	// The fire perimeter marks the center sample only.
	if n := strings.Count(s, "SURF_ID='C'"); n != 2 {
		t.Errorf("%d obstructions burning, want 2", n)
	}
	if n := strings.Count(s, "SURF_ID='B'"); n != 0 {
		t.Errorf("%d obstructions on the border, want 0", n)
	}
	for _, want := range []string{
		"! Fire layer: <fire.shp>\n",
		"! Landuse layer: <hill_landuse>\n",
		"&SURF ID='A' /\n&SURF ID='B' /\n&SURF ID='C' /\n",
		"&RAMP ID='wd', T=1200, F=90 /\n",
		"TERRAIN_IMAGE='hill_tex.png'",
		"&REAC FUEL='WOOD' /\n",
	} {
		if !strings.Contains(s, want) {
			t.Errorf("deck lacks %q:\n%s", want, s)
		}
	}
}

func TestRun_missingProject(t *testing.T) {
	dir, p := project(t)
	defer os.RemoveAll(dir)
	p.ProjectPath = ""
	if _, err := Run(context.Background(), p, WithSource(&flatSource{})); !errors.Is(err, ErrMissingProject) {
		t.Errorf("have %v", err)
	}
}

func TestRun_canceled(t *testing.T) {
	dir, p := project(t)
	defer os.RemoveAll(dir)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	out, err := Run(ctx, p, WithSource(&flatSource{dem: 100}))
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != 0 {
		t.Errorf("canceled run returned %v", out)
	}
}
