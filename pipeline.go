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


// Package geo2fds converts an elevation raster, an optional land-cover
// raster and an optional fire perimeter into a terrain input deck for
// the Fire Dynamics Simulator.
package geo2fds

import (
	"context"
	"fmt"
	"io"
	"io/ioutil"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ctessum/geom"
	"github.com/ctessum/geom/encoding/shp"
	goshp "github.com/jonas-p/go-shp"
	log "github.com/sirupsen/logrus"

	"github.com/spatialmodel/geo2fds/bingeom"
	"github.com/spatialmodel/geo2fds/deck"
	"github.com/spatialmodel/geo2fds/domain"
	"github.com/spatialmodel/geo2fds/fire"
	"github.com/spatialmodel/geo2fds/mesh"
	"github.com/spatialmodel/geo2fds/raster"
	"github.com/spatialmodel/geo2fds/raster/fetch"
	"github.com/spatialmodel/geo2fds/raster/gdalraster"
	"github.com/spatialmodel/geo2fds/surface"
	"github.com/spatialmodel/geo2fds/terrain"
	"github.com/spatialmodel/geo2fds/utm"
)

// Names of the outputs of a run.
const (
	OutDeck     = "deck"
	OutBinGeom  = "bingeom"
	OutSampling = "sampling"
	OutDEM      = "dem"
	OutLandUse  = "landuse"
	OutExtent   = "extent"
	OutDomain   = "domain"
	OutParams   = "params"
	OutTexture  = "texture"
)

// LayersDir is the directory, inside the deck directory, that holds
// downloaded and intermediate layers.
const LayersDir = "layers"

// LargeExtent is the extent diagonal in meters above which a warning is
// logged.
const LargeExtent = 20e3

// Outputs maps output names to the files written by a run.
type Outputs map[string]string

type config struct {
	source  raster.Source
	fetcher *fetch.Fetcher
	now     func() time.Time
}

// Option configures Run.
type Option func(*config)

// WithSource sets the source rasters are read from. By default rasters
// are reprojected and clipped with GDAL.
func WithSource(s raster.Source) Option {
	return func(c *config) { c.source = s }
}

// WithFetcher sets the fetcher remote layers are downloaded with.
func WithFetcher(f *fetch.Fetcher) Option {
	return func(c *config) { c.fetcher = f }
}

// WithClock sets the clock used to time-stamp the deck.
func WithClock(now func() time.Time) Option {
	return func(c *config) { c.now = now }
}

// Run writes the deck described by p and returns the files it wrote.
// A canceled ctx stops the run between stages; Run then returns empty
// Outputs and a nil error. Files written before the failure or
// cancellation are left in place.
func Run(ctx context.Context, p *Params, opts ...Option) (Outputs, error) {
	out, err := run(ctx, p, opts...)
	if err != nil && ctx.Err() != nil {
		log.WithField("chid", p.CHID).Info("geo2fds: run canceled")
		return Outputs{}, nil
	}
	return out, err
}

func run(ctx context.Context, p *Params, opts ...Option) (Outputs, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	r := &runner{p: p, out: make(Outputs)}
	var err error
	if r.fdsDir, err = p.Resolve(p.FDSPath); err != nil {
		return nil, err
	}
	r.layers = filepath.Join(r.fdsDir, LayersDir)
	if err := os.MkdirAll(r.layers, os.ModePerm); err != nil {
		return nil, fmt.Errorf("geo2fds: %w", err)
	}
	c := &config{now: time.Now}
	for _, o := range opts {
		o(c)
	}
	if c.source == nil {
		c.source = &gdalraster.Source{Dir: r.layers}
	}
	if c.fetcher == nil {
		c.fetcher = &fetch.Fetcher{Dir: r.layers}
	}
	r.config = c

	for _, stage := range []func(context.Context) error{
		r.saveParams,
		r.locate,
		r.rasters,
		r.sample,
		r.surfaces,
		r.fire,
		r.terrain,
		r.domain,
		r.texture,
		r.deck,
	} {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := stage(ctx); err != nil {
			return nil, err
		}
	}
	return r.out, nil
}

// runner holds the state passed between the stages of a run.
type runner struct {
	p *Params
	*config
	out Outputs

	fdsDir, layers string

	conv      *utm.Converter
	originLL  utm.GeographicPoint
	originUTM geom.Point
	extent    *geom.Bounds

	dem, cover raster.Layer
	samples    []mesh.Sample
	cat        *surface.Catalog
	matrix     *mesh.Matrix
	boxes      []terrain.Box
	binaryFile string
	dom        *domain.Domain
	image      string
}

func (r *runner) path(name string) string {
	return filepath.Join(r.fdsDir, r.p.CHID+name)
}

func (r *runner) layer(name string) string {
	return filepath.Join(r.layers, r.p.CHID+name)
}

func (r *runner) saveParams(context.Context) error {
	path := ParamsPath(r.fdsDir, r.p.CHID)
	if err := SaveParams(path, r.p); err != nil {
		return err
	}
	r.out[OutParams] = path
	return nil
}

// locate picks the UTM zone of the origin and projects the extent and
// the origin into it.
func (r *runner) locate(context.Context) error {
	p := r.p
	sr, err := utm.ParseCRS(p.ExtentCRS)
	if err != nil {
		return err
	}
	ll, err := utm.ParseCRS(utm.LongLat)
	if err != nil {
		return err
	}
	e := &geom.Bounds{
		Min: geom.Point{X: p.Extent[0], Y: p.Extent[1]},
		Max: geom.Point{X: p.Extent[2], Y: p.Extent[3]},
	}
	origin := geom.Point{X: (e.Min.X + e.Max.X) / 2, Y: (e.Min.Y + e.Max.Y) / 2}
	if len(p.Origin) == 2 {
		origin = geom.Point{X: p.Origin[0], Y: p.Origin[1]}
	}

	toLL, err := sr.NewTransform(ll)
	if err != nil {
		return fmt.Errorf("%w: %v", utm.ErrInvalidCRS, err)
	}
	lon, lat, err := toLL(origin.X, origin.Y)
	if err != nil {
		return fmt.Errorf("geo2fds: locating origin: %v", err)
	}
	r.originLL = utm.GeographicPoint{Lon: lon, Lat: lat}
	if r.conv, err = utm.ForPoint(r.originLL); err != nil {
		return err
	}

	llExtent, err := utm.TransformBounds(e, sr, ll)
	if err != nil {
		return err
	}
	span := utm.GreatCircle(
		utm.GeographicPoint{Lon: llExtent.Min.X, Lat: llExtent.Min.Y},
		utm.GeographicPoint{Lon: llExtent.Max.X, Lat: llExtent.Max.Y},
	)
	fields := log.Fields{
		"crs":    utm.Describe(r.conv.EPSG),
		"origin": r.originLL.String(),
		"span_m": math.Round(span),
	}
	if span > LargeExtent {
		log.WithFields(fields).Warn("geo2fds: large extent, the deck may be slow to run")
	} else {
		log.WithFields(fields).Info("geo2fds: domain located")
	}

	if same(p.ExtentCRS, r.conv.EPSG) {
		r.extent, r.originUTM = e, origin
	} else {
		if r.extent, err = utm.TransformBounds(e, sr, r.conv.SR); err != nil {
			return err
		}
		x, y, err := r.conv.Project(r.originLL)
		if err != nil {
			return err
		}
		r.originUTM = geom.Point{X: x, Y: y}
	}
	return r.writeExtent()
}

func same(crs, epsg string) bool {
	return strings.EqualFold(strings.TrimSpace(crs), epsg)
}

// writeExtent writes the UTM extent as a polygon shapefile.
func (r *runner) writeExtent() error {
	path := r.layer("_extent.shp")
	e := r.extent
	f, err := shp.NewEncoderFromFields(path, goshp.POLYGON, goshp.StringField("chid", 32))
	if err != nil {
		return fmt.Errorf("geo2fds: writing extent: %w", err)
	}
	poly := geom.Polygon{{
		{X: e.Min.X, Y: e.Min.Y}, {X: e.Max.X, Y: e.Min.Y},
		{X: e.Max.X, Y: e.Max.Y}, {X: e.Min.X, Y: e.Max.Y}, {X: e.Min.X, Y: e.Min.Y},
	}}
	if err := f.EncodeFields(poly, r.p.CHID); err != nil {
		f.Close()
		return fmt.Errorf("geo2fds: writing extent: %w", err)
	}
	f.Close()
	r.out[OutExtent] = path
	return nil
}

// request returns the raster request for a layer covering the extent
// with two pixels to spare on every side.
func (r *runner) request(name string, rs raster.Resampling) raster.Request {
	px := r.p.PixelSize
	nx := math.Ceil((r.extent.Max.X-r.extent.Min.X)/px) + 4
	ny := math.Ceil((r.extent.Max.Y-r.extent.Min.Y)/px) + 4
	min := geom.Point{X: r.extent.Min.X - 2*px, Y: r.extent.Min.Y - 2*px}
	return raster.Request{
		Name:       r.p.CHID + name,
		EPSG:       r.conv.EPSG,
		Bounds:     &geom.Bounds{Min: min, Max: geom.Point{X: min.X + nx*px, Y: min.Y + ny*px}},
		PixelSize:  px,
		Resampling: rs,
	}
}

type pather interface {
	Path(raster.Request) string
}

// open reads layer src into the raster stored as output key.
func (r *runner) open(ctx context.Context, src, key string, rs raster.Resampling) (*raster.Grid, error) {
	path, err := r.p.Resolve(src)
	if err != nil {
		return nil, err
	}
	if path, err = r.fetcher.Local(ctx, path); err != nil {
		return nil, err
	}
	req := r.request("_"+key, rs)
	g, err := r.source.Open(ctx, path, req)
	if err != nil {
		return nil, err
	}
	if p, ok := r.source.(pather); ok {
		r.out[key] = p.Path(req)
	}
	return g, nil
}

func (r *runner) rasters(ctx context.Context) error {
	dem, err := r.open(ctx, r.p.DEMLayer, OutDEM, raster.Bilinear)
	if err != nil {
		return err
	}
	r.dem = dem
	if r.p.LandUseLayer != "" {
		cover, err := r.open(ctx, r.p.LandUseLayer, OutLandUse, raster.Nearest)
		if err != nil {
			return err
		}
		r.cover = cover
	}
	return nil
}

func (r *runner) sample(ctx context.Context) error {
	pts, err := raster.PointGrid(r.dem, r.extent, 0)
	if err != nil {
		return err
	}
	if r.samples, err = raster.Sample(ctx, pts, r.originUTM, r.dem, r.cover); err != nil {
		return err
	}
	log.WithFields(log.Fields{"points": len(pts), "pixel_size": r.p.PixelSize}).Info("geo2fds: terrain sampled")
	return nil
}

func (r *runner) surfaces(context.Context) error {
	if r.p.LandUseTypeFile == "" {
		r.cat = surface.Default()
		return nil
	}
	path, err := r.p.Resolve(r.p.LandUseTypeFile)
	if err != nil {
		return err
	}
	r.cat, err = surface.Load(path)
	return err
}

func (r *runner) fire(ctx context.Context) error {
	if r.p.FireLayer != "" {
		path, err := r.p.Resolve(r.p.FireLayer)
		if err != nil {
			return err
		}
		features, err := fire.Load(path, r.conv.SR)
		if err != nil {
			return err
		}
		for i := range features {
			if err := features[i].Shift(-r.originUTM.X, -r.originUTM.Y); err != nil {
				return err
			}
		}
		if err := fire.Transfer(ctx, r.samples, features, r.p.PixelSize, r.cat); err != nil {
			return err
		}
	}
	path := r.layer("_sampling.shp")
	if err := raster.WriteSamples(path, r.samples, r.originUTM); err != nil {
		return err
	}
	r.out[OutSampling] = path
	return nil
}

func (r *runner) terrain(ctx context.Context) error {
	m, err := mesh.NewMatrix(ctx, r.samples)
	if err != nil {
		return err
	}
	r.matrix = m
	if r.p.ExportObst {
		r.boxes, err = terrain.NewObst(ctx, m, m.MinZ()-domain.Floor, r.cat)
		return err
	}
	g, err := terrain.NewGeom(ctx, m, r.cat)
	if err != nil {
		return err
	}
	path := r.path("_terrain.bingeom")
	if err := bingeom.Write(path, g); err != nil {
		return err
	}
	r.binaryFile = filepath.Base(path)
	r.out[OutBinGeom] = path
	log.WithFields(log.Fields{"verts": g.NVerts(), "faces": g.NFaces()}).Info("geo2fds: terrain geometry written")
	return nil
}

func (r *runner) domain(context.Context) error {
	fp := raster.Buffer(r.matrix.Footprint(), r.p.PixelSize/2)
	d, err := domain.New(fp, r.matrix.MinZ(), r.matrix.MaxZ(), r.p.Cell(), r.p.NMesh)
	if err != nil {
		return err
	}
	r.dom = d
	name := r.p.CHID + "_domain"
	if err := d.WriteToShp(r.layers, name, r.originUTM); err != nil {
		return err
	}
	r.out[OutDomain] = filepath.Join(r.layers, name+".shp")
	return nil
}

// texture copies the terrain texture image next to the deck.
func (r *runner) texture(ctx context.Context) error {
	if r.p.TexLayer == "" {
		return nil
	}
	src, err := r.p.Resolve(r.p.TexLayer)
	if err != nil {
		return err
	}
	if src, err = r.fetcher.Local(ctx, src); err != nil {
		return err
	}
	dst := r.path("_tex" + filepath.Ext(src))
	if err := copyFile(dst, src); err != nil {
		return fmt.Errorf("geo2fds: copying texture: %w", err)
	}
	r.image = filepath.Base(dst)
	r.out[OutTexture] = dst
	return nil
}

func copyFile(dst, src string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

func (r *runner) deck(context.Context) error {
	p := r.p
	d := &deck.Deck{
		CHID:         p.CHID,
		Version:      Version,
		Project:      p.ProjectPath,
		DEMLayer:     r.dem.Name(),
		EPSG:         r.conv.EPSG,
		Origin:       r.originLL,
		OriginUTM:    r.originUTM,
		Time:         r.now(),
		TBegin:       p.TBegin,
		TEnd:         p.TEnd,
		TerrainImage: r.image,
		Domain:       r.dom,
		Catalog:      r.cat,
		BinaryFile:   r.binaryFile,
		Obst:         r.boxes,
	}
	if p.FireLayer != "" {
		d.FireLayer = filepath.Base(p.FireLayer)
	}
	if r.cover != nil {
		d.LandUseLayer = r.cover.Name()
	}
	if p.WindFile != "" {
		path, err := p.Resolve(p.WindFile)
		if err != nil {
			return err
		}
		if d.Wind, err = deck.LoadWind(path); err != nil {
			return err
		}
	}
	if p.TextFile != "" {
		path, err := p.Resolve(p.TextFile)
		if err != nil {
			return err
		}
		b, err := ioutil.ReadFile(path)
		if err != nil {
			return fmt.Errorf("geo2fds: reading free text: %w", err)
		}
		d.Text = string(b)
	}

	path := r.path(".fds")
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("geo2fds: writing deck: %w", err)
	}
	if err := deck.Compose(f, d); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("geo2fds: writing deck: %w", err)
	}
	r.out[OutDeck] = path
	log.WithField("path", path).Info("geo2fds: deck written")
	return nil
}
