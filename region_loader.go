package main

import (
	"bufio"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/golang/glog"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/pkg/errors"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/wkt"
)

// ErrUnsupportedFormat is returned for region files with an unknown extension.
var ErrUnsupportedFormat = errors.New("region file format not recognized")

// LoadPolygons reads the outer rings of every polygon in a region file. The
// format is chosen by extension: .reg (DS9), .geojson/.json, .wkt.
func LoadPolygons(path string) ([][]orb.Point, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if ext == ".fits" {
		return nil, errors.Wrapf(ErrUnsupportedFormat, "%s: FITS masks are not supported", path)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "opening region file")
	}
	defer f.Close()

	var rings [][]orb.Point
	switch ext {
	case ".reg":
		rings, err = ParseDS9(f)
	case ".geojson", ".json":
		var data []byte
		data, err = io.ReadAll(f)
		if err == nil {
			rings, err = ParseGeoJSON(data)
		}
	case ".wkt":
		rings, err = ParseWKT(f)
	default:
		return nil, errors.Wrapf(ErrUnsupportedFormat, "%s: use .reg, .geojson or .wkt", path)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "reading %s", path)
	}

	glog.Infof("Loaded %d polygons from %s", len(rings), filepath.Base(path))
	return rings, nil
}

// ParseDS9 reads every "polygon(x1,y1,x2,y2,...)" shape of a DS9 region file.
// Other shapes, comments and global settings are ignored.
func ParseDS9(r io.Reader) ([][]orb.Point, error) {
	var rings [][]orb.Point

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Text()

		start := strings.Index(line, "polygon")
		if start < 0 {
			continue
		}
		if hash := strings.Index(line, "#"); hash >= 0 && hash < start {
			continue
		}

		body := line[start:]
		open := strings.Index(body, "(")
		end := strings.Index(body, ")")
		if open < 0 || end < open {
			return nil, errors.Errorf("line %d: polygon without coordinate list", lineNo)
		}

		fields := strings.FieldsFunc(body[open+1:end], func(r rune) bool {
			return r == ',' || r == ' ' || r == '\t'
		})
		if len(fields)%2 != 0 {
			return nil, errors.Errorf("line %d: odd number of coordinates (%d)", lineNo, len(fields))
		}

		ring := make([]orb.Point, 0, len(fields)/2)
		for i := 0; i < len(fields); i += 2 {
			x, err := strconv.ParseFloat(fields[i], 64)
			if err != nil {
				return nil, errors.Wrapf(err, "line %d", lineNo)
			}
			y, err := strconv.ParseFloat(fields[i+1], 64)
			if err != nil {
				return nil, errors.Wrapf(err, "line %d", lineNo)
			}
			ring = append(ring, orb.Point{x, y})
		}
		if len(ring) < 3 {
			return nil, errors.Errorf("line %d: polygon with %d vertices", lineNo, len(ring))
		}

		rings = append(rings, ring)
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "scanning region file")
	}

	return rings, nil
}

// ParseGeoJSON reads the Polygon and MultiPolygon outer rings of a
// FeatureCollection, a single Feature or a bare geometry.
func ParseGeoJSON(data []byte) ([][]orb.Point, error) {
	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, errors.Wrap(err, "decoding geojson")
	}

	var geometries []orb.Geometry
	switch head.Type {
	case "FeatureCollection":
		fc, err := geojson.UnmarshalFeatureCollection(data)
		if err != nil {
			return nil, errors.Wrap(err, "decoding feature collection")
		}
		for _, f := range fc.Features {
			geometries = append(geometries, f.Geometry)
		}
	case "Feature":
		f, err := geojson.UnmarshalFeature(data)
		if err != nil {
			return nil, errors.Wrap(err, "decoding feature")
		}
		geometries = append(geometries, f.Geometry)
	default:
		g, err := geojson.UnmarshalGeometry(data)
		if err != nil {
			return nil, errors.Wrap(err, "decoding geometry")
		}
		geometries = append(geometries, g.Geometry())
	}

	var rings [][]orb.Point
	for _, g := range geometries {
		rings = append(rings, ringsFromOrb(g)...)
	}
	return rings, nil
}

// ringsFromOrb converts orb geometry to our ring format
func ringsFromOrb(g orb.Geometry) [][]orb.Point {
	var rings [][]orb.Point

	switch v := g.(type) {
	case orb.Polygon:
		if len(v) == 0 {
			return nil
		}
		if len(v) > 1 {
			glog.Warningf("Dropping %d holes of a polygon", len(v)-1)
		}
		if ring := openRing(v[0]); len(ring) >= 3 {
			rings = append(rings, ring)
		}
	case orb.MultiPolygon:
		for _, p := range v {
			rings = append(rings, ringsFromOrb(p)...)
		}
	case orb.Collection:
		for _, c := range v {
			rings = append(rings, ringsFromOrb(c)...)
		}
	}

	return rings
}

// ParseWKT reads one POLYGON or MULTIPOLYGON per non-empty line.
func ParseWKT(r io.Reader) ([][]orb.Point, error) {
	var rings [][]orb.Point

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		t, err := wkt.Unmarshal(line)
		if err != nil {
			return nil, errors.Wrapf(err, "line %d", lineNo)
		}

		switch v := t.(type) {
		case *geom.Polygon:
			rings = append(rings, ringFromGeom(v)...)
		case *geom.MultiPolygon:
			for i := 0; i < v.NumPolygons(); i++ {
				rings = append(rings, ringFromGeom(v.Polygon(i))...)
			}
		default:
			return nil, errors.Errorf("line %d: unsupported geometry %T", lineNo, v)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "scanning wkt file")
	}

	return rings, nil
}

// ringFromGeom returns the outer ring of p, if it has at least 3 vertices
func ringFromGeom(p *geom.Polygon) [][]orb.Point {
	if p.NumLinearRings() == 0 {
		return nil
	}
	if p.NumLinearRings() > 1 {
		glog.Warningf("Dropping %d holes of a polygon", p.NumLinearRings()-1)
	}

	coords := p.LinearRing(0).Coords()
	ring := make(orb.Ring, 0, len(coords))
	for _, c := range coords {
		ring = append(ring, orb.Point{c.X(), c.Y()})
	}

	if open := openRing(ring); len(open) >= 3 {
		return [][]orb.Point{open}
	}
	return nil
}

// openRing drops the closing vertex of a ring that repeats its first one
func openRing(r orb.Ring) []orb.Point {
	n := len(r)
	if n > 1 && r[0] == r[n-1] {
		n--
	}
	ring := make([]orb.Point, n)
	copy(ring, r[:n])
	return ring
}
