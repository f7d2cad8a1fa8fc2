package main

import (
	"bufio"
	"context"
	"io"
	"runtime"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/golang/glog"
	"github.com/paulmach/orb"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

// Format selects which objects a catalogue command writes.
type Format int

const (
	FormatOutside Format = iota + 1 // objects outside every polygon
	FormatInside                    // objects inside a polygon
	FormatAll                       // every object, followed by its flag
)

// ParseFormat accepts "outside", "inside" or "all".
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "outside", "1":
		return FormatOutside, nil
	case "inside", "2":
		return FormatInside, nil
	case "all", "3":
		return FormatAll, nil
	}
	return 0, errors.Errorf("unknown format %q (outside, inside or all)", s)
}

func (f Format) String() string {
	switch f {
	case FormatOutside:
		return "outside"
	case FormatInside:
		return "inside"
	case FormatAll:
		return "all"
	}
	return "Format(" + strconv.Itoa(int(f)) + ")"
}

// keeps reports whether an object with the given flag is written.
func (f Format) keeps(flag int) bool {
	switch f {
	case FormatOutside:
		return flag == 1
	case FormatInside:
		return flag == 0
	}
	return true
}

// catalogueChunk is the number of lines one worker classifies at a time.
const catalogueChunk = 4096

// CatalogueOptions configures FlagCatalogue.
type CatalogueOptions struct {
	XCol, YCol int // 1-based
	Format     Format
	Workers    int
	Space      Workspace
}

// CatalogueStats counts what FlagCatalogue did.
type CatalogueStats struct {
	Read    int64 `json:"read"`
	Inside  int64 `json:"inside"`
	Outside int64 `json:"outside"`
	Written int64 `json:"written"`
}

type catalogueLine struct {
	no   int
	text string
	flag int
}

// FlagCatalogue reads a whitespace separated catalogue from r and writes the
// objects selected by opts.Format to w, in input order. Empty lines and lines
// starting with '#' are skipped. The flag of an object is 1 when it lies
// outside every polygon and 0 when it is inside one.
func FlagCatalogue(ctx context.Context, idx *SpatialIndex, r io.Reader, w io.Writer, opts CatalogueOptions) (CatalogueStats, error) {
	var stats CatalogueStats
	if opts.XCol < 1 || opts.YCol < 1 {
		return stats, errors.Errorf("column numbers start at 1 (got x=%d, y=%d)", opts.XCol, opts.YCol)
	}
	if opts.Format == 0 {
		opts.Format = FormatOutside
	}
	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)
	bw := bufio.NewWriter(w)
	lineNo := 0

	readChunk := func() []catalogueLine {
		chunk := make([]catalogueLine, 0, catalogueChunk)
		for len(chunk) < catalogueChunk && scanner.Scan() {
			lineNo++
			text := strings.TrimRight(scanner.Text(), "\r")
			if strings.TrimSpace(text) == "" || strings.HasPrefix(text, "#") {
				continue
			}
			chunk = append(chunk, catalogueLine{no: lineNo, text: text})
		}
		return chunk
	}

	for {
		// Read up to one chunk per worker, classify them together, then
		// write them back in order.
		var window [][]catalogueLine
		for len(window) < workers {
			chunk := readChunk()
			if len(chunk) == 0 {
				break
			}
			window = append(window, chunk)
		}
		if err := scanner.Err(); err != nil {
			return stats, errors.Wrap(err, "reading catalogue")
		}
		if len(window) == 0 {
			break
		}

		g, gctx := errgroup.WithContext(ctx)
		for _, chunk := range window {
			g.Go(func() error {
				return classifyChunk(gctx, idx, chunk, opts)
			})
		}
		if err := g.Wait(); err != nil {
			return stats, err
		}

		for _, chunk := range window {
			for _, l := range chunk {
				stats.Read++
				if l.flag == 1 {
					stats.Outside++
				} else {
					stats.Inside++
				}
				if !opts.Format.keeps(l.flag) {
					continue
				}
				if err := writeFlagged(bw, l.text, l.flag, opts.Format); err != nil {
					return stats, err
				}
				stats.Written++
			}
		}
		glog.V(2).Infof("Catalogue: %s objects read", humanize.Comma(stats.Read))
	}

	if err := bw.Flush(); err != nil {
		return stats, errors.Wrap(err, "writing catalogue")
	}
	glog.Infof("Catalogue: %s objects read, %s inside, %s outside, %s written",
		humanize.Comma(stats.Read), humanize.Comma(stats.Inside),
		humanize.Comma(stats.Outside), humanize.Comma(stats.Written))
	return stats, nil
}

// classifyChunk sets the flag of every line in chunk
func classifyChunk(ctx context.Context, idx *SpatialIndex, chunk []catalogueLine, opts CatalogueOptions) error {
	for i := range chunk {
		if i%256 == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		q, err := objectPosition(chunk[i].text, opts.XCol, opts.YCol)
		if err != nil {
			return errors.Wrapf(err, "line %d", chunk[i].no)
		}
		chunk[i].flag = 1
		if _, inside := idx.Contains(opts.Space.Ref, q); inside {
			chunk[i].flag = 0
		}
	}
	return nil
}

// objectPosition reads the x and y columns of a catalogue line. Anything
// after a '#' is a comment.
func objectPosition(text string, xcol, ycol int) (orb.Point, error) {
	if hash := strings.IndexByte(text, '#'); hash >= 0 {
		text = text[:hash]
	}
	fields := strings.Fields(text)

	var q orb.Point
	for axis, col := range [2]int{xcol, ycol} {
		if col > len(fields) {
			return q, errors.Errorf("column %d missing (%d columns)", col, len(fields))
		}
		v, err := strconv.ParseFloat(fields[col-1], 64)
		if err != nil {
			return q, errors.Wrapf(err, "column %d", col)
		}
		q[axis] = v
	}
	return q, nil
}

func writeFlagged(w *bufio.Writer, text string, flag int, f Format) error {
	var err error
	if f == FormatAll {
		_, err = w.WriteString(text + " " + strconv.Itoa(flag) + "\n")
	} else {
		_, err = w.WriteString(text + "\n")
	}
	return errors.Wrap(err, "writing catalogue")
}
