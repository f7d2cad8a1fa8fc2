package main

import (
	"context"
	"net/http"
	"time"

	"github.com/golang/glog"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

var (
	// MaskCmd is the sub-command invoked when running "polymask mask".
	MaskCmd SubCommand
	// FlagCmd is the sub-command invoked when running "polymask flag".
	FlagCmd SubCommand
	// RandomCmd is the sub-command invoked when running "polymask random".
	RandomCmd SubCommand
	// ServeCmd is the sub-command invoked when running "polymask serve".
	ServeCmd SubCommand
)

// initSubcommands defines the sub-commands and their flags.
func initSubcommands() {
	MaskCmd.Cmd = &cobra.Command{
		Use:   "mask",
		Short: "Rasterize the polygons into a binary mask",
		Long: "Writes an nx by ny grid of pixel values over the limits: 1 when the pixel " +
			"centre is outside every polygon, 0 when it is inside one.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMask(cmd.Context(), &MaskCmd)
		},
	}
	MaskCmd.EnvPrefix = "POLYMASK"
	flag := MaskCmd.Cmd.Flags()
	flag.Int("nx", 512, "Number of pixels along x.")
	flag.Int("ny", 512, "Number of pixels along y.")
	addLimitFlags(flag)
	addOutputFlags(flag)

	FlagCmd.Cmd = &cobra.Command{
		Use:   "flag [catalogue]",
		Short: "Flag the objects of a catalogue against the polygons",
		Long: "Reads a whitespace separated catalogue (standard input when no file is " +
			"given) and writes the objects outside the polygons, the ones inside, or " +
			"all of them followed by a flag (1 outside, 0 inside).",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in := ""
			if len(args) == 1 {
				in = args[0]
			}
			return runFlag(cmd.Context(), &FlagCmd, in)
		},
	}
	FlagCmd.EnvPrefix = "POLYMASK"
	flag = FlagCmd.Cmd.Flags()
	flag.Int("xcol", 1, "Column of x in the catalogue, starting at 1.")
	flag.Int("ycol", 2, "Column of y in the catalogue, starting at 1.")
	flag.StringP("format", "f", "outside", "Objects to write: outside, inside or all.")
	addLimitFlags(flag)
	addOutputFlags(flag)

	RandomCmd.Cmd = &cobra.Command{
		Use:   "random",
		Short: "Generate a uniform random catalogue over the limits",
		Long: "Draws points uniformly over the limits. With --mask they are flagged " +
			"like the flag command does; without it every limit must be given.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRandom(cmd.Context(), &RandomCmd)
		},
	}
	RandomCmd.EnvPrefix = "POLYMASK"
	flag = RandomCmd.Cmd.Flags()
	flag.Int64("npart", 1000000, "Number of objects, or density per unit area with --cd.")
	flag.Bool("cd", false, "Treat npart as a density and scale it by the area.")
	flag.String("coord", "cart", "Coordinates: cart, or spher for RA/Dec in degrees.")
	flag.Int64("seed", DefaultSeed, "Random seed. Values <= 0 keep the default.")
	flag.StringP("format", "f", "outside", "Objects to write: outside, inside or all.")
	addLimitFlags(flag)
	addOutputFlags(flag)

	ServeCmd.Cmd = &cobra.Command{
		Use:   "serve",
		Short: "Answer containment queries over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), &ServeCmd)
		},
	}
	ServeCmd.EnvPrefix = "POLYMASK"
	flag = ServeCmd.Cmd.Flags()
	flag.String("addr", ":8080", "Address to listen on.")
	addLimitFlags(flag)
}

// maskIndex holds everything a command needs to query the polygons.
type maskIndex struct {
	idx     *SpatialIndex
	regions *RegionIndex
	space   Workspace
}

// loadIndex reads the --mask file, reports overlapping polygons and builds
// the spatial index.
func loadIndex(sc *SubCommand) (*maskIndex, error) {
	path := sc.Conf.GetString("mask")
	if path == "" {
		return nil, errors.New("--mask is required")
	}

	rings, err := LoadPolygons(path)
	if err != nil {
		return nil, err
	}
	store, err := NewPolygonStore(rings)
	if err != nil {
		return nil, errors.Wrapf(err, "loading %s", path)
	}

	regions := NewRegionIndex(store)
	LogOverlaps(FindOverlaps(store, regions))

	space, err := NewWorkspace(store.Bound(), sc.limits())
	if err != nil {
		return nil, err
	}

	idx, err := BuildIndex(store, store.Bound())
	if err != nil {
		return nil, errors.Wrapf(err, "indexing %s", path)
	}
	glog.Infof("Indexed %d polygons", store.Len())

	return &maskIndex{idx: idx, regions: regions, space: space}, nil
}

func runMask(ctx context.Context, sc *SubCommand) error {
	mi, err := loadIndex(sc)
	if err != nil {
		return err
	}

	m, err := RasterizeMask(ctx, mi.idx, MaskOptions{
		NX:      sc.Conf.GetInt("nx"),
		NY:      sc.Conf.GetInt("ny"),
		Workers: sc.workers(),
		Space:   mi.space,
	})
	if err != nil {
		return err
	}

	out, err := openOutput(sc.Conf.GetString("out"))
	if err != nil {
		return err
	}
	if _, err := m.WriteTo(out); err != nil {
		out.Close()
		return err
	}
	return errors.Wrap(out.Close(), "closing mask")
}

func runFlag(ctx context.Context, sc *SubCommand, inPath string) error {
	format, err := sc.format()
	if err != nil {
		return err
	}
	mi, err := loadIndex(sc)
	if err != nil {
		return err
	}

	in, err := openInput(inPath)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := openOutput(sc.Conf.GetString("out"))
	if err != nil {
		return err
	}

	_, err = FlagCatalogue(ctx, mi.idx, in, out, CatalogueOptions{
		XCol:    sc.Conf.GetInt("xcol"),
		YCol:    sc.Conf.GetInt("ycol"),
		Format:  format,
		Workers: sc.workers(),
		Space:   mi.space,
	})
	if err != nil {
		out.Close()
		return err
	}
	return errors.Wrap(out.Close(), "closing catalogue")
}

func runRandom(ctx context.Context, sc *SubCommand) error {
	format, err := sc.format()
	if err != nil {
		return err
	}
	coord, err := ParseCoordType(sc.Conf.GetString("coord"))
	if err != nil {
		return err
	}

	opts := RandomOptions{
		NPart:           sc.Conf.GetInt64("npart"),
		ConstantDensity: sc.Conf.GetBool("cd"),
		Coord:           coord,
		Format:          format,
		Seed:            sc.Conf.GetInt64("seed"),
	}

	var idx *SpatialIndex
	if sc.Conf.GetString("mask") != "" {
		mi, err := loadIndex(sc)
		if err != nil {
			return err
		}
		idx = mi.idx
		opts.Space = mi.space
	} else {
		glog.Info("Generating a catalogue with no mask")
		bound, err := sc.limits().Bound()
		if err != nil {
			return errors.Wrap(err, "no mask given")
		}
		opts.Space = Workspace{Bound: bound, Ref: ReferencePoint(bound)}
		glog.Infof("Limits: %s", formatLimits(bound))
	}

	out, err := openOutput(sc.Conf.GetString("out"))
	if err != nil {
		return err
	}
	if _, err := GenerateRandomCatalogue(ctx, idx, out, opts); err != nil {
		out.Close()
		return err
	}
	return errors.Wrap(out.Close(), "closing random catalogue")
}

func runServe(ctx context.Context, sc *SubCommand) error {
	mi, err := loadIndex(sc)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              sc.Conf.GetString("addr"),
		Handler:           NewServer(mi.idx, mi.regions, mi.space.Ref).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		glog.Infof("Serving %d polygons on %s", mi.idx.Store().Len(), srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return errors.Wrap(err, "serving")
	case <-ctx.Done():
	}

	glog.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return errors.Wrap(srv.Shutdown(shutdownCtx), "shutting down")
}
