package main

import (
	"context"
	goflag "flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/golang/glog"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	flag "github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// RootCmd represents the base command when called without any subcommands
var RootCmd = &cobra.Command{
	Use:   "polymask",
	Short: "polymask: point-in-polygon masks for catalogues",
	Long: `
polymask decides which points of a plane fall inside a set of polygons read
from a DS9 region, GeoJSON or WKT file. It rasterizes the polygons into a
binary mask, flags or filters catalogues, draws random catalogues over the
same footprint and answers containment queries over HTTP.
`,
	SilenceUsage: true,
}

var rootConf = viper.New()

func init() {
	initSubcommands()

	RootCmd.PersistentFlags().StringP("mask", "m", "",
		"Region file holding the polygons (.reg, .geojson, .json or .wkt).")
	RootCmd.PersistentFlags().String("config", "",
		"Configuration file. Takes precedence over default values, but is "+
			"overridden to values set with environment variables and flags.")
	if err := rootConf.BindPFlags(RootCmd.PersistentFlags()); err != nil {
		glog.Fatalf("%+v", errors.Wrap(err, "binding root flags"))
	}

	flag.CommandLine.AddGoFlagSet(goflag.CommandLine)
	// Log to stderr unless told otherwise.
	if err := goflag.Set("logtostderr", "true"); err != nil {
		panic(err)
	}

	var subcommands = []*SubCommand{&MaskCmd, &FlagCmd, &RandomCmd, &ServeCmd}
	for _, sc := range subcommands {
		RootCmd.AddCommand(sc.Cmd)
		if err := sc.bind(RootCmd.PersistentFlags()); err != nil {
			glog.Fatalf("%+v", err)
		}
	}
	cobra.OnInitialize(func() {
		cfg := rootConf.GetString("config")
		if cfg == "" {
			return
		}
		for _, sc := range subcommands {
			sc.Conf.SetConfigFile(cfg)
			if err := sc.Conf.ReadInConfig(); err != nil {
				glog.Fatalf("%+v", errors.Wrap(err, "reading config"))
			}
		}
	})
}

func main() {
	// glog complains when logging before the go flag set is parsed; every
	// flag is parsed by cobra instead.
	_ = goflag.CommandLine.Parse(nil)
	defer glog.Flush()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := RootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		glog.Errorf("%+v", err)
		glog.Flush()
		os.Exit(1)
	}
}
