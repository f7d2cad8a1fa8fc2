package main

import (
	"io"
	"os"
	"runtime"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// SubCommand pairs a cobra command with the viper instance holding its
// options. Values come from flags, POLYMASK_* environment variables and the
// --config file, in that order of precedence.
type SubCommand struct {
	Cmd  *cobra.Command
	Conf *viper.Viper

	EnvPrefix string
}

func (s *SubCommand) bind(persistent *pflag.FlagSet) error {
	s.Conf = viper.New()
	if err := s.Conf.BindPFlags(s.Cmd.Flags()); err != nil {
		return errors.Wrapf(err, "binding %s flags", s.Cmd.Name())
	}
	if err := s.Conf.BindPFlags(persistent); err != nil {
		return errors.Wrapf(err, "binding %s flags", s.Cmd.Name())
	}
	s.Conf.SetEnvPrefix(s.EnvPrefix)
	s.Conf.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	s.Conf.AutomaticEnv()
	return nil
}

// limits returns the limits that were given explicitly.
func (s *SubCommand) limits() Limits {
	var l Limits
	get := func(name string) *float64 {
		if !s.Conf.IsSet(name) {
			return nil
		}
		v := s.Conf.GetFloat64(name)
		return &v
	}
	l.XMin, l.XMax = get("xmin"), get("xmax")
	l.YMin, l.YMax = get("ymin"), get("ymax")
	return l
}

func (s *SubCommand) workers() int {
	if n := s.Conf.GetInt("workers"); n > 0 {
		return n
	}
	return runtime.NumCPU()
}

func (s *SubCommand) format() (Format, error) {
	return ParseFormat(s.Conf.GetString("format"))
}

func addLimitFlags(flag *pflag.FlagSet) {
	flag.Float64("xmin", 0, "Lower x limit. Defaults to the polygons' bounding box.")
	flag.Float64("xmax", 0, "Upper x limit. Defaults to the polygons' bounding box.")
	flag.Float64("ymin", 0, "Lower y limit. Defaults to the polygons' bounding box.")
	flag.Float64("ymax", 0, "Upper y limit. Defaults to the polygons' bounding box.")
}

func addOutputFlags(flag *pflag.FlagSet) {
	flag.StringP("out", "o", "", "Output file. Standard output when empty.")
	flag.Int("workers", runtime.NumCPU(), "Number of goroutines classifying points.")
}

// openOutput opens path for writing, or returns stdout for "" and "-".
func openOutput(path string) (io.WriteCloser, error) {
	if path == "" || path == "-" {
		return nopWriteCloser{os.Stdout}, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, errors.Wrap(err, "creating output file")
	}
	return f, nil
}

// openInput opens path for reading, or returns stdin for "" and "-".
func openInput(path string) (io.ReadCloser, error) {
	if path == "" || path == "-" {
		return io.NopCloser(os.Stdin), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "opening catalogue")
	}
	return f, nil
}

type nopWriteCloser struct{ io.Writer }

func (nopWriteCloser) Close() error { return nil }
