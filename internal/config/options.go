package config

import (
	"flag"
	"fmt"
	"net"
	"strconv"
	"strings"
)

// Options holds the per-invocation command-line settings. It replaces a shared
// global argument object and is passed explicitly to every pipeline entry point.
type Options struct {
	ConfigPath string
	File       string
	Bzip2      bool
	SpecFiles  []string

	OutDir    string
	BinSize   int
	RotateRec int

	Collect string
	Bind    string
	Port    int

	Uniflow  bool
	Sequence bool
	ObsLoss  bool
}

// stringList implements flag.Value for repeatable string flags.
type stringList []string

func (s *stringList) String() string { return strings.Join(*s, ",") }

func (s *stringList) Set(v string) error {
	*s = append(*s, v)
	return nil
}

// RegisterInputFlags registers the flags every command shares: config file, input file,
// bzip2 decompression and additional IE specification files.
func RegisterInputFlags(fs *flag.FlagSet, o *Options) {
	fs.StringVar(&o.ConfigPath, "config", "", "YAML configuration file (optional)")
	fs.StringVar(&o.File, "file", "", "IPFIX file to read (default stdin)")
	fs.StringVar(&o.File, "f", "", "shorthand for -file")
	fs.BoolVar(&o.Bzip2, "bzip2", false, "Decompress bz2-compressed IPFIX file")
	fs.BoolVar(&o.Bzip2, "j", false, "shorthand for -bzip2")
	fs.Var((*stringList)(&o.SpecFiles), "spec", "file to load additional IE specs from (repeatable)")
	fs.Var((*stringList)(&o.SpecFiles), "s", "shorthand for -spec")
}

// RegisterCollectorFlags registers the flags for accepting flow streams over the network.
func RegisterCollectorFlags(fs *flag.FlagSet, o *Options) {
	fs.StringVar(&o.Collect, "collect", "", "run a collecting process on the specified transport")
	fs.StringVar(&o.Collect, "c", "", "shorthand for -collect")
	fs.StringVar(&o.Bind, "bind", "", "address to bind to as collector (default all)")
	fs.IntVar(&o.Port, "port", 4739, "port to bind to as collector")
	fs.IntVar(&o.Port, "P", 4739, "shorthand for -port")
}

// CollectorAddr validates the transport and returns the listen address.
func (o *Options) CollectorAddr() (string, error) {
	if o.Collect != "tcp" {
		return "", fmt.Errorf("%w %s; must be 'tcp'", ErrUnsupportedTransport, o.Collect)
	}
	return net.JoinHostPort(o.Bind, strconv.Itoa(o.Port)), nil
}

// Resolve loads the configuration file named by the options and merges the
// command-line spec files into it.
func (o *Options) Resolve() (*Config, error) {
	cfg, err := LoadConfig(o.ConfigPath)
	if err != nil {
		return nil, err
	}
	cfg.Source.SpecFiles = append(cfg.Source.SpecFiles, o.SpecFiles...)
	if o.RotateRec > 0 {
		cfg.Source.ChunkSize = o.RotateRec
	}
	return cfg, nil
}
