package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// ErrUnsupportedTransport is returned when a collector is requested on a transport other than TCP.
var ErrUnsupportedTransport = errors.New("unsupported transport")

// LogConfig controls the process logger.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // "text" or "json"
}

// SourceConfig holds settings for decoding IPFIX input.
type SourceConfig struct {
	SpecFiles   []string `yaml:"spec_files"`
	OmitRFC5610 bool     `yaml:"omit_rfc5610"`
	ChunkSize   int      `yaml:"chunk_size"`
}

// GroupingConfig holds the defaults for the timeout grouper.
type GroupingConfig struct {
	KeyColumn  string `yaml:"key_column"`
	TimeColumn string `yaml:"time_column"`
	Timeout    string `yaml:"timeout"`
}

// NetworkConfig holds the prefix lengths used when deriving network columns.
type NetworkConfig struct {
	IPv4PrefixLen int `yaml:"ipv4_prefix_len"`
	IPv6PrefixLen int `yaml:"ipv6_prefix_len"`
}

// SpectrumConfig describes the RTT histogram.
type SpectrumConfig struct {
	Column        string   `yaml:"column"`
	WeightColumns []string `yaml:"weight_columns"`
	Bins          int      `yaml:"bins"`
	Min           float64  `yaml:"min"`
	Max           float64  `yaml:"max"`
	FilePattern   string   `yaml:"file_pattern"`
}

// GobConfig holds settings for the gob writer.
type GobConfig struct {
	RootPath string `yaml:"root_path"`
}

// CSVConfig holds settings for the CSV writer.
type CSVConfig struct {
	RootPath string `yaml:"root_path"`
}

// ClickHouseConfig holds connection settings for ClickHouse.
type ClickHouseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Database string `yaml:"database"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Table    string `yaml:"table"`
}

// NATSConfig holds connection settings for the NATS writer.
type NATSConfig struct {
	URL     string `yaml:"url"`
	Subject string `yaml:"subject"`
}

// WriterDef defines a single export writer from the config file.
type WriterDef struct {
	Type       string           `yaml:"type"`
	Enabled    bool             `yaml:"enabled"`
	Gob        GobConfig        `yaml:"gob"`
	CSV        CSVConfig        `yaml:"csv"`
	ClickHouse ClickHouseConfig `yaml:"clickhouse"`
	NATS       NATSConfig       `yaml:"nats"`
}

// ExporterConfig holds the list of writers used by fs-export.
type ExporterConfig struct {
	Writers []WriterDef `yaml:"writers"`
}

// APIConfig holds settings for the query API server.
type APIConfig struct {
	ListenAddr     string           `yaml:"listen_addr"`
	GRPCListenAddr string           `yaml:"grpc_listen_addr"` // health service; empty disables it
	ClickHouse     ClickHouseConfig `yaml:"clickhouse"`
}

// MetricsConfig holds settings for the prometheus endpoint of long-running commands.
type MetricsConfig struct {
	ListenAddr string `yaml:"listen_addr"`
}

// Config is the top-level configuration struct for the entire application.
type Config struct {
	Log      LogConfig      `yaml:"log"`
	Source   SourceConfig   `yaml:"source"`
	Grouping GroupingConfig `yaml:"grouping"`
	Network  NetworkConfig  `yaml:"network"`
	Spectrum SpectrumConfig `yaml:"spectrum"`
	Exporter ExporterConfig `yaml:"exporter"`
	API      APIConfig      `yaml:"api"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

// Default returns a Config populated with the built-in defaults.
func Default() *Config {
	return &Config{
		Log: LogConfig{Level: "info", Format: "text"},
		Source: SourceConfig{
			ChunkSize: 100000,
		},
		Grouping: GroupingConfig{
			KeyColumn:  "sourceIPv4Address",
			TimeColumn: "flowStartMilliseconds",
			Timeout:    "15s",
		},
		Network: NetworkConfig{IPv4PrefixLen: 16, IPv6PrefixLen: 64},
		Spectrum: SpectrumConfig{
			Column:        "minTcpRttMilliseconds",
			WeightColumns: []string{"transportPacketDeltaCount", "reverseTransportPacketDeltaCount"},
			Bins:          125,
			Min:           1,
			Max:           501,
			FilePattern:   "rtt_02150405.png",
		},
		API: APIConfig{
			ListenAddr:     ":8080",
			GRPCListenAddr: ":9090",
			ClickHouse:     ClickHouseConfig{Host: "localhost", Port: 9000, Database: "default", Table: "flow_tables"},
		},
	}
}

// LoadConfig reads the configuration from a YAML file and returns a Config struct.
// Values absent from the file keep their defaults. An empty path returns the defaults.
func LoadConfig(filePath string) (*Config, error) {
	cfg := Default()
	if filePath == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	err = yaml.Unmarshal(data, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal config YAML: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks values that cannot be fixed up by defaults.
func (c *Config) Validate() error {
	if c.Source.ChunkSize <= 0 {
		return fmt.Errorf("source.chunk_size must be positive, got %d", c.Source.ChunkSize)
	}
	if _, err := c.GroupTimeout(); err != nil {
		return err
	}
	if c.Network.IPv4PrefixLen < 0 || c.Network.IPv4PrefixLen > 32 {
		return fmt.Errorf("network.ipv4_prefix_len out of range: %d", c.Network.IPv4PrefixLen)
	}
	if c.Network.IPv6PrefixLen < 0 || c.Network.IPv6PrefixLen > 128 {
		return fmt.Errorf("network.ipv6_prefix_len out of range: %d", c.Network.IPv6PrefixLen)
	}
	if c.Spectrum.Bins <= 0 || c.Spectrum.Max <= c.Spectrum.Min {
		return fmt.Errorf("invalid spectrum: %d bins over [%g, %g]", c.Spectrum.Bins, c.Spectrum.Min, c.Spectrum.Max)
	}
	return nil
}

// GroupTimeout parses the grouping timeout.
func (c *Config) GroupTimeout() (time.Duration, error) {
	d, err := time.ParseDuration(c.Grouping.Timeout)
	if err != nil {
		return 0, fmt.Errorf("invalid grouping timeout: %w", err)
	}
	if d < 0 {
		return 0, fmt.Errorf("grouping timeout must not be negative, got %s", d)
	}
	return d, nil
}
