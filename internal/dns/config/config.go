package config

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"net"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// AppConfig holds the forwarder configuration. Values are layered from
// defaults, an optional config file, DNS_ environment variables and finally
// command-line flags.
type AppConfig struct {
	// Env is the runtime environment, either "dev" or "prod".
	Env string `koanf:"env" validate:"required,oneof=dev prod"`

	// LogLevel controls log verbosity: "debug", "info", "warn", or "error".
	LogLevel string `koanf:"log_level" validate:"required,oneof=debug info warn error"`

	// Port is the UDP port clients send queries to.
	Port int `koanf:"port" validate:"required,gte=1,lte=65535"`

	// Resolver is the upstream resolver in host:port format.
	Resolver string `koanf:"resolver" validate:"required,host_port"`

	// UpstreamTimeout is how long a client request may wait for every
	// upstream reply before it is answered with SERVFAIL.
	UpstreamTimeout time.Duration `koanf:"upstream_timeout" validate:"gt=0"`

	// SweepInterval is how often expired requests are looked for.
	SweepInterval time.Duration `koanf:"sweep_interval" validate:"gt=0"`

	// QueueSize bounds each inbound datagram queue.
	QueueSize int `koanf:"queue_size" validate:"gte=1"`

	// RetiredCacheSize is how many answered or expired correlation ids are
	// remembered to recognise late replies. Zero disables the check.
	RetiredCacheSize int `koanf:"retired_cache_size" validate:"gte=0"`

	// ForwardRecursionDesired sets RD on upstream queries.
	ForwardRecursionDesired bool `koanf:"forward_recursion_desired"`
}

// DEFAULT_APP_CONFIG defines the default configuration. Resolver has no
// default and must be supplied.
var DEFAULT_APP_CONFIG = AppConfig{
	Env:                     "prod",
	LogLevel:                "info",
	Port:                    2053,
	UpstreamTimeout:         5 * time.Second,
	SweepInterval:           time.Second,
	QueueSize:               256,
	RetiredCacheSize:        4096,
	ForwardRecursionDesired: false,
}

// validHostPort validates a "host:port" value where host is an IP address or
// a hostname and port is between 1 and 65535.
func validHostPort(fl validator.FieldLevel) bool {
	host, port, err := net.SplitHostPort(fl.Field().String())
	if err != nil || host == "" || port == "" {
		return false
	}
	portNum, err := strconv.ParseUint(port, 10, 16)
	if err != nil || portNum == 0 {
		return false
	}
	if net.ParseIP(host) != nil {
		return true
	}
	return validHostname(host)
}

func validHostname(host string) bool {
	host = strings.TrimSuffix(host, ".")
	if host == "" || len(host) > 253 {
		return false
	}
	for _, label := range strings.Split(host, ".") {
		if label == "" || len(label) > 63 || label[0] == '-' || label[len(label)-1] == '-' {
			return false
		}
		for _, r := range label {
			if !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' || r == '-') {
				return false
			}
		}
	}
	return true
}

// defaultLoader loads DEFAULT_APP_CONFIG through the structs provider.
var defaultLoader = func(k *koanf.Koanf) error {
	return k.Load(structs.Provider(DEFAULT_APP_CONFIG, "koanf"), nil)
}

// fileLoader loads a YAML, JSON or TOML file, chosen by extension.
var fileLoader = func(k *koanf.Koanf, path string) error {
	var parser koanf.Parser
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		parser = yaml.Parser()
	case ".json":
		parser = json.Parser()
	case ".toml":
		parser = toml.Parser()
	default:
		return fmt.Errorf("unsupported config file extension %q", filepath.Ext(path))
	}
	return k.Load(file.Provider(path), parser)
}

// envLoader loads environment variables with the prefix "DNS_".
// It transforms the keys to lowercase and removes the prefix,
// and can be mocked in tests.
var envLoader = func(k *koanf.Koanf) error {
	return k.Load(env.Provider(".", env.Opt{
		Prefix: "DNS_",
		TransformFunc: func(key, value string) (string, any) {
			return strings.ToLower(strings.TrimPrefix(key, "DNS_")), strings.TrimSpace(value)
		},
	}), nil)
}

// registerValidation registers the "host_port" tag with the provided validator.
var registerValidation = func(v *validator.Validate) error {
	return v.RegisterValidation("host_port", validHostPort)
}

type flagValues struct {
	configFile string
	overrides  map[string]any
}

// parseFlags parses args and returns only the flags that were set, keyed by
// their configuration name.
func parseFlags(args []string) (flagValues, error) {
	fs := flag.NewFlagSet("rr-fwdd", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	configFile := fs.String("config", "", "path to a YAML, JSON or TOML config file")
	resolver := fs.String("resolver", "", "upstream resolver address (host:port)")
	port := fs.Int("port", DEFAULT_APP_CONFIG.Port, "UDP port to listen on")
	logLevel := fs.String("log-level", DEFAULT_APP_CONFIG.LogLevel, "log level: debug, info, warn or error")

	if err := fs.Parse(args); err != nil {
		return flagValues{}, err
	}
	if fs.NArg() > 0 {
		return flagValues{}, fmt.Errorf("unexpected arguments: %v", fs.Args())
	}

	out := flagValues{configFile: *configFile, overrides: map[string]any{}}
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "resolver":
			out.overrides["resolver"] = *resolver
		case "port":
			out.overrides["port"] = *port
		case "log-level":
			out.overrides["log_level"] = *logLevel
		}
	})
	return out, nil
}

// Load builds an AppConfig from defaults, the optional --config file,
// environment variables and the flags in args, in increasing precedence.
// It runs validation automatically. flag.ErrHelp is returned unwrapped
// when -h is given.
func Load(args []string) (*AppConfig, error) {
	flags, err := parseFlags(args)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil, err
		}
		return nil, fmt.Errorf("error parsing flags: %w", err)
	}

	k := koanf.New(".")

	if err := defaultLoader(k); err != nil {
		return nil, fmt.Errorf("error loading default config: %w", err)
	}

	if flags.configFile != "" {
		if err := fileLoader(k, flags.configFile); err != nil {
			return nil, fmt.Errorf("error loading config file %s: %w", flags.configFile, err)
		}
	}

	if err := envLoader(k); err != nil {
		return nil, fmt.Errorf("error loading env: %w", err)
	}

	if err := k.Load(confmap.Provider(flags.overrides, "."), nil); err != nil {
		return nil, fmt.Errorf("error loading flags: %w", err)
	}

	var cfg AppConfig

	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("error unmarshalling config: %w", err)
	}

	validate := validator.New(validator.WithRequiredStructEnabled())

	if err := registerValidation(validate); err != nil {
		return nil, fmt.Errorf("error registering validation: %w", err)
	}

	if err := validate.Struct(&cfg); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	return &cfg, nil
}

// ListenAddress is the client-facing UDP address.
func (c *AppConfig) ListenAddress() string {
	return net.JoinHostPort("", strconv.Itoa(c.Port))
}
