package internal

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/Eyevinn/mp2ts-pidhider/common"
	"github.com/Eyevinn/mp2ts-pidhider/internal/pidpatch"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

var (
	ErrNoRoutes  = errors.New("no route configured")
	ErrRouteArgs = errors.New("expected mcast_in port_in mcast_out port_out [pid ...]")
)

// RouteConfig is one input to output relay.
type RouteConfig struct {
	Name            string `mapstructure:"name"`
	Input           string `mapstructure:"input"`
	InputInterface  string `mapstructure:"input_interface"`
	Output          string `mapstructure:"output"`
	OutputInterface string `mapstructure:"output_interface"`
	TTL             int    `mapstructure:"ttl"`
	Loopback        bool   `mapstructure:"loopback"`
	Encapsulation   string `mapstructure:"encapsulation"`
	Pids            []int  `mapstructure:"pids"`
}

type Config struct {
	Level         string        `mapstructure:"level"`
	LogFile       string        `mapstructure:"log_file"`
	StatsInterval time.Duration `mapstructure:"stats_interval"`
	BufferSize    int           `mapstructure:"buffer_size"`
	Indent        bool          `mapstructure:"indent"`
	Routes        []RouteConfig `mapstructure:"routes"`
}

// DefineFlags registers the mp2ts-pidhider flags on fs. The per-route flags
// apply to the route given as positional arguments.
func DefineFlags(fs *pflag.FlagSet) {
	fs.String("config", "", "configuration file (yaml, json or toml) with routes")
	fs.String("level", "info", "log level (debug, info, warn, error)")
	fs.String("log_file", "", "write logs to this file, rotated, instead of stderr")
	fs.Duration("stats_interval", 5*time.Second, "interval between status lines, 0 to disable")
	fs.Int("buffer_size", common.DefaultDatagramSize, "receive buffer size in bytes")
	fs.Bool("indent", false, "indent JSON status output")
	fs.String("input_interface", "", "input interface name or address")
	fs.String("output_interface", "", "output interface name or address")
	fs.Int("ttl", 0, "multicast TTL of output, 0 for system default")
	fs.Bool("loopback", false, "loop output multicast back to local host")
	fs.String("encapsulation", "auto", "datagram encapsulation: auto (size based), raw or rtp")
	fs.Bool("version", false, "print version")
}

// LoadConfig merges defaults, an optional config file, PIDHIDER_* environment
// variables and the flags of fs. A route given as positional arguments is
// appended to the routes of the config file.
func LoadConfig(fs *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	v.SetDefault("level", "info")
	v.SetDefault("stats_interval", "5s")
	v.SetDefault("buffer_size", common.DefaultDatagramSize)
	v.SetDefault("encapsulation", "auto")

	if err := v.BindPFlags(fs); err != nil {
		return nil, fmt.Errorf("binding flags %w", err)
	}
	v.SetEnvPrefix("pidhider")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if file := v.GetString("config"); file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config file %w", err)
		}
	}

	c := &Config{}
	if err := v.Unmarshal(c); err != nil {
		return nil, fmt.Errorf("decoding config %w", err)
	}

	if fs.NArg() > 0 {
		r, err := ParseRouteArgs(fs.Args())
		if err != nil {
			return nil, err
		}
		r.InputInterface = v.GetString("input_interface")
		r.OutputInterface = v.GetString("output_interface")
		r.TTL = v.GetInt("ttl")
		r.Loopback = v.GetBool("loopback")
		r.Encapsulation = v.GetString("encapsulation")
		c.Routes = append(c.Routes, r)
	}

	for i := range c.Routes {
		if c.Routes[i].Name == "" {
			c.Routes[i].Name = fmt.Sprintf("route-%d", i+1)
		}
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// ParseRouteArgs reads the positional form mcast_in port_in mcast_out port_out pid1 [pid2 ...].
func ParseRouteArgs(args []string) (RouteConfig, error) {
	if len(args) < 4 {
		return RouteConfig{}, ErrRouteArgs
	}
	in, err := hostPort(args[0], args[1])
	if err != nil {
		return RouteConfig{}, err
	}
	out, err := hostPort(args[2], args[3])
	if err != nil {
		return RouteConfig{}, err
	}
	pids, err := ParsePidsFromString(strings.Join(args[4:], " "))
	if err != nil {
		return RouteConfig{}, err
	}
	return RouteConfig{Input: in, Output: out, Pids: pids}, nil
}

func hostPort(host, port string) (string, error) {
	p, err := strconv.Atoi(port)
	if err != nil || p <= 0 || p > 65535 {
		return "", fmt.Errorf("invalid port %q", port)
	}
	if net.ParseIP(host) == nil {
		return "", fmt.Errorf("invalid address %q", host)
	}
	return net.JoinHostPort(host, port), nil
}

func (c *Config) Validate() error {
	if len(c.Routes) == 0 {
		return ErrNoRoutes
	}
	if c.BufferSize < common.DefaultDatagramSize || c.BufferSize > common.MaxDatagramSize {
		return fmt.Errorf("buffer_size %d not in [%d, %d]", c.BufferSize, common.DefaultDatagramSize, common.MaxDatagramSize)
	}
	if c.StatsInterval < 0 {
		return fmt.Errorf("negative stats_interval %s", c.StatsInterval)
	}
	for _, r := range c.Routes {
		if err := r.Validate(); err != nil {
			return fmt.Errorf("route %s: %w", r.Name, err)
		}
	}
	return nil
}

func (r RouteConfig) Validate() error {
	if r.Input == "" || r.Output == "" {
		return errors.New("input and output are required")
	}
	if r.TTL < 0 || r.TTL > 255 {
		return fmt.Errorf("ttl %d out of range", r.TTL)
	}
	if _, err := pidpatch.ParseEncapsulation(r.Encapsulation); err != nil {
		return err
	}
	if _, err := pidpatch.NewPidFilter(r.Pids); err != nil {
		return err
	}
	return nil
}
