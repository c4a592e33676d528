package config

import (
	"errors"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/pflag"
)

const (
	EnvPrefix = "GRIDWATCH_"

	DefaultHost           = "localhost"
	DefaultPort           = 1323
	DefaultPromURL        = "http://localhost:9090"
	DefaultUsername       = "admin"
	DefaultPassword       = "password"
	DefaultEstimatedKW    = 500.0
	DefaultMonitoredKW    = 20.0
	DefaultDataDir        = ".data"
	DefaultPollInterval   = 60 * time.Second
	DefaultBufferCapacity = 3000
	DefaultAllowOrigin    = "*"
)

type Config struct {
	Host     string
	Port     int
	PromURL  string
	Username string
	Password string

	// EstimatedKW is the unmonitored solar capacity, MonitoredKW the
	// capacity behind the meters when the site registry has none recorded.
	EstimatedKW float64
	MonitoredKW float64

	DataDir        string
	PollInterval   time.Duration
	BufferCapacity int
	AllowOrigin    string

	KubeSites     bool
	KubeNamespace string
	KubeConfig    string
}

// Default returns the configuration from GRIDWATCH_* environment variables,
// falling back to built-in defaults.
func Default() Config {
	return FromEnv(os.Getenv)
}

// FromEnv is Default with a custom lookup. Values that fail to parse fall
// back to the defaults.
func FromEnv(getenv func(string) string) Config {
	get := func(k, fallback string) string {
		if v := getenv(EnvPrefix + k); v != "" {
			return v
		}
		return fallback
	}
	return Config{
		Host:           get("HOST", DefaultHost),
		Port:           atoi(get("PORT", ""), DefaultPort),
		PromURL:        get("PROM_URL", DefaultPromURL),
		Username:       get("USERNAME", DefaultUsername),
		Password:       get("PASSWORD", DefaultPassword),
		EstimatedKW:    atof(get("ESTIMATED_DNC", ""), DefaultEstimatedKW),
		MonitoredKW:    atof(get("DNC", ""), DefaultMonitoredKW),
		DataDir:        get("DATA_DIR", DefaultDataDir),
		PollInterval:   duration(get("POLL_INTERVAL", ""), DefaultPollInterval),
		BufferCapacity: atoi(get("BUFFER_CAPACITY", ""), DefaultBufferCapacity),
		AllowOrigin:    get("ALLOW_ORIGIN", DefaultAllowOrigin),
		KubeSites:      boolean(get("KUBE_SITES", ""), false),
		KubeNamespace:  get("KUBE_NAMESPACE", ""),
	}
}

// BindFlags registers flags that override the values already in c.
func (c *Config) BindFlags(fs *pflag.FlagSet) {
	fs.StringVar(&c.Host, "host", c.Host, "Host to listen on")
	fs.IntVar(&c.Port, "port", c.Port, "Port to run on")
	fs.StringVar(&c.PromURL, "prometheus", c.PromURL, "URL for Prometheus Server")
	fs.StringVar(&c.Username, "username", c.Username, "Username for Prometheus Server")
	fs.StringVar(&c.Password, "password", c.Password, "Password for Prometheus Server")
	fs.Float64Var(&c.EstimatedKW, "estimate", c.EstimatedKW, "Estimated unmonitored solar capacity in kilowatts")
	fs.Float64Var(&c.MonitoredKW, "dnc", c.MonitoredKW, "Monitored solar capacity in kilowatts")
	fs.StringVar(&c.DataDir, "data-dir", c.DataDir, "Directory for the SQLite and DuckDB files")
	fs.DurationVar(&c.PollInterval, "poll-interval", c.PollInterval, "How often to poll Prometheus")
	fs.IntVar(&c.BufferCapacity, "buffer-capacity", c.BufferCapacity, "Samples kept in the combined solar buffer")
	fs.StringVar(&c.AllowOrigin, "allow-origin", c.AllowOrigin, "Access-Control-Allow-Origin for API responses")
	fs.BoolVar(&c.KubeSites, "kube-sites", c.KubeSites, "Read site capacities from labelled Kubernetes ConfigMaps")
	fs.StringVar(&c.KubeNamespace, "kube-namespace", c.KubeNamespace, "Namespace to watch for site ConfigMaps (all when empty)")
	fs.StringVar(&c.KubeConfig, "kubeconfig", c.KubeConfig, "Path to a kubeconfig file")
}

func (c Config) Validate() error {
	var errs []error
	if c.BufferCapacity <= 0 {
		errs = append(errs, errors.New("buffer capacity must be positive"))
	}
	if c.PollInterval <= 0 {
		errs = append(errs, errors.New("poll interval must be positive"))
	}
	if strings.TrimSpace(c.PromURL) == "" {
		errs = append(errs, errors.New("prometheus URL is required"))
	}
	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, errors.New("port must be between 1 and 65535"))
	}
	if c.EstimatedKW < 0 || c.MonitoredKW < 0 {
		errs = append(errs, errors.New("capacities cannot be negative"))
	}
	return errors.Join(errs...)
}

func (c Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

func atoi(s string, fallback int) int {
	if v, err := strconv.Atoi(s); err == nil {
		return v
	}
	return fallback
}

func atof(s string, fallback float64) float64 {
	if v, err := strconv.ParseFloat(s, 64); err == nil {
		return v
	}
	return fallback
}

// duration accepts Go durations ("90s") or plain seconds ("90").
func duration(s string, fallback time.Duration) time.Duration {
	if d, err := time.ParseDuration(s); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(s); err == nil {
		return time.Duration(secs) * time.Second
	}
	return fallback
}

func boolean(s string, fallback bool) bool {
	if v, err := strconv.ParseBool(s); err == nil {
		return v
	}
	return fallback
}
