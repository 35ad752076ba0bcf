package main

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"
	"gopkg.in/yaml.v3"

	"github.com/wiki-saikou/mwrest-go/mwrest"
)

// config is resolved in layers: defaults, the YAML file, .env, MWREST_*
// environment variables, then command-line flags.
type config struct {
	Endpoint    string        `yaml:"endpoint"`
	Wiki        string        `yaml:"wiki"`
	AccessToken string        `yaml:"access_token"`
	UserAgent   string        `yaml:"user_agent"`
	APIVersion  int           `yaml:"api_version"`
	Timeout     time.Duration `yaml:"timeout"`
	RateLimit   float64       `yaml:"rate_limit"`
	LogLevel    string        `yaml:"log_level"`
	MetricsAddr string        `yaml:"metrics_addr"`
}

func defaultConfig() config {
	return config{
		UserAgent: mwrest.DefaultUserAgent,
		Timeout:   30 * time.Second,
		LogLevel:  "info",
	}
}

// globalFlags are the flags accepted before the subcommand name.
type globalFlags struct {
	fs         *flag.FlagSet
	configPath string
	values     config
}

func newGlobalFlags() *globalFlags {
	g := &globalFlags{fs: flag.NewFlagSet("mwrest", flag.ContinueOnError)}
	g.fs.StringVar(&g.configPath, "config", "", "YAML config file (env MWREST_CONFIG)")
	g.fs.StringVar(&g.values.Endpoint, "endpoint", "", "rest.php URL of the wiki")
	g.fs.StringVar(&g.values.Wiki, "wiki", "", "Wikimedia wiki id, e.g. enwiki")
	g.fs.StringVar(&g.values.AccessToken, "token", "", "OAuth 2 access token")
	g.fs.StringVar(&g.values.UserAgent, "user-agent", "", "User-Agent header")
	g.fs.IntVar(&g.values.APIVersion, "api-version", 0, "REST API version")
	g.fs.DurationVar(&g.values.Timeout, "timeout", 0, "HTTP timeout")
	g.fs.Float64Var(&g.values.RateLimit, "rate", 0, "max requests per second, 0 for unlimited")
	g.fs.StringVar(&g.values.LogLevel, "log-level", "", "debug, info, warn or error")
	return g
}

// loadConfig layers the config sources. The flags must already be parsed.
func loadConfig(g *globalFlags) (config, error) {
	cfg := defaultConfig()

	path := g.configPath
	if path == "" {
		path = os.Getenv("MWREST_CONFIG")
	}
	if path != "" {
		if err := readConfigFile(path, &cfg); err != nil {
			return config{}, err
		}
	}

	// Best-effort load .env from current working directory.
	// It will NOT override already-set environment variables.
	_ = loadDotEnv(".env")

	if err := applyEnv(&cfg); err != nil {
		return config{}, err
	}

	g.fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "endpoint":
			cfg.Endpoint = g.values.Endpoint
		case "wiki":
			cfg.Wiki = g.values.Wiki
		case "token":
			cfg.AccessToken = g.values.AccessToken
		case "user-agent":
			cfg.UserAgent = g.values.UserAgent
		case "api-version":
			cfg.APIVersion = g.values.APIVersion
		case "timeout":
			cfg.Timeout = g.values.Timeout
		case "rate":
			cfg.RateLimit = g.values.RateLimit
		case "log-level":
			cfg.LogLevel = g.values.LogLevel
		}
	})
	return cfg, nil
}

func readConfigFile(path string, cfg *config) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open config: %w", err)
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("decode config %s: %w", path, err)
	}
	return nil
}

func applyEnv(cfg *config) error {
	str := func(key string, dst *string) {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			*dst = v
		}
	}
	str("MWREST_ENDPOINT", &cfg.Endpoint)
	str("MWREST_WIKI", &cfg.Wiki)
	str("MWREST_ACCESS_TOKEN", &cfg.AccessToken)
	str("MWREST_USER_AGENT", &cfg.UserAgent)
	str("MWREST_LOG_LEVEL", &cfg.LogLevel)
	str("MWREST_METRICS_ADDR", &cfg.MetricsAddr)

	if v := strings.TrimSpace(os.Getenv("MWREST_API_VERSION")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("MWREST_API_VERSION: %w", err)
		}
		cfg.APIVersion = n
	}
	if v := strings.TrimSpace(os.Getenv("MWREST_TIMEOUT")); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("MWREST_TIMEOUT: %w", err)
		}
		cfg.Timeout = d
	}
	if v := strings.TrimSpace(os.Getenv("MWREST_RATE_LIMIT")); v != "" {
		r, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("MWREST_RATE_LIMIT: %w", err)
		}
		cfg.RateLimit = r
	}
	return nil
}

// endpoint resolves the configured wiki. An explicit endpoint URL wins over
// a wiki id.
func (c config) endpoint() (mwrest.Endpoint, error) {
	var (
		ep  mwrest.Endpoint
		err error
	)
	switch {
	case c.Endpoint != "":
		ep, err = mwrest.ParseEndpoint(c.Endpoint)
	case c.Wiki != "":
		ep, err = mwrest.ResolveWikiID(c.Wiki)
	default:
		return mwrest.Endpoint{}, errors.New("no wiki configured: set -endpoint, -wiki, MWREST_ENDPOINT or MWREST_WIKI")
	}
	if err != nil {
		return mwrest.Endpoint{}, err
	}
	if c.APIVersion > 0 {
		ep = ep.WithAPIVersion(c.APIVersion)
	}
	return ep, nil
}

func (c config) clientOptions(logger *slog.Logger) []mwrest.Option {
	opts := []mwrest.Option{
		mwrest.WithUserAgent(c.UserAgent),
		mwrest.WithTimeout(c.Timeout),
		mwrest.WithLogger(logger),
	}
	if c.RateLimit > 0 {
		opts = append(opts, mwrest.WithRateLimiter(rate.NewLimiter(rate.Limit(c.RateLimit), 1)))
	}
	return opts
}

func (c config) auth(logger *slog.Logger) *mwrest.AuthContext {
	if c.AccessToken == "" {
		return mwrest.Anonymous(mwrest.WithAuthLogger(logger))
	}
	return mwrest.WithAccessToken(c.AccessToken, mwrest.WithAuthLogger(logger))
}

func (c config) slogLevel() slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return l
}

// loadDotEnv reads KEY=VALUE lines from a file and sets them into the process environment.
// It only sets variables that are not already present.
func loadDotEnv(path string) error {
	abs, err := filepath.Abs(path)
	if err == nil {
		path = abs
	}
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		line = strings.TrimPrefix(line, "export ")
		k, v, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key := strings.TrimSpace(k)
		if key == "" {
			continue
		}
		if _, exists := os.LookupEnv(key); exists {
			continue
		}
		_ = os.Setenv(key, unquote(strings.TrimSpace(v)))
	}
	return sc.Err()
}

func unquote(v string) string {
	if len(v) >= 2 {
		if (v[0] == '"' && v[len(v)-1] == '"') || (v[0] == '\'' && v[len(v)-1] == '\'') {
			return v[1 : len(v)-1]
		}
	}
	return v
}
