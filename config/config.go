// Package config holds the options of the tourist server and their sources:
// defaults, a .env file, environment variables and command line flags.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"

	"github.com/Aanu1995/Virtual-Tourist/photoservice"
	"github.com/joho/godotenv"
	"github.com/urfave/cli"
	"go.uber.org/zap/zapcore"
)

const (
	EnvPrefix      = "TOURIST_"
	EnvFile        = EnvPrefix + "ENV_FILE"
	defaultEnvFile = ".env"
)

type Options struct {
	Dir          string `json:"dir"`
	Port         uint   `json:"port"`
	APIKey       string `json:"-"`
	BaseURL      string `json:"baseUrl"`
	SearchMethod string `json:"searchMethod"`
	LogFile      string `json:"logFile,omitempty"`
	Downloads    int64  `json:"downloads"`
	MaxConns     int    `json:"maxConns"`
}

func Defaults() Options {
	return Options{
		Dir:          "tourist",
		Port:         8080,
		BaseURL:      photoservice.DefaultBaseURL,
		SearchMethod: photoservice.DefaultMethod,
		Downloads:    4,
		MaxConns:     100,
	}
}

func (o Options) Validate() error {
	var errs []error
	if o.Dir == "" {
		errs = append(errs, errors.New("data directory must be set"))
	}
	if o.Port == 0 || o.Port > 65535 {
		errs = append(errs, fmt.Errorf("invalid port %d", o.Port))
	}
	if o.APIKey == "" {
		errs = append(errs, errors.New("photo service API key must be set"))
	}
	if u, err := url.Parse(o.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Errorf("invalid photo service URL %q", o.BaseURL))
	}
	if o.SearchMethod == "" {
		errs = append(errs, errors.New("search method must be set"))
	}
	if o.Downloads < 1 {
		errs = append(errs, fmt.Errorf("downloads must be at least 1, got %d", o.Downloads))
	}
	if o.MaxConns < 1 {
		errs = append(errs, fmt.Errorf("max connections must be at least 1, got %d", o.MaxConns))
	}
	return errors.Join(errs...)
}

// PhotoService returns the options of the photo service client
func (o Options) PhotoService() photoservice.Options {
	return photoservice.Options{BaseURL: o.BaseURL, Method: o.SearchMethod, APIKey: o.APIKey}
}

func (o Options) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddString("dir", o.Dir)
	enc.AddUint("port", o.Port)
	enc.AddString("baseUrl", o.BaseURL)
	enc.AddString("searchMethod", o.SearchMethod)
	enc.AddBool("apiKey", o.APIKey != "")
	enc.AddInt64("downloads", o.Downloads)
	enc.AddInt("maxConns", o.MaxConns)
	if o.LogFile != "" {
		enc.AddString("logFile", o.LogFile)
	}
	return nil
}

// LoadEnv loads variables from the file named by TOURIST_ENV_FILE, or from
// .env if present. Variables already set in the environment win.
func LoadEnv() error {
	file, explicit := os.LookupEnv(EnvFile)
	if !explicit {
		file = defaultEnvFile
		if _, err := os.Stat(file); errors.Is(err, os.ErrNotExist) {
			return nil
		}
	}
	if err := godotenv.Load(file); err != nil {
		return fmt.Errorf("cannot load %s: %w", file, err)
	}
	return nil
}

var defaults = Defaults()

// Flags are the global command line flags, each also settable through the
// environment
var Flags = []cli.Flag{
	cli.StringFlag{
		Name:   "dir, d",
		Usage:  "data `DIRECTORY` holding the pin and album database",
		Value:  defaults.Dir,
		EnvVar: EnvPrefix + "DIR",
	},
	cli.UintFlag{
		Name:   "port, p",
		Usage:  "HTTP `PORT` to listen on",
		Value:  defaults.Port,
		EnvVar: EnvPrefix + "PORT",
	},
	cli.StringFlag{
		Name:   "api-key",
		Usage:  "photo service API `KEY`",
		EnvVar: EnvPrefix + "API_KEY",
	},
	cli.StringFlag{
		Name:   "base-url",
		Usage:  "photo service REST endpoint `URL`",
		Value:  defaults.BaseURL,
		EnvVar: EnvPrefix + "BASE_URL",
	},
	cli.StringFlag{
		Name:   "search-method",
		Usage:  "photo service search `METHOD`",
		Value:  defaults.SearchMethod,
		EnvVar: EnvPrefix + "SEARCH_METHOD",
	},
	cli.StringFlag{
		Name:   "log-file",
		Usage:  "additionally write JSON logs to `FILE`",
		EnvVar: EnvPrefix + "LOG_FILE",
	},
	cli.Int64Flag{
		Name:   "downloads",
		Usage:  "maximum number of concurrent image downloads",
		Value:  defaults.Downloads,
		EnvVar: EnvPrefix + "DOWNLOADS",
	},
	cli.IntFlag{
		Name:   "max-conns",
		Usage:  "maximum number of concurrent HTTP connections",
		Value:  defaults.MaxConns,
		EnvVar: EnvPrefix + "MAX_CONNS",
	},
}

// FromContext reads the options from the parsed global flags
func FromContext(c *cli.Context) Options {
	return Options{
		Dir:          c.GlobalString("dir"),
		Port:         c.GlobalUint("port"),
		APIKey:       c.GlobalString("api-key"),
		BaseURL:      c.GlobalString("base-url"),
		SearchMethod: c.GlobalString("search-method"),
		LogFile:      c.GlobalString("log-file"),
		Downloads:    c.GlobalInt64("downloads"),
		MaxConns:     c.GlobalInt("max-conns"),
	}
}
