// Package config resolves the environment the harness runs against.
//
// A config file holds named environments (test, dev, mix) and the runner
// settings shared by all of them. The environment is chosen by the
// RWA_ENV variable or an explicit name; per-environment values can be
// overridden from the process environment, e.g. RWA_TEST_URL or
// RWA_DEV_ADMIN_PASSWORD. The result is validated against an embedded CUE
// schema before it is returned.
package config

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvSelector is the variable that names the environment.
const EnvSelector = "RWA_ENV"

// ErrUnknownEnvironment is returned when the selected environment is not
// defined in the config file. Callers treat it as fatal.
var ErrUnknownEnvironment = errors.New("unknown environment")

//go:embed defaults.yaml
var defaultsYAML []byte

// Admin is the administrator account of an environment.
type Admin struct {
	Username  string `yaml:"username" json:"username"`
	Password  string `yaml:"password" json:"password"`
	FirstName string `yaml:"first_name" json:"first_name"`
	LastName  string `yaml:"last_name" json:"last_name"`
}

// Environment is one deployment of the application.
type Environment struct {
	// BaseURL is where the UI is served.
	BaseURL string `yaml:"base_url" json:"base_url"`
	// APIURL is the backend the seed gateway talks to.
	APIURL      string `yaml:"api_url" json:"api_url"`
	IdentityURL string `yaml:"identity_url" json:"identity_url"`
	// Admin is signed in before a run to check the environment is seeded.
	Admin Admin `yaml:"admin" json:"admin"`
}

// Viewport is the browser window size.
type Viewport struct {
	Width  int `yaml:"width" json:"width"`
	Height int `yaml:"height" json:"height"`
}

// Runner holds settings shared by every environment.
type Runner struct {
	ActionTimeout   time.Duration `yaml:"action_timeout" json:"action_timeout"`
	ExpectTimeout   time.Duration `yaml:"expect_timeout" json:"expect_timeout"`
	ScenarioTimeout time.Duration `yaml:"scenario_timeout" json:"scenario_timeout"`
	Workers         int           `yaml:"workers" json:"workers"`
	Headless        bool          `yaml:"headless" json:"headless"`
	Viewport        Viewport      `yaml:"viewport" json:"viewport"`
	DeviationMode   string        `yaml:"deviation_mode" json:"deviation_mode"`
}

// File is the on-disk shape of a config file.
type File struct {
	Default      string                 `yaml:"default" json:"default"`
	Environments map[string]Environment `yaml:"environments" json:"environments"`
	Runner       Runner                 `yaml:"runner" json:"runner"`
}

// Config is the resolved configuration for one run.
type Config struct {
	Name string
	Environment
	Runner Runner
}

// LoadOptions controls Load.
type LoadOptions struct {
	// Path is a config file. Empty uses the built-in defaults.
	Path string

	// Env names the environment. Empty falls back to RWA_ENV, then to the
	// file's default.
	Env string

	// Getenv reads the process environment. Defaults to os.Getenv.
	Getenv func(string) string
}

// Defaults returns the built-in config file.
func Defaults() (File, error) {
	return Parse(defaultsYAML)
}

// Parse decodes a config file. Unknown keys are rejected.
func Parse(data []byte) (File, error) {
	var f File
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return File{}, fmt.Errorf("parse config: %w", err)
	}
	return f, nil
}

// Load reads, selects, overrides and validates.
func Load(opts LoadOptions) (Config, error) {
	getenv := opts.Getenv
	if getenv == nil {
		getenv = os.Getenv
	}

	data := defaultsYAML
	if opts.Path != "" {
		b, err := os.ReadFile(opts.Path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		data = b
	}
	f, err := Parse(data)
	if err != nil {
		return Config{}, err
	}
	return f.Resolve(opts.Env, getenv)
}

// Resolve selects an environment from f and applies overrides.
func (f File) Resolve(name string, getenv func(string) string) (Config, error) {
	if name == "" {
		name = getenv(EnvSelector)
	}
	if name == "" {
		name = f.Default
	}
	env, ok := f.Environments[name]
	if !ok {
		return Config{}, fmt.Errorf("%w %q (known: %s)", ErrUnknownEnvironment, name, strings.Join(f.names(), ", "))
	}

	cfg := Config{Name: name, Environment: env, Runner: f.Runner}
	if err := cfg.override(getenv); err != nil {
		return Config{}, err
	}
	if err := validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (f File) names() []string {
	names := make([]string, 0, len(f.Environments))
	for n := range f.Environments {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// override applies RWA_<ENV>_* and runner variables.
func (c *Config) override(getenv func(string) string) error {
	prefix := "RWA_" + strings.ToUpper(c.Name) + "_"
	str := func(key string, dst *string) {
		if v := getenv(key); v != "" {
			*dst = v
		}
	}
	str(prefix+"URL", &c.BaseURL)
	str(prefix+"SERVER_URL", &c.APIURL)
	str(prefix+"IDENTITY_URL", &c.IdentityURL)
	str(prefix+"ADMIN_USERNAME", &c.Admin.Username)
	str(prefix+"ADMIN_PASSWORD", &c.Admin.Password)
	str(prefix+"ADMIN_FIRST_NAME", &c.Admin.FirstName)
	str(prefix+"ADMIN_LAST_NAME", &c.Admin.LastName)
	str("RWA_DEVIATION_MODE", &c.Runner.DeviationMode)

	if v := getenv("RWA_WORKERS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("RWA_WORKERS: %w", err)
		}
		c.Runner.Workers = n
	}
	if v := getenv("RWA_HEADLESS"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("RWA_HEADLESS: %w", err)
		}
		c.Runner.Headless = b
	}
	return nil
}
