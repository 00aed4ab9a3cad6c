// Package dubconfig loads DUB's own invocation-level configuration
// (registry URLs, cache locations, build parallelism) from a small TOML
// document, following the teacher's use of github.com/pelletier/go-toml
// for its analogous structured documents (toml.go).
package dubconfig

import (
	"io"
	"io/ioutil"

	"github.com/pelletier/go-toml"
	"github.com/pkg/errors"
)

// Config is DUB's invocation-level configuration (§5 "a configurable
// parallelism option", §4.3's cache locations).
type Config struct {
	RegistryURLs     []string
	UserCacheDir     string
	SystemCacheDir   string
	Parallelism      int
	DefaultBuildType string
}

// Default returns the configuration used when no config file is present.
func Default() Config {
	return Config{
		RegistryURLs:     []string{"https://code.dlang.org"},
		UserCacheDir:     "~/.dub/packages",
		SystemCacheDir:   "/var/lib/dub/packages",
		Parallelism:      0, // 0 means "number of CPUs", per §5
		DefaultBuildType: "debug",
	}
}

// Load reads a TOML configuration document, overlaying it onto Default().
func Load(r io.Reader) (Config, error) {
	cfg := Default()

	data, err := ioutil.ReadAll(r)
	if err != nil {
		return cfg, errors.Wrap(err, "reading dub config")
	}

	tree, err := toml.LoadBytes(data)
	if err != nil {
		return cfg, errors.Wrap(err, "parsing dub config")
	}

	if v, ok := tree.Get("registryUrls").([]interface{}); ok {
		cfg.RegistryURLs = cfg.RegistryURLs[:0]
		for _, u := range v {
			if s, ok := u.(string); ok {
				cfg.RegistryURLs = append(cfg.RegistryURLs, s)
			}
		}
	}
	if s, ok := tree.Get("userCacheDir").(string); ok && s != "" {
		cfg.UserCacheDir = s
	}
	if s, ok := tree.Get("systemCacheDir").(string); ok && s != "" {
		cfg.SystemCacheDir = s
	}
	if n, ok := tree.Get("parallelism").(int64); ok {
		cfg.Parallelism = int(n)
	}
	if s, ok := tree.Get("defaultBuildType").(string); ok && s != "" {
		cfg.DefaultBuildType = s
	}

	return cfg, nil
}
