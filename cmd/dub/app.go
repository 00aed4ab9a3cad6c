package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/dlang/dub-sub005/internal/dlog"
	"github.com/dlang/dub-sub005/pkg/cache"
	"github.com/dlang/dub-sub005/pkg/dmd"
	"github.com/dlang/dub-sub005/pkg/dubconfig"
	"github.com/dlang/dub-sub005/pkg/dubfail"
	"github.com/dlang/dub-sub005/pkg/iface"
	"github.com/dlang/dub-sub005/pkg/pkgmanager"
)

const configFileName = "dub.config.toml"

// app is the shared context every command's Run receives, built once in
// main after flag parsing: the project root, loaded configuration, a
// logger gated by -v, and the package manager/compiler/cache the core
// packages are driven through.
type app struct {
	root     string
	cfg      dubconfig.Config
	log      *dlog.Logger
	pm       *pkgmanager.PackageManager
	supplier iface.PackageSupplier
	compiler iface.Compiler
	cache    *cache.Cache
	fs       iface.FileSystem
}

func newApp(verbose bool) (*app, error) {
	root, err := findProjectRoot()
	if err != nil {
		return nil, err
	}

	cfg := loadConfig()

	lvl := dlog.Normal
	if verbose {
		lvl = dlog.Verbose
	}
	log := dlog.New(os.Stderr)
	log.Level = lvl

	userCache := expandHome(cfg.UserCacheDir)
	supplier := &pkgmanager.VCSSupplier{
		RemoteFor: registryRemote(cfg),
		WorkDir:   filepath.Join(userCache, ".checkouts"),
	}
	pm := pkgmanager.New(userCache, cfg.SystemCacheDir, supplier)

	return &app{
		root:     root,
		cfg:      cfg,
		log:      log,
		pm:       pm,
		supplier: supplier,
		compiler: dmd.New(""),
		cache:    cache.New(cache.OSFileSystem{}, root),
		fs:       cache.OSFileSystem{},
	}, nil
}

// registryRemote is the RemoteFor the app's VCSSupplier uses: it forms a
// git remote as <first registry URL>/packages/<name>.git, following the convention
// real DUB registries publish (a package's repository field, fetched via
// its metadata API) without this module reaching for an HTTP client of
// its own (§1 "registry hosting"... is a non-goal for DUB to provide, not
// for DUB to consume, but the specific wire protocol of code.dlang.org's
// API is out of this module's grounded scope).
func registryRemote(cfg dubconfig.Config) func(name string) (string, error) {
	return func(name string) (string, error) {
		if len(cfg.RegistryURLs) == 0 {
			return "", errors.Errorf("no registry configured to resolve %s", name)
		}
		return fmt.Sprintf("%s/packages/%s.git", cfg.RegistryURLs[0], name), nil
	}
}

func loadConfig() dubconfig.Config {
	home, err := os.UserHomeDir()
	if err != nil {
		return dubconfig.Default()
	}
	f, err := os.Open(filepath.Join(home, ".dub", configFileName))
	if err != nil {
		return dubconfig.Default()
	}
	defer f.Close()

	cfg, err := dubconfig.Load(f)
	if err != nil {
		return dubconfig.Default()
	}
	return cfg
}

func expandHome(path string) string {
	if len(path) < 2 || path[:2] != "~/" {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[2:])
}

// findProjectRoot walks up from the working directory looking for a root
// recipe file, the way the teacher's findProjectRoot looks for
// manifest.json.
func findProjectRoot() (string, error) {
	wd, err := os.Getwd()
	if err != nil {
		return "", errors.Wrap(err, "getting working directory")
	}

	dir := wd
	for {
		for _, name := range []string{"dub.sdl", "dub.json"} {
			if _, err := os.Stat(filepath.Join(dir, name)); err == nil {
				return dir, nil
			}
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", errors.New("could not find dub.sdl or dub.json in this directory or any parent")
		}
		dir = parent
	}
}

// exitCode maps a pipeline error to the process exit status of §6: 0
// success, 1 CLI/usage error, 2 package-not-found or recipe-load error,
// any other non-zero surfaces from a tool.
func exitCode(err error) int {
	if err == nil {
		return 0
	}
	var pnf *dubfail.PackageNotFound
	var rpe *dubfail.RecipeParseError
	if errors.As(err, &pnf) || errors.As(err, &rpe) {
		return 2
	}
	var ce *dubfail.CompileError
	if errors.As(err, &ce) && ce.ExitCode > 0 {
		return ce.ExitCode
	}
	var le *dubfail.LinkError
	if errors.As(err, &le) && le.ExitCode > 0 {
		return le.ExitCode
	}
	return 1
}
