// Package config resolves per-package release configuration
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/releasekit/releasekit/pkg/logger"
	"github.com/releasekit/releasekit/pkg/runctx"
	"github.com/releasekit/releasekit/pkg/types"
	"gopkg.in/yaml.v3"
)

// ConfigDirName is the directory under the project root holding one
// release config per package.
const ConfigDirName = "release-configs"

// DefaultReleaseTemplate is used when a config omits githubReleaseTemplate
const DefaultReleaseTemplate = "## {package} v{version}\n\n{changelog}"

// Resolver loads release configs, applies convention defaults and
// environment overrides, and validates the result
type Resolver struct {
	rc     *runctx.RuntimeContext
	logger logger.Logger
}

// NewResolver creates a config resolver bound to a runtime context
func NewResolver(rc *runctx.RuntimeContext, log logger.Logger) *Resolver {
	return &Resolver{rc: rc, logger: log}
}

// Resolve produces the effective configuration for a package. Missing
// config files fall back to convention defaults; environment overrides are
// applied after file load and before validation.
func (r *Resolver) Resolve(packageName string) (*types.SubmoduleConfig, error) {
	if packageName == "" {
		return nil, fmt.Errorf("package name is required")
	}

	cfg, path, err := r.loadFile(packageName)
	switch {
	case err == nil:
		if r.logger != nil {
			r.logger.Debug("Loaded release config", logger.WithField("path", path))
		}
	case os.IsNotExist(err):
		cfg = r.DefaultConfig(packageName)
		if r.logger != nil {
			r.logger.Debug("No release config found, using convention defaults",
				logger.WithField("package", packageName))
		}
	default:
		return nil, err
	}

	r.applyEnvOverrides(cfg)

	if err := r.Validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks a configuration and returns a ConfigError aggregating
// every error-level finding. Warnings are logged, not returned.
func (r *Resolver) Validate(cfg *types.SubmoduleConfig) error {
	result := r.check(cfg)

	if r.logger != nil {
		for _, fe := range result.Warnings() {
			r.logger.Warn(fe.Message,
				logger.WithField("package", fe.Package),
				logger.WithField("field", fe.Field))
		}
	}

	return result.Err()
}

// DefaultConfig returns the conventional configuration for a package with
// no config file: mcp-{name} naming, packages/mcp-{name} layout, nx
// build/test commands, a single package.json sync entry, npm-only artifacts.
func (r *Resolver) DefaultConfig(packageName string) *types.SubmoduleConfig {
	name := packageName
	if !strings.HasPrefix(name, "mcp-") {
		name = "mcp-" + packageName
	}

	packageDir := filepath.Join("packages", name)

	return &types.SubmoduleConfig{
		PackageName:         packageName,
		NpmPackageName:      name,
		DockerImageName:     name,
		VSCodeExtensionName: name,
		PackageDir:          packageDir,
		VSCodeExtensionDir:  packageDir,
		BuildCommand:        "nx build " + name,
		TestCommand:         "nx test " + name,
		FilesToSync: []types.VersionSyncFile{
			{
				Path:        filepath.Join(packageDir, "package.json"),
				Pattern:     `"version":\s*"[^"]*"`,
				Replacement: `"version": "{version}"`,
			},
		},
		GithubReleaseTemplate: DefaultReleaseTemplate,
		Artifacts:             &types.ArtifactFlags{Npm: true},
	}
}

// Discover lists package names that have a config file
func (r *Resolver) Discover() ([]string, error) {
	entries, err := os.ReadDir(r.configDir())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read config directory: %w", err)
	}

	seen := make(map[string]bool)
	var names []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := filepath.Ext(entry.Name())
		if ext != ".json" && ext != ".yaml" && ext != ".yml" {
			continue
		}
		name := strings.TrimSuffix(entry.Name(), ext)
		if !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
	}

	sort.Strings(names)
	return names, nil
}

// LookupPaths returns the file locations probed for a package, in order
func (r *Resolver) LookupPaths(packageName string) []string {
	dir := r.configDir()
	return []string{
		filepath.Join(dir, packageName+".json"),
		filepath.Join(dir, packageName+".yaml"),
		filepath.Join(dir, packageName+".yml"),
	}
}

// Private methods

func (r *Resolver) configDir() string {
	return r.rc.Path(ConfigDirName)
}

func (r *Resolver) loadFile(packageName string) (*types.SubmoduleConfig, string, error) {
	for _, path := range r.LookupPaths(packageName) {
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, "", fmt.Errorf("failed to read config file: %w", err)
		}

		cfg, err := parse(data, filepath.Ext(path))
		if err != nil {
			return nil, "", fmt.Errorf("%s: %w", path, err)
		}
		return cfg, path, nil
	}

	return nil, "", os.ErrNotExist
}

func parse(data []byte, ext string) (*types.SubmoduleConfig, error) {
	var cfg types.SubmoduleConfig

	if ext == ".json" {
		if err := json.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config as JSON: %w", err)
		}
		return &cfg, nil
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config as YAML: %w", err)
	}
	return &cfg, nil
}

// envOverrides is the fixed whitelist of fields settable from the
// environment. Scoped RELEASEKIT_<PACKAGE>_<FIELD> wins over global
// RELEASEKIT_<FIELD>.
var envOverrides = []struct {
	key   string
	apply func(cfg *types.SubmoduleConfig, value string)
}{
	{"NPM_PACKAGE_NAME", func(c *types.SubmoduleConfig, v string) { c.NpmPackageName = v }},
	{"DOCKER_IMAGE_NAME", func(c *types.SubmoduleConfig, v string) { c.DockerImageName = v }},
	{"VSCODE_EXTENSION_NAME", func(c *types.SubmoduleConfig, v string) { c.VSCodeExtensionName = v }},
	{"TEST_COMMAND", func(c *types.SubmoduleConfig, v string) { c.TestCommand = v }},
	{"BUILD_COMMAND", func(c *types.SubmoduleConfig, v string) { c.BuildCommand = v }},
}

func (r *Resolver) applyEnvOverrides(cfg *types.SubmoduleConfig) {
	scope := envScope(cfg.PackageName)

	for _, o := range envOverrides {
		if value, ok := r.rc.LookupEnv("RELEASEKIT_" + o.key); ok {
			o.apply(cfg, value)
		}
		if value, ok := r.rc.LookupEnv("RELEASEKIT_" + scope + "_" + o.key); ok {
			o.apply(cfg, value)
		}
	}
}

func envScope(packageName string) string {
	scope := strings.ToUpper(packageName)
	scope = strings.ReplaceAll(scope, "-", "_")
	scope = strings.ReplaceAll(scope, ".", "_")
	return scope
}
