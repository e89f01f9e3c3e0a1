// Package config handles loading and managing krscope configuration.
package config

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/krscope/krscope/pkg/graph"
	"github.com/krscope/krscope/pkg/scoring"
)

// Output formats.
const (
	FormatText     = "text"
	FormatJSON     = "json"
	FormatMarkdown = "markdown"
)

// Config is the top-level configuration for krscope.
type Config struct {
	Scoring ScoringConfig `yaml:"scoring"`
	Output  OutputConfig  `yaml:"output"`
}

// ScoringConfig controls the scoring engine.
type ScoringConfig struct {
	Tolerance      float64            `yaml:"tolerance"`
	MaxIterations  int                `yaml:"max_iterations"`
	Weights        map[string]float64 `yaml:"weights"`         // edge kind -> weight
	OutcomeWeights map[string]float64 `yaml:"outcome_weights"` // edge kind -> weight into Outcome nodes
}

// OutputConfig controls CLI rendering.
type OutputConfig struct {
	Format string `yaml:"format"` // text | json | markdown
	Top    int    `yaml:"top"`    // contributors shown, 0 = all
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Scoring: ScoringConfig{
			Tolerance:      scoring.DefaultTolerance,
			MaxIterations:  scoring.DefaultMaxIterations,
			Weights:        map[string]float64{},
			OutcomeWeights: map[string]float64{},
		},
		Output: OutputConfig{
			Format: FormatText,
			Top:    10,
		},
	}
}

// Load reads a config file from the given path.
// If the file does not exist, it returns the default config.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("reading config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config %s: %w", path, err)
	}

	return cfg, nil
}

// Validate rejects settings the engine or renderers cannot use.
func (c *Config) Validate() error {
	s := c.Scoring
	if math.IsNaN(s.Tolerance) || math.IsInf(s.Tolerance, 0) || s.Tolerance < 0 {
		return fmt.Errorf("scoring.tolerance must be a non-negative number, got %v", s.Tolerance)
	}
	if s.MaxIterations < 0 {
		return fmt.Errorf("scoring.max_iterations must not be negative, got %d", s.MaxIterations)
	}
	sections := []struct {
		name string
		m    map[string]float64
	}{
		{"weights", s.Weights},
		{"outcome_weights", s.OutcomeWeights},
	}
	for _, sec := range sections {
		for _, name := range sortedKeys(sec.m) {
			if !parseKind(name).Known() {
				return fmt.Errorf("scoring.%s: unknown edge kind %q", sec.name, name)
			}
			if v := sec.m[name]; math.IsNaN(v) || math.IsInf(v, 0) {
				return fmt.Errorf("scoring.%s.%s must be finite", sec.name, name)
			}
		}
	}
	switch c.Output.Format {
	case "", FormatText, FormatJSON, FormatMarkdown:
	default:
		return fmt.Errorf("output.format must be %q, %q or %q, got %q", FormatText, FormatJSON, FormatMarkdown, c.Output.Format)
	}
	if c.Output.Top < 0 {
		return fmt.Errorf("output.top must not be negative, got %d", c.Output.Top)
	}
	return nil
}

// Weights merges configured overrides into the default propagation table.
// Overrides change the weight of a kind; its basis is kept.
func (c *Config) Weights() scoring.Weights {
	w := scoring.Defaults()
	for name, v := range c.Scoring.Weights {
		k := parseKind(name)
		ew, ok := w.Kinds[k]
		if !ok {
			ew.Basis = scoring.BasisTotal
		}
		ew.Weight = v
		w.Kinds[k] = ew
	}
	if len(c.Scoring.OutcomeWeights) > 0 {
		overrides := w.TargetOverrides[graph.NodeOutcome]
		if overrides == nil {
			overrides = map[graph.EdgeKind]float64{}
			w.TargetOverrides[graph.NodeOutcome] = overrides
		}
		for name, v := range c.Scoring.OutcomeWeights {
			overrides[parseKind(name)] = v
		}
	}
	return w
}

// EngineOptions translates the scoring section into engine options.
func (c *Config) EngineOptions() []scoring.Option {
	return []scoring.Option{
		scoring.WithWeights(c.Weights()),
		scoring.WithTolerance(c.Scoring.Tolerance),
		scoring.WithMaxIterations(c.Scoring.MaxIterations),
	}
}

// FindConfigFile looks for .krscope/config.yaml in the given directory
// and its parents, returning the path if found, or "" if not.
func FindConfigFile(dir string) string {
	for {
		candidate := filepath.Join(dir, ".krscope", "config.yaml")
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return ""
}

// CacheDir returns the cache directory for a given workspace path.
// Uses ~/.cache/krscope/<slug>/ to avoid polluting the workspace.
func CacheDir(workspacePath string) string {
	home, err := os.UserHomeDir()
	if err != nil {
		// Fallback to temp dir if HOME isn't available
		home = os.TempDir()
	}
	return filepath.Join(home, ".cache", "krscope", workspaceSlug(workspacePath))
}

// ResultDir returns where saved score results of a workspace live.
func ResultDir(workspacePath string) string {
	return filepath.Join(CacheDir(workspacePath), "results")
}

// workspaceSlug creates a filesystem-safe identifier from a workspace path.
// Uses the last two path components (e.g., "user_plans" from "/home/user/plans").
func workspaceSlug(workspacePath string) string {
	abs, err := filepath.Abs(workspacePath)
	if err != nil {
		abs = workspacePath
	}
	dir := filepath.Base(filepath.Dir(abs))
	base := filepath.Base(abs)
	return dir + "_" + base
}

// FindWorkspaceRoot walks up from dir looking for a .krscope directory or a
// git checkout.
func FindWorkspaceRoot(dir string) (string, error) {
	for {
		for _, marker := range []string{".krscope", ".git"} {
			if _, err := os.Stat(filepath.Join(dir, marker)); err == nil {
				return dir, nil
			}
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", fmt.Errorf("no krscope workspace found (looked for .krscope or .git)")
}

// parseKind applies the same canonicalisation as graph documents.
func parseKind(name string) graph.EdgeKind {
	var k graph.EdgeKind
	_ = k.UnmarshalText([]byte(name))
	return k
}

func sortedKeys(m map[string]float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
