package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/krscope/krscope/pkg/config"
	"github.com/krscope/krscope/pkg/scoring"
	"github.com/krscope/krscope/pkg/surface"
)

// savedResult is the on-disk form of a score result written by --save.
type savedResult struct {
	*scoring.ScoreResult
	Graph    string `json:"graph"`
	ScoredAt string `json:"scored_at"`
}

// loadConfig reads the config named by --config, or discovers one walking up
// from the working directory. A broken discovered file falls back to defaults
// with a warning; a broken explicit file is an error.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	if path != "" {
		cfg, err := config.Load(path)
		if err != nil {
			return nil, fmt.Errorf("loading config: %w", err)
		}
		return cfg, nil
	}

	cwd, err := os.Getwd()
	if err != nil {
		return config.DefaultConfig(), nil
	}
	cfgFile := config.FindConfigFile(cwd)
	if cfgFile == "" {
		return config.DefaultConfig(), nil
	}
	cfg, err := config.Load(cfgFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to load config: %v\n", err)
		return config.DefaultConfig(), nil
	}
	return cfg, nil
}

// renderer picks the output renderer from the flag, then the config.
func renderer(outputFmt string, cfg *config.Config) (surface.Renderer, error) {
	return surface.ForFormat(firstNonEmpty(outputFmt, cfg.Output.Format))
}

// resolveWorkspace finds the workspace a graph file belongs to, falling back
// to the file's directory outside any workspace.
func resolveWorkspace(graphPath string) string {
	abs, err := filepath.Abs(graphPath)
	if err != nil {
		abs = graphPath
	}
	dir := filepath.Dir(abs)
	if root, err := config.FindWorkspaceRoot(dir); err == nil {
		return root
	}
	return dir
}

// saveScoreResult persists a score result to the workspace result directory
// and returns the written path.
func saveScoreResult(graphPath string, result *scoring.ScoreResult) (string, error) {
	resultDir := config.ResultDir(resolveWorkspace(graphPath))
	if err := os.MkdirAll(resultDir, 0o755); err != nil {
		return "", fmt.Errorf("creating result dir: %w", err)
	}

	abs, err := filepath.Abs(graphPath)
	if err != nil {
		abs = graphPath
	}
	data, err := json.MarshalIndent(savedResult{
		ScoreResult: result,
		Graph:       abs,
		ScoredAt:    time.Now().UTC().Format(time.RFC3339),
	}, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshaling score result: %w", err)
	}

	name := strings.TrimSuffix(filepath.Base(graphPath), filepath.Ext(graphPath)) + ".json"
	path := filepath.Join(resultDir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("writing score result: %w", err)
	}
	return path, nil
}

// loadScoreResult reads a result written by saveScoreResult or a plain
// ScoreResult document.
func loadScoreResult(path string) (*scoring.ScoreResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading score result: %w", err)
	}
	var saved savedResult
	if err := json.Unmarshal(data, &saved); err != nil {
		return nil, fmt.Errorf("parsing score result %s: %w", path, err)
	}
	if saved.ScoreResult == nil || saved.Explain == nil {
		return nil, fmt.Errorf("parsing score result %s: no explain section", path)
	}
	return saved.ScoreResult, nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
