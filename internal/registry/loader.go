// Package registry builds the router's local model table.
package registry

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"modelkit/internal/common/fsutil"
	"modelkit/internal/config"
	"modelkit/pkg/types"
)

const (
	defaultBackend  = "llama.cpp-like-api"
	defaultLocalAPI = "http://localhost:8083/v1/chat/completions"
)

// Defaults returns the built-in local model table (paths not yet expanded).
func Defaults() []types.LocalModel {
	return []types.LocalModel{
		{
			Name:    "qwen3-1.7b-quantized",
			Path:    "~/models/quantized/qwen3-1.7b-quantized",
			Backend: defaultBackend,
			APIURL:  defaultLocalAPI,
		},
	}
}

// Build merges the built-in table, a directory scan and configured entries,
// in that order of increasing precedence. Paths are '~'-expanded and the
// result is sorted by name.
func Build(cfg config.RouterConfig) ([]types.LocalModel, error) {
	byName := map[string]types.LocalModel{}
	if !cfg.DisableDefaults {
		for _, m := range Defaults() {
			byName[m.Name] = m
		}
	}
	if cfg.ScanDir != "" {
		scanned, err := LoadDir(cfg.ScanDir)
		if err != nil {
			return nil, err
		}
		for _, m := range scanned {
			byName[m.Name] = m
		}
	}
	for _, m := range cfg.LocalModels {
		if m.Name == "" {
			return nil, fmt.Errorf("local model with empty name (path %q)", m.Path)
		}
		if m.Backend == "" {
			m.Backend = defaultBackend
		}
		byName[m.Name] = m
	}

	models := make([]types.LocalModel, 0, len(byName))
	for _, m := range byName {
		p, err := fsutil.ExpandHome(m.Path)
		if err != nil {
			return nil, err
		}
		m.Path = p
		models = append(models, m)
	}
	sort.Slice(models, func(i, j int) bool { return models[i].Name < models[j].Name })
	return models, nil
}

// LoadDir scans dir for model directories (the layout `quantize` writes to).
// Each subdirectory becomes a local model named after it. Files are ignored.
// A missing dir yields an empty table.
func LoadDir(dir string) ([]types.LocalModel, error) {
	base, err := fsutil.ExpandHome(dir)
	if err != nil {
		return nil, err
	}
	abs, err := filepath.Abs(base)
	if err != nil {
		return nil, fmt.Errorf("abs path: %w", err)
	}
	entries, err := os.ReadDir(abs)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read dir: %w", err)
	}
	var models []types.LocalModel
	for _, e := range entries {
		if !e.IsDir() { continue }
		name := e.Name()
		if name[0] == '.' { continue }
		models = append(models, types.LocalModel{
			Name:    name,
			Path:    filepath.Join(abs, name),
			Backend: defaultBackend,
			APIURL:  defaultLocalAPI,
		})
	}
	return models, nil
}

// Status annotates each model with whether its path exists right now.
func Status(models []types.LocalModel) []types.LocalModelStatus {
	out := make([]types.LocalModelStatus, 0, len(models))
	for _, m := range models {
		out = append(out, types.LocalModelStatus{LocalModel: m, Available: fsutil.PathExists(m.Path)})
	}
	return out
}
