package ai

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// DefaultContextTokens is the prompt budget assumed for unknown models.
const DefaultContextTokens = 8192

// ModelInfo carries context size and illustrative pricing for a model.
// Prices should be verified against the provider.
type ModelInfo struct {
	Name          string  `json:"Name" yaml:"name"`
	ContextTokens int     `json:"ContextTokens" yaml:"context_tokens"`
	InputPerK     float64 `json:"InputPerK" yaml:"input_per_k"`
	OutputPerK    float64 `json:"OutputPerK" yaml:"output_per_k"`
}

var (
	catalogMu sync.RWMutex
	models    = map[string]ModelInfo{
		"openai/gpt-4o-mini":                {ContextTokens: 128000, InputPerK: 0.00015, OutputPerK: 0.0006},
		"openai/gpt-4o":                     {ContextTokens: 128000, InputPerK: 0.005, OutputPerK: 0.015},
		"openai/gpt-4.1-mini":               {ContextTokens: 128000, InputPerK: 0.0004, OutputPerK: 0.0016},
		"gpt-4o-mini":                       {ContextTokens: 128000, InputPerK: 0.00015, OutputPerK: 0.0006},
		"gpt-4o":                            {ContextTokens: 128000, InputPerK: 0.005, OutputPerK: 0.015},
		"gpt-3.5-turbo":                     {ContextTokens: 16385, InputPerK: 0.0005, OutputPerK: 0.0015},
		"anthropic/claude-3.5-sonnet":       {ContextTokens: 200000, InputPerK: 0.003, OutputPerK: 0.015},
		"anthropic/claude-3-haiku":          {ContextTokens: 200000, InputPerK: 0.00025, OutputPerK: 0.00125},
		"google/gemini-1.5-flash":           {ContextTokens: 1000000, InputPerK: 0.0002, OutputPerK: 0.0008},
		"deepseek/deepseek-r1:free":         {ContextTokens: 128000},
		"meta-llama/llama-3.1-8b-instruct":  {ContextTokens: 131072},
		"meta-llama/llama-3.1-70b-instruct": {ContextTokens: 131072},
		"llama3:latest":                     {ContextTokens: 8192},
		"llama3.1:8b-instruct":              {ContextTokens: 8192},
		"mistral:7b-instruct":               {ContextTokens: 8192},
		"phi3:mini-128k-instruct":           {ContextTokens: 128000},
	}
)

func init() {
	for k, v := range models {
		v.Name = k
		models[k] = v
	}
}

// LookupModel returns ModelInfo and ok flag.
func LookupModel(name string) (ModelInfo, bool) {
	catalogMu.RLock()
	defer catalogMu.RUnlock()
	mi, ok := models[name]
	return mi, ok
}

// ContextBudget returns the model's context window, or DefaultContextTokens.
func ContextBudget(model string) int {
	if mi, ok := LookupModel(model); ok && mi.ContextTokens > 0 {
		return mi.ContextTokens
	}
	return DefaultContextTokens
}

// EstimateCostUSD estimates total cost in USD for given tokens using model pricing.
// If the model is unknown, returns 0 and ok=false.
func EstimateCostUSD(model string, promptTokens, completionTokens int) (float64, bool) {
	mi, ok := LookupModel(model)
	if !ok {
		return 0, false
	}
	inCost := (float64(promptTokens) / 1000.0) * mi.InputPerK
	outCost := (float64(completionTokens) / 1000.0) * mi.OutputPerK
	return inCost + outCost, true
}

// LoadCatalog reads a map of model name to ModelInfo from a .json, .yaml or
// .yml file.
func LoadCatalog(path string) (map[string]ModelInfo, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var m map[string]ModelInfo
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(b, &m)
	case ".json":
		err = json.Unmarshal(b, &m)
	default:
		return nil, fmt.Errorf("unsupported catalog format %q", filepath.Ext(path))
	}
	if err != nil {
		return nil, fmt.Errorf("parse catalog %s: %w", path, err)
	}
	for k, v := range m {
		if v.Name == "" {
			v.Name = k
			m[k] = v
		}
	}
	return m, nil
}

// MergeCatalog merges/overrides entries in the in-memory catalog.
func MergeCatalog(m map[string]ModelInfo) {
	catalogMu.Lock()
	defer catalogMu.Unlock()
	for k, v := range m {
		models[k] = v
	}
}

// Catalog returns the current catalog sorted by name.
func Catalog() []ModelInfo {
	catalogMu.RLock()
	defer catalogMu.RUnlock()
	out := make([]ModelInfo, 0, len(models))
	for _, v := range models {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
