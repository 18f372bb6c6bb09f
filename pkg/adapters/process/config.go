package process

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ProcessConfig represents a command that implements a node or a branch decision.
type ProcessConfig struct {
	Name        string            `yaml:"name" json:"name"`
	Command     string            `yaml:"command" json:"command"`
	Args        []string          `yaml:"args" json:"args"`
	Environment map[string]string `yaml:"env" json:"env"`
	Description string            `yaml:"description" json:"description"`
	Timeout     time.Duration     `yaml:"timeout" json:"timeout"`
}

// ConfigFile represents the structure of tools.yaml
type ConfigFile struct {
	Tools []ProcessConfig `yaml:"tools" json:"tools"`
}

// LoadTools reads a configuration file (YAML or JSON) and returns a map of tool names to configs.
// A missing file yields an empty map.
func LoadTools(path string) (map[string]ProcessConfig, error) {
	var cfg ConfigFile
	found, err := decodeFile(path, &cfg)
	if err != nil || !found {
		return map[string]ProcessConfig{}, err
	}
	return indexTools(cfg.Tools), nil
}

func indexTools(tools []ProcessConfig) map[string]ProcessConfig {
	out := make(map[string]ProcessConfig, len(tools))
	for _, tool := range tools {
		if tool.Name == "" {
			continue
		}
		out[tool.Name] = tool
	}
	return out
}

// decodeFile decodes a YAML or JSON file into v, choosing the format by extension.
// It reports false without error when the file does not exist.
func decodeFile(path string, v any) (bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to read %s: %w", path, err)
	}

	if strings.ToLower(filepath.Ext(path)) == ".json" {
		if err := json.Unmarshal(data, v); err != nil {
			return false, fmt.Errorf("failed to parse %s: %w", path, err)
		}
		return true, nil
	}
	if err := yaml.Unmarshal(data, v); err != nil {
		return false, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return true, nil
}
