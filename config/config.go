package config

import (
	"encoding/json"
	"os"
	"path/filepath"
)

// Config is the root configuration structure for git-revs.
type Config struct {
	// PublicRefs are glob patterns (without the "refs/" prefix) for refs
	// whose ancestors count as public in draft()/public().
	PublicRefs []string `json:"publicRefs"`

	// Aliases maps revset alias names to expression text. $1, $2… stand
	// for call arguments. Merged with the repository's revsetalias
	// git-config section.
	Aliases map[string]string `json:"aliases"`

	// Output holds CLI output options.
	Output OutputConfig `json:"output"`
}

// OutputConfig holds output formatting options.
type OutputConfig struct {
	Format string `json:"format"` // "hash" or "oneline"
	Color  string `json:"color"`  // "auto", "always", "never"
}

// DefaultConfig returns a configuration with default values.
func DefaultConfig() *Config {
	return &Config{
		PublicRefs: []string{"remotes/**", "tags/**"},
		Aliases:    map[string]string{},
		Output: OutputConfig{
			Format: "hash",
			Color:  "auto",
		},
	}
}

// LoadConfig loads configuration from a file, merging with defaults. An
// empty path falls back to .gitrevs.json in the working directory, then in
// the home directory; a missing file yields the defaults.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path == "" {
		candidates := []string{".gitrevs.json"}
		if home, err := os.UserHomeDir(); err == nil && home != "" {
			candidates = append(candidates, filepath.Join(home, ".gitrevs.json"))
		} else if envHome := os.Getenv("HOME"); envHome != "" {
			candidates = append(candidates, filepath.Join(envHome, ".gitrevs.json"))
		}
		for _, p := range candidates {
			if _, err := os.Stat(p); err == nil {
				path = p
				break
			}
		}
	}

	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, err
	}

	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// SaveConfig saves configuration to a file.
func SaveConfig(cfg *Config, path string) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
