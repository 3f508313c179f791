// Package config loads the engine's run configuration: provider
// selection, credential profiles, workspace, and iteration limits.
// Schema validation and CLI/REPL framing are out of scope — this
// package exists so the ambient configuration stack is real rather
// than stubbed.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"github.com/joho/godotenv"
	"github.com/tidwall/jsonc"
)

// Default limits per spec.md's Run API config enumeration.
const (
	DefaultMaxIterations = 25
	DefaultMaxRetries    = 3
	DefaultToolResultCap = 50_000
)

// CredentialProfile is one entry in RunConfig's ordered profile list,
// consumed by the failover chain and provider.BuildProviders.
type CredentialProfile struct {
	ID     string `json:"id"`
	APIKey string `json:"apiKey"`
}

// RunConfig is the configuration snapshot the run loop's setup phase
// consumes (spec.md §"Run API (inputs)").
type RunConfig struct {
	ProviderName  string               `json:"provider"`
	ModelID       string               `json:"model"`
	BaseURL       string               `json:"baseURL,omitempty"`
	Profiles      []CredentialProfile  `json:"profiles"`
	WorkspaceDir  string               `json:"workspaceDir"`
	MaxIterations int                  `json:"maxIterations"`
	MaxRetries    int                  `json:"maxRetries"`
	ToolResultCap int                  `json:"toolResultCap"`
}

// applyDefaults fills in zero-valued limits with spec defaults.
func (c *RunConfig) applyDefaults() {
	if c.MaxIterations <= 0 {
		c.MaxIterations = DefaultMaxIterations
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = DefaultMaxRetries
	}
	if c.ToolResultCap <= 0 {
		c.ToolResultCap = DefaultToolResultCap
	}
}

// Load reads a JSONC run-config file from path, loading a sibling
// .env file (if present) into the process environment first so
// ${VAR} references resolve, then merges environment overrides for
// provider API keys.
func Load(path string) (*RunConfig, error) {
	_ = godotenv.Load(filepath.Join(filepath.Dir(path), ".env"))

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	stripped := jsonc.ToJSON(data)
	interpolated := interpolateEnv(stripped)

	var cfg RunConfig
	if err := json.Unmarshal(interpolated, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}

	applyEnvProfileOverrides(&cfg)
	cfg.applyDefaults()
	return &cfg, nil
}

var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// interpolateEnv replaces ${VAR} occurrences with the corresponding
// environment variable value, leaving unset variables as an empty
// string.
func interpolateEnv(data []byte) []byte {
	return envVarPattern.ReplaceAllFunc(data, func(match []byte) []byte {
		name := envVarPattern.FindSubmatch(match)[1]
		return []byte(os.Getenv(string(name)))
	})
}

// applyEnvProfileOverrides fills in a profile's APIKey from the
// well-known environment variable for its provider when the config
// file left it blank.
func applyEnvProfileOverrides(cfg *RunConfig) {
	envVar := providerEnvVar(cfg.ProviderName)
	if envVar == "" {
		return
	}
	apiKey := os.Getenv(envVar)
	if apiKey == "" {
		return
	}
	for i := range cfg.Profiles {
		if cfg.Profiles[i].APIKey == "" {
			cfg.Profiles[i].APIKey = apiKey
		}
	}
}

func providerEnvVar(providerName string) string {
	switch providerName {
	case "anthropic":
		return "ANTHROPIC_API_KEY"
	case "openai":
		return "OPENAI_API_KEY"
	case "ark":
		return "ARK_API_KEY"
	default:
		return ""
	}
}

// Save writes cfg to path as indented JSON.
func Save(cfg *RunConfig, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}
