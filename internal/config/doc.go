// Package config provides configuration loading and path management
// for the run loop's engine configuration.
//
// # Configuration Loading
//
// Load reads a single JSON or JSONC run-config file (comments are
// stripped with tidwall/jsonc before parsing) describing the
// provider, model, credential profiles, workspace, and iteration
// limits the run loop consumes. A sibling .env file, if present, is
// loaded into the process environment first via joho/godotenv so
// ${VAR} references in the config resolve.
//
// # Variable Interpolation
//
// Configuration files support ${VAR_NAME} interpolation: occurrences
// are replaced with the named environment variable's value before the
// JSON is parsed, leaving unset variables as an empty string.
//
// A profile whose apiKey is left blank in the config file is filled in
// from the provider's well-known environment variable (e.g.
// ANTHROPIC_API_KEY for the anthropic provider) if set.
//
// # Defaults
//
// MaxIterations, MaxRetries, and ToolResultCap fall back to
// DefaultMaxIterations, DefaultMaxRetries, and DefaultToolResultCap
// respectively when left at zero.
//
// # Path Management
//
// Paths resolves the standard on-disk locations for myclaw's
// persistent state:
//   - State: $MYCLAW_STATE_DIR, falling back to ~/.myclaw
//   - Config: $XDG_CONFIG_HOME/myclaw
//   - Cache: $XDG_CACHE_HOME/myclaw
//
// SessionsDir, WorkspaceDir, and LogDir are derived subdirectories of
// State. On Windows the Config and Cache paths are adapted to use
// APPDATA.
//
// # Usage Example
//
//	paths := config.GetPaths()
//	if err := paths.EnsurePaths(); err != nil {
//	    log.Fatal(err)
//	}
//
//	cfg, err := config.Load(config.GlobalConfigPath())
//	if err != nil {
//	    log.Fatal(err)
//	}
package config
