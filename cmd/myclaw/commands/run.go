package commands

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/myclaw-dev/myclaw/internal/config"
	"github.com/myclaw-dev/myclaw/internal/event"
	"github.com/myclaw-dev/myclaw/internal/logging"
	"github.com/myclaw-dev/myclaw/internal/provider"
	"github.com/myclaw-dev/myclaw/internal/runloop"
	"github.com/myclaw-dev/myclaw/internal/sessionindex"
	"github.com/myclaw-dev/myclaw/internal/sessionkey"
)

var (
	runModel      string
	runSessionKey string
	runContinue   bool
	runWorkspace  string
	runMaxIter    int
	runMaxRetries int
)

var runCmd = &cobra.Command{
	Use:   "run [message...]",
	Short: "Run one turn of the agent loop",
	Long: `Run a single turn of the agent loop against the configured
provider, replaying the session transcript for the given session key.

Examples:
  myclaw run "Fix the bug in main.go"
  myclaw run --model anthropic/claude-sonnet-4-20250514 "Explain this code"
  myclaw run --continue "keep going"
  myclaw run --session agent:main:channel:cli:account:local:peer:direct:me "hi"`,
	RunE: runOnce,
}

func init() {
	runCmd.Flags().StringVarP(&runModel, "model", "m", "", "Model to use (provider/model format), overriding the config file")
	runCmd.Flags().StringVarP(&runSessionKey, "session", "s", "", "Explicit session key to run against")
	runCmd.Flags().BoolVarP(&runContinue, "continue", "c", false, "Continue the most recently updated session")
	runCmd.Flags().StringVar(&runWorkspace, "workspace", "", "Workspace directory, overriding the config file")
	runCmd.Flags().IntVar(&runMaxIter, "max-iterations", 0, "Override the configured max iterations")
	runCmd.Flags().IntVar(&runMaxRetries, "max-retries", 0, "Override the configured max retries")
}

func runOnce(cmd *cobra.Command, args []string) error {
	message := strings.Join(args, " ")
	if message == "" {
		return fmt.Errorf("message required. Usage: myclaw run \"your message\"")
	}

	paths := config.GetPaths()
	if err := paths.EnsurePaths(); err != nil {
		return fmt.Errorf("ensure state paths: %w", err)
	}

	cfg, err := config.Load(resolveConfigPath())
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	modelOverride := runModel
	if modelOverride == "" {
		modelOverride = GetGlobalModel()
	}
	if modelOverride != "" {
		if provName, modelID, ok := strings.Cut(modelOverride, "/"); ok {
			cfg.ProviderName = provName
			cfg.ModelID = modelID
		} else {
			cfg.ModelID = modelOverride
		}
	}
	if runWorkspace != "" {
		cfg.WorkspaceDir = runWorkspace
	}
	if cfg.WorkspaceDir == "" {
		cfg.WorkspaceDir = paths.WorkspaceDir()
	}
	if runMaxIter > 0 {
		cfg.MaxIterations = runMaxIter
	}
	if runMaxRetries > 0 {
		cfg.MaxRetries = runMaxRetries
	}

	key, err := resolveSessionKey(paths.SessionsDir())
	if err != nil {
		return err
	}

	ctx := context.Background()
	specs := make([]provider.ProfileSpec, len(cfg.Profiles))
	for i, p := range cfg.Profiles {
		specs[i] = provider.ProfileSpec{
			ID:      p.ID,
			Kind:    cfg.ProviderName,
			APIKey:  p.APIKey,
			BaseURL: cfg.BaseURL,
			Model:   cfg.ModelID,
		}
	}
	registry, profiles, err := provider.BuildProviders(ctx, specs)
	if err != nil {
		return fmt.Errorf("build providers: %w", err)
	}

	engine := runloop.New(paths.SessionsDir())

	onEvent := func(ev event.Event) {
		switch d := ev.Data.(type) {
		case event.ToolStartData:
			fmt.Fprintf(os.Stderr, "  [tool] %s\n", d.ToolName)
		case event.RetryData:
			logging.Warn().Str("profile", d.ProfileID).Str("reason", d.Reason).Msg("retrying after provider failure")
		case event.CompactionData:
			logging.Info().Int("before", d.OldCount).Int("after", d.NewCount).Msg("compacted transcript")
		}
	}

	result, err := engine.Run(ctx, cfg, registry, profiles, key, message, onEvent)
	if err != nil {
		return fmt.Errorf("run: %w", err)
	}

	fmt.Println(result.Reply)
	logging.Info().
		Int("iterations", result.Iterations).
		Int("totalTokens", result.Usage.TotalTokens).
		Bool("maxIterationsReached", result.MaxIterationsReached).
		Msg("run complete")
	return nil
}

// resolveSessionKey returns an explicit --session key, the most
// recently updated session when --continue is set, or a fresh key for
// the local CLI user.
func resolveSessionKey(sessionsDir string) (string, error) {
	if runSessionKey != "" {
		return runSessionKey, nil
	}

	defaultKey := sessionkey.Build(sessionkey.Params{
		Agent:   "main",
		Channel: "cli",
		Account: "local",
		Peer:    sessionkey.PeerDirect,
		PeerID:  cliUser(),
	})

	if !runContinue {
		return defaultKey, nil
	}

	entries, err := loadMostRecentSession(sessionsDir)
	if err != nil {
		return "", err
	}
	if entries == "" {
		return defaultKey, nil
	}
	return entries, nil
}

func cliUser() string {
	if u := os.Getenv("USER"); u != "" {
		return u
	}
	return "cli"
}

func loadMostRecentSession(sessionsDir string) (string, error) {
	idx := sessionindex.New(sessionsDir)
	keys, err := idx.List()
	if err != nil {
		return "", fmt.Errorf("list sessions: %w", err)
	}
	if len(keys) == 0 {
		return "", nil
	}

	entries, err := idx.Load()
	if err != nil {
		return "", fmt.Errorf("load session index: %w", err)
	}

	var best string
	var bestTs int64
	for _, k := range keys {
		e := entries[k]
		if best == "" || e.UpdatedAt > bestTs {
			best = k
			bestTs = e.UpdatedAt
		}
	}
	return best, nil
}
