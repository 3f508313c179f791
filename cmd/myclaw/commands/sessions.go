package commands

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/myclaw-dev/myclaw/internal/config"
	"github.com/myclaw-dev/myclaw/internal/sessionindex"
	"github.com/myclaw-dev/myclaw/internal/transcript"
)

const defaultMaxSessionAgeMs = 30 * 24 * 60 * 60 * 1000 // 30 days

var gcMaxAgeDays int

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "Inspect and manage stored sessions",
}

var sessionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List known sessions",
	RunE:  runSessionsList,
}

var sessionsGCCmd = &cobra.Command{
	Use:   "gc",
	Short: "Prune sessions not updated recently",
	RunE:  runSessionsGC,
}

func init() {
	sessionsGCCmd.Flags().IntVar(&gcMaxAgeDays, "max-age-days", 30, "Remove sessions not updated in this many days")
	sessionsCmd.AddCommand(sessionsListCmd)
	sessionsCmd.AddCommand(sessionsGCCmd)
}

func runSessionsList(cmd *cobra.Command, args []string) error {
	idx := sessionindex.New(config.GetPaths().SessionsDir())
	entries, err := idx.Load()
	if err != nil {
		return fmt.Errorf("load session index: %w", err)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "SESSION\tMODEL\tTOKENS\tUPDATED")
	for key, e := range entries {
		fmt.Fprintf(w, "%s\t%s\t%d\t%d\n", key, e.Model, e.TotalTokens, e.UpdatedAt)
	}
	return w.Flush()
}

func runSessionsGC(cmd *cobra.Command, args []string) error {
	sessionsDir := config.GetPaths().SessionsDir()
	idx := sessionindex.New(sessionsDir)

	before, err := idx.Load()
	if err != nil {
		return fmt.Errorf("load session index: %w", err)
	}

	maxAgeMs := int64(gcMaxAgeDays) * 24 * 60 * 60 * 1000
	removed, err := idx.Prune(maxAgeMs)
	if err != nil {
		return fmt.Errorf("prune session index: %w", err)
	}

	after, err := idx.Load()
	if err != nil {
		return fmt.Errorf("reload session index: %w", err)
	}

	log := transcript.New(sessionsDir)
	for key := range before {
		if _, stillPresent := after[key]; !stillPresent {
			if err := log.Delete(key); err != nil {
				fmt.Fprintf(os.Stderr, "warning: failed to delete transcript for %s: %v\n", key, err)
			}
		}
	}

	fmt.Printf("removed %d session(s) older than %d day(s)\n", removed, gcMaxAgeDays)
	return nil
}
