package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/tessro/quire/internal/rewind"
	"github.com/tessro/quire/internal/tail"
)

var rewindMax int

var rewindPauses = []time.Duration{
	2 * time.Second,
	5 * time.Second,
	10 * time.Second,
	30 * time.Second,
	time.Minute,
	2 * time.Minute,
	5 * time.Minute,
	15 * time.Minute,
	30 * time.Minute,
	time.Hour,
	6 * time.Hour,
	12 * time.Hour,
	24 * time.Hour,
	7 * 24 * time.Hour,
}

var rewindCmd = &cobra.Command{
	Use:   "rewind",
	Short: "Show how far playback rewinds after a pause",
	Long: `Print the smart rewind curve: how many seconds playback jumps back when
resuming after a pause of a given length.`,
	Args: cobra.NoArgs,
	RunE: runRewind,
}

func init() {
	rewindCmd.Flags().IntVar(&rewindMax, "max", 0, "rewind cap in seconds (default from config)")
	rootCmd.AddCommand(rewindCmd)
}

type rewindRow struct {
	PauseSeconds  float64 `json:"pause_seconds"`
	RewindSeconds int     `json:"rewind_seconds"`
}

func runRewind(cmd *cobra.Command, args []string) error {
	limit := rewindMax
	if limit == 0 {
		limit = cfg.Rewind.MaxSeconds
	}
	if limit <= 0 {
		return fmt.Errorf("--max must be positive")
	}

	if JSONOutput() {
		rows := make([]rewindRow, 0, len(rewindPauses))
		for _, p := range rewindPauses {
			rows = append(rows, rewindRow{PauseSeconds: p.Seconds(), RewindSeconds: rewind.Seconds(p, limit)})
		}
		return printJSON(cmd.OutOrStdout(), rows)
	}

	out := cmd.OutOrStdout()
	if cfg.Rewind.Disabled {
		fmt.Fprintln(out, "Smart rewind is disabled in the config; showing the curve anyway.")
	}
	t := NewTableWriter(out, "PAUSE", "REWIND")
	for _, p := range rewindPauses {
		t.Row(tail.PauseLength(p), fmt.Sprintf("%ds", rewind.Seconds(p, limit)))
	}
	t.Flush()
	return nil
}
