package main

import (
	"fmt"
	"io"
	"os"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/evdata-cli/internal/model"
	"github.com/sells-group/evdata-cli/internal/monitoring"
	"github.com/sells-group/evdata-cli/internal/store"
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Inspect backfill run history",
	Long:  "Commands for listing, viewing, and summarizing backfill runs recorded in the run ledger.",
}

// -- runs list --

var runsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List backfill runs",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		status, _ := cmd.Flags().GetString("status")
		limit, _ := cmd.Flags().GetInt("limit")

		runs, err := st.ListRuns(ctx, store.RunFilter{
			Status: model.RunStatus(status),
			Limit:  limit,
		})
		if err != nil {
			return eris.Wrap(err, "runs list")
		}

		if len(runs) == 0 {
			fmt.Fprintln(os.Stderr, "No runs found.")
			return nil
		}

		formatRunsList(cmd.OutOrStdout(), runs)
		return nil
	},
}

// -- runs show --

var runsShowCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Show full details of a run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		run, err := st.GetRun(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "runs show")
		}
		counts, err := st.OutcomeCounts(ctx, run.ID)
		if err != nil {
			return eris.Wrap(err, "runs show")
		}

		return writeIndented(cmd.OutOrStdout(), runDetail{Run: run, Outcomes: counts})
	},
}

type runDetail struct {
	*model.Run
	Outcomes map[model.OutcomeStage]int `json:"outcomes"`
}

// -- runs stats --

var runsStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show aggregate run statistics and alert status",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		since, _ := cmd.Flags().GetDuration("since")
		send, _ := cmd.Flags().GetBool("send-alerts")

		mc := cfg.Monitoring
		if since > 0 {
			mc.LookbackWindowHours = int(since / time.Hour)
		}

		snap, err := monitoring.NewCollector(st).Collect(ctx, mc.LookbackWindowHours)
		if err != nil {
			return eris.Wrap(err, "runs stats")
		}
		formatRunSnapshot(cmd.OutOrStdout(), snap)

		alerts := checkAlerts(ctx, st, mc, send)
		formatAlerts(cmd.OutOrStdout(), alerts)
		return nil
	},
}

func init() {
	runsListCmd.Flags().String("status", "", "filter by run status (running, complete, interrupted, failed)")
	runsListCmd.Flags().Int("limit", 50, "max number of runs to display")

	runsStatsCmd.Flags().Duration("since", 24*time.Hour, "time window for stats (e.g. 24h, 72h, 168h)")
	runsStatsCmd.Flags().Bool("send-alerts", false, "post breached thresholds to monitoring.webhook_url")

	runsCmd.AddCommand(runsListCmd)
	runsCmd.AddCommand(runsShowCmd)
	runsCmd.AddCommand(runsStatsCmd)
	rootCmd.AddCommand(runsCmd)
}

// formatRunsList writes a tabular list of runs to w.
func formatRunsList(out io.Writer, runs []model.Run) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tPAGES\tSTATUS\tSUBMITTED\tOCR_COST\tCREATED\tDURATION")
	_, _ = fmt.Fprintln(w, "--\t-----\t------\t---------\t--------\t-------\t--------")

	for _, r := range runs {
		dur := r.UpdatedAt.Sub(r.CreatedAt).Round(time.Second).String()

		pages := fmt.Sprintf("%d-%d", r.Options.StartPage, r.Options.EndPage)
		if r.Options.Resumed {
			pages += " (resumed)"
		}

		submitted, ocrCost := "-", "-"
		if r.Summary != nil {
			submitted = fmt.Sprintf("%d", r.Summary.Submitted)
			if r.Summary.DryRun {
				submitted = fmt.Sprintf("0 (dry run, %d withheld)", r.Summary.WouldSubmit)
			}
			ocrCost = fmt.Sprintf("$%.4f", r.Summary.OCRCost)
		}

		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			truncateID(r.ID),
			pages,
			r.Status,
			submitted,
			ocrCost,
			r.CreatedAt.Format("2006-01-02 15:04"),
			dur,
		)
	}
	_ = w.Flush()
}

// formatRunSnapshot writes aggregate stats to w.
func formatRunSnapshot(out io.Writer, s *monitoring.RunSnapshot) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "Window:\tlast %dh\n", s.LookbackHours)
	_, _ = fmt.Fprintf(w, "Total runs:\t%d\n", s.RunsTotal)
	_, _ = fmt.Fprintf(w, "Complete:\t%d\n", s.RunsComplete)
	_, _ = fmt.Fprintf(w, "Failed:\t%d\n", s.RunsFailed)
	_, _ = fmt.Fprintf(w, "Interrupted:\t%d\n", s.RunsInterrupted)
	_, _ = fmt.Fprintf(w, "Running:\t%d\n", s.RunsRunning)
	_, _ = fmt.Fprintf(w, "Articles seen:\t%d\n", s.ArticlesSeen)
	_, _ = fmt.Fprintf(w, "Submitted:\t%d\n", s.Submitted)
	_, _ = fmt.Fprintf(w, "Article failures:\t%d (%.1f%%)\n", s.ArticleFailures, s.ArticleFailRate*100)
	_, _ = fmt.Fprintf(w, "OCR calls:\t%d queued, %d succeeded\n", s.OCRQueued, s.OCRSucceeded)
	_, _ = fmt.Fprintf(w, "OCR cost:\t$%.4f (%d tokens)\n", s.OCRCostUSD, s.OCRTokens)
	_ = w.Flush()
}

func formatAlerts(out io.Writer, alerts []monitoring.Alert) {
	if len(alerts) == 0 {
		_, _ = fmt.Fprintln(out, "\nNo alerts.")
		return
	}
	sort.Slice(alerts, func(i, j int) bool { return alerts[i].Type < alerts[j].Type })
	_, _ = fmt.Fprintln(out, "\nAlerts:")
	for _, a := range alerts {
		_, _ = fmt.Fprintf(out, "  [%s] %s\n", a.Severity, a.Message)
	}
}

// truncateID returns the first 8 characters of a UUID for compact display.
func truncateID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
