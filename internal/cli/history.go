package cli

import (
	"fmt"
	"strconv"
	"time"

	"github.com/BenjaminSRussell/crawlaudit/internal/config"
	"github.com/BenjaminSRussell/crawlaudit/internal/storage"
	"github.com/nao1215/markdown"
	"github.com/spf13/cobra"
)

var (
	historyPath  string
	historyLimit int
)

var historyCmd = &cobra.Command{
	Use:   "history [runID]",
	Short: "Show past runs",
	Long:  `List recent runs from the history database, or show one run's counters and failed audits`,
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		h, err := storage.NewHistory(historyPath)
		if err != nil {
			return fmt.Errorf("failed to open history: %w", err)
		}
		defer h.Close()

		md := markdown.NewMarkdown(cmd.OutOrStdout())

		if len(args) == 1 {
			runID, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid run id %q: %w", args[0], err)
			}
			if err := describeRun(md, h, runID); err != nil {
				return err
			}
			return md.Build()
		}

		runs, err := h.ListRuns(historyLimit)
		if err != nil {
			return err
		}
		if len(runs) == 0 {
			md.PlainText("No runs recorded.")
			return md.Build()
		}

		rows := make([][]string, 0, len(runs))
		for _, r := range runs {
			rows = append(rows, []string{
				strconv.FormatInt(r.ID, 10),
				r.Seed,
				r.StartedAt.Local().Format(time.DateTime),
				r.Status,
				strconv.Itoa(r.Crawled),
				strconv.Itoa(r.Discovered),
				strconv.Itoa(r.Audited),
				strconv.Itoa(r.Failed),
			})
		}
		md.Table(markdown.TableSet{
			Header: []string{"Run", "Seed", "Started", "Status", "Crawled", "Discovered", "Audited", "Failed"},
			Rows:   rows,
		})
		return md.Build()
	},
}

func describeRun(md *markdown.Markdown, h *storage.History, runID int64) error {
	stats, err := h.GetStats(runID)
	if err != nil {
		return fmt.Errorf("run %d not found: %w", runID, err)
	}
	pages, err := h.CountPages(runID)
	if err != nil {
		return err
	}
	failed, err := h.FailedAudits(runID)
	if err != nil {
		return err
	}

	md.H2(fmt.Sprintf("Run %d", runID))
	md.Table(markdown.TableSet{
		Header: []string{"Metric", "Value"},
		Rows: [][]string{
			{"Status", stats.Status},
			{"Fetches", strconv.Itoa(pages)},
			{"Crawled", strconv.Itoa(stats.Crawled)},
			{"Discovered", strconv.Itoa(stats.Discovered)},
			{"Audited", strconv.Itoa(stats.Audited)},
			{"Failed", strconv.Itoa(stats.Failed)},
		},
	})
	if len(failed) > 0 {
		md.H3("Failed audits")
		md.BulletList(failed...)
	}
	return nil
}

func init() {
	historyCmd.Flags().StringVar(&historyPath, "history-db", config.DefaultHistoryPath(), "History database path")
	historyCmd.Flags().IntVar(&historyLimit, "limit", 20, "Number of runs to list")
}
