package main

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/yairfalse/kartta/config"
	"github.com/yairfalse/kartta/runlog"
)

var (
	historyConfigPath string
	historyDir        string
	historyLimit      int
)

// historyCmd represents the history command
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show past run summaries",
	Long: `List summaries of past runs recorded in the local run log:
when they ran, how many rows each report got, how the lookup cache
performed, and whether any source fetch degraded.`,
	Example: `  kartta history              # last 10 runs
  kartta history --limit 50   # more
  kartta history --dir out    # explicit run log location`,
	RunE: runHistory,
}

func init() {
	rootCmd.AddCommand(historyCmd)

	historyCmd.Flags().StringVarP(&historyConfigPath, "config", "c", "", "Config file (YAML)")
	historyCmd.Flags().StringVarP(&historyDir, "dir", "d", "", "Run log directory")
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 10, "Number of runs to show")
}

func runHistory(cmd *cobra.Command, args []string) error {
	dir := historyDir
	if dir == "" {
		cfg := config.Default()
		if historyConfigPath != "" {
			loaded, err := config.Load(historyConfigPath)
			if err != nil {
				return err
			}
			cfg = loaded
		}
		dir = cfg.Output.RunLogDir
	}

	store, err := runlog.Open(dir)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	records, err := store.List(historyLimit)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		fmt.Println("No runs recorded yet.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "STARTED\tAPP\tMONTH\tRESOURCES\tSERVICES\tMATCHED\tNR CALLS\tDEGRADED")
	for _, rec := range records {
		degraded := strings.Join(rec.DegradedFetches, ",")
		if degraded == "" {
			degraded = "-"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%d\t%d\t%s\n",
			rec.StartedAt.Format("2006-01-02 15:04"),
			rec.AppCode,
			rec.Month,
			rec.ResourceRows,
			rec.ServiceRows,
			rec.LookupMatches,
			rec.LookupCalls,
			degraded,
		)
	}
	return w.Flush()
}
