package cmd

import (
	"github.com/mikesmitty/fanctl/pkg/fanctl"
	"github.com/spf13/cobra"
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Summarize a day's CSV log",
	Long: `report reads the CSV logs written for one day and prints the average and
peak of the control temperature, every sensor, the fan speed and the CPU usage.`,
	Args: cobra.NoArgs,
	RunE: fanctl.Report(&cfgFile),
}

func init() {
	rootCmd.AddCommand(reportCmd)

	reportCmd.Flags().String("date", "", "day to summarize as YYYY-MM-DD (default today)")
}
