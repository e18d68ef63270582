package fanctl

import (
	"errors"
	"fmt"
	"io"
	"slices"
	"time"

	"github.com/mikesmitty/fanctl/pkg/config"
	"github.com/mikesmitty/fanctl/pkg/csvlog"
	"github.com/mikesmitty/fanctl/pkg/fancontrol"
	"github.com/mikesmitty/fanctl/pkg/stats"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const dateLayout = "2006-01-02"

var errNoLog = errors.New("no csv log")

// Report prints averages and peaks of one day's CSV logs.
func Report(cfgFile *string) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		setupLogging(viper.GetBool("debug"), "")

		day := time.Now()
		if date, _ := cmd.Flags().GetString("date"); date != "" {
			var err error
			day, err = time.ParseInLocation(dateLayout, date, time.Local)
			if err != nil {
				return fmt.Errorf("date %q: %w", date, fancontrol.ErrInvalidArgument)
			}
		}
		cmd.SilenceUsage = true

		fs := afero.NewOsFs()
		cfg, err := config.Load(viper.GetViper(), fs, *cfgFile)
		if err != nil {
			return err
		}
		if cfg.CSVDir == "" {
			return fmt.Errorf("csv-dir is not set: %w", errNoLog)
		}
		return writeReport(cmd.OutOrStdout(), fs, cfg.CSVDir, cfg.Delimiter(), day)
	}
}

func writeReport(w io.Writer, fs afero.Fs, dir string, delimiter rune, day time.Time) error {
	files, err := csvlog.Files(fs, dir, day)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return fmt.Errorf("%s in %s: %w", day.Format(dateLayout), dir, errNoLog)
	}

	var rows []csvlog.Row
	for _, f := range files {
		r, err := csvlog.LoadFile(fs, f, delimiter)
		if err != nil {
			return err
		}
		rows = append(rows, r...)
	}

	n := len(rows)
	control, speed, cpu := stats.NewWindow(n), stats.NewWindow(n), stats.NewWindow(n)
	sensors := make(map[string]*stats.Window)
	var order []string
	for _, r := range rows {
		if r.HasControl {
			control.Add(r.ControlTemp)
		}
		speed.Add(r.SpeedPercent)
		if r.HasCPU {
			cpu.Add(r.CPUUsage)
		}
		for name, v := range r.Temps {
			if _, ok := sensors[name]; !ok {
				sensors[name] = stats.NewWindow(n)
				order = append(order, name)
			}
			sensors[name].Add(v)
		}
	}

	slices.Sort(order)

	fmt.Fprintf(w, "%s: %d records in %d files\n", day.Format(dateLayout), n, len(files))
	line := func(name, unit string, win *stats.Window) {
		if win.Len() == 0 {
			fmt.Fprintf(w, "%-12s n/a\n", name)
			return
		}
		fmt.Fprintf(w, "%-12s avg %5.1f%s  max %5.1f%s  stddev %4.1f  (%d)\n",
			name, win.Mean(), unit, win.Max(), unit, win.StdDev(), win.Len())
	}
	line("control", "°C", control)
	for _, name := range order {
		line(name, "°C", sensors[name])
	}
	line("fan", "%", speed)
	line("cpu", "%", cpu)
	return nil
}
