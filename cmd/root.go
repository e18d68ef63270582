/*
Copyright © 2024 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"os"
	"strings"

	"github.com/mikesmitty/fanctl/pkg/config"
	"github.com/mikesmitty/fanctl/pkg/fanctl"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

var cfgFile string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "fanctl",
	Short: "Temperature driven fan speed controller for hwmon PWM outputs",
	Long: `fanctl reads temperature sensors exposed through /sys/class/hwmon, maps the
hottest reading onto a cubic fan curve and writes the result to the PWM outputs
of the configured fans. Fans are returned to automatic control on exit.

With --manual-speed the fans are set once to a fixed percentage and fanctl exits.`,
	Args: cobra.NoArgs,
	RunE: fanctl.Root(&cfgFile),
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is "+config.DefaultPath+")")
	rootCmd.PersistentFlags().Float64("temp-min", 50, "temperature (°C) at and below which fans run at fan-min")
	rootCmd.PersistentFlags().Float64("temp-max", 75, "temperature (°C) at and above which fans run at fan-max")
	rootCmd.PersistentFlags().Int("fan-min", 8, "minimum fan speed in percent")
	rootCmd.PersistentFlags().Int("fan-max", 100, "maximum fan speed in percent")
	rootCmd.PersistentFlags().Int("interval", 5, "seconds between control iterations")
	rootCmd.PersistentFlags().Int("hysteresis", 5, "raw PWM change required before a new speed is written")
	rootCmd.PersistentFlags().Int("failsafe-after", 0, "seconds without sensor data before fans go to fan-max (0 disables)")
	rootCmd.PersistentFlags().String("csv-dir", "/var/log/fanctl", "directory for the daily CSV logs (empty disables)")
	rootCmd.PersistentFlags().String("csv-delimiter", ",", "CSV field delimiter")
	rootCmd.PersistentFlags().String("log-file", "", "also write log lines to this rotated file")
	rootCmd.PersistentFlags().Bool("debug", false, "enable debug logging")
	rootCmd.PersistentFlags().String("mqtt-broker", "", "mqtt broker url")

	rootCmd.Flags().Int("manual-speed", 0, "set all fans to this percentage (0-100) once and exit")

	rootCmd.PersistentFlags().VisitAll(func(f *pflag.Flag) {
		if f.Name == "config" {
			return
		}
		viper.BindPFlag(f.Name, f)
	})
}

// initConfig sets up environment overrides. The config file itself is read by
// config.Load once the command runs.
func initConfig() {
	viper.SetEnvPrefix("fanctl")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv() // read in environment variables that match
}
