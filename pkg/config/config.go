// Package config loads the fanctl configuration file, writing one with the default
// values on first run.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"slices"
	"sort"
	"time"
	"unicode/utf8"

	"github.com/spf13/afero"
	"github.com/spf13/viper"
)

const DefaultPath = "/etc/fanctl/fanctl.yaml"

var ErrInvalidConfig = errors.New("invalid configuration")

type SensorConfig struct {
	Name  string `mapstructure:"name"`
	Path  string `mapstructure:"path"`
	Scale int64  `mapstructure:"scale"`
}

type FanConfig struct {
	Name          string `mapstructure:"name"`
	Mode          string `mapstructure:"mode"`
	Enable        string `mapstructure:"enable"`
	Value         string `mapstructure:"value"`
	ModeValue     string `mapstructure:"mode-value"`
	EnableValue   string `mapstructure:"enable-value"`
	RestoreEnable string `mapstructure:"restore-enable"`
}

type Config struct {
	TempMin float64 `mapstructure:"temp-min"`
	TempMax float64 `mapstructure:"temp-max"`

	// FanMin and FanMax are percentages of MaxRawSpeed.
	FanMin      int `mapstructure:"fan-min"`
	FanMax      int `mapstructure:"fan-max"`
	MaxRawSpeed int `mapstructure:"max-raw-speed"`

	// Hysteresis is in raw PWM units.
	Hysteresis    int `mapstructure:"hysteresis"`
	Interval      int `mapstructure:"interval"`
	FailsafeAfter int `mapstructure:"failsafe-after"`

	CSVDir       string `mapstructure:"csv-dir"`
	CSVDelimiter string `mapstructure:"csv-delimiter"`
	LogFile      string `mapstructure:"log-file"`
	Debug        bool   `mapstructure:"debug"`
	SummaryEvery int    `mapstructure:"summary-every"`

	MQTTBroker         string `mapstructure:"mqtt-broker"`
	MQTTSampleInterval int    `mapstructure:"mqtt-sample-interval"`

	Sensors []SensorConfig `mapstructure:"sensors"`
	Fans    []FanConfig    `mapstructure:"fans"`
}

const hwmonDir = "/sys/class/hwmon/hwmon2/"

// Defaults holds the values written to a fresh configuration file.
var Defaults = map[string]any{
	"temp-min":             50,
	"temp-max":             75,
	"fan-min":              8,
	"fan-max":              100,
	"max-raw-speed":        255,
	"hysteresis":           5,
	"interval":             5,
	"failsafe-after":       0,
	"csv-dir":              "/var/log/fanctl",
	"csv-delimiter":        ",",
	"log-file":             "",
	"debug":                false,
	"summary-every":        60,
	"mqtt-broker":          "",
	"mqtt-sample-interval": 1,
	"sensors": []map[string]any{
		{"name": "CPU", "path": hwmonDir + "temp1_input", "scale": 1000},
		{"name": "System", "path": hwmonDir + "temp2_input", "scale": 1000},
		{"name": "PECI", "path": hwmonDir + "temp7_input", "scale": 1000},
	},
	"fans": []map[string]any{
		fanDefaults("fan1", "pwm1"),
		fanDefaults("fan2", "pwm2"),
	},
}

func fanDefaults(name, pwm string) map[string]any {
	return map[string]any{
		"name":           name,
		"mode":           hwmonDir + pwm + "_mode",
		"enable":         hwmonDir + pwm + "_enable",
		"value":          hwmonDir + pwm,
		"mode-value":     "1",
		"enable-value":   "1",
		"restore-enable": "2",
	}
}

// SetDefaults registers Defaults on v.
func SetDefaults(v *viper.Viper) {
	for k, val := range Defaults {
		v.SetDefault(k, val)
	}
}

// Load reads the YAML configuration at path into v, creating the file from Defaults
// when it does not exist yet. Keys that fanctl does not know are rejected. Values
// already bound on v (command-line flags, environment) take precedence over the file.
func Load(v *viper.Viper, fs afero.Fs, path string) (Config, error) {
	if path == "" {
		path = DefaultPath
	}

	exists, err := afero.Exists(fs, path)
	if err != nil {
		return Config{}, err
	}
	if !exists {
		if err := WriteDefault(fs, path); err != nil {
			return Config{}, err
		}
		slog.Info("wrote default config file", "path", path, "module", "config")
	}

	file := viper.New()
	file.SetFs(fs)
	file.SetConfigFile(path)
	file.SetConfigType("yaml")
	if err := file.ReadInConfig(); err != nil {
		return Config{}, fmt.Errorf("reading %s: %w", path, err)
	}
	if unknown := unknownKeys(file.AllKeys()); len(unknown) > 0 {
		return Config{}, fmt.Errorf("%s: unknown keys %v: %w", path, unknown, ErrInvalidConfig)
	}

	SetDefaults(v)
	v.SetFs(fs)
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		return Config{}, fmt.Errorf("reading %s: %w", path, err)
	}
	slog.Debug("using config file", "path", v.ConfigFileUsed(), "module", "config")

	var cfg Config
	if err := v.UnmarshalExact(&cfg); err != nil {
		return Config{}, fmt.Errorf("decoding %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// WriteDefault writes a configuration file holding Defaults.
func WriteDefault(fs afero.Fs, path string) error {
	if err := fs.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("cannot create config dir: %w", err)
	}
	v := viper.New()
	v.SetFs(fs)
	v.SetConfigType("yaml")
	SetDefaults(v)
	if err := v.SafeWriteConfigAs(path); err != nil {
		return fmt.Errorf("writing default config: %w", err)
	}
	return nil
}

func unknownKeys(keys []string) []string {
	var unknown []string
	for _, k := range keys {
		if _, ok := Defaults[k]; !ok {
			unknown = append(unknown, k)
		}
	}
	sort.Strings(unknown)
	return unknown
}

func (c Config) Validate() error {
	var errs []error
	if !(c.TempMin < c.TempMax) {
		errs = append(errs, fmt.Errorf("temp-min %.1f must be below temp-max %.1f", c.TempMin, c.TempMax))
	}
	if c.FanMin < 0 || c.FanMin > c.FanMax || c.FanMax > 100 {
		errs = append(errs, fmt.Errorf("fan-min %d and fan-max %d must satisfy 0 <= fan-min <= fan-max <= 100", c.FanMin, c.FanMax))
	}
	if c.MaxRawSpeed <= 0 {
		errs = append(errs, fmt.Errorf("max-raw-speed %d must be positive", c.MaxRawSpeed))
	}
	if c.Hysteresis < 0 {
		errs = append(errs, fmt.Errorf("hysteresis %d must not be negative", c.Hysteresis))
	}
	if c.Interval <= 0 {
		errs = append(errs, fmt.Errorf("interval %d must be positive", c.Interval))
	}
	if c.FailsafeAfter < 0 {
		errs = append(errs, fmt.Errorf("failsafe-after %d must not be negative", c.FailsafeAfter))
	}
	if utf8.RuneCountInString(c.CSVDelimiter) != 1 || slices.Contains([]string{"\"", "\r", "\n"}, c.CSVDelimiter) {
		errs = append(errs, fmt.Errorf("csv-delimiter %q must be a single character", c.CSVDelimiter))
	}
	for i, s := range c.Sensors {
		if s.Name == "" {
			errs = append(errs, fmt.Errorf("sensor %d has no name", i))
		}
	}
	for i, f := range c.Fans {
		if f.Name == "" {
			errs = append(errs, fmt.Errorf("fan %d has no name", i))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
	}
	return nil
}

// FanMinRaw converts FanMin to raw PWM units.
func (c Config) FanMinRaw() int {
	return c.FanMin * c.MaxRawSpeed / 100
}

// FanMaxRaw converts FanMax to raw PWM units.
func (c Config) FanMaxRaw() int {
	return c.FanMax * c.MaxRawSpeed / 100
}

func (c Config) IntervalDuration() time.Duration {
	return time.Duration(c.Interval) * time.Second
}

func (c Config) FailsafeDuration() time.Duration {
	return time.Duration(c.FailsafeAfter) * time.Second
}

// Delimiter returns the CSV delimiter as a rune. Validate guarantees exactly one.
func (c Config) Delimiter() rune {
	r, _ := utf8.DecodeRuneInString(c.CSVDelimiter)
	return r
}
