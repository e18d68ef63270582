package config

import (
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"
)

const path = "/etc/fanctl/fanctl.yaml"

func TestLoadWritesDefaultsOnFirstRun(t *testing.T) {
	fs := afero.NewMemMapFs()

	cfg, err := Load(viper.New(), fs, path)
	require.NoError(t, err)

	exists, err := afero.Exists(fs, path)
	require.NoError(t, err)
	require.True(t, exists)

	require.Equal(t, 50.0, cfg.TempMin)
	require.Equal(t, 75.0, cfg.TempMax)
	require.Equal(t, 8, cfg.FanMin)
	require.Equal(t, 100, cfg.FanMax)
	require.Equal(t, 5, cfg.Interval)
	require.Equal(t, 5, cfg.Hysteresis)
	require.Equal(t, 20, cfg.FanMinRaw())
	require.Equal(t, 255, cfg.FanMaxRaw())
	require.Equal(t, 5*time.Second, cfg.IntervalDuration())
	require.Equal(t, ',', cfg.Delimiter())
	require.Len(t, cfg.Sensors, 3)
	require.Equal(t, SensorConfig{Name: "CPU", Path: hwmonDir + "temp1_input", Scale: 1000}, cfg.Sensors[0])
	require.Len(t, cfg.Fans, 2)
	require.Equal(t, hwmonDir+"pwm2_enable", cfg.Fans[1].Enable)
	require.Equal(t, "2", cfg.Fans[1].RestoreEnable)

	// the written file loads back to the same values
	again, err := Load(viper.New(), fs, path)
	require.NoError(t, err)
	require.Equal(t, cfg, again)
}

func TestLoadFileAndOverrides(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, path, []byte(`
temp-min: 45
temp-max: 80
hysteresis: 3
csv-delimiter: ";"
sensors:
  - name: CPU
    path: /sys/class/hwmon/hwmon0/temp1_input
fans:
  - name: rear
    value: /sys/class/hwmon/hwmon0/pwm3
`), 0644))

	v := viper.New()
	// stands in for a flag given on the command line
	v.Set("temp-max", 70)

	cfg, err := Load(v, fs, path)
	require.NoError(t, err)
	require.Equal(t, 45.0, cfg.TempMin)
	require.Equal(t, 70.0, cfg.TempMax)
	require.Equal(t, 3, cfg.Hysteresis)
	require.Equal(t, 8, cfg.FanMin)
	require.Equal(t, ';', cfg.Delimiter())
	require.Equal(t, []SensorConfig{{Name: "CPU", Path: "/sys/class/hwmon/hwmon0/temp1_input"}}, cfg.Sensors)
	require.Equal(t, []FanConfig{{Name: "rear", Value: "/sys/class/hwmon/hwmon0/pwm3"}}, cfg.Fans)
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, path, []byte("temp-min: 45\nTEMP_MAX: 80\n"), 0644))

	_, err := Load(viper.New(), fs, path)
	require.ErrorIs(t, err, ErrInvalidConfig)
	require.Contains(t, err.Error(), "temp_max")
}

func TestLoadRejectsUnknownFanKeys(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, path, []byte("fans:\n  - name: fan1\n    speed: 100\n"), 0644))

	_, err := Load(viper.New(), fs, path)
	require.Error(t, err)
}

func TestLoadRejectsMalformedFile(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, path, []byte("temp-min: [50\n"), 0644))

	_, err := Load(viper.New(), fs, path)
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		return Config{
			TempMin:      50,
			TempMax:      75,
			FanMin:       8,
			FanMax:       100,
			MaxRawSpeed:  255,
			Hysteresis:   5,
			Interval:     5,
			CSVDelimiter: ",",
		}
	}
	require.NoError(t, valid().Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{name: "inverted temps", mutate: func(c *Config) { c.TempMin = 80 }},
		{name: "equal temps", mutate: func(c *Config) { c.TempMin = 75 }},
		{name: "fan min above max", mutate: func(c *Config) { c.FanMin = 90; c.FanMax = 50 }},
		{name: "fan max above 100", mutate: func(c *Config) { c.FanMax = 120 }},
		{name: "negative fan min", mutate: func(c *Config) { c.FanMin = -1 }},
		{name: "zero raw speed", mutate: func(c *Config) { c.MaxRawSpeed = 0 }},
		{name: "negative hysteresis", mutate: func(c *Config) { c.Hysteresis = -1 }},
		{name: "zero interval", mutate: func(c *Config) { c.Interval = 0 }},
		{name: "negative failsafe", mutate: func(c *Config) { c.FailsafeAfter = -1 }},
		{name: "long delimiter", mutate: func(c *Config) { c.CSVDelimiter = ";;" }},
		{name: "quote delimiter", mutate: func(c *Config) { c.CSVDelimiter = `"` }},
		{name: "unnamed sensor", mutate: func(c *Config) { c.Sensors = []SensorConfig{{Path: "/x"}} }},
		{name: "unnamed fan", mutate: func(c *Config) { c.Fans = []FanConfig{{Value: "/x"}} }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(&c)
			require.ErrorIs(t, c.Validate(), ErrInvalidConfig)
		})
	}
}
