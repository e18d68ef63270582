package hwmon

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/afero"
)

const (
	// ModeValue selects PWM (as opposed to DC) output in pwmN_mode.
	ModeValue = "1"
	// EnableValue is the hwmon ABI marker for manual fan speed control in pwmN_enable.
	EnableValue = "1"
	// RestoreEnableValue hands the channel back to automatic (chip/firmware) control.
	RestoreEnableValue = "2"
)

var (
	ErrActuatorMissing     = errors.New("actuator not present")
	ErrActuatorWriteFailed = errors.New("actuator write failed")
)

// Channel is one fan's control surfaces: mode, enable and value (pwmN) handles. Any of
// them may be empty, but a channel without a value handle is inert.
type Channel struct {
	Name          string
	ModePath      string
	EnablePath    string
	ValuePath     string
	ModeValue     string
	EnableValue   string
	RestoreEnable string
	fs            afero.Fs
}

func NewChannel(fs afero.Fs, name, mode, enable, value string) *Channel {
	return &Channel{
		Name:          name,
		ModePath:      mode,
		EnablePath:    enable,
		ValuePath:     value,
		ModeValue:     ModeValue,
		EnableValue:   EnableValue,
		RestoreEnable: RestoreEnableValue,
		fs:            fs,
	}
}

func (c *Channel) Inert() bool {
	return c.ValuePath == ""
}

// Initialize puts the channel under manual software control. The mode and enable
// writes are independent; a missing handle is skipped and write failures are returned
// joined so the caller can log them. The channel stays usable either way.
func (c *Channel) Initialize() error {
	var errs []error
	if err := c.writeHandle(c.ModePath, c.ModeValue); err != nil && !errors.Is(err, ErrActuatorMissing) {
		errs = append(errs, fmt.Errorf("%s mode: %w", c.Name, err))
	} else if err == nil {
		slog.Debug("channel mode set", "channel", c.Name, "value", c.ModeValue, "module", "hwmon")
	}
	if err := c.writeHandle(c.EnablePath, c.EnableValue); err != nil && !errors.Is(err, ErrActuatorMissing) {
		errs = append(errs, fmt.Errorf("%s enable: %w", c.Name, err))
	} else if err == nil {
		slog.Debug("channel manual control enabled", "channel", c.Name, "value", c.EnableValue, "module", "hwmon")
	}
	return errors.Join(errs...)
}

// Write commands a raw PWM value. It returns an error wrapping ErrActuatorMissing when
// the value handle is not configured or absent, and ErrActuatorWriteFailed when the
// device rejects the write. Nothing is remembered between calls.
func (c *Channel) Write(raw int) error {
	if err := c.writeHandle(c.ValuePath, strconv.Itoa(raw)); err != nil {
		return fmt.Errorf("%s: %w", c.Name, err)
	}
	return nil
}

// Read returns the value currently reported by the value handle.
func (c *Channel) Read() (int, error) {
	if c.ValuePath == "" {
		return 0, fmt.Errorf("%s: %w", c.Name, ErrActuatorMissing)
	}
	data, err := afero.ReadFile(c.fs, c.ValuePath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return 0, fmt.Errorf("%s: %w", c.Name, ErrActuatorMissing)
		}
		return 0, fmt.Errorf("%s: %w", c.Name, err)
	}
	return strconv.Atoi(strings.TrimSpace(string(data)))
}

// Restore hands the channel back to automatic control. A missing enable handle or an
// empty RestoreEnable is a no-op.
func (c *Channel) Restore() error {
	if c.RestoreEnable == "" {
		return nil
	}
	err := c.writeHandle(c.EnablePath, c.RestoreEnable)
	if err != nil && !errors.Is(err, ErrActuatorMissing) {
		return fmt.Errorf("%s enable: %w", c.Name, err)
	}
	return nil
}

func (c *Channel) writeHandle(path, value string) error {
	if path == "" {
		return ErrActuatorMissing
	}
	// sysfs attributes already exist; never create one.
	f, err := c.fs.OpenFile(path, os.O_WRONLY|os.O_TRUNC, 0)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%s: %w", path, ErrActuatorMissing)
		}
		return fmt.Errorf("%s: %w: %v", path, ErrActuatorWriteFailed, err)
	}
	_, err = f.WriteString(value)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("%s: %w: %v", path, ErrActuatorWriteFailed, err)
	}
	return nil
}
