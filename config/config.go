// Package config loads the bridge settings from defaults, an optional YAML
// file and HCIUART_* environment variables, in that order of precedence.
package config

import (
	"bytes"
	"io"
	"path/filepath"
	"strings"

	"github.com/mcuadros/go-defaults"
	"github.com/pkg/errors"
	"github.com/rigado/hciuart"
	"github.com/rigado/hciuart/linux/hci"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const EnvPrefix = "HCIUART"

type Config struct {
	Uart       UartConfig       `mapstructure:"uart" yaml:"uart"`
	Controller ControllerConfig `mapstructure:"controller" yaml:"controller"`
	Queues     QueueConfig      `mapstructure:"queues" yaml:"queues"`
	Buffers    hci.PoolConfig   `mapstructure:"buffers" yaml:"buffers"`
	Timesync   TimesyncConfig   `mapstructure:"timesync" yaml:"timesync"`
	Journal    JournalConfig    `mapstructure:"journal" yaml:"journal"`
	Log        LogConfig        `mapstructure:"log" yaml:"log"`

	// WaitNOP announces readiness to the host with a NOP Command Complete.
	WaitNOP bool `mapstructure:"wait_nop" yaml:"wait_nop" default:"true"`
}

type UartConfig struct {
	Path     string `mapstructure:"path" yaml:"path" default:"/dev/ttyACM0"`
	Baud     uint   `mapstructure:"baud" yaml:"baud" default:"1000000"`
	FIFOSize int    `mapstructure:"fifo_size" yaml:"fifo_size" default:"64"`
}

type ControllerConfig struct {
	// HCIDev is the hciN index; -1 takes the first one that binds.
	HCIDev       int `mapstructure:"hci_dev" yaml:"hci_dev" default:"-1"`
	OpenTimeoutS int `mapstructure:"open_timeout_s" yaml:"open_timeout_s" default:"60"`
}

type QueueConfig struct {
	Inbound  int `mapstructure:"inbound" yaml:"inbound" default:"64"`
	Outbound int `mapstructure:"outbound" yaml:"outbound" default:"64"`
}

type TimesyncConfig struct {
	ThresholdUS    uint32 `mapstructure:"threshold_us" yaml:"threshold_us" default:"10"`
	PresentationUS int    `mapstructure:"presentation_us" yaml:"presentation_us" default:"10000"`
	// StartupDelayUS arms the presentation toggle this long after start; 0
	// leaves it idle.
	StartupDelayUS int `mapstructure:"startup_delay_us" yaml:"startup_delay_us" default:"100000"`

	// ReportPath is the serial port receiving the R/T reports; empty
	// disables them.
	ReportPath string `mapstructure:"report_path" yaml:"report_path"`
	ReportBaud uint   `mapstructure:"report_baud" yaml:"report_baud" default:"115200"`
}

type JournalConfig struct {
	Path string `mapstructure:"path" yaml:"path"`
	Max  int    `mapstructure:"max" yaml:"max" default:"1000"`
}

type LogConfig struct {
	Level string                `mapstructure:"level" yaml:"level" default:"info"`
	File  hciuart.LogFileConfig `mapstructure:"file" yaml:"file"`
}

// Default returns the built in settings.
func Default() *Config {
	c := &Config{}
	defaults.SetDefaults(c)
	c.Buffers = hci.DefaultPoolConfig()
	return c
}

// Load layers path, when not empty, and the environment over Default.
func Load(path string) (*Config, error) {
	c := Default()

	base, err := yaml.Marshal(c)
	if err != nil {
		return nil, errors.Wrap(err, "can't encode defaults")
	}

	v := viper.New()
	v.SetConfigType("yaml")
	if err := v.ReadConfig(bytes.NewReader(base)); err != nil {
		return nil, errors.Wrap(err, "can't load defaults")
	}

	if path != "" {
		if ext := strings.TrimPrefix(filepath.Ext(path), "."); ext != "" {
			v.SetConfigType(ext)
		}
		v.SetConfigFile(path)
		if err := v.MergeInConfig(); err != nil {
			return nil, errors.Wrapf(err, "failed to read config file %s", path)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if err := v.Unmarshal(c); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal config")
	}

	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Config) Validate() error {
	switch {
	case c.Uart.Path == "":
		return errors.New("uart.path is required")
	case c.Uart.Baud == 0:
		return errors.New("uart.baud must be positive")
	case c.Uart.FIFOSize <= 0:
		return errors.Errorf("uart.fifo_size %d must be positive", c.Uart.FIFOSize)
	case c.Controller.HCIDev < -1:
		return errors.Errorf("controller.hci_dev %d invalid", c.Controller.HCIDev)
	case c.Queues.Inbound <= 0 || c.Queues.Outbound <= 0:
		return errors.Errorf("queue sizes must be positive: inbound %d outbound %d", c.Queues.Inbound, c.Queues.Outbound)
	case c.Timesync.ThresholdUS == 0:
		return errors.New("timesync.threshold_us must be positive")
	case c.Timesync.PresentationUS <= 0:
		return errors.Errorf("timesync.presentation_us %d must be positive", c.Timesync.PresentationUS)
	case c.Timesync.StartupDelayUS < 0:
		return errors.Errorf("timesync.startup_delay_us %d must not be negative", c.Timesync.StartupDelayUS)
	}

	for name, b := range map[string]hci.BufferConfig{
		"cmd": c.Buffers.Command,
		"acl": c.Buffers.ACL,
		"iso": c.Buffers.ISO,
	} {
		if b.Size < 1+hci.MaxHdrLen || b.Count < 0 {
			return errors.Errorf("buffers.%s: size %d count %d invalid", name, b.Size, b.Count)
		}
	}

	if _, err := logrus.ParseLevel(c.Log.Level); err != nil {
		return errors.Wrap(err, "log.level")
	}
	return nil
}

// Dump writes c as YAML.
func (c *Config) Dump(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(c); err != nil {
		return err
	}
	return enc.Close()
}
