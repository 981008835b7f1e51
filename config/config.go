package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const CONFILE = "config.yml"

// Config mirrors config.yml. Every section has defaults, see Default.
type Config struct {
	Hardware   HardwareConfig   `yaml:"Hardware"`
	Sensor     SensorConfig     `yaml:"Sensor"`
	Output     OutputConfig     `yaml:"Output"`
	Simulation SimulationConfig `yaml:"Simulation"`
	Web        WebConfig        `yaml:"Web"`
	Monitor    MonitorConfig    `yaml:"Monitor"`
	Logging    LoggingConfig    `yaml:"Logging"`
}

type HardwareConfig struct {
	GPIOLibrary      string        `yaml:"GPIOLibrary"`
	I2CBus           string        `yaml:"I2CBus"`
	I2CAddress       uint16        `yaml:"I2CAddress"`
	GRange           byte          `yaml:"GRange"`
	InterruptPin     int           `yaml:"InterruptPin"`
	PollInterval     time.Duration `yaml:"PollInterval"`
	RpioPollInterval time.Duration `yaml:"RpioPollInterval"`
	InitRetries      int           `yaml:"InitRetries"`
	InitRetryDelay   time.Duration `yaml:"InitRetryDelay"`
}

type SensorConfig struct {
	OutputDataRate byte `yaml:"OutputDataRate"`
}

type OutputConfig struct {
	CSVFile    string `yaml:"CSVFile"`
	ConvertToG bool   `yaml:"ConvertToG"`
	SerialPort string `yaml:"SerialPort"`
	SerialBaud int    `yaml:"SerialBaud"`
	MaxSamples uint64 `yaml:"MaxSamples"`
}

type SimulationConfig struct {
	Amplitude float64 `yaml:"Amplitude"`
	Noise     float64 `yaml:"Noise"`
}

type WebConfig struct {
	Enabled bool   `yaml:"Enabled"`
	Address string `yaml:"Address"`
}

type MonitorConfig struct {
	History int `yaml:"History"`
}

type LoggingConfig struct {
	Level  string `yaml:"Level"`
	Format string `yaml:"Format"`
	File   string `yaml:"File"`
}

// Default returns the configuration used for every key missing from the
// file.
func Default() *Config {
	return &Config{
		Hardware: HardwareConfig{
			GPIOLibrary:      "periph.io",
			I2CBus:           "",
			I2CAddress:       0x1F,
			InterruptPin:     6,
			PollInterval:     50 * time.Millisecond,
			RpioPollInterval: 100 * time.Microsecond,
			InitRetries:      3,
			InitRetryDelay:   500 * time.Millisecond,
		},

		Sensor: SensorConfig{
			OutputDataRate: 0x07,
		},
		Output: OutputConfig{
			SerialBaud: 115200,
		},
		Simulation: SimulationConfig{
			Amplitude: 2000,
			Noise:     40,
		},
		Web: WebConfig{
			Enabled: true,
			Address: ":8080",
		},
		Monitor: MonitorConfig{
			History: 500,
		},
		Logging: LoggingConfig{
			Level:  "INFO",
			Format: "text",
		},
	}
}

// ReadConfig loads cfile on top of the defaults and validates the result.
func ReadConfig(cfile string) (*Config, error) {
	f, err := os.Open(cfile)
	if err != nil {
		return nil, fmt.Errorf("can't open config file %s: %w", cfile, err)
	}
	defer f.Close()

	conf := Default()
	// An empty file leaves every default in place.
	if err := yaml.NewDecoder(f).Decode(conf); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("can't decode config file %s: %w", cfile, err)
	}
	if err := conf.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config file %s: %w", cfile, err)
	}
	return conf, nil
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []error
	h := c.Hardware
	switch strings.ToLower(h.GPIOLibrary) {
	case "periph.io", "rpio":
	default:
		errs = append(errs, fmt.Errorf("Hardware.GPIOLibrary must be periph.io or rpio, got %q", h.GPIOLibrary))
	}
	if h.I2CAddress != 0x1E && h.I2CAddress != 0x1F {
		errs = append(errs, fmt.Errorf("Hardware.I2CAddress must be 0x1E or 0x1F, got %#x", h.I2CAddress))
	}
	if h.GRange > 3 {
		errs = append(errs, fmt.Errorf("Hardware.GRange must be between 0 and 3, got %d", h.GRange))
	}
	if h.InterruptPin < 0 || h.InterruptPin > 27 {
		errs = append(errs, fmt.Errorf("Hardware.InterruptPin must be between 0 and 27, got %d", h.InterruptPin))
	}
	if h.InitRetries < 1 {
		errs = append(errs, fmt.Errorf("Hardware.InitRetries must be at least 1, got %d", h.InitRetries))
	}
	if h.PollInterval <= 0 {
		errs = append(errs, fmt.Errorf("Hardware.PollInterval must be positive, got %s", h.PollInterval))
	}
	if h.RpioPollInterval <= 0 {
		errs = append(errs, fmt.Errorf("Hardware.RpioPollInterval must be positive, got %s", h.RpioPollInterval))
	}
	if c.Sensor.OutputDataRate > 0x0F {
		errs = append(errs, fmt.Errorf("Sensor.OutputDataRate must be between 0 and 15, got %d", c.Sensor.OutputDataRate))
	}
	if c.Output.SerialPort != "" && c.Output.SerialBaud <= 0 {
		errs = append(errs, fmt.Errorf("Output.SerialBaud must be positive, got %d", c.Output.SerialBaud))
	}
	if c.Monitor.History < 1 {
		errs = append(errs, fmt.Errorf("Monitor.History must be at least 1, got %d", c.Monitor.History))
	}
	switch strings.ToLower(c.Logging.Format) {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("Logging.Format must be text or json, got %q", c.Logging.Format))
	}
	return errors.Join(errs...)
}
