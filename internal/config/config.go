// Package config loads the YAML sensor configuration and builds the devices
// it describes.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/sweeney/sensord/internal/logic"
)

// ErrInvalid is returned for configuration that fails validation.
var ErrInvalid = errors.New("config: invalid")

// DefaultChip is used when the file does not name a chip.
const DefaultChip = "gpiochip0"

// Config is the top-level configuration file.
type Config struct {
	Chip    string         `yaml:"chip"`
	Sensors []SensorConfig `yaml:"sensors"`
}

// SensorConfig describes one sensor. Zero values mean "use the default for
// this kind"; optional booleans and the threshold are pointers so that an
// explicit false or 0 can be told apart from an omitted field.
type SensorConfig struct {
	Name    string     `yaml:"name"`
	Kind    logic.Kind `yaml:"kind"`
	Pin     *int       `yaml:"pin,omitempty"`
	Echo    *int       `yaml:"echo,omitempty"`
	Trigger *int       `yaml:"trigger,omitempty"`

	PullUp     *bool         `yaml:"pull_up,omitempty"`
	Bounce     time.Duration `yaml:"bounce,omitempty"`
	Hold       time.Duration `yaml:"hold,omitempty"`
	HoldRepeat bool          `yaml:"hold_repeat,omitempty"`

	QueueLen   int      `yaml:"queue_len,omitempty"`
	SampleRate float64  `yaml:"sample_rate,omitempty"`
	Threshold  *float64 `yaml:"threshold,omitempty"`
	Partial    bool     `yaml:"partial,omitempty"`

	MaxDistance       float64       `yaml:"max_distance,omitempty"`
	ThresholdDistance float64       `yaml:"threshold_distance,omitempty"`
	ChargeTimeLimit   time.Duration `yaml:"charge_time_limit,omitempty"`
}

// Load reads and validates the file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates a configuration document.
func Parse(data []byte) (*Config, error) {
	var c Config
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if c.Chip == "" {
		c.Chip = DefaultChip
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

var kinds = map[logic.Kind]bool{
	logic.KindDigital:  true,
	logic.KindSmoothed: true,
	logic.KindButton:   true,
	logic.KindMotion:   true,
	logic.KindLine:     true,
	logic.KindLight:    true,
	logic.KindDistance: true,
}

// Validate checks every sensor and that no pin or name is used twice.
func (c *Config) Validate() error {
	if len(c.Sensors) == 0 {
		return fmt.Errorf("%w: no sensors", ErrInvalid)
	}
	names := make(map[string]bool)
	pins := make(map[int]string)
	for i := range c.Sensors {
		s := &c.Sensors[i]
		if err := s.validate(); err != nil {
			return err
		}
		if names[s.Name] {
			return fmt.Errorf("%w: duplicate sensor name %q", ErrInvalid, s.Name)
		}
		names[s.Name] = true
		for _, p := range s.Pins() {
			if other, ok := pins[p]; ok {
				return fmt.Errorf("%w: pin %d used by %q and %q", ErrInvalid, p, other, s.Name)
			}
			pins[p] = s.Name
		}
	}
	return nil
}

func (s *SensorConfig) validate() error {
	if s.Name == "" {
		return fmt.Errorf("%w: sensor without a name", ErrInvalid)
	}
	// Names become MQTT topic levels.
	if strings.ContainsAny(s.Name, "/+# \t") {
		return fmt.Errorf("%w: sensor name %q must not contain '/', '+', '#' or spaces", ErrInvalid, s.Name)
	}
	if !kinds[s.Kind] {
		return fmt.Errorf("%w: sensor %q: unknown kind %q", ErrInvalid, s.Name, s.Kind)
	}

	if s.Kind == logic.KindDistance {
		if s.Echo == nil || s.Trigger == nil {
			return fmt.Errorf("%w: sensor %q: distance sensors need echo and trigger pins", ErrInvalid, s.Name)
		}
		if s.Pin != nil {
			return fmt.Errorf("%w: sensor %q: use echo and trigger instead of pin", ErrInvalid, s.Name)
		}
	} else if s.Pin == nil {
		return fmt.Errorf("%w: sensor %q: pin is required", ErrInvalid, s.Name)
	}
	for _, p := range s.Pins() {
		if p < 0 {
			return fmt.Errorf("%w: sensor %q: pin %d must not be negative", ErrInvalid, s.Name, p)
		}
	}

	switch {
	case s.Bounce < 0, s.Hold < 0, s.ChargeTimeLimit < 0:
		return fmt.Errorf("%w: sensor %q: durations must not be negative", ErrInvalid, s.Name)
	case s.QueueLen < 0:
		return fmt.Errorf("%w: sensor %q: queue_len must not be negative", ErrInvalid, s.Name)
	case s.SampleRate < 0:
		return fmt.Errorf("%w: sensor %q: sample_rate must not be negative", ErrInvalid, s.Name)
	case s.Threshold != nil && (*s.Threshold < 0 || *s.Threshold > 1):
		return fmt.Errorf("%w: sensor %q: threshold must be between 0 and 1", ErrInvalid, s.Name)
	case s.MaxDistance < 0, s.ThresholdDistance < 0:
		return fmt.Errorf("%w: sensor %q: distances must not be negative", ErrInvalid, s.Name)
	}
	return nil
}

// Pins returns the GPIO lines the sensor uses.
func (s *SensorConfig) Pins() []int {
	var out []int
	for _, p := range []*int{s.Pin, s.Echo, s.Trigger} {
		if p != nil {
			out = append(out, *p)
		}
	}
	return out
}
