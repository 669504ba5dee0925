// internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"

	"github.com/n7cw/cwkeyer/internal/audiosink"
	"github.com/n7cw/cwkeyer/internal/timing"
)

const (
	AppName       = "cwkeyer"
	ConfigType    = "yaml"
	DefaultConfig = `# cwkeyer configuration

# Timing
speed_wpm: 12                   # 4-60
gap: 0                          # 0-60, Farnsworth extra inter-character/word spacing
tolerance_percent: 50           # 0-90, receiver acceptance window width
weighting: 50                   # 20-80, dot/dash ratio redistribution, 50 = unweighted
adaptive_timing: false          # receiver tracks the sender's speed instead of using speed_wpm
noise_spike_threshold_us: 10000 # 0-20000, marks this short or shorter are rejected as noise

# Tone
tone_frequency_hz: 800 # 0-4000
volume_percent: 70     # 0-100

# Output sink
sink: "null"   # null|console|malgo
device_index: -1
sample_rate: 48000

# Queue
queue_capacity: 4096

# Output
debug: false
`
)

// Settings holds all application configuration (spec §4.10).
type Settings struct {
	// Timing
	SpeedWPM              float64 `mapstructure:"speed_wpm"`
	Gap                   int     `mapstructure:"gap"`
	TolerancePercent      float64 `mapstructure:"tolerance_percent"`
	Weighting             float64 `mapstructure:"weighting"`
	AdaptiveTiming        bool    `mapstructure:"adaptive_timing"`
	NoiseSpikeThresholdUS int     `mapstructure:"noise_spike_threshold_us"`

	// Tone
	ToneFrequencyHz int `mapstructure:"tone_frequency_hz"`
	VolumePercent   int `mapstructure:"volume_percent"`

	// Output sink
	Sink        string `mapstructure:"sink"`
	DeviceIndex int    `mapstructure:"device_index"`
	SampleRate  int    `mapstructure:"sample_rate"`

	// Queue
	QueueCapacity int `mapstructure:"queue_capacity"`

	// Output
	Debug bool `mapstructure:"debug"`
}

// defaultValues seeds viper so that any key a user's config omits still
// resolves to a sane value.
var defaultValues = map[string]any{
	"speed_wpm":                12,
	"gap":                      0,
	"tolerance_percent":        50,
	"weighting":                50,
	"adaptive_timing":          false,
	"noise_spike_threshold_us": 10000,
	"tone_frequency_hz":        800,
	"volume_percent":           70,
	"sink":                     "null",
	"device_index":             -1,
	"sample_rate":              48000,
	"queue_capacity":           4096,
	"debug":                    false,
}

// userConfigDir returns the directory a per-user config.yaml lives in,
// falling back to $HOME/.config on platforms os.UserConfigDir doesn't
// recognize.
func userConfigDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, AppName)
	}
	return filepath.Join(os.Getenv("HOME"), ".config", AppName)
}

// Init loads settings into viper: built-in defaults, then whatever the
// nearer of the two config locations supplies. It looks in the current
// directory before the per-user XDG directory, and within each
// directory prefers a hidden .config.yaml over config.yaml. If neither
// location has a file, one is written to the XDG directory with
// DefaultConfig's contents so a later run has something to edit.
func Init() error {
	for key, value := range defaultValues {
		viper.SetDefault(key, value)
	}

	viper.SetConfigType(ConfigType)
	xdgDir := userConfigDir()
	viper.AddConfigPath(".")
	viper.AddConfigPath(xdgDir)

	if err := readConfigFile(); err == nil {
		return nil
	} else if !isConfigMissing(err) {
		return fmt.Errorf("read config: %w", err)
	}

	if err := writeDefaultConfig(xdgDir); err != nil {
		return err
	}
	if err := readConfigFile(); err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

// readConfigFile tries the hidden config name first, then the plain one,
// across every path registered with viper.AddConfigPath.
func readConfigFile() error {
	viper.SetConfigName(".config")
	if err := viper.ReadInConfig(); err == nil {
		return nil
	}
	viper.SetConfigName("config")
	return viper.ReadInConfig()
}

func isConfigMissing(err error) bool {
	var notFound viper.ConfigFileNotFoundError
	return errors.As(err, &notFound)
}

// writeDefaultConfig materializes DefaultConfig at dir/config.yaml,
// creating dir if needed. A no-op if the file is already there.
func writeDefaultConfig(dir string) error {
	path := filepath.Join(dir, "config.yaml")
	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("stat config file: %w", err)
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	if err := os.WriteFile(path, []byte(DefaultConfig), 0644); err != nil {
		return fmt.Errorf("write default config: %w", err)
	}
	return nil
}

// Get unmarshals viper's current state into a validated Settings.
func Get() (*Settings, error) {
	var s Settings
	if err := viper.Unmarshal(&s); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &s, nil
}

// Validate checks that all settings are within acceptable ranges
// (spec §6's numeric ranges, shared with the timing package).
func (s *Settings) Validate() error {
	var errs []error

	if s.SpeedWPM < timing.SpeedMinWPM || s.SpeedWPM > timing.SpeedMaxWPM {
		errs = append(errs, fmt.Errorf("speed_wpm must be between %d and %d, got %v", timing.SpeedMinWPM, timing.SpeedMaxWPM, s.SpeedWPM))
	}
	if s.Gap < timing.GapMin || s.Gap > timing.GapMax {
		errs = append(errs, fmt.Errorf("gap must be between %d and %d, got %d", timing.GapMin, timing.GapMax, s.Gap))
	}
	if s.TolerancePercent < timing.TolerancePercentMin || s.TolerancePercent > timing.TolerancePercentMax {
		errs = append(errs, fmt.Errorf("tolerance_percent must be between %d and %d, got %v", timing.TolerancePercentMin, timing.TolerancePercentMax, s.TolerancePercent))
	}
	if s.Weighting < timing.WeightingMin || s.Weighting > timing.WeightingMax {
		errs = append(errs, fmt.Errorf("weighting must be between %d and %d, got %v", timing.WeightingMin, timing.WeightingMax, s.Weighting))
	}
	if s.NoiseSpikeThresholdUS < timing.NoiseSpikeThresholdMinUS || s.NoiseSpikeThresholdUS > timing.NoiseSpikeThresholdMaxUS {
		errs = append(errs, fmt.Errorf("noise_spike_threshold_us must be between %d and %d, got %d", timing.NoiseSpikeThresholdMinUS, timing.NoiseSpikeThresholdMaxUS, s.NoiseSpikeThresholdUS))
	}

	if s.ToneFrequencyHz < timing.FrequencyMinHz || s.ToneFrequencyHz > timing.FrequencyMaxHz {
		errs = append(errs, fmt.Errorf("tone_frequency_hz must be between %d and %d, got %d", timing.FrequencyMinHz, timing.FrequencyMaxHz, s.ToneFrequencyHz))
	}
	if s.VolumePercent < timing.VolumeMinPercent || s.VolumePercent > timing.VolumeMaxPercent {
		errs = append(errs, fmt.Errorf("volume_percent must be between %d and %d, got %d", timing.VolumeMinPercent, timing.VolumeMaxPercent, s.VolumePercent))
	}

	switch audiosink.Kind(s.Sink) {
	case audiosink.KindNull, audiosink.KindConsole, audiosink.KindMalgo:
	default:
		errs = append(errs, fmt.Errorf("sink must be one of null, console, malgo, got %q", s.Sink))
	}
	if s.SampleRate < 8000 || s.SampleRate > 192000 {
		errs = append(errs, fmt.Errorf("sample_rate must be between 8000 and 192000 Hz, got %d", s.SampleRate))
	}
	if s.QueueCapacity < 1 {
		errs = append(errs, fmt.Errorf("queue_capacity must be positive, got %d", s.QueueCapacity))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}
