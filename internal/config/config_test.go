package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
)

func resetViper() {
	viper.Reset()
}

func TestInit_WithDefaults(t *testing.T) {
	resetViper()

	tmpDir := t.TempDir()
	t.Setenv("HOME", tmpDir)

	configDir := filepath.Join(tmpDir, ".config", AppName)
	if err := os.MkdirAll(configDir, 0755); err != nil {
		t.Fatalf("failed to create config dir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(configDir, "config.yaml"), []byte(DefaultConfig), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	if err := Init(); err != nil {
		t.Fatalf("Init() error = %v", err)
	}

	tests := []struct {
		key      string
		expected interface{}
	}{
		{"speed_wpm", 12},
		{"gap", 0},
		{"tolerance_percent", 50},
		{"weighting", 50},
		{"adaptive_timing", false},
		{"noise_spike_threshold_us", 10000},
		{"tone_frequency_hz", 800},
		{"volume_percent", 70},
		{"sink", "null"},
		{"device_index", -1},
		{"sample_rate", 48000},
		{"queue_capacity", 4096},
		{"debug", false},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			got := viper.Get(tt.key)
			if got != tt.expected {
				t.Errorf("viper.Get(%q) = %v, want %v", tt.key, got, tt.expected)
			}
		})
	}
}

func TestInit_CreatesConfigIfMissing(t *testing.T) {
	resetViper()

	tmpDir := t.TempDir()
	t.Setenv("HOME", tmpDir)

	if err := Init(); err != nil {
		t.Fatalf("Init() error = %v", err)
	}

	configPath := filepath.Join(tmpDir, ".config", AppName, "config.yaml")
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		t.Errorf("Init() did not create config file at %s", configPath)
	}
}

func TestInit_ReadsLocalConfigFirst(t *testing.T) {
	resetViper()

	tmpDir := t.TempDir()
	t.Setenv("HOME", tmpDir)

	xdgConfigDir := filepath.Join(tmpDir, ".config", AppName)
	if err := os.MkdirAll(xdgConfigDir, 0755); err != nil {
		t.Fatalf("failed to create XDG config dir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(xdgConfigDir, "config.yaml"), []byte("speed_wpm: 20"), 0644); err != nil {
		t.Fatalf("failed to write XDG config: %v", err)
	}

	origDir, _ := os.Getwd()
	if err := os.Chdir(tmpDir); err != nil {
		t.Fatalf("failed to chdir: %v", err)
	}
	defer func() {
		if err := os.Chdir(origDir); err != nil {
			t.Logf("failed to restore dir: %v", err)
		}
	}()

	if err := os.WriteFile(filepath.Join(tmpDir, "config.yaml"), []byte("speed_wpm: 25"), 0644); err != nil {
		t.Fatalf("failed to write local config: %v", err)
	}

	if err := Init(); err != nil {
		t.Fatalf("Init() error = %v", err)
	}

	if got := viper.GetInt("speed_wpm"); got != 25 {
		t.Errorf("viper.GetInt(speed_wpm) = %d, want 25 (local config)", got)
	}
}

func TestGet_ReturnsSettings(t *testing.T) {
	resetViper()

	tmpDir := t.TempDir()
	t.Setenv("HOME", tmpDir)

	configDir := filepath.Join(tmpDir, ".config", AppName)
	if err := os.MkdirAll(configDir, 0755); err != nil {
		t.Fatalf("failed to create config dir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(configDir, "config.yaml"), []byte(DefaultConfig), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	if err := Init(); err != nil {
		t.Fatalf("Init() error = %v", err)
	}

	settings, err := Get()
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}

	if settings.DeviceIndex != -1 {
		t.Errorf("Settings.DeviceIndex = %d, want -1", settings.DeviceIndex)
	}
	if settings.SampleRate != 48000 {
		t.Errorf("Settings.SampleRate = %d, want 48000", settings.SampleRate)
	}
	if settings.ToneFrequencyHz != 800 {
		t.Errorf("Settings.ToneFrequencyHz = %d, want 800", settings.ToneFrequencyHz)
	}
	if settings.SpeedWPM != 12 {
		t.Errorf("Settings.SpeedWPM = %v, want 12", settings.SpeedWPM)
	}
	if settings.Sink != "null" {
		t.Errorf("Settings.Sink = %q, want null", settings.Sink)
	}
	if settings.Debug != false {
		t.Errorf("Settings.Debug = %v, want false", settings.Debug)
	}
}

func TestGet_AllFields(t *testing.T) {
	resetViper()

	tmpDir := t.TempDir()
	t.Setenv("HOME", tmpDir)

	customConfig := `speed_wpm: 25
gap: 2
tolerance_percent: 60
weighting: 55
adaptive_timing: true
noise_spike_threshold_us: 5000
tone_frequency_hz: 700
volume_percent: 90
sink: "console"
device_index: 2
sample_rate: 96000
queue_capacity: 1024
debug: true
`

	configDir := filepath.Join(tmpDir, ".config", AppName)
	if err := os.MkdirAll(configDir, 0755); err != nil {
		t.Fatalf("failed to create config dir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(configDir, "config.yaml"), []byte(customConfig), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	if err := Init(); err != nil {
		t.Fatalf("Init() error = %v", err)
	}

	settings, err := Get()
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}

	if settings.SpeedWPM != 25 {
		t.Errorf("Settings.SpeedWPM = %v, want 25", settings.SpeedWPM)
	}
	if settings.Gap != 2 {
		t.Errorf("Settings.Gap = %d, want 2", settings.Gap)
	}
	if settings.TolerancePercent != 60 {
		t.Errorf("Settings.TolerancePercent = %v, want 60", settings.TolerancePercent)
	}
	if settings.Weighting != 55 {
		t.Errorf("Settings.Weighting = %v, want 55", settings.Weighting)
	}
	if settings.AdaptiveTiming != true {
		t.Errorf("Settings.AdaptiveTiming = %v, want true", settings.AdaptiveTiming)
	}
	if settings.NoiseSpikeThresholdUS != 5000 {
		t.Errorf("Settings.NoiseSpikeThresholdUS = %d, want 5000", settings.NoiseSpikeThresholdUS)
	}
	if settings.ToneFrequencyHz != 700 {
		t.Errorf("Settings.ToneFrequencyHz = %d, want 700", settings.ToneFrequencyHz)
	}
	if settings.VolumePercent != 90 {
		t.Errorf("Settings.VolumePercent = %d, want 90", settings.VolumePercent)
	}
	if settings.Sink != "console" {
		t.Errorf("Settings.Sink = %q, want console", settings.Sink)
	}
	if settings.DeviceIndex != 2 {
		t.Errorf("Settings.DeviceIndex = %d, want 2", settings.DeviceIndex)
	}
	if settings.SampleRate != 96000 {
		t.Errorf("Settings.SampleRate = %d, want 96000", settings.SampleRate)
	}
	if settings.QueueCapacity != 1024 {
		t.Errorf("Settings.QueueCapacity = %d, want 1024", settings.QueueCapacity)
	}
	if settings.Debug != true {
		t.Errorf("Settings.Debug = %v, want true", settings.Debug)
	}
}

func TestWriteDefaultConfig_CreatesDirectory(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "subdir", "config")

	if err := writeDefaultConfig(configPath); err != nil {
		t.Fatalf("writeDefaultConfig() error = %v", err)
	}

	configFile := filepath.Join(configPath, "config.yaml")
	if _, err := os.Stat(configFile); os.IsNotExist(err) {
		t.Errorf("writeDefaultConfig() did not create %s", configFile)
	}

	content, err := os.ReadFile(configFile)
	if err != nil {
		t.Fatalf("failed to read config file: %v", err)
	}
	if string(content) != DefaultConfig {
		t.Errorf("config content does not match DefaultConfig")
	}
}

func TestWriteDefaultConfig_DoesNotOverwrite(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := tmpDir

	configFile := filepath.Join(configPath, "config.yaml")
	existingContent := "existing: true"
	if err := os.WriteFile(configFile, []byte(existingContent), 0644); err != nil {
		t.Fatalf("failed to write existing config: %v", err)
	}

	if err := writeDefaultConfig(configPath); err != nil {
		t.Fatalf("writeDefaultConfig() error = %v", err)
	}

	content, err := os.ReadFile(configFile)
	if err != nil {
		t.Fatalf("failed to read config file: %v", err)
	}
	if string(content) != existingContent {
		t.Errorf("writeDefaultConfig() overwrote existing config")
	}
}

func TestWriteDefaultConfig_WriteError(t *testing.T) {
	if os.Getuid() == 0 {
		t.Skip("skipping test when running as root")
	}

	tmpDir := t.TempDir()

	configPath := filepath.Join(tmpDir, "readonly")
	if err := os.MkdirAll(configPath, 0555); err != nil {
		t.Fatalf("failed to create readonly dir: %v", err)
	}
	defer func() {
		if err := os.Chmod(configPath, 0755); err != nil {
			t.Logf("failed to restore permissions: %v", err)
		}
	}()

	err := writeDefaultConfig(filepath.Join(configPath, "subdir"))
	if err == nil {
		t.Error("writeDefaultConfig() should return error for read-only directory")
	}
}

func TestConstants(t *testing.T) {
	if AppName != "cwkeyer" {
		t.Errorf("AppName = %q, want %q", AppName, "cwkeyer")
	}
	if ConfigType != "yaml" {
		t.Errorf("ConfigType = %q, want %q", ConfigType, "yaml")
	}
}

func TestDefaultConfig_ContainsExpectedKeys(t *testing.T) {
	expectedKeys := []string{
		"speed_wpm",
		"gap",
		"tolerance_percent",
		"weighting",
		"adaptive_timing",
		"noise_spike_threshold_us",
		"tone_frequency_hz",
		"volume_percent",
		"sink",
		"device_index",
		"sample_rate",
		"queue_capacity",
		"debug",
	}

	for _, key := range expectedKeys {
		if !contains(DefaultConfig, key) {
			t.Errorf("DefaultConfig missing key: %s", key)
		}
	}
}

func contains(s, substr string) bool {
	for i := 0; i+len(substr) <= len(s); i++ {
		if s[i:i+len(substr)] == substr {
			return true
		}
	}
	return false
}

func TestSettings_Struct(t *testing.T) {
	s := Settings{
		SpeedWPM:        20,
		DeviceIndex:     1,
		SampleRate:      96000,
		ToneFrequencyHz: 700,
		VolumePercent:   80,
		Debug:           true,
	}

	if s.DeviceIndex != 1 {
		t.Errorf("Settings.DeviceIndex = %d, want 1", s.DeviceIndex)
	}
	if s.SampleRate != 96000 {
		t.Errorf("Settings.SampleRate = %d, want 96000", s.SampleRate)
	}
	if s.ToneFrequencyHz != 700 {
		t.Errorf("Settings.ToneFrequencyHz = %d, want 700", s.ToneFrequencyHz)
	}
	if s.Debug != true {
		t.Errorf("Settings.Debug = %v, want true", s.Debug)
	}
}

func TestInit_InvalidConfigFile(t *testing.T) {
	resetViper()

	tmpDir := t.TempDir()
	t.Setenv("HOME", tmpDir)

	configDir := filepath.Join(tmpDir, ".config", AppName)
	if err := os.MkdirAll(configDir, 0755); err != nil {
		t.Fatalf("failed to create config dir: %v", err)
	}
	invalidYAML := "invalid: yaml: content: [[["
	if err := os.WriteFile(filepath.Join(configDir, "config.yaml"), []byte(invalidYAML), 0644); err != nil {
		t.Fatalf("failed to write invalid config: %v", err)
	}

	err := Init()
	if err == nil {
		t.Error("Init() should return error for invalid YAML")
	}
}

func TestInit_LoadsDotConfigYaml(t *testing.T) {
	resetViper()

	tmpDir := t.TempDir()
	t.Setenv("HOME", tmpDir)

	origDir, _ := os.Getwd()
	if err := os.Chdir(tmpDir); err != nil {
		t.Fatalf("failed to chdir: %v", err)
	}
	defer func() {
		if err := os.Chdir(origDir); err != nil {
			t.Logf("failed to restore dir: %v", err)
		}
	}()

	dotConfigContent := `sink: "console"
sample_rate: 48000
device_index: 3
queue_capacity: 2048
`
	if err := os.WriteFile(filepath.Join(tmpDir, ".config.yaml"), []byte(dotConfigContent), 0644); err != nil {
		t.Fatalf("failed to write .config.yaml: %v", err)
	}

	if err := Init(); err != nil {
		t.Fatalf("Init() error = %v", err)
	}

	tests := []struct {
		key      string
		expected interface{}
	}{
		{"sink", "console"},
		{"sample_rate", 48000},
		{"device_index", 3},
		{"queue_capacity", 2048},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			got := viper.Get(tt.key)
			if got != tt.expected {
				t.Errorf("viper.Get(%q) = %v, want %v", tt.key, got, tt.expected)
			}
		})
	}
}

func TestInit_DotConfigTakesPrecedence(t *testing.T) {
	resetViper()

	tmpDir := t.TempDir()
	t.Setenv("HOME", tmpDir)

	origDir, _ := os.Getwd()
	if err := os.Chdir(tmpDir); err != nil {
		t.Fatalf("failed to chdir: %v", err)
	}
	defer func() {
		if err := os.Chdir(origDir); err != nil {
			t.Logf("failed to restore dir: %v", err)
		}
	}()

	if err := os.WriteFile(filepath.Join(tmpDir, ".config.yaml"), []byte("speed_wpm: 30"), 0644); err != nil {
		t.Fatalf("failed to write .config.yaml: %v", err)
	}
	if err := os.WriteFile(filepath.Join(tmpDir, "config.yaml"), []byte("speed_wpm: 20"), 0644); err != nil {
		t.Fatalf("failed to write config.yaml: %v", err)
	}

	if err := Init(); err != nil {
		t.Fatalf("Init() error = %v", err)
	}

	if got := viper.GetInt("speed_wpm"); got != 30 {
		t.Errorf("viper.GetInt(speed_wpm) = %d, want 30 (.config.yaml should take precedence)", got)
	}
}

// Validation tests

func validSettings() *Settings {
	return &Settings{
		SpeedWPM:              12,
		Gap:                   0,
		TolerancePercent:      50,
		Weighting:             50,
		AdaptiveTiming:        false,
		NoiseSpikeThresholdUS: 10000,
		ToneFrequencyHz:       800,
		VolumePercent:         70,
		Sink:                  "null",
		DeviceIndex:           -1,
		SampleRate:            48000,
		QueueCapacity:         4096,
		Debug:                 false,
	}
}

func TestSettings_Validate_ValidSettings(t *testing.T) {
	if err := validSettings().Validate(); err != nil {
		t.Errorf("Validate() error = %v, want nil for valid settings", err)
	}
}

func TestSettings_Validate_SpeedWPM(t *testing.T) {
	tests := []struct {
		name    string
		speed   float64
		wantErr bool
	}{
		{"too slow", 3, true},
		{"minimum", 4, false},
		{"typical", 20, false},
		{"maximum", 60, false},
		{"too fast", 61, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := validSettings()
			s.SpeedWPM = tt.speed
			err := s.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestSettings_Validate_Gap(t *testing.T) {
	tests := []struct {
		name    string
		gap     int
		wantErr bool
	}{
		{"negative", -1, true},
		{"minimum", 0, false},
		{"typical", 5, false},
		{"maximum", 60, false},
		{"too high", 61, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := validSettings()
			s.Gap = tt.gap
			err := s.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestSettings_Validate_TolerancePercent(t *testing.T) {
	tests := []struct {
		name       string
		tolerance  float64
		wantErr    bool
		allowedMax float64
	}{
		{"negative", -1, true, 90},
		{"minimum", 0, false, 90},
		{"typical", 50, false, 90},
		{"maximum", 90, false, 90},
		{"too high", 91, true, 90},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := validSettings()
			s.TolerancePercent = tt.tolerance
			err := s.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestSettings_Validate_Weighting(t *testing.T) {
	tests := []struct {
		name      string
		weighting float64
		wantErr   bool
	}{
		{"too low", 19, true},
		{"minimum", 20, false},
		{"unweighted", 50, false},
		{"maximum", 80, false},
		{"too high", 81, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := validSettings()
			s.Weighting = tt.weighting
			err := s.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestSettings_Validate_NoiseSpikeThresholdUS(t *testing.T) {
	tests := []struct {
		name      string
		threshold int
		wantErr   bool
	}{
		{"negative", -1, true},
		{"minimum", 0, false},
		{"typical", 10000, false},
		{"maximum", 20000, false},
		{"too high", 20001, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := validSettings()
			s.NoiseSpikeThresholdUS = tt.threshold
			err := s.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestSettings_Validate_ToneFrequencyHz(t *testing.T) {
	tests := []struct {
		name    string
		freq    int
		wantErr bool
	}{
		{"negative", -1, true},
		{"minimum", 0, false},
		{"typical", 800, false},
		{"maximum", 4000, false},
		{"too high", 4001, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := validSettings()
			s.ToneFrequencyHz = tt.freq
			err := s.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestSettings_Validate_VolumePercent(t *testing.T) {
	tests := []struct {
		name    string
		volume  int
		wantErr bool
	}{
		{"negative", -1, true},
		{"minimum", 0, false},
		{"typical", 70, false},
		{"maximum", 100, false},
		{"too high", 101, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := validSettings()
			s.VolumePercent = tt.volume
			err := s.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestSettings_Validate_Sink(t *testing.T) {
	for _, kind := range []string{"null", "console", "malgo"} {
		t.Run("valid_"+kind, func(t *testing.T) {
			s := validSettings()
			s.Sink = kind
			if err := s.Validate(); err != nil {
				t.Errorf("Validate() error = %v for valid sink %q", err, kind)
			}
		})
	}
	for _, kind := range []string{"", "invalid", "pulse"} {
		t.Run("invalid_"+kind, func(t *testing.T) {
			s := validSettings()
			s.Sink = kind
			if err := s.Validate(); err == nil {
				t.Errorf("Validate() should error for invalid sink %q", kind)
			}
		})
	}
}

func TestSettings_Validate_SampleRate(t *testing.T) {
	tests := []struct {
		name       string
		sampleRate int
		wantErr    bool
	}{
		{"too low", 7999, true},
		{"minimum", 8000, false},
		{"typical 44100", 44100, false},
		{"typical 48000", 48000, false},
		{"maximum", 192000, false},
		{"too high", 192001, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := validSettings()
			s.SampleRate = tt.sampleRate
			err := s.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestSettings_Validate_QueueCapacity(t *testing.T) {
	tests := []struct {
		name     string
		capacity int
		wantErr  bool
	}{
		{"zero", 0, true},
		{"negative", -1, true},
		{"minimum", 1, false},
		{"typical", 4096, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := validSettings()
			s.QueueCapacity = tt.capacity
			err := s.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestSettings_Validate_MultipleErrors(t *testing.T) {
	s := &Settings{
		SpeedWPM:              0,     // invalid
		Gap:                   -1,    // invalid
		TolerancePercent:      -1,    // invalid
		Weighting:             0,     // invalid
		NoiseSpikeThresholdUS: -1,    // invalid
		ToneFrequencyHz:       -1,    // invalid
		VolumePercent:         -1,    // invalid
		Sink:                  "bad", // invalid
		SampleRate:            0,     // invalid
		QueueCapacity:         0,     // invalid
	}

	err := s.Validate()
	if err == nil {
		t.Fatal("Validate() should return error for multiple invalid fields")
	}

	errStr := err.Error()
	expectedSubstrings := []string{
		"speed_wpm",
		"gap",
		"tolerance_percent",
		"weighting",
		"noise_spike_threshold_us",
		"tone_frequency_hz",
		"volume_percent",
		"sink",
		"sample_rate",
		"queue_capacity",
	}

	for _, substr := range expectedSubstrings {
		if !contains(errStr, substr) {
			t.Errorf("Validate() error should mention %q, got: %v", substr, errStr)
		}
	}
}
