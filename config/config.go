package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"
)

// OutputConfig defines the MIDI output notes are played on
type OutputConfig struct {
	PortName string  `json:"portName,omitempty"` // empty = first port
	Channel  int     `json:"channel"`            // 0-15
	Program  int     `json:"program"`            // -1 = leave the synth alone
	Volume   float64 `json:"volume"`             // 0..1
	Watch    bool    `json:"watch"`              // reconnect on hot-plug
}

// PlaybackConfig tunes the scheduler
type PlaybackConfig struct {
	DefaultBPM   float64 `json:"defaultBpm"`
	ReferenceBPM float64 `json:"referenceBpm"`
	MinPollMs    int     `json:"minPollMs"`
	MaxPollMs    int     `json:"maxPollMs"`
	StopTimeout  int     `json:"stopTimeoutMs"`
	SeekStep     float64 `json:"seekStep"` // seconds
	TempoStep    float64 `json:"tempoStep"`
}

// UIConfig stores UI preferences
type UIConfig struct {
	PalettePath string `json:"palettePath,omitempty"`
	LastFile    string `json:"lastFile,omitempty"`
	WatchPollMs int    `json:"watchPollMs,omitempty"`
	LaneSeconds int    `json:"laneSeconds,omitempty"`
}

// Config is the main configuration structure
type Config struct {
	Output   OutputConfig   `json:"output"`
	Playback PlaybackConfig `json:"playback"`
	UI       UIConfig       `json:"ui,omitempty"`
}

// DefaultConfig returns a config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Output: OutputConfig{
			Program: -1,
			Volume:  0.8,
			Watch:   true,
		},
		Playback: PlaybackConfig{
			DefaultBPM:   120,
			ReferenceBPM: 120,
			MinPollMs:    1,
			MaxPollMs:    10,
			StopTimeout:  500,
			SeekStep:     5,
			TempoStep:    5,
		},
		UI: UIConfig{
			WatchPollMs: 1000,
			LaneSeconds: 8,
		},
	}
}

// ConfigDir returns the config directory path
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "go-pianoroll"), nil
}

// ConfigPath returns the full path to config.json
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

// Load reads the config from disk, or returns defaults if not found.
// Fields missing from the file keep their defaults.
func Load() (*Config, error) {
	path, err := ConfigPath()
	if err != nil {
		return DefaultConfig(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultConfig(), nil
		}
		return nil, err
	}

	cfg := DefaultConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	cfg.normalize()

	return cfg, nil
}

// Save writes the config to disk
func (c *Config) Save() error {
	dir, err := ConfigDir()
	if err != nil {
		return err
	}

	// Create directory if it doesn't exist
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	path, err := ConfigPath()
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

// normalize pulls hand-edited values back into range
func (c *Config) normalize() {
	d := DefaultConfig()
	if c.Output.Channel < 0 || c.Output.Channel > 15 {
		c.Output.Channel = d.Output.Channel
	}
	if c.Output.Program < -1 || c.Output.Program > 127 {
		c.Output.Program = d.Output.Program
	}
	if c.Output.Volume < 0 || c.Output.Volume > 1 {
		c.Output.Volume = d.Output.Volume
	}
	if c.Playback.DefaultBPM <= 0 {
		c.Playback.DefaultBPM = d.Playback.DefaultBPM
	}
	if c.Playback.ReferenceBPM <= 0 {
		c.Playback.ReferenceBPM = d.Playback.ReferenceBPM
	}
	if c.Playback.MinPollMs <= 0 || c.Playback.MaxPollMs < c.Playback.MinPollMs {
		c.Playback.MinPollMs = d.Playback.MinPollMs
		c.Playback.MaxPollMs = d.Playback.MaxPollMs
	}
	if c.Playback.StopTimeout <= 0 {
		c.Playback.StopTimeout = d.Playback.StopTimeout
	}
	if c.Playback.SeekStep <= 0 {
		c.Playback.SeekStep = d.Playback.SeekStep
	}
	if c.Playback.TempoStep <= 0 {
		c.Playback.TempoStep = d.Playback.TempoStep
	}
	if c.UI.WatchPollMs <= 0 {
		c.UI.WatchPollMs = d.UI.WatchPollMs
	}
	if c.UI.LaneSeconds <= 0 {
		c.UI.LaneSeconds = d.UI.LaneSeconds
	}
}

// MinPoll returns the minimum loop sleep
func (p PlaybackConfig) MinPoll() time.Duration {
	return time.Duration(p.MinPollMs) * time.Millisecond
}

// MaxPoll returns the maximum loop sleep
func (p PlaybackConfig) MaxPoll() time.Duration {
	return time.Duration(p.MaxPollMs) * time.Millisecond
}

// StopWait returns how long Stop waits for the loop
func (p PlaybackConfig) StopWait() time.Duration {
	return time.Duration(p.StopTimeout) * time.Millisecond
}

// WatchPoll returns the hot-plug poll rate
func (u UIConfig) WatchPoll() time.Duration {
	return time.Duration(u.WatchPollMs) * time.Millisecond
}

// RememberFile records the last opened file
func (c *Config) RememberFile(path string) {
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	c.UI.LastFile = path
}
