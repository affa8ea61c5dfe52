// SPDX-License-Identifier: MIT
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"musualiser/internal/analysis"
	"musualiser/internal/handoff"
	"musualiser/internal/log"
)

var logger = log.Named("config")

// Config represents the main application configuration structure, loaded from YAML.
type Config struct {
	LogLevel  string          `yaml:"log_level"` // Logging level (e.g., "debug", "info", "warn", "error").
	LogFile   string          `yaml:"log_file"`  // Log destination; empty means stderr, forced to a file by the TUI.
	Audio     AudioConfig     `yaml:"audio"`
	Analysis  AnalysisConfig  `yaml:"analysis"`
	Render    RenderConfig    `yaml:"render"`
	Capture   CaptureConfig   `yaml:"capture"`
	Transport TransportConfig `yaml:"transport"`
	Files     []string        `yaml:"files"` // Initial playlist for file playback.
}

// AudioConfig holds settings for the live capture source and file playback output.
type AudioConfig struct {
	Device          string `yaml:"device"`            // Capture device name; empty follows the system default.
	ProcessID       uint32 `yaml:"process_id"`        // Capture a single process's audio session when non-zero.
	ProcessName     string `yaml:"process_name"`      // Display name for ProcessID.
	SampleRate      int    `yaml:"sample_rate"`       // Requested capture rate in Hz.
	Channels        int    `yaml:"channels"`          // Channels requested from the device; only the first is analysed.
	FramesPerBuffer int    `yaml:"frames_per_buffer"` // Frames per device read.
	LowLatency      bool   `yaml:"low_latency"`       // Request low latency settings from PortAudio device.
}

// AnalysisConfig holds settings for windowing and the transform.
type AnalysisConfig struct {
	Frequency int    `yaml:"frequency"` // Window length is sample_rate / frequency.
	Window    string `yaml:"window"`    // Taper name, e.g. "none", "hann".
}

// RenderConfig holds settings for the display curve.
type RenderConfig struct {
	Buckets int    `yaml:"buckets"` // Display buckets per curve.
	FPS     int    `yaml:"fps"`     // Render ticks per second.
	Handoff string `yaml:"handoff"` // "queue" or "slot".
}

// CaptureConfig holds capture goroutine settings.
type CaptureConfig struct {
	BufferTimeout time.Duration `yaml:"buffer_timeout"` // Longest wait for a device buffer before the session ends.
}

// TransportConfig holds settings related to sending display curves over the network.
type TransportConfig struct {
	WebSocketEnabled bool          `yaml:"websocket_enabled"`
	WebSocketAddr    string        `yaml:"websocket_addr"`     // Listen address for the /ws endpoint.
	UDPEnabled       bool          `yaml:"udp_enabled"`        // Enable sending curves over UDP.
	UDPTargetAddress string        `yaml:"udp_target_address"` // Target address and port for UDP packets (e.g., "127.0.0.1:9090").
	UDPSendInterval  time.Duration `yaml:"udp_send_interval"`  // Interval between sending UDP packets.
}

// LoadConfig loads configuration from a YAML file specified by path. If path is empty,
// it searches default locations ("config.yaml", "musualiser.yaml"). If no file is found,
// it uses built-in defaults. After loading defaults or from file, it applies environment
// variable overrides. The result is not validated: callers layer command line
// flags on top and then call Validate once.
func LoadConfig(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		for _, candidate := range []string{"config.yaml", "musualiser.yaml"} {
			if _, err := os.Stat(candidate); err == nil {
				path = candidate
				break
			}
		}
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
		logger.Debugf("loaded %s", path)
	}

	// Apply environment variable overrides AFTER loading from file.
	cfg.applyEnvOverrides()

	return cfg, nil
}

// WindowLength returns the analysis window length implied by the audio and
// analysis settings.
func (c *Config) WindowLength() int {
	if c.Analysis.Frequency <= 0 {
		return 0
	}
	return c.Audio.SampleRate / c.Analysis.Frequency
}

// Validate checks ranges and names. All problems are reported together.
func (c *Config) Validate() error {
	var errs []error

	if _, ok := log.ParseLevel(c.LogLevel); !ok {
		errs = append(errs, fmt.Errorf("log_level %q is not recognised", c.LogLevel))
	}

	if c.Audio.SampleRate < MinSampleRate || c.Audio.SampleRate > MaxSampleRate {
		errs = append(errs, fmt.Errorf("audio.sample_rate %d outside [%d, %d]", c.Audio.SampleRate, MinSampleRate, MaxSampleRate))
	}
	if c.Audio.Channels < 1 {
		errs = append(errs, fmt.Errorf("audio.channels must be at least 1, got %d", c.Audio.Channels))
	}
	if c.Audio.FramesPerBuffer < 1 || c.Audio.FramesPerBuffer > MaxBufferFrames {
		errs = append(errs, fmt.Errorf("audio.frames_per_buffer %d outside [1, %d]", c.Audio.FramesPerBuffer, MaxBufferFrames))
	}

	if c.Analysis.Frequency <= 0 {
		errs = append(errs, fmt.Errorf("analysis.frequency must be positive, got %d", c.Analysis.Frequency))
	} else if n := c.WindowLength(); n < MinWindowLength {
		errs = append(errs, fmt.Errorf("analysis window length %d is below %d", n, MinWindowLength))
	}
	if _, err := analysis.ParseWindowFunc(c.Analysis.Window); err != nil {
		errs = append(errs, fmt.Errorf("analysis.window: %w", err))
	}

	if c.Render.Buckets < MinBuckets {
		errs = append(errs, fmt.Errorf("render.buckets must be at least %d, got %d", MinBuckets, c.Render.Buckets))
	}
	if c.Render.FPS < 1 || c.Render.FPS > MaxFPS {
		errs = append(errs, fmt.Errorf("render.fps %d outside [1, %d]", c.Render.FPS, MaxFPS))
	}
	if _, err := handoff.ParseMode(c.Render.Handoff); err != nil {
		errs = append(errs, fmt.Errorf("render.handoff: %w", err))
	}

	if c.Capture.BufferTimeout <= 0 {
		errs = append(errs, fmt.Errorf("capture.buffer_timeout must be positive"))
	}

	if c.Transport.WebSocketEnabled && c.Transport.WebSocketAddr == "" {
		errs = append(errs, fmt.Errorf("transport.websocket_addr must be set when the websocket is enabled"))
	}
	if c.Transport.UDPEnabled {
		if !strings.Contains(c.Transport.UDPTargetAddress, ":") {
			errs = append(errs, fmt.Errorf("transport.udp_target_address %q appears invalid (missing port?)", c.Transport.UDPTargetAddress))
		}
		if c.Transport.UDPSendInterval <= 0 {
			errs = append(errs, fmt.Errorf("transport.udp_send_interval must be positive when UDP is enabled"))
		}
	}

	return errors.Join(errs...)
}

// applyEnvOverrides replaces file values with ENV_* variables when set and parseable.
func (c *Config) applyEnvOverrides() {
	// ENV_LOG_LEVEL
	if val, ok := os.LookupEnv("ENV_LOG_LEVEL"); ok {
		c.LogLevel = val
		logger.Infof("overriding log_level from env: %s", val)
	}

	// ENV_AUDIO_{...}

	// ENV_AUDIO_DEVICE
	if val, ok := os.LookupEnv("ENV_AUDIO_DEVICE"); ok {
		c.Audio.Device = val
		logger.Infof("overriding audio.device from env: %s", val)
	}
	// ENV_AUDIO_SAMPLE_RATE
	if val, ok := os.LookupEnv("ENV_AUDIO_SAMPLE_RATE"); ok {
		if n, err := strconv.Atoi(val); err == nil {
			c.Audio.SampleRate = n
			logger.Infof("overriding audio.sample_rate from env: %d", n)
		}
	}

	// ENV_RENDER_HANDOFF
	if val, ok := os.LookupEnv("ENV_RENDER_HANDOFF"); ok {
		c.Render.Handoff = val
		logger.Infof("overriding render.handoff from env: %s", val)
	}

	// ENV_WS_{...} and ENV_UDP_{...}
	// These are specific to the transport layer.

	// ENV_WS_ENABLED
	if val, ok := os.LookupEnv("ENV_WS_ENABLED"); ok {
		if bVal, err := strconv.ParseBool(val); err == nil {
			c.Transport.WebSocketEnabled = bVal
			logger.Infof("overriding transport.websocket_enabled from env: %v", bVal)
		}
	}
	// ENV_WS_ADDR
	if val, ok := os.LookupEnv("ENV_WS_ADDR"); ok {
		c.Transport.WebSocketAddr = val
		logger.Infof("overriding transport.websocket_addr from env: %s", val)
	}
	// ENV_UDP_ENABLED
	if val, ok := os.LookupEnv("ENV_UDP_ENABLED"); ok {
		if bVal, err := strconv.ParseBool(val); err == nil {
			c.Transport.UDPEnabled = bVal
			logger.Infof("overriding transport.udp_enabled from env: %v", bVal)
		}
	}
	// ENV_UDP_TARGET_ADDRESS
	if val, ok := os.LookupEnv("ENV_UDP_TARGET_ADDRESS"); ok {
		c.Transport.UDPTargetAddress = val
		logger.Infof("overriding transport.udp_target_address from env: %s", val)
	}
	// ENV_UDP_SEND_INTERVAL
	if val, ok := os.LookupEnv("ENV_UDP_SEND_INTERVAL"); ok {
		if dur, err := time.ParseDuration(val); err == nil {
			c.Transport.UDPSendInterval = dur
			logger.Infof("overriding transport.udp_send_interval from env: %s", dur)
		}
	}
}
