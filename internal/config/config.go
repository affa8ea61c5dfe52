package config

import "time"

// Defaults and limits for the visualiser. Values here seed Default() before a
// config file, environment overrides and CLI flags are applied.
const (
	DefaultLogLevel        = "info"
	DefaultSampleRate      = 44100 // CD-quality audio
	DefaultChannels        = 1     // Mono capture
	DefaultFramesPerBuffer = 1024
	DefaultLowLatency      = false

	DefaultAnalysisFrequency = 5      // Windows analysed per second
	DefaultWindowFunc        = "none" // No taper before the transform

	DefaultBuckets = 150
	DefaultFPS     = 30
	DefaultHandoff = "queue"

	DefaultBufferTimeout = 2 * time.Second

	DefaultWebSocketAddr    = ":8080"
	DefaultUDPTargetAddress = "127.0.0.1:9090"
	DefaultUDPSendInterval  = 33 * time.Millisecond // ~30Hz

	// Hardware and processing limits
	MinSampleRate   = 8000   // Minimum usable sample rate (Hz)
	MaxSampleRate   = 192000 // Maximum supported sample rate (Hz)
	MaxBufferFrames = 8192
	MinWindowLength = 2
	MinBuckets      = 2
	MaxFPS          = 240
)

// Default returns a Config populated with built-in defaults.
func Default() *Config {
	return &Config{
		LogLevel: DefaultLogLevel,
		Audio: AudioConfig{
			SampleRate:      DefaultSampleRate,
			Channels:        DefaultChannels,
			FramesPerBuffer: DefaultFramesPerBuffer,
			LowLatency:      DefaultLowLatency,
		},
		Analysis: AnalysisConfig{
			Frequency: DefaultAnalysisFrequency,
			Window:    DefaultWindowFunc,
		},
		Render: RenderConfig{
			Buckets: DefaultBuckets,
			FPS:     DefaultFPS,
			Handoff: DefaultHandoff,
		},
		Capture: CaptureConfig{
			BufferTimeout: DefaultBufferTimeout,
		},
		Transport: TransportConfig{
			WebSocketAddr:    DefaultWebSocketAddr,
			UDPTargetAddress: DefaultUDPTargetAddress,
			UDPSendInterval:  DefaultUDPSendInterval,
		},
	}
}
