// SPDX-License-Identifier: MIT
package cmd

import (
	"io"
	"os"
	"slices"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"musualiser/internal/config"
	"musualiser/pkg/build"
)

// Command is the action chosen on the command line.
type Command string

const (
	// CommandNone means cobra already handled the invocation (help, version).
	CommandNone Command = ""
	CommandRun  Command = "run"
	CommandList Command = "list"
	CommandPlay Command = "play"
)

// Options is the parsed command line. Flag values only replace config file
// values when the flag was given.
type Options struct {
	Command    Command
	ConfigPath string
	Files      []string
	Headless   bool
	Record     string

	flags values
	set   *pflag.FlagSet
}

// values mirrors the config fields that have a flag.
type values struct {
	device          string
	pid             uint32
	sampleRate      int
	channels        int
	framesPerBuffer int
	lowLatency      bool
	frequency       int
	window          string
	buckets         int
	fps             int
	handoff         string
	websocket       string
	udp             string
	logFile         string
	verbose         bool
}

// ParseArgs runs the cobra command tree over args and reports what to do.
func ParseArgs(args []string) (*Options, error) {
	return parse(args, os.Stdout)
}

func parse(args []string, out io.Writer) (*Options, error) {
	buildInfo := build.GetBuildFlags()
	options := &Options{}

	rootCmd := &cobra.Command{
		Use:           buildInfo.Name,
		Short:         buildInfo.Description,
		Version:       buildInfo.Summary(),
		SilenceErrors: true,
		SilenceUsage:  true,
		Args:          cobra.NoArgs,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd:   true,
			DisableDescriptions: true,
			DisableNoDescFlag:   true,
			HiddenDefaultCmd:    true,
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			options.Command = CommandRun
			return nil
		},
	}
	rootCmd.SetOut(out)
	rootCmd.SetHelpCommand(&cobra.Command{Hidden: true})

	rootCmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List audio devices and capturable sources",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			options.Command = CommandList
			return nil
		},
	})

	rootCmd.AddCommand(&cobra.Command{
		Use:   "play <file>...",
		Short: "Play and visualise audio files (wav, mp3, ogg)",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			options.Command = CommandPlay
			options.Files = args
			return nil
		},
	})

	v := &options.flags
	flags := rootCmd.PersistentFlags()

	flags.StringVarP(&options.ConfigPath, "config", "C", "",
		"Path to a YAML config file (default: ./config.yaml or ./musualiser.yaml)")

	// Capture source
	flags.StringVarP(&v.device, "device", "d", "",
		"Capture device name. Empty follows the system default. Use 'list' to see devices.")
	flags.Uint32VarP(&v.pid, "pid", "p", 0,
		"Capture a single process's audio session")
	flags.IntVarP(&v.sampleRate, "sample-rate", "s", config.DefaultSampleRate,
		"Sample rate, measured in Hertz (Hz)")
	flags.IntVarP(&v.channels, "channels", "c", config.DefaultChannels,
		"Channels requested from the device; only the first is analysed")
	flags.IntVarP(&v.framesPerBuffer, "frames-per-buffer", "b", config.DefaultFramesPerBuffer,
		"The number of frames per buffer (affects latency)")
	flags.BoolVarP(&v.lowLatency, "low-latency", "l", config.DefaultLowLatency,
		"Use low latency mode for real-time processing")

	// Analysis and rendering
	flags.IntVarP(&v.frequency, "frequency", "f", config.DefaultAnalysisFrequency,
		"Analysis windows per second; the window length is sample-rate / frequency")
	flags.StringVarP(&v.window, "window", "w", config.DefaultWindowFunc,
		"Window function applied before the transform (none, hann, hamming, ...)")
	flags.IntVar(&v.buckets, "buckets", config.DefaultBuckets,
		"Display buckets per curve")
	flags.IntVar(&v.fps, "fps", config.DefaultFPS,
		"Render frames per second")
	flags.StringVar(&v.handoff, "handoff", config.DefaultHandoff,
		"Batch handoff between capture and render: queue or slot")

	// Transports
	flags.StringVar(&v.websocket, "websocket", "",
		"Serve curves over WebSocket at this address (e.g. :8080)")
	flags.StringVar(&v.udp, "udp", "",
		"Publish curves as UDP packets to this address (e.g. 127.0.0.1:9090)")

	// Recording and output
	flags.StringVarP(&options.Record, "record", "r", "",
		"Record the captured stream to this WAV file")
	flags.BoolVar(&options.Headless, "headless", false,
		"Run without the terminal UI until interrupted")

	// Debug
	flags.StringVar(&v.logFile, "log-file", "",
		"Write logs to this file")
	flags.BoolVarP(&v.verbose, "verbose", "v", false,
		"Show verbose output")

	options.set = flags

	rootCmd.SetArgs(args)
	if err := rootCmd.Execute(); err != nil {
		return nil, err
	}
	return options, nil
}

// Apply layers the given flags over cfg. Files from 'play' go ahead of the
// configured playlist, so the first of them is song 1.
func (o *Options) Apply(cfg *config.Config) {
	changed := func(name string) bool {
		return o.set != nil && o.set.Changed(name)
	}
	v := o.flags

	if changed("device") {
		cfg.Audio.Device = v.device
	}
	if changed("pid") {
		cfg.Audio.ProcessID = v.pid
	}
	if changed("sample-rate") {
		cfg.Audio.SampleRate = v.sampleRate
	}
	if changed("channels") {
		cfg.Audio.Channels = v.channels
	}
	if changed("frames-per-buffer") {
		cfg.Audio.FramesPerBuffer = v.framesPerBuffer
	}
	if changed("low-latency") {
		cfg.Audio.LowLatency = v.lowLatency
	}
	if changed("frequency") {
		cfg.Analysis.Frequency = v.frequency
	}
	if changed("window") {
		cfg.Analysis.Window = v.window
	}
	if changed("buckets") {
		cfg.Render.Buckets = v.buckets
	}
	if changed("fps") {
		cfg.Render.FPS = v.fps
	}
	if changed("handoff") {
		cfg.Render.Handoff = v.handoff
	}
	if changed("websocket") {
		cfg.Transport.WebSocketEnabled = v.websocket != ""
		cfg.Transport.WebSocketAddr = v.websocket
	}
	if changed("udp") {
		cfg.Transport.UDPEnabled = v.udp != ""
		cfg.Transport.UDPTargetAddress = v.udp
	}
	if changed("log-file") {
		cfg.LogFile = v.logFile
	}
	if changed("verbose") && v.verbose {
		cfg.LogLevel = "debug"
	}

	if len(o.Files) > 0 {
		cfg.Files = append(slices.Clone(o.Files), cfg.Files...)
	}
}
