// SPDX-License-Identifier: MIT
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"musualiser/cmd"
	"musualiser/internal/analysis"
	"musualiser/internal/audio"
	"musualiser/internal/config"
	"musualiser/internal/handoff"
	"musualiser/internal/log"
	"musualiser/internal/media"
	"musualiser/internal/render"
	"musualiser/internal/transport"
	"musualiser/internal/transport/udp"
	"musualiser/internal/tui"
	"musualiser/pkg/build"
)

const closeTimeout = 3 * time.Second

// main runs in three phases:
//
//  1. Startup: build info, command line, config, logging, PortAudio.
//  2. Run: the capture controller and file player feed one handoff channel;
//     the TUI (or the headless loop) renders from it and feeds the transports.
//  3. Shutdown: everything opened in startup is closed in reverse order.
func main() {
	if err := build.Initialize(); err != nil {
		log.Debugf("development build: %v", err)
	}

	opts, err := cmd.ParseArgs(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	if opts.Command == cmd.CommandNone {
		return
	}

	cfg, err := config.LoadConfig(opts.ConfigPath)
	if err != nil {
		log.Fatalf("%v", err)
	}
	opts.Apply(cfg)
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	closeLog, err := setupLogging(cfg, opts)
	if err != nil {
		log.Fatalf("%v", err)
	}
	defer closeLog()

	if err := audio.Initialize(); err != nil {
		log.Fatalf("%v", err)
	}
	defer audio.Terminate()

	if opts.Command == cmd.CommandList {
		err = listSources(os.Stdout)
	} else {
		err = run(cfg, opts)
	}
	if err != nil {
		log.Errorf("%v", err)
		closeLog()
		audio.Terminate()
		os.Exit(1)
	}
}

// setupLogging applies the level and moves output to a file when one is set.
// The terminal UI owns the screen, so it always logs to a file.
func setupLogging(cfg *config.Config, opts *cmd.Options) (func(), error) {
	level, _ := log.ParseLevel(cfg.LogLevel)
	log.SetLevel(level)

	path := cfg.LogFile
	if path == "" && !opts.Headless {
		path = filepath.Join(os.TempDir(), build.GetBuildFlags().Name+".log")
	}
	if path == "" {
		return func() {}, nil
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	log.SetOutput(f)
	return func() {
		log.SetOutput(os.Stderr)
		f.Close()
	}, nil
}

func listSources(w *os.File) error {
	if err := audio.ListDevices(w); err != nil {
		return err
	}
	sessions, err := audio.PortAudioBackend{}.Sessions()
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "Capture Sources\n\n")
	for _, s := range sessions {
		fmt.Fprintf(w, "  %s\n", s.Target())
	}
	return nil
}

func run(cfg *config.Config, opts *cmd.Options) (err error) {
	window, err := analysis.ParseWindowFunc(cfg.Analysis.Window)
	if err != nil {
		return err
	}
	mode, err := handoff.ParseMode(cfg.Render.Handoff)
	if err != nil {
		return err
	}
	ch, err := handoff.New(mode)
	if err != nil {
		return err
	}
	defer ch.Close()

	planner := analysis.NewPlanner()
	renderer := render.NewRenderer(ch, render.NewPostProcessor(cfg.Render.Buckets))

	var tap audio.Tap
	if opts.Record != "" {
		rec := media.NewRecorder(opts.Record)
		defer func() {
			if cerr := rec.Close(); cerr != nil {
				err = errors.Join(err, fmt.Errorf("finish recording: %w", cerr))
				return
			}
			if rec.Frames() > 0 {
				log.Infof("recording saved to %s (%d frames)", rec.Path(), rec.Frames())
			}
		}()
		tap = rec
	}

	target := audio.SystemTarget(cfg.Audio.Device)
	if cfg.Audio.ProcessID != 0 {
		target = audio.ProcessTarget(cfg.Audio.ProcessID, cfg.Audio.ProcessName)
	}
	backend := audio.PortAudioBackend{}
	controller := audio.NewController(backend, planner, ch, audio.Options{
		Format: audio.Format{
			SampleRate:      cfg.Audio.SampleRate,
			Channels:        cfg.Audio.Channels,
			FramesPerBuffer: cfg.Audio.FramesPerBuffer,
			LowLatency:      cfg.Audio.LowLatency,
		},
		AnalysisFrequency: cfg.Analysis.Frequency,
		Window:            window,
		BufferTimeout:     cfg.Capture.BufferTimeout,
		Target:            target,
		Tap:               tap,
	})
	defer func() {
		if cerr := controller.Close(closeTimeout); cerr != nil {
			log.Warnf("%v", cerr)
		}
	}()

	output := media.PortAudioOutput
	if opts.Headless {
		output = media.NullOutput
	}
	player := media.NewPlayer(nil, planner, ch, output, cfg.Analysis.Frequency, window)
	player.UpdateOpenSongs(cfg.Files)
	defer player.Close()

	tr, err := openTransports(cfg, opts)
	if err != nil {
		return err
	}
	defer tr.Close()

	if cfg.Transport.UDPEnabled {
		closePub, err := openPublisher(cfg, renderer)
		if err != nil {
			return err
		}
		defer closePub()
	}

	uiMode := tui.ModeLive
	if opts.Command == cmd.CommandPlay {
		uiMode = tui.ModeFile
		if err := player.ChangeCurrentSong(1); err != nil {
			log.Errorf("%v", err)
		}
	} else if err := controller.Start(); err != nil {
		log.Errorf("start capture: %v", err)
	}

	var files tui.FileSource
	if len(player.OpenSongs()) > 1 {
		files = player
	}
	uiOpts := tui.Options{
		Title:     build.GetBuildFlags().Name,
		Live:      controller,
		Sessions:  backend.Sessions,
		Files:     files,
		Renderer:  renderer,
		Transport: tr,
		FPS:       cfg.Render.FPS,
		Mode:      uiMode,
	}

	if opts.Headless {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return tui.RunHeadless(ctx, uiOpts)
	}
	return tui.Run(uiOpts)
}

// openTransports builds the curve fan-out. Headless runs always log a summary
// of each curve so there is something to watch.
func openTransports(cfg *config.Config, opts *cmd.Options) (transport.Multi, error) {
	var out transport.Multi
	if opts.Headless {
		out = append(out, transport.NewLoggingTransport())
	}
	if cfg.Transport.WebSocketEnabled {
		ws, err := transport.NewWebSocketTransport(cfg.Transport.WebSocketAddr)
		if err != nil {
			return nil, err
		}
		log.Infof("serving curves on ws://%s/ws", ws.Addr())
		out = append(out, ws)
	}
	return out, nil
}

// openPublisher starts the UDP publisher on the renderer's latest curve. The
// returned func stops it and closes the socket.
func openPublisher(cfg *config.Config, renderer *render.Renderer) (func(), error) {
	sender, err := udp.NewSender(cfg.Transport.UDPTargetAddress)
	if err != nil {
		return nil, err
	}
	pub, err := udp.NewPublisher(cfg.Transport.UDPSendInterval, sender, renderer)
	if err != nil {
		sender.Close()
		return nil, err
	}
	pub.Start()
	log.Infof("publishing curves to udp://%s", cfg.Transport.UDPTargetAddress)
	return func() {
		pub.Close()
		sender.Close()
	}, nil
}
