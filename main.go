package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli"

	"go-pianoroll/config"
	"go-pianoroll/debug"
	"go-pianoroll/midi"
	"go-pianoroll/notes"
	"go-pianoroll/playback"
	"go-pianoroll/theme"
	"go-pianoroll/tui"
)

var version = "dev"

func main() {
	app := cli.NewApp()
	app.Version = version
	app.Compiled = time.Now()
	app.Name = "go-pianoroll"
	app.Usage = "play a MIDI file through a MIDI output"
	app.UsageText = "go-pianoroll [options] -f song.mid"
	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:  "file,f",
			Usage: "Standard MIDI File to play (defaults to the last file played)",
		},
		cli.StringFlag{
			Name:  "port,p",
			Usage: "output port name or part of it (defaults to the first port)",
		},
		cli.IntFlag{
			Name:  "channel",
			Value: 1,
			Usage: "MIDI channel to play on, 1-16",
		},
		cli.Float64Flag{
			Name:  "bpm",
			Value: 120,
			Usage: "playback tempo",
		},
		cli.IntFlag{
			Name:  "program",
			Value: -1,
			Usage: "General MIDI program to select before playing, 0-127",
		},
		cli.Float64Flag{
			Name:  "volume",
			Value: 0.8,
			Usage: "channel volume, 0-1",
		},
		cli.StringFlag{
			Name:  "export",
			Usage: "write the loaded notes to this file at --bpm and exit",
		},
		cli.BoolFlag{
			Name:  "list",
			Usage: "list output ports and exit",
		},
		cli.BoolFlag{
			Name:  "dry-run",
			Usage: "log events instead of sending them",
		},
		cli.BoolFlag{
			Name:  "headless",
			Usage: "no UI: play once to the end and print a report",
		},
		cli.BoolFlag{
			Name:  "debug",
			Usage: "write a debug log (stderr when headless)",
		},
	}

	app.Action = run

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v (using defaults)\n", err)
		cfg = config.DefaultConfig()
	}
	applyFlags(c, cfg)

	if err := setupLogging(c); err != nil {
		return err
	}
	defer debug.Disable()

	defer midi.CloseDriver()
	if c.Bool("list") {
		return listPorts()
	}

	path := c.String("file")
	if path == "" {
		path = cfg.UI.LastFile
	}
	if path == "" {
		return errors.New("no file given, use -f song.mid")
	}
	ns, err := notes.ReadSMF(path)
	if err != nil {
		return err
	}
	debug.Category("main").WithFields(log.Fields{"file": path, "notes": len(ns)}).Info("loaded")

	if out := c.String("export"); out != "" {
		if err := notes.WriteSMF(out, ns, cfg.Playback.DefaultBPM, uint8(cfg.Output.Channel)); err != nil {
			return err
		}
		fmt.Printf("wrote %d notes to %s\n", len(ns), out)
		return nil
	}

	cfg.RememberFile(path)
	if err := cfg.Save(); err != nil {
		debug.Log("main", "save config: %v", err)
	}

	ctrl := playback.New(nil,
		playback.WithChannel(cfg.Output.Channel),
		playback.WithTempo(cfg.Playback.DefaultBPM),
		playback.WithReferenceBPM(cfg.Playback.ReferenceBPM),
		playback.WithPollInterval(cfg.Playback.MinPoll(), cfg.Playback.MaxPoll()),
		playback.WithStopTimeout(cfg.Playback.StopWait()),
	)
	if err := ctrl.SetNotes(ns); err != nil {
		return err
	}
	if cfg.Output.Program >= 0 {
		ctrl.SetInstrument(cfg.Output.Program)
	}
	ctrl.SetVolume(cfg.Output.Volume)

	if c.Bool("headless") {
		return runHeadless(ctrl, cfg, c.Bool("dry-run"))
	}
	return runTUI(ctrl, cfg, path, c.Bool("dry-run"))
}

// applyFlags lets explicit flags win over the config file
func applyFlags(c *cli.Context, cfg *config.Config) {
	if c.IsSet("port") {
		cfg.Output.PortName = c.String("port")
	}
	if c.IsSet("channel") {
		if ch := c.Int("channel"); ch >= 1 && ch <= 16 {
			cfg.Output.Channel = ch - 1
		}
	}
	if c.IsSet("bpm") && c.Float64("bpm") > 0 {
		cfg.Playback.DefaultBPM = c.Float64("bpm")
	}
	if c.IsSet("program") {
		cfg.Output.Program = c.Int("program")
	}
	if c.IsSet("volume") {
		cfg.Output.Volume = c.Float64("volume")
	}
}

func setupLogging(c *cli.Context) error {
	switch {
	case c.Bool("headless") && (c.Bool("debug") || c.Bool("dry-run")):
		debug.EnableWriter(os.Stderr)
		if !c.Bool("debug") {
			debug.SetLevel(log.InfoLevel)
		}
	case c.Bool("debug"):
		return debug.Enable()
	}
	return nil
}

func listPorts() error {
	names, err := midi.ListOutPorts()
	if err != nil {
		return err
	}
	if len(names) == 0 {
		fmt.Println("no MIDI output ports")
		return nil
	}
	for i, n := range names {
		fmt.Printf("  %d: %s\n", i, n)
	}
	return nil
}

func runTUI(ctrl *playback.Controller, cfg *config.Config, path string, dryRun bool) error {
	palette, err := theme.Load(cfg.UI.PalettePath)
	if err != nil {
		debug.Log("main", "palette: %v", err)
		palette = theme.Plasma()
	}
	th := theme.New(palette)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var watcher *midi.Watcher
	var outputName string
	switch {
	case dryRun:
		if err := ctrl.SetSink(midi.NewLogSink()); err != nil {
			return err
		}
		outputName = "dry run"
	case cfg.Output.Watch:
		// Watcher handles hot-plug; the TUI installs its ports
		watcher = midi.NewWatcher(cfg.Output.PortName, cfg.UI.WatchPoll())
		go watcher.Run(ctx)
	default:
		port, err := midi.OpenPortSink(cfg.Output.PortName)
		if err != nil {
			return err
		}
		defer port.Close()
		if err := ctrl.SetSink(port); err != nil {
			return err
		}
		outputName = port.Name()
	}

	m := tui.NewModel(ctrl, watcher, th, tui.Options{
		File:        path,
		SeekStep:    cfg.Playback.SeekStep,
		TempoStep:   cfg.Playback.TempoStep,
		LaneSeconds: float64(cfg.UI.LaneSeconds),
		Output:      outputName,
	})

	p := tea.NewProgram(m, tea.WithAltScreen())
	_, err = p.Run()

	if cerr := ctrl.Close(); cerr != nil {
		fmt.Fprintf(os.Stderr, "stop: %v\n", cerr)
	}
	return err
}

func runHeadless(ctrl *playback.Controller, cfg *config.Config, dryRun bool) error {
	rec := midi.NewRecorder()
	sinks := midi.Tee{rec}

	if dryRun {
		sinks = append(sinks, midi.NewLogSink())
	} else {
		port, err := midi.OpenPortSink(cfg.Output.PortName)
		if err != nil {
			return err
		}
		defer port.Close()
		sinks = append(sinks, port)
		fmt.Printf("playing on %s\n", port.Name())
	}
	if err := ctrl.SetSink(sinks); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	start := time.Now()
	ctrl.Play()
	if !ctrl.IsPlaying() {
		return errors.New("nothing to play")
	}

	interrupted := false
	select {
	case <-ctrl.Done():
	case <-ctx.Done():
		interrupted = true
	}
	err := ctrl.Close()

	printReport(rec, time.Since(start), ctrl.Duration(), interrupted)
	return err
}

func printReport(rec *midi.Recorder, elapsed time.Duration, duration float64, interrupted bool) {
	status := "finished"
	if interrupted {
		status = "interrupted"
	}
	fmt.Printf("%s after %s (arrangement %.1fs)\n", status, elapsed.Round(time.Millisecond), duration)
	fmt.Printf("  note on:        %d\n", len(rec.Filter(midi.NoteOn)))
	fmt.Printf("  note off:       %d\n", len(rec.Filter(midi.NoteOff)))
	fmt.Printf("  control change: %d\n", len(rec.Filter(midi.CC)))
	fmt.Printf("  program change: %d\n", len(rec.Filter(midi.Program)))

	stuck := 0
	for ch, keys := range rec.Sounding() {
		stuck += len(keys)
		for _, k := range keys {
			fmt.Printf("  still sounding: ch %d %s\n", ch+1, midi.NoteName(int(k)))
		}
	}
	if stuck == 0 {
		fmt.Println("  no stuck notes")
	}
}
