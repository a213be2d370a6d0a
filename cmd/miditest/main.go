package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	"go-pianoroll/midi"
	"go-pianoroll/notes"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		return
	}
	defer midi.CloseDriver()

	arg := func(i int) string {
		if len(os.Args) > i {
			return os.Args[i]
		}
		return ""
	}

	switch os.Args[1] {
	case "list":
		listPorts()
	case "note":
		testNote(arg(2))
	case "panic":
		sendPanic(arg(2))
	case "poll":
		pollDevices(arg(2))
	case "scale":
		writeScale(arg(2))
	default:
		usage()
	}
}

func usage() {
	fmt.Println("MIDI Test Scripts")
	fmt.Println("")
	fmt.Println("Commands:")
	fmt.Println("  list          - List MIDI output ports")
	fmt.Println("  note [port]   - Play middle C for one second")
	fmt.Println("  panic [port]  - All sound off on every channel")
	fmt.Println("  poll [port]   - Watch for the port to come and go")
	fmt.Println("  scale <file>  - Write a C major scale as a MIDI file")
}

func listPorts() {
	fmt.Println("=== MIDI Output Ports ===")
	fmt.Println("(waiting up to 3 seconds...)")

	names, err := midi.ListOutPorts()
	if err != nil {
		fmt.Printf("\n%v\n", err)
		fmt.Println("Fix: sudo killall coreaudiod midiserver")
		return
	}
	for i, n := range names {
		fmt.Printf("  %d: %s\n", i, n)
	}
}

func openOutput(name string) (*midi.PortSink, *midi.Output, bool) {
	port, err := midi.OpenPortSink(name)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return nil, nil, false
	}
	fmt.Printf("Using %s\n", port.Name())
	return port, midi.NewOutput(port), true
}

func testNote(name string) {
	port, out, ok := openOutput(name)
	if !ok {
		return
	}
	defer port.Close()

	fmt.Println("Note on C4...")
	out.NoteOn(0, 60, 100)
	time.Sleep(time.Second)
	out.NoteOff(0, 60)
	out.AllNotesOff(0)
	fmt.Println("Done!")
}

func sendPanic(name string) {
	port, out, ok := openOutput(name)
	if !ok {
		return
	}
	defer port.Close()

	out.Panic()
	fmt.Println("Sent all sound off + all notes off on 16 channels")
}

func pollDevices(name string) {
	fmt.Println("Polling for device changes every 2 seconds...")
	fmt.Println("Connect/disconnect the synth to test. Ctrl+C to exit.")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	w := midi.NewWatcher(name, 2*time.Second)
	go w.Run(ctx)

	for event := range w.Events() {
		switch event.Type {
		case midi.DeviceConnected:
			fmt.Printf("[%s] connected: %s\n", time.Now().Format("15:04:05"), event.Name)
		case midi.DeviceDisconnected:
			fmt.Printf("[%s] disconnected: %s\n", time.Now().Format("15:04:05"), event.Name)
			event.Port.Close()
		}
	}
}

func writeScale(path string) {
	if path == "" {
		usage()
		return
	}
	var ns []notes.Note
	for i, pitch := range []int{60, 62, 64, 65, 67, 69, 71, 72} {
		start := float64(i) * 0.5
		ns = append(ns, notes.Note{Pitch: pitch, Velocity: 96, Start: start, End: start + 0.45})
	}
	if err := notes.WriteSMF(path, ns, 120, 0); err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	fmt.Printf("Wrote %d notes to %s\n", len(ns), path)
}
