// Command sppchat is a Bluetooth Serial Port Profile chat client.
//
// Prerequisites
//   - Linux with BlueZ (bluetoothd) running and system D-Bus access.
//   - Adapter powered on: `bluetoothctl power on`.
//   - The peer should be known to BlueZ (paired or discovered) for the
//     profile strategy; the raw RFCOMM fallback only needs the address.
//
// Modes
//
//	sppchat chat 00:11:22:AA:BB:CC       interactive screen
//	sppchat pipe 00:11:22:AA:BB:CC       stdin lines out, received lines to stdout
//	sppchat serve --listen :8089         WebSocket bridge at /api/v1/events
//
// Messages are UTF-8 text terminated by a single newline.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	// Ctrl-C cancels the running mode; each mode disconnects before returning.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sig
		cancel()
	}()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
