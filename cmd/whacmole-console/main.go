//go:build !rp2040 && !rp2350

// whacmole-console is a raw serial console for a connected device: it
// prints the JSON frame stream and forwards typed command bytes. It is a
// debug tool, not the host relay.
package main

import (
	"bufio"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/tarm/serial"
)

var (
	portName string
	baud     int
)

var rootCmd = &cobra.Command{
	Use:   "whacmole-console",
	Short: "Raw serial console for a Whac-A-Mole device",
	Long: `Opens the device serial port, prints the newline-delimited JSON
frame stream and forwards single-byte commands typed on stdin
(P pause, R reset, S start, 1-8 level, I identify, D disconnect).`,
	RunE: func(cmd *cobra.Command, args []string) error {
		port, err := serial.OpenPort(&serial.Config{Name: portName, Baud: baud})
		if err != nil {
			return fmt.Errorf("open %s: %w", portName, err)
		}
		defer port.Close()

		go func() {
			if _, err := io.Copy(os.Stdout, port); err != nil {
				fmt.Fprintln(os.Stderr, "read:", err)
				os.Exit(1)
			}
		}()

		in := bufio.NewReader(os.Stdin)
		for {
			b, err := in.ReadByte()
			if err != nil {
				return nil
			}
			if b == '\n' || b == '\r' || b == ' ' {
				continue
			}
			if _, err := port.Write([]byte{b}); err != nil {
				return fmt.Errorf("write: %w", err)
			}
		}
	},
}

func main() {
	rootCmd.Flags().StringVarP(&portName, "port", "p", "/dev/ttyACM0", "serial port device")
	rootCmd.Flags().IntVarP(&baud, "baud", "b", 115200, "baud rate")
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
