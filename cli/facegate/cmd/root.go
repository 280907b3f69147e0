package cmd

import (
	"fmt"
	"os"

	"facegate.humanid.io/infrastructure/biometric"
	"github.com/spf13/cobra"
)

// Options holds shared configuration for the capture commands
type Options struct {
	VideoPath string
	Device    int
}

// Version is the application version.
const Version = "0.0.1"

var rootCmd = &cobra.Command{
	Use:     "facegate",
	Short:   "Face enrollment and verification from the terminal",
	Version: Version,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		biometric.InitialiseFaceGate()
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		biometric.FaceGate.Close()
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// die prints a failure message and terminates the process.
func die(msg string, err error) {
	if err != nil {
		fmt.Fprintf(os.Stderr, "✗ %s: %v\n", msg, err)
	} else {
		fmt.Fprintf(os.Stderr, "✗ %s\n", msg)
	}
	os.Exit(1)
}

// openSource resolves the capture flags into a frame source.
func openSource(opts Options) (biometric.FrameSource, error) {
	if opts.VideoPath != "" {
		return biometric.NewVideoSource(opts.VideoPath)
	}
	return biometric.NewCameraSource(opts.Device)
}
