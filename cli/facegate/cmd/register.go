package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"facegate.humanid.io/infrastructure/biometric"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

var registerOpts Options

var registerCmd = &cobra.Command{
	Use:     "register <username>",
	Aliases: []string{"enroll"},
	Short:   "Register a new identity from the camera or a video file",
	Args:    cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		runRegister(args[0], registerOpts)
	},
}

func init() {
	registerCmd.Flags().StringVarP(&registerOpts.VideoPath, "video", "i", "", "Path to a video file (defaults to the camera)")
	registerCmd.Flags().IntVarP(&registerOpts.Device, "device", "d", 0, "Camera device index")
	rootCmd.AddCommand(registerCmd)
}

func runRegister(username string, opts Options) {
	source, err := openSource(opts)
	if err != nil {
		die("failed to open capture source", err)
	}
	defer source.Close()

	var bar *progressbar.ProgressBar
	biometric.FaceGate.OnSample = func(collected, target int) {
		if bar == nil {
			bar = progressbar.Default(int64(target), "capturing samples")
		}
		bar.Set(collected)
	}

	fmt.Fprintln(os.Stderr, "Look at the camera and move your head slightly between samples.")
	result, err := biometric.FaceGate.Enroll(context.Background(), username, source)
	if err != nil {
		die("registration failed", err)
	}
	fmt.Printf("✓ registered %s with %d samples in %s\n", result.Username, result.SampleCount, result.Elapsed.Round(100*time.Millisecond))
}
