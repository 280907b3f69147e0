package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"facegate.humanid.io/infrastructure/biometric"
	"facegate.humanid.io/infrastructure/ratelimit"
	"github.com/spf13/cobra"
)

var verifyOpts Options

var verifyCmd = &cobra.Command{
	Use:   "verify <username>",
	Short: "Verify a live capture against an enrolled identity",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		runVerify(args[0], verifyOpts)
	},
}

func init() {
	verifyCmd.Flags().StringVarP(&verifyOpts.VideoPath, "video", "i", "", "Path to a video file (defaults to the camera)")
	verifyCmd.Flags().IntVarP(&verifyOpts.Device, "device", "d", 0, "Camera device index")
	rootCmd.AddCommand(verifyCmd)
}

func runVerify(username string, opts Options) {
	source, err := openSource(opts)
	if err != nil {
		die("failed to open capture source", err)
	}
	defer source.Close()

	result, err := biometric.FaceGate.Verify(context.Background(), username, source)
	if err != nil {
		var locked *ratelimit.AccountLockedError
		if errors.As(err, &locked) {
			die(fmt.Sprintf("account locked, retry in %s", locked.RetryAfter.Round(time.Second)), nil)
		}
		die("verification failed", err)
	}

	if result.IsMatch {
		fmt.Printf("✓ verified %s (distance %.3f, confidence %.1f%%)\n", result.Username, result.Distance, result.Confidence*100)
		return
	}
	fmt.Fprintf(os.Stderr, "✗ face did not match %s (distance %.3f)\n", result.Username, result.Distance)
	os.Exit(1)
}
