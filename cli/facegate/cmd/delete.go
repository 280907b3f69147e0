package cmd

import (
	"fmt"

	"facegate.humanid.io/infrastructure/biometric"
	"github.com/spf13/cobra"
)

var deleteCmd = &cobra.Command{
	Use:   "delete <username>",
	Short: "Remove an enrolled identity",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		runDelete(args[0])
	},
}

func init() {
	rootCmd.AddCommand(deleteCmd)
}

func runDelete(username string) {
	if err := biometric.FaceGate.Delete(username); err != nil {
		die("failed to delete identity", err)
	}
	fmt.Printf("✓ deleted %s\n", username)
}
