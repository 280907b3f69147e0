package cmd

import (
	"fmt"

	"facegate.humanid.io/infrastructure/biometric"
	"github.com/spf13/cobra"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List all enrolled identities",
	Run: func(cmd *cobra.Command, args []string) {
		runList()
	},
}

func init() {
	rootCmd.AddCommand(listCmd)
}

func runList() {
	usernames, err := biometric.FaceGate.List()
	if err != nil {
		die("failed to list identities", err)
	}
	if len(usernames) == 0 {
		fmt.Println("No identities enrolled.")
		return
	}
	for _, username := range usernames {
		fmt.Println(username)
	}
	fmt.Printf("%d enrolled\n", len(usernames))
}
