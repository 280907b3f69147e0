package main

import (
	"facegate.humanid.io/cli/facegate/cmd"
	"facegate.humanid.io/infrastructure/env"
)

func init() {
	env.LoadEnv()
}

func main() {
	cmd.Execute()
}
