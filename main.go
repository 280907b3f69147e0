package main

import (
	"facegate.humanid.io/infrastructure"
	"facegate.humanid.io/infrastructure/env"
)

func init() {
	env.LoadEnv()
}

func main() {
	infrastructure.StartServer()
}
