package main

import (
	"measurement-gateway/internal/cli"

	"github.com/joho/godotenv"
)

func main() {
	// A local .env is optional, the environment wins when both set a value.
	_ = godotenv.Load()

	cli.Execute()
}
