package main

import (
	"rft/core/cmd"
	"rft/pkg/logger"
)

const version = "1.0.0"

func main() {
	logger.Banner("Reliable File Transfer", version)
	cmd.Execute()
}
