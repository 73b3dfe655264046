package main

import (
	"podgen/cmd/handlers"
	"podgen/internal/logger"
)

func main() {
	logger.Init()
	handlers.Execute()
}
