package main

import (
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-timetable/internal/cli"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	logr, err := zap.NewDevelopment()
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logr.Sync() //nolint:errcheck

	app := &cli.App{Out: os.Stdout, Logger: logr}
	return cli.NewRootCmd(app).Execute()
}
