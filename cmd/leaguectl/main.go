// Command leaguectl inspects and drives a running league server.
//
// Usage:
//
//	leaguectl standings
//	leaguectl player julia
//	leaguectl --user Bartek --password 1998 plan next saturday
//	leaguectl export --out league.xlsx
//	leaguectl --user Bartek --password 1998 simulate --players 8 --events 10
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/okian/klapi/internal/cli"
	"github.com/okian/klapi/pkg/logger"
)

func main() {
	_ = godotenv.Load()
	if err := logger.Init(logger.WithWriter(os.Stderr)); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := cli.Execute(ctx)
	stop()
	if err != nil {
		os.Stderr.WriteString("leaguectl: " + err.Error() + "\n")
		os.Exit(1)
	}
}
