// Command allocate runs allocation plans and cash deployments over YAML
// scenario files, without a server or database.
package main

import (
	"context"
	"flag"
	"os"
	"path"

	"github.com/google/subcommands"

	"github.com/aristath/allocator/internal/cli"
	"github.com/aristath/allocator/pkg/logger"
)

func main() {
	commander := subcommands.NewCommander(flag.CommandLine, path.Base(os.Args[0]))
	commander.Register(commander.HelpCommand(), "")
	commander.Register(commander.FlagsCommand(), "")

	logLevel := flag.String("log-level", "warn", "Log level written to stderr.")
	flag.Parse()

	log := logger.New(logger.Config{
		Level:  *logLevel,
		Pretty: true,
		Output: os.Stderr,
	})

	for _, c := range cli.Commands(os.Stdout, log) {
		commander.Register(c, "")
	}

	os.Exit(int(commander.Execute(context.Background())))
}
