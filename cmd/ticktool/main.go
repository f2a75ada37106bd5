// Command ticktool records and inspects Polymarket trade ticks.
//
// Subcommands:
//
//	record   stream trades for tracked markets into Postgres
//	query    print recorded trades
//	export   write recorded trades as CSV
//	summary  aggregate recorded trades, optionally into candles
//	list     show tracked market metadata
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/valterebelo/polymarket-crypto-tools/internal/version"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	switch os.Args[1] {
	case "record":
		os.Exit(runRecord(os.Args[2:]))
	case "query":
		os.Exit(runQuery(os.Args[2:]))
	case "export":
		os.Exit(runExport(os.Args[2:]))
	case "summary":
		os.Exit(runSummary(os.Args[2:]))
	case "list":
		os.Exit(runList(os.Args[2:]))
	case "version", "-version", "--version":
		fmt.Println("ticktool", version.String())
	case "help", "-h", "--help":
		usage()
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n", os.Args[1])
		usage()
		os.Exit(2)
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, `Usage: ticktool <command> [flags]

Commands:
  record    stream trades for tracked markets into Postgres
  query     print recorded trades
  export    write recorded trades as CSV
  summary   aggregate recorded trades
  list      show tracked market metadata
  version   print build version

Run "ticktool <command> -h" for command flags.
`)
}

// newLogger builds the process logger. Everything logs through slog
// with the text handler; -verbose on subcommands raises to debug.
func newLogger(verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)
	return logger
}
