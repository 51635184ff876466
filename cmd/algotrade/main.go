package main

import (
	"fmt"
	"os"

	"algotrade/internal/btctl"
	"algotrade/internal/traded"
)

// Version is injected by build scripts via -ldflags "-X main.Version=..."
var Version = "dev"

func main() {
	args := os.Args[1:]
	if len(args) == 0 {
		usage()
		os.Exit(2)
	}

	switch args[0] {
	case "backtest":
		os.Exit(btctl.Run(args[1:]))
	case "trade":
		os.Exit(traded.Run(args[1:]))
	case "version", "-version", "--version":
		fmt.Println(Version)
	case "help", "-h", "--help":
		usage()
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n", args[0])
		usage()
		os.Exit(2)
	}
}

func usage() {
	fmt.Fprint(os.Stderr, `usage: algotrade <command> [flags]

commands:
  backtest   run the strategy over historical bars and report results
  trade      run the live paper-trading daemon with the HTTP API
  version    print the build version

run "algotrade <command> -h" for the command's flags.
`)
}
