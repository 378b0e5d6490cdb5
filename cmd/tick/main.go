package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"trade-emulator/internal/tick"
)

func main() {
	mode := flag.String("mode", string(tick.ModeRound), "Adjustment: round, floor or ceil")
	strict := flag.Bool("strict", false, "Fail on off-tick prices instead of adjusting")

	flag.Parse()

	logger := log.New(os.Stderr, "[tick] ", log.LstdFlags)

	if flag.NArg() == 0 {
		logger.Fatal("usage: tick [--mode round|floor|ceil] [--strict] PRICE...")
	}

	opts := tick.Options{Mode: tick.Mode(strings.ToLower(*mode)), Logger: logger}
	switch opts.Mode {
	case tick.ModeRound, tick.ModeFloor, tick.ModeCeil:
	default:
		logger.Fatalf("Invalid mode: %s. Must be round, floor or ceil", *mode)
	}
	if *strict {
		opts.Policy = tick.PolicyError
	}

	failed := false
	for _, arg := range flag.Args() {
		price, err := strconv.ParseInt(arg, 10, 64)
		if err != nil {
			logger.Printf("invalid price %q: %v", arg, err)
			failed = true
			continue
		}
		adjusted, err := tick.Adjust(price, opts)
		if err != nil {
			logger.Printf("%d: %v", price, err)
			failed = true
			continue
		}
		fmt.Printf("%d\t%d\n", price, adjusted)
	}
	if failed {
		os.Exit(1)
	}
}
