// Command bgsim runs the Byzantine Generals consensus simulator: it
// brings up n_generals nodes, then reads operator commands from stdin
// until "exit" or an interrupt. It replaces an HTTP-only server loop
// with a command REPL over stdin and an optional admin HTTP surface.
package main

import (
	"bufio"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/distsys-sim/byzantine-generals/internal/adminapi"
	"github.com/distsys-sim/byzantine-generals/internal/command"
	"github.com/distsys-sim/byzantine-generals/internal/coordinator"
	"github.com/distsys-sim/byzantine-generals/internal/events"
	"github.com/joho/godotenv"
)

const defaultPortPrefix = 5000

func main() {
	// A missing .env is not an error: godotenv only supplements
	// already-set environment variables.
	_ = godotenv.Load()

	nGenerals, portPrefix, verbose, ok := parseArgs(os.Args[1:])
	if !ok {
		printUsage()
		os.Exit(1)
	}
	if !verbose && os.Getenv("BGSIM_VERBOSE") == "1" {
		verbose = true
	}

	bus := events.NewBus()
	if verbose {
		bus.Subscribe(func(ev events.Event) {
			log.Printf("[%s] %v", ev.Type, ev.Data)
		})
	}

	coord := coordinator.New(portPrefix, 1, bus, verbose)
	if _, err := coord.AddGenerals(nGenerals); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	if addr := os.Getenv("BGSIM_ADMIN_ADDR"); addr != "" {
		srv := adminapi.New(coord, bus)
		go func() {
			if err := http.ListenAndServe(addr, srv.Handler()); err != nil {
				log.Printf("admin API stopped: %v", err)
			}
		}()
	}

	repl := command.NewREPL(coord, os.Stdout)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	linesCh := make(chan string)
	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			linesCh <- scanner.Text()
		}
		close(linesCh)
	}()

	for {
		select {
		case <-sigCh:
			coord.CloseAll()
			os.Exit(0)

		case line, more := <-linesCh:
			if !more {
				coord.CloseAll()
				return
			}
			if repl.Execute(line) {
				os.Exit(0)
			}
		}
	}
}

// parseArgs manually scans positional startup arguments followed by an
// optional --verbose flag, since flag.Parse stops at the first
// non-flag token and the startup shape is positional-first.
func parseArgs(args []string) (nGenerals, portPrefix int, verbose bool, ok bool) {
	var positional []string
	for _, a := range args {
		if a == "--verbose" {
			verbose = true
			continue
		}
		positional = append(positional, a)
	}

	if len(positional) < 1 || len(positional) > 2 {
		return 0, 0, false, false
	}

	n, err := strconv.Atoi(positional[0])
	if err != nil || n < 0 {
		return 0, 0, false, false
	}

	prefix := defaultPortPrefix
	if len(positional) == 2 {
		p, err := strconv.Atoi(positional[1])
		if err != nil {
			return 0, 0, false, false
		}
		prefix = p
	}

	return n, prefix, verbose, true
}

func printUsage() {
	fmt.Fprintln(os.Stderr, "usage: bgsim <n_generals> [<port_prefix>] [--verbose]")
}
