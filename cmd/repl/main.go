// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package main provides an interactive REPL for the lock-free sorted vector.
//
// # Usage
//
//	go run ./cmd/repl -capacity 64
//
// # Commands
//
//	insert <n> [n...]   insert one or more integers
//	at <i>              read the element at index i
//	len                 number of elements
//	dump                print every element
//	search <n>          first index not ordered before n
//	stats               resource usage
//	scan                run a reclamation pass
//	quit                exit
//
// # Limitations
//
//   - Integers only
//   - Single-threaded; for concurrent load use the bench tool
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	core "github.com/kianostad/lfsv/internal/core"
	"github.com/kianostad/lfsv/internal/monitoring/logging"
)

type REPL struct {
	vector *core.Vector[int]
	out    io.Writer
}

func NewREPL(vector *core.Vector[int], out io.Writer) *REPL {
	return &REPL{
		vector: vector,
		out:    out,
	}
}

func (r *REPL) Run(in io.Reader) {
	fmt.Fprintln(r.out, "Lock-Free Sorted Vector REPL")
	fmt.Fprintln(r.out, "Commands: insert <n>..., at <i>, len, dump, search <n>, stats, scan, quit")

	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(r.out, "> ")
		if !scanner.Scan() {
			break
		}

		parts := strings.Fields(scanner.Text())
		if len(parts) == 0 {
			continue
		}
		if !r.Exec(context.Background(), parts[0], parts[1:]) {
			return
		}
	}
}

// Exec runs one command and reports whether the REPL should continue.
func (r *REPL) Exec(ctx context.Context, cmd string, args []string) bool {
	switch cmd {
	case "insert":
		if len(args) == 0 {
			fmt.Fprintln(r.out, "Usage: insert <n> [n...]")
			return true
		}
		for _, a := range args {
			x, err := strconv.Atoi(a)
			if err != nil {
				fmt.Fprintf(r.out, "Not an integer: %s\n", a)
				return true
			}
			if err := r.vector.Insert(ctx, x); err != nil {
				fmt.Fprintf(r.out, "Error: %v\n", err)
				return true
			}
		}
		fmt.Fprintln(r.out, "OK")

	case "at":
		if len(args) != 1 {
			fmt.Fprintln(r.out, "Usage: at <i>")
			return true
		}
		i, err := strconv.Atoi(args[0])
		if err != nil {
			fmt.Fprintf(r.out, "Not an integer: %s\n", args[0])
			return true
		}
		x, err := r.vector.At(ctx, i)
		switch {
		case errors.Is(err, core.ErrIndexOutOfRange):
			fmt.Fprintf(r.out, "Out of range: %v\n", err)
		case err != nil:
			fmt.Fprintf(r.out, "Error: %v\n", err)
		default:
			fmt.Fprintf(r.out, "Value: %d\n", x)
		}

	case "len":
		n, err := r.vector.Len(ctx)
		if err != nil {
			fmt.Fprintf(r.out, "Error: %v\n", err)
			return true
		}
		fmt.Fprintf(r.out, "Len: %d\n", n)

	case "dump":
		values, err := r.vector.Values(ctx)
		if err != nil {
			fmt.Fprintf(r.out, "Error: %v\n", err)
			return true
		}
		fmt.Fprintln(r.out, values)

	case "search":
		if len(args) != 1 {
			fmt.Fprintln(r.out, "Usage: search <n>")
			return true
		}
		x, err := strconv.Atoi(args[0])
		if err != nil {
			fmt.Fprintf(r.out, "Not an integer: %s\n", args[0])
			return true
		}
		i, found, err := r.vector.Search(ctx, x)
		if err != nil {
			fmt.Fprintf(r.out, "Error: %v\n", err)
			return true
		}
		fmt.Fprintf(r.out, "Index: %d, found: %t\n", i, found)

	case "stats":
		s, err := r.vector.Stats(ctx)
		if err != nil {
			fmt.Fprintf(r.out, "Error: %v\n", err)
			return true
		}
		fmt.Fprintf(r.out, "len=%d bank=%d/%d retired=%d orphans=%d hazards=%d sessions=%d violations=%d\n",
			s.Len, s.BankFree, s.BankCapacity, s.Retired, s.Orphans, s.HazardRecords, s.Sessions, s.Violations)

	case "scan":
		n, err := r.vector.Reclaim(ctx)
		if err != nil {
			fmt.Fprintf(r.out, "Error: %v\n", err)
			return true
		}
		fmt.Fprintf(r.out, "Reclaimed: %d\n", n)

	case "quit", "exit":
		fmt.Fprintln(r.out, "Goodbye!")
		return false

	default:
		fmt.Fprintf(r.out, "Unknown command: %s\n", cmd)
	}
	return true
}

func main() {
	capacity := flag.Int("capacity", core.DefaultCapacity, "memory bank slots")
	threshold := flag.Int("threshold", 10, "retired snapshots per scan")
	debug := flag.Bool("debug", false, "log scans and exhaustion to stderr")
	flag.Parse()

	logger := logging.NoopLogger()
	if *debug {
		logger = logging.NewTextLogger(slog.LevelDebug)
	}

	vector, err := core.New[int](
		core.WithCapacity(*capacity),
		core.WithScanThreshold(*threshold),
		core.WithLogger(logger),
	)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	repl := NewREPL(vector, os.Stdout)

	// Set up signal handling
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		fmt.Println("\nReceived shutdown signal. Closing vector...")
		vector.Close(context.Background())
		os.Exit(0)
	}()

	repl.Run(os.Stdin)
	vector.Close(context.Background())
}
