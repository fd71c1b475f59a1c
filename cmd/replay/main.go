package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/danielpatrickdp/agent-ledger/go-node/internal/replay"
)

// #region main

func main() {
	fixturePath := flag.String("fixture", "", "path to scenario fixture JSON")
	verbose := flag.Bool("v", false, "print every step result")
	flag.Parse()

	if *fixturePath == "" {
		fmt.Fprintln(os.Stderr, "usage: replay --fixture path/to/scenario.json [-v]")
		os.Exit(2)
	}

	f, err := replay.LoadFixture(*fixturePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	if f.Description != "" {
		fmt.Printf("Scenario: %s\n", f.Description)
	}
	fmt.Printf("Steps: %d | Time window: %g\n\n", len(f.Steps), f.TimeWindow)

	results, err := replay.Run(context.Background(), f)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	if *verbose {
		fmt.Printf("%-20s  %-12s  %-8s  %s\n", "Step", "Block", "Accepted", "Pending")
		fmt.Printf("%-20s+-%-12s+-%-8s+-%s\n",
			"--------------------", "------------", "--------", "-------")
		for _, r := range results {
			fmt.Printf("%-20s  %-12s  %-8v  %d\n",
				r.StepID, shortID(r.Hash), r.Accepted, r.PendingAfter)
		}
		fmt.Println()
	}

	mismatches := replay.Check(f, results)
	if len(mismatches) == 0 {
		fmt.Printf("OK: %d expectation(s) matched\n", len(f.ExpectedResults))
		return
	}
	for _, m := range mismatches {
		fmt.Fprintf(os.Stderr, "MISMATCH: %s\n", m)
	}
	os.Exit(1)
}

// #endregion main

// #region output

func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}

// #endregion output
