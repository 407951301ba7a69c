// Package main - test-runner
// Executable to run the pacing harness over every variant.
package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/MRamiBalles/CalculusMatrix/internal/platform/logger"
	"github.com/MRamiBalles/CalculusMatrix/test"
)

var (
	ticks int
	dt    float64
)

var rootCmd = &cobra.Command{
	Use:          "test-runner",
	Short:        "Run the pacing suite over every variant",
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Println("THEORY PACING SUITE")
		fmt.Println(strings.Repeat("=", 60))

		harness := test.NewPacingTest(ticks, dt, logger.NewNop())
		results := harness.RunAll(cmd.Context())

		passed, failed := 0, 0
		for _, r := range results {
			if r.Passed {
				passed++
			} else {
				failed++
			}
		}
		fmt.Printf("passed: %d\n", passed)
		fmt.Printf("failed: %d\n", failed)
		if failed > 0 {
			return fmt.Errorf("%d scenarios failed", failed)
		}
		return nil
	},
}

func main() {
	rootCmd.Flags().IntVar(&ticks, "ticks", 20000, "ticks per scenario")
	rootCmd.Flags().Float64Var(&dt, "dt", 1, "simulated seconds per tick")
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
