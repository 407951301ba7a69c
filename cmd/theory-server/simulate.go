package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/MRamiBalles/CalculusMatrix/internal/sim"
)

var (
	simTicks     int
	simDt        float64
	simRatio     float64
	simBuys      int
	simPersist   bool
	simJSON      bool
	simResetTime bool
)

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Play a variant headlessly and print a pacing summary",
	Long: `Runs the autoplayer: every tick it buys the cheapest affordable upgrades
and publishes once the multiplier has grown by --publish-ratio.

Example:
  theory-server simulate --variant matrix --ticks 100000 --dt 1`,
	RunE: runSimulate,
}

func init() {
	f := simulateCmd.Flags()
	f.IntVar(&simTicks, "ticks", 10000, "number of ticks")
	f.Float64Var(&simDt, "dt", 1, "simulated seconds per tick")
	f.Float64Var(&simRatio, "publish-ratio", sim.DefaultStrategy().PublishRatio, "publish when p >= pLast * ratio")
	f.IntVar(&simBuys, "max-buys", sim.DefaultStrategy().MaxBuysPerTick, "purchases per tick (0 disables buying)")
	f.BoolVar(&simPersist, "persist", false, "load and write the configured save slot")
	f.BoolVar(&simJSON, "json", false, "print the summary as JSON")
	f.BoolVar(&simResetTime, "reset-time-on-publish", false, "clear simulated time on every publication")
}

func runSimulate(cmd *cobra.Command, args []string) error {
	cfg := appConfig
	if simResetTime {
		cfg.Engine.ResetTimeOnPublish = true
	}
	a, err := newApp(cmd.Context(), cfg, appLogger, simPersist)
	if err != nil {
		return err
	}
	defer a.Close()

	strategy := sim.DefaultStrategy()
	strategy.PublishRatio = simRatio
	strategy.MaxBuysPerTick = simBuys

	summary, err := sim.NewAutoplayer(a.session, strategy, appLogger).Run(cmd.Context(), simTicks, simDt)
	if err != nil {
		return err
	}
	if simPersist {
		if err := a.save(cmd.Context()); err != nil {
			return err
		}
	}
	if simJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(summary)
	}
	printSummary(cmd.OutOrStdout(), summary)
	return nil
}

func printSummary(w io.Writer, s sim.Summary) {
	fmt.Fprintf(w, "variant:        %s\n", s.Variant)
	fmt.Fprintf(w, "ticks:          %s\n", humanize.Comma(int64(s.Ticks)))
	fmt.Fprintf(w, "simulated time: %s s\n", humanize.CommafWithDigits(s.SimTime, 1))
	fmt.Fprintf(w, "publications:   %s\n", humanize.Comma(int64(s.Publications)))
	fmt.Fprintf(w, "purchases:      %s\n", humanize.Comma(int64(s.Purchases)))
	fmt.Fprintf(w, "milestones:     %d\n", s.Milestones)
	fmt.Fprintf(w, "total tau:      %s\n", sci(s.TotalAccumulated))
	fmt.Fprintf(w, "p_last:         %.4f\n", s.PLast)
	fmt.Fprintf(w, "currency:       %s\n", sci(s.Currency))
	fmt.Fprintf(w, "internal state: %s\n", s.InternalState)
}

// sci prints small values with separators and large ones in e-notation.
func sci(x float64) string {
	if x < 1e15 {
		return humanize.CommafWithDigits(x, 2)
	}
	return fmt.Sprintf("%.4e", x)
}
