package main

import (
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/chazu/rhovm/vm"
)

func newParCmd(opts *options) *cobra.Command {
	var (
		workers int
		repeat  int
	)
	cmd := &cobra.Command{
		Use:   "par <module>",
		Short: "Run every process of a module in parallel",
		Long: `Spawn every process of a module on the parallel scheduler and print the
results in spawn order. With --repeat N the module's processes are spawned N times.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := loadModule(args[0])
			if err != nil {
				return err
			}
			if workers <= 0 {
				workers = opts.config.Scheduler.Workers
			}

			space, closeSpace, err := opts.config.OpenRSpace()
			if err != nil {
				return err
			}
			defer closeSpace()

			s := vm.NewScheduler(space, workers, opts.config.VMOptions()...)
			for r := 0; r < max(repeat, 1); r++ {
				for _, p := range vm.ProcessesFromModule(m) {
					if _, err := s.Spawn(p); err != nil {
						return err
					}
				}
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()
			results, err := s.Run(ctx)

			out := cmd.OutOrStdout()
			failed := 0
			for _, r := range results {
				if r.Err != nil {
					failed++
					fmt.Fprintf(out, "%d\t%s\terror: %v\n", r.Seq, r.Process, r.Err)
					continue
				}
				fmt.Fprintf(out, "%d\t%s\t%v\n", r.Seq, r.Process, r.Value)
			}
			if err != nil {
				return err
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d processes failed", failed, len(results))
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&workers, "workers", "w", 0, "Worker count (default: from config)")
	cmd.Flags().IntVarP(&repeat, "repeat", "n", 1, "Spawn the module's processes this many times")
	return cmd
}
