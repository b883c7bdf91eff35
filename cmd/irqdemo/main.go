// Command irqdemo drives the irq package against a simulated
// single-level GIC distributor so the dispatch path can be exercised
// outside a kernel boot sequence.
package main

import (
	"fmt"
	"net/http"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/iansmith/mazarin-irq/irq"
)

var log = logrus.StandardLogger()

func main() {
	root := newRootCmd()
	if err := root.Execute(); err != nil {
		log.WithError(err).Error("irqdemo: command failed")
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var verbose bool

	root := &cobra.Command{
		Use:   "irqdemo",
		Short: "Exercise the irq subsystem against a simulated interrupt controller",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if verbose {
				log.SetLevel(logrus.DebugLevel)
				irq.Log = log
			}
		},
	}
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	root.AddCommand(newFireCmd(), newServeCmd())
	return root
}

// newFireCmd builds one root linear domain over the simulated
// distributor (no hierarchy child is created), registers one handler
// per line, fires every line once, and prints a dispatch trace plus a
// final dump.
func newFireCmd() *cobra.Command {
	var lines int

	cmd := &cobra.Command{
		Use:   "fire",
		Short: "Build a simulated controller, register handlers, and fire every line",
		RunE: func(cmd *cobra.Command, args []string) error {
			core := irq.NewCore()
			root := newSimGIC("root")

			rootDomain, err := core.CreateLinear("root-distributor", lines, nil, root.chipOps(), nil)
			if err != nil {
				return fmt.Errorf("create root domain: %w", err)
			}

			fired := 0
			for hw := 0; hw < lines; hw++ {
				hwirq := irq.Hwirq(hw)
				v, err := core.CreateMapping(rootDomain, hwirq)
				if err != nil {
					return fmt.Errorf("map hwirq %d: %w", hwirq, err)
				}
				line := hwirq
				err = core.RequestIRQ(v, func(devData any) {
					fmt.Printf("handled hwirq=%d devData=%v\n", line, devData)
				}, 0, fmt.Sprintf("line-%d", hwirq), nil)
				if err != nil {
					return fmt.Errorf("request hwirq %d: %w", hwirq, err)
				}
			}

			for hw := 0; hw < lines; hw++ {
				if err := root.Fire(core, rootDomain, irq.Hwirq(hw)); err != nil {
					log.WithError(err).Warn("irqdemo: fire failed")
					continue
				}
				fired++
			}

			fmt.Println(core.DumpDomain(rootDomain))
			fmt.Printf("fired %d/%d lines\n", fired, lines)
			return nil
		},
	}
	cmd.Flags().IntVar(&lines, "lines", 8, "number of interrupt lines to simulate")
	return cmd
}

// newServeCmd exposes the Prometheus collectors of a fresh Core over
// HTTP. That Core has no domains or mappings and fire builds its own
// separate Core, so the served counters stay at zero.
func newServeCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve a /metrics endpoint backed by a fresh, empty Core",
		RunE: func(cmd *cobra.Command, args []string) error {
			core := irq.NewCore()
			reg := prometheus.NewRegistry()
			if err := core.Stats().Register(reg); err != nil {
				return fmt.Errorf("register collectors: %w", err)
			}
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
			log.WithField("addr", addr).Info("irqdemo: serving metrics")
			return http.ListenAndServe(addr, mux)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", ":9110", "listen address for /metrics")
	return cmd
}
