package main

import (
	"fmt"
	"sync/atomic"

	"github.com/iansmith/mazarin-irq/irq"
)

// simGIC is a host-process stand-in for the GIC this demo's teacher
// drove on bare metal (_teacher_ref/gic_qemu.go): one distributor with
// a fixed 256-line enabled/pending table. The demo wires it to a single
// CreateLinear domain; no cascaded controller or hierarchy domain is
// simulated.
//
// Every register access in the teacher's driver becomes a plain field
// read/write here; there is no MMIO to reach, only the bookkeeping the
// MMIO writes were protecting.
type simGIC struct {
	name     string
	enabled  [256]bool
	pending  [256]bool
	ackCount atomic.Uint64
}

func newSimGIC(name string) *simGIC {
	return &simGIC{name: name}
}

func (g *simGIC) chipOps() *irq.ChipOps {
	return &irq.ChipOps{
		Name: g.name,
		Mask: func(d *irq.Desc) {
			g.enabled[d.Hwirq()%256] = false
		},
		Unmask: func(d *irq.Desc) {
			g.enabled[d.Hwirq()%256] = true
		},
		Ack: func(d *irq.Desc) {
			g.pending[d.Hwirq()%256] = false
			g.ackCount.Add(1)
		},
		EOI: func(d *irq.Desc) {
			// The simulated distributor has nothing left to signal;
			// a real GICC_EOIR write would happen here.
		},
	}
}

// Fire marks hwirq pending on the distributor and raises it. A real
// boot trap handler would instead read GICC_IAR; here we already know
// which line fired because nothing else generates interrupts.
func (g *simGIC) Fire(core *irq.Core, domain *irq.Domain, hwirq irq.Hwirq) error {
	idx := hwirq % 256
	if !g.enabled[idx] {
		return fmt.Errorf("gicsim: hwirq %d is masked", hwirq)
	}
	g.pending[idx] = true
	core.IRQDomainHandleIRQ(domain, hwirq)
	return nil
}
