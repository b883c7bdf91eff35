package irq

import "time"

// handlerCall is a handler plus the cookie it was registered with,
// snapshotted off the action chain before the chain's lock is released
// for the actual dispatch (spec §4.2, §5: "handlers run without the
// descriptor lock held").
type handlerCall struct {
	handler Handler
	devData any
}

// GenericHandleIRQ runs every registered handler for virq once (spec
// §4.2 "generic_handle_irq"). A disabled descriptor or one with no
// registered handler counts as spurious and nothing runs.
func (c *Core) GenericHandleIRQ(v Virq) {
	desc := c.descs.ToDesc(v)
	if desc == nil {
		return
	}

	desc.lock.Lock()
	if desc.status.has(StatusDisabled) || desc.actionHead == nil {
		desc.spuriousCount++
		desc.lock.Unlock()
		if desc.domain != nil {
			c.stats.spuriousHit(desc.domain.name)
		}
		return
	}

	desc.status |= StatusInProgress
	desc.chip.ack(desc)
	desc.count++
	desc.lastTimestamp = time.Now()

	calls := make([]handlerCall, 0, 2)
	for a := desc.actionHead; a != nil; a = a.next {
		calls = append(calls, handlerCall{handler: a.handler, devData: a.devData})
	}
	desc.lock.Unlock()

	for _, hc := range calls {
		hc.handler(hc.devData)
	}

	desc.lock.Lock()
	desc.status &^= StatusInProgress
	desc.chip.eoi(desc)
	desc.lock.Unlock()

	if desc.domain != nil {
		c.stats.dispatched(desc.domain.name)
	}
}

// IRQDomainHandleIRQ is the entry point a controller's interrupt
// handler calls with its own hwirq: resolve it to a virq within d and
// dispatch (spec §4.2 "irq_domain_handle_irq"). An hwirq with no live
// mapping counts as spurious against the domain.
func (c *Core) IRQDomainHandleIRQ(d *Domain, hwirq Hwirq) {
	if d == nil {
		return
	}
	v := c.FindMapping(d, hwirq)
	if v == IRQInvalid {
		c.stats.spuriousHit(d.name)
		Log.WithFields(map[string]any{"domain": d.name, "hwirq": hwirq}).Debug("irq: dispatch with no live mapping")
		return
	}
	c.GenericHandleIRQ(v)
}
