package irq

// Core is the process-wide interrupt subsystem instance: the virq
// bitmap, the descriptor table, and the domain registry the spec's
// Design Notes §9 call "process-wide singletons" ("Initialize them
// lazily on first use with a one-shot guard; ... Pass the relevant
// handles into callers rather than reading globals inside every
// function"). Rather than package-level globals guarded by sync.Once,
// this package models that guidance as an explicit value: a kernel
// boots exactly one Core and stores it wherever it likes (a local in
// each cmd/irqdemo command, a field on a larger kernel struct elsewhere); tests
// construct as many independent Cores as they need.
type Core struct {
	virqs    *virqAllocator
	descs    *descTable
	registry *registry
	stats    *Stats
}

// NewCore builds a fresh, empty interrupt subsystem.
func NewCore() *Core {
	return &Core{
		virqs:    newVirqAllocator(),
		descs:    newDescTable(),
		registry: newRegistry(),
		stats:    newStats(),
	}
}

// ToDesc looks up the descriptor for virq, or nil.
func (c *Core) ToDesc(v Virq) *Desc { return c.descs.ToDesc(v) }

// RequestIRQ registers a handler against virq (spec §4.2).
func (c *Core) RequestIRQ(v Virq, h Handler, flags RequestFlags, name string, devData any) error {
	return c.descs.RequestIRQ(v, h, flags, name, devData)
}

// FreeIRQ unregisters the handler matching devData from virq.
func (c *Core) FreeIRQ(v Virq, devData any) error { return c.descs.FreeIRQ(v, devData) }

// EnableIRQ decrements the nested-disable depth for virq.
func (c *Core) EnableIRQ(v Virq) { c.descs.EnableIRQ(v) }

// DisableIRQ increments the nested-disable depth and waits for any
// in-flight dispatch to finish.
func (c *Core) DisableIRQ(v Virq) { c.descs.DisableIRQ(v) }

// DisableIRQNoSync increments the nested-disable depth without waiting.
func (c *Core) DisableIRQNoSync(v Virq) { c.descs.DisableIRQNoSync(v) }

// AllocatedVirqs returns the number of virqs currently in use.
func (c *Core) AllocatedVirqs() int { return c.virqs.AllocatedCount() }

// Stats exposes the Prometheus-backed counters for this Core.
func (c *Core) Stats() *Stats { return c.stats }

// Registry exposes the domain registry for this Core.
func (c *Core) Registry() *Registry { return (*Registry)(c.registry) }
