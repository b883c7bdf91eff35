package irq

// ChipOps is the vtable of primitive controller operations a concrete
// driver (GIC, PLIC, APLIC, an MSI-capable bridge...) implements. Every
// method is optional; the core substitutes the defaults documented next
// to each when a driver leaves it nil (spec §3, §4.2).
type ChipOps struct {
	Name string

	// Mask/Unmask toggle the hardware line. Defaults: toggle only the
	// Status.Masked bit.
	Mask   func(d *Desc)
	Unmask func(d *Desc)

	// Enable/Disable default to Unmask/Mask respectively.
	Enable  func(d *Desc)
	Disable func(d *Desc)

	// Ack/EOI default to no-ops.
	Ack func(d *Desc)
	EOI func(d *Desc)

	// SetType reconfigures the line's trigger shape. Optional; nil
	// means the controller does not support runtime retyping.
	SetType func(d *Desc, t TriggerType) error

	// SetAffinity is accepted for contract completeness (spec §3) but
	// never invoked by this package: SMP affinity is out of scope
	// (spec §1 Non-goals). Drivers may still populate it for their own
	// bookkeeping.
	SetAffinity func(d *Desc, cpuMask uint64) error
}

func (c *ChipOps) mask(d *Desc) {
	if c != nil && c.Mask != nil {
		c.Mask(d)
		return
	}
	d.status |= StatusMasked
}

func (c *ChipOps) unmask(d *Desc) {
	if c != nil && c.Unmask != nil {
		c.Unmask(d)
		return
	}
	d.status &^= StatusMasked
}

func (c *ChipOps) enable(d *Desc) {
	if c != nil && c.Enable != nil {
		c.Enable(d)
		return
	}
	c.unmask(d)
}

func (c *ChipOps) disable(d *Desc) {
	if c != nil && c.Disable != nil {
		c.Disable(d)
		return
	}
	c.mask(d)
}

func (c *ChipOps) ack(d *Desc) {
	if c != nil && c.Ack != nil {
		c.Ack(d)
	}
}

func (c *ChipOps) eoi(d *Desc) {
	if c != nil && c.EOI != nil {
		c.EOI(d)
	}
}

func (c *ChipOps) setType(d *Desc, t TriggerType) error {
	if c != nil && c.SetType != nil {
		return c.SetType(d, t)
	}
	return nil
}
