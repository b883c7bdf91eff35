package irq

// CreateMapping resolves hwirq to a virq, creating one if this is the
// first request for that hwirq (spec §4.3). The call is idempotent:
// calling it twice for the same (domain, hwirq) returns the same virq.
func (c *Core) CreateMapping(d *Domain, hwirq Hwirq) (Virq, error) {
	if d == nil {
		return IRQInvalid, ErrInvalidArgument
	}
	if v := c.FindMapping(d, hwirq); v != IRQInvalid {
		return v, nil
	}

	v := c.virqs.Alloc()
	if v == IRQInvalid {
		return IRQInvalid, ErrExhausted
	}
	desc := c.descs.DescAlloc(v)
	if desc == nil {
		c.virqs.Free(v)
		return IRQInvalid, ErrExhausted
	}

	if !d.installMapping(hwirq, desc) {
		c.virqs.Free(v)
		c.descs.DescFree(desc)
		return IRQInvalid, ErrExhausted
	}

	if d.kind == KindHierarchy {
		parent := d.hierarchy.parent
		parentHwirq := d.ops.childToParentHwirq(hwirq)
		pv, err := c.CreateMapping(parent, parentHwirq)
		if err != nil {
			d.clearMapping(hwirq)
			c.virqs.Free(v)
			c.descs.DescFree(desc)
			return IRQInvalid, err
		}
		desc.lock.Lock()
		desc.parentDesc = c.descs.ToDesc(pv)
		desc.lock.Unlock()
	}

	desc.lock.Lock()
	desc.hwirq = hwirq
	desc.domain = d
	desc.chip = d.chip
	desc.chipData = d.chipData
	desc.lock.Unlock()

	if d.ops != nil && d.ops.Map != nil {
		if err := d.ops.Map(d, v, hwirq); err != nil {
			if desc.parentDesc != nil {
				c.DisposeMapping(desc.parentDesc.virq)
			}
			d.clearMapping(hwirq)
			c.virqs.Free(v)
			c.descs.DescFree(desc)
			Log.WithFields(map[string]any{"domain": d.name, "hwirq": hwirq, "err": err}).
				Debug("irq: mapping rejected by ops.Map")
			return IRQInvalid, ErrMapFailed
		}
	}

	c.stats.mappingCreated(d.name)
	return v, nil
}

// FindMapping returns the virq hwirq currently resolves to within d, or
// IRQInvalid. Reserved hwirq-range markers (spec §4.3) are never
// visible as mappings.
func (c *Core) FindMapping(d *Domain, hwirq Hwirq) Virq {
	if d == nil {
		return IRQInvalid
	}
	switch d.kind {
	case KindLinear:
		s := d.linear
		d.lock.Lock()
		defer d.lock.Unlock()
		if hwirq >= uint32(len(s.revmap)) {
			return IRQInvalid
		}
		return s.revmap[hwirq]
	case KindHierarchy:
		s := d.hierarchy
		d.lock.Lock()
		defer d.lock.Unlock()
		if hwirq >= uint32(len(s.revmap)) {
			return IRQInvalid
		}
		return s.revmap[hwirq]
	case KindTree:
		val, ok := d.tree.tree.Lookup(hwirq)
		if !ok {
			return IRQInvalid
		}
		desc, ok := val.(*Desc)
		if !ok {
			return IRQInvalid // reservedMarker: not a mapping
		}
		return desc.virq
	default:
		return IRQInvalid
	}
}

// installMapping inserts desc into the domain's storage at hwirq. It
// reports false if the slot is out of range or already occupied by a
// live descriptor (a reserved marker is silently displaced, since it
// exists only to hold the slot against range scans until a real
// descriptor arrives).
func (d *Domain) installMapping(hwirq Hwirq, desc *Desc) bool {
	d.lock.Lock()
	defer d.lock.Unlock()
	switch d.kind {
	case KindLinear:
		s := d.linear
		if hwirq >= uint32(len(s.mapSlots)) || s.mapSlots[hwirq] != nil {
			return false
		}
		s.mapSlots[hwirq] = desc
		s.revmap[hwirq] = desc.virq
		return true
	case KindHierarchy:
		s := d.hierarchy
		if hwirq >= uint32(len(s.mapSlots)) || s.mapSlots[hwirq] != nil {
			return false
		}
		s.mapSlots[hwirq] = desc
		s.revmap[hwirq] = desc.virq
		return true
	case KindTree:
		s := d.tree
		if hwirq > s.maxHwirq {
			return false
		}
		if prior, ok := s.tree.Lookup(hwirq); ok {
			if _, isMarker := prior.(*reservedMarker); !isMarker {
				return false
			}
			_, _ = s.tree.Replace(hwirq, desc)
			return true
		}
		return s.tree.Insert(hwirq, desc) == nil
	default:
		return false
	}
}

func (d *Domain) clearMapping(hwirq Hwirq) {
	d.lock.Lock()
	defer d.lock.Unlock()
	switch d.kind {
	case KindLinear:
		s := d.linear
		if hwirq < uint32(len(s.mapSlots)) {
			s.mapSlots[hwirq] = nil
			s.revmap[hwirq] = IRQInvalid
		}
	case KindHierarchy:
		s := d.hierarchy
		if hwirq < uint32(len(s.mapSlots)) {
			s.mapSlots[hwirq] = nil
			s.revmap[hwirq] = IRQInvalid
		}
	case KindTree:
		d.tree.tree.Delete(hwirq)
	}
}

// DisposeMapping tears down the mapping owning virq. For a hierarchy
// domain the parent's mapping is disposed first (spec §4.3). A
// descriptor is only freed once its action chain is empty.
func (c *Core) DisposeMapping(v Virq) {
	desc := c.descs.ToDesc(v)
	if desc == nil {
		return
	}
	d := desc.domain
	if d == nil {
		return
	}

	if d.kind == KindHierarchy {
		desc.lock.Lock()
		parent := desc.parentDesc
		desc.lock.Unlock()
		if parent != nil {
			c.DisposeMapping(parent.virq)
		}
	}

	if d.ops != nil && d.ops.Unmap != nil {
		d.ops.Unmap(d, v, desc.hwirq)
	}

	desc.lock.Lock()
	hasActions := desc.hasActions()
	desc.lock.Unlock()

	// The virq (and its hwirq slot) are only released once the action
	// chain is empty — otherwise a driver's still-registered handler
	// would be left pointing at a descriptor that could be reassigned
	// out from under it (spec invariant 7, §8 invariant 9).
	if !hasActions {
		d.clearMapping(desc.hwirq)
		c.virqs.Free(v)
		c.descs.DescFree(desc)
	}
	c.stats.mappingDisposed(d.name)
}

// Activate prepares desc's hardware path for dispatch. Hierarchy
// domains activate the parent first; on failure the parent is
// deactivated again (spec §4.3).
func (c *Core) Activate(desc *Desc, early bool) error {
	if desc == nil {
		return ErrInvalidArgument
	}
	d := desc.domain
	if d.kind == KindHierarchy && desc.parentDesc != nil {
		if err := c.Activate(desc.parentDesc, early); err != nil {
			return err
		}
	}
	if d.ops != nil && d.ops.Activate != nil {
		if err := d.ops.Activate(d, desc, early); err != nil {
			if d.kind == KindHierarchy && desc.parentDesc != nil {
				c.Deactivate(desc.parentDesc)
			}
			return err
		}
	}
	return nil
}

// Deactivate mirrors Activate: this level first, then the parent.
func (c *Core) Deactivate(desc *Desc) {
	if desc == nil {
		return
	}
	d := desc.domain
	if d.ops != nil && d.ops.Deactivate != nil {
		d.ops.Deactivate(d, desc)
	}
	if d.kind == KindHierarchy && desc.parentDesc != nil {
		c.Deactivate(desc.parentDesc)
	}
}

// AllocIRQs reserves a contiguous virq range of length n, offers it to
// ops.Alloc if present, and on success allocates n descriptors bound to
// domain/chip (spec §4.3). On any failure the virq range is released
// and AllocIRQs returns IRQInvalid.
func (c *Core) AllocIRQs(d *Domain, n int, arg any) (Virq, error) {
	if d == nil || n <= 0 {
		return IRQInvalid, ErrInvalidArgument
	}
	base := c.virqs.AllocRange(n)
	if base == IRQInvalid {
		return IRQInvalid, ErrExhausted
	}
	if d.ops != nil && d.ops.Alloc != nil {
		if err := d.ops.Alloc(d, base, n, arg); err != nil {
			c.virqs.FreeRange(base, n)
			return IRQInvalid, err
		}
	}
	for v := base; v < base+Virq(n); v++ {
		desc := c.descs.DescAlloc(v)
		if desc == nil {
			c.FreeIRQs(d, base, n)
			return IRQInvalid, ErrExhausted
		}
		desc.lock.Lock()
		desc.domain = d
		desc.chip = d.chip
		desc.chipData = d.chipData
		desc.lock.Unlock()
	}
	return base, nil
}

// FreeIRQs releases a range allocated by AllocIRQs.
func (c *Core) FreeIRQs(d *Domain, base Virq, n int) {
	if d.ops != nil && d.ops.Free != nil {
		d.ops.Free(d, base, n)
	}
	for v := base; v < base+Virq(n); v++ {
		if desc := c.descs.ToDesc(v); desc != nil {
			desc.lock.Lock()
			hasActions := desc.hasActions()
			desc.lock.Unlock()
			if !hasActions {
				c.descs.DescFree(desc)
			}
		}
	}
	c.virqs.FreeRange(base, n)
}

// AllocHwirqRange reserves n contiguous hwirqs in a tree domain by
// inserting a reservedMarker sentinel at each slot, so that subsequent
// AllocHwirqRange scans skip them; CreateMapping at a reserved hwirq
// replaces the marker with the real descriptor (spec §4.3).
func (c *Core) AllocHwirqRange(d *Domain, n int) (Hwirq, error) {
	if d == nil || d.kind != KindTree || n <= 0 {
		return IRQInvalid, ErrInvalidArgument
	}
	s := d.tree
	d.lock.Lock()
	defer d.lock.Unlock()

	run := 0
	var base uint32
	for hw := uint32(0); hw <= s.maxHwirq; hw++ {
		if _, occupied := s.tree.Lookup(hw); occupied {
			run = 0
			continue
		}
		if run == 0 {
			base = hw
		}
		run++
		if run == n {
			for j := base; j <= hw; j++ {
				if err := s.tree.Insert(j, theReservedMarker); err != nil {
					// Should not happen: we just confirmed these slots
					// were empty under d.lock.
					return IRQInvalid, ErrExhausted
				}
			}
			return base, nil
		}
		if hw == s.maxHwirq {
			break
		}
	}
	return IRQInvalid, ErrExhausted
}

// FreeHwirqRange removes reserved markers in [base, base+n). Real
// descriptors installed in the meantime are never touched (spec §4.3).
func (c *Core) FreeHwirqRange(d *Domain, base Hwirq, n int) {
	if d == nil || d.kind != KindTree || n <= 0 {
		return
	}
	s := d.tree
	d.lock.Lock()
	defer d.lock.Unlock()
	for hw := base; hw < base+uint32(n); hw++ {
		val, ok := s.tree.Lookup(hw)
		if !ok {
			continue
		}
		if _, isMarker := val.(*reservedMarker); isMarker {
			s.tree.Delete(hw)
		}
	}
}

// DomainRemove disposes every live mapping owned by d and unregisters
// it from the registry, reassigning the default domain if needed (spec
// §4.3).
func (c *Core) DomainRemove(d *Domain) {
	if d == nil {
		return
	}
	switch d.kind {
	case KindLinear:
		for hw, desc := range d.linear.mapSlots {
			if desc != nil {
				c.DisposeMapping(desc.virq)
			}
			_ = hw
		}
	case KindHierarchy:
		for _, desc := range d.hierarchy.mapSlots {
			if desc != nil {
				c.DisposeMapping(desc.virq)
			}
		}
	case KindTree:
		start := uint32(0)
		for {
			key, val, ok := d.tree.tree.NextSlot(start)
			if !ok {
				break
			}
			if desc, isDesc := val.(*Desc); isDesc {
				c.DisposeMapping(desc.virq)
			} else {
				d.tree.tree.Delete(key)
			}
			if key == ^uint32(0) {
				break
			}
			start = key + 1
		}
	}
	c.registry.unregister(d)
	c.stats.setDomainsLive(c.registry.count)
}
