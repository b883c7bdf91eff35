package irq

import "fmt"

// DescriptorSnapshot is a point-in-time, lock-free copy of a
// descriptor's state for tracing and tests (spec §4 supplement:
// "descriptor dump").
type DescriptorSnapshot struct {
	Virq          Virq
	Hwirq         Hwirq
	Domain        string
	Status        Status
	Depth         int
	TriggerType   TriggerType
	HandlerCount  int
	Count         uint64
	SpuriousCount uint64
}

// DumpDescriptor snapshots the descriptor owning virq, or the zero
// value with Virq == IRQInvalid if none exists.
func (c *Core) DumpDescriptor(v Virq) DescriptorSnapshot {
	desc := c.descs.ToDesc(v)
	if desc == nil {
		return DescriptorSnapshot{Virq: IRQInvalid}
	}
	desc.lock.Lock()
	defer desc.lock.Unlock()

	n := 0
	for a := desc.actionHead; a != nil; a = a.next {
		n++
	}
	name := ""
	if desc.domain != nil {
		name = desc.domain.name
	}
	return DescriptorSnapshot{
		Virq:          desc.virq,
		Hwirq:         desc.hwirq,
		Domain:        name,
		Status:        desc.status,
		Depth:         desc.depth,
		TriggerType:   desc.triggerType,
		HandlerCount:  n,
		Count:         desc.count,
		SpuriousCount: desc.spuriousCount,
	}
}

// String renders a snapshot the way a boot trace line would (spec §6
// "debug output ... formatted text to a writer").
func (s DescriptorSnapshot) String() string {
	if s.Virq == IRQInvalid {
		return "irq: <no descriptor>"
	}
	return fmt.Sprintf("irq: virq=%d hwirq=%d domain=%q status=%#x depth=%d handlers=%d count=%d spurious=%d",
		s.Virq, s.Hwirq, s.Domain, uint32(s.Status), s.Depth, s.HandlerCount, s.Count, s.SpuriousCount)
}

// DomainSnapshot is a point-in-time summary of a domain for tracing.
type DomainSnapshot struct {
	ID       uint64
	Name     string
	Kind     Kind
	Size     int
	Mappings int
}

// DumpDomain snapshots d's identity and a live mapping count.
func (c *Core) DumpDomain(d *Domain) DomainSnapshot {
	if d == nil {
		return DomainSnapshot{}
	}
	mappings := 0
	switch d.kind {
	case KindLinear:
		d.lock.Lock()
		for _, desc := range d.linear.mapSlots {
			if desc != nil {
				mappings++
			}
		}
		d.lock.Unlock()
	case KindHierarchy:
		d.lock.Lock()
		for _, desc := range d.hierarchy.mapSlots {
			if desc != nil {
				mappings++
			}
		}
		d.lock.Unlock()
	case KindTree:
		start := uint32(0)
		for {
			k, val, ok := d.tree.tree.NextSlot(start)
			if !ok {
				break
			}
			if _, isDesc := val.(*Desc); isDesc {
				mappings++
			}
			if k == ^uint32(0) {
				break
			}
			start = k + 1
		}
	}
	return DomainSnapshot{ID: d.id, Name: d.name, Kind: d.kind, Size: d.Size(), Mappings: mappings}
}

func (s DomainSnapshot) String() string {
	return fmt.Sprintf("irq: domain id=%d name=%q kind=%s size=%d mappings=%d", s.ID, s.Name, s.Kind, s.Size, s.Mappings)
}
