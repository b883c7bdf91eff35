package irq

import (
	"fmt"
	"time"
)

// Desc is the per-virq interrupt descriptor: the single owner of
// status, chip reference, and handler chain for one virq (spec §3).
type Desc struct {
	lock SpinLock

	virq   Virq
	hwirq  Hwirq
	domain *Domain

	// parentDesc links to the parent controller's descriptor when this
	// virq belongs to a hierarchy domain (spec §3 invariant 3).
	parentDesc *Desc

	chip     *ChipOps
	chipData any

	actionHead *action

	status      Status
	depth       int
	triggerType TriggerType

	cpuMask uint64 // reserved, never consulted (spec §1 Non-goals)

	count          uint64
	spuriousCount  uint64
	lastTimestamp  time.Time
}

// Virq returns the descriptor's stable identifier.
func (d *Desc) Virq() Virq { return d.virq }

// Hwirq returns the controller-local hwirq this descriptor is mapped to.
func (d *Desc) Hwirq() Hwirq { return d.hwirq }

// Domain returns the owning domain.
func (d *Desc) Domain() *Domain { return d.domain }

// ParentDesc returns the parent descriptor for a hierarchy mapping, or
// nil.
func (d *Desc) ParentDesc() *Desc { return d.parentDesc }

// Status returns a snapshot of the descriptor's status bits.
func (d *Desc) Status() Status {
	d.lock.Lock()
	defer d.lock.Unlock()
	return d.status
}

// Depth returns the nested-disable count.
func (d *Desc) Depth() int {
	d.lock.Lock()
	defer d.lock.Unlock()
	return d.depth
}

// Count returns the number of times the handler chain has run.
func (d *Desc) Count() uint64 {
	d.lock.Lock()
	defer d.lock.Unlock()
	return d.count
}

// SpuriousCount returns the number of dispatches that found this
// descriptor disabled or without a registered handler.
func (d *Desc) SpuriousCount() uint64 {
	d.lock.Lock()
	defer d.lock.Unlock()
	return d.spuriousCount
}

// TriggerType returns the descriptor's configured trigger shape.
func (d *Desc) TriggerType() TriggerType {
	d.lock.Lock()
	defer d.lock.Unlock()
	return d.triggerType
}

func (d *Desc) hasActions() bool { return d.actionHead != nil }

// descTable owns every live descriptor, keyed by virq (spec §4.2).
type descTable struct {
	lock  SpinLock
	slots [MaxIRQDesc]*Desc
}

func newDescTable() *descTable {
	return &descTable{}
}

// ToDesc is an O(1) virq -> descriptor lookup.
func (t *descTable) ToDesc(v Virq) *Desc {
	if v == IRQInvalid || v >= MaxIRQDesc {
		return nil
	}
	t.lock.Lock()
	defer t.lock.Unlock()
	return t.slots[v]
}

// DescAlloc is idempotent: it returns the existing descriptor for v if
// one is already present, otherwise allocates and initializes one with
// hwirq = IRQInvalid, status = Disabled, depth = 1 (spec §4.2).
func (t *descTable) DescAlloc(v Virq) *Desc {
	if v == IRQInvalid || v >= MaxIRQDesc {
		return nil
	}
	t.lock.Lock()
	defer t.lock.Unlock()
	if d := t.slots[v]; d != nil {
		return d
	}
	d := &Desc{
		virq:   v,
		hwirq:  IRQInvalid,
		status: StatusDisabled,
		depth:  1,
	}
	t.slots[v] = d
	return d
}

// DescFree releases a descriptor. Freeing one with a non-empty action
// chain is a driver protocol violation: spec §7 classifies this as
// fatal and mandates panic because the caller's state is already
// inconsistent (a handler is still registered against a virq that is
// about to be reused).
func (t *descTable) DescFree(d *Desc) {
	if d == nil {
		return
	}
	d.lock.Lock()
	hasActions := d.hasActions()
	v := d.virq
	d.lock.Unlock()
	if hasActions {
		panic(fmt.Sprintf("irq: DescFree(virq=%d): action chain non-empty", v))
	}
	t.lock.Lock()
	defer t.lock.Unlock()
	if v < MaxIRQDesc {
		t.slots[v] = nil
	}
}

// RequestIRQ registers handler against virq, appending to the action
// chain under d.lock (spec §4.2). The first handler on an empty chain
// clears Disabled, zeroes depth, adopts a trigger type from flags if
// one is present, and unmasks the hardware. Subsequent handlers require
// Shared on both the existing head and the new flags.
func (t *descTable) RequestIRQ(v Virq, handler Handler, flags RequestFlags, name string, devData any) error {
	d := t.ToDesc(v)
	if d == nil || handler == nil {
		return ErrInvalidArgument
	}

	d.lock.Lock()
	defer d.lock.Unlock()

	a := &action{handler: handler, flags: flags, devData: devData, name: name}

	if d.actionHead == nil {
		d.actionHead = a
		d.status &^= StatusDisabled
		d.depth = 0
		if tt, ok := flags.triggerType(); ok {
			d.triggerType = tt
		}
		d.chip.unmask(d)
		Log.WithFields(map[string]any{"virq": v, "name": name}).Debug("irq: first handler registered")
		return nil
	}

	if !d.actionHead.shared() || !a.shared() {
		return ErrSharedConflict
	}
	tail := d.actionHead
	for tail.next != nil {
		tail = tail.next
	}
	tail.next = a
	return nil
}

// FreeIRQ unregisters the first action whose dev_data matches devData.
// If the chain becomes empty, the descriptor is disabled and masked
// (spec §4.2).
func (t *descTable) FreeIRQ(v Virq, devData any) error {
	d := t.ToDesc(v)
	if d == nil {
		return ErrInvalidArgument
	}

	d.lock.Lock()
	defer d.lock.Unlock()

	var prev *action
	cur := d.actionHead
	for cur != nil {
		if cur.devData == devData {
			break
		}
		prev, cur = cur, cur.next
	}
	if cur == nil {
		return ErrNotFound
	}
	if prev == nil {
		d.actionHead = cur.next
	} else {
		prev.next = cur.next
	}
	if d.actionHead == nil {
		d.status |= StatusDisabled
		d.depth = 1
		d.chip.mask(d)
	}
	return nil
}

// EnableIRQ saturates depth at 0; the 1->0 transition clears Disabled
// and unmasks the hardware (spec §4.2).
func (t *descTable) EnableIRQ(v Virq) {
	d := t.ToDesc(v)
	if d == nil {
		return
	}
	d.lock.Lock()
	defer d.lock.Unlock()
	if d.depth == 0 {
		return
	}
	d.depth--
	if d.depth == 0 {
		d.status &^= StatusDisabled
		d.chip.unmask(d)
	}
}

// DisableIRQNoSync increments depth; the 0->1 transition sets Disabled
// and masks the hardware, without waiting for an in-flight dispatch to
// finish.
func (t *descTable) DisableIRQNoSync(v Virq) {
	d := t.ToDesc(v)
	if d == nil {
		return
	}
	d.lock.Lock()
	defer d.lock.Unlock()
	d.depth++
	if d.depth == 1 {
		d.status |= StatusDisabled
		d.chip.mask(d)
	}
}

// DisableIRQ is DisableIRQNoSync followed by a busy-wait until any
// in-flight dispatch on this virq finishes (spec §4.2, §5).
func (t *descTable) DisableIRQ(v Virq) {
	t.DisableIRQNoSync(v)
	d := t.ToDesc(v)
	if d == nil {
		return
	}
	spinUntil(func() bool {
		d.lock.Lock()
		defer d.lock.Unlock()
		return !d.status.has(StatusInProgress)
	})
}
