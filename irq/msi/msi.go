// Package msi implements message-signaled interrupt descriptor
// bookkeeping on top of a tree-kind irq domain (spec §4.5). A Device
// owns a block of vectors; each vector carries its own state machine
// independent of its sibling vectors, mirroring how a PCI function's
// MSI-X table entries are masked/unmasked individually.
package msi

import (
	"fmt"

	"github.com/iansmith/mazarin-irq/irq"
	"github.com/iansmith/mazarin-irq/irq/kalloc"
)

// State is a vector's position in the lifecycle spec §4.5 names:
// UNBOUND -> ALLOCATED -> ARMED -> (MASKED <-> UNMASKED) -> FREED.
type State int

const (
	StateUnbound State = iota
	StateAllocated
	StateArmed
	StateMasked
	StateUnmasked
	StateFreed
)

func (s State) String() string {
	switch s {
	case StateUnbound:
		return "unbound"
	case StateAllocated:
		return "allocated"
	case StateArmed:
		return "armed"
	case StateMasked:
		return "masked"
	case StateUnmasked:
		return "unmasked"
	case StateFreed:
		return "freed"
	default:
		return "invalid"
	}
}

// ErrBadTransition reports an attempted state-machine move that the
// vector's current state does not permit.
type ErrBadTransition struct {
	From, To State
}

func (e *ErrBadTransition) Error() string {
	return fmt.Sprintf("msi: illegal transition %s -> %s", e.From, e.To)
}

// Message is the (address, data) pair a vector's owning bridge writes
// into the endpoint's MSI capability or MSI-X table (spec §4.5).
type Message struct {
	Address uint64
	Data    uint32
}

// ComposeFunc builds the Message for one vector; WriteFunc delivers it
// to hardware. Both are supplied by the bridge driver, mirroring
// ChipOps' optional-callback convention.
type ComposeFunc func(dev *Device, index int) Message
type WriteFunc func(dev *Device, index int, msg Message)

// AllocFlags mirrors msi_alloc_vectors' flags argument (spec §4.5).
type AllocFlags uint32

const (
	// UseDefNumVecs selects minVecs as the allocation count instead of
	// maxVecs.
	UseDefNumVecs AllocFlags = 1 << iota
	// MultiVector permits allocating more than one vector at a time. If
	// absent, the negotiated count is clamped to 1.
	MultiVector
)

// vector is one MSI slot's bookkeeping.
type vector struct {
	index  int
	hwirq  irq.Hwirq
	virq   irq.Virq
	state  State
	msg    Message
	handle *kalloc.Handle
}

// Device owns a contiguous block of MSI vectors carved out of a single
// tree-kind domain, per the Open Question decision recorded in
// SPEC_FULL.md §5: the MSI domain pointer lives on Device, not as a
// second field threaded through irq.Domain.
type Device struct {
	core    *irq.Core
	domain  *irq.Domain
	arena   *kalloc.Arena
	compose ComposeFunc
	write   WriteFunc
	vectors []*vector
}

// NewDevice wraps an existing tree-kind domain (typically one created
// with CreateTree over a platform's MSI controller, spec §4.5) as an
// MSI endpoint able to hand out up to maxVectors vectors.
func NewDevice(core *irq.Core, domain *irq.Domain, maxVectors int, compose ComposeFunc, write WriteFunc) *Device {
	return &Device{
		core:    core,
		domain:  domain,
		arena:   kalloc.NewArena(maxVectors),
		compose: compose,
		write:   write,
	}
}

// AllocVectors negotiates a vector count from (minVecs, maxVecs, flags)
// exactly as msi_alloc_vectors does (spec §4.5): nvec is maxVecs unless
// UseDefNumVecs is set (then minVecs), clamped to 1 when MultiVector is
// absent. It then reserves nvec contiguous hwirqs from the device's
// tree domain and creates a real virq mapping for each, entering
// StateAllocated.
func (dev *Device) AllocVectors(minVecs, maxVecs int, flags AllocFlags) ([]int, error) {
	nvec := maxVecs
	if flags&UseDefNumVecs != 0 {
		nvec = minVecs
	}
	if flags&MultiVector == 0 {
		nvec = 1
	}
	if nvec <= 0 {
		return nil, irq.ErrInvalidArgument
	}

	base, err := dev.core.AllocHwirqRange(dev.domain, nvec)
	if err != nil {
		return nil, err
	}

	indices := make([]int, 0, nvec)
	for i := 0; i < nvec; i++ {
		hw := base + irq.Hwirq(i)
		vq, err := dev.core.CreateMapping(dev.domain, hw)
		if err != nil {
			dev.core.FreeHwirqRange(dev.domain, base+irq.Hwirq(i), nvec-i)
			return indices, err
		}
		rec := &vector{
			index: len(dev.vectors),
			hwirq: hw,
			virq:  vq,
			state: StateAllocated,
		}
		h, err := dev.arena.Alloc(1, rec)
		if err != nil {
			dev.core.DisposeMapping(vq)
			dev.core.FreeHwirqRange(dev.domain, hw, nvec-i)
			return indices, err
		}
		rec.handle = h
		dev.vectors = append(dev.vectors, rec)
		indices = append(indices, rec.index)
	}
	return indices, nil
}

// FreeVectors releases every vector index previously returned by
// AllocVectors: disposes its mapping and releases its arena record
// (spec's msi_free_vectors). DisposeMapping clears the hwirq slot and
// frees the virq only when no handler is registered on it, so a vector
// armed by ComposeAndArm keeps its hwirq slot, virq, descriptor and
// handler; the vector is marked Freed either way.
func (dev *Device) FreeVectors(indices []int) {
	for _, idx := range indices {
		if idx < 0 || idx >= len(dev.vectors) {
			continue
		}
		v := dev.vectors[idx]
		if v == nil || v.state == StateFreed {
			continue
		}
		dev.core.DisposeMapping(v.virq)
		if v.handle != nil {
			dev.arena.Free(v.handle)
		}
		v.state = StateFreed
	}
}

// ComposeAndArm builds the message for vector idx via the bridge's
// ComposeFunc, requests the handler, and transitions the vector to
// Armed (spec's msi_compose_msg + msi_write_msg, folded with handler
// registration since an MSI vector is useless without one).
func (dev *Device) ComposeAndArm(idx int, handler irq.Handler, name string, devData any) error {
	v, err := dev.vectorAt(idx)
	if err != nil {
		return err
	}
	if v.state != StateAllocated {
		return &ErrBadTransition{From: v.state, To: StateArmed}
	}
	if err := dev.core.RequestIRQ(v.virq, handler, 0, name, devData); err != nil {
		return err
	}
	if dev.compose != nil {
		v.msg = dev.compose(dev, idx)
	}
	if dev.write != nil {
		dev.write(dev, idx, v.msg)
	}
	v.state = StateArmed
	return nil
}

// Mask transitions an armed or unmasked vector to Masked, delegating to
// disable_irq_nosync on its virq per spec §4.5 (msi_mask_irq never
// waits for an in-flight dispatch to drain).
func (dev *Device) Mask(idx int) error {
	v, err := dev.vectorAt(idx)
	if err != nil {
		return err
	}
	if v.state != StateArmed && v.state != StateUnmasked {
		return &ErrBadTransition{From: v.state, To: StateMasked}
	}
	dev.core.DisableIRQNoSync(v.virq)
	v.state = StateMasked
	return nil
}

// Unmask transitions a masked vector back to Unmasked (spec's
// msi_unmask_irq).
func (dev *Device) Unmask(idx int) error {
	v, err := dev.vectorAt(idx)
	if err != nil {
		return err
	}
	if v.state != StateMasked {
		return &ErrBadTransition{From: v.state, To: StateUnmasked}
	}
	dev.core.EnableIRQ(v.virq)
	v.state = StateUnmasked
	return nil
}

// Domain returns the tree domain this device's vectors are carved out
// of.
func (dev *Device) Domain() *irq.Domain { return dev.domain }

// Close frees every vector that has not already been freed. It does
// not release dev itself: per the Open Question decision recorded in
// SPEC_FULL.md §5, device objects are arena-owned by the caller, and
// this package never assumes it may reclaim caller memory.
func (dev *Device) Close() {
	live := make([]int, 0, len(dev.vectors))
	for i, v := range dev.vectors {
		if v != nil && v.state != StateFreed {
			live = append(live, i)
		}
	}
	dev.FreeVectors(live)
}

// Virq returns the virq bound to vector idx, or IRQInvalid.
func (dev *Device) Virq(idx int) irq.Virq {
	v, err := dev.vectorAt(idx)
	if err != nil {
		return irq.IRQInvalid
	}
	return v.virq
}

// State returns vector idx's current lifecycle state.
func (dev *Device) State(idx int) State {
	v, err := dev.vectorAt(idx)
	if err != nil {
		return StateUnbound
	}
	return v.state
}

func (dev *Device) vectorAt(idx int) (*vector, error) {
	if idx < 0 || idx >= len(dev.vectors) || dev.vectors[idx] == nil {
		return nil, irq.ErrNotFound
	}
	return dev.vectors[idx], nil
}
