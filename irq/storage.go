package irq

import "github.com/iansmith/mazarin-irq/irq/radixtree"

// linearStorage backs a LINEAR domain: a dense array indexed by hwirq
// plus a reverse cache from hwirq to virq (spec §3).
type linearStorage struct {
	mapSlots []*Desc
	revmap   []Virq
}

func newLinearStorage(size int) *linearStorage {
	s := &linearStorage{
		mapSlots: make([]*Desc, size),
		revmap:   make([]Virq, size),
	}
	for i := range s.revmap {
		s.revmap[i] = IRQInvalid
	}
	return s
}

// treeStorage backs a TREE domain: a sparse hwirq space implemented
// with the radix tree (spec §3, §4.4).
type treeStorage struct {
	tree     *radixtree.Tree
	maxHwirq uint32
}

// reservedMarker occupies a tree slot that has been set aside by
// AllocHwirqRange but does not yet carry a real descriptor (spec
// §4.3 "Hwirq range reservation"). It is a distinguished, unexported
// type so it can never alias a legitimate *Desc value.
type reservedMarker struct{}

var theReservedMarker = &reservedMarker{}

// hierarchyStorage backs a HIERARCHY domain. Its map/revmap storage is
// identical in shape to linearStorage (spec §3); the extra fields
// capture cascade topology.
type hierarchyStorage struct {
	parent   *Domain
	mapSlots []*Desc
	revmap   []Virq

	// parentVirqCache is reserved for a single-entry lookaside cache of
	// the most recently resolved parent virq; like cpu_mask, the core
	// never consults it today (spec §1 Non-goals: no dynamic
	// re-parenting means there is nothing yet that would invalidate a
	// cache worth maintaining).
	parentVirqCache Virq
}

func newHierarchyStorage(parent *Domain, size int) *hierarchyStorage {
	s := &hierarchyStorage{
		parent:          parent,
		mapSlots:        make([]*Desc, size),
		revmap:          make([]Virq, size),
		parentVirqCache: IRQInvalid,
	}
	for i := range s.revmap {
		s.revmap[i] = IRQInvalid
	}
	return s
}

// CreateLinear creates a dense domain over hwirq in [0, size) (spec §4.3).
func (c *Core) CreateLinear(name string, size int, ops *DomainOps, chip *ChipOps, chipData any) (*Domain, error) {
	if size <= 0 || size > LinearMaxSize {
		return nil, ErrInvalidArgument
	}
	d := &Domain{
		core:     c,
		name:     name,
		ops:      ops,
		chip:     chip,
		chipData: chipData,
		kind:     KindLinear,
		linear:   newLinearStorage(size),
	}
	c.registry.register(d)
	c.stats.setDomainsLive(c.registry.count)
	Log.WithFields(map[string]any{"domain": name, "size": size}).Debug("irq: linear domain created")
	return d, nil
}

// CreateTree creates a sparse domain backed by a radix tree, with hwirq
// space [0, maxHwirq]. maxHwirq <= 0 selects the design default
// (2^24 - 1) (spec §4.3).
func (c *Core) CreateTree(name string, maxHwirq uint32, ops *DomainOps, chip *ChipOps, chipData any) (*Domain, error) {
	if maxHwirq == 0 {
		maxHwirq = MaxHwirqDefault
	}
	d := &Domain{
		core:     c,
		name:     name,
		ops:      ops,
		chip:     chip,
		chipData: chipData,
		kind:     KindTree,
		tree:     &treeStorage{tree: radixtree.New(), maxHwirq: maxHwirq},
	}
	c.registry.register(d)
	c.stats.setDomainsLive(c.registry.count)
	Log.WithFields(map[string]any{"domain": name, "max_hwirq": maxHwirq}).Debug("irq: tree domain created")
	return d, nil
}

// CreateHierarchy creates a cascading domain whose children's hwirqs
// are additionally mapped into parent's hwirq space via
// ops.ChildToParentHwirq (identity by default) (spec §4.3).
func (c *Core) CreateHierarchy(name string, parent *Domain, size int, ops *DomainOps, chip *ChipOps, chipData any) (*Domain, error) {
	if parent == nil {
		return nil, ErrInvalidArgument
	}
	if size <= 0 || size > LinearMaxSize {
		return nil, ErrInvalidArgument
	}
	d := &Domain{
		core:      c,
		name:      name,
		ops:       ops,
		chip:      chip,
		chipData:  chipData,
		kind:      KindHierarchy,
		hierarchy: newHierarchyStorage(parent, size),
	}
	c.registry.register(d)
	c.stats.setDomainsLive(c.registry.count)
	Log.WithFields(map[string]any{"domain": name, "size": size, "parent": parent.name}).Debug("irq: hierarchy domain created")
	return d, nil
}
