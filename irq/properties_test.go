package irq

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

// TestScenarioLinearDoubleMapping is table row S1.
func TestScenarioLinearDoubleMapping(t *testing.T) {
	c := newTestCore()
	d, err := c.CreateLinear("s1", 64, nil, nil, nil)
	require.NoError(t, err)

	v1, err := c.CreateMapping(d, 10)
	require.NoError(t, err)
	v2, err := c.CreateMapping(d, 20)
	require.NoError(t, err)
	v3, err := c.CreateMapping(d, 10)
	require.NoError(t, err)

	assert.NotEqual(t, v1, v2)
	assert.Equal(t, v1, v3)
	assert.Equal(t, Hwirq(10), c.ToDesc(v1).Hwirq())
	assert.Equal(t, Hwirq(20), c.ToDesc(v2).Hwirq())
}

// TestScenarioDispatchThreeTimes is table row S2.
func TestScenarioDispatchThreeTimes(t *testing.T) {
	c := newTestCore()
	d, err := c.CreateLinear("s2", 64, nil, nil, nil)
	require.NoError(t, err)
	v, err := c.CreateMapping(d, 10)
	require.NoError(t, err)

	var got []any
	require.NoError(t, c.RequestIRQ(v, func(devData any) { got = append(got, devData) }, 0, "H", "D"))

	for i := 0; i < 3; i++ {
		c.GenericHandleIRQ(v)
	}
	require.Len(t, got, 3)
	for _, dv := range got {
		assert.Equal(t, "D", dv)
	}
	assert.Equal(t, uint64(3), c.ToDesc(v).Count())
	assert.False(t, c.ToDesc(v).Status().has(StatusDisabled))
}

// TestScenarioDisableNoSyncSuppressesDispatch is table row S3.
func TestScenarioDisableNoSyncSuppressesDispatch(t *testing.T) {
	c := newTestCore()
	d, err := c.CreateLinear("s3", 64, nil, nil, nil)
	require.NoError(t, err)
	v, err := c.CreateMapping(d, 10)
	require.NoError(t, err)

	var calls int
	require.NoError(t, c.RequestIRQ(v, func(any) { calls++ }, 0, "H", "D"))
	c.GenericHandleIRQ(v)
	require.Equal(t, 1, calls)

	c.DisableIRQNoSync(v)
	c.GenericHandleIRQ(v)

	assert.Equal(t, 1, calls, "handler must not run while disabled")
	assert.Equal(t, uint64(1), c.ToDesc(v).Count(), "count must not advance on a spurious dispatch")
	st := c.ToDesc(v).Status()
	assert.True(t, st.has(StatusMasked))
	assert.True(t, st.has(StatusDisabled))
}

// TestScenarioHierarchyChildToParentHwirq is table row S4.
func TestScenarioHierarchyChildToParentHwirq(t *testing.T) {
	c := newTestCore()
	parent, err := c.CreateLinear("parent", 256, nil, nil, nil)
	require.NoError(t, err)
	ops := &DomainOps{ChildToParentHwirq: func(h Hwirq) Hwirq { return 32 + h }}
	child, err := c.CreateHierarchy("child", parent, 32, ops, nil, nil)
	require.NoError(t, err)

	v, err := c.CreateMapping(child, 5)
	require.NoError(t, err)

	assert.NotEqual(t, Virq(IRQInvalid), c.FindMapping(parent, 37))
	assert.Equal(t, Hwirq(37), c.ToDesc(v).ParentDesc().Hwirq())
}

// TestScenarioTreeHeightGrowsAndShrinks is table row S5.
func TestScenarioTreeHeightGrowsAndShrinks(t *testing.T) {
	c := newTestCore()
	d, err := c.CreateTree("s5", 0xFFFFFFFF, nil, nil, nil)
	require.NoError(t, err)

	v0, err := c.CreateMapping(d, 0)
	require.NoError(t, err)
	_, err = c.CreateMapping(d, 0xFFFFFFFF)
	require.NoError(t, err)
	assert.Equal(t, 6, d.tree.tree.Height())

	c.DisposeMapping(c.FindMapping(d, 0xFFFFFFFF))
	assert.Equal(t, 1, d.tree.tree.Height())

	assert.Equal(t, v0, c.FindMapping(d, 0))
	assert.Equal(t, Virq(IRQInvalid), c.FindMapping(d, 0xFFFFFFFF))
}

// TestScenarioHwirqRangeReuse is table row S6.
func TestScenarioHwirqRangeReuse(t *testing.T) {
	c := newTestCore()
	d, err := c.CreateTree("s6", 1<<16, nil, nil, nil)
	require.NoError(t, err)

	base, err := c.AllocHwirqRange(d, 8)
	require.NoError(t, err)
	base2, err := c.AllocHwirqRange(d, 8)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, base2, base+8)

	c.FreeHwirqRange(d, base, 8)
	base3, err := c.AllocHwirqRange(d, 8)
	require.NoError(t, err)
	assert.Equal(t, base, base3)
}

// TestScenarioSharedThenExclusiveRequest is table row S7.
func TestScenarioSharedThenExclusiveRequest(t *testing.T) {
	c := newTestCore()
	d, err := c.CreateLinear("s7", 8, nil, nil, nil)
	require.NoError(t, err)
	v, err := c.CreateMapping(d, 1)
	require.NoError(t, err)

	var order []string
	require.NoError(t, c.RequestIRQ(v, func(devData any) { order = append(order, devData.(string)) }, Shared, "H1", "D1"))
	require.NoError(t, c.RequestIRQ(v, func(devData any) { order = append(order, devData.(string)) }, Shared, "H2", "D2"))
	err = c.RequestIRQ(v, func(any) {}, 0, "H3", "D3")
	assert.ErrorIs(t, err, ErrSharedConflict)

	c.GenericHandleIRQ(v)
	assert.Equal(t, []string{"D1", "D2"}, order)
}

// TestPropertyVirqIdentity is universal invariant 1.
func TestPropertyVirqIdentity(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		a := newVirqAllocator()
		live := map[Virq]bool{}

		steps := rapid.IntRange(1, 300).Draw(rt, "steps")
		for i := 0; i < steps; i++ {
			if rapid.Bool().Draw(rt, "free") && len(live) > 0 {
				var victim Virq
				for v := range live {
					victim = v
					break
				}
				a.Free(victim)
				delete(live, victim)
				continue
			}
			v := a.Alloc()
			if v == IRQInvalid {
				continue
			}
			if v == 0 || v >= MaxVirq {
				rt.Fatalf("Alloc returned out-of-range virq %d", v)
			}
			if live[v] {
				rt.Fatalf("Alloc returned %d which is already live", v)
			}
			if !a.IsAllocated(v) {
				rt.Fatalf("IsAllocated(%d) false immediately after Alloc", v)
			}
			live[v] = true
		}
	})
}

// TestPropertyEnableDisableBalance is universal invariant 4.
func TestPropertyEnableDisableBalance(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		c := newTestCore()
		c.descs.DescAlloc(3)
		require.NoError(t, c.RequestIRQ(3, func(any) {}, 0, "h", nil))

		disables, enables := 0, 0
		steps := rapid.IntRange(1, 200).Draw(rt, "steps")
		for i := 0; i < steps; i++ {
			if rapid.Bool().Draw(rt, "disable") {
				c.DisableIRQNoSync(3)
				disables++
			} else {
				c.EnableIRQ(3)
				enables++
			}
			wantDepth := disables - enables
			if wantDepth < 0 {
				wantDepth = 0
			}
			gotDepth := c.ToDesc(3).Depth()
			if gotDepth != wantDepth {
				rt.Fatalf("depth=%d, want %d (disables=%d enables=%d)", gotDepth, wantDepth, disables, enables)
			}
			wantDisabled := wantDepth > 0
			gotDisabled := c.ToDesc(3).Status().has(StatusDisabled)
			if gotDisabled != wantDisabled {
				rt.Fatalf("disabled=%v, want %v", gotDisabled, wantDisabled)
			}
		}
	})
}

// TestPropertyNoVirqReuseWithActiveHandlers is universal invariant 9.
func TestPropertyNoVirqReuseWithActiveHandlers(t *testing.T) {
	c := newTestCore()
	d, err := c.CreateLinear("reuse", 16, nil, nil, nil)
	require.NoError(t, err)

	v, err := c.CreateMapping(d, 1)
	require.NoError(t, err)
	require.NoError(t, c.RequestIRQ(v, func(any) {}, 0, "h", "x"))

	// Disposing the mapping while a handler remains registered must not
	// free the virq back to the pool.
	c.DisposeMapping(v)
	assert.True(t, c.virqs.IsAllocated(v))

	for i := 0; i < MaxVirq-2; i++ {
		got := c.virqs.Alloc()
		if got == v {
			t.Fatalf("allocator handed back virq %d, which still has a live action chain", v)
		}
		if got == IRQInvalid {
			break
		}
	}
}

// TestPropertyBulkAllocationContiguity is universal invariant 8.
func TestPropertyBulkAllocationContiguity(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		c := newTestCore()
		d, err := c.CreateLinear("bulk", LinearMaxSize, nil, nil, nil)
		require.NoError(t, err)

		n := rapid.IntRange(1, 32).Draw(rt, "n")
		base, err := c.AllocIRQs(d, n, nil)
		if err != nil {
			return
		}
		seen := map[Virq]bool{}
		for v := base; v < base+Virq(n); v++ {
			if c.ToDesc(v) == nil {
				rt.Fatalf("virq %d in allocated range has no descriptor", v)
			}
			if seen[v] {
				rt.Fatalf("duplicate virq %d within one bulk allocation", v)
			}
			seen[v] = true
		}
		c.FreeIRQs(d, base, n)
		for v := base; v < base+Virq(n); v++ {
			if c.ToDesc(v) != nil {
				rt.Fatalf("virq %d still has a descriptor after FreeIRQs", v)
			}
		}
	})
}
