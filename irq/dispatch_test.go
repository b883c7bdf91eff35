package irq

import (
	"testing"

	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenericHandleIRQRunsHandlerAndCounts(t *testing.T) {
	c := newTestCore()
	d, err := c.CreateLinear("gic", 8, nil, nil, nil)
	require.NoError(t, err)
	v, err := c.CreateMapping(d, 2)
	require.NoError(t, err)

	var got any
	require.NoError(t, c.RequestIRQ(v, func(devData any) { got = devData }, 0, "h", "payload"))

	c.GenericHandleIRQ(v)
	assert.Equal(t, "payload", got)
	assert.Equal(t, uint64(1), c.ToDesc(v).Count())
	assert.Equal(t, uint64(0), c.ToDesc(v).SpuriousCount())
}

func TestGenericHandleIRQSpuriousWithoutHandler(t *testing.T) {
	c := newTestCore()
	desc := c.descs.DescAlloc(9)

	c.GenericHandleIRQ(9)
	assert.Equal(t, uint64(1), desc.SpuriousCount())
	assert.Equal(t, uint64(0), desc.Count())
}

func TestGenericHandleIRQSpuriousWhenDisabled(t *testing.T) {
	c := newTestCore()
	d, err := c.CreateLinear("gic", 8, nil, nil, nil)
	require.NoError(t, err)
	v, err := c.CreateMapping(d, 2)
	require.NoError(t, err)
	require.NoError(t, c.RequestIRQ(v, func(any) {}, 0, "h", nil))

	c.DisableIRQNoSync(v)
	c.GenericHandleIRQ(v)
	assert.Equal(t, uint64(1), c.ToDesc(v).SpuriousCount())
}

func TestGenericHandleIRQRunsAllSharedHandlers(t *testing.T) {
	c := newTestCore()
	d, err := c.CreateLinear("gic", 8, nil, nil, nil)
	require.NoError(t, err)
	v, err := c.CreateMapping(d, 2)
	require.NoError(t, err)

	var a, b bool
	require.NoError(t, c.RequestIRQ(v, func(any) { a = true }, Shared, "a", "a"))
	require.NoError(t, c.RequestIRQ(v, func(any) { b = true }, Shared, "b", "b"))

	c.GenericHandleIRQ(v)
	assert.True(t, a)
	assert.True(t, b)
}

func TestGenericHandleIRQClearsInProgressAfterDispatch(t *testing.T) {
	c := newTestCore()
	d, err := c.CreateLinear("gic", 8, nil, nil, nil)
	require.NoError(t, err)
	v, err := c.CreateMapping(d, 2)
	require.NoError(t, err)
	require.NoError(t, c.RequestIRQ(v, func(any) {}, 0, "h", nil))

	c.GenericHandleIRQ(v)
	assert.False(t, c.ToDesc(v).Status().has(StatusInProgress))
}

func TestGenericHandleIRQInvokesAckAndEOI(t *testing.T) {
	c := newTestCore()
	var acked, eoid bool
	chip := &ChipOps{
		Ack: func(*Desc) { acked = true },
		EOI: func(*Desc) { eoid = true },
	}
	d, err := c.CreateLinear("gic", 8, nil, chip, nil)
	require.NoError(t, err)
	v, err := c.CreateMapping(d, 2)
	require.NoError(t, err)
	require.NoError(t, c.RequestIRQ(v, func(any) {}, 0, "h", nil))

	c.GenericHandleIRQ(v)
	assert.True(t, acked)
	assert.True(t, eoid)
}

func TestIRQDomainHandleIRQResolvesHwirqThenDispatches(t *testing.T) {
	c := newTestCore()
	d, err := c.CreateLinear("gic", 8, nil, nil, nil)
	require.NoError(t, err)
	v, err := c.CreateMapping(d, 2)
	require.NoError(t, err)

	var fired bool
	require.NoError(t, c.RequestIRQ(v, func(any) { fired = true }, 0, "h", nil))

	c.IRQDomainHandleIRQ(d, 2)
	assert.True(t, fired)
}

func TestIRQDomainHandleIRQUnmappedHwirqIsSpuriousAndSafe(t *testing.T) {
	c := newTestCore()
	d, err := c.CreateLinear("gic", 8, nil, nil, nil)
	require.NoError(t, err)

	assert.NotPanics(t, func() { c.IRQDomainHandleIRQ(d, 7) })

	var m dto.Metric
	require.NoError(t, c.stats.spurious.WithLabelValues("gic").Write(&m))
	assert.Equal(t, 1.0, m.GetCounter().GetValue())
}
