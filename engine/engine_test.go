package engine

import (
	"errors"
	"testing"
	"time"

	"github.com/Carmen-Shannon/oxy-descriptors/engine/profiler"
	"github.com/Carmen-Shannon/oxy-descriptors/engine/renderer"
	"github.com/Carmen-Shannon/oxy-descriptors/engine/renderer/resource_set"
	"github.com/Carmen-Shannon/oxy-descriptors/engine/renderer/uniform"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stepClock struct {
	t    time.Time
	step time.Duration
}

func (c *stepClock) now() time.Time {
	c.t = c.t.Add(c.step)
	return c.t
}

func newTestSet(t *testing.T, backend renderer.RendererBackend, frames int) resource_set.ResourceSet {
	t.Helper()
	rs := resource_set.NewResourceSet(backend, resource_set.WithFramesInFlight(frames))
	_, err := rs.AddUniformBuffer(uniform.Member(uniform.Scalar))
	require.NoError(t, err)
	require.NoError(t, rs.Finalize())
	return rs
}

func TestEngineCyclesFrameIndex(t *testing.T) {
	logger, _ := test.NewNullLogger()
	var frames []Frame
	e := NewEngine(
		WithLogger(logger),
		WithFramesInFlight(3),
		WithFrameCallback(func(f Frame) error {
			frames = append(frames, f)
			return nil
		}),
	)
	require.NoError(t, e.RunFrames(7))

	require.Len(t, frames, 7)
	for i, f := range frames {
		assert.Equal(t, i%3, f.Index)
		assert.Equal(t, uint64(i), f.Number)
	}
	assert.Equal(t, 1, e.FrameIndex())
}

func TestEngineFrameErrorStops(t *testing.T) {
	logger, _ := test.NewNullLogger()
	boom := errors.New("boom")
	calls := 0
	e := NewEngine(WithLogger(logger), WithFrameCallback(func(f Frame) error {
		calls++
		if f.Number == 2 {
			return boom
		}
		return nil
	}))

	err := e.RunFrames(5)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 3, calls)
	// The failed frame does not advance the slot.
	assert.Equal(t, 0, e.FrameIndex())
}

func TestEngineRunHeadless(t *testing.T) {
	logger, _ := test.NewNullLogger()
	done := make(chan struct{})
	var e Engine
	e = NewEngine(WithLogger(logger), WithFrameCallback(func(f Frame) error {
		if f.Number == 10 {
			e.Quit()
			close(done)
		}
		return nil
	}))

	require.NoError(t, e.Run())
	<-done
	e.Quit()
}

func TestEngineRunReturnsFrameError(t *testing.T) {
	logger, _ := test.NewNullLogger()
	boom := errors.New("boom")
	e := NewEngine(WithLogger(logger), WithFrameCallback(func(Frame) error {
		return boom
	}))
	assert.ErrorIs(t, e.Run(), boom)
}

func TestEngineProfilerTicks(t *testing.T) {
	logger, hook := test.NewNullLogger()
	clock := &stepClock{t: time.Unix(0, 0), step: 100 * time.Millisecond}
	p := profiler.NewProfiler(profiler.WithLogger(logger), profiler.WithClock(clock.now))

	e := NewEngine(WithLogger(logger), WithClock(clock.now), WithProfiler(p), WithProfiling(true),
		WithFrameCallback(func(Frame) error {
			p.RecordWrite(16)
			return nil
		}))
	require.NoError(t, e.RunFrames(12))
	assert.NotEmpty(t, hook.AllEntries())
	assert.Positive(t, p.Last().Writes)

	hook.Reset()
	e.DisableProfiler()
	require.NoError(t, e.RunFrames(12))
	assert.Empty(t, hook.AllEntries())
}

func TestEngineResourceSets(t *testing.T) {
	logger, _ := test.NewNullLogger()
	backend := renderer.NewHostRendererBackend()
	defer backend.Release()

	e := NewEngine(WithLogger(logger), WithFramesInFlight(2))
	a := newTestSet(t, backend, 2)
	b := newTestSet(t, backend, 2)
	mismatched := newTestSet(t, backend, 3)
	defer mismatched.Release()

	require.NoError(t, e.AddResourceSet(1, a))
	require.NoError(t, e.AddResourceSet(0, b))
	assert.Error(t, e.AddResourceSet(2, mismatched))
	assert.Error(t, e.AddResourceSet(3, nil))
	assert.Len(t, e.ResourceSets(), 2)
	assert.Equal(t, a, e.ResourceSet(1))

	e.SetFrameCallback(func(f Frame) error {
		for _, rs := range e.ResourceSets() {
			if err := resource_set.WriteValue(rs, 0, uniform.Accessor(0), float32(f.Number), f.Index, true); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, e.RunFrames(4))

	e.Shutdown()
	assert.Equal(t, resource_set.StateReleased, a.State())
	assert.Equal(t, resource_set.StateReleased, b.State())
	assert.Empty(t, e.ResourceSets())
}
