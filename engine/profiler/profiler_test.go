package profiler

import (
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) now() time.Time {
	return c.t
}

func TestProfilerReportsPerInterval(t *testing.T) {
	logger, hook := test.NewNullLogger()
	clock := &fakeClock{t: time.Unix(0, 0)}
	p := NewProfiler(WithLogger(logger), WithClock(clock.now), WithUpdateInterval(time.Second))

	for i := 0; i < 59; i++ {
		clock.t = clock.t.Add(10 * time.Millisecond)
		p.RecordWrite(64)
		assert.False(t, p.Tick())
	}
	assert.Empty(t, hook.AllEntries())

	clock.t = time.Unix(2, 0)
	p.RecordWrite(64)
	require.True(t, p.Tick())

	s := p.Last()
	assert.InDelta(t, 30.0, s.FPS, 0.001)
	assert.Equal(t, 60, s.Writes)
	assert.Equal(t, uint64(60*64), s.UploadedBytes)
	assert.InDelta(t, 60*64/1024.0/2, s.UploadRateKB, 0.001)

	require.Len(t, hook.AllEntries(), 1)
	entry := hook.LastEntry()
	assert.Equal(t, logrus.InfoLevel, entry.Level)
	assert.Equal(t, 60, entry.Data["writes"])

	clock.t = clock.t.Add(10 * time.Millisecond)
	assert.False(t, p.Tick())
}
