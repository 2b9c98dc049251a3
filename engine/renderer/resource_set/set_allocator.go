package resource_set

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-descriptors/common"
	"github.com/Carmen-Shannon/oxy-descriptors/engine/renderer"
	"github.com/sirupsen/logrus"
)

// setAllocator is the unexported implementation of SetAllocator.
type setAllocator struct {
	backend renderer.RendererBackend
	logger  logrus.FieldLogger
	label   string

	pool      renderer.PoolHandle
	maxSets   uint32
	capacity  map[renderer.DescriptorType]uint32
	remaining map[renderer.DescriptorType]uint32
	allocated []renderer.SetHandle
}

// SetAllocator hands out resource sets from a fixed-capacity pool. The pool never grows.
type SetAllocator interface {
	// Allocate takes one set with the given layout from the pool.
	//
	// Parameters:
	//   - layout: the layout of the new set
	//
	// Returns:
	//   - renderer.SetHandle: the new set
	//   - error: common.ErrPoolExhausted if the pool has too few sets or descriptors left
	Allocate(layout SetLayout) (renderer.SetHandle, error)

	// Reset returns every allocated set to the pool. Their handles become invalid.
	//
	// Returns:
	//   - error: an error if the backend reset fails
	Reset() error

	// Allocated returns the sets handed out since the last reset, in allocation order.
	//
	// Returns:
	//   - []renderer.SetHandle: the sets
	Allocated() []renderer.SetHandle

	// RemainingSets returns how many more sets may be allocated.
	//
	// Returns:
	//   - uint32: the remaining set count
	RemainingSets() uint32

	// Remaining returns how many more descriptors of a type may be allocated.
	//
	// Parameters:
	//   - t: the descriptor type
	//
	// Returns:
	//   - uint32: the remaining descriptor count
	Remaining(t renderer.DescriptorType) uint32

	// Release destroys the pool and every set allocated from it.
	Release()
}

var _ SetAllocator = &setAllocator{}

// NewSetAllocator creates a pool with the given capacity on the backend.
//
// Parameters:
//   - backend: the backend to create the pool on
//   - label: a debug label
//   - sizes: per descriptor type capacity, usually from PoolSizesFor
//   - maxSets: the number of sets the pool can hand out before a reset
//   - logger: the logger, or nil for the logrus standard logger
//
// Returns:
//   - SetAllocator: the created allocator
//   - error: an error if the backend rejects the pool
func NewSetAllocator(backend renderer.RendererBackend, label string, sizes []renderer.PoolSize, maxSets uint32, logger logrus.FieldLogger) (SetAllocator, error) {
	pool, err := backend.CreatePool(renderer.PoolDescriptor{
		Label:   label,
		MaxSets: maxSets,
		Sizes:   sizes,
	})
	if err != nil {
		return nil, err
	}

	a := &setAllocator{
		backend:   backend,
		logger:    common.Coalesce[logrus.FieldLogger](logger, logrus.StandardLogger()),
		label:     label,
		pool:      pool,
		maxSets:   maxSets,
		capacity:  make(map[renderer.DescriptorType]uint32, len(sizes)),
		remaining: make(map[renderer.DescriptorType]uint32, len(sizes)),
	}
	for _, s := range sizes {
		a.capacity[s.Type] += s.Count
		a.remaining[s.Type] += s.Count
	}
	return a, nil
}

func (a *setAllocator) Allocate(layout SetLayout) (renderer.SetHandle, error) {
	if a.RemainingSets() == 0 {
		return 0, fmt.Errorf("pool %q: all %d sets in use: %w", a.label, a.maxSets, common.ErrPoolExhausted)
	}

	need := make(map[renderer.DescriptorType]uint32)
	for _, b := range layout.Bindings() {
		need[b.DescriptorType] += b.Count
	}
	for t, n := range need {
		if a.remaining[t] < n {
			return 0, fmt.Errorf("pool %q: need %d %s descriptors, %d left: %w", a.label, n, t, a.remaining[t], common.ErrPoolExhausted)
		}
	}

	set, err := a.backend.AllocateSet(a.pool, layout.Handle())
	if err != nil {
		return 0, err
	}
	for t, n := range need {
		a.remaining[t] -= n
	}
	a.allocated = append(a.allocated, set)
	return set, nil
}

func (a *setAllocator) Reset() error {
	if err := a.backend.ResetPool(a.pool); err != nil {
		return err
	}
	a.logger.WithFields(logrus.Fields{
		"pool": a.label,
		"sets": len(a.allocated),
	}).Debug("[resource_set] pool reset")

	a.allocated = nil
	for t, n := range a.capacity {
		a.remaining[t] = n
	}
	return nil
}

func (a *setAllocator) Allocated() []renderer.SetHandle {
	out := make([]renderer.SetHandle, len(a.allocated))
	copy(out, a.allocated)
	return out
}

func (a *setAllocator) RemainingSets() uint32 {
	return a.maxSets - uint32(len(a.allocated))
}

func (a *setAllocator) Remaining(t renderer.DescriptorType) uint32 {
	return a.remaining[t]
}

func (a *setAllocator) Release() {
	if a.pool != 0 {
		a.backend.ReleasePool(a.pool)
		a.pool = 0
		a.allocated = nil
	}
}
