package renderer

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-descriptors/common"
)

// setPool tracks the fixed capacity of one resource set pool. Backends that have no native
// pool object (or whose native pool does not report exhaustion) enforce capacity through it.
type setPool struct {
	label     string
	maxSets   uint32
	capacity  map[DescriptorType]uint32
	remaining map[DescriptorType]uint32
	sets      []SetHandle
}

func newSetPool(desc PoolDescriptor) (*setPool, error) {
	if desc.MaxSets == 0 {
		return nil, fmt.Errorf("pool %q: max sets must be greater than zero", desc.Label)
	}
	p := &setPool{
		label:     desc.Label,
		maxSets:   desc.MaxSets,
		capacity:  make(map[DescriptorType]uint32, len(desc.Sizes)),
		remaining: make(map[DescriptorType]uint32, len(desc.Sizes)),
	}
	for _, s := range desc.Sizes {
		p.capacity[s.Type] += s.Count
		p.remaining[s.Type] += s.Count
	}
	return p, nil
}

// reserve takes the descriptors a layout needs out of the pool, or nothing at all.
func (p *setPool) reserve(bindings map[uint32]LayoutBinding) error {
	if uint32(len(p.sets)) >= p.maxSets {
		return fmt.Errorf("pool %q: all %d sets in use: %w", p.label, p.maxSets, common.ErrPoolExhausted)
	}

	need := make(map[DescriptorType]uint32)
	for _, lb := range bindings {
		need[lb.Type] += lb.Count
	}
	for t, n := range need {
		if p.remaining[t] < n {
			return fmt.Errorf("pool %q: need %d %s descriptors, %d left: %w", p.label, n, t, p.remaining[t], common.ErrPoolExhausted)
		}
	}
	for t, n := range need {
		p.remaining[t] -= n
	}
	return nil
}

// reset restores full capacity and returns the sets that were handed out.
func (p *setPool) reset() []SetHandle {
	sets := p.sets
	p.sets = nil
	for t, n := range p.capacity {
		p.remaining[t] = n
	}
	return sets
}

// layoutBindings indexes layout bindings by slot, rejecting duplicate slots and empty bindings.
func layoutBindings(label string, bindings []LayoutBinding) (map[uint32]LayoutBinding, error) {
	out := make(map[uint32]LayoutBinding, len(bindings))
	for _, lb := range bindings {
		if _, dup := out[lb.Binding]; dup {
			return nil, fmt.Errorf("set layout %q: binding %d already in use", label, lb.Binding)
		}
		if lb.Count == 0 {
			return nil, fmt.Errorf("set layout %q: binding %d has zero descriptors", label, lb.Binding)
		}
		out[lb.Binding] = lb
	}
	return out, nil
}

// checkSetWrite validates the shape of a write against the binding it targets.
// Handle existence is left to the backend.
func checkSetWrite(w SetWrite, bindings map[uint32]LayoutBinding) error {
	lb, ok := bindings[w.Binding]
	if !ok {
		return fmt.Errorf("update sets: set %d has no binding %d: %w", w.Set, w.Binding, common.ErrIndexOutOfRange)
	}
	if lb.Type != w.Type {
		return fmt.Errorf("update sets: binding %d is %s, write is %s: %w", w.Binding, lb.Type, w.Type, common.ErrInvalidDescriptorWrite)
	}

	if w.Type == DescriptorTypeUniformBuffer {
		if w.BufferInfo == nil {
			return fmt.Errorf("update sets: binding %d has no buffer info: %w", w.Binding, common.ErrInvalidDescriptorWrite)
		}
		return nil
	}

	if uint32(len(w.ImageInfos)) != lb.Count {
		return fmt.Errorf("update sets: binding %d expects %d descriptors, got %d: %w", w.Binding, lb.Count, len(w.ImageInfos), common.ErrInvalidDescriptorWrite)
	}
	for _, info := range w.ImageInfos {
		if info == nil {
			return fmt.Errorf("update sets: binding %d has a nil image info: %w", w.Binding, common.ErrInvalidDescriptorWrite)
		}
	}
	return nil
}

// usesView reports whether descriptors of type t reference an image view.
func usesView(t DescriptorType) bool {
	return t == DescriptorTypeSampledImage || t == DescriptorTypeCombinedImageSampler
}

// usesSampler reports whether descriptors of type t reference a sampler.
func usesSampler(t DescriptorType) bool {
	return t == DescriptorTypeSampler || t == DescriptorTypeCombinedImageSampler
}
