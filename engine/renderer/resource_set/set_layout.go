package resource_set

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-descriptors/common"
	"github.com/Carmen-Shannon/oxy-descriptors/engine/renderer"
)

// Binding is the slot assigned to one declared resource.
type Binding struct {
	// Index is the binding index shaders address the resource by.
	Index uint32
	// Kind is the resource category.
	Kind Kind
	// DescriptorType is the backend descriptor type of the slot.
	DescriptorType renderer.DescriptorType
	// Count is the number of descriptors at the slot.
	Count uint32
	// CategoryIndex is the resource's position among declarations of the same kind.
	CategoryIndex int
	// Declaration is the resource's position in the full declaration list.
	Declaration int
}

// AssignBindings numbers declarations contiguously from 0: structured buffers first, then
// combined image samplers, then image arrays (one binding each), then plain samplers.
// Within a category, declaration order is kept. The result depends only on the kinds
// and order of decls.
//
// Parameters:
//   - decls: the declarations, in declaration order
//
// Returns:
//   - []Binding: the bindings, ordered by binding index
func AssignBindings(decls []Declaration) []Binding {
	bindings := make([]Binding, 0, len(decls))
	var next uint32
	for _, kind := range bindingOrder {
		categoryIndex := 0
		for i, d := range decls {
			if d.Kind != kind {
				continue
			}
			bindings = append(bindings, Binding{
				Index:          next,
				Kind:           kind,
				DescriptorType: kind.DescriptorType(),
				Count:          d.Count(),
				CategoryIndex:  categoryIndex,
				Declaration:    i,
			})
			next++
			categoryIndex++
		}
	}
	return bindings
}

// PoolSizesFor returns the pool capacity needed to allocate one set per frame in flight for the declarations.
//
// Parameters:
//   - decls: the declarations
//   - framesInFlight: the number of sets that will be allocated
//
// Returns:
//   - []renderer.PoolSize: per descriptor type capacity, omitting types with no descriptors
func PoolSizesFor(decls []Declaration, framesInFlight int) []renderer.PoolSize {
	counts := make(map[renderer.DescriptorType]uint32)
	for _, d := range decls {
		counts[d.Kind.DescriptorType()] += d.Count()
	}

	sizes := make([]renderer.PoolSize, 0, len(counts))
	for _, kind := range bindingOrder {
		t := kind.DescriptorType()
		if n := counts[t]; n > 0 {
			sizes = append(sizes, renderer.PoolSize{Type: t, Count: n * uint32(framesInFlight)})
			delete(counts, t)
		}
	}
	return sizes
}

// setLayout is the unexported implementation of SetLayout.
type setLayout struct {
	backend  renderer.RendererBackend
	handle   renderer.SetLayoutHandle
	bindings []Binding
}

// SetLayout is the immutable binding layout of a resource set, created on a backend.
type SetLayout interface {
	// Handle returns the backend layout handle.
	//
	// Returns:
	//   - renderer.SetLayoutHandle: the layout handle
	Handle() renderer.SetLayoutHandle

	// Bindings returns a copy of the bindings, ordered by binding index.
	//
	// Returns:
	//   - []Binding: the bindings
	Bindings() []Binding

	// Binding returns the binding at an index.
	//
	// Parameters:
	//   - index: the binding index
	//
	// Returns:
	//   - Binding: the binding
	//   - error: common.ErrIndexOutOfRange if the layout has no such binding
	Binding(index uint32) (Binding, error)

	// Release destroys the backend layout.
	Release()
}

var _ SetLayout = &setLayout{}

// NewSetLayout assigns bindings to the declarations and creates the layout on the backend.
//
// Parameters:
//   - backend: the backend to create the layout on
//   - label: a debug label
//   - decls: the declarations, in declaration order
//   - stages: the shader stages every binding is visible to
//
// Returns:
//   - SetLayout: the created layout
//   - error: an error if the backend rejects the layout
func NewSetLayout(backend renderer.RendererBackend, label string, decls []Declaration, stages renderer.ShaderStage) (SetLayout, error) {
	bindings := AssignBindings(decls)
	native := make([]renderer.LayoutBinding, len(bindings))
	for i, b := range bindings {
		native[i] = renderer.LayoutBinding{
			Binding: b.Index,
			Type:    b.DescriptorType,
			Count:   b.Count,
			Stages:  stages,
		}
	}

	handle, err := backend.CreateSetLayout(label, native)
	if err != nil {
		return nil, err
	}
	return &setLayout{
		backend:  backend,
		handle:   handle,
		bindings: bindings,
	}, nil
}

func (l *setLayout) Handle() renderer.SetLayoutHandle {
	return l.handle
}

func (l *setLayout) Bindings() []Binding {
	out := make([]Binding, len(l.bindings))
	copy(out, l.bindings)
	return out
}

func (l *setLayout) Binding(index uint32) (Binding, error) {
	// Indices are contiguous from 0.
	if int(index) >= len(l.bindings) {
		return Binding{}, fmt.Errorf("binding %d of %d: %w", index, len(l.bindings), common.ErrIndexOutOfRange)
	}
	return l.bindings[index], nil
}

func (l *setLayout) Release() {
	if l.handle != 0 {
		l.backend.ReleaseSetLayout(l.handle)
		l.handle = 0
	}
}
