package resource_set

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-descriptors/common"
	"github.com/Carmen-Shannon/oxy-descriptors/engine/renderer"
)

// pendingWrite is one staged binding update. Its info records are heap allocated one by
// one, so staging more writes never moves a record an earlier write points at.
type pendingWrite struct {
	binding Binding
	buffer  *renderer.BufferInfo
	images  []*renderer.ImageInfo
}

// setWriter is the unexported implementation of SetWriter.
type setWriter struct {
	layout SetLayout
	writes []pendingWrite
}

// SetWriter stages descriptor writes for one set and submits them as one batch.
type SetWriter interface {
	// WriteBuffer stages a buffer region for a structured buffer binding.
	//
	// Parameters:
	//   - binding: the binding index
	//   - info: the buffer region
	//
	// Returns:
	//   - error: common.ErrIndexOutOfRange or common.ErrInvalidDescriptorWrite
	WriteBuffer(binding uint32, info renderer.BufferInfo) error

	// WriteImages stages image and/or sampler records for an image or sampler binding, one per descriptor.
	//
	// Parameters:
	//   - binding: the binding index
	//   - infos: the records, exactly as many as the binding's descriptor count
	//
	// Returns:
	//   - error: common.ErrIndexOutOfRange or common.ErrInvalidDescriptorWrite
	WriteImages(binding uint32, infos ...renderer.ImageInfo) error

	// Submit sends every staged write to one set in a single backend update.
	// The staged writes are kept until Reset.
	//
	// Parameters:
	//   - backend: the backend owning the set
	//   - set: the destination set
	//
	// Returns:
	//   - error: the backend's update error
	Submit(backend renderer.RendererBackend, set renderer.SetHandle) error

	// Len returns the number of staged writes.
	//
	// Returns:
	//   - int: the staged write count
	Len() int

	// Reset drops every staged write.
	Reset()
}

var _ SetWriter = &setWriter{}

// NewSetWriter creates a writer that validates writes against a layout.
//
// Parameters:
//   - layout: the layout of the sets the writer targets
//
// Returns:
//   - SetWriter: the writer
func NewSetWriter(layout SetLayout) SetWriter {
	return &setWriter{
		layout: layout,
	}
}

func (w *setWriter) WriteBuffer(binding uint32, info renderer.BufferInfo) error {
	b, err := w.layout.Binding(binding)
	if err != nil {
		return err
	}
	if b.Kind != KindStructuredBuffer {
		return fmt.Errorf("binding %d is a %s, not a structured buffer: %w", binding, b.Kind, common.ErrInvalidDescriptorWrite)
	}

	record := info
	w.writes = append(w.writes, pendingWrite{binding: b, buffer: &record})
	return nil
}

func (w *setWriter) WriteImages(binding uint32, infos ...renderer.ImageInfo) error {
	b, err := w.layout.Binding(binding)
	if err != nil {
		return err
	}
	if b.Kind == KindStructuredBuffer {
		return fmt.Errorf("binding %d is a structured buffer: %w", binding, common.ErrInvalidDescriptorWrite)
	}
	if uint32(len(infos)) != b.Count {
		return fmt.Errorf("binding %d holds %d descriptors, got %d: %w", binding, b.Count, len(infos), common.ErrInvalidDescriptorWrite)
	}

	records := make([]*renderer.ImageInfo, len(infos))
	for i := range infos {
		record := infos[i]
		records[i] = &record
	}
	w.writes = append(w.writes, pendingWrite{binding: b, images: records})
	return nil
}

func (w *setWriter) Submit(backend renderer.RendererBackend, set renderer.SetHandle) error {
	if len(w.writes) == 0 {
		return nil
	}

	batch := make([]renderer.SetWrite, len(w.writes))
	for i, pw := range w.writes {
		batch[i] = renderer.SetWrite{
			Set:        set,
			Binding:    pw.binding.Index,
			Type:       pw.binding.DescriptorType,
			BufferInfo: pw.buffer,
			ImageInfos: pw.images,
		}
	}
	if err := backend.UpdateSets(batch); err != nil {
		return fmt.Errorf("update set %d: %w", set, err)
	}
	return nil
}

func (w *setWriter) Len() int {
	return len(w.writes)
}

func (w *setWriter) Reset() {
	w.writes = nil
}
