package bind_group_provider

import "github.com/cogentcore/webgpu/wgpu"

// BufferWrite describes a single GPU buffer write operation targeting a buffer at a given byte offset.
type BufferWrite struct {
	Buffer *wgpu.Buffer
	Offset uint64
	Data   []byte
}

// Aligned widens the write to the 4-byte granularity queue writes require. The source slice
// is the full host copy of the buffer and must cover the widened range.
//
// Parameters:
//   - buf: the target buffer
//   - shadow: the full host copy of the target buffer
//   - offset: the first dirty byte
//   - size: the number of dirty bytes
//
// Returns:
//   - BufferWrite: the widened write, with Data aliasing shadow
func Aligned(buf *wgpu.Buffer, shadow []byte, offset, size uint64) BufferWrite {
	start := offset &^ 3
	end := (offset + size + 3) &^ 3
	if end > uint64(len(shadow)) {
		end = uint64(len(shadow))
	}
	return BufferWrite{
		Buffer: buf,
		Offset: start,
		Data:   shadow[start:end],
	}
}
