package common

import "errors"

// Error kinds shared by the descriptor subsystem. Callers wrap these with fmt.Errorf("...: %w")
// and consumers test for them with errors.Is.
var (
	// ErrInvalidMemberDeclaration reports a structured buffer member declared without any intrinsic types.
	ErrInvalidMemberDeclaration = errors.New("invalid member declaration")

	// ErrSizeMismatch reports a write whose data size differs from the target field's packed size.
	ErrSizeMismatch = errors.New("data size mismatch")

	// ErrIndexOutOfRange reports an invalid member, field, array, frame or binding index.
	ErrIndexOutOfRange = errors.New("index out of range")

	// ErrPoolExhausted reports a resource set pool without enough capacity left for an allocation.
	ErrPoolExhausted = errors.New("resource set pool exhausted")

	// ErrInvalidState reports an operation invoked in the wrong lifecycle phase.
	ErrInvalidState = errors.New("invalid state")

	// ErrUnknownType reports an intrinsic member type outside the closed type set.
	ErrUnknownType = errors.New("unknown intrinsic type")

	// ErrInvalidDescriptorWrite reports a descriptor write that does not match the binding it targets.
	ErrInvalidDescriptorWrite = errors.New("invalid descriptor write")

	// ErrUnsupportedDescriptor reports a descriptor type the active backend cannot express.
	ErrUnsupportedDescriptor = errors.New("unsupported descriptor")
)
