package spop

import "errors"

// Protocol errors returned by decode paths. Each wraps additional
// context with fmt.Errorf("...: %w", ErrX) at the call site.
var (
	ErrUnknownFrameKind  = errors.New("spop: unknown frame kind")
	ErrUnknownValueType  = errors.New("spop: unknown value type tag")
	ErrTruncated         = errors.New("spop: buffer exhausted before decode completed")
	ErrFrameTooLarge     = errors.New("spop: frame length exceeds negotiated maximum")
	ErrFixedWidthPayload = errors.New("spop: fixed-width payload underrun")
	ErrFragmentedNotify  = errors.New("spop: fragmented NOTIFY frames are not supported")

	// varintWidthError is wrapped into readValue's INT32/UINT32 errors when
	// a decoded varint carries more bits than its declared target width.
	varintWidthError = errors.New("varint exceeds target width")
)
