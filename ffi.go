package dmxp

import (
	"unsafe"

	"github.com/neerajchowdary889/DMXP-MPMC/internal/abi"
)

// The functions in this file are the thin, allocation-free surface a
// cgo export shim (or any other language's FFI binding) would wrap:
// raw pointers in, a Status int32 out, no Go error values or garbage
// collected objects crossing the boundary.

// FFISend copies length bytes from ptr into p's channel as a new
// message. ptr must remain valid for the duration of the call.
func FFISend(p *Producer, ptr unsafe.Pointer, length uint32) Status {
	if p == nil || (ptr == nil && length > 0) {
		return StatusNullPointer
	}
	if length > abi.MsgInline {
		return StatusInvalidArg
	}
	payload := unsafe.Slice((*byte)(ptr), length)
	return StatusFor(p.Send(payload))
}

// FFIReceive copies the next available message's payload into dst,
// writing its length into outLen. Returns StatusEmpty if no message
// is available, StatusBrokenPipe if the channel is empty and its
// producer looks dead, or StatusInvalidArg if dst is smaller than the
// message.
func FFIReceive(c *Consumer, dst unsafe.Pointer, dstCap uint32, outLen *uint32) Status {
	if c == nil || dst == nil || outLen == nil {
		return StatusNullPointer
	}
	msg, err := c.Receive()
	if err != nil {
		return StatusFor(err)
	}
	if msg == nil {
		return StatusEmpty
	}
	defer msg.Release()

	if uint32(len(msg.Payload)) > dstCap {
		return StatusInvalidArg
	}
	out := unsafe.Slice((*byte)(dst), dstCap)
	*outLen = uint32(copy(out, msg.Payload))
	return StatusOK
}

// FFIEncodeMeta and FFIDecodeMeta expose the 40-byte MessageMeta wire
// format to callers that parse it themselves rather than going
// through FFISend/FFIReceive.
func FFIEncodeMeta(m abi.MessageMeta, dst []byte) Status {
	if len(dst) < 40 {
		return StatusInvalidArg
	}
	abi.EncodeMessageMeta(m, dst)
	return StatusOK
}

func FFIDecodeMeta(src []byte) (abi.MessageMeta, Status) {
	if len(src) < 40 {
		return abi.MessageMeta{}, StatusInvalidArg
	}
	return abi.DecodeMessageMeta(src), StatusOK
}
