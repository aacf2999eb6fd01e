package dmxp

// Status is the closed set of integer codes returned across the FFI
// boundary's C ABI surface, where callers can't unwrap a Go error
// chain.
type Status int32

const (
	StatusOK            Status = 0
	StatusNullPointer    Status = -1
	StatusInvalidArg     Status = -2
	StatusNotFound       Status = -3
	StatusChannelFull    Status = -4
	StatusEmpty          Status = -5
	StatusInternal       Status = -6
	StatusTimeout        Status = -7
	StatusBrokenPipe     Status = -8
)

// StatusFor maps a Go error returned by the public API onto the
// status code an FFI caller would receive. nil maps to StatusOK.
func StatusFor(err error) Status {
	if err == nil {
		return StatusOK
	}
	e, ok := err.(*Error)
	if !ok {
		return StatusInternal
	}
	switch e.Code {
	case ErrCodeInvalidInput:
		return StatusInvalidArg
	case ErrCodeNotFound:
		return StatusNotFound
	case ErrCodeChannelFull:
		return StatusChannelFull
	case ErrCodeChannelEmpty:
		return StatusEmpty
	case ErrCodeTimeout:
		return StatusTimeout
	case ErrCodeBrokenPipe:
		return StatusBrokenPipe
	default:
		return StatusInternal
	}
}
