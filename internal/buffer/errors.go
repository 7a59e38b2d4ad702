package buffer

import "errors"

// Error taxonomy shared by buffers, devices and the operation registry.
// Call sites wrap these with context, so match with errors.Is.
var (
	ErrInvalidArgument      = errors.New("invalid argument")
	ErrUnsupportedOperation = errors.New("unsupported operation")
	ErrTransfer             = errors.New("transfer failed")
	ErrNotImplemented       = errors.New("not implemented")
	ErrIndexOutOfRange      = errors.New("index out of range")
)
