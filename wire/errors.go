package wire

import "errors"

// Errors returned by the decoder. All are recoverable at the resolver
// level: they map to FORMERR, never to a crash.
var (
	ErrMalformedHeader = errors.New("wire: malformed header")
	ErrNameTooLong      = errors.New("wire: name exceeds 255 octets")
	ErrLabelTooLong     = errors.New("wire: label exceeds 63 octets")
	ErrPointerLoop      = errors.New("wire: compression pointer loop or forward reference")
	ErrTruncatedRdata   = errors.New("wire: truncated rdata")
	ErrTruncatedMessage = errors.New("wire: truncated message")
	ErrUnknownClass     = errors.New("wire: unknown class")
)

const maxNameOctets = 255

const maxPointerJumps = 20
