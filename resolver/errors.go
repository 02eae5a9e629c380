package resolver

import "authdns/wire"

// Kind classifies a query-handling failure by spec.md §7's error
// taxonomy, so the transport layer can log and answer consistently
// without re-deriving an rcode from scratch at every call site.
type Kind int

const (
	KindMalformedQuery Kind = iota
	KindUnsupportedClass
	KindUnsupportedOpcode
	KindInternalPanic
)

func (k Kind) String() string {
	switch k {
	case KindMalformedQuery:
		return "MalformedQuery"
	case KindUnsupportedClass:
		return "UnsupportedClass"
	case KindUnsupportedOpcode:
		return "UnsupportedOpcode"
	case KindInternalPanic:
		return "InternalPanic"
	default:
		return "Unknown"
	}
}

// Error is a query-handling failure classified by Kind, carrying the
// rcode the client should see (spec.md §7).
type Error struct {
	Kind  Kind
	Rcode uint8
	Err   error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Kind.String() + ": " + e.Err.Error()
	}

	return e.Kind.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(kind Kind, rcode uint8, err error) *Error {
	return &Error{Kind: kind, Rcode: rcode, Err: err}
}

// MalformedQueryError wraps a wire decode failure (spec.md §7
// MalformedQuery -> FORMERR).
func MalformedQueryError(err error) *Error {
	return newError(KindMalformedQuery, wire.RcodeFormErr, err)
}

// UnsupportedOpcodeError reports an opcode other than QUERY (spec.md §7
// UnsupportedOpcode -> NOTIMP).
func UnsupportedOpcodeError(opcode uint8) *Error {
	return newError(KindUnsupportedOpcode, wire.RcodeNotImp, nil)
}

// UnsupportedClassError reports a query class other than IN (spec.md §7
// UnsupportedClass -> REFUSED).
func UnsupportedClassError(class wire.Class) *Error {
	return newError(KindUnsupportedClass, wire.RcodeRefused, nil)
}

// InternalPanicError wraps a recovered panic (spec.md §7 InternalPanic ->
// SERVFAIL).
func InternalPanicError(recovered interface{}) *Error {
	var err error
	if e, ok := recovered.(error); ok {
		err = e
	}

	return newError(KindInternalPanic, wire.RcodeServFail, err)
}

// Classify validates the decoded query's opcode and question class
// before it ever reaches the resolver chain (spec.md §7). A nil return
// means the query is well-formed enough to resolve.
func Classify(q *wire.Message) *Error {
	if q.Header.Flags.Opcode() != wire.OpcodeQuery {
		return UnsupportedOpcodeError(q.Header.Flags.Opcode())
	}

	if len(q.Questions) != 1 {
		return MalformedQueryError(nil)
	}

	if q.Questions[0].Class != wire.ClassIN {
		return UnsupportedClassError(q.Questions[0].Class)
	}

	return nil
}
