// Package errs defines the closed error taxonomy shared by every core
// component (pcap, sockfilter, packetmmap, worker, registry, service).
package errs

import "fmt"

// Kind is a stable, closed error category. Kind values are compared with
// Of (or errors.Is against an *Error of the same Kind), never by string
// match.
type Kind int

const (
	// InvalidArgument signals a request rejected by validation: an
	// empty name, an unsupported frame size, a non-power-of-two count.
	InvalidArgument Kind = iota
	// InvalidFormat signals a pcap magic/version/linktype mismatch or
	// a structurally invalid filter program.
	InvalidFormat
	// Io signals an underlying system-call failure.
	Io
	// OutOfMemory signals an allocation failure during ring, filter,
	// or record materialization.
	OutOfMemory
	// NotFound signals an unknown worker identifier in a registry
	// operation.
	NotFound
	// EndOfFile signals a pcap read reached end of file. It is a
	// control-flow value, not a fault: callers never report it as an
	// error to an end user.
	EndOfFile
	// Busy signals an operation that cannot proceed yet, e.g.
	// reconfiguring a worker before its run loop has started.
	Busy
)

func (k Kind) String() string {
	switch k {
	case InvalidArgument:
		return "invalid argument"
	case InvalidFormat:
		return "invalid format"
	case Io:
		return "io"
	case OutOfMemory:
		return "out of memory"
	case NotFound:
		return "not found"
	case EndOfFile:
		return "end of file"
	case Busy:
		return "busy"
	default:
		return "unknown"
	}
}

// Error wraps an underlying cause with a stable Kind and an optional
// operation label, in the style of 0x9ef/lpcap's ParseError: small,
// typed, and unwrappable.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %s", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Is allows errors.Is(err, errs.New(Kind, "", nil)) style comparisons
// by Kind alone, ignoring Op and Err.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// New constructs an *Error. Err may be nil when the Kind itself is the
// complete signal (e.g. EndOfFile).
func New(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Of reports whether err carries the given Kind anywhere in its chain.
func Of(err error, kind Kind) bool {
	for err != nil {
		var e *Error
		if !as(err, &e) {
			return false
		}
		if e.Kind == kind {
			return true
		}
		err = e.Err
	}
	return false
}

// as walks err's Unwrap chain to the first *Error, a small local
// stand-in for errors.As.
func as(err error, target **Error) bool {
	for err != nil {
		if e, ok := err.(*Error); ok {
			*target = e
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
