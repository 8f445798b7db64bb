package flowgraph

import (
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/zero-day-ai/flowgraph/ns"
)

// Sentinel errors returned by the resolver.
// These errors can be used with errors.Is() for error checking.
var (
	// ErrProcessorNotFound indicates the processor is not declared anywhere in
	// the flattened graph.
	ErrProcessorNotFound = errors.New("processor not found")

	// ErrExchangeNotFound indicates the exchange key is not declared anywhere
	// in the flattened graph.
	ErrExchangeNotFound = errors.New("exchange not found")

	// ErrNoInputAvailable indicates the processor has no exchange to receive from.
	ErrNoInputAvailable = errors.New("no input available")

	// ErrNoOutputAvailable indicates the processor has no exchange to send to.
	ErrNoOutputAvailable = errors.New("no output available")

	// ErrInputNotSpecified indicates the processor receives from more than one
	// exchange and the caller must name one.
	ErrInputNotSpecified = errors.New("input must be disambiguated")

	// ErrOutputNotSpecified indicates the processor sends to more than one
	// exchange and the caller must name one.
	ErrOutputNotSpecified = errors.New("output must be disambiguated")

	// ErrNoSuchConnection indicates the named exchange is not attached to the
	// processor on the requested side.
	ErrNoSuchConnection = errors.New("no such connection")
)

// Error kinds categorize errors by their type.
const (
	// KindNotFound represents lookups of processors, exchanges or connections
	// that do not exist.
	KindNotFound = "not_found"

	// KindAmbiguous represents lookups that match more than one exchange.
	KindAmbiguous = "ambiguous"

	// KindValidation represents malformed names passed by the caller.
	KindValidation = "validation"

	// KindConfiguration represents topology documents that fail to load or
	// flatten.
	KindConfiguration = "configuration"

	// KindTransport represents failures to build a sender or receiver.
	KindTransport = "transport"

	// KindInternal represents broken invariants of the resolver itself.
	KindInternal = "internal"
)

// Error is a structured error type that wraps underlying errors with the
// operation that failed, the category of error and, for resolver lookups, the
// processor and exchange involved.
//
// Error supports unwrapping, making it compatible with errors.Is() and
// errors.As():
//
//	cfg, err := df.ResolveReceiver(proc)
//	if errors.Is(err, flowgraph.ErrInputNotSpecified) {
//		cfg, err = df.ResolveReceiverFrom(proc, key)
//	}
type Error struct {
	// Op is the operation that failed (e.g., "ResolveReceiver", "Open").
	Op string

	// Kind categorizes the error (e.g., KindNotFound, KindAmbiguous).
	Kind string

	// Processor is the processor the lookup was made for, if any.
	Processor ns.Ident

	// Exchange is the exchange the lookup was made for, if any.
	Exchange ns.Key

	// Err is the underlying error that caused this error.
	Err error

	// Context provides additional context about the error (optional).
	Context map[string]any
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("flowgraph: %s: %s", e.Op, e.Kind)
	}

	if len(e.Context) > 0 {
		return fmt.Sprintf("flowgraph: %s (%s): %s [context: %+v]", e.Op, e.Kind, e.describe(), e.Context)
	}

	return fmt.Sprintf("flowgraph: %s (%s): %s", e.Op, e.Kind, e.describe())
}

func (e *Error) describe() string {
	switch {
	case errors.Is(e.Err, ErrProcessorNotFound):
		return fmt.Sprintf("processor `%s` not found", e.Processor)
	case errors.Is(e.Err, ErrExchangeNotFound):
		return fmt.Sprintf("exchange `%s` not found", e.Exchange)
	case errors.Is(e.Err, ErrNoInputAvailable):
		return fmt.Sprintf("processor `%s` has no inputs", e.Processor)
	case errors.Is(e.Err, ErrNoOutputAvailable):
		return fmt.Sprintf("processor `%s` has no outputs", e.Processor)
	case errors.Is(e.Err, ErrNoSuchConnection):
		return fmt.Sprintf("the exchange `%s` is not connected to the processor `%s`", e.Exchange, e.Processor)
	case errors.Is(e.Err, ErrInputNotSpecified):
		return fmt.Sprintf("the input exchange to processor `%s` must be specified", e.Processor)
	case errors.Is(e.Err, ErrOutputNotSpecified):
		return fmt.Sprintf("the output exchange from processor `%s` must be specified", e.Processor)
	}
	return e.Err.Error()
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is an *Error with the same Kind (and Op, when
// target sets one), or matches the underlying error.
func (e *Error) Is(target error) bool {
	if target == nil {
		return false
	}

	if t, ok := target.(*Error); ok {
		if t.Kind != "" && e.Kind == t.Kind {
			if t.Op == "" || e.Op == t.Op {
				return true
			}
		}
	}

	return errors.Is(e.Err, target)
}

// WithContext returns a copy of e with ctx merged into its context.
func (e *Error) WithContext(ctx map[string]any) *Error {
	newErr := *e
	newErr.Context = make(map[string]any, len(e.Context)+len(ctx))
	for k, v := range e.Context {
		newErr.Context[k] = v
	}
	for k, v := range ctx {
		newErr.Context[k] = v
	}
	return &newErr
}

func lookupError(op, kind string, proc ns.Ident, exchange ns.Key, err error) *Error {
	return &Error{
		Op:        op,
		Kind:      kind,
		Processor: proc,
		Exchange:  exchange,
		Err:       err,
	}
}

// CloseWithLog closes closer and logs any error at warning level. It is
// meant for deferred closes of senders and receivers:
//
//	defer flowgraph.CloseWithLog(tx, logger, "sender")
//
// If logger is nil, slog.Default() is used.
func CloseWithLog(closer io.Closer, logger *slog.Logger, name string) {
	if closer == nil {
		return
	}

	if logger == nil {
		logger = slog.Default()
	}

	if err := closer.Close(); err != nil {
		logger.Warn("failed to close resource",
			"resource", name,
			"error", err)
	}
}
