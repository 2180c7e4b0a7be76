package erp

import (
	"errors"
	"fmt"
)

// ErrAmbiguous is returned by FindOne when a filter matches more than one
// document. Lookups never guess between candidates; the caller must narrow
// the query.
var ErrAmbiguous = errors.New("filter matched more than one document")

// TransportError is any failure of the wire itself: non-2xx status,
// non-JSON body, timeout, connection failure. It always carries the raw
// response body so failures can be diagnosed without re-running with extra
// logging. A transport error aborts the remainder of a batch because the
// remote state is no longer known.
type TransportError struct {
	Op     string // logical operation, e.g. "tools/call" or "GET /api/resource/Item"
	Status int    // HTTP status, 0 when the request never completed
	Body   string // raw response body (truncated)
	Err    error  // underlying error, if any
}

func (e *TransportError) Error() string {
	switch {
	case e.Err != nil && e.Status == 0:
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("%s: HTTP %d: %v", e.Op, e.Status, e.Err)
	default:
		return fmt.Sprintf("%s: HTTP %d\n%s", e.Op, e.Status, e.Body)
	}
}

func (e *TransportError) Unwrap() error { return e.Err }

// IsTransport reports whether err is (or wraps) a TransportError.
func IsTransport(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}
