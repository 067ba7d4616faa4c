package types

import "time"

// Transport names the call surface an exchange was observed on.
type Transport string

const (
	TransportFetch Transport = "fetch"
	TransportXHR   Transport = "xhr"
	TransportHTTP  Transport = "http"
)

// UnknownOperation is reported when no operation name could be derived.
const UnknownOperation = "unknown(op)"

// Exchange is one captured request/response pair. It is never mutated
// after the store accepts it.
type Exchange struct {
	ID              uint64            `json:"id"`
	Timestamp       time.Time         `json:"timestamp"`
	Transport       Transport         `json:"transport"`
	Method          string            `json:"method"`
	URL             string            `json:"url"`
	Pathname        string            `json:"pathname"`
	Operation       *string           `json:"operation"`
	Query           map[string]string `json:"query"`
	RequestHeaders  map[string]string `json:"request_headers"`
	RequestBody     Body              `json:"request_body"`
	Status          *int              `json:"status"`
	ResponseHeaders map[string]string `json:"response_headers"`
	ResponseBody    Body              `json:"response_body"`
	DurationMS      int64             `json:"duration_ms"`
	Page            string            `json:"page,omitempty"`
}

// OperationName returns the derived operation or the empty string.
func (e Exchange) OperationName() string {
	if e.Operation == nil {
		return ""
	}
	return *e.Operation
}

// StatusCode returns the response status or 0 when there was none.
func (e Exchange) StatusCode() int {
	if e.Status == nil {
		return 0
	}
	return *e.Status
}
