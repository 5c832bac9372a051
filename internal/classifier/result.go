// Package classifier sends rendered message batches to a remote text model
// and turns its free-form answer into a list of matches.
package classifier

import "fmt"

// Match is one accepted message reported by the model.
type Match struct {
	ID      int64
	Summary string
}

// Result is the outcome of one classification request. It is exactly one of
// Matches, Unparseable or TransportFailure.
type Result interface {
	isResult()
}

// Matches is a parsed answer. An empty Items means the model rejected every
// message in the batch.
type Matches struct {
	Items []Match
}

// Unparseable is an answer that carries no recognizable JSON object.
type Unparseable struct {
	Raw string
}

// TransportFailure is a request that did not produce an answer at all.
type TransportFailure struct {
	Err error
}

func (Matches) isResult()          {}
func (Unparseable) isResult()      {}
func (TransportFailure) isResult() {}

// StatusError is returned for a non-2xx response from the HTTP backend.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("classifier returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("classifier returned status %d: %s", e.StatusCode, e.Body)
}
