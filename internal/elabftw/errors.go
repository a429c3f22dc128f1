package elabftw

import (
	"errors"
	"fmt"
)

// ErrMissingLocation indicates a creation response without the Location
// header carrying the new resource id.
var ErrMissingLocation = errors.New("response has no Location header")

// StatusError represents an unexpected HTTP status from the eLabFTW API.
type StatusError struct {
	Op         string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s failed: got status: %d", e.Op, e.StatusCode)
}
