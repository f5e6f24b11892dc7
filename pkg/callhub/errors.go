package callhub

import "fmt"

// RemoteRejectionError reports a call CallHub accepted at the HTTP level but
// rejected in the response body, such as a bulk import that never queued.
type RemoteRejectionError struct {
	Message string
}

func (e *RemoteRejectionError) Error() string {
	return fmt.Sprintf("callhub rejected the request: %s", e.Message)
}
