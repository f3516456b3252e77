package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrRequestBuild marks a failure to construct an outbound request at all.
// Unlike an unanswered or rejected request it aborts the whole run.
var ErrRequestBuild = errors.New("build request")

// ValidationError carries the structured error list returned by the backend.
type ValidationError struct {
	Op     string
	Errors []json.RawMessage
}

func (e *ValidationError) Error() string {
	msgs := make([]string, 0, len(e.Errors))
	for _, raw := range e.Errors {
		var item struct {
			Message string `json:"message"`
		}
		if err := json.Unmarshal(raw, &item); err == nil && item.Message != "" {
			msgs = append(msgs, item.Message)
			continue
		}
		msgs = append(msgs, string(raw))
	}
	return fmt.Sprintf("%s: backend rejected request: %s", e.Op, strings.Join(msgs, "; "))
}

// NotFoundError reports a device that is unknown or has no owner.
type NotFoundError struct {
	DeviceID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("Device %s not found or has no owner", e.DeviceID)
}
