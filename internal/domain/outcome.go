package domain

import (
	"encoding/json"
	"errors"
	"net/http"
)

// Outcome labels, used for logs and metrics.
const (
	OutcomeSuccess           = "success"
	OutcomeValidationError   = "validation_error"
	OutcomeDeviceNotFound    = "device_not_found"
	OutcomeUnexpectedFailure = "unexpected_failure"
)

// Outcome is the caller-visible result of one ingestion run.
type Outcome struct {
	StatusCode int
	Label      string
	Body       any
}

// ErrorBody is the failure payload: {"errors": [...]}.
type ErrorBody struct {
	Errors []json.RawMessage `json:"errors"`
}

type messageEntry struct {
	Message string `json:"message"`
}

type faultEntry struct {
	Status int    `json:"status"`
	Error  string `json:"error"`
}

// Classify maps the terminal state of a run to an Outcome. A nil err means
// the record was committed; committed is then echoed back as the body.
func Classify(committed TelemetryRecord, err error) Outcome {
	if err == nil {
		return Outcome{StatusCode: http.StatusOK, Label: OutcomeSuccess, Body: committed}
	}

	var validation *ValidationError
	if errors.As(err, &validation) {
		return Outcome{
			StatusCode: http.StatusBadRequest,
			Label:      OutcomeValidationError,
			Body:       ErrorBody{Errors: validation.Errors},
		}
	}

	var notFound *NotFoundError
	if errors.As(err, &notFound) {
		return Outcome{
			StatusCode: http.StatusNotFound,
			Label:      OutcomeDeviceNotFound,
			Body:       ErrorBody{Errors: []json.RawMessage{mustMarshal(messageEntry{Message: notFound.Error()})}},
		}
	}

	return Failure(err)
}

// Failure builds the 500 outcome for an unexpected fault.
func Failure(err error) Outcome {
	entry := faultEntry{Status: http.StatusInternalServerError, Error: err.Error()}
	return Outcome{
		StatusCode: http.StatusInternalServerError,
		Label:      OutcomeUnexpectedFailure,
		Body:       ErrorBody{Errors: []json.RawMessage{mustMarshal(entry)}},
	}
}

// MarshalBody serializes the outcome body. If the body cannot be encoded the
// outcome is replaced by a 500 describing the encoding fault.
func (o Outcome) MarshalBody() (Outcome, []byte) {
	data, err := json.Marshal(o.Body)
	if err != nil {
		failed := Failure(err)
		return failed, mustMarshal(failed.Body)
	}
	return o, data
}

// mustMarshal encodes values built from plain strings and ints only.
func mustMarshal(v any) json.RawMessage {
	data, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return data
}
