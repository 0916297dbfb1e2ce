package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Kind classifies where a backend call went wrong.
type Kind int

const (
	// KindNetwork means no HTTP response was received.
	KindNetwork Kind = iota + 1
	// KindServer means the backend answered with a non-2xx status.
	KindServer
	// KindMalformed means a 2xx response could not be understood.
	KindMalformed
)

func (k Kind) String() string {
	switch k {
	case KindNetwork:
		return "network"
	case KindServer:
		return "server"
	case KindMalformed:
		return "malformed-response"
	default:
		return "unknown"
	}
}

// RequestError carries the classification shared by all backend call errors.
// Message is what a user should see; server-supplied detail is kept verbatim.
type RequestError struct {
	Kind       Kind
	StatusCode int
	Message    string
	Err        error
}

func (e *RequestError) Error() string {
	return e.Message
}

func (e *RequestError) Unwrap() error {
	return e.Err
}

// SubmissionError is returned by Submit.
type SubmissionError struct{ RequestError }

// StatusError is returned by JobStatus.
type StatusError struct{ RequestError }

// DownloadError is returned by FetchArtifact.
type DownloadError struct{ RequestError }

// KindOf returns the Kind of any client error in err's chain, or 0.
func KindOf(err error) Kind {
	var se *SubmissionError
	if errors.As(err, &se) {
		return se.Kind
	}
	var st *StatusError
	if errors.As(err, &st) {
		return st.Kind
	}
	var de *DownloadError
	if errors.As(err, &de) {
		return de.Kind
	}
	var re *RequestError
	if errors.As(err, &re) {
		return re.Kind
	}
	return 0
}

func networkError(err error) RequestError {
	return RequestError{
		Kind:    KindNetwork,
		Message: fmt.Sprintf("network error: %v", err),
		Err:     err,
	}
}

func serverError(status int, body []byte, fallback string) RequestError {
	msg := parseDetail(body)
	if msg == "" {
		msg = fallback
	}
	return RequestError{
		Kind:       KindServer,
		StatusCode: status,
		Message:    msg,
		Err:        fmt.Errorf("backend returned status %d", status),
	}
}

func malformedError(msg string, err error) RequestError {
	if err != nil {
		msg = fmt.Sprintf("%s: %v", msg, err)
	}
	return RequestError{
		Kind:    KindMalformed,
		Message: msg,
		Err:     err,
	}
}

// parseDetail extracts the "detail" field of an error body. The backend sends
// a string for handled errors and a list of objects for request validation
// failures; the latter is flattened to its "msg" fields.
func parseDetail(body []byte) string {
	var errResp struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(body, &errResp); err != nil || len(errResp.Detail) == 0 {
		return ""
	}

	var text string
	if err := json.Unmarshal(errResp.Detail, &text); err == nil {
		return strings.TrimSpace(text)
	}

	var items []struct {
		Msg string `json:"msg"`
	}
	if err := json.Unmarshal(errResp.Detail, &items); err == nil {
		msgs := make([]string, 0, len(items))
		for _, it := range items {
			if it.Msg != "" {
				msgs = append(msgs, it.Msg)
			}
		}
		return strings.Join(msgs, "; ")
	}

	if string(errResp.Detail) == "null" {
		return ""
	}
	return string(errResp.Detail)
}
