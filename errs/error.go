package errs

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
)

// Application error codes. They map the failure modes of the services onto
// a small taxonomy, so that callers (mostly the http package) can react to
// the kind of failure without parsing message strings.
const (
	// EINVALID means the caller supplied missing or malformed data.
	EINVALID = "invalid"
	// ENOTFOUND means a referenced entity does not exist.
	ENOTFOUND = "not_found"
	// ECONFLICT means the requested state already exists. It is a benign
	// signal, not a failure - callers should treat it as a no-op success.
	ECONFLICT = "conflict"
	// EINTERNAL means persistence or another dependency failed unexpectedly.
	EINTERNAL = "internal"
)

// Error is an application error. Every error crossing a service boundary
// should be one of these; anything else is reported as EINTERNAL.
type Error struct {
	// Machine-readable code, one of the constants above.
	Code string `json:"code"`
	// Human-readable message, safe to show to the caller.
	Message string `json:"message"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("asocialoud error: code=%s message=%s", e.Code, e.Message)
}

// Errorf returns a new Error with the given code and formatted message.
func Errorf(code string, format string, args ...interface{}) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// ErrorCode extracts the code of an application error. Non-application
// errors count as internal, a nil error has no code at all.
func ErrorCode(err error) string {
	var e *Error
	if err == nil {
		return ""
	} else if errors.As(err, &e) {
		return e.Code
	}
	return EINTERNAL
}

// ErrorMessage extracts the message of an application error. Messages of
// non-application errors are not meant for end users, so a generic one is
// returned instead.
func ErrorMessage(err error) string {
	var e *Error
	if err == nil {
		return ""
	} else if errors.As(err, &e) {
		return e.Message
	}
	return "Internal error."
}

// statusCodes maps application error codes to http status codes.
var statusCodes = map[string]int{
	EINVALID:  http.StatusBadRequest,
	ENOTFOUND: http.StatusNotFound,
	ECONFLICT: http.StatusConflict,
	EINTERNAL: http.StatusInternalServerError,
}

// ErrorStatusCode returns the http status code for an application error code.
func ErrorStatusCode(code string) int {
	if status, ok := statusCodes[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// ReturnError writes an error response as json. Internal errors are logged
// with their full detail and leave only a generic message in the response.
func ReturnError(w http.ResponseWriter, r *http.Request, err error) {
	code, message := ErrorCode(err), ErrorMessage(err)
	if code == EINTERNAL {
		LogError(r, err)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(ErrorStatusCode(code))
	json.NewEncoder(w).Encode(&Error{Code: code, Message: message})
}

// LogError logs an error together with the request it occurred on.
func LogError(r *http.Request, err error) {
	slog.Error("request failed", "method", r.Method, "path", r.URL.Path, "err", err)
}
