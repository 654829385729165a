package errs

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestErrorCode(t *testing.T) {
	require.Equal(t, "", ErrorCode(nil))
	require.Equal(t, EINVALID, ErrorCode(Errorf(EINVALID, "bad input")))
	require.Equal(t, ENOTFOUND, ErrorCode(fmt.Errorf("wrapped: %w", Errorf(ENOTFOUND, "gone"))))
	require.Equal(t, EINTERNAL, ErrorCode(errors.New("plain database failure")))
}

func TestErrorMessage(t *testing.T) {
	require.Equal(t, "", ErrorMessage(nil))
	require.Equal(t, "bad input", ErrorMessage(Errorf(EINVALID, "bad input")))
	// Messages of untagged errors must not leak to callers.
	require.Equal(t, "Internal error.", ErrorMessage(errors.New("dsn=postgres://secret")))
}

func TestErrorStatusCode(t *testing.T) {
	require.Equal(t, http.StatusBadRequest, ErrorStatusCode(EINVALID))
	require.Equal(t, http.StatusNotFound, ErrorStatusCode(ENOTFOUND))
	require.Equal(t, http.StatusConflict, ErrorStatusCode(ECONFLICT))
	require.Equal(t, http.StatusInternalServerError, ErrorStatusCode(EINTERNAL))
	require.Equal(t, http.StatusInternalServerError, ErrorStatusCode("made-up"))
}
