package crud

import (
	"testing"

	"github.com/stretchr/testify/require"

	"asocialoud/errs"
)

// Empty login names are rejected before any resolution happens, so these
// run without a database.
func TestFollowRejectsEmptyNames(t *testing.T) {
	fs := NewFollowService(nil)

	_, err := fs.Follow("", "bob")
	require.Equal(t, errs.EINVALID, errs.ErrorCode(err))

	_, err = fs.Follow("   ", "bob")
	require.Equal(t, errs.EINVALID, errs.ErrorCode(err))

	_, err = fs.Unfollow("", "bob")
	require.Equal(t, errs.EINVALID, errs.ErrorCode(err))

	_, err = fs.ByOwner("")
	require.Equal(t, errs.EINVALID, errs.ErrorCode(err))
}
