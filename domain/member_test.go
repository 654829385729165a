package domain

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSameMember(t *testing.T) {
	alice := &Member{ID: 1, LoginName: "alice"}
	aliceUpper := &Member{ID: 99, LoginName: "  ALICE "}
	bob := &Member{ID: 1, LoginName: "bob"}

	// Equality is by normalized login name, never by ID.
	require.True(t, SameMember(alice, aliceUpper))
	require.False(t, SameMember(alice, bob))
	require.False(t, SameMember(alice, nil))
	require.False(t, SameMember(nil, nil))
}

func TestNormalizeLoginName(t *testing.T) {
	require.Equal(t, "alice", NormalizeLoginName("  AlIcE\t"))
	require.Equal(t, "", NormalizeLoginName("   "))
}
