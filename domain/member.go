package domain

import (
	"strings"
	"time"
)

// Member represents a registered account. Its LoginName is unique and looked
// up case-insensitively, the Email is unique as well. The plaintext Password
// only exists on incoming registration data and is never persisted - the
// member service bcrypts it into PasswordHash and clears it.
type Member struct {
	ID        int    `json:"id"`
	LoginName string `json:"loginName" gorm:"uniqueIndex;not null"`
	RealName  string `json:"realName" gorm:"not null"`
	Email     string `json:"email" gorm:"uniqueIndex;not null"`

	Password     string `json:"password,omitempty" gorm:"-"`
	PasswordHash string `json:"-" gorm:"not null"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// SameMember reports whether two members are the same account. Members are
// equal by normalized login name, never by ID or object identity.
func SameMember(a, b *Member) bool {
	if a == nil || b == nil {
		return false
	}
	return NormalizeLoginName(a.LoginName) == NormalizeLoginName(b.LoginName)
}

// NormalizeLoginName lowercases a login name and trims its whitespace.
// All login name comparisons and lookups go through this.
func NormalizeLoginName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// MemberSearchResult is a search hit annotated with the follow relation
// between the hit and the member running the search.
type MemberSearchResult struct {
	Member
	FollowedByMe bool `json:"followedByMe"`
	FollowsMe    bool `json:"followsMe"`
}

// MemberService is a set of methods to manipulate and work with the Member model.
type MemberService interface {
	ByID(id int) (*Member, error)
	ByLoginName(name string) (*Member, error)
	All() ([]Member, error)
	Search(fragment string, viewer *Member) ([]MemberSearchResult, error)
	Create(member *Member) error
	Update(member *Member) error
	Delete(id int) error
	Authenticate(loginName, password string) (*Member, error)
}
