package domain

import "time"

// Follow represents a directed edge in the follow graph. The edge is owned
// by the member who follows (OwnerID); TargetID is a lookup reference only.
// At most one edge may exist per (owner, target) pair - the composite unique
// index backs that invariant at the storage boundary, so concurrent follows
// of the same pair cannot both insert. FollowDate is set at creation and
// never changes afterwards.
type Follow struct {
	ID       int     `json:"id"`
	OwnerID  int     `json:"-" gorm:"not null;index;uniqueIndex:idx_follows_owner_target"`
	Owner    *Member `json:"owner,omitempty" gorm:"foreignKey:OwnerID"`
	TargetID int     `json:"-" gorm:"not null;index;uniqueIndex:idx_follows_owner_target"`
	Target   *Member `json:"memberToFollow,omitempty" gorm:"foreignKey:TargetID"`

	FollowDate     time.Time `json:"followDate"`
	AllowResharing bool      `json:"allowResharing"`
}

// FollowService is a set of methods to manipulate and work with the follow
// graph. Follow and Unfollow take login names, not ids, and resolve them
// against the member store first.
type FollowService interface {
	ByOwner(ownerLoginName string) ([]Follow, error)
	Follow(ownerLoginName, targetLoginName string) (*Follow, error)
	Unfollow(ownerLoginName, targetLoginName string) ([]Follow, error)
	Exists(ownerID, targetID int) (bool, error)
}
