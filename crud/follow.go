package crud

import (
	"errors"
	"time"

	"gorm.io/gorm"

	"asocialoud/domain"
	"asocialoud/errs"
)

// FollowService manages the follow graph. It enforces the one-edge-per-pair
// invariant and keeps resolution failures free of partial mutations.
// It implements the domain.FollowService interface.
type FollowService struct {
	followValidator
}

// followValidator resolves login names and runs validations on incoming
// follow requests. On success, it passes the resolved edge on to followGorm.
type followValidator struct {
	followGorm
}

// followGorm runs CRUD operations on the follows table. It assumes that
// names have been resolved and the request validated.
type followGorm struct {
	db *gorm.DB
}

// NewFollowService returns an instance of FollowService.
func NewFollowService(db *gorm.DB) *FollowService {
	return &FollowService{
		followValidator{
			followGorm{
				db: db,
			},
		},
	}
}

// Ensure the FollowService struct properly implements the domain.FollowService interface.
// If it does not, then this expression becomes invalid and won't compile.
var _ domain.FollowService = &FollowService{}

// ByOwner returns all follow edges owned by the named member, in insertion
// order, with the target member preloaded on each edge.
func (fv *followValidator) ByOwner(ownerLoginName string) ([]domain.Follow, error) {
	owner, err := fv.resolve(ownerLoginName)
	if err != nil {
		return nil, err
	}
	return fv.followGorm.ByOwnerID(owner.ID)
}

// Follow creates the edge (owner, target). If the edge already exists it is
// returned together with an ECONFLICT error and nothing is mutated - the
// caller should treat that as a benign no-op. A concurrent duplicate insert
// is caught by the unique index and folded into the same ECONFLICT.
func (fv *followValidator) Follow(ownerLoginName, targetLoginName string) (*domain.Follow, error) {
	owner, target, err := fv.resolvePair(ownerLoginName, targetLoginName)
	if err != nil {
		return nil, err
	}
	if domain.SameMember(owner, target) {
		return nil, errs.Errorf(errs.EINVALID, "You cannot follow yourself.")
	}
	if existing, err := fv.followGorm.byPair(owner.ID, target.ID); err == nil {
		return existing, errs.Errorf(errs.ECONFLICT, "This follow already exists.")
	} else if errs.ErrorCode(err) != errs.ENOTFOUND {
		return nil, err
	}
	follow := &domain.Follow{
		OwnerID:        owner.ID,
		TargetID:       target.ID,
		FollowDate:     time.Now(),
		AllowResharing: true,
	}
	if err := fv.followGorm.Create(follow); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			// Lost the race against a concurrent follow of the same pair.
			if existing, lookupErr := fv.followGorm.byPair(owner.ID, target.ID); lookupErr == nil {
				return existing, errs.Errorf(errs.ECONFLICT, "This follow already exists.")
			}
			return nil, errs.Errorf(errs.ECONFLICT, "This follow already exists.")
		}
		return nil, err
	}
	follow.Owner = owner
	follow.Target = target
	return follow, nil
}

// Unfollow removes the edge (owner, target) and returns the edges the owner
// still has. ENOTFOUND means there was nothing to unfollow - either the edge
// never existed or a concurrent unfollow removed it first.
func (fv *followValidator) Unfollow(ownerLoginName, targetLoginName string) ([]domain.Follow, error) {
	owner, target, err := fv.resolvePair(ownerLoginName, targetLoginName)
	if err != nil {
		return nil, err
	}
	existing, err := fv.followGorm.byPair(owner.ID, target.ID)
	if err != nil {
		if errs.ErrorCode(err) == errs.ENOTFOUND {
			return nil, errs.Errorf(errs.ENOTFOUND, "You don't follow this member.")
		}
		return nil, err
	}
	if err := fv.followGorm.Delete(existing); err != nil {
		return nil, err
	}
	return fv.followGorm.ByOwnerID(owner.ID)
}

// resolvePair resolves both endpoints of an edge operation.
func (fv *followValidator) resolvePair(ownerLoginName, targetLoginName string) (owner, target *domain.Member, err error) {
	if owner, err = fv.resolve(ownerLoginName); err != nil {
		return nil, nil, err
	}
	if target, err = fv.resolve(targetLoginName); err != nil {
		return nil, nil, err
	}
	return owner, target, nil
}

// resolve turns a login name into a member record. An empty name is the
// caller's fault (EINVALID), an unknown one is ENOTFOUND.
func (fv *followValidator) resolve(loginName string) (*domain.Member, error) {
	normalized := domain.NormalizeLoginName(loginName)
	if normalized == "" {
		return nil, errs.Errorf(errs.EINVALID, "A login name is required.")
	}
	var member domain.Member
	err := fv.db.Where("login_name = ?", normalized).First(&member).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errs.Errorf(errs.ENOTFOUND, "The member %q does not exist.", normalized)
		}
		return nil, err
	}
	return &member, nil
}

// Exists reports whether the edge (owner, target) is present.
func (fg *followGorm) Exists(ownerID, targetID int) (bool, error) {
	var count int64
	err := fg.db.Model(&domain.Follow{}).
		Where("owner_id = ? AND target_id = ?", ownerID, targetID).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// ByOwnerID retrieves all edges owned by a member, in insertion order.
func (fg *followGorm) ByOwnerID(ownerID int) ([]domain.Follow, error) {
	var follows []domain.Follow
	err := fg.db.Preload("Target").
		Where("owner_id = ?", ownerID).
		Order("id asc").
		Find(&follows).Error
	if err != nil {
		return nil, err
	}
	return follows, nil
}

// byPair retrieves the single edge (owner, target), if present.
func (fg *followGorm) byPair(ownerID, targetID int) (*domain.Follow, error) {
	var follow domain.Follow
	err := fg.db.Preload("Target").
		Where("owner_id = ? AND target_id = ?", ownerID, targetID).
		First(&follow).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errs.Errorf(errs.ENOTFOUND, "The follow does not exist.")
		}
		return nil, err
	}
	return &follow, nil
}

// Create stores a new follow edge.
func (fg *followGorm) Create(follow *domain.Follow) error {
	return fg.db.Create(follow).Error
}

// Delete removes exactly the given edge.
func (fg *followGorm) Delete(follow *domain.Follow) error {
	result := fg.db.Delete(&domain.Follow{}, "id = ?", follow.ID)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return errs.Errorf(errs.ENOTFOUND, "You don't follow this member.")
	}
	return nil
}
