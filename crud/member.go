package crud

import (
	"errors"
	"regexp"
	"strings"
	"unicode/utf8"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"asocialoud/domain"
	"asocialoud/errs"
)

// MemberService manages Members and the credential hashing that goes with
// registration. It implements the domain.MemberService interface.
type MemberService struct {
	memberValidator
}

// memberValidator runs validations on incoming Member data.
// On success, it passes the data on to memberGorm.
// Otherwise, it returns the error of the validation that has failed.
type memberValidator struct {
	pepper     string
	emailRegex *regexp.Regexp
	memberGorm
}

// memberGorm runs CRUD operations on the database using incoming Member data.
// It assumes that data has been validated. On success, it returns nil.
// Otherwise, it returns the error of the operation that has failed.
type memberGorm struct {
	db *gorm.DB
}

// NewMemberService returns an instance of MemberService.
func NewMemberService(db *gorm.DB, pepper string) *MemberService {
	return &MemberService{
		memberValidator{
			pepper:     pepper,
			emailRegex: regexp.MustCompile(`^[a-z0-9._%+\-]+@[a-z0-9.\-]+\.[a-z]{2,16}$`),
			memberGorm: memberGorm{
				db: db,
			},
		},
	}
}

// Ensure the MemberService struct properly implements the domain.MemberService interface.
// If it does not, then this expression becomes invalid and won't compile.
var _ domain.MemberService = &MemberService{}

// Authenticate checks a submitted login name and password for existence and
// correctness. The service never stores or compares plaintext credentials -
// only the bcrypt hash ever touches the database.
func (mv *memberValidator) Authenticate(loginName, password string) (*domain.Member, error) {
	found, err := mv.memberGorm.ByLoginName(domain.NormalizeLoginName(loginName))
	if err != nil {
		if errs.ErrorCode(err) == errs.ENOTFOUND {
			return nil, errs.Errorf(errs.EINVALID, "The login name does not exist.")
		}
		return nil, err
	}
	err = bcrypt.CompareHashAndPassword([]byte(found.PasswordHash), []byte(password+mv.pepper))
	if err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return nil, errs.Errorf(errs.EINVALID, "The password is incorrect.")
		}
		return nil, err
	}
	return found, nil
}

// Create runs validations needed for registering new Member database records.
func (mv *memberValidator) Create(member *domain.Member) error {
	err := runMemberValFns(member,
		mv.loginNameNormalize,
		mv.loginNameRequired,
		mv.loginNameIsAvail,
		mv.realNameRequired,
		mv.passwordRequired,
		mv.passwordMinLength,
		mv.passwordBcrypt,
		mv.passwordHashRequired,
		mv.emailNormalize,
		mv.emailRequired,
		mv.emailFormat,
		mv.emailIsAvail)
	if err != nil {
		return err
	}
	return mv.memberGorm.Create(member)
}

// Update runs validations needed for updating a Member record in the database.
// Only the real name and the email address are updatable.
func (mv *memberValidator) Update(member *domain.Member) error {
	err := runMemberValFns(member,
		mv.realNameRequired,
		mv.emailNormalize,
		mv.emailRequired,
		mv.emailFormat,
		mv.emailIsAvail)
	if err != nil {
		return err
	}
	return mv.memberGorm.Update(member)
}

// ByLoginName normalizes the login name before handing the lookup to memberGorm.
func (mv *memberValidator) ByLoginName(name string) (*domain.Member, error) {
	normalized := domain.NormalizeLoginName(name)
	if normalized == "" {
		return nil, errs.Errorf(errs.EINVALID, "A login name is required.")
	}
	return mv.memberGorm.ByLoginName(normalized)
}

// Delete checks the id before handing the cascading delete to memberGorm.
func (mv *memberValidator) Delete(id int) error {
	if id < 1 {
		return errs.Errorf(errs.EINVALID, "Invalid member ID.")
	}
	return mv.memberGorm.Delete(id)
}

// runMemberValFns runs any number of functions of type memberValFn on the passed in
// Member object. If none of them returns an error, it returns nil. Otherwise, it
// returns the respective error.
func runMemberValFns(member *domain.Member, fns ...memberValFn) error {
	for _, fn := range fns {
		if err := fn(member); err != nil {
			return err
		}
	}
	return nil
}

// A memberValFn is any function that takes in a pointer to a domain.Member object
// and returns an error.
type memberValFn func(member *domain.Member) error

// loginNameNormalize lowercases the login name and trims its whitespaces.
func (mv *memberValidator) loginNameNormalize(member *domain.Member) error {
	member.LoginName = domain.NormalizeLoginName(member.LoginName)
	return nil
}

// loginNameRequired makes sure that the login name is not the empty string.
func (mv *memberValidator) loginNameRequired(member *domain.Member) error {
	if member.LoginName == "" {
		return errs.Errorf(errs.EINVALID, "A login name is required.")
	}
	return nil
}

// loginNameIsAvail makes sure that a provided login name is not yet taken.
func (mv *memberValidator) loginNameIsAvail(member *domain.Member) error {
	existing, err := mv.memberGorm.ByLoginName(member.LoginName)
	if errs.ErrorCode(err) == errs.ENOTFOUND {
		// Name is not taken.
		return nil
	}
	if err != nil {
		return err
	}
	if member.ID != existing.ID {
		return errs.Errorf(errs.EINVALID, "This login name is already taken.")
	}
	return nil
}

// realNameRequired makes sure that the real name is not the empty string.
func (mv *memberValidator) realNameRequired(member *domain.Member) error {
	if strings.TrimSpace(member.RealName) == "" {
		return errs.Errorf(errs.EINVALID, "A real name is required.")
	}
	return nil
}

// passwordRequired makes sure that the member's password is not the empty string.
func (mv *memberValidator) passwordRequired(member *domain.Member) error {
	if member.Password == "" {
		return errs.Errorf(errs.EINVALID, "A password is required.")
	}
	return nil
}

// passwordMinLength makes sure that the member's password is at least 8 characters long.
func (mv *memberValidator) passwordMinLength(member *domain.Member) error {
	if member.Password == "" {
		return nil
	}
	if utf8.RuneCountInString(member.Password) < 8 {
		return errs.Errorf(errs.EINVALID, "The password must have at least 8 characters.")
	}
	return nil
}

// passwordBcrypt hashes a member's password with a predefined pepper.
// It then clears the password on the member object in memory.
func (mv *memberValidator) passwordBcrypt(member *domain.Member) error {
	if member.Password == "" {
		return nil
	}
	pwBytes := []byte(member.Password + mv.pepper)
	hashedBytes, err := bcrypt.GenerateFromPassword(pwBytes, bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	member.PasswordHash = string(hashedBytes)
	member.Password = ""
	return nil
}

// passwordHashRequired makes sure that the member's password hash is not the empty string.
func (mv *memberValidator) passwordHashRequired(member *domain.Member) error {
	if member.PasswordHash == "" {
		return errs.Errorf(errs.EINVALID, "A password is required.")
	}
	return nil
}

// emailNormalize converts the email to all lowercase and trims its whitespaces.
func (mv *memberValidator) emailNormalize(member *domain.Member) error {
	member.Email = strings.ToLower(member.Email)
	member.Email = strings.TrimSpace(member.Email)
	return nil
}

// emailRequired makes sure that the email is not the empty string.
func (mv *memberValidator) emailRequired(member *domain.Member) error {
	if member.Email == "" {
		return errs.Errorf(errs.EINVALID, "An email address is required.")
	}
	return nil
}

// emailFormat makes sure that a provided email address matches a predefined regex pattern.
func (mv *memberValidator) emailFormat(member *domain.Member) error {
	if member.Email == "" {
		return nil
	}
	if !mv.emailRegex.MatchString(member.Email) {
		return errs.Errorf(errs.EINVALID, "The email address is invalid.")
	}
	return nil
}

// emailIsAvail makes sure that a provided email address is not yet taken.
func (mv *memberValidator) emailIsAvail(member *domain.Member) error {
	var existing domain.Member
	err := mv.db.Where("email = ?", member.Email).First(&existing).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		// Address is not taken.
		return nil
	}
	if err != nil {
		return err
	}
	if member.ID != existing.ID {
		return errs.Errorf(errs.EINVALID, "This email address is already taken.")
	}
	return nil
}

// ByID retrieves a Member database record by ID.
func (mg *memberGorm) ByID(id int) (*domain.Member, error) {
	var member domain.Member
	err := mg.db.First(&member, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errs.Errorf(errs.ENOTFOUND, "The member does not exist.")
		}
		return nil, err
	}
	return &member, nil
}

// ByLoginName retrieves a Member database record by its normalized login name.
// Login names are stored normalized, so an exact match is case-insensitive.
func (mg *memberGorm) ByLoginName(name string) (*domain.Member, error) {
	var member domain.Member
	err := mg.db.Where("login_name = ?", name).First(&member).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errs.Errorf(errs.ENOTFOUND, "The member does not exist.")
		}
		return nil, err
	}
	return &member, nil
}

// All retrieves every Member database record, ordered by login name.
func (mg *memberGorm) All() ([]domain.Member, error) {
	var members []domain.Member
	err := mg.db.Order("login_name asc").Find(&members).Error
	if err != nil {
		return nil, err
	}
	return members, nil
}

// Search retrieves every member whose login name contains the fragment,
// case-insensitively, ordered by login name. If a viewer is given, every hit
// is annotated with the follow relation between the hit and the viewer.
func (mg *memberGorm) Search(fragment string, viewer *domain.Member) ([]domain.MemberSearchResult, error) {
	var members []domain.Member
	pattern := "%" + escapeLike(domain.NormalizeLoginName(fragment)) + "%"
	err := mg.db.Where("login_name LIKE ?", pattern).Order("login_name asc").Find(&members).Error
	if err != nil {
		return nil, err
	}
	results := make([]domain.MemberSearchResult, 0, len(members))
	for i := range members {
		result := domain.MemberSearchResult{Member: members[i]}
		if viewer != nil && !domain.SameMember(viewer, &members[i]) {
			if result.FollowedByMe, err = mg.followExists(viewer.ID, members[i].ID); err != nil {
				return nil, err
			}
			if result.FollowsMe, err = mg.followExists(members[i].ID, viewer.ID); err != nil {
				return nil, err
			}
		}
		results = append(results, result)
	}
	return results, nil
}

// escapeLike escapes the LIKE metacharacters in a search fragment so it
// only ever matches literally.
func escapeLike(fragment string) string {
	return likeEscaper.Replace(fragment)
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// followExists reports whether a follow edge (owner, target) exists.
func (mg *memberGorm) followExists(ownerID, targetID int) (bool, error) {
	var count int64
	err := mg.db.Model(&domain.Follow{}).
		Where("owner_id = ? AND target_id = ?", ownerID, targetID).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// Create stores the data from the Member object in a new database record.
func (mg *memberGorm) Create(member *domain.Member) error {
	err := mg.db.Create(member).Error
	if err != nil {
		return err
	}
	return nil
}

// Update saves changes to an existing member record in the database.
func (mg *memberGorm) Update(member *domain.Member) error {
	return mg.db.Save(member).Error
}

// Delete removes a member record and every follow edge referencing it,
// in either role, as one transaction. Edges owned by the member and edges
// targeting it are both purged before the member row goes - a dangling
// target reference must never survive the member it points at. If any step
// fails the whole transaction rolls back and the member stays intact.
func (mg *memberGorm) Delete(id int) error {
	return mg.db.Transaction(func(tx *gorm.DB) error {
		var member domain.Member
		if err := tx.First(&member, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return errs.Errorf(errs.ENOTFOUND, "The member does not exist.")
			}
			return err
		}
		if err := tx.Delete(&domain.Follow{}, "owner_id = ?", id).Error; err != nil {
			return err
		}
		if err := tx.Delete(&domain.Follow{}, "target_id = ?", id).Error; err != nil {
			return err
		}
		return tx.Delete(&member).Error
	})
}
