package crud

import (
	"errors"
	"html"
	"net/url"
	"strings"
	"time"

	"gorm.io/gorm"

	"asocialoud/domain"
	"asocialoud/errs"
)

// FeedService manages published posts and their time-ordered retrieval.
// It implements the domain.FeedService interface.
type FeedService struct {
	feedValidator
}

// feedValidator runs validations and boundary normalizations on incoming
// Feed data. On success, it passes the data on to feedGorm.
type feedValidator struct {
	feedGorm
}

// feedGorm runs CRUD operations on the database using incoming Feed data.
// It assumes that data has been validated.
type feedGorm struct {
	db *gorm.DB
}

// NewFeedService returns an instance of FeedService.
func NewFeedService(db *gorm.DB) *FeedService {
	return &FeedService{
		feedValidator{
			feedGorm{
				db: db,
			},
		},
	}
}

// Ensure the FeedService struct properly implements the domain.FeedService interface.
// If it does not, then this expression becomes invalid and won't compile.
var _ domain.FeedService = &FeedService{}

// Publish runs validations needed for creating new Feed database records.
// The text is entity-escaped and the media URI path percent-encoded before
// anything is stored; the publish date is assigned here, server-side.
func (fv *feedValidator) Publish(feed *domain.Feed) error {
	err := runFeedValFns(feed,
		fv.memberIDValid,
		fv.textRequired,
		fv.authorExists,
		fv.textEscape,
		fv.mediaURINormalize,
		fv.publishDateNow)
	if err != nil {
		return err
	}
	return fv.feedGorm.Create(feed)
}

// ByAuthor passes a checked author id and page on to feedGorm.
func (fv *feedValidator) ByAuthor(memberID, page int) ([]domain.Feed, error) {
	if memberID < 1 {
		return nil, errs.Errorf(errs.EINVALID, "Invalid member ID.")
	}
	return fv.feedGorm.ByAuthor(memberID, page)
}

// ByAuthors makes sure the id set is not empty before handing the
// aggregation to feedGorm.
func (fv *feedValidator) ByAuthors(memberIDs []int, after *time.Time, page int) ([]domain.Feed, error) {
	if len(memberIDs) == 0 {
		return nil, errs.Errorf(errs.EINVALID, "At least one member ID is required.")
	}
	return fv.feedGorm.ByAuthors(memberIDs, after, page)
}

// runFeedValFns runs any number of functions of type feedValFn on the passed in
// Feed object. If none of them returns an error, it returns nil. Otherwise, it
// returns the respective error.
func runFeedValFns(feed *domain.Feed, fns ...feedValFn) error {
	for _, fn := range fns {
		if err := fn(feed); err != nil {
			return err
		}
	}
	return nil
}

// A feedValFn is any function that takes in a pointer to a domain.Feed object
// and returns an error.
type feedValFn func(feed *domain.Feed) error

// memberIDValid makes sure the author id is usable.
func (fv *feedValidator) memberIDValid(feed *domain.Feed) error {
	if feed.MemberID < 1 {
		return errs.Errorf(errs.EINVALID, "Invalid member ID.")
	}
	return nil
}

// textRequired makes sure the post's text is not empty or whitespace only.
func (fv *feedValidator) textRequired(feed *domain.Feed) error {
	if strings.TrimSpace(feed.Text) == "" {
		return errs.Errorf(errs.EINVALID, "Feed text must not be empty.")
	}
	return nil
}

// authorExists makes sure the author resolves to a member record.
func (fv *feedValidator) authorExists(feed *domain.Feed) error {
	err := fv.db.First(&domain.Member{}, "id = ?", feed.MemberID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return errs.Errorf(errs.ENOTFOUND, "The member does not exist.")
		}
		return err
	}
	return nil
}

// textEscape entity-escapes the post's text so it is safe to render as markup.
func (fv *feedValidator) textEscape(feed *domain.Feed) error {
	feed.Text = html.EscapeString(feed.Text)
	return nil
}

// mediaURINormalize percent-encodes the media URI path. An absent media URI
// stays the empty string.
func (fv *feedValidator) mediaURINormalize(feed *domain.Feed) error {
	if feed.MediaURI == "" {
		return nil
	}
	feed.MediaURI = (&url.URL{Path: feed.MediaURI}).EscapedPath()
	return nil
}

// publishDateNow assigns the publish date. It is always set server-side;
// whatever the caller supplied is overwritten.
func (fv *feedValidator) publishDateNow(feed *domain.Feed) error {
	feed.PublishDate = time.Now()
	return nil
}

// pageWindow translates a zero-indexed page into a limit and offset.
// Negative pages count as page 0.
func pageWindow(page int) (limit, offset int) {
	if page < 0 {
		page = 0
	}
	return domain.FetchCount, page * domain.FetchCount
}

// feedOrder is the total retrieval order of posts. The id tie-break keeps
// the order stable for posts published in the same instant, which is what
// makes page N and page N+1 line up without skips or duplicates.
const feedOrder = "publish_date desc, id desc"

// ByAuthor retrieves one page of the posts published by a single member,
// newest first.
func (fg *feedGorm) ByAuthor(memberID, page int) ([]domain.Feed, error) {
	limit, offset := pageWindow(page)
	var feeds []domain.Feed
	err := fg.db.Where("member_id = ?", memberID).
		Order(feedOrder).
		Limit(limit).Offset(offset).
		Find(&feeds).Error
	if err != nil {
		return nil, err
	}
	return feeds, nil
}

// ByAuthors retrieves one page of the posts published by any member of the
// id set, newest first, optionally limited to posts published after a cutoff.
// The per-author streams are collapsed by the database into one globally
// time-ordered result, so the paging window slices a single sorted sequence.
func (fg *feedGorm) ByAuthors(memberIDs []int, after *time.Time, page int) ([]domain.Feed, error) {
	limit, offset := pageWindow(page)
	query := fg.db.Where("member_id IN ?", memberIDs)
	if after != nil {
		query = query.Where("publish_date > ?", *after)
	}
	var feeds []domain.Feed
	err := query.Order(feedOrder).
		Limit(limit).Offset(offset).
		Find(&feeds).Error
	if err != nil {
		return nil, err
	}
	return feeds, nil
}

// Create stores the data from the Feed object in a new database record.
// If this fails the post does not exist - there is no partial creation.
func (fg *feedGorm) Create(feed *domain.Feed) error {
	err := fg.db.Create(feed).Error
	if err != nil {
		return err
	}
	return nil
}
