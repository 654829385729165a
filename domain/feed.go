package domain

import "time"

// FetchCount is the fixed page size shared by all paged feed queries.
const FetchCount = 10

// Feed represents a single published post. It is owned by its author and
// immutable once created - there is no edit or delete. PublishDate is
// assigned server-side at creation; retrieval orders by
// (publish_date desc, id desc), the id being the tie-break for posts
// published in the same instant.
type Feed struct {
	ID          int       `json:"id"`
	MemberID    int       `json:"memberId" gorm:"not null;index"`
	Text        string    `json:"text" gorm:"not null"`
	MediaURI    string    `json:"mediaUri"`
	PublishDate time.Time `json:"publishDate" gorm:"index"`
}

// FeedService is a set of methods to publish and retrieve posts. Pages are
// zero-indexed windows of FetchCount; a negative page counts as page 0.
// ByAuthors aggregates the posts of every member in the id set into one
// time-ordered result, optionally limited to posts published after a cutoff.
type FeedService interface {
	ByAuthor(memberID, page int) ([]Feed, error)
	ByAuthors(memberIDs []int, after *time.Time, page int) ([]Feed, error)
	Publish(feed *Feed) error
}
