package crud

import (
	"fmt"
	"os"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"asocialoud/domain"
	"asocialoud/errs"
)

// testDB opens the database named by ASOCIALOUD_TEST_DSN, migrates the
// schema and wipes all tables. Tests needing a real database are skipped
// when the variable is unset.
func testDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := os.Getenv("ASOCIALOUD_TEST_DSN")
	if dsn == "" {
		t.Skip("ASOCIALOUD_TEST_DSN not set, skipping database test")
	}
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(domain.Member{}, domain.Follow{}, domain.Feed{}))
	for _, table := range []string{"follows", "feeds", "members"} {
		require.NoError(t, db.Exec("DELETE FROM "+table).Error)
	}
	return db
}

// registerMember creates a member through the member service, the same way
// a registration request would.
func registerMember(t *testing.T, db *gorm.DB, loginName string) *domain.Member {
	t.Helper()
	ms := NewMemberService(db, "test-pepper")
	member := &domain.Member{
		LoginName: loginName,
		RealName:  "Member " + loginName,
		Email:     loginName + "@example.com",
		Password:  "long enough password",
	}
	require.NoError(t, ms.Create(member))
	return member
}

// seedFeed inserts a post with a controlled publish date, bypassing the
// server-side clock that Publish would apply.
func seedFeed(t *testing.T, db *gorm.DB, memberID int, text string, publishDate time.Time) domain.Feed {
	t.Helper()
	feed := domain.Feed{MemberID: memberID, Text: text, PublishDate: publishDate}
	require.NoError(t, db.Create(&feed).Error)
	return feed
}

func countFollows(t *testing.T, db *gorm.DB) int64 {
	t.Helper()
	var count int64
	require.NoError(t, db.Model(&domain.Follow{}).Count(&count).Error)
	return count
}

func TestMemberCreateHashesAndNormalizes(t *testing.T) {
	db := testDB(t)
	ms := NewMemberService(db, "test-pepper")

	member := &domain.Member{
		LoginName: "  Alice  ",
		RealName:  "Alice A",
		Email:     "Alice@Example.com",
		Password:  "long enough password",
	}
	require.NoError(t, ms.Create(member))
	require.Equal(t, "alice", member.LoginName)
	require.Equal(t, "alice@example.com", member.Email)
	require.Empty(t, member.Password)
	require.NotEmpty(t, member.PasswordHash)
	require.NotContains(t, member.PasswordHash, "long enough")

	authed, err := ms.Authenticate("ALICE", "long enough password")
	require.NoError(t, err)
	require.True(t, domain.SameMember(member, authed))

	_, err = ms.Authenticate("alice", "wrong password")
	require.Equal(t, errs.EINVALID, errs.ErrorCode(err))
}

func TestMemberCreateRejectsTakenLoginName(t *testing.T) {
	db := testDB(t)
	registerMember(t, db, "alice")

	ms := NewMemberService(db, "test-pepper")
	err := ms.Create(&domain.Member{
		LoginName: "ALICE",
		RealName:  "Impostor",
		Email:     "other@example.com",
		Password:  "long enough password",
	})
	require.Equal(t, errs.EINVALID, errs.ErrorCode(err))
}

func TestByLoginNameIsCaseInsensitive(t *testing.T) {
	db := testDB(t)
	alice := registerMember(t, db, "alice")

	ms := NewMemberService(db, "test-pepper")
	found, err := ms.ByLoginName("  AlIcE ")
	require.NoError(t, err)
	require.Equal(t, alice.ID, found.ID)

	_, err = ms.ByLoginName("nobody")
	require.Equal(t, errs.ENOTFOUND, errs.ErrorCode(err))
}

func TestFollowTwiceYieldsConflictAndOneEdge(t *testing.T) {
	db := testDB(t)
	registerMember(t, db, "alice")
	registerMember(t, db, "bob")
	fs := NewFollowService(db)

	first, err := fs.Follow("alice", "bob")
	require.NoError(t, err)
	require.True(t, first.AllowResharing)
	require.False(t, first.FollowDate.IsZero())

	second, err := fs.Follow("alice", "bob")
	require.Equal(t, errs.ECONFLICT, errs.ErrorCode(err))
	require.NotNil(t, second)
	require.Equal(t, first.ID, second.ID)
	require.EqualValues(t, 1, countFollows(t, db))
}

func TestDuplicateFollowRefusedByUniqueIndex(t *testing.T) {
	db := testDB(t)
	alice := registerMember(t, db, "alice")
	bob := registerMember(t, db, "bob")
	fs := NewFollowService(db)

	// Insert the edge directly, the way a racing request would have done
	// between the service's pre-check and its own insert.
	seed := domain.Follow{OwnerID: alice.ID, TargetID: bob.ID, FollowDate: time.Now(), AllowResharing: true}
	require.NoError(t, db.Create(&seed).Error)

	// The raw storage layer must refuse the duplicate pair: the composite
	// unique index rejects the row and TranslateError surfaces it as
	// gorm.ErrDuplicatedKey, which is what Follow folds into ECONFLICT.
	err := fs.followGorm.Create(&domain.Follow{
		OwnerID:    alice.ID,
		TargetID:   bob.ID,
		FollowDate: time.Now(),
	})
	require.ErrorIs(t, err, gorm.ErrDuplicatedKey)
	require.EqualValues(t, 1, countFollows(t, db))

	// The service maps the edge it never created to the same benign
	// conflict, handing back the row that won.
	existing, err := fs.Follow("alice", "bob")
	require.Equal(t, errs.ECONFLICT, errs.ErrorCode(err))
	require.NotNil(t, existing)
	require.Equal(t, seed.ID, existing.ID)
	require.EqualValues(t, 1, countFollows(t, db))
}

func TestFollowValidation(t *testing.T) {
	db := testDB(t)
	registerMember(t, db, "bob")
	fs := NewFollowService(db)

	_, err := fs.Follow("", "bob")
	require.Equal(t, errs.EINVALID, errs.ErrorCode(err))
	require.EqualValues(t, 0, countFollows(t, db))

	_, err = fs.Follow("bob", "ghost")
	require.Equal(t, errs.ENOTFOUND, errs.ErrorCode(err))
	require.EqualValues(t, 0, countFollows(t, db))

	_, err = fs.Follow("bob", "BOB")
	require.Equal(t, errs.EINVALID, errs.ErrorCode(err))
	require.EqualValues(t, 0, countFollows(t, db))
}

func TestFollowThenUnfollow(t *testing.T) {
	db := testDB(t)
	registerMember(t, db, "alice")
	registerMember(t, db, "bob")
	fs := NewFollowService(db)

	_, err := fs.Follow("alice", "bob")
	require.NoError(t, err)

	remaining, err := fs.Unfollow("alice", "bob")
	require.NoError(t, err)
	require.Empty(t, remaining)
	require.EqualValues(t, 0, countFollows(t, db))

	_, err = fs.Unfollow("alice", "bob")
	require.Equal(t, errs.ENOTFOUND, errs.ErrorCode(err))
}

func TestByOwnerListsEdgesInInsertionOrder(t *testing.T) {
	db := testDB(t)
	registerMember(t, db, "alice")
	bob := registerMember(t, db, "bob")
	carol := registerMember(t, db, "carol")
	fs := NewFollowService(db)

	_, err := fs.Follow("alice", "carol")
	require.NoError(t, err)
	_, err = fs.Follow("alice", "bob")
	require.NoError(t, err)

	follows, err := fs.ByOwner("alice")
	require.NoError(t, err)
	require.Len(t, follows, 2)
	require.Equal(t, carol.ID, follows[0].TargetID)
	require.Equal(t, bob.ID, follows[1].TargetID)
	require.NotNil(t, follows[0].Target)
	require.Equal(t, "carol", follows[0].Target.LoginName)

	_, err = fs.ByOwner("ghost")
	require.Equal(t, errs.ENOTFOUND, errs.ErrorCode(err))
}

func TestDeleteMemberCascadesOverEdges(t *testing.T) {
	db := testDB(t)
	registerMember(t, db, "alice")
	bob := registerMember(t, db, "bob")
	registerMember(t, db, "carol")
	ms := NewMemberService(db, "test-pepper")
	fs := NewFollowService(db)

	// alice -> bob, bob -> carol: bob appears in both roles.
	_, err := fs.Follow("alice", "bob")
	require.NoError(t, err)
	_, err = fs.Follow("bob", "carol")
	require.NoError(t, err)

	require.NoError(t, ms.Delete(bob.ID))

	_, err = ms.ByID(bob.ID)
	require.Equal(t, errs.ENOTFOUND, errs.ErrorCode(err))
	require.EqualValues(t, 0, countFollows(t, db))

	follows, err := fs.ByOwner("alice")
	require.NoError(t, err)
	require.Empty(t, follows)

	require.Equal(t, errs.ENOTFOUND, errs.ErrorCode(ms.Delete(bob.ID)))
}

func TestSearchAnnotatesFollowRelations(t *testing.T) {
	db := testDB(t)
	alice := registerMember(t, db, "alice")
	registerMember(t, db, "bob")
	registerMember(t, db, "bobby")
	ms := NewMemberService(db, "test-pepper")
	fs := NewFollowService(db)

	_, err := fs.Follow("alice", "bob")
	require.NoError(t, err)
	_, err = fs.Follow("bobby", "alice")
	require.NoError(t, err)

	results, err := ms.Search("BOB", alice)
	require.NoError(t, err)
	require.Len(t, results, 2)
	require.Equal(t, "bob", results[0].LoginName)
	require.True(t, results[0].FollowedByMe)
	require.False(t, results[0].FollowsMe)
	require.Equal(t, "bobby", results[1].LoginName)
	require.False(t, results[1].FollowedByMe)
	require.True(t, results[1].FollowsMe)
}

func TestPublishEscapesAndStores(t *testing.T) {
	db := testDB(t)
	alice := registerMember(t, db, "alice")
	ds := NewFeedService(db)

	feed := &domain.Feed{MemberID: alice.ID, Text: "<script>", MediaURI: ""}
	require.NoError(t, ds.Publish(feed))
	require.False(t, feed.PublishDate.IsZero())

	stored, err := ds.ByAuthor(alice.ID, 0)
	require.NoError(t, err)
	require.Len(t, stored, 1)
	require.Equal(t, "&lt;script&gt;", stored[0].Text)
	require.Equal(t, "", stored[0].MediaURI)
}

func TestPublishRejectsUnknownAuthor(t *testing.T) {
	db := testDB(t)
	ds := NewFeedService(db)

	err := ds.Publish(&domain.Feed{MemberID: 424242, Text: "hello"})
	require.Equal(t, errs.ENOTFOUND, errs.ErrorCode(err))
}

func TestByAuthorsMergesAndExcludesThirdParties(t *testing.T) {
	db := testDB(t)
	alice := registerMember(t, db, "alice")
	bob := registerMember(t, db, "bob")
	carol := registerMember(t, db, "carol")
	ds := NewFeedService(db)

	base := time.Date(2023, 4, 1, 12, 0, 0, 0, time.UTC)
	seedFeed(t, db, alice.ID, "a1", base.Add(1*time.Minute))
	seedFeed(t, db, bob.ID, "b1", base.Add(2*time.Minute))
	seedFeed(t, db, alice.ID, "a2", base.Add(3*time.Minute))
	seedFeed(t, db, carol.ID, "c1", base.Add(4*time.Minute))

	feeds, err := ds.ByAuthors([]int{alice.ID, bob.ID}, nil, 0)
	require.NoError(t, err)
	require.Len(t, feeds, 3)
	for i := 1; i < len(feeds); i++ {
		require.False(t, feeds[i-1].PublishDate.Before(feeds[i].PublishDate))
	}
	for _, feed := range feeds {
		require.NotEqual(t, carol.ID, feed.MemberID)
	}
	require.Equal(t, "a2", feeds[0].Text)
	require.Equal(t, "b1", feeds[1].Text)
	require.Equal(t, "a1", feeds[2].Text)
}

func TestByAuthorsAfterDateFilter(t *testing.T) {
	db := testDB(t)
	alice := registerMember(t, db, "alice")
	ds := NewFeedService(db)

	base := time.Date(2023, 4, 1, 12, 0, 0, 0, time.UTC)
	seedFeed(t, db, alice.ID, "old", base)
	seedFeed(t, db, alice.ID, "new", base.Add(time.Hour))

	after := base.Add(time.Minute)
	feeds, err := ds.ByAuthors([]int{alice.ID}, &after, 0)
	require.NoError(t, err)
	require.Len(t, feeds, 1)
	require.Equal(t, "new", feeds[0].Text)
}

func TestByAuthorsPagesConcatenateWithoutGaps(t *testing.T) {
	db := testDB(t)
	alice := registerMember(t, db, "alice")
	bob := registerMember(t, db, "bob")
	ds := NewFeedService(db)

	base := time.Date(2023, 4, 1, 0, 0, 0, 0, time.UTC)
	var all []domain.Feed
	for i := 0; i < 2*domain.FetchCount+5; i++ {
		author := alice.ID
		if i%2 == 1 {
			author = bob.ID
		}
		// A shared publish date every fifth post exercises the id tie-break.
		publishDate := base.Add(time.Duration(i/5) * time.Minute)
		all = append(all, seedFeed(t, db, author, fmt.Sprintf("post-%d", i), publishDate))
	}
	sort.Slice(all, func(i, j int) bool {
		if !all[i].PublishDate.Equal(all[j].PublishDate) {
			return all[i].PublishDate.After(all[j].PublishDate)
		}
		return all[i].ID > all[j].ID
	})

	ids := []int{alice.ID, bob.ID}
	page0, err := ds.ByAuthors(ids, nil, 0)
	require.NoError(t, err)
	page1, err := ds.ByAuthors(ids, nil, 1)
	require.NoError(t, err)
	require.Len(t, page0, domain.FetchCount)
	require.Len(t, page1, domain.FetchCount)

	combined := append(append([]domain.Feed{}, page0...), page1...)
	for i, feed := range combined {
		require.Equal(t, all[i].ID, feed.ID, "position %d", i)
	}
}

func TestByAuthorNegativePageBehavesAsFirst(t *testing.T) {
	db := testDB(t)
	alice := registerMember(t, db, "alice")
	ds := NewFeedService(db)

	base := time.Date(2023, 4, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		seedFeed(t, db, alice.ID, fmt.Sprintf("post-%d", i), base.Add(time.Duration(i)*time.Minute))
	}

	first, err := ds.ByAuthor(alice.ID, 0)
	require.NoError(t, err)
	negative, err := ds.ByAuthor(alice.ID, -1)
	require.NoError(t, err)
	require.Equal(t, first, negative)
}
