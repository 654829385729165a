package crud

import (
	"testing"

	"github.com/stretchr/testify/require"

	"asocialoud/domain"
	"asocialoud/errs"
)

func TestPublishRejectsMissingAuthor(t *testing.T) {
	service := NewFeedService(nil)

	err := service.Publish(&domain.Feed{Text: "hello"})
	require.Equal(t, errs.EINVALID, errs.ErrorCode(err))

	err = service.Publish(&domain.Feed{MemberID: -3, Text: "hello"})
	require.Equal(t, errs.EINVALID, errs.ErrorCode(err))
}

func TestPublishRejectsEmptyText(t *testing.T) {
	service := NewFeedService(nil)

	for _, text := range []string{"", "   ", "\t\n"} {
		err := service.Publish(&domain.Feed{MemberID: 5, Text: text})
		require.Equal(t, errs.EINVALID, errs.ErrorCode(err), "text %q", text)
	}
}

func TestTextEscape(t *testing.T) {
	var fv feedValidator

	feed := &domain.Feed{Text: `<script>alert("hi")</script>`}
	require.NoError(t, fv.textEscape(feed))
	require.Equal(t, "&lt;script&gt;alert(&#34;hi&#34;)&lt;/script&gt;", feed.Text)
}

func TestMediaURINormalize(t *testing.T) {
	var fv feedValidator

	tests := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"/media/cat pic.jpg", "/media/cat%20pic.jpg"},
		{"/plain/path.png", "/plain/path.png"},
	}
	for _, tt := range tests {
		feed := &domain.Feed{MediaURI: tt.in}
		require.NoError(t, fv.mediaURINormalize(feed))
		require.Equal(t, tt.want, feed.MediaURI)
	}
}

func TestByAuthorRejectsInvalidID(t *testing.T) {
	service := NewFeedService(nil)

	_, err := service.ByAuthor(0, 0)
	require.Equal(t, errs.EINVALID, errs.ErrorCode(err))
}

func TestByAuthorsRejectsEmptyIDSet(t *testing.T) {
	service := NewFeedService(nil)

	_, err := service.ByAuthors(nil, nil, 0)
	require.Equal(t, errs.EINVALID, errs.ErrorCode(err))

	_, err = service.ByAuthors([]int{}, nil, 0)
	require.Equal(t, errs.EINVALID, errs.ErrorCode(err))
}

func TestPageWindow(t *testing.T) {
	tests := []struct {
		page       int
		wantLimit  int
		wantOffset int
	}{
		{page: 0, wantLimit: domain.FetchCount, wantOffset: 0},
		{page: 1, wantLimit: domain.FetchCount, wantOffset: domain.FetchCount},
		{page: 3, wantLimit: domain.FetchCount, wantOffset: 3 * domain.FetchCount},
		{page: -1, wantLimit: domain.FetchCount, wantOffset: 0},
	}
	for _, tt := range tests {
		limit, offset := pageWindow(tt.page)
		require.Equal(t, tt.wantLimit, limit, "page %d", tt.page)
		require.Equal(t, tt.wantOffset, offset, "page %d", tt.page)
	}
}
