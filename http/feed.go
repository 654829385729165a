package http

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"asocialoud/domain"
	"asocialoud/errs"
)

// dateAfterLayout is the format of the dateAfter query parameter.
const dateAfterLayout = "2006-01-02 15:04:05"

func (s *Server) registerFeedRoutes(r *mux.Router) {
	r.HandleFunc("/api/feeds/of/{memberId:[0-9]+}", s.handleMemberFeeds).Methods("GET")
	r.HandleFunc("/api/feeds/followingsof/{memberIds}", s.handleFollowingsFeeds).Methods("GET")
	r.HandleFunc("/api/feeds/timeline/{userName}", s.handleTimeline).Methods("GET")
	r.HandleFunc("/api/feeds/create", s.handleCreateFeed).Methods("POST")
}

// handleMemberFeeds handles the route "GET /api/feeds/of/{memberId}".
// It returns one page of the member's posts, newest first. The optional
// start query parameter selects the zero-indexed page.
func (s *Server) handleMemberFeeds(w http.ResponseWriter, r *http.Request) {
	memberID, err := strconv.Atoi(mux.Vars(r)["memberId"])
	if err != nil || memberID < 1 {
		errs.ReturnError(w, r, errs.Errorf(errs.EINVALID, "Invalid Id format."))
		return
	}
	feeds, err := s.ds.ByAuthor(memberID, parsePage(r))
	if err != nil {
		errs.ReturnError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusOK, feeds)
}

// handleFollowingsFeeds handles the route "GET /api/feeds/followingsof/{memberIds}".
// The path carries a comma-separated id set; the posts of all those members
// come back merged into one time-ordered page. The optional dateAfter query
// parameter limits the result to posts published after it.
func (s *Server) handleFollowingsFeeds(w http.ResponseWriter, r *http.Request) {
	memberIDs, err := parseMemberIDs(mux.Vars(r)["memberIds"])
	if err != nil {
		errs.ReturnError(w, r, err)
		return
	}

	var after *time.Time
	if raw := r.URL.Query().Get("dateAfter"); raw != "" {
		parsed, err := time.Parse(dateAfterLayout, raw)
		if err != nil {
			errs.ReturnError(w, r, errs.Errorf(errs.EINVALID, "Invalid dateAfter format, want %q.", dateAfterLayout))
			return
		}
		after = &parsed
	}

	feeds, err := s.ds.ByAuthors(memberIDs, after, parsePage(r))
	if err != nil {
		errs.ReturnError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusOK, feeds)
}

// handleTimeline handles the route "GET /api/feeds/timeline/{userName}".
// It is the composition point of the follow graph and the feed store: the
// member's following set is resolved first, then fed into the aggregation.
// A member who follows nobody gets an empty timeline.
func (s *Server) handleTimeline(w http.ResponseWriter, r *http.Request) {
	follows, err := s.fs.ByOwner(mux.Vars(r)["userName"])
	if err != nil {
		errs.ReturnError(w, r, err)
		return
	}
	if len(follows) == 0 {
		respondJSON(w, r, http.StatusOK, []domain.Feed{})
		return
	}
	memberIDs := make([]int, 0, len(follows))
	for _, follow := range follows {
		memberIDs = append(memberIDs, follow.TargetID)
	}
	feeds, err := s.ds.ByAuthors(memberIDs, nil, parsePage(r))
	if err != nil {
		errs.ReturnError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusOK, feeds)
}

// handleCreateFeed handles the route "POST /api/feeds/create".
// It publishes a new post.
func (s *Server) handleCreateFeed(w http.ResponseWriter, r *http.Request) {
	var feed domain.Feed
	if err := json.NewDecoder(r.Body).Decode(&feed); err != nil {
		errs.ReturnError(w, r, errs.Errorf(errs.EINVALID, "Invalid json body."))
		return
	}
	if err := s.ds.Publish(&feed); err != nil {
		errs.ReturnError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusCreated, &feed)
}

// parsePage reads the zero-indexed page from the start query parameter.
// Absent or unparsable values count as page 0.
func parsePage(r *http.Request) int {
	page, err := strconv.Atoi(r.URL.Query().Get("start"))
	if err != nil {
		return 0
	}
	return page
}

// parseMemberIDs splits a comma-separated id list from the url.
func parseMemberIDs(raw string) ([]int, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, errs.Errorf(errs.EINVALID, "At least one member ID is required.")
	}
	parts := strings.Split(raw, ",")
	ids := make([]int, 0, len(parts))
	for _, part := range parts {
		id, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil || id < 1 {
			return nil, errs.Errorf(errs.EINVALID, "Invalid member ID %q.", part)
		}
		ids = append(ids, id)
	}
	return ids, nil
}
