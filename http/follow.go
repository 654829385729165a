package http

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"asocialoud/errs"
)

func (s *Server) registerFollowRoutes(r *mux.Router) {
	r.HandleFunc("/api/follow/of/{userName}", s.handleListFollowing).Methods("GET")
	r.HandleFunc("/api/follow/add/{memberToFollow}", s.handleCreateFollow).Methods("POST")
	r.HandleFunc("/api/follow/remove/{memberToUnFollow}", s.handleDeleteFollow).Methods("POST")
}

// followRequest carries the login name of the member performing the
// follow or unfollow.
type followRequest struct {
	LoginName string `json:"loginName"`
}

// handleListFollowing handles the route "GET /api/follow/of/{userName}".
// It returns every follow edge owned by the named member.
func (s *Server) handleListFollowing(w http.ResponseWriter, r *http.Request) {
	follows, err := s.fs.ByOwner(mux.Vars(r)["userName"])
	if err != nil {
		errs.ReturnError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusOK, follows)
}

// handleCreateFollow handles the route "POST /api/follow/add/{memberToFollow}".
// A follow that already exists is not an error: the existing edge comes back
// with a 200 and nothing changes.
func (s *Server) handleCreateFollow(w http.ResponseWriter, r *http.Request) {
	var req followRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errs.ReturnError(w, r, errs.Errorf(errs.EINVALID, "Invalid json body."))
		return
	}
	follow, err := s.fs.Follow(req.LoginName, mux.Vars(r)["memberToFollow"])
	if err != nil {
		if errs.ErrorCode(err) == errs.ECONFLICT {
			respondJSON(w, r, http.StatusOK, follow)
			return
		}
		errs.ReturnError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusCreated, follow)
}

// handleDeleteFollow handles the route "POST /api/follow/remove/{memberToUnFollow}".
// It returns the edges the owner still has after the removal.
func (s *Server) handleDeleteFollow(w http.ResponseWriter, r *http.Request) {
	var req followRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errs.ReturnError(w, r, errs.Errorf(errs.EINVALID, "Invalid json body."))
		return
	}
	remaining, err := s.fs.Unfollow(req.LoginName, mux.Vars(r)["memberToUnFollow"])
	if err != nil {
		errs.ReturnError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusOK, remaining)
}
