package http

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"asocialoud/domain"
	"asocialoud/errs"
)

func (s *Server) registerMemberRoutes(r *mux.Router) {
	r.HandleFunc("/api/members", s.handleIndexMembers).Methods("GET")
	r.HandleFunc("/api/members/create", s.handleCreateMember).Methods("POST")
	r.HandleFunc("/api/members/id/{id:[0-9]+}", s.handleGetMemberByID).Methods("GET")
	r.HandleFunc("/api/members/search/{userName}", s.handleSearchMembers).Methods("GET")
	r.HandleFunc("/api/members/{userName}", s.handleGetMember).Methods("GET")
	r.HandleFunc("/api/members/{userName}", s.handleUpdateMember).Methods("PUT")
	r.HandleFunc("/api/members/{id:[0-9]+}", s.handleDeleteMember).Methods("DELETE")
}

// handleIndexMembers handles the route "GET /api/members".
// It returns every registered member.
func (s *Server) handleIndexMembers(w http.ResponseWriter, r *http.Request) {
	members, err := s.ms.All()
	if err != nil {
		errs.ReturnError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusOK, members)
}

// handleGetMember handles the route "GET /api/members/{userName}".
// It looks a member up by login name, case-insensitively.
func (s *Server) handleGetMember(w http.ResponseWriter, r *http.Request) {
	member, err := s.ms.ByLoginName(mux.Vars(r)["userName"])
	if err != nil {
		errs.ReturnError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusOK, member)
}

// handleGetMemberByID handles the route "GET /api/members/id/{id}".
func (s *Server) handleGetMemberByID(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(mux.Vars(r)["id"])
	if err != nil || id < 1 {
		errs.ReturnError(w, r, errs.Errorf(errs.EINVALID, "Invalid Id format."))
		return
	}
	member, err := s.ms.ByID(id)
	if err != nil {
		errs.ReturnError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusOK, member)
}

// handleSearchMembers handles the route "GET /api/members/search/{userName}".
// It searches login names by case-insensitive substring. The optional viewer
// query parameter names the member running the search, so every hit can be
// annotated with the follow relation between the two.
func (s *Server) handleSearchMembers(w http.ResponseWriter, r *http.Request) {
	var viewer *domain.Member
	if viewerName := r.URL.Query().Get("viewer"); viewerName != "" {
		found, err := s.ms.ByLoginName(viewerName)
		if err != nil {
			errs.ReturnError(w, r, err)
			return
		}
		viewer = found
	}
	results, err := s.ms.Search(mux.Vars(r)["userName"], viewer)
	if err != nil {
		errs.ReturnError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusOK, results)
}

// handleCreateMember handles the route "POST /api/members/create".
// It registers a new member.
func (s *Server) handleCreateMember(w http.ResponseWriter, r *http.Request) {
	var member domain.Member
	if err := json.NewDecoder(r.Body).Decode(&member); err != nil {
		errs.ReturnError(w, r, errs.Errorf(errs.EINVALID, "Invalid json body."))
		return
	}
	if err := s.ms.Create(&member); err != nil {
		errs.ReturnError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusCreated, &member)
}

// handleUpdateMember handles the route "PUT /api/members/{userName}".
// Only the real name and the email address can change.
func (s *Server) handleUpdateMember(w http.ResponseWriter, r *http.Request) {
	var update domain.Member
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		errs.ReturnError(w, r, errs.Errorf(errs.EINVALID, "Invalid json body."))
		return
	}
	member, err := s.ms.ByLoginName(mux.Vars(r)["userName"])
	if err != nil {
		errs.ReturnError(w, r, err)
		return
	}
	member.RealName = update.RealName
	member.Email = update.Email
	if err := s.ms.Update(member); err != nil {
		errs.ReturnError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusOK, member)
}

// handleDeleteMember handles the route "DELETE /api/members/{id}".
// Deleting a member cascades over every follow edge referencing it.
func (s *Server) handleDeleteMember(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(mux.Vars(r)["id"])
	if err != nil || id < 1 {
		errs.ReturnError(w, r, errs.Errorf(errs.EINVALID, "Invalid Id format."))
		return
	}
	if err := s.ms.Delete(id); err != nil {
		errs.ReturnError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
