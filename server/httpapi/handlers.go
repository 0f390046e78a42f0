package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/inboxd/inboxd/db"
	"github.com/inboxd/inboxd/filter"
)

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write([]byte("inboxd running\n"))
}

// handleListEmails serves the unscoped "all" view: every resolved or
// unresolved message for the inbox, with no service-based filtering.
func (s *Server) handleListEmails(w http.ResponseWriter, r *http.Request) {
	user := mux.Vars(r)["user"]

	emails, err := s.store.ListEmailsForAddress(r.Context(), user, s.domains, s.excludedSender)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "Failed to list emails")
		return
	}

	s.writeJSON(w, http.StatusOK, nonNil(emails))
}

// handleListEmailsForService serves a named service scope, or the catch-all
// scope under the reserved "other" slug.
func (s *Server) handleListEmailsForService(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	user := vars["user"]
	scope := vars["service"]

	emails, err := s.store.ListEmailsForAddress(r.Context(), user, s.domains, s.excludedSender)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "Failed to list emails")
		return
	}

	if scope == CatchAllScope {
		services, err := s.store.ListServices(r.Context())
		if err != nil {
			s.writeError(w, http.StatusInternalServerError, "Failed to list services")
			return
		}
		rules := make([]filter.Rule, 0, len(services))
		for i := range services {
			rules = append(rules, services[i].Rule())
		}

		var matched []db.Email
		for _, e := range emails {
			if filter.MatchesCatchAll(e.FromAddress, rules) {
				matched = append(matched, e)
			}
		}
		s.writeJSON(w, http.StatusOK, nonNil(matched))
		return
	}

	service, err := s.store.GetServiceByName(r.Context(), scope)
	if err != nil {
		if errors.Is(err, db.ErrServiceNotFound) {
			s.writeError(w, http.StatusNotFound, "Unknown service")
			return
		}
		s.writeError(w, http.StatusInternalServerError, "Failed to look up service")
		return
	}

	rule := service.Rule()
	var matched []db.Email
	for _, e := range emails {
		if rule.Matches(e.Subject, e.FromAddress) {
			matched = append(matched, e)
		}
	}
	s.writeJSON(w, http.StatusOK, nonNil(matched))
}

func (s *Server) handleListServices(w http.ResponseWriter, r *http.Request) {
	services, err := s.store.ListServices(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "Failed to list services")
		return
	}
	if services == nil {
		services = []db.Service{}
	}
	s.writeJSON(w, http.StatusOK, services)
}

type serviceRequest struct {
	Name          string `json:"name"`
	SenderFilter  string `json:"sender_filter"`
	SubjectFilter string `json:"subject_filter"`
}

func (s *Server) handleCreateService(w http.ResponseWriter, r *http.Request) {
	var req serviceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	if req.Name == "" {
		s.writeError(w, http.StatusBadRequest, "Service name is required")
		return
	}

	id, err := s.store.CreateService(r.Context(), req.Name, req.SenderFilter, req.SubjectFilter)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "Failed to create service")
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"id":      id,
		"message": "Service created successfully",
	})
}

func (s *Server) handleUpdateService(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "Invalid service id")
		return
	}

	var req serviceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}

	if err := s.store.UpdateServiceFilters(r.Context(), id, req.SenderFilter, req.SubjectFilter); err != nil {
		if errors.Is(err, db.ErrServiceNotFound) {
			s.writeError(w, http.StatusNotFound, "Unknown service")
			return
		}
		s.writeError(w, http.StatusInternalServerError, "Failed to update service")
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{"success": true})
}

// nonNil keeps empty result sets encoding as [] rather than null.
func nonNil(emails []db.Email) []db.Email {
	if emails == nil {
		return []db.Email{}
	}
	return emails
}
