package api

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	apperrors "github.com/odvcencio/flux/pkg/errors"
	"github.com/odvcencio/flux/pkg/permission"
	"github.com/odvcencio/flux/pkg/skill"
)

// PollResponse reports whether a requested poll was applied.
type PollResponse struct {
	Applied  bool                `json:"applied"`
	Snapshot permission.Snapshot `json:"snapshot"`
}

// SkillResponse is a skill without its content, plus the keys it needs.
type SkillResponse struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Source      string   `json:"source"`
	Permissions []string `json:"permissions"`
}

func (s *Server) tracker(w http.ResponseWriter) (*permission.Tracker, bool) {
	if s.cfg.Onboarding == nil {
		respondError(w, http.StatusServiceUnavailable, apperrors.New(apperrors.ErrCodeInternal, "permission tracker not configured"))
		return nil, false
	}
	return s.cfg.Onboarding.Tracker(), true
}

func (s *Server) handleGetPermissions(w http.ResponseWriter, r *http.Request) {
	tracker, ok := s.tracker(w)
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, tracker.Snapshot())
}

func (s *Server) handlePollPermissions(w http.ResponseWriter, r *http.Request) {
	tracker, ok := s.tracker(w)
	if !ok {
		return
	}
	applied := tracker.Poll(r.Context())
	respondJSON(w, http.StatusOK, PollResponse{Applied: applied, Snapshot: tracker.Snapshot()})
}

// handleRequestPermission forwards a grant request. Status does not change
// here; the view sees the outcome on a later poll.
func (s *Server) handleRequestPermission(w http.ResponseWriter, r *http.Request) {
	tracker, ok := s.tracker(w)
	if !ok {
		return
	}
	p, ok := permissionParam(w, r)
	if !ok {
		return
	}
	if !tracker.Required().Contains(p) {
		respondError(w, http.StatusNotFound, apperrors.New(apperrors.ErrCodePermissionUnknown, p.Key()+" is not in the required set").
			WithContext("required", tracker.Required().Keys()))
		return
	}

	s.cfg.Onboarding.Request(r.Context(), p)
	respondJSON(w, http.StatusAccepted, map[string]any{
		"permission":    p.Key(),
		"opensSettings": p.Metadata().OpensSettings,
	})
}

// permissionParam parses the {key} URL parameter, answering 400 when it is
// malformed or names an unknown permission.
func permissionParam(w http.ResponseWriter, r *http.Request) (permission.Permission, bool) {
	raw, err := url.PathUnescape(chi.URLParam(r, "key"))
	if err != nil {
		respondError(w, http.StatusBadRequest, apperrors.Wrap(err, apperrors.ErrCodeInvalidInput, "malformed permission key"))
		return permission.Permission{}, false
	}
	p, err := permission.Parse(raw)
	if err != nil {
		respondError(w, 0, err)
		return permission.Permission{}, false
	}
	return p, true
}

func (s *Server) handleGetOnboarding(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.tracker(w); !ok {
		return
	}
	state, err := s.cfg.Onboarding.State(r.Context())
	if err != nil {
		respondError(w, 0, err)
		return
	}
	respondJSON(w, http.StatusOK, state)
}

// handleBeginOnboarding starts polling on the server's lifetime context, not
// the request's, so it keeps running after the response.
func (s *Server) handleBeginOnboarding(w http.ResponseWriter, r *http.Request) {
	tracker, ok := s.tracker(w)
	if !ok {
		return
	}
	s.cfg.Onboarding.Begin(s.base)
	respondJSON(w, http.StatusOK, tracker.Snapshot())
}

func (s *Server) handleEndOnboarding(w http.ResponseWriter, r *http.Request) {
	tracker, ok := s.tracker(w)
	if !ok {
		return
	}
	s.cfg.Onboarding.End()
	respondJSON(w, http.StatusOK, tracker.Snapshot())
}

func (s *Server) handleCompleteOnboarding(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.tracker(w); !ok {
		return
	}
	force := false
	if raw := strings.TrimSpace(r.URL.Query().Get("force")); raw != "" {
		parsed, err := strconv.ParseBool(raw)
		if err != nil {
			respondError(w, http.StatusBadRequest, apperrors.Wrap(err, apperrors.ErrCodeInvalidInput, "force must be a boolean"))
			return
		}
		force = parsed
	}

	if err := s.cfg.Onboarding.Complete(r.Context(), force); err != nil {
		respondError(w, 0, err)
		return
	}
	s.handleGetOnboarding(w, r)
}

func (s *Server) handleResetOnboarding(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.tracker(w); !ok {
		return
	}
	if err := s.cfg.Onboarding.Reset(); err != nil {
		respondError(w, 0, err)
		return
	}
	s.handleGetOnboarding(w, r)
}

func (s *Server) skills(w http.ResponseWriter) (*skill.Registry, bool) {
	if s.cfg.Skills == nil {
		respondError(w, http.StatusServiceUnavailable, apperrors.New(apperrors.ErrCodeInternal, "skill registry not configured"))
		return nil, false
	}
	return s.cfg.Skills, true
}

func (s *Server) handleListSkills(w http.ResponseWriter, r *http.Request) {
	registry, ok := s.skills(w)
	if !ok {
		return
	}
	list := registry.List()
	out := make([]SkillResponse, len(list))
	for i, sk := range list {
		out[i] = SkillResponse{
			Name:        sk.Name,
			Description: sk.Description,
			Source:      sk.Source,
			Permissions: sk.RequiredPermissions().Keys(),
		}
	}
	respondJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetSkill(w http.ResponseWriter, r *http.Request) {
	registry, ok := s.skills(w)
	if !ok {
		return
	}
	sk, err := registry.Lookup(chi.URLParam(r, "name"))
	if err != nil {
		respondError(w, 0, err)
		return
	}
	respondJSON(w, http.StatusOK, sk)
}

// handleSkillPermissions returns the sheet a view has open for the skill, or
// builds a throwaway one and polls it once.
func (s *Server) handleSkillPermissions(w http.ResponseWriter, r *http.Request) {
	registry, ok := s.skills(w)
	if !ok {
		return
	}
	name := chi.URLParam(r, "name")
	if sheet := s.openSheet(name); sheet != nil {
		respondJSON(w, http.StatusOK, sheet.Snapshot())
		return
	}
	sheet, err := registry.PermissionSheet(name, s.cfg.Capabilities, s.cfg.SheetOptions...)
	if err != nil {
		respondError(w, 0, err)
		return
	}
	sheet.Poll(r.Context())
	respondJSON(w, http.StatusOK, sheet.Snapshot())
}
