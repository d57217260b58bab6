package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	apperrors "github.com/odvcencio/flux/pkg/errors"
	"github.com/odvcencio/flux/pkg/logging"
	"github.com/odvcencio/flux/pkg/permission"
)

// openSheet returns the polling sheet for a skill, or nil.
func (s *Server) openSheet(name string) *permission.Tracker {
	s.sheetMu.Lock()
	defer s.sheetMu.Unlock()
	return s.sheets[name]
}

// closeSheets stops every open sheet.
func (s *Server) closeSheets() {
	s.sheetMu.Lock()
	defer s.sheetMu.Unlock()
	for name, sheet := range s.sheets {
		sheet.Stop()
		delete(s.sheets, name)
	}
}

// handleBeginSkillSheet starts polling the skill's permissions while its
// sheet is on screen. A sheet already open is rebuilt so a reloaded skill
// picks up its current permission list.
func (s *Server) handleBeginSkillSheet(w http.ResponseWriter, r *http.Request) {
	registry, ok := s.skills(w)
	if !ok {
		return
	}
	name := chi.URLParam(r, "name")
	sheet, err := registry.PermissionSheet(name, s.cfg.Capabilities, s.cfg.SheetOptions...)
	if err != nil {
		respondError(w, 0, err)
		return
	}

	s.sheetMu.Lock()
	if prev := s.sheets[name]; prev != nil {
		prev.Stop()
	}
	s.sheets[name] = sheet
	sheet.Start(s.base, s.cfg.PollInterval)
	s.sheetMu.Unlock()

	_ = s.cfg.Logger.Debug(logging.CategoryServer, "sheet_opened", "", map[string]any{"skill": name})
	respondJSON(w, http.StatusOK, sheet.Snapshot())
}

// handleEndSkillSheet stops the skill's sheet. Ending a sheet that is not
// open is a no-op.
func (s *Server) handleEndSkillSheet(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	s.sheetMu.Lock()
	sheet := s.sheets[name]
	delete(s.sheets, name)
	s.sheetMu.Unlock()

	if sheet == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	sheet.Stop()
	respondJSON(w, http.StatusOK, sheet.Snapshot())
}

// handleRequestSkillPermission forwards a grant request for one of the
// skill's permissions. Like the onboarding route it never changes status.
func (s *Server) handleRequestSkillPermission(w http.ResponseWriter, r *http.Request) {
	registry, ok := s.skills(w)
	if !ok {
		return
	}
	name := chi.URLParam(r, "name")
	required, err := registry.RequiredPermissions(name)
	if err != nil {
		respondError(w, 0, err)
		return
	}
	p, ok := permissionParam(w, r)
	if !ok {
		return
	}
	if !required.Contains(p) {
		respondError(w, http.StatusNotFound, apperrors.New(apperrors.ErrCodePermissionUnknown, p.Key()+" is not needed by skill "+name).
			WithContext("required", required.Keys()))
		return
	}

	sheet := s.openSheet(name)
	if sheet == nil {
		sheet, err = registry.PermissionSheet(name, s.cfg.Capabilities, s.cfg.SheetOptions...)
		if err != nil {
			respondError(w, 0, err)
			return
		}
	}
	sheet.RequestGrant(r.Context(), p)
	respondJSON(w, http.StatusAccepted, map[string]any{
		"skill":         name,
		"permission":    p.Key(),
		"opensSettings": p.Metadata().OpensSettings,
	})
}
