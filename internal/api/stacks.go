package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ctxthelp/ctxt-api/internal/auth"
	"github.com/ctxthelp/ctxt-api/internal/core"
	"github.com/ctxthelp/ctxt-api/internal/metrics"
	"github.com/ctxthelp/ctxt-api/internal/stack"
)

type stackRequest struct {
	Name        *string       `json:"name"`
	Description *string       `json:"description"`
	Blocks      *[]core.Block `json:"blocks"`
	IsTemplate  *bool         `json:"is_template"`
	IsPublic    *bool         `json:"is_public"`
}

func (s *Server) createStack(w http.ResponseWriter, r *http.Request) {
	account := auth.AccountFrom(r.Context())

	var req stackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, &core.ValidationError{Field: "body", Detail: "invalid JSON"})
		return
	}

	params := stack.CreateParams{}
	if req.Name != nil {
		params.Name = *req.Name
	}
	if req.Description != nil {
		params.Description = *req.Description
	}
	if req.Blocks != nil {
		params.Blocks = *req.Blocks
	}
	if req.IsTemplate != nil {
		params.IsTemplate = *req.IsTemplate
	}
	if req.IsPublic != nil {
		params.IsPublic = *req.IsPublic
	}

	created, err := s.deps.Stacks.Create(r.Context(), account.ID, params)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, created)
}

func (s *Server) listStacks(w http.ResponseWriter, r *http.Request) {
	account := auth.AccountFrom(r.Context())
	q := r.URL.Query()

	var isTemplate *bool
	if raw := q.Get("is_template"); raw != "" {
		v := raw == "true"
		isTemplate = &v
	}

	items, err := s.deps.Stacks.ListMine(r.Context(), account.ID, q.Get("search"), isTemplate,
		queryInt(r, "limit", 20, 100), queryInt(r, "offset", 0, 1<<30))
	if err != nil {
		s.writeError(w, err)
		return
	}
	if items == nil {
		items = []core.ContextStack{}
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"stacks": items})
}

func (s *Server) listPublicStacks(w http.ResponseWriter, r *http.Request) {
	items, err := s.deps.Stacks.ListPublic(r.Context(),
		queryInt(r, "limit", 20, 100), queryInt(r, "offset", 0, 1<<30))
	if err != nil {
		s.writeError(w, err)
		return
	}
	if items == nil {
		items = []core.ContextStack{}
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"stacks": items})
}

func (s *Server) getStack(w http.ResponseWriter, r *http.Request) {
	found, err := s.deps.Stacks.Get(r.Context(), chi.URLParam(r, "id"), accountIDFrom(r))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, found)
}

func (s *Server) updateStack(w http.ResponseWriter, r *http.Request) {
	account := auth.AccountFrom(r.Context())

	var req stackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, &core.ValidationError{Field: "body", Detail: "invalid JSON"})
		return
	}

	updated, err := s.deps.Stacks.Update(r.Context(), chi.URLParam(r, "id"), account.ID, stack.UpdateParams{
		Name:        req.Name,
		Description: req.Description,
		Blocks:      req.Blocks,
		IsTemplate:  req.IsTemplate,
		IsPublic:    req.IsPublic,
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, updated)
}

func (s *Server) deleteStack(w http.ResponseWriter, r *http.Request) {
	account := auth.AccountFrom(r.Context())
	if err := s.deps.Stacks.Delete(r.Context(), chi.URLParam(r, "id"), account.ID); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type exportRequest struct {
	Format         string `json:"format"`
	Wrapper        string `json:"wrapper"`
	IncludeSources *bool  `json:"include_sources"`
}

func (s *Server) exportStack(w http.ResponseWriter, r *http.Request) {
	var req exportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, &core.ValidationError{Field: "body", Detail: "invalid JSON"})
		return
	}

	format, err := stack.ParseFormat(req.Format)
	if err != nil {
		s.writeError(w, err)
		return
	}

	out, err := s.deps.Stacks.Export(r.Context(), chi.URLParam(r, "id"), accountIDFrom(r), stack.ExportOptions{
		Format:         format,
		Wrapper:        req.Wrapper,
		IncludeSources: req.IncludeSources == nil || *req.IncludeSources,
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	metrics.ObserveStackExport(string(out.Format))
	s.writeJSON(w, http.StatusOK, out)
}

func accountIDFrom(r *http.Request) *string {
	if account := auth.AccountFrom(r.Context()); account != nil {
		return &account.ID
	}
	return nil
}
