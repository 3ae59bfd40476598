package server

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/google/uuid"

	"github.com/nstogner/sitesmith/pkg/domain"
)

type valueRequest struct {
	Value string `json:"value" validate:"required,min=1,max=10000"`
}

type eventRequest struct {
	Name string            `json:"name" validate:"required,eq=code-agent/run"`
	Data domain.RunRequest `json:"data"`
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		s.errorResponse(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return false
	}
	if err := domain.Validate(v); err != nil {
		s.errorResponse(w, http.StatusBadRequest, err)
		return false
	}
	return true
}

func (s *Server) handleListProjects(w http.ResponseWriter, r *http.Request) {
	projects, err := s.projects.ListProjects(r.Context())
	if err != nil {
		s.storeError(w, err)
		return
	}
	if projects == nil {
		projects = []domain.Project{}
	}
	s.jsonResponse(w, http.StatusOK, projects)
}

// handleCreateProject creates a project from its first prompt and starts the
// first run.
func (s *Server) handleCreateProject(w http.ResponseWriter, r *http.Request) {
	var req valueRequest
	if !s.decode(w, r, &req) {
		return
	}

	project := &domain.Project{ID: uuid.New().String(), Name: domain.NewProjectName()}
	if err := s.projects.CreateProject(r.Context(), project); err != nil {
		s.storeError(w, err)
		return
	}
	if _, err := s.post(r, project.ID, req.Value); err != nil {
		s.errorResponse(w, http.StatusInternalServerError, err)
		return
	}
	s.jsonResponse(w, http.StatusCreated, project)
}

func (s *Server) handleGetProject(w http.ResponseWriter, r *http.Request) {
	project, err := s.projects.GetProject(r.Context(), r.PathValue("id"))
	if err != nil {
		s.storeError(w, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, project)
}

func (s *Server) handleListMessages(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, err := s.projects.GetProject(r.Context(), id); err != nil {
		s.storeError(w, err)
		return
	}
	msgs, err := s.messages.ListMessages(r.Context(), id)
	if err != nil {
		s.storeError(w, err)
		return
	}
	if msgs == nil {
		msgs = []domain.Message{}
	}
	s.jsonResponse(w, http.StatusOK, msgs)
}

// handleCreateMessage posts a follow-up prompt to an existing project.
func (s *Server) handleCreateMessage(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	var req valueRequest
	if !s.decode(w, r, &req) {
		return
	}
	if _, err := s.projects.GetProject(r.Context(), id); err != nil {
		s.storeError(w, err)
		return
	}
	msg, err := s.post(r, id, req.Value)
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, err)
		return
	}
	s.jsonResponse(w, http.StatusCreated, msg)
}

// handleEvent accepts a raw code-agent/run event for an existing project.
func (s *Server) handleEvent(w http.ResponseWriter, r *http.Request) {
	var req eventRequest
	if !s.decode(w, r, &req) {
		return
	}
	run, err := s.engine.Submit(r.Context(), req.Data)
	if err != nil {
		s.storeError(w, err)
		return
	}
	s.jsonResponse(w, http.StatusAccepted, run)
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	run, err := s.runs.GetRun(r.Context(), r.PathValue("id"))
	if err != nil {
		s.storeError(w, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, run)
}

func (s *Server) handleListModels(w http.ResponseWriter, r *http.Request) {
	if s.provider == nil {
		s.jsonResponse(w, http.StatusOK, []string{})
		return
	}
	list, err := s.provider.List(r.Context())
	if err != nil {
		s.errorResponse(w, http.StatusBadGateway, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, list)
}

// post stores a user message and emits the run event for it.
func (s *Server) post(r *http.Request, projectID, value string) (*domain.Message, error) {
	msg := &domain.Message{
		ID:        uuid.New().String(),
		ProjectID: projectID,
		Content:   value,
		Role:      domain.RoleUser,
		Type:      domain.TypeResult,
	}
	if err := s.messages.CreateMessage(r.Context(), msg); err != nil {
		return nil, fmt.Errorf("create message: %w", err)
	}
	if _, err := s.engine.Submit(r.Context(), domain.RunRequest{Value: value, ProjectID: projectID}); err != nil {
		return nil, fmt.Errorf("submit run: %w", err)
	}
	return msg, nil
}
