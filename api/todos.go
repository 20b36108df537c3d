package api

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	contractx "github.com/tanpawarit/habit-elevate/agent/contract"
)

type createTodoRequest struct {
	Text   string `json:"text"`
	UserID string `json:"user_id"`
}

func (s *Server) handleCreateTodo(w http.ResponseWriter, r *http.Request) {
	var req createTodoRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if strings.TrimSpace(req.UserID) == "" {
		writeError(w, http.StatusBadRequest, "user_id is required to create a todo")
		return
	}

	env := s.deps.Todos.Create(r.Context(), req.Text, strings.TrimSpace(req.UserID))
	if !env.Success {
		writeEnvelopeError(w, env, http.StatusBadRequest)
		return
	}
	writeSuccess(w, env.Data, env.Message)
}

func (s *Server) handleListTodos(w http.ResponseWriter, r *http.Request) {
	userID := strings.TrimSpace(r.URL.Query().Get("user_id"))
	if userID == "" {
		writeError(w, http.StatusBadRequest, "user_id is required to fetch todos")
		return
	}

	env := s.deps.Todos.List(r.Context(), userID)
	if !env.Success {
		writeEnvelopeError(w, env, http.StatusInternalServerError)
		return
	}
	writeSuccess(w, env.Data, env.Message)
}

func (s *Server) handleGetTodo(w http.ResponseWriter, r *http.Request) {
	env := s.deps.Todos.Get(r.Context(), chi.URLParam(r, "todoID"))
	if !env.Success {
		writeEnvelopeError(w, env, http.StatusInternalServerError)
		return
	}
	writeSuccess(w, env.Data, env.Message)
}

func (s *Server) handleUpdateTodo(w http.ResponseWriter, r *http.Request) {
	var patch contractx.TodoPatch
	if err := decodeJSON(r, &patch); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	env := s.deps.Todos.Update(r.Context(), chi.URLParam(r, "todoID"), patch)
	if !env.Success {
		writeEnvelopeError(w, env, http.StatusBadRequest)
		return
	}
	writeSuccess(w, env.Data, env.Message)
}

func (s *Server) handleToggleTodo(w http.ResponseWriter, r *http.Request) {
	env := s.deps.Todos.Toggle(r.Context(), chi.URLParam(r, "todoID"))
	if !env.Success {
		writeEnvelopeError(w, env, http.StatusBadRequest)
		return
	}
	writeSuccess(w, env.Data, env.Message)
}

func (s *Server) handleDeleteTodo(w http.ResponseWriter, r *http.Request) {
	env := s.deps.Todos.Delete(r.Context(), chi.URLParam(r, "todoID"))
	if !env.Success {
		writeEnvelopeError(w, env, http.StatusBadRequest)
		return
	}
	writeSuccess(w, nil, env.Message)
}

func (s *Server) handleClearCompleted(w http.ResponseWriter, r *http.Request) {
	userID := strings.TrimSpace(r.URL.Query().Get("user_id"))
	if userID == "" {
		writeError(w, http.StatusBadRequest, "user_id is required to clear completed todos")
		return
	}

	env := s.deps.Todos.ClearCompleted(r.Context(), userID)
	if !env.Success {
		writeEnvelopeError(w, env, http.StatusBadRequest)
		return
	}
	writeSuccess(w, map[string]int64{"deleted": env.Data}, env.Message)
}
