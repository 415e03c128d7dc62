package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/Shivanand-hulikatti/event-reservations/internal/auth"
	"github.com/Shivanand-hulikatti/event-reservations/internal/model"
	"github.com/Shivanand-hulikatti/event-reservations/internal/repository"
)

// UserService is what UserHandler needs from the service layer.
type UserService interface {
	Register(ctx context.Context, req model.RegisterRequest) (*model.User, error)
	Login(ctx context.Context, req model.LoginRequest) (*model.LoginResponse, error)
	GetUser(ctx context.Context, caller auth.Identity, id string) (*model.User, error)
	ListUsers(ctx context.Context, caller auth.Identity) ([]model.User, error)
	DeleteUser(ctx context.Context, caller auth.Identity, id string) (*repository.AccountDeletion, error)
}

// UserHandler serves authentication and account endpoints.
type UserHandler struct {
	svc UserService
}

func NewUserHandler(svc UserService) *UserHandler {
	return &UserHandler{svc: svc}
}

// Register handles POST /auth/register
func (h *UserHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req model.RegisterRequest
	if err := decodeJSON(w, r, &req); err != nil {
		badBody(w, err)
		return
	}
	u, err := h.svc.Register(r.Context(), req)
	if err != nil {
		fail(w, r, err, "failed to register")
		return
	}
	writeJSON(w, http.StatusCreated, u)
}

// Login handles POST /auth/login
func (h *UserHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req model.LoginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		badBody(w, err)
		return
	}
	resp, err := h.svc.Login(r.Context(), req)
	if err != nil {
		fail(w, r, err, "failed to log in")
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// Me handles GET /auth/me
func (h *UserHandler) Me(w http.ResponseWriter, r *http.Request) {
	caller := identity(r)
	u, err := h.svc.GetUser(r.Context(), caller, caller.UserID)
	if err != nil {
		fail(w, r, err, "failed to load profile")
		return
	}
	writeJSON(w, http.StatusOK, u)
}

// List handles GET /users
func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	users, err := h.svc.ListUsers(r.Context(), identity(r))
	if err != nil {
		fail(w, r, err, "failed to list users")
		return
	}
	if users == nil {
		users = []model.User{}
	}
	writeJSON(w, http.StatusOK, users)
}

// Get handles GET /users/{id}
func (h *UserHandler) Get(w http.ResponseWriter, r *http.Request) {
	u, err := h.svc.GetUser(r.Context(), identity(r), chi.URLParam(r, "id"))
	if err != nil {
		fail(w, r, err, "failed to get user")
		return
	}
	writeJSON(w, http.StatusOK, u)
}

type accountDeletionResponse struct {
	UserID         string   `json:"user_id"`
	DeletedEvents  []string `json:"deleted_events"`
	ReleasedEvents []string `json:"released_events"`
}

// Delete handles DELETE /users/{id}
// Runs the account deletion cascade in one transaction.
func (h *UserHandler) Delete(w http.ResponseWriter, r *http.Request) {
	out, err := h.svc.DeleteUser(r.Context(), identity(r), chi.URLParam(r, "id"))
	if err != nil {
		fail(w, r, err, "failed to delete user")
		return
	}
	resp := accountDeletionResponse{UserID: out.UserID, DeletedEvents: out.DeletedEvents, ReleasedEvents: out.ReleasedEvents}
	if resp.DeletedEvents == nil {
		resp.DeletedEvents = []string{}
	}
	if resp.ReleasedEvents == nil {
		resp.ReleasedEvents = []string{}
	}
	writeJSON(w, http.StatusOK, resp)
}
