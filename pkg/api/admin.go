package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/healthassoc/bayan/pkg/api/store"
	"github.com/healthassoc/bayan/pkg/auth"
	"github.com/healthassoc/bayan/pkg/content"
	"github.com/healthassoc/bayan/pkg/locale"
	"github.com/healthassoc/bayan/pkg/nav"
)

// --- Navigation ---

type navResponse struct {
	Role  auth.Role   `json:"role"`
	Items []nav.Entry `json:"items"`
}

// handleNav returns the admin menu visible to the caller in ?lang.
func (s *server) handleNav(w http.ResponseWriter, r *http.Request) {
	l, ok := locale.Parse(r.URL.Query().Get("lang"))
	if !ok {
		l, _ = locale.Parse(s.cfg.Site.DefaultLocale)
	}

	role := auth.FromContext(r.Context()).Snapshot().Role

	writeJSON(w, http.StatusOK, navResponse{
		Role:  role,
		Items: nav.Render(nav.Filter(nav.AdminMenu, role), l),
	})
}

// --- User management ---

type userResponse struct {
	ID        uint      `json:"id"`
	Email     string    `json:"email"`
	Role      auth.Role `json:"role"`
	Source    string    `json:"source"`
	CreatedAt time.Time `json:"created_at"`
}

// handleListUsers returns all users with their roles.
func (s *server) handleListUsers(
	w http.ResponseWriter, r *http.Request,
) {
	users, err := s.store.ListUsers(r.Context())
	if err != nil {
		s.writeInternal(w, "Failed to list users", err)

		return
	}

	roles, err := s.store.ListUserRoles(r.Context())
	if err != nil {
		s.writeInternal(w, "Failed to list roles", err)

		return
	}

	byUser := make(map[uint]auth.Role, len(roles))
	for _, row := range roles {
		role, err := auth.ParseRole(row.Role)
		if err != nil {
			s.log.WithError(err).WithField("user_id", row.UserID).Warn("Ignoring stored role")

			continue
		}

		byUser[row.UserID] = role
	}

	resp := make([]userResponse, 0, len(users))
	for i := range users {
		resp = append(resp, toUserResponse(&users[i], byUser[users[i].ID]))
	}

	writeJSON(w, http.StatusOK, resp)
}

func toUserResponse(u *store.User, role auth.Role) userResponse {
	return userResponse{
		ID:        u.ID,
		Email:     u.Email,
		Role:      role,
		Source:    u.Source,
		CreatedAt: u.CreatedAt,
	}
}

type createUserRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role,omitempty"`
}

// handleCreateUser creates an admin-sourced user, optionally with a role.
func (s *server) handleCreateUser(
	w http.ResponseWriter, r *http.Request,
) {
	var req createUserRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	role := auth.RoleNone

	if req.Role != "" {
		parsed, err := auth.ParseRole(req.Role)
		if err != nil {
			writeValidation(w, content.ValidationErrors{"role": err.Error()})

			return
		}

		role = parsed
	}

	user, err := s.auth.CreateUser(r.Context(), req.Email, req.Password, store.SourceAdmin)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrEmailTaken):
			writeJSON(w, http.StatusConflict, errorResponse{
				Error: err.Error(), Code: "email_taken", Message: &emailTakenMessage,
			})
		case errors.Is(err, auth.ErrInvalidEmail):
			writeValidation(w, content.ValidationErrors{"email": err.Error()})
		case errors.Is(err, auth.ErrWeakPassword), errors.Is(err, auth.ErrPasswordTooLong):
			writeValidation(w, content.ValidationErrors{"password": err.Error()})
		default:
			s.writeInternal(w, "Failed to create user", err)
		}

		return
	}

	if role != auth.RoleNone {
		if err := s.auth.AssignRole(r.Context(), user.ID, role); err != nil {
			s.writeInternal(w, "Failed to assign role", err)

			return
		}

		s.recordActivity(r, content.ActionCreate, content.KindUserRole, user.ID, map[string]any{
			"role": string(role),
		})
	}

	writeJSON(w, http.StatusCreated, toUserResponse(user, role))
}

type roleRequest struct {
	Role string `json:"role"`
}

type roleResponse struct {
	UserID uint      `json:"user_id"`
	Role   auth.Role `json:"role"`
}

// handleSetRole assigns a role. An empty role revokes it. Nobody can
// change their own role.
func (s *server) handleSetRole(
	w http.ResponseWriter, r *http.Request,
) {
	id, ok := s.idParam(w, r)
	if !ok {
		return
	}

	if actorID(r) == id {
		writeJSON(w, http.StatusBadRequest, errorResponse{
			Error: "cannot change your own role",
			Code:  "own_role",
		})

		return
	}

	var req roleRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	role := auth.RoleNone

	if req.Role != "" {
		parsed, err := auth.ParseRole(req.Role)
		if err != nil {
			writeValidation(w, content.ValidationErrors{"role": err.Error()})

			return
		}

		role = parsed
	}

	if err := s.auth.AssignRole(r.Context(), id, role); err != nil {
		s.writeStoreError(w, "user", err)

		return
	}

	action := content.ActionUpdate
	if role == auth.RoleNone {
		action = content.ActionDelete
	}

	s.recordActivity(r, action, content.KindUserRole, id, map[string]any{
		"role": string(role),
	})

	writeJSON(w, http.StatusOK, roleResponse{UserID: id, Role: role})
}

// handleRevokeRole removes a user's role.
func (s *server) handleRevokeRole(
	w http.ResponseWriter, r *http.Request,
) {
	id, ok := s.idParam(w, r)
	if !ok {
		return
	}

	if actorID(r) == id {
		writeJSON(w, http.StatusBadRequest, errorResponse{
			Error: "cannot change your own role",
			Code:  "own_role",
		})

		return
	}

	if err := s.auth.RevokeRole(r.Context(), id); err != nil {
		s.writeStoreError(w, "user", err)

		return
	}

	s.recordActivity(r, content.ActionDelete, content.KindUserRole, id, nil)

	writeJSON(w, http.StatusOK, statusOK)
}

// handleDeleteUser removes a user by ID and signs out their sessions.
func (s *server) handleDeleteUser(
	w http.ResponseWriter, r *http.Request,
) {
	id, ok := s.idParam(w, r)
	if !ok {
		return
	}

	// Prevent self-deletion.
	if actorID(r) == id {
		writeJSON(w, http.StatusBadRequest, errorResponse{
			Error: "cannot delete yourself",
			Code:  "self_delete",
		})

		return
	}

	if err := s.auth.RevokeUser(r.Context(), id); err != nil {
		s.writeInternal(w, "Failed to revoke user sessions", err)

		return
	}

	if err := s.store.DeleteUser(r.Context(), id); err != nil {
		s.writeStoreError(w, "user", err)

		return
	}

	s.recordActivity(r, content.ActionDelete, content.KindUserRole, id, map[string]any{
		"user_deleted": true,
	})

	writeJSON(w, http.StatusOK, statusOK)
}

// --- Session management ---

type sessionResponse struct {
	ID           uint       `json:"id"`
	UserID       uint       `json:"user_id"`
	Email        string     `json:"email"`
	ExpiresAt    time.Time  `json:"expires_at"`
	LastActiveAt *time.Time `json:"last_active_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}

// handleListSessions returns all sessions with resolved emails.
func (s *server) handleListSessions(
	w http.ResponseWriter, r *http.Request,
) {
	sessions, err := s.store.ListSessions(r.Context())
	if err != nil {
		s.writeInternal(w, "Failed to list sessions", err)

		return
	}

	users, err := s.store.ListUsers(r.Context())
	if err != nil {
		s.writeInternal(w, "Failed to list users", err)

		return
	}

	emails := make(map[uint]string, len(users))
	for i := range users {
		emails[users[i].ID] = users[i].Email
	}

	resp := make([]sessionResponse, 0, len(sessions))
	for i := range sessions {
		resp = append(resp, sessionResponse{
			ID:           sessions[i].ID,
			UserID:       sessions[i].UserID,
			Email:        emails[sessions[i].UserID],
			ExpiresAt:    sessions[i].ExpiresAt,
			LastActiveAt: sessions[i].LastActiveAt,
			CreatedAt:    sessions[i].CreatedAt,
		})
	}

	writeJSON(w, http.StatusOK, resp)
}

// handleDeleteSessionByID revokes a session by ID. The owner's open
// guards are signed out.
func (s *server) handleDeleteSessionByID(
	w http.ResponseWriter, r *http.Request,
) {
	id, ok := s.idParam(w, r)
	if !ok {
		return
	}

	if err := s.auth.RevokeSession(r.Context(), id); err != nil {
		s.writeStoreError(w, "session", err)

		return
	}

	s.recordActivity(r, content.ActionDelete, content.KindSession, id, nil)

	writeJSON(w, http.StatusOK, statusOK)
}
