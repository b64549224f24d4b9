package handlers

import (
	"net/http"

	"github.com/Sakeeb91/claim-mapper-sub003/application/commands"
	"github.com/Sakeeb91/claim-mapper-sub003/domain/collab"
	"github.com/Sakeeb91/claim-mapper-sub003/pkg/common"
	pkgerrors "github.com/Sakeeb91/claim-mapper-sub003/pkg/errors"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// SessionHandler serves connection status, presence, conflicts and
// notifications
type SessionHandler struct {
	base
}

// NewSessionHandler creates a new session handler
func NewSessionHandler(cmds CommandSender, view SessionView, errs *pkgerrors.ErrorHandler, logger *zap.Logger) *SessionHandler {
	return &SessionHandler{base: newBase(cmds, view, errs, logger)}
}

// JoinRequest represents the request body for joining a project
type JoinRequest struct {
	ProjectID string `json:"projectId"`
}

// ResolveRequest represents the request body for resolving a conflict
type ResolveRequest struct {
	Resolution string `json:"resolution"`
}

// GetStatus handles GET /session
func (h *SessionHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	status, err := h.view.Status(r.Context())
	if err != nil {
		h.errs.Handle(w, r, err)
		return
	}
	common.RespondJSON(w, http.StatusOK, status)
}

// Join handles POST /session/join
func (h *SessionHandler) Join(w http.ResponseWriter, r *http.Request) {
	var req JoinRequest
	if !h.decode(w, r, &req) {
		return
	}
	h.send(w, r, commands.JoinProjectCommand{ProjectID: req.ProjectID})
}

// Leave handles POST /session/leave
func (h *SessionHandler) Leave(w http.ResponseWriter, r *http.Request) {
	h.send(w, r, commands.LeaveProjectCommand{})
}

// UpdateCursor handles PUT /presence/cursor. Throttled updates answer
// {"sent":false} rather than an error.
func (h *SessionHandler) UpdateCursor(w http.ResponseWriter, r *http.Request) {
	var cur collab.Cursor
	if !h.decode(w, r, &cur) {
		return
	}
	h.send(w, r, commands.UpdateCursorCommand{Cursor: cur})
}

// GetPresence handles GET /presence
func (h *SessionHandler) GetPresence(w http.ResponseWriter, r *http.Request) {
	roster, err := h.view.Presence(r.Context())
	if err != nil {
		h.errs.Handle(w, r, err)
		return
	}
	common.RespondList(w, r, roster, len(roster))
}

// GetConflicts handles GET /conflicts
func (h *SessionHandler) GetConflicts(w http.ResponseWriter, r *http.Request) {
	conflicts, err := h.view.Conflicts(r.Context())
	if err != nil {
		h.errs.Handle(w, r, err)
		return
	}
	common.RespondList(w, r, conflicts, len(conflicts))
}

// ResolveConflict handles POST /conflicts/{conflictID}/resolve
func (h *SessionHandler) ResolveConflict(w http.ResponseWriter, r *http.Request) {
	var req ResolveRequest
	if !h.decode(w, r, &req) {
		return
	}
	h.send(w, r, commands.ResolveConflictCommand{
		ConflictID: chi.URLParam(r, "conflictID"),
		Resolution: req.Resolution,
	})
}

// GetNotifications handles GET /notifications
func (h *SessionHandler) GetNotifications(w http.ResponseWriter, r *http.Request) {
	list, err := h.view.Notifications(r.Context())
	if err != nil {
		h.errs.Handle(w, r, err)
		return
	}
	common.RespondList(w, r, list, len(list))
}

// MarkRead handles POST /notifications/{notificationID}/read
func (h *SessionHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	h.send(w, r, commands.MarkNotificationReadCommand{NotificationID: chi.URLParam(r, "notificationID")})
}

// MarkAllRead handles POST /notifications/read-all
func (h *SessionHandler) MarkAllRead(w http.ResponseWriter, r *http.Request) {
	h.send(w, r, commands.MarkNotificationReadCommand{All: true})
}

// ClearNotifications handles DELETE /notifications
func (h *SessionHandler) ClearNotifications(w http.ResponseWriter, r *http.Request) {
	h.send(w, r, commands.ClearNotificationsCommand{})
}
