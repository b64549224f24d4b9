package handlers

import (
	"net/http"

	"github.com/Sakeeb91/claim-mapper-sub003/application/commands"
	"github.com/Sakeeb91/claim-mapper-sub003/pkg/common"
	pkgerrors "github.com/Sakeeb91/claim-mapper-sub003/pkg/errors"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// ClaimHandler serves claim updates, edit locks and drafts
type ClaimHandler struct {
	base
}

// NewClaimHandler creates a new claim handler
func NewClaimHandler(cmds CommandSender, view SessionView, errs *pkgerrors.ErrorHandler, logger *zap.Logger) *ClaimHandler {
	return &ClaimHandler{base: newBase(cmds, view, errs, logger)}
}

// ChangesRequest carries a field-level claim patch
type ChangesRequest struct {
	Changes map[string]interface{} `json:"changes"`
}

// StopEditingRequest represents the request body for releasing a lock
type StopEditingRequest struct {
	Save bool `json:"save"`
}

// UpdateClaim handles PATCH /claims/{claimID}
func (h *ClaimHandler) UpdateClaim(w http.ResponseWriter, r *http.Request) {
	var req ChangesRequest
	if !h.decode(w, r, &req) {
		return
	}
	h.send(w, r, commands.UpdateClaimCommand{ClaimID: chi.URLParam(r, "claimID"), Changes: req.Changes})
}

// StartEditing handles POST /claims/{claimID}/edit/start
func (h *ClaimHandler) StartEditing(w http.ResponseWriter, r *http.Request) {
	h.send(w, r, commands.StartEditingCommand{ClaimID: chi.URLParam(r, "claimID")})
}

// StopEditing handles POST /claims/{claimID}/edit/stop
func (h *ClaimHandler) StopEditing(w http.ResponseWriter, r *http.Request) {
	var req StopEditingRequest
	if r.ContentLength != 0 && !h.decode(w, r, &req) {
		return
	}
	h.send(w, r, commands.StopEditingCommand{ClaimID: chi.URLParam(r, "claimID"), Save: req.Save})
}

// GetDraft handles GET /claims/{claimID}/draft
func (h *ClaimHandler) GetDraft(w http.ResponseWriter, r *http.Request) {
	draft, err := h.view.Draft(r.Context(), chi.URLParam(r, "claimID"))
	if err != nil {
		h.errs.Handle(w, r, err)
		return
	}
	common.RespondJSON(w, http.StatusOK, draft)
}

// UpdateDraft handles PUT /claims/{claimID}/draft
func (h *ClaimHandler) UpdateDraft(w http.ResponseWriter, r *http.Request) {
	var req ChangesRequest
	if !h.decode(w, r, &req) {
		return
	}
	h.send(w, r, commands.UpdateDraftCommand{ClaimID: chi.URLParam(r, "claimID"), Changes: req.Changes})
}

// GetEditors handles GET /claims/{claimID}/editors
func (h *ClaimHandler) GetEditors(w http.ResponseWriter, r *http.Request) {
	editors, err := h.view.RemoteEditors(r.Context(), chi.URLParam(r, "claimID"))
	if err != nil {
		h.errs.Handle(w, r, err)
		return
	}
	common.RespondList(w, r, editors, len(editors))
}
