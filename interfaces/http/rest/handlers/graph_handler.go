package handlers

import (
	"net/http"
	"strconv"

	"github.com/Sakeeb91/claim-mapper-sub003/application/commands"
	"github.com/Sakeeb91/claim-mapper-sub003/domain/core/valueobjects"
	"github.com/Sakeeb91/claim-mapper-sub003/pkg/common"
	pkgerrors "github.com/Sakeeb91/claim-mapper-sub003/pkg/errors"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// GraphHandler serves the graph mirror, its links and the change history
type GraphHandler struct {
	base
}

// NewGraphHandler creates a new graph handler
func NewGraphHandler(cmds CommandSender, view SessionView, errs *pkgerrors.ErrorHandler, logger *zap.Logger) *GraphHandler {
	return &GraphHandler{base: newBase(cmds, view, errs, logger)}
}

// GetGraph handles GET /graph
func (h *GraphHandler) GetGraph(w http.ResponseWriter, r *http.Request) {
	graph, err := h.view.Graph(r.Context())
	if err != nil {
		h.errs.Handle(w, r, err)
		return
	}
	if valid, _ := strconv.ParseBool(r.URL.Query().Get("valid")); valid {
		graph.Links = graph.ValidLinks()
	}
	common.RespondJSON(w, http.StatusOK, graph)
}

// GetHistory handles GET /history?limit=n
func (h *GraphHandler) GetHistory(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			h.errs.Handle(w, r, pkgerrors.NewValidationError("limit must be a non-negative integer"))
			return
		}
		limit = n
	}
	changes, err := h.view.History(r.Context(), limit)
	if err != nil {
		h.errs.Handle(w, r, err)
		return
	}
	common.RespondList(w, r, changes, len(changes))
}

// CreateLinkRequest represents the request body for connecting two nodes
type CreateLinkRequest struct {
	SourceID   string                `json:"sourceId"`
	TargetID   string                `json:"targetId"`
	Type       valueobjects.LinkType `json:"type"`
	Confidence *float64              `json:"confidence,omitempty"`
}

// CreateLink handles POST /links
func (h *GraphHandler) CreateLink(w http.ResponseWriter, r *http.Request) {
	var req CreateLinkRequest
	if !h.decode(w, r, &req) {
		return
	}
	confidence := 0.5
	if req.Confidence != nil {
		confidence = *req.Confidence
	}
	h.send(w, r, commands.ConnectNodesCommand{
		SourceID:   req.SourceID,
		TargetID:   req.TargetID,
		Type:       req.Type,
		Confidence: confidence,
	})
}

// DeleteLink handles DELETE /links/{linkID}
func (h *GraphHandler) DeleteLink(w http.ResponseWriter, r *http.Request) {
	h.send(w, r, commands.DeleteLinkCommand{LinkID: chi.URLParam(r, "linkID")})
}
