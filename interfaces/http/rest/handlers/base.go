// Package handlers serves the local inspection and control API of one
// collaboration session.
package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/Sakeeb91/claim-mapper-sub003/application/commands/bus"
	"github.com/Sakeeb91/claim-mapper-sub003/application/locks"
	"github.com/Sakeeb91/claim-mapper-sub003/application/mutations"
	"github.com/Sakeeb91/claim-mapper-sub003/application/session"
	"github.com/Sakeeb91/claim-mapper-sub003/domain/collab"
	"github.com/Sakeeb91/claim-mapper-sub003/domain/core/entities"
	"github.com/Sakeeb91/claim-mapper-sub003/pkg/common"
	pkgerrors "github.com/Sakeeb91/claim-mapper-sub003/pkg/errors"
	"go.uber.org/zap"
)

const maxBodySize = 1 << 20

// CommandSender dispatches commands
type CommandSender interface {
	Send(ctx context.Context, cmd bus.Command) (interface{}, error)
}

// SessionView is the read side of a session
type SessionView interface {
	Status(ctx context.Context) (session.Status, error)
	Graph(ctx context.Context) (entities.GraphData, error)
	Presence(ctx context.Context) ([]collab.UserPresence, error)
	History(ctx context.Context, n int) ([]collab.ChangeEvent, error)
	Conflicts(ctx context.Context) ([]collab.ConflictResolution, error)
	Notifications(ctx context.Context) ([]collab.Notification, error)
	RemoteEditors(ctx context.Context, claimID string) ([]locks.RemoteEditor, error)
	Draft(ctx context.Context, claimID string) (map[string]interface{}, error)
}

// OperationResponse describes an optimistic mutation
type OperationResponse struct {
	Kind          mutations.Kind      `json:"kind"`
	Key           string              `json:"key"`
	ProvisionalID string              `json:"provisionalId,omitempty"`
	Done          bool                `json:"done"`
	Link          *entities.GraphLink `json:"link,omitempty"`
	Claim         *entities.Claim     `json:"claim,omitempty"`
	Error         string              `json:"error,omitempty"`
}

// base carries what every handler needs
type base struct {
	commands CommandSender
	view     SessionView
	errs     *pkgerrors.ErrorHandler
	logger   *zap.Logger
}

func newBase(commands CommandSender, view SessionView, errs *pkgerrors.ErrorHandler, logger *zap.Logger) base {
	return base{commands: commands, view: view, errs: errs, logger: logger}
}

func (b base) decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := common.ParseJSONBody(w, r, v, maxBodySize); err != nil {
		b.errs.Handle(w, r, pkgerrors.NewValidationError("invalid request body: "+err.Error()))
		return false
	}
	return true
}

// send dispatches cmd and writes its result. Operations answer 202 unless
// the caller asked to wait with ?wait=true.
func (b base) send(w http.ResponseWriter, r *http.Request, cmd bus.Command) {
	result, err := b.commands.Send(r.Context(), cmd)
	if err != nil {
		b.errs.Handle(w, r, err)
		return
	}

	switch v := result.(type) {
	case *mutations.Operation:
		b.respondOperation(w, r, v)
	case nil:
		common.RespondJSON(w, http.StatusOK, map[string]bool{"ok": true})
	default:
		common.RespondJSON(w, http.StatusOK, v)
	}
}

func (b base) respondOperation(w http.ResponseWriter, r *http.Request, op *mutations.Operation) {
	if wait, _ := strconv.ParseBool(r.URL.Query().Get("wait")); !wait {
		common.RespondJSON(w, http.StatusAccepted, operationResponse(op, op.Result(), false))
		return
	}

	res, err := op.Wait(r.Context())
	if err != nil {
		b.errs.Handle(w, r, pkgerrors.NewTimeoutError(string(op.Kind())).WithCause(err))
		return
	}
	if res.Err != nil {
		b.errs.Handle(w, r, res.Err)
		return
	}
	common.RespondJSON(w, http.StatusOK, operationResponse(op, res, true))
}

func operationResponse(op *mutations.Operation, res mutations.Result, done bool) OperationResponse {
	if !done {
		select {
		case <-op.Done():
			done = true
		default:
		}
	}
	out := OperationResponse{
		Kind:          op.Kind(),
		Key:           op.Key(),
		ProvisionalID: op.ProvisionalID(),
		Done:          done,
		Link:          res.Link,
		Claim:         res.Claim,
	}
	if res.Err != nil {
		out.Error = pkgerrors.UserMessage(res.Err, "Failed to "+string(op.Kind()))
	}
	return out
}
