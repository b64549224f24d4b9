// Package handlers binds the collaboration commands to a session.
package handlers

import (
	"context"

	"github.com/Sakeeb91/claim-mapper-sub003/application/commands"
	"github.com/Sakeeb91/claim-mapper-sub003/application/commands/bus"
	"github.com/Sakeeb91/claim-mapper-sub003/application/mutations"
	"github.com/Sakeeb91/claim-mapper-sub003/domain/collab"
	"github.com/Sakeeb91/claim-mapper-sub003/domain/core/valueobjects"
	"go.uber.org/zap"
)

// Session is the slice of session.Session the handlers drive
type Session interface {
	Join(ctx context.Context, projectID string) error
	Leave(ctx context.Context) error
	ConnectNodes(ctx context.Context, source, target string, t valueobjects.LinkType, confidence float64) (*mutations.Operation, error)
	UpdateClaim(ctx context.Context, claimID string, changes map[string]interface{}) (*mutations.Operation, error)
	DeleteLink(ctx context.Context, linkID string) (*mutations.Operation, error)
	StartEditing(ctx context.Context, claimID string) error
	StopEditing(ctx context.Context, claimID string, save bool) (*mutations.Operation, error)
	UpdateDraft(ctx context.Context, claimID string, changes map[string]interface{}) error
	ResolveConflict(ctx context.Context, conflictID, resolution string) (collab.ConflictResolution, error)
	MarkNotificationRead(ctx context.Context, id string) error
	MarkAllNotificationsRead(ctx context.Context) error
	ClearNotifications(ctx context.Context) error
	UpdateCursor(ctx context.Context, cursor collab.Cursor) (bool, error)
}

// SessionHandlers executes commands against one session
type SessionHandlers struct {
	session Session
	logger  *zap.Logger
}

// NewSessionHandlers creates the handler set
func NewSessionHandlers(session Session, logger *zap.Logger) *SessionHandlers {
	return &SessionHandlers{session: session, logger: logger}
}

// Register binds every command type to its handler on b
func (h *SessionHandlers) Register(b *bus.CommandBus) error {
	routes := []struct {
		cmd     bus.Command
		handler bus.CommandHandlerFunc
	}{
		{commands.JoinProjectCommand{}, h.joinProject},
		{commands.LeaveProjectCommand{}, h.leaveProject},
		{commands.ConnectNodesCommand{}, h.connectNodes},
		{commands.UpdateClaimCommand{}, h.updateClaim},
		{commands.DeleteLinkCommand{}, h.deleteLink},
		{commands.StartEditingCommand{}, h.startEditing},
		{commands.StopEditingCommand{}, h.stopEditing},
		{commands.UpdateDraftCommand{}, h.updateDraft},
		{commands.ResolveConflictCommand{}, h.resolveConflict},
		{commands.MarkNotificationReadCommand{}, h.markNotificationRead},
		{commands.ClearNotificationsCommand{}, h.clearNotifications},
		{commands.UpdateCursorCommand{}, h.updateCursor},
	}
	for _, r := range routes {
		if err := b.Register(r.cmd, r.handler); err != nil {
			return err
		}
	}
	return nil
}

func (h *SessionHandlers) joinProject(ctx context.Context, c bus.Command) (interface{}, error) {
	cmd := c.(commands.JoinProjectCommand)
	return nil, h.session.Join(ctx, cmd.ProjectID)
}

func (h *SessionHandlers) leaveProject(ctx context.Context, _ bus.Command) (interface{}, error) {
	return nil, h.session.Leave(ctx)
}

func (h *SessionHandlers) connectNodes(ctx context.Context, c bus.Command) (interface{}, error) {
	cmd := c.(commands.ConnectNodesCommand)
	op, err := h.session.ConnectNodes(ctx, cmd.SourceID, cmd.TargetID, cmd.Type, cmd.Confidence)
	if err != nil {
		return nil, err
	}
	h.logger.Debug("Link requested",
		zap.String("provisional_id", op.ProvisionalID()),
		zap.String("source", cmd.SourceID),
		zap.String("target", cmd.TargetID))
	return op, nil
}

func (h *SessionHandlers) updateClaim(ctx context.Context, c bus.Command) (interface{}, error) {
	cmd := c.(commands.UpdateClaimCommand)
	return operation(h.session.UpdateClaim(ctx, cmd.ClaimID, cmd.Changes))
}

func (h *SessionHandlers) deleteLink(ctx context.Context, c bus.Command) (interface{}, error) {
	cmd := c.(commands.DeleteLinkCommand)
	return operation(h.session.DeleteLink(ctx, cmd.LinkID))
}

func (h *SessionHandlers) startEditing(ctx context.Context, c bus.Command) (interface{}, error) {
	cmd := c.(commands.StartEditingCommand)
	return nil, h.session.StartEditing(ctx, cmd.ClaimID)
}

func (h *SessionHandlers) stopEditing(ctx context.Context, c bus.Command) (interface{}, error) {
	cmd := c.(commands.StopEditingCommand)
	return operation(h.session.StopEditing(ctx, cmd.ClaimID, cmd.Save))
}

func (h *SessionHandlers) updateDraft(ctx context.Context, c bus.Command) (interface{}, error) {
	cmd := c.(commands.UpdateDraftCommand)
	return nil, h.session.UpdateDraft(ctx, cmd.ClaimID, cmd.Changes)
}

func (h *SessionHandlers) resolveConflict(ctx context.Context, c bus.Command) (interface{}, error) {
	cmd := c.(commands.ResolveConflictCommand)
	return h.session.ResolveConflict(ctx, cmd.ConflictID, cmd.Resolution)
}

func (h *SessionHandlers) markNotificationRead(ctx context.Context, c bus.Command) (interface{}, error) {
	cmd := c.(commands.MarkNotificationReadCommand)
	if cmd.All {
		return nil, h.session.MarkAllNotificationsRead(ctx)
	}
	return nil, h.session.MarkNotificationRead(ctx, cmd.NotificationID)
}

func (h *SessionHandlers) clearNotifications(ctx context.Context, _ bus.Command) (interface{}, error) {
	return nil, h.session.ClearNotifications(ctx)
}

func (h *SessionHandlers) updateCursor(ctx context.Context, c bus.Command) (interface{}, error) {
	cmd := c.(commands.UpdateCursorCommand)
	sent, err := h.session.UpdateCursor(ctx, cmd.Cursor)
	if err != nil {
		return nil, err
	}
	return commands.CursorResult{Sent: sent}, nil
}

// operation keeps a nil *Operation from becoming a non-nil interface
func operation(op *mutations.Operation, err error) (interface{}, error) {
	if err != nil || op == nil {
		return nil, err
	}
	return op, nil
}
