// Package commands defines the session actions a client can request.
package commands

import (
	"github.com/Sakeeb91/claim-mapper-sub003/domain/collab"
	"github.com/Sakeeb91/claim-mapper-sub003/domain/core/valueobjects"
	"github.com/Sakeeb91/claim-mapper-sub003/pkg/utils"
)

// JoinProjectCommand loads a project and announces the user
type JoinProjectCommand struct {
	ProjectID string `json:"projectId" validate:"required,max=128"`
}

// Validate implements bus.Command
func (c JoinProjectCommand) Validate() error { return utils.ValidateStruct(c) }

// LeaveProjectCommand leaves the current project
type LeaveProjectCommand struct{}

// Validate implements bus.Command
func (LeaveProjectCommand) Validate() error { return nil }

// ConnectNodesCommand links two nodes
type ConnectNodesCommand struct {
	SourceID   string                `json:"sourceId" validate:"required"`
	TargetID   string                `json:"targetId" validate:"required,nefield=SourceID"`
	Type       valueobjects.LinkType `json:"type" validate:"linktype"`
	Confidence float64               `json:"confidence" validate:"gte=0,lte=1"`
}

// Validate implements bus.Command
func (c ConnectNodesCommand) Validate() error { return utils.ValidateStruct(c) }

// UpdateClaimCommand patches claim fields
type UpdateClaimCommand struct {
	ClaimID string                 `json:"claimId" validate:"required"`
	Changes map[string]interface{} `json:"changes" validate:"required,min=1"`
}

// Validate implements bus.Command
func (c UpdateClaimCommand) Validate() error { return utils.ValidateStruct(c) }

// DeleteLinkCommand removes a link
type DeleteLinkCommand struct {
	LinkID string `json:"linkId" validate:"required"`
}

// Validate implements bus.Command
func (c DeleteLinkCommand) Validate() error { return utils.ValidateStruct(c) }

// StartEditingCommand takes the edit lock on a claim
type StartEditingCommand struct {
	ClaimID string `json:"claimId" validate:"required"`
}

// Validate implements bus.Command
func (c StartEditingCommand) Validate() error { return utils.ValidateStruct(c) }

// StopEditingCommand releases the edit lock, saving the draft when Save is set
type StopEditingCommand struct {
	ClaimID string `json:"claimId" validate:"required"`
	Save    bool   `json:"save"`
}

// Validate implements bus.Command
func (c StopEditingCommand) Validate() error { return utils.ValidateStruct(c) }

// UpdateDraftCommand merges changes into the local edit buffer
type UpdateDraftCommand struct {
	ClaimID string                 `json:"claimId" validate:"required"`
	Changes map[string]interface{} `json:"changes" validate:"required,min=1"`
}

// Validate implements bus.Command
func (c UpdateDraftCommand) Validate() error { return utils.ValidateStruct(c) }

// ResolveConflictCommand records how a conflict was settled
type ResolveConflictCommand struct {
	ConflictID string `json:"conflictId" validate:"required"`
	Resolution string `json:"resolution" validate:"required,max=2000"`
}

// Validate implements bus.Command
func (c ResolveConflictCommand) Validate() error { return utils.ValidateStruct(c) }

// MarkNotificationReadCommand marks one notification read, or all of them
// when All is set
type MarkNotificationReadCommand struct {
	NotificationID string `json:"notificationId" validate:"required_without=All"`
	All            bool   `json:"all"`
}

// Validate implements bus.Command
func (c MarkNotificationReadCommand) Validate() error { return utils.ValidateStruct(c) }

// ClearNotificationsCommand drops every notification
type ClearNotificationsCommand struct{}

// Validate implements bus.Command
func (ClearNotificationsCommand) Validate() error { return nil }

// UpdateCursorCommand shares the local cursor with the project
type UpdateCursorCommand struct {
	Cursor collab.Cursor `json:"cursor"`
}

// Validate implements bus.Command
func (UpdateCursorCommand) Validate() error { return nil }

// CursorResult says whether a cursor update went out or was throttled
type CursorResult struct {
	Sent bool `json:"sent"`
}
