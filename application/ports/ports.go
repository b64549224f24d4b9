// Package ports declares the narrow interfaces through which the sync
// engine talks to its collaborators: the REST authority, the real-time
// channel, the session loop and optional sinks.
package ports

import (
	"context"

	"github.com/Sakeeb91/claim-mapper-sub003/domain/collab"
	"github.com/Sakeeb91/claim-mapper-sub003/domain/core/entities"
	"github.com/Sakeeb91/claim-mapper-sub003/domain/core/valueobjects"
)

// ConnectNodesRequest asks the authority to create a relationship
type ConnectNodesRequest struct {
	ProjectID  string                `json:"projectId"`
	SourceID   string                `json:"sourceId"`
	TargetID   string                `json:"targetId"`
	Type       valueobjects.LinkType `json:"relationshipType"`
	Confidence float64               `json:"confidence"`
}

// GraphAPI is the durable-request side of the REST backend. Every call
// either returns the authoritative result or an error; errors that the
// server explained carry its message (see pkg/errors.MutationRejected).
type GraphAPI interface {
	LoadGraph(ctx context.Context, projectID string) (*entities.GraphData, error)
	ConnectNodes(ctx context.Context, req ConnectNodesRequest) (*entities.GraphLink, error)
	UpdateClaim(ctx context.Context, claimID string, changes map[string]interface{}) (*entities.Claim, error)
	DeleteLink(ctx context.Context, linkID string) error
}

// Channel is the outbound half of the real-time connection
type Channel interface {
	Emit(event string, payload interface{}) error
	IsConnected() bool
}

// Executor runs fn on the session loop. Post reports false when the loop
// has stopped and fn will never run.
type Executor interface {
	Post(fn func()) bool
}

// ErrorReporter is the shared error surface the UI renders
type ErrorReporter interface {
	ReportError(message string)
}

// ChangePublisher forwards applied changes to an audit sink
type ChangePublisher interface {
	PublishChange(ctx context.Context, change collab.ChangeEvent) error
}
