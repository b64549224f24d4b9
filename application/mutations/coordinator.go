// Package mutations applies graph changes optimistically: the store is
// patched at once, the durable request runs in the background, and its
// result is posted back to the session loop to reconcile or roll back.
package mutations

import (
	"context"
	"fmt"
	"time"

	"github.com/Sakeeb91/claim-mapper-sub003/application/history"
	"github.com/Sakeeb91/claim-mapper-sub003/application/notifications"
	"github.com/Sakeeb91/claim-mapper-sub003/application/ports"
	"github.com/Sakeeb91/claim-mapper-sub003/application/store"
	"github.com/Sakeeb91/claim-mapper-sub003/domain/collab"
	"github.com/Sakeeb91/claim-mapper-sub003/domain/config"
	"github.com/Sakeeb91/claim-mapper-sub003/domain/core/entities"
	"github.com/Sakeeb91/claim-mapper-sub003/domain/core/valueobjects"
	"github.com/Sakeeb91/claim-mapper-sub003/domain/events"
	pkgerrors "github.com/Sakeeb91/claim-mapper-sub003/pkg/errors"
	"github.com/Sakeeb91/claim-mapper-sub003/pkg/observability"
	"go.uber.org/zap"
)

// Deps are the collaborators of a Coordinator
type Deps struct {
	// Context bounds durable requests. Disconnecting the channel does not
	// cancel it; closing the session does.
	Context  context.Context
	Graph    *store.GraphStore
	API      ports.GraphAPI
	Channel  ports.Channel
	Executor ports.Executor
	History  *history.Log
	Notify   *notifications.Dispatcher
	Errors   ports.ErrorReporter
	Metrics  *observability.Collector
	Config   *config.DomainConfig
	Logger   *zap.Logger
}

// Coordinator runs optimistic mutations. Its methods must be called from
// the session loop; only the durable requests run elsewhere.
type Coordinator struct {
	base     context.Context
	graph    *store.GraphStore
	api      ports.GraphAPI
	channel  ports.Channel
	exec     ports.Executor
	history  *history.Log
	notify   *notifications.Dispatcher
	reporter ports.ErrorReporter
	metrics  *observability.Collector
	cfg      *config.DomainConfig
	logger   *zap.Logger

	self      collab.User
	projectID string
	ids       *valueobjects.IDGenerator
	pending   map[string]*Operation

	now   func() time.Time
	newID func() string
}

// NewCoordinator creates a coordinator with nothing in flight
func NewCoordinator(d Deps) *Coordinator {
	if d.Context == nil {
		d.Context = context.Background()
	}
	if d.Config == nil {
		d.Config = config.DefaultDomainConfig()
	}
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	return &Coordinator{
		base:     d.Context,
		graph:    d.Graph,
		api:      d.API,
		channel:  d.Channel,
		exec:     d.Executor,
		history:  d.History,
		notify:   d.Notify,
		reporter: d.Errors,
		metrics:  d.Metrics,
		cfg:      d.Config,
		logger:   d.Logger.With(zap.String("component", "mutations")),
		ids:      valueobjects.NewIDGenerator(),
		pending:  make(map[string]*Operation),
		now:      time.Now,
		newID:    valueobjects.NewRecordID,
	}
}

// SetSelf records the local user's identity for history entries
func (c *Coordinator) SetSelf(u collab.User) {
	c.self = u
}

// SetProject sets the project mutations are issued against
func (c *Coordinator) SetProject(projectID string) {
	c.projectID = projectID
}

// InFlight returns the number of mutations awaiting the remote authority
func (c *Coordinator) InFlight() int {
	return len(c.pending)
}

// Pending reports whether a mutation with the given guard key is in flight
func (c *Coordinator) Pending(key string) bool {
	_, ok := c.pending[key]
	return ok
}

// LinkKey is the in-flight guard key for creating a relationship
func LinkKey(source, target string, t valueobjects.LinkType) string {
	return fmt.Sprintf("link:%s|%s|%s", source, target, t)
}

// ClaimKey is the in-flight guard key for updating a claim
func ClaimKey(claimID string) string {
	return "claim:" + claimID
}

// UnlinkKey is the in-flight guard key for deleting a link
func UnlinkKey(linkID string) string {
	return "unlink:" + linkID
}

// ConnectNodes optimistically links source to target. The provisional link
// is visible immediately; on success it is swapped in place for the
// authoritative link, on failure only the provisional link is removed so
// other mutations still in flight keep their effects.
func (c *Coordinator) ConnectNodes(source, target string, t valueobjects.LinkType, confidence float64) (*Operation, error) {
	if err := c.validateConnect(source, target, t, confidence); err != nil {
		c.metrics.RecordMutation(string(KindConnectNodes), "invalid", 0)
		return nil, err
	}
	key := LinkKey(source, target, t)
	if c.Pending(key) {
		return nil, pkgerrors.NewConflictError("an identical relationship is already being created")
	}

	strength := confidence
	provisional := entities.GraphLink{
		ID:          c.ids.Provisional("link"),
		Source:      valueobjects.EndpointID(source),
		Target:      valueobjects.EndpointID(target),
		Type:        t,
		Strength:    strength,
		Confidence:  &strength,
		Provisional: true,
	}
	if err := c.graph.AddLink(provisional); err != nil {
		return nil, err
	}

	op := newOperation(KindConnectNodes, key, provisional.ID)
	c.pending[key] = op
	started := c.now()
	req := ports.ConnectNodesRequest{
		ProjectID:  c.projectID,
		SourceID:   source,
		TargetID:   target,
		Type:       t,
		Confidence: confidence,
	}
	c.logger.Debug("Optimistic link applied",
		zap.String("provisional_id", provisional.ID),
		zap.String("source", source),
		zap.String("target", target),
		zap.String("type", string(t)))

	c.dispatch(op, func(ctx context.Context) func() {
		link, err := c.api.ConnectNodes(ctx, req)
		return func() { c.finishConnect(op, req, link, err, started) }
	})
	return op, nil
}

func (c *Coordinator) finishConnect(op *Operation, req ports.ConnectNodesRequest, link *entities.GraphLink, err error, started time.Time) {
	delete(c.pending, op.key)
	if err == nil && link == nil {
		err = pkgerrors.NewInternalError("empty response")
	}
	if err != nil {
		c.rollback(op, func() { c.graph.RemoveLink(op.provisionalID) }, err, "create relationship", started)
		return
	}

	confirmed := link.Clone()
	if confirmed.Source.IsZero() {
		confirmed.Source = valueobjects.EndpointID(req.SourceID)
	}
	if confirmed.Target.IsZero() {
		confirmed.Target = valueobjects.EndpointID(req.TargetID)
	}
	if confirmed.Type == "" {
		confirmed.Type = req.Type
	}
	if confirmed.Strength == 0 {
		confirmed.Strength = req.Confidence
	}
	confirmed.Provisional = false

	if rerr := c.graph.ReplaceLink(op.provisionalID, confirmed); rerr != nil && req.ProjectID == c.projectID {
		// The placeholder went away, e.g. a full reload replaced the graph.
		if _, exists := c.graph.Link(confirmed.ID); !exists {
			_ = c.graph.AddLink(confirmed)
		}
	}

	c.history.Append(collab.ChangeEvent{
		ID:         c.newID(),
		Type:       collab.ChangeCreate,
		EntityType: collab.EntityLink,
		EntityID:   confirmed.ID,
		UserID:     c.self.ID,
		User:       c.self,
		Changes: map[string]interface{}{
			"source":   confirmed.SourceID(),
			"target":   confirmed.TargetID(),
			"type":     string(confirmed.Type),
			"strength": confirmed.Strength,
		},
		Timestamp: c.now(),
	})

	if c.channel != nil && c.channel.IsConnected() {
		payload := events.RelationshipPayload{
			ProjectID:    c.projectID,
			SourceID:     confirmed.SourceID(),
			TargetID:     confirmed.TargetID(),
			Relationship: string(confirmed.Type),
			Link:         confirmed,
		}
		if err := c.channel.Emit(events.RelationshipCreated, payload); err != nil {
			c.logger.Warn("Failed to broadcast relationship", zap.String("link_id", confirmed.ID), zap.Error(err))
		}
	}

	c.metrics.RecordMutation(string(op.kind), "confirmed", c.now().Sub(started))
	c.logger.Info("Relationship confirmed",
		zap.String("provisional_id", op.provisionalID),
		zap.String("link_id", confirmed.ID))
	out := confirmed.Clone()
	op.complete(Result{Link: &out})
}

// UpdateClaim optimistically merges changes into a claim and reconciles
// with the authoritative claim returned by the API
func (c *Coordinator) UpdateClaim(claimID string, changes map[string]interface{}) (*Operation, error) {
	if claimID == "" {
		return nil, c.invalid(KindUpdateClaim, "claim id is required")
	}
	if len(changes) == 0 {
		return nil, c.invalid(KindUpdateClaim, "changes are required")
	}
	if _, ok := c.graph.Claim(claimID); !ok {
		c.metrics.RecordMutation(string(KindUpdateClaim), "invalid", 0)
		return nil, pkgerrors.NewNotFoundError("claim " + claimID)
	}
	key := ClaimKey(claimID)
	if c.Pending(key) {
		return nil, pkgerrors.NewConflictError("claim " + claimID + " is already being saved")
	}

	before, _ := c.graph.Node(claimID)
	if _, err := c.graph.MergeClaim(claimID, changes); err != nil {
		c.metrics.RecordMutation(string(KindUpdateClaim), "invalid", 0)
		return nil, err
	}

	op := newOperation(KindUpdateClaim, key, claimID)
	c.pending[key] = op
	started := c.now()
	sent := copyChanges(changes)

	c.dispatch(op, func(ctx context.Context) func() {
		claim, err := c.api.UpdateClaim(ctx, claimID, sent)
		return func() { c.finishUpdate(op, before, sent, claim, err, started) }
	})
	return op, nil
}

func (c *Coordinator) finishUpdate(op *Operation, before entities.GraphNode, changes map[string]interface{}, claim *entities.Claim, err error, started time.Time) {
	delete(c.pending, op.key)
	if err != nil {
		undo := func() {
			if c.graph.HasNode(before.ID) {
				c.graph.UpsertNode(before)
			}
		}
		c.rollback(op, undo, err, "update claim", started)
		return
	}

	var confirmed entities.Claim
	if claim != nil {
		confirmed = claim.Clone()
		if confirmed.ID == "" {
			confirmed.ID = op.provisionalID
		}
		if serr := c.graph.SetClaim(confirmed); serr != nil {
			c.logger.Warn("Confirmed claim is no longer in the graph", zap.String("claim_id", confirmed.ID))
		}
	} else if current, ok := c.graph.Claim(op.provisionalID); ok {
		confirmed = current
	}

	c.history.Append(collab.ChangeEvent{
		ID:         c.newID(),
		Type:       collab.ChangeUpdate,
		EntityType: collab.EntityClaim,
		EntityID:   op.provisionalID,
		UserID:     c.self.ID,
		User:       c.self,
		Changes:    changes,
		Timestamp:  c.now(),
	})
	c.metrics.RecordMutation(string(op.kind), "confirmed", c.now().Sub(started))
	c.logger.Info("Claim update confirmed", zap.String("claim_id", op.provisionalID))
	op.complete(Result{Claim: &confirmed})
}

// DeleteLink optimistically removes a link
func (c *Coordinator) DeleteLink(linkID string) (*Operation, error) {
	if linkID == "" {
		return nil, c.invalid(KindDeleteLink, "link id is required")
	}
	link, ok := c.graph.Link(linkID)
	if !ok {
		c.metrics.RecordMutation(string(KindDeleteLink), "invalid", 0)
		return nil, pkgerrors.NewNotFoundError("link " + linkID)
	}
	if link.Provisional {
		return nil, c.invalid(KindDeleteLink, "link "+linkID+" is still being created")
	}
	key := UnlinkKey(linkID)
	if c.Pending(key) {
		return nil, pkgerrors.NewConflictError("link " + linkID + " is already being deleted")
	}

	position := c.graph.LinkPosition(linkID)
	c.graph.RemoveLink(linkID)

	op := newOperation(KindDeleteLink, key, linkID)
	c.pending[key] = op
	started := c.now()

	c.dispatch(op, func(ctx context.Context) func() {
		err := c.api.DeleteLink(ctx, linkID)
		return func() { c.finishDelete(op, position, link, err, started) }
	})
	return op, nil
}

func (c *Coordinator) finishDelete(op *Operation, position int, link entities.GraphLink, err error, started time.Time) {
	delete(c.pending, op.key)
	if err != nil {
		undo := func() {
			// Skip if a broadcast already put it back or an endpoint is gone.
			if c.graph.HasNode(link.SourceID()) && c.graph.HasNode(link.TargetID()) {
				_ = c.graph.InsertLink(position, link)
			}
		}
		c.rollback(op, undo, err, "delete relationship", started)
		return
	}

	c.history.Append(collab.ChangeEvent{
		ID:         c.newID(),
		Type:       collab.ChangeDelete,
		EntityType: collab.EntityLink,
		EntityID:   link.ID,
		UserID:     c.self.ID,
		User:       c.self,
		Changes: map[string]interface{}{
			"source": link.SourceID(),
			"target": link.TargetID(),
			"type":   string(link.Type),
		},
		Timestamp: c.now(),
	})
	c.metrics.RecordMutation(string(op.kind), "confirmed", c.now().Sub(started))
	c.logger.Info("Link deletion confirmed", zap.String("link_id", link.ID))
	op.complete(Result{Link: &link})
}

// dispatch runs the durable request off the loop and posts its
// continuation back. If the loop is gone the operation fails without
// touching the store.
func (c *Coordinator) dispatch(op *Operation, request func(ctx context.Context) func()) {
	go func() {
		ctx, cancel := context.WithTimeout(c.base, c.cfg.MutationTimeout)
		finish := request(ctx)
		cancel()

		if c.exec == nil || !c.exec.Post(finish) {
			op.complete(Result{Err: pkgerrors.NewUnavailableError("session")})
		}
	}()
}

// rollback reverts only what op itself changed, so overlapping mutations
// and remote edits applied since are left in place
func (c *Coordinator) rollback(op *Operation, undo func(), err error, action string, started time.Time) {
	undo()

	message := pkgerrors.UserMessage(err, "Failed to "+action)
	if c.reporter != nil {
		c.reporter.ReportError(message)
	}
	if c.notify != nil {
		c.notify.MutationFailed(message)
		c.metrics.RecordNotification(collab.NotifyMutationFailed)
	}
	c.metrics.RecordRollback(string(op.kind))
	c.metrics.RecordMutation(string(op.kind), "rolled_back", c.now().Sub(started))
	c.logger.Warn("Mutation rolled back",
		zap.String("kind", string(op.kind)),
		zap.String("id", op.provisionalID),
		zap.String("message", message),
		zap.Error(err))
	op.complete(Result{Err: err})
}

func (c *Coordinator) validateConnect(source, target string, t valueobjects.LinkType, confidence float64) error {
	switch {
	case source == "" || target == "":
		return pkgerrors.NewValidationError("source and target are required")
	case !t.Valid():
		return pkgerrors.NewValidationError(fmt.Sprintf("unknown relationship type %q", t))
	case source == target && !c.cfg.AllowSelfConnections:
		return pkgerrors.NewValidationError("a node cannot be linked to itself")
	case confidence < c.cfg.MinLinkStrength || confidence > c.cfg.MaxLinkStrength:
		return pkgerrors.NewValidationError(fmt.Sprintf("confidence must be between %.1f and %.1f",
			c.cfg.MinLinkStrength, c.cfg.MaxLinkStrength))
	}
	if !c.graph.HasNode(source) {
		return pkgerrors.NewNotFoundError("node " + source)
	}
	if !c.graph.HasNode(target) {
		return pkgerrors.NewNotFoundError("node " + target)
	}
	if existing, ok := c.graph.FindLink(source, target, t); ok && !existing.Provisional {
		return pkgerrors.NewConflictError("relationship already exists as " + existing.ID)
	}
	return nil
}

func (c *Coordinator) invalid(kind Kind, message string) error {
	c.metrics.RecordMutation(string(kind), "invalid", 0)
	return pkgerrors.NewValidationError(message)
}

func copyChanges(in map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
