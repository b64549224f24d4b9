// Package locks tracks advisory edit locks on claims and records conflicts
// when two users edit the same claim at once.
//
// Per claim the local state machine is idle -> editing(self) -> idle. Remote
// editors are tracked separately. A conflict never aborts the local edit;
// it stays pending until ResolveConflict is called.
package locks

import (
	"sort"
	"time"

	"github.com/Sakeeb91/claim-mapper-sub003/application/history"
	"github.com/Sakeeb91/claim-mapper-sub003/application/notifications"
	"github.com/Sakeeb91/claim-mapper-sub003/application/ports"
	"github.com/Sakeeb91/claim-mapper-sub003/application/store"
	"github.com/Sakeeb91/claim-mapper-sub003/domain/collab"
	"github.com/Sakeeb91/claim-mapper-sub003/domain/core/valueobjects"
	"github.com/Sakeeb91/claim-mapper-sub003/domain/events"
	pkgerrors "github.com/Sakeeb91/claim-mapper-sub003/pkg/errors"
	"github.com/Sakeeb91/claim-mapper-sub003/pkg/observability"
	"go.uber.org/zap"
)

// RemoteEditor is another user currently editing a claim
type RemoteEditor struct {
	User  collab.User `json:"user"`
	Since time.Time   `json:"since"`
}

// Coordinator owns the lock table, draft buffers and conflict records.
// Not safe for concurrent use.
type Coordinator struct {
	self      collab.User
	projectID string

	graph   *store.GraphStore
	channel ports.Channel
	history *history.Log
	notify  *notifications.Dispatcher
	metrics *observability.Collector
	logger  *zap.Logger

	editing   map[string]time.Time
	drafts    map[string]map[string]interface{}
	remote    map[string]map[string]RemoteEditor
	conflicts []collab.ConflictResolution

	now   func() time.Time
	newID func() string
}

// NewCoordinator creates a coordinator with no locks held
func NewCoordinator(
	graph *store.GraphStore,
	channel ports.Channel,
	log *history.Log,
	notify *notifications.Dispatcher,
	metrics *observability.Collector,
	logger *zap.Logger,
) *Coordinator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Coordinator{
		graph:   graph,
		channel: channel,
		history: log,
		notify:  notify,
		metrics: metrics,
		logger:  logger.With(zap.String("component", "locks")),
		editing: make(map[string]time.Time),
		drafts:  make(map[string]map[string]interface{}),
		remote:  make(map[string]map[string]RemoteEditor),
		now:     time.Now,
		newID:   valueobjects.NewRecordID,
	}
}

// SetSelf records the local user's identity
func (c *Coordinator) SetSelf(u collab.User) {
	c.self = u
}

// SetProject sets the project sent with edit start/end events
func (c *Coordinator) SetProject(projectID string) {
	c.projectID = projectID
}

// StartEditingClaim moves the claim to editing(self) and tells the other
// viewers. Starting an edit that is already held is a no-op.
func (c *Coordinator) StartEditingClaim(claimID string) error {
	if claimID == "" {
		return pkgerrors.NewValidationError("claim id is required")
	}
	if _, ok := c.graph.Claim(claimID); !ok {
		return pkgerrors.NewNotFoundError("claim " + claimID)
	}
	if _, held := c.editing[claimID]; held {
		return nil
	}

	c.editing[claimID] = c.now()
	if _, ok := c.drafts[claimID]; !ok {
		c.drafts[claimID] = make(map[string]interface{})
	}
	c.emit(events.ClaimEditStart, events.ClaimEditRequest{ClaimID: claimID, ProjectID: c.projectID})

	for _, editor := range c.RemoteEditors(claimID) {
		c.raiseConflict(collab.ConflictConcurrentEdit, claimID, editor.User)
	}
	return nil
}

// StopEditingClaim moves the claim back to idle. When save is true the
// buffered draft is returned so the caller can persist it; otherwise the
// draft is discarded.
func (c *Coordinator) StopEditingClaim(claimID string, save bool) (map[string]interface{}, error) {
	if _, held := c.editing[claimID]; !held {
		return nil, pkgerrors.NewValidationError("claim " + claimID + " is not being edited")
	}

	draft := c.drafts[claimID]
	delete(c.editing, claimID)
	delete(c.drafts, claimID)
	c.emit(events.ClaimEditEnd, events.ClaimEditRequest{ClaimID: claimID, ProjectID: c.projectID, Save: &save})

	if !save || len(draft) == 0 {
		return nil, nil
	}
	return copyChanges(draft), nil
}

// IsEditing reports whether the local user holds the lock on claimID
func (c *Coordinator) IsEditing(claimID string) bool {
	_, held := c.editing[claimID]
	return held
}

// EditingClaims returns the claims the local user is editing, sorted
func (c *Coordinator) EditingClaims() []string {
	out := make([]string, 0, len(c.editing))
	for id := range c.editing {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// UpdateDraft merges changes into the local edit buffer of a held claim
func (c *Coordinator) UpdateDraft(claimID string, changes map[string]interface{}) error {
	if _, held := c.editing[claimID]; !held {
		return pkgerrors.NewValidationError("claim " + claimID + " is not being edited")
	}
	if len(changes) == 0 {
		return pkgerrors.NewValidationError("changes are required")
	}
	draft := c.drafts[claimID]
	for k, v := range changes {
		draft[k] = v
	}
	return nil
}

// Draft returns a copy of the local edit buffer for claimID
func (c *Coordinator) Draft(claimID string) map[string]interface{} {
	draft, ok := c.drafts[claimID]
	if !ok {
		return nil
	}
	return copyChanges(draft)
}

// HandleEditStarted records a remote user starting to edit a claim
func (c *Coordinator) HandleEditStarted(p events.ClaimEditPayload) *collab.ConflictResolution {
	user, ok := c.remoteUser(p)
	if !ok {
		return nil
	}
	c.addRemote(p.ClaimID, user, p.Timestamp.Or(c.now()))
	if c.notify != nil {
		c.notify.EditStarted(user, p.ClaimID, c.claimLabel(p.ClaimID))
		c.metrics.RecordNotification(collab.NotifyEditStarted)
	}

	if c.IsEditing(p.ClaimID) {
		return c.raiseConflict(collab.ConflictConcurrentEdit, p.ClaimID, user)
	}
	return nil
}

// HandleEditUpdate applies a remote edit as a field-level merge and logs it.
// If the local user is editing the same claim a pending conflict is
// recorded; the local draft is left untouched.
func (c *Coordinator) HandleEditUpdate(p events.ClaimEditPayload) *collab.ConflictResolution {
	user, ok := c.remoteUser(p)
	if !ok {
		return nil
	}
	c.addRemote(p.ClaimID, user, c.now())

	var conflict *collab.ConflictResolution
	if c.IsEditing(p.ClaimID) {
		conflict = c.raiseConflict(collab.ConflictConcurrentEdit, p.ClaimID, user)
	}

	if len(p.Changes) == 0 {
		return conflict
	}
	if _, err := c.graph.MergeClaim(p.ClaimID, p.Changes); err != nil {
		c.logger.Warn("Dropping remote claim update",
			zap.String("claim_id", p.ClaimID),
			zap.String("user_id", user.ID),
			zap.Error(err))
		return conflict
	}
	c.history.Append(collab.ChangeEvent{
		ID:         c.newID(),
		Type:       collab.ChangeUpdate,
		EntityType: collab.EntityClaim,
		EntityID:   p.ClaimID,
		UserID:     user.ID,
		User:       user,
		Changes:    copyChanges(p.Changes),
		Timestamp:  p.Timestamp.Or(c.now()),
	})
	return conflict
}

// HandleEditEnded removes a remote editor from a claim
func (c *Coordinator) HandleEditEnded(p events.ClaimEditPayload) {
	editors, ok := c.remote[p.ClaimID]
	if !ok {
		return
	}
	delete(editors, p.UserID)
	if len(editors) == 0 {
		delete(c.remote, p.ClaimID)
	}
}

// HandleEditConflict records the server refusing the local edit because
// another user already holds the lock
func (c *Coordinator) HandleEditConflict(p events.ClaimEditPayload) *collab.ConflictResolution {
	other := p.User
	if p.CurrentEditor != nil {
		other = p.CurrentEditor.User
	}
	if other.ID == "" {
		other.ID = p.UserID
	}
	if other.ID == "" || other.ID == c.self.ID {
		return nil
	}
	c.addRemote(p.ClaimID, other, p.Timestamp.Or(c.now()))
	return c.raiseConflict(collab.ConflictEditLock, p.ClaimID, other)
}

// RemoveUser forgets every remote lock held by userID
func (c *Coordinator) RemoveUser(userID string) {
	for claimID, editors := range c.remote {
		delete(editors, userID)
		if len(editors) == 0 {
			delete(c.remote, claimID)
		}
	}
}

// ClearRemote forgets all remote locks. Local locks and drafts survive.
func (c *Coordinator) ClearRemote() {
	c.remote = make(map[string]map[string]RemoteEditor)
}

// RemoteEditors returns who else is editing claimID, ordered by user id
func (c *Coordinator) RemoteEditors(claimID string) []RemoteEditor {
	editors := c.remote[claimID]
	out := make([]RemoteEditor, 0, len(editors))
	for _, e := range editors {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].User.ID < out[j].User.ID })
	return out
}

// Conflicts returns copies of all conflicts in creation order
func (c *Coordinator) Conflicts() []collab.ConflictResolution {
	out := make([]collab.ConflictResolution, len(c.conflicts))
	for i, cr := range c.conflicts {
		out[i] = cr.Clone()
	}
	return out
}

// PendingConflicts returns the conflicts still awaiting a decision
func (c *Coordinator) PendingConflicts() []collab.ConflictResolution {
	var out []collab.ConflictResolution
	for _, cr := range c.conflicts {
		if cr.IsPending() {
			out = append(out, cr.Clone())
		}
	}
	return out
}

// ResolveConflict is the only way a conflict leaves the pending state
func (c *Coordinator) ResolveConflict(id, resolution string) (collab.ConflictResolution, error) {
	for i := range c.conflicts {
		if c.conflicts[i].ID != id {
			continue
		}
		if !c.conflicts[i].IsPending() {
			return collab.ConflictResolution{}, pkgerrors.NewConflictError("conflict " + id + " is already resolved")
		}
		now := c.now()
		c.conflicts[i].Status = collab.ConflictResolved
		c.conflicts[i].ResolvedAt = &now
		if resolution != "" {
			c.conflicts[i].ProposedResolution = resolution
		}
		c.logger.Info("Conflict resolved",
			zap.String("conflict_id", id),
			zap.String("entity_id", c.conflicts[i].EntityID))
		return c.conflicts[i].Clone(), nil
	}
	return collab.ConflictResolution{}, pkgerrors.NewNotFoundError("conflict " + id)
}

func (c *Coordinator) raiseConflict(conflictType, entityID string, other collab.User) *collab.ConflictResolution {
	users := []string{c.self.ID, other.ID}
	for _, existing := range c.conflicts {
		if existing.IsPending() && existing.Involves(entityID, users) {
			return nil
		}
	}

	cr := collab.ConflictResolution{
		ID:                 c.newID(),
		ConflictType:       conflictType,
		EntityID:           entityID,
		ConflictingUsers:   users,
		ProposedResolution: proposal(conflictType, other),
		Status:             collab.ConflictPending,
		CreatedAt:          c.now(),
	}
	c.conflicts = append(c.conflicts, cr)
	c.metrics.RecordConflict(conflictType)
	c.logger.Info("Conflict detected",
		zap.String("conflict_id", cr.ID),
		zap.String("type", conflictType),
		zap.String("entity_id", entityID),
		zap.String("other_user", other.ID))

	if c.notify != nil {
		c.notify.Conflict(cr, other)
		c.metrics.RecordNotification(collab.NotifyConflict)
	}
	out := cr.Clone()
	return &out
}

func (c *Coordinator) remoteUser(p events.ClaimEditPayload) (collab.User, bool) {
	user := p.User
	if user.ID == "" {
		user.ID = p.UserID
	}
	if user.ID == "" || p.ClaimID == "" || user.ID == c.self.ID {
		return collab.User{}, false
	}
	return user, true
}

func (c *Coordinator) addRemote(claimID string, user collab.User, since time.Time) {
	editors, ok := c.remote[claimID]
	if !ok {
		editors = make(map[string]RemoteEditor)
		c.remote[claimID] = editors
	}
	if existing, ok := editors[user.ID]; ok {
		since = existing.Since
	}
	editors[user.ID] = RemoteEditor{User: user, Since: since}
}

func (c *Coordinator) claimLabel(claimID string) string {
	if claim, ok := c.graph.Claim(claimID); ok {
		return claim.Label()
	}
	return ""
}

func (c *Coordinator) emit(event string, payload interface{}) {
	if c.channel == nil || !c.channel.IsConnected() {
		return
	}
	if err := c.channel.Emit(event, payload); err != nil {
		c.logger.Warn("Failed to emit edit event", zap.String("event", event), zap.Error(err))
	}
}

func proposal(conflictType string, other collab.User) string {
	if conflictType == collab.ConflictEditLock {
		return "Wait for " + other.DisplayName() + " to finish editing, then reapply your changes"
	}
	return "Review both edits and keep the intended value for each field"
}

func copyChanges(in map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
