// Package session wires the sync components into one collaboration
// session: an explicit context object owning the graph mirror, the
// trackers, the coordinators and the serial loop they all run on.
//
// Every exported Session method is safe for concurrent use; each one hops
// onto the loop before touching state. Several sessions can live in one
// process.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/Sakeeb91/claim-mapper-sub003/application/history"
	"github.com/Sakeeb91/claim-mapper-sub003/application/locks"
	"github.com/Sakeeb91/claim-mapper-sub003/application/mutations"
	"github.com/Sakeeb91/claim-mapper-sub003/application/notifications"
	"github.com/Sakeeb91/claim-mapper-sub003/application/ports"
	"github.com/Sakeeb91/claim-mapper-sub003/application/presence"
	"github.com/Sakeeb91/claim-mapper-sub003/application/store"
	"github.com/Sakeeb91/claim-mapper-sub003/domain/collab"
	"github.com/Sakeeb91/claim-mapper-sub003/domain/config"
	"github.com/Sakeeb91/claim-mapper-sub003/domain/core/entities"
	"github.com/Sakeeb91/claim-mapper-sub003/domain/core/valueobjects"
	"github.com/Sakeeb91/claim-mapper-sub003/domain/events"
	"github.com/Sakeeb91/claim-mapper-sub003/pkg/auth"
	pkgerrors "github.com/Sakeeb91/claim-mapper-sub003/pkg/errors"
	"github.com/Sakeeb91/claim-mapper-sub003/pkg/observability"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Connection is the real-time channel as the session sees it
type Connection interface {
	ports.Channel
	Connect(ctx context.Context, token string) error
	Disconnect()
	On(eventType string, h events.Handler)
}

// Options configure a Session
type Options struct {
	Config    *config.DomainConfig
	Self      collab.User
	API       ports.GraphAPI
	Conn      Connection
	Publisher ports.ChangePublisher
	Metrics   *observability.Collector
	Logger    *zap.Logger
}

// Status is what a UI needs to render the connection and sync state
type Status struct {
	SessionID           string      `json:"sessionId"`
	ProjectID           string      `json:"projectId,omitempty"`
	User                collab.User `json:"user"`
	Connected           bool        `json:"isConnected"`
	Reconnecting        bool        `json:"reconnecting"`
	ReconnectAttempts   int         `json:"reconnectAttempts"`
	LastError           string      `json:"lastError,omitempty"`
	Nodes               int         `json:"nodes"`
	Links               int         `json:"links"`
	Collaborators       int         `json:"collaborators"`
	InFlight            int         `json:"inFlight"`
	PendingConflicts    int         `json:"pendingConflicts"`
	UnreadNotifications int         `json:"unreadNotifications"`
	HistoryLength       int         `json:"historyLength"`
}

// Session is one user's view of one collaborative project
type Session struct {
	id      string
	cfg     *config.DomainConfig
	loop    *Loop
	conn    Connection
	api     ports.GraphAPI
	pub     ports.ChangePublisher
	metrics *observability.Collector
	logger  *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	graph     *store.GraphStore
	presence  *presence.Tracker
	history   *history.Log
	notify    *notifications.Dispatcher
	locks     *locks.Coordinator
	mutations *mutations.Coordinator
	cursor    *rate.Limiter

	// Loop-owned state
	self              collab.User
	projectID         string
	connected         bool
	reconnecting      bool
	reconnectAttempts int
	lastError         string
}

// New builds a session and starts its loop. Call Close to release it.
func New(opts Options) *Session {
	if opts.Config == nil {
		opts.Config = config.DefaultDomainConfig()
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	id := valueobjects.NewRecordID()
	logger := opts.Logger.With(zap.String("session_id", id))
	ctx, cancel := context.WithCancel(context.Background())

	s := &Session{
		id:       id,
		cfg:      opts.Config,
		loop:     NewLoop(logger),
		conn:     opts.Conn,
		api:      opts.API,
		pub:      opts.Publisher,
		metrics:  opts.Metrics,
		logger:   logger,
		ctx:      ctx,
		cancel:   cancel,
		graph:    store.New(),
		presence: presence.NewTracker(logger),
		history:  history.New(opts.Config.HistoryCapacity),
		notify:   notifications.NewDispatcher(opts.Config.NotificationCapacity),
		cursor:   rate.NewLimiter(rate.Every(opts.Config.CursorUpdateInterval), opts.Config.CursorUpdateBurst),
		self:     opts.Self,
	}
	s.locks = locks.NewCoordinator(s.graph, opts.Conn, s.history, s.notify, opts.Metrics, logger)
	s.mutations = mutations.NewCoordinator(mutations.Deps{
		Context:  ctx,
		Graph:    s.graph,
		API:      opts.API,
		Channel:  opts.Conn,
		Executor: s.loop,
		History:  s.history,
		Notify:   s.notify,
		Errors:   s,
		Metrics:  opts.Metrics,
		Config:   opts.Config,
		Logger:   logger,
	})
	s.setSelf(opts.Self)

	if s.pub != nil {
		s.history.Subscribe(s.publish)
	}
	if s.conn != nil {
		s.subscribe()
	}
	if s.cfg.IdleAfter > 0 {
		s.wg.Add(1)
		go s.pruneIdle()
	}
	return s
}

// ID returns the session id
func (s *Session) ID() string {
	return s.id
}

// Close stops background work, drops the channel and cancels in-flight
// durable requests
func (s *Session) Close() {
	if s.conn != nil {
		s.conn.Disconnect()
	}
	s.loop.Stop()
	s.cancel()
	s.wg.Wait()
}

// Connect opens the real-time channel. The local identity is read from
// the token unless one was configured.
func (s *Session) Connect(ctx context.Context, token string) error {
	if s.conn == nil {
		return pkgerrors.NewUnavailableError("realtime")
	}
	if id, err := auth.ParseIdentity(token); err == nil {
		if err := s.loop.Call(ctx, func() {
			if s.self.ID == "" {
				s.setSelf(collab.User{ID: id.UserID, Name: id.Name, Email: id.Email})
			}
		}); err != nil {
			return err
		}
	} else {
		s.logger.Debug("Token carries no readable identity", zap.Error(err))
	}
	return s.conn.Connect(ctx, token)
}

// Disconnect closes the real-time channel without reconnecting
func (s *Session) Disconnect() {
	if s.conn != nil {
		s.conn.Disconnect()
	}
}

// Join loads the project graph, replacing the mirror wholesale, and
// announces the user to the other participants
func (s *Session) Join(ctx context.Context, projectID string) error {
	if projectID == "" {
		return pkgerrors.NewValidationError("project id is required")
	}
	if s.api == nil {
		return pkgerrors.NewUnavailableError("graph api")
	}
	graph, err := s.api.LoadGraph(ctx, projectID)
	if err != nil {
		message := pkgerrors.UserMessage(err, "Failed to load project")
		_ = s.loop.Call(ctx, func() { s.lastError = message })
		return err
	}

	return s.loop.Call(ctx, func() {
		if s.projectID != "" && s.projectID != projectID {
			s.leaveProject()
		}
		if graph != nil {
			s.graph.Replace(*graph)
		} else {
			s.graph.Replace(entities.GraphData{})
		}
		s.projectID = projectID
		s.locks.SetProject(projectID)
		s.mutations.SetProject(projectID)
		s.emit(events.JoinProject, events.ProjectPayload{ProjectID: projectID})

		nodes, links := s.graph.Stats()
		s.logger.Info("Joined project",
			zap.String("project_id", projectID),
			zap.Int("nodes", nodes),
			zap.Int("links", links))
	})
}

// Leave announces departure and forgets the project's collaborators
func (s *Session) Leave(ctx context.Context) error {
	return s.loop.Call(ctx, s.leaveProject)
}

func (s *Session) leaveProject() {
	if s.projectID == "" {
		return
	}
	s.emit(events.LeaveProject, events.ProjectPayload{ProjectID: s.projectID})
	s.presence.Clear()
	s.locks.ClearRemote()
	s.metrics.SetCollaborators(0)
	s.logger.Info("Left project", zap.String("project_id", s.projectID))
	s.projectID = ""
}

// ConnectNodes optimistically links two nodes
func (s *Session) ConnectNodes(ctx context.Context, source, target string, t valueobjects.LinkType, confidence float64) (*mutations.Operation, error) {
	return call(ctx, s, func() (*mutations.Operation, error) {
		return s.mutations.ConnectNodes(source, target, t, confidence)
	})
}

// UpdateClaim optimistically patches a claim
func (s *Session) UpdateClaim(ctx context.Context, claimID string, changes map[string]interface{}) (*mutations.Operation, error) {
	return call(ctx, s, func() (*mutations.Operation, error) {
		return s.mutations.UpdateClaim(claimID, changes)
	})
}

// DeleteLink optimistically removes a link
func (s *Session) DeleteLink(ctx context.Context, linkID string) (*mutations.Operation, error) {
	return call(ctx, s, func() (*mutations.Operation, error) {
		return s.mutations.DeleteLink(linkID)
	})
}

// StartEditing takes the local edit lock on a claim
func (s *Session) StartEditing(ctx context.Context, claimID string) error {
	_, err := call(ctx, s, func() (struct{}, error) {
		return struct{}{}, s.locks.StartEditingClaim(claimID)
	})
	return err
}

// StopEditing releases the edit lock. With save, the buffered draft is
// persisted through an optimistic claim update whose operation is returned.
func (s *Session) StopEditing(ctx context.Context, claimID string, save bool) (*mutations.Operation, error) {
	return call(ctx, s, func() (*mutations.Operation, error) {
		draft, err := s.locks.StopEditingClaim(claimID, save)
		if err != nil || len(draft) == 0 {
			return nil, err
		}
		return s.mutations.UpdateClaim(claimID, draft)
	})
}

// UpdateDraft merges changes into the local edit buffer
func (s *Session) UpdateDraft(ctx context.Context, claimID string, changes map[string]interface{}) error {
	_, err := call(ctx, s, func() (struct{}, error) {
		return struct{}{}, s.locks.UpdateDraft(claimID, changes)
	})
	return err
}

// Draft returns the local edit buffer of a claim
func (s *Session) Draft(ctx context.Context, claimID string) (map[string]interface{}, error) {
	return call(ctx, s, func() (map[string]interface{}, error) {
		if !s.locks.IsEditing(claimID) {
			return nil, pkgerrors.NewNotFoundError("draft for claim " + claimID)
		}
		return s.locks.Draft(claimID), nil
	})
}

// ResolveConflict marks a pending conflict resolved
func (s *Session) ResolveConflict(ctx context.Context, conflictID, resolution string) (collab.ConflictResolution, error) {
	return call(ctx, s, func() (collab.ConflictResolution, error) {
		return s.locks.ResolveConflict(conflictID, resolution)
	})
}

// MarkNotificationRead marks one notification read
func (s *Session) MarkNotificationRead(ctx context.Context, id string) error {
	_, err := call(ctx, s, func() (struct{}, error) {
		if !s.notify.MarkRead(id) {
			return struct{}{}, pkgerrors.NewNotFoundError("notification " + id)
		}
		return struct{}{}, nil
	})
	return err
}

// MarkAllNotificationsRead marks every notification read
func (s *Session) MarkAllNotificationsRead(ctx context.Context) error {
	return s.loop.Call(ctx, s.notify.MarkAllRead)
}

// ClearNotifications drops every notification
func (s *Session) ClearNotifications(ctx context.Context) error {
	return s.loop.Call(ctx, s.notify.ClearAll)
}

// UpdateCursor shares the local cursor. Updates above the configured rate
// are dropped and reported as not sent.
func (s *Session) UpdateCursor(ctx context.Context, cursor collab.Cursor) (bool, error) {
	return call(ctx, s, func() (bool, error) {
		if s.projectID == "" || !s.connected {
			return false, nil
		}
		if !s.cursor.Allow() {
			return false, nil
		}
		err := s.conn.Emit(events.CursorUpdate, events.CursorPayload{
			ProjectID: s.projectID,
			Position:  collab.Position{X: cursor.X, Y: cursor.Y},
			ElementID: cursor.ElementID,
			Selection: cursor.Selection,
		})
		return err == nil, err
	})
}

// ReportError sets the shared error surface. Runs on the loop.
func (s *Session) ReportError(message string) {
	s.lastError = message
}

// LastError returns the current error message, if any
func (s *Session) LastError(ctx context.Context) (string, error) {
	return call(ctx, s, func() (string, error) { return s.lastError, nil })
}

// ClearError resets the shared error surface
func (s *Session) ClearError(ctx context.Context) error {
	return s.loop.Call(ctx, func() { s.lastError = "" })
}

// Status returns the connection flags and collection sizes
func (s *Session) Status(ctx context.Context) (Status, error) {
	return call(ctx, s, func() (Status, error) {
		nodes, links := s.graph.Stats()
		return Status{
			SessionID:           s.id,
			ProjectID:           s.projectID,
			User:                s.self,
			Connected:           s.connected,
			Reconnecting:        s.reconnecting,
			ReconnectAttempts:   s.reconnectAttempts,
			LastError:           s.lastError,
			Nodes:               nodes,
			Links:               links,
			Collaborators:       s.presence.Len(),
			InFlight:            s.mutations.InFlight(),
			PendingConflicts:    len(s.locks.PendingConflicts()),
			UnreadNotifications: s.notify.UnreadCount(),
			HistoryLength:       s.history.Len(),
		}, nil
	})
}

// Graph returns a copy of the graph mirror
func (s *Session) Graph(ctx context.Context) (entities.GraphData, error) {
	return call(ctx, s, func() (entities.GraphData, error) { return s.graph.Snapshot(), nil })
}

// Presence returns the roster of other collaborators
func (s *Session) Presence(ctx context.Context) ([]collab.UserPresence, error) {
	return call(ctx, s, func() ([]collab.UserPresence, error) { return s.presence.Snapshot(), nil })
}

// History returns up to n of the most recent changes, oldest first; n <= 0
// returns all retained changes
func (s *Session) History(ctx context.Context, n int) ([]collab.ChangeEvent, error) {
	return call(ctx, s, func() ([]collab.ChangeEvent, error) { return s.history.Recent(n), nil })
}

// Conflicts returns every recorded conflict
func (s *Session) Conflicts(ctx context.Context) ([]collab.ConflictResolution, error) {
	return call(ctx, s, func() ([]collab.ConflictResolution, error) { return s.locks.Conflicts(), nil })
}

// Notifications returns the notification list, oldest first
func (s *Session) Notifications(ctx context.Context) ([]collab.Notification, error) {
	return call(ctx, s, func() ([]collab.Notification, error) { return s.notify.List(), nil })
}

// RemoteEditors returns who else is editing a claim
func (s *Session) RemoteEditors(ctx context.Context, claimID string) ([]locks.RemoteEditor, error) {
	return call(ctx, s, func() ([]locks.RemoteEditor, error) { return s.locks.RemoteEditors(claimID), nil })
}

func (s *Session) setSelf(u collab.User) {
	s.self = u
	s.locks.SetSelf(u)
	s.mutations.SetSelf(u)
}

func (s *Session) emit(event string, payload interface{}) {
	if s.conn == nil || !s.connected {
		return
	}
	if err := s.conn.Emit(event, payload); err != nil {
		s.logger.Warn("Failed to emit event", zap.String("event", event), zap.Error(err))
	}
}

func (s *Session) publish(change collab.ChangeEvent) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ctx, cancel := context.WithTimeout(s.ctx, 5*time.Second)
		defer cancel()
		if err := s.pub.PublishChange(ctx, change); err != nil {
			s.logger.Warn("Failed to publish change",
				zap.String("change_id", change.ID),
				zap.String("entity_id", change.EntityID),
				zap.Error(err))
		}
	}()
}

func (s *Session) pruneIdle() {
	defer s.wg.Done()
	ticker := time.NewTicker(s.cfg.IdleAfter / 2)
	defer ticker.Stop()
	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.loop.Post(func() { s.presence.Prune(s.cfg.IdleAfter) })
		}
	}
}

// call runs fn on the loop and returns its results
func call[T any](ctx context.Context, s *Session, fn func() (T, error)) (T, error) {
	var (
		out T
		err error
	)
	if cerr := s.loop.Call(ctx, func() { out, err = fn() }); cerr != nil {
		var zero T
		return zero, cerr
	}
	return out, err
}
