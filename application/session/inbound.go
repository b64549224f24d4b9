package session

import (
	"github.com/Sakeeb91/claim-mapper-sub003/domain/collab"
	"github.com/Sakeeb91/claim-mapper-sub003/domain/core/valueobjects"
	"github.com/Sakeeb91/claim-mapper-sub003/domain/events"
	"go.uber.org/zap"
)

// subscribe routes every channel event onto the loop. Events keep their
// arrival order because the bus dispatches from one goroutine and Post is
// FIFO.
func (s *Session) subscribe() {
	routes := map[string]func(events.Envelope){
		events.Connect:             s.onConnect,
		events.Disconnect:          s.onDisconnect,
		events.ReconnectAttempt:    s.onReconnectAttempt,
		events.ReconnectFailed:     s.onReconnectFailed,
		events.UserJoinedProject:   s.onUserJoined,
		events.UserLeftProject:     s.onUserLeft,
		events.CursorUpdate:        s.onCursorUpdate,
		events.ClaimEditStarted:    s.onEditStarted,
		events.ClaimEditUpdate:     s.onEditUpdate,
		events.ClaimEditConflict:   s.onEditConflict,
		events.ClaimEditEnded:      s.onEditEnded,
		events.CommentAdded:        s.onCommentAdded,
		events.RelationshipCreated: s.onRelationshipCreated,
	}
	for eventType, handle := range routes {
		handle := handle
		s.conn.On(eventType, func(env events.Envelope) {
			s.loop.Post(func() { handle(env) })
		})
	}
}

func (s *Session) decode(env events.Envelope, v interface{}) bool {
	if err := env.Decode(v); err != nil {
		s.logger.Warn("Dropping undecodable event", zap.String("type", env.Type), zap.Error(err))
		return false
	}
	return true
}

func (s *Session) onConnect(events.Envelope) {
	s.connected = true
	s.reconnecting = false
	s.reconnectAttempts = 0
	if s.projectID != "" {
		s.emit(events.JoinProject, events.ProjectPayload{ProjectID: s.projectID})
	}
}

// onDisconnect clears what only the live channel can keep current. Local
// edit locks, drafts and in-flight mutations survive.
func (s *Session) onDisconnect(env events.Envelope) {
	var p events.DisconnectPayload
	s.decode(env, &p)

	wasConnected := s.connected
	s.connected = false
	s.presence.Clear()
	s.locks.ClearRemote()
	s.metrics.SetCollaborators(0)

	if wasConnected && p.Reason != events.ReasonClientDisconnect && p.Reason != events.ReasonReplaced {
		s.notify.ConnectionLost(p.Reason)
		s.metrics.RecordNotification(collab.NotifyConnectionLost)
	}
	s.logger.Info("Channel disconnected", zap.String("reason", p.Reason))
}

func (s *Session) onReconnectAttempt(env events.Envelope) {
	var p events.ReconnectPayload
	s.decode(env, &p)
	s.reconnecting = true
	s.reconnectAttempts = p.Attempt
}

func (s *Session) onReconnectFailed(env events.Envelope) {
	var p events.ReconnectPayload
	s.decode(env, &p)
	s.reconnecting = false
	s.lastError = "Unable to reconnect to the collaboration server"
	s.notify.ReconnectFailed(p.Attempt)
	s.metrics.RecordNotification(collab.NotifyReconnectFailed)
}

func (s *Session) onUserJoined(env events.Envelope) {
	var p events.MembershipPayload
	if !s.decode(env, &p) {
		return
	}
	if p.UserID == "" {
		p.UserID = p.User.ID
	}
	if p.UserID == "" || p.UserID == s.self.ID {
		return
	}
	entry := s.presence.Join(p)
	s.notify.UserJoined(entry.User)
	s.metrics.RecordNotification(collab.NotifyUserJoined)
	s.metrics.SetCollaborators(s.presence.Len())
}

func (s *Session) onUserLeft(env events.Envelope) {
	var p events.MembershipPayload
	if !s.decode(env, &p) {
		return
	}
	if p.UserID == "" {
		p.UserID = p.User.ID
	}
	if p.UserID == "" || p.UserID == s.self.ID {
		return
	}
	user := p.User
	if entry, ok := s.presence.Leave(p.UserID); ok && user.Name == "" {
		user = entry.User
	}
	if user.ID == "" {
		user.ID = p.UserID
	}
	s.locks.RemoveUser(p.UserID)
	s.notify.UserLeft(user)
	s.metrics.RecordNotification(collab.NotifyUserLeft)
	s.metrics.SetCollaborators(s.presence.Len())
}

func (s *Session) onCursorUpdate(env events.Envelope) {
	var p events.CursorPayload
	if !s.decode(env, &p) || p.UserID == s.self.ID {
		return
	}
	s.presence.CursorUpdate(p)
}

func (s *Session) onEditStarted(env events.Envelope) {
	var p events.ClaimEditPayload
	if !s.decode(env, &p) {
		return
	}
	s.locks.HandleEditStarted(p)
	s.presence.SetActivity(p.UserID, collab.ActivityEditing)
}

func (s *Session) onEditUpdate(env events.Envelope) {
	var p events.ClaimEditPayload
	if !s.decode(env, &p) {
		return
	}
	s.locks.HandleEditUpdate(p)
}

func (s *Session) onEditConflict(env events.Envelope) {
	var p events.ClaimEditPayload
	if !s.decode(env, &p) {
		return
	}
	s.locks.HandleEditConflict(p)
}

func (s *Session) onEditEnded(env events.Envelope) {
	var p events.ClaimEditPayload
	if !s.decode(env, &p) {
		return
	}
	s.locks.HandleEditEnded(p)
	s.presence.SetActivity(p.UserID, collab.ActivityViewing)
}

func (s *Session) onCommentAdded(env events.Envelope) {
	var p events.CommentPayload
	if !s.decode(env, &p) {
		return
	}
	if p.Comment.User.ID == "" {
		p.Comment.User.ID = p.Comment.UserID
	}
	if p.Comment.User.ID != "" && p.Comment.User.ID == s.self.ID {
		return
	}
	s.notify.CommentAdded(p.Comment)
	s.metrics.RecordNotification(collab.NotifyComment)
}

// onRelationshipCreated applies a link another participant confirmed.
// Links already in the mirror are skipped, so echoes and repeats are
// harmless.
func (s *Session) onRelationshipCreated(env events.Envelope) {
	var p events.RelationshipPayload
	if !s.decode(env, &p) {
		return
	}
	if p.ProjectID != "" && p.ProjectID != s.projectID {
		return
	}
	user := collab.User{ID: p.UserID}
	if p.User != nil {
		user = *p.User
	}
	if user.ID != "" && user.ID == s.self.ID {
		return
	}

	link := p.Link.Clone()
	if link.Source.IsZero() {
		link.Source = valueobjects.EndpointID(p.SourceID)
	}
	if link.Target.IsZero() {
		link.Target = valueobjects.EndpointID(p.TargetID)
	}
	if link.Type == "" {
		if t, ok := valueobjects.ParseLinkType(p.Relationship); ok {
			link.Type = t
		}
	}
	link.Provisional = false

	if link.ID == "" || !link.Type.Valid() {
		s.logger.Warn("Dropping malformed relationship", zap.String("link_id", link.ID))
		return
	}
	if _, exists := s.graph.Link(link.ID); exists {
		return
	}
	if !s.graph.HasNode(link.SourceID()) || !s.graph.HasNode(link.TargetID()) {
		s.logger.Debug("Relationship references unknown nodes", zap.String("link_id", link.ID))
		return
	}
	if err := s.graph.AddLink(link); err != nil {
		s.logger.Warn("Failed to apply relationship", zap.String("link_id", link.ID), zap.Error(err))
		return
	}

	s.history.Append(collab.ChangeEvent{
		ID:         valueobjects.NewRecordID(),
		Type:       collab.ChangeCreate,
		EntityType: collab.EntityLink,
		EntityID:   link.ID,
		UserID:     user.ID,
		User:       user,
		Changes: map[string]interface{}{
			"source":   link.SourceID(),
			"target":   link.TargetID(),
			"type":     string(link.Type),
			"strength": link.Strength,
		},
		Timestamp: env.Time(),
	})
	s.notify.RelationshipCreated(user, string(link.Type))
	s.metrics.RecordNotification(collab.NotifyRelationship)
}
