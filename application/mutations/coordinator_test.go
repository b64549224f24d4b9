package mutations

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/Sakeeb91/claim-mapper-sub003/application/history"
	"github.com/Sakeeb91/claim-mapper-sub003/application/notifications"
	"github.com/Sakeeb91/claim-mapper-sub003/application/ports"
	"github.com/Sakeeb91/claim-mapper-sub003/application/store"
	"github.com/Sakeeb91/claim-mapper-sub003/domain/collab"
	"github.com/Sakeeb91/claim-mapper-sub003/domain/core/entities"
	"github.com/Sakeeb91/claim-mapper-sub003/domain/core/valueobjects"
	"github.com/Sakeeb91/claim-mapper-sub003/domain/events"
	pkgerrors "github.com/Sakeeb91/claim-mapper-sub003/pkg/errors"
	"github.com/Sakeeb91/claim-mapper-sub003/pkg/observability"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockGraphAPI is a mock implementation of ports.GraphAPI
type MockGraphAPI struct {
	mock.Mock
}

func (m *MockGraphAPI) LoadGraph(ctx context.Context, projectID string) (*entities.GraphData, error) {
	args := m.Called(ctx, projectID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.GraphData), args.Error(1)
}

func (m *MockGraphAPI) ConnectNodes(ctx context.Context, req ports.ConnectNodesRequest) (*entities.GraphLink, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.GraphLink), args.Error(1)
}

func (m *MockGraphAPI) UpdateClaim(ctx context.Context, claimID string, changes map[string]interface{}) (*entities.Claim, error) {
	args := m.Called(ctx, claimID, changes)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.Claim), args.Error(1)
}

func (m *MockGraphAPI) DeleteLink(ctx context.Context, linkID string) error {
	args := m.Called(ctx, linkID)
	return args.Error(0)
}

// MockChannel is a mock implementation of ports.Channel
type MockChannel struct {
	mock.Mock
}

func (m *MockChannel) Emit(event string, payload interface{}) error {
	args := m.Called(event, payload)
	return args.Error(0)
}

func (m *MockChannel) IsConnected() bool {
	args := m.Called()
	return args.Bool(0)
}

// queueExecutor hands posted continuations to the test goroutine
type queueExecutor struct {
	ch     chan func()
	closed bool
}

func (q *queueExecutor) Post(fn func()) bool {
	if q.closed {
		return false
	}
	q.ch <- fn
	return true
}

func (q *queueExecutor) runNext(t *testing.T) {
	t.Helper()
	select {
	case fn := <-q.ch:
		fn()
	case <-time.After(2 * time.Second):
		t.Fatal("durable request never completed")
	}
}

type recordingReporter struct {
	messages []string
}

func (r *recordingReporter) ReportError(message string) {
	r.messages = append(r.messages, message)
}

type fixture struct {
	coord    *Coordinator
	graph    *store.GraphStore
	api      *MockGraphAPI
	channel  *MockChannel
	exec     *queueExecutor
	log      *history.Log
	reporter *recordingReporter
	notify   *notifications.Dispatcher
	metrics  *observability.Collector
}

func newFixture(t *testing.T, connected bool) *fixture {
	t.Helper()
	graph := store.New()
	graph.Replace(entities.GraphData{
		Nodes: []entities.GraphNode{
			entities.NewClaimNode(entities.Claim{ID: "c1", Title: "Coffee improves focus", Confidence: 0.7, Version: 1}),
			entities.NewEvidenceNode(entities.Evidence{ID: "e1", Text: "RCT, n=120"}),
			entities.NewClaimNode(entities.Claim{ID: "c2", Title: "Caffeine is addictive"}),
		},
		Links: []entities.GraphLink{
			{ID: "l1", Source: valueobjects.EndpointID("c2"), Target: valueobjects.EndpointID("c1"), Type: valueobjects.LinkTypeContradicts, Strength: 0.4},
		},
	})

	f := &fixture{
		graph:    graph,
		api:      new(MockGraphAPI),
		channel:  new(MockChannel),
		exec:     &queueExecutor{ch: make(chan func(), 8)},
		log:      history.New(history.DefaultCapacity),
		reporter: &recordingReporter{},
		notify:   notifications.NewDispatcher(0),
		metrics:  observability.NewCollector("test"),
	}
	f.channel.On("IsConnected").Return(connected).Maybe()
	f.coord = NewCoordinator(Deps{
		Graph:    f.graph,
		API:      f.api,
		Channel:  f.channel,
		Executor: f.exec,
		History:  f.log,
		Notify:   f.notify,
		Errors:   f.reporter,
		Metrics:  f.metrics,
	})
	f.coord.SetSelf(collab.User{ID: "me", Name: "Me"})
	f.coord.SetProject("p1")
	return f
}

func TestConnectNodes_ReconcilesProvisionalID(t *testing.T) {
	f := newFixture(t, false)
	f.api.On("ConnectNodes", mock.Anything, ports.ConnectNodesRequest{
		ProjectID: "p1", SourceID: "c1", TargetID: "e1", Type: valueobjects.LinkTypeSupports, Confidence: 0.8,
	}).Return(&entities.GraphLink{
		ID:     "link_c1_e1_999",
		Source: valueobjects.EndpointID("c1"),
		Target: valueobjects.EndpointID("e1"),
		Type:   valueobjects.LinkTypeSupports,
	}, nil).After(50 * time.Millisecond)

	op, err := f.coord.ConnectNodes("c1", "e1", valueobjects.LinkTypeSupports, 0.8)
	require.NoError(t, err)

	provisional, ok := f.graph.Link(op.ProvisionalID())
	require.True(t, ok, "provisional link should be visible immediately")
	assert.True(t, provisional.Provisional)
	assert.True(t, strings.HasPrefix(op.ProvisionalID(), "tmp_link_"))
	assert.Equal(t, 1, f.coord.InFlight())

	f.exec.runNext(t)

	<-op.Done()
	require.NoError(t, op.Result().Err)
	_, ok = f.graph.Link(op.ProvisionalID())
	assert.False(t, ok, "provisional id must be gone")

	var matches []entities.GraphLink
	for _, l := range f.graph.Links() {
		if l.Connects("c1", "e1", valueobjects.LinkTypeSupports) {
			matches = append(matches, l)
		}
	}
	require.Len(t, matches, 1)
	assert.Equal(t, "link_c1_e1_999", matches[0].ID)
	assert.False(t, matches[0].Provisional)
	assert.Equal(t, 0.8, matches[0].Strength)
	assert.Equal(t, 0, f.coord.InFlight())

	entries := f.log.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, collab.ChangeCreate, entries[0].Type)
	assert.Equal(t, "link_c1_e1_999", entries[0].EntityID)
	assert.Equal(t, "me", entries[0].UserID)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.Mutations.WithLabelValues("connect_nodes", "confirmed")))
}

func TestConnectNodes_RejectionRestoresSnapshot(t *testing.T) {
	f := newFixture(t, true)
	before := f.graph.Snapshot()
	f.api.On("ConnectNodes", mock.Anything, mock.Anything).
		Return(nil, pkgerrors.NewMutationRejectedError("not found", 404))

	op, err := f.coord.ConnectNodes("c1", "e1", valueobjects.LinkTypeSupports, 0.5)
	require.NoError(t, err)
	_, links := f.graph.Stats()
	assert.Equal(t, 2, links)

	f.exec.runNext(t)

	assert.Equal(t, before, f.graph.Snapshot())
	assert.Equal(t, []string{"not found"}, f.reporter.messages)
	assert.True(t, pkgerrors.IsMutationRejected(op.Result().Err))
	assert.Equal(t, 0, f.log.Len())
	assert.Equal(t, 1, f.notify.UnreadCount())
	f.channel.AssertNotCalled(t, "Emit", mock.Anything, mock.Anything)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.Rollbacks.WithLabelValues("connect_nodes")))
}

func TestConnectNodes_GenericFailureUsesFallbackMessage(t *testing.T) {
	f := newFixture(t, false)
	f.api.On("ConnectNodes", mock.Anything, mock.Anything).
		Return(nil, context.DeadlineExceeded)

	_, err := f.coord.ConnectNodes("c1", "e1", valueobjects.LinkTypeRelates, 0.5)
	require.NoError(t, err)
	f.exec.runNext(t)

	assert.Equal(t, []string{"Failed to create relationship"}, f.reporter.messages)
}

func TestConnectNodes_BroadcastsWhenConnected(t *testing.T) {
	f := newFixture(t, true)
	confirmed := &entities.GraphLink{ID: "link_9", Source: valueobjects.EndpointID("c1"), Target: valueobjects.EndpointID("e1"), Type: valueobjects.LinkTypeSupports, Strength: 0.6}
	f.api.On("ConnectNodes", mock.Anything, mock.Anything).Return(confirmed, nil)
	f.channel.On("Emit", events.RelationshipCreated, mock.MatchedBy(func(p events.RelationshipPayload) bool {
		return p.ProjectID == "p1" && p.SourceID == "c1" && p.TargetID == "e1" &&
			p.Relationship == "supports" && p.Link.ID == "link_9"
	})).Return(nil).Once()

	_, err := f.coord.ConnectNodes("c1", "e1", valueobjects.LinkTypeSupports, 0.6)
	require.NoError(t, err)
	f.exec.runNext(t)

	f.channel.AssertExpectations(t)
}

func TestConnectNodes_DuplicateInFlightIsRejected(t *testing.T) {
	f := newFixture(t, false)
	release := make(chan time.Time)
	f.api.On("ConnectNodes", mock.Anything, mock.Anything).
		Return(&entities.GraphLink{ID: "link_1"}, nil).WaitUntil(release).Once()

	_, err := f.coord.ConnectNodes("c1", "e1", valueobjects.LinkTypeSupports, 0.5)
	require.NoError(t, err)

	_, err = f.coord.ConnectNodes("c1", "e1", valueobjects.LinkTypeSupports, 0.5)
	assert.True(t, pkgerrors.IsConflict(err))
	_, links := f.graph.Stats()
	assert.Equal(t, 2, links)

	// A different relationship type is a different key
	f.api.On("ConnectNodes", mock.Anything, mock.Anything).Return(&entities.GraphLink{ID: "link_2"}, nil).Once()
	_, err = f.coord.ConnectNodes("c1", "e1", valueobjects.LinkTypeRelates, 0.5)
	assert.NoError(t, err)

	close(release)
	f.exec.runNext(t)
	f.exec.runNext(t)
	assert.Equal(t, 0, f.coord.InFlight())
}

func TestConnectNodes_ValidationNeverTouchesStore(t *testing.T) {
	tests := []struct {
		name       string
		source     string
		target     string
		linkType   valueobjects.LinkType
		confidence float64
		check      func(error) bool
	}{
		{"missing source", "", "e1", valueobjects.LinkTypeSupports, 0.5, pkgerrors.IsValidation},
		{"unknown type", "c1", "e1", valueobjects.LinkType("refutes"), 0.5, pkgerrors.IsValidation},
		{"self link", "c1", "c1", valueobjects.LinkTypeSupports, 0.5, pkgerrors.IsValidation},
		{"confidence out of range", "c1", "e1", valueobjects.LinkTypeSupports, 1.5, pkgerrors.IsValidation},
		{"unknown endpoint", "c1", "ghost", valueobjects.LinkTypeSupports, 0.5, pkgerrors.IsNotFound},
		{"already linked", "c2", "c1", valueobjects.LinkTypeContradicts, 0.5, pkgerrors.IsConflict},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, false)
			before := f.graph.Snapshot()

			op, err := f.coord.ConnectNodes(tt.source, tt.target, tt.linkType, tt.confidence)

			assert.Nil(t, op)
			assert.True(t, tt.check(err), "unexpected error %v", err)
			assert.Equal(t, before, f.graph.Snapshot())
			assert.Empty(t, f.reporter.messages)
			f.api.AssertNotCalled(t, "ConnectNodes", mock.Anything, mock.Anything)
		})
	}
}

func TestConnectNodes_StoppedLoopFailsOperation(t *testing.T) {
	f := newFixture(t, false)
	f.exec.closed = true
	f.api.On("ConnectNodes", mock.Anything, mock.Anything).Return(&entities.GraphLink{ID: "link_1"}, nil)

	op, err := f.coord.ConnectNodes("c1", "e1", valueobjects.LinkTypeSupports, 0.5)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	res, err := op.Wait(ctx)
	require.NoError(t, err)
	assert.Error(t, res.Err)
}

func TestUpdateClaim_ReconcilesWithAuthoritativeClaim(t *testing.T) {
	f := newFixture(t, false)
	changes := map[string]interface{}{"title": "Coffee sharpens focus"}
	f.api.On("UpdateClaim", mock.Anything, "c1", changes).Return(&entities.Claim{
		ID: "c1", Title: "Coffee sharpens focus", Confidence: 0.7, Version: 2,
	}, nil)

	op, err := f.coord.UpdateClaim("c1", changes)
	require.NoError(t, err)
	optimistic, _ := f.graph.Claim("c1")
	assert.Equal(t, "Coffee sharpens focus", optimistic.Title)
	assert.Equal(t, 1, optimistic.Version)

	f.exec.runNext(t)

	require.NoError(t, op.Result().Err)
	confirmed, _ := f.graph.Claim("c1")
	assert.Equal(t, 2, confirmed.Version)
	entries := f.log.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, collab.ChangeUpdate, entries[0].Type)
	assert.Equal(t, changes, entries[0].Changes)
}

func TestUpdateClaim_RejectionRestoresSnapshot(t *testing.T) {
	f := newFixture(t, false)
	before := f.graph.Snapshot()
	f.api.On("UpdateClaim", mock.Anything, "c1", mock.Anything).
		Return(nil, pkgerrors.NewMutationRejectedError("Claim is locked", 423))

	_, err := f.coord.UpdateClaim("c1", map[string]interface{}{"title": "x", "tags": []interface{}{"a"}})
	require.NoError(t, err)
	f.exec.runNext(t)

	assert.Equal(t, before, f.graph.Snapshot())
	assert.Equal(t, []string{"Claim is locked"}, f.reporter.messages)
}

func TestUpdateClaim_Validation(t *testing.T) {
	f := newFixture(t, false)

	_, err := f.coord.UpdateClaim("c1", nil)
	assert.True(t, pkgerrors.IsValidation(err))
	_, err = f.coord.UpdateClaim("e1", map[string]interface{}{"title": "x"})
	assert.True(t, pkgerrors.IsNotFound(err))
	f.api.AssertNotCalled(t, "UpdateClaim", mock.Anything, mock.Anything, mock.Anything)
}

func TestDeleteLink_RollbackRestoresLink(t *testing.T) {
	f := newFixture(t, false)
	before := f.graph.Snapshot()
	f.api.On("DeleteLink", mock.Anything, "l1").Return(pkgerrors.NewMutationRejectedError("forbidden", 403))

	_, err := f.coord.DeleteLink("l1")
	require.NoError(t, err)
	_, ok := f.graph.Link("l1")
	assert.False(t, ok)

	f.exec.runNext(t)

	assert.Equal(t, before, f.graph.Snapshot())
	assert.Equal(t, []string{"forbidden"}, f.reporter.messages)
}

func TestDeleteLink_Confirmed(t *testing.T) {
	f := newFixture(t, false)
	f.api.On("DeleteLink", mock.Anything, "l1").Return(nil)

	op, err := f.coord.DeleteLink("l1")
	require.NoError(t, err)
	f.exec.runNext(t)

	require.NoError(t, op.Result().Err)
	_, ok := f.graph.Link("l1")
	assert.False(t, ok)
	entries := f.log.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, collab.ChangeDelete, entries[0].Type)
}

func TestDeleteLink_RejectsProvisionalAndUnknown(t *testing.T) {
	f := newFixture(t, false)
	release := make(chan time.Time)
	f.api.On("ConnectNodes", mock.Anything, mock.Anything).
		Return(&entities.GraphLink{ID: "link_1"}, nil).WaitUntil(release)

	op, err := f.coord.ConnectNodes("c1", "e1", valueobjects.LinkTypeSupports, 0.5)
	require.NoError(t, err)

	_, err = f.coord.DeleteLink(op.ProvisionalID())
	assert.True(t, pkgerrors.IsValidation(err))
	_, err = f.coord.DeleteLink("nope")
	assert.True(t, pkgerrors.IsNotFound(err))

	close(release)
	f.exec.runNext(t)
}

func provisionalLinks(g *store.GraphStore) []string {
	var ids []string
	for _, l := range g.Links() {
		if l.Provisional {
			ids = append(ids, l.ID)
		}
	}
	return ids
}

func TestConnectNodes_OverlappingConfirmAndRejectKeepBothOutcomes(t *testing.T) {
	f := newFixture(t, false)
	releaseA := make(chan time.Time)
	releaseB := make(chan time.Time)
	f.api.On("ConnectNodes", mock.Anything, mock.MatchedBy(func(r ports.ConnectNodesRequest) bool {
		return r.SourceID == "c1"
	})).Return(&entities.GraphLink{
		ID:     "link_a",
		Source: valueobjects.EndpointID("c1"),
		Target: valueobjects.EndpointID("e1"),
		Type:   valueobjects.LinkTypeSupports,
	}, nil).WaitUntil(releaseA)
	f.api.On("ConnectNodes", mock.Anything, mock.MatchedBy(func(r ports.ConnectNodesRequest) bool {
		return r.SourceID == "c2"
	})).Return(nil, pkgerrors.NewMutationRejectedError("not allowed", 403)).WaitUntil(releaseB)

	opA, err := f.coord.ConnectNodes("c1", "e1", valueobjects.LinkTypeSupports, 0.6)
	require.NoError(t, err)
	opB, err := f.coord.ConnectNodes("c2", "e1", valueobjects.LinkTypeRelates, 0.3)
	require.NoError(t, err)
	assert.Len(t, provisionalLinks(f.graph), 2)

	close(releaseA)
	f.exec.runNext(t)
	require.NoError(t, opA.Result().Err)

	close(releaseB)
	f.exec.runNext(t)
	assert.True(t, pkgerrors.IsMutationRejected(opB.Result().Err))

	confirmed, ok := f.graph.Link("link_a")
	require.True(t, ok, "confirmed link must survive the other rollback")
	assert.False(t, confirmed.Provisional)
	assert.Empty(t, provisionalLinks(f.graph))
	_, links := f.graph.Stats()
	assert.Equal(t, 2, links)
	assert.Equal(t, 0, f.coord.InFlight())
	assert.Equal(t, []string{"not allowed"}, f.reporter.messages)
}

func TestConnectNodes_RejectionKeepsLaterProvisionalLink(t *testing.T) {
	f := newFixture(t, false)
	releaseA := make(chan time.Time)
	releaseB := make(chan time.Time)
	f.api.On("ConnectNodes", mock.Anything, mock.MatchedBy(func(r ports.ConnectNodesRequest) bool {
		return r.SourceID == "c1"
	})).Return(nil, pkgerrors.NewMutationRejectedError("not allowed", 403)).WaitUntil(releaseA)
	f.api.On("ConnectNodes", mock.Anything, mock.MatchedBy(func(r ports.ConnectNodesRequest) bool {
		return r.SourceID == "c2"
	})).Return(&entities.GraphLink{ID: "link_b"}, nil).WaitUntil(releaseB)

	opA, err := f.coord.ConnectNodes("c1", "e1", valueobjects.LinkTypeSupports, 0.6)
	require.NoError(t, err)
	opB, err := f.coord.ConnectNodes("c2", "e1", valueobjects.LinkTypeRelates, 0.3)
	require.NoError(t, err)

	close(releaseA)
	f.exec.runNext(t)
	assert.Equal(t, []string{opB.ProvisionalID()}, provisionalLinks(f.graph))

	close(releaseB)
	f.exec.runNext(t)
	require.NoError(t, opB.Result().Err)
	assert.Error(t, opA.Result().Err)
	_, ok := f.graph.Link("link_b")
	assert.True(t, ok)
	assert.Empty(t, provisionalLinks(f.graph))
}

func TestDeleteLink_RollbackKeepsOverlappingConnect(t *testing.T) {
	f := newFixture(t, false)
	releaseConnect := make(chan time.Time)
	releaseDelete := make(chan time.Time)
	f.api.On("ConnectNodes", mock.Anything, mock.Anything).
		Return(&entities.GraphLink{ID: "link_a"}, nil).WaitUntil(releaseConnect)
	f.api.On("DeleteLink", mock.Anything, "l1").
		Return(pkgerrors.NewMutationRejectedError("forbidden", 403)).WaitUntil(releaseDelete)

	_, err := f.coord.ConnectNodes("c1", "e1", valueobjects.LinkTypeSupports, 0.6)
	require.NoError(t, err)
	_, err = f.coord.DeleteLink("l1")
	require.NoError(t, err)

	close(releaseConnect)
	f.exec.runNext(t)
	close(releaseDelete)
	f.exec.runNext(t)

	links := f.graph.Links()
	require.Len(t, links, 2)
	assert.Equal(t, "l1", links[0].ID, "restored link goes back where it was")
	assert.Equal(t, "link_a", links[1].ID)
	assert.False(t, links[1].Provisional)
}

func TestUpdateClaim_RollbackKeepsOtherClaimEdits(t *testing.T) {
	f := newFixture(t, false)
	releaseC1 := make(chan time.Time)
	releaseC2 := make(chan time.Time)
	f.api.On("UpdateClaim", mock.Anything, "c1", mock.Anything).
		Return(&entities.Claim{ID: "c1", Title: "Coffee sharpens focus", Confidence: 0.7, Version: 2}, nil).WaitUntil(releaseC1)
	f.api.On("UpdateClaim", mock.Anything, "c2", mock.Anything).
		Return(nil, pkgerrors.NewMutationRejectedError("Claim is locked", 423)).WaitUntil(releaseC2)

	_, err := f.coord.UpdateClaim("c1", map[string]interface{}{"title": "Coffee sharpens focus"})
	require.NoError(t, err)
	_, err = f.coord.UpdateClaim("c2", map[string]interface{}{"title": "Caffeine is habit forming"})
	require.NoError(t, err)

	close(releaseC1)
	f.exec.runNext(t)
	close(releaseC2)
	f.exec.runNext(t)

	c1, ok := f.graph.Claim("c1")
	require.True(t, ok)
	assert.Equal(t, "Coffee sharpens focus", c1.Title)
	c2, ok := f.graph.Claim("c2")
	require.True(t, ok)
	assert.Equal(t, "Caffeine is addictive", c2.Title)
}
