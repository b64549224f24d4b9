// Package store holds the client-local mirror of the shared graph.
//
// GraphStore is a plain data container. It is owned by the session loop
// and is not safe for concurrent use; every read returns a copy so callers
// can never alias the stored slices.
package store

import (
	"github.com/Sakeeb91/claim-mapper-sub003/domain/core/entities"
	"github.com/Sakeeb91/claim-mapper-sub003/domain/core/valueobjects"
	pkgerrors "github.com/Sakeeb91/claim-mapper-sub003/pkg/errors"
)

// GraphStore is the in-memory mirror of nodes and links
type GraphStore struct {
	data entities.GraphData
}

// New creates an empty store
func New() *GraphStore {
	return &GraphStore{
		data: entities.GraphData{
			Nodes: []entities.GraphNode{},
			Links: []entities.GraphLink{},
		},
	}
}

// Replace swaps in a whole new snapshot. Link endpoints are normalized to
// ids and later duplicates of a node id are dropped.
func (s *GraphStore) Replace(g entities.GraphData) {
	next := entities.GraphData{
		Nodes: make([]entities.GraphNode, 0, len(g.Nodes)),
		Links: make([]entities.GraphLink, 0, len(g.Links)),
	}

	seen := make(map[string]struct{}, len(g.Nodes))
	for _, n := range g.Nodes {
		if _, dup := seen[n.ID]; dup {
			continue
		}
		seen[n.ID] = struct{}{}
		next.Nodes = append(next.Nodes, n.Clone())
	}

	seenLinks := make(map[string]struct{}, len(g.Links))
	for _, l := range g.Links {
		if _, dup := seenLinks[l.ID]; dup {
			continue
		}
		seenLinks[l.ID] = struct{}{}
		next.Links = append(next.Links, l.Clone())
	}

	s.data = next
}

// Snapshot returns a deep copy of the current graph
func (s *GraphStore) Snapshot() entities.GraphData {
	return s.data.Clone()
}


// Stats returns node and link counts
func (s *GraphStore) Stats() (nodes, links int) {
	return len(s.data.Nodes), len(s.data.Links)
}

// Node returns a copy of the node with the given id
func (s *GraphStore) Node(id string) (entities.GraphNode, bool) {
	i := s.nodeIndex(id)
	if i < 0 {
		return entities.GraphNode{}, false
	}
	return s.data.Nodes[i].Clone(), true
}

// HasNode reports whether id is a node in the current snapshot
func (s *GraphStore) HasNode(id string) bool {
	return s.nodeIndex(id) >= 0
}

// Nodes returns copies of all nodes in insertion order
func (s *GraphStore) Nodes() []entities.GraphNode {
	out := make([]entities.GraphNode, len(s.data.Nodes))
	for i, n := range s.data.Nodes {
		out[i] = n.Clone()
	}
	return out
}

// UpsertNode adds n, or replaces the node with the same id in place
func (s *GraphStore) UpsertNode(n entities.GraphNode) {
	if i := s.nodeIndex(n.ID); i >= 0 {
		s.data.Nodes[i] = n.Clone()
		return
	}
	s.data.Nodes = append(s.data.Nodes, n.Clone())
}

// RemoveNode deletes a node and every link touching it
func (s *GraphStore) RemoveNode(id string) bool {
	i := s.nodeIndex(id)
	if i < 0 {
		return false
	}
	s.data.Nodes = append(s.data.Nodes[:i], s.data.Nodes[i+1:]...)

	kept := s.data.Links[:0]
	for _, l := range s.data.Links {
		if l.SourceID() == id || l.TargetID() == id {
			continue
		}
		kept = append(kept, l)
	}
	s.data.Links = kept
	return true
}

// Links returns copies of all links in insertion order
func (s *GraphStore) Links() []entities.GraphLink {
	out := make([]entities.GraphLink, len(s.data.Links))
	for i, l := range s.data.Links {
		out[i] = l.Clone()
	}
	return out
}

// ValidLinks returns the links whose endpoints both exist
func (s *GraphStore) ValidLinks() []entities.GraphLink {
	return s.data.Clone().ValidLinks()
}

// Link returns a copy of the link with the given id
func (s *GraphStore) Link(id string) (entities.GraphLink, bool) {
	i := s.linkIndex(id)
	if i < 0 {
		return entities.GraphLink{}, false
	}
	return s.data.Links[i].Clone(), true
}

// FindLink returns the first link joining source to target with type t
func (s *GraphStore) FindLink(source, target string, t valueobjects.LinkType) (entities.GraphLink, bool) {
	for _, l := range s.data.Links {
		if l.Connects(source, target, t) {
			return l.Clone(), true
		}
	}
	return entities.GraphLink{}, false
}

// AddLink appends l. Link ids must be unique.
func (s *GraphStore) AddLink(l entities.GraphLink) error {
	if l.ID == "" {
		return pkgerrors.NewValidationError("link id is required")
	}
	if s.linkIndex(l.ID) >= 0 {
		return pkgerrors.NewConflictError("link " + l.ID + " already exists")
	}
	s.data.Links = append(s.data.Links, l.Clone())
	return nil
}

// ReplaceLink swaps the link stored under id for l, keeping its position.
// l may carry a different id; that is how provisional ids are reconciled.
func (s *GraphStore) ReplaceLink(id string, l entities.GraphLink) error {
	i := s.linkIndex(id)
	if i < 0 {
		return pkgerrors.NewNotFoundError("link " + id)
	}
	if l.ID != id && s.linkIndex(l.ID) >= 0 {
		// The authoritative link already arrived (e.g. via broadcast);
		// drop the placeholder instead of duplicating it.
		s.data.Links = append(s.data.Links[:i], s.data.Links[i+1:]...)
		return nil
	}
	s.data.Links[i] = l.Clone()
	return nil
}

// RemoveLink deletes the link with the given id and returns it
func (s *GraphStore) RemoveLink(id string) (entities.GraphLink, bool) {
	i := s.linkIndex(id)
	if i < 0 {
		return entities.GraphLink{}, false
	}
	removed := s.data.Links[i]
	s.data.Links = append(s.data.Links[:i], s.data.Links[i+1:]...)
	return removed.Clone(), true
}

// LinkPosition returns the index of link id in insertion order, or -1
func (s *GraphStore) LinkPosition(id string) int {
	return s.linkIndex(id)
}

// InsertLink puts l back at position i, clamped to the current length.
// It is how a removed link is restored where it used to be.
func (s *GraphStore) InsertLink(i int, l entities.GraphLink) error {
	if l.ID == "" {
		return pkgerrors.NewValidationError("link id is required")
	}
	if s.linkIndex(l.ID) >= 0 {
		return pkgerrors.NewConflictError("link " + l.ID + " already exists")
	}
	if i < 0 || i > len(s.data.Links) {
		i = len(s.data.Links)
	}
	s.data.Links = append(s.data.Links, entities.GraphLink{})
	copy(s.data.Links[i+1:], s.data.Links[i:])
	s.data.Links[i] = l.Clone()
	return nil
}

// Claim returns a copy of the claim payload of node id
func (s *GraphStore) Claim(id string) (entities.Claim, bool) {
	i := s.nodeIndex(id)
	if i < 0 || s.data.Nodes[i].Data.Claim == nil {
		return entities.Claim{}, false
	}
	return s.data.Nodes[i].Data.Claim.Clone(), true
}

// MergeClaim applies a field-level patch to a claim node. Fields not named
// in changes are left alone, so concurrent patches to different fields
// both survive (last writer wins per field).
func (s *GraphStore) MergeClaim(id string, changes map[string]interface{}) (entities.Claim, error) {
	i := s.nodeIndex(id)
	if i < 0 || s.data.Nodes[i].Data.Claim == nil {
		return entities.Claim{}, pkgerrors.NewNotFoundError("claim " + id)
	}
	merged, err := s.data.Nodes[i].Data.Claim.Merge(changes)
	if err != nil {
		return entities.Claim{}, pkgerrors.NewValidationError(err.Error())
	}
	s.data.Nodes[i].ApplyClaim(merged)
	return merged.Clone(), nil
}

// SetClaim replaces the claim payload of an existing claim node
func (s *GraphStore) SetClaim(c entities.Claim) error {
	i := s.nodeIndex(c.ID)
	if i < 0 || s.data.Nodes[i].Data.Claim == nil {
		return pkgerrors.NewNotFoundError("claim " + c.ID)
	}
	s.data.Nodes[i].ApplyClaim(c)
	return nil
}

func (s *GraphStore) nodeIndex(id string) int {
	for i := range s.data.Nodes {
		if s.data.Nodes[i].ID == id {
			return i
		}
	}
	return -1
}

func (s *GraphStore) linkIndex(id string) int {
	for i := range s.data.Links {
		if s.data.Links[i].ID == id {
			return i
		}
	}
	return -1
}
