package entities

import (
	"github.com/Sakeeb91/claim-mapper-sub003/domain/core/valueobjects"
)

// GraphLink is a typed, weighted edge between two nodes
type GraphLink struct {
	ID         string                `json:"id"`
	Source     valueobjects.Endpoint `json:"source"`
	Target     valueobjects.Endpoint `json:"target"`
	Type       valueobjects.LinkType `json:"type"`
	Strength   float64               `json:"strength"`
	Confidence *float64              `json:"confidence,omitempty"`
	// Provisional is set while the link only exists locally
	Provisional bool `json:"provisional,omitempty"`
}

// SourceID returns the canonical source node id
func (l GraphLink) SourceID() string { return l.Source.ID() }

// TargetID returns the canonical target node id
func (l GraphLink) TargetID() string { return l.Target.ID() }

// Connects reports whether the link joins source to target with type t
func (l GraphLink) Connects(source, target string, t valueobjects.LinkType) bool {
	return l.SourceID() == source && l.TargetID() == target && l.Type == t
}

// Clone returns a deep copy with endpoints normalized to ids
func (l GraphLink) Clone() GraphLink {
	out := l
	out.Source = l.Source.Normalize()
	out.Target = l.Target.Normalize()
	out.Confidence = cloneFloat(l.Confidence)
	return out
}
