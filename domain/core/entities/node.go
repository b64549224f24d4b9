package entities

import (
	"encoding/json"
	"fmt"

	"github.com/Sakeeb91/claim-mapper-sub003/domain/core/valueobjects"
)

// GraphNode is one vertex of the shared graph. The layout fields belong
// to the rendering layer and are carried through untouched.
type GraphNode struct {
	ID         string                `json:"id"`
	Type       valueobjects.NodeType `json:"type"`
	Label      string                `json:"label"`
	Confidence *float64              `json:"confidence,omitempty"`

	X  *float64 `json:"x,omitempty"`
	Y  *float64 `json:"y,omitempty"`
	VX *float64 `json:"vx,omitempty"`
	VY *float64 `json:"vy,omitempty"`
	FX *float64 `json:"fx,omitempty"`
	FY *float64 `json:"fy,omitempty"`

	Data NodePayload `json:"data"`
}

// NodePayload holds exactly one of the domain payloads, matching the
// node's type.
type NodePayload struct {
	Claim     *Claim
	Evidence  *Evidence
	Reasoning *ReasoningChain
}

// NewClaimNode builds a claim node whose label and confidence mirror the claim
func NewClaimNode(c Claim) GraphNode {
	conf := c.Confidence
	return GraphNode{
		ID:         c.ID,
		Type:       valueobjects.NodeTypeClaim,
		Label:      c.Label(),
		Confidence: &conf,
		Data:       NodePayload{Claim: &c},
	}
}

// NewEvidenceNode builds an evidence node
func NewEvidenceNode(e Evidence) GraphNode {
	conf := e.Reliability
	return GraphNode{
		ID:         e.ID,
		Type:       valueobjects.NodeTypeEvidence,
		Label:      truncate(e.Text, 80),
		Confidence: &conf,
		Data:       NodePayload{Evidence: &e},
	}
}

// NewReasoningNode builds a reasoning chain node
func NewReasoningNode(r ReasoningChain) GraphNode {
	conf := r.OverallConfidence
	return GraphNode{
		ID:         r.ID,
		Type:       valueobjects.NodeTypeReasoning,
		Label:      fmt.Sprintf("%s reasoning (%d steps)", r.Type, len(r.Steps)),
		Confidence: &conf,
		Data:       NodePayload{Reasoning: &r},
	}
}

// Clone returns a deep copy
func (n GraphNode) Clone() GraphNode {
	out := n
	out.Confidence = cloneFloat(n.Confidence)
	out.X, out.Y = cloneFloat(n.X), cloneFloat(n.Y)
	out.VX, out.VY = cloneFloat(n.VX), cloneFloat(n.VY)
	out.FX, out.FY = cloneFloat(n.FX), cloneFloat(n.FY)
	out.Data = n.Data.Clone()
	return out
}

// ApplyClaim replaces the claim payload and refreshes the derived fields
func (n *GraphNode) ApplyClaim(c Claim) {
	claim := c.Clone()
	conf := claim.Confidence
	n.Data = NodePayload{Claim: &claim}
	n.Label = claim.Label()
	n.Confidence = &conf
}

// Clone returns a deep copy of whichever payload is set
func (p NodePayload) Clone() NodePayload {
	var out NodePayload
	if p.Claim != nil {
		c := p.Claim.Clone()
		out.Claim = &c
	}
	if p.Evidence != nil {
		e := p.Evidence.Clone()
		out.Evidence = &e
	}
	if p.Reasoning != nil {
		r := p.Reasoning.Clone()
		out.Reasoning = &r
	}
	return out
}

// MarshalJSON writes the set payload as a plain object
func (p NodePayload) MarshalJSON() ([]byte, error) {
	switch {
	case p.Claim != nil:
		return json.Marshal(p.Claim)
	case p.Evidence != nil:
		return json.Marshal(p.Evidence)
	case p.Reasoning != nil:
		return json.Marshal(p.Reasoning)
	default:
		return []byte("null"), nil
	}
}

// UnmarshalJSON decodes the payload using the node type to pick the shape
func (n *GraphNode) UnmarshalJSON(data []byte) error {
	type alias GraphNode
	var raw struct {
		alias
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*n = GraphNode(raw.alias)
	n.Data = NodePayload{}
	if len(raw.Data) == 0 || string(raw.Data) == "null" {
		return nil
	}

	switch n.Type {
	case valueobjects.NodeTypeClaim:
		var c Claim
		if err := json.Unmarshal(raw.Data, &c); err != nil {
			return fmt.Errorf("node %s: claim payload: %w", n.ID, err)
		}
		n.Data.Claim = &c
	case valueobjects.NodeTypeEvidence:
		var e Evidence
		if err := json.Unmarshal(raw.Data, &e); err != nil {
			return fmt.Errorf("node %s: evidence payload: %w", n.ID, err)
		}
		n.Data.Evidence = &e
	case valueobjects.NodeTypeReasoning:
		var r ReasoningChain
		if err := json.Unmarshal(raw.Data, &r); err != nil {
			return fmt.Errorf("node %s: reasoning payload: %w", n.ID, err)
		}
		n.Data.Reasoning = &r
	default:
		return fmt.Errorf("node %s: unknown type %q", n.ID, n.Type)
	}
	return nil
}

func cloneFloat(f *float64) *float64 {
	if f == nil {
		return nil
	}
	v := *f
	return &v
}
