package entities

import (
	"encoding/json"
	"fmt"
	"time"
)

// ClaimType follows the claim extractor's classification
type ClaimType string

const (
	ClaimTypeHypothesis ClaimType = "hypothesis"
	ClaimTypeAssertion  ClaimType = "assertion"
	ClaimTypeQuestion   ClaimType = "question"
)

// EvidenceType is the stance evidence takes toward the claims it touches
type EvidenceType string

const (
	EvidenceSupporting    EvidenceType = "supporting"
	EvidenceContradicting EvidenceType = "contradicting"
	EvidenceNeutral       EvidenceType = "neutral"
)

// ReasoningType is the inference style of a reasoning chain
type ReasoningType string

const (
	ReasoningDeductive ReasoningType = "deductive"
	ReasoningInductive ReasoningType = "inductive"
	ReasoningAbductive ReasoningType = "abductive"
)

// Claim is the payload of a claim node
type Claim struct {
	ID         string    `json:"id"`
	ProjectID  string    `json:"projectId,omitempty"`
	Title      string    `json:"title"`
	Text       string    `json:"text"`
	Type       ClaimType `json:"type"`
	Confidence float64   `json:"confidence"`
	Keywords   []string  `json:"keywords,omitempty"`
	Tags       []string  `json:"tags,omitempty"`
	Status     string    `json:"status,omitempty"`
	Version    int       `json:"version,omitempty"`
	UpdatedAt  time.Time `json:"updatedAt,omitempty"`
}

// Evidence is the payload of an evidence node
type Evidence struct {
	ID          string       `json:"id"`
	Text        string       `json:"text"`
	Type        EvidenceType `json:"type"`
	Source      string       `json:"source,omitempty"`
	Reliability float64      `json:"reliability"`
	ClaimIDs    []string     `json:"claimIds,omitempty"`
}

// ReasoningStep is one link in a reasoning chain
type ReasoningStep struct {
	StepNumber   int      `json:"stepNumber"`
	Text         string   `json:"text"`
	Confidence   float64  `json:"confidence"`
	Type         string   `json:"type"`
	EvidenceUsed []string `json:"evidenceUsed,omitempty"`
}

// ReasoningChain is the payload of a reasoning node
type ReasoningChain struct {
	ID                string          `json:"id"`
	ClaimID           string          `json:"claimId,omitempty"`
	Type              ReasoningType   `json:"type"`
	Steps             []ReasoningStep `json:"steps"`
	OverallConfidence float64         `json:"overallConfidence"`
	LogicalValidity   float64         `json:"logicalValidity"`
}

// Clone returns a deep copy of the claim
func (c Claim) Clone() Claim {
	out := c
	out.Keywords = cloneStrings(c.Keywords)
	out.Tags = cloneStrings(c.Tags)
	return out
}

// Merge applies a field-level patch keyed by JSON field name. Fields not
// named in changes keep their value. Unknown keys are ignored.
func (c Claim) Merge(changes map[string]interface{}) (Claim, error) {
	if len(changes) == 0 {
		return c.Clone(), nil
	}

	base, err := json.Marshal(c)
	if err != nil {
		return Claim{}, err
	}
	fields := map[string]interface{}{}
	if err := json.Unmarshal(base, &fields); err != nil {
		return Claim{}, err
	}
	for k, v := range changes {
		if k == "id" {
			continue
		}
		fields[k] = v
	}

	merged, err := json.Marshal(fields)
	if err != nil {
		return Claim{}, err
	}
	var out Claim
	if err := json.Unmarshal(merged, &out); err != nil {
		return Claim{}, fmt.Errorf("claim patch: %w", err)
	}
	return out, nil
}

// Label is the text a graph node shows for this claim
func (c Claim) Label() string {
	if c.Title != "" {
		return c.Title
	}
	return truncate(c.Text, 80)
}

// Clone returns a deep copy of the evidence
func (e Evidence) Clone() Evidence {
	out := e
	out.ClaimIDs = cloneStrings(e.ClaimIDs)
	return out
}

// Clone returns a deep copy of the reasoning chain
func (r ReasoningChain) Clone() ReasoningChain {
	out := r
	if r.Steps == nil {
		return out
	}
	out.Steps = make([]ReasoningStep, len(r.Steps))
	for i, s := range r.Steps {
		s.EvidenceUsed = cloneStrings(s.EvidenceUsed)
		out.Steps[i] = s
	}
	return out
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

// cloneStrings keeps nil and empty slices distinct so clones stay deep-equal
func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}
