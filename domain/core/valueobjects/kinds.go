package valueobjects

// NodeType is the kind of domain payload a graph node carries
type NodeType string

const (
	NodeTypeClaim     NodeType = "claim"
	NodeTypeEvidence  NodeType = "evidence"
	NodeTypeReasoning NodeType = "reasoning"
)

// Valid reports whether t is a known node type
func (t NodeType) Valid() bool {
	switch t {
	case NodeTypeClaim, NodeTypeEvidence, NodeTypeReasoning:
		return true
	}
	return false
}

// LinkType is the relationship a link expresses
type LinkType string

const (
	LinkTypeSupports    LinkType = "supports"
	LinkTypeContradicts LinkType = "contradicts"
	LinkTypeRelates     LinkType = "relates"
	LinkTypeReasoning   LinkType = "reasoning"
)

// Valid reports whether t is a known relationship type
func (t LinkType) Valid() bool {
	switch t {
	case LinkTypeSupports, LinkTypeContradicts, LinkTypeRelates, LinkTypeReasoning:
		return true
	}
	return false
}

// ParseLinkType converts a wire string, returning false for unknown types
func ParseLinkType(s string) (LinkType, bool) {
	t := LinkType(s)
	return t, t.Valid()
}
