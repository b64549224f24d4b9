package valueobjects

import (
	"bytes"
	"encoding/json"
	"errors"
)

// NodeRef is the resolved form of a link endpoint. Layout code may hand
// back full node objects; only the id matters to the store.
type NodeRef struct {
	ID    string `json:"id"`
	Label string `json:"label,omitempty"`
}

// Endpoint is one end of a link: either a bare node id or a resolved node
// reference. Read the id through ID(); never compare the raw forms.
type Endpoint struct {
	id  string
	ref *NodeRef
}

// EndpointID builds an endpoint from a bare id
func EndpointID(id string) Endpoint {
	return Endpoint{id: id}
}

// EndpointRef builds an endpoint from a resolved node reference
func EndpointRef(ref NodeRef) Endpoint {
	r := ref
	return Endpoint{ref: &r}
}

// ID returns the canonical node id
func (e Endpoint) ID() string {
	if e.ref != nil {
		return e.ref.ID
	}
	return e.id
}

// IsResolved reports whether the endpoint carries a node reference
func (e Endpoint) IsResolved() bool {
	return e.ref != nil
}

// Ref returns the node reference, if any
func (e Endpoint) Ref() (NodeRef, bool) {
	if e.ref == nil {
		return NodeRef{}, false
	}
	return *e.ref, true
}

// Normalize drops the reference and keeps only the id
func (e Endpoint) Normalize() Endpoint {
	return EndpointID(e.ID())
}

// IsZero reports whether the endpoint names no node
func (e Endpoint) IsZero() bool {
	return e.ID() == ""
}

// Equals compares endpoints by node id
func (e Endpoint) Equals(other Endpoint) bool {
	return e.ID() == other.ID()
}

// MarshalJSON always writes the canonical id
func (e Endpoint) MarshalJSON() ([]byte, error) {
	return json.Marshal(e.ID())
}

// UnmarshalJSON accepts either "id" or {"id": "..."}
func (e *Endpoint) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*e = Endpoint{}
		return nil
	}

	switch data[0] {
	case '"':
		var id string
		if err := json.Unmarshal(data, &id); err != nil {
			return err
		}
		*e = EndpointID(id)
		return nil
	case '{':
		var ref NodeRef
		if err := json.Unmarshal(data, &ref); err != nil {
			return err
		}
		if ref.ID == "" {
			return errors.New("endpoint object has no id")
		}
		*e = EndpointRef(ref)
		return nil
	default:
		return errors.New("endpoint must be a string or an object with an id")
	}
}
