package entities

// GraphData is one logical snapshot of the graph
type GraphData struct {
	Nodes []GraphNode `json:"nodes"`
	Links []GraphLink `json:"links"`
}

// Clone returns a deep copy. nil and empty slices are preserved as-is.
func (g GraphData) Clone() GraphData {
	var out GraphData
	if g.Nodes != nil {
		out.Nodes = make([]GraphNode, len(g.Nodes))
		for i, n := range g.Nodes {
			out.Nodes[i] = n.Clone()
		}
	}
	if g.Links != nil {
		out.Links = make([]GraphLink, len(g.Links))
		for i, l := range g.Links {
			out.Links[i] = l.Clone()
		}
	}
	return out
}

// NodeIndex maps node id to position in Nodes
func (g GraphData) NodeIndex() map[string]int {
	idx := make(map[string]int, len(g.Nodes))
	for i, n := range g.Nodes {
		idx[n.ID] = i
	}
	return idx
}

// ValidLinks returns the links whose endpoints both exist in the snapshot
func (g GraphData) ValidLinks() []GraphLink {
	idx := g.NodeIndex()
	out := make([]GraphLink, 0, len(g.Links))
	for _, l := range g.Links {
		if _, ok := idx[l.SourceID()]; !ok {
			continue
		}
		if _, ok := idx[l.TargetID()]; !ok {
			continue
		}
		out = append(out, l)
	}
	return out
}
