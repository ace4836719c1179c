// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package diagram implements the diagram understanding pipeline:
// parsing an uploaded XML diagram into a typed graph, classifying each
// node against a service catalog, detecting architectural patterns in
// the classified graph, and generating a tiered natural-language
// description.
//
// Everything in this package is deterministic: the same input bytes
// always produce the same graph, the same classifications, the same
// patterns, and a byte-identical description. Node order is document
// order throughout.
package diagram

// Geometry is the bounding box of a diagram node. Informational only;
// no pipeline stage keys off position.
type Geometry struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Node is one shape element of the diagram.
//
// Label is the shape's free text, whitespace-trimmed. Style is the raw
// styling string and is used only as a secondary classification hint.
// Nodes are created once per parse pass and never mutated.
type Node struct {
	ID       string    `json:"id"`
	Label    string    `json:"label"`
	Style    string    `json:"style,omitempty"`
	Geometry *Geometry `json:"geometry,omitempty"`
}

// Edge is one connector element. Direction is advisory: diagrams often
// encode flow loosely, so consumers treat edges as weakly directed.
type Edge struct {
	ID     string `json:"id,omitempty"`
	Source string `json:"source"`
	Target string `json:"target"`
	Label  string `json:"label,omitempty"`
}

// Graph is the parsed form of one diagram document. Nodes preserve
// document order for deterministic downstream output. Both endpoint
// IDs of every edge are guaranteed to resolve to nodes in the same
// graph (dangling edges are dropped during parsing).
type Graph struct {
	Nodes []Node `json:"nodes"`
	Edges []Edge `json:"edges"`
}

// Node returns the node with the given ID, or false if absent.
func (g *Graph) Node(id string) (*Node, bool) {
	for i := range g.Nodes {
		if g.Nodes[i].ID == id {
			return &g.Nodes[i], true
		}
	}
	return nil, false
}

// Degrees returns the in-degree and out-degree of every node. Node IDs
// absent from the maps have degree zero.
func (g *Graph) Degrees() (in map[string]int, out map[string]int) {
	in = make(map[string]int, len(g.Nodes))
	out = make(map[string]int, len(g.Nodes))
	for _, e := range g.Edges {
		out[e.Source]++
		in[e.Target]++
	}
	return in, out
}

// Adjacency returns the outgoing adjacency list in document edge
// order, so traversals that expand neighbors in list order are
// deterministic.
func (g *Graph) Adjacency() map[string][]string {
	adj := make(map[string][]string, len(g.Nodes))
	for _, e := range g.Edges {
		adj[e.Source] = append(adj[e.Source], e.Target)
	}
	return adj
}
