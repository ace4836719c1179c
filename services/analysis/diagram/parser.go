// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package diagram

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// ErrMalformedDocument is returned when the input bytes are not
// parseable markup at all. This is the only hard failure of the parse
// path; a well-formed document with zero shapes parses successfully
// into an empty graph.
var ErrMalformedDocument = errors.New("malformed diagram document")

// mxGraph cell IDs "0" and "1" are the implicit root and default
// layer present in every export; they are never user shapes.
var reservedCellIDs = map[string]bool{"0": true, "1": true}

// mxCellXML mirrors the attributes of an mxGraph <mxCell> element.
// A cell with a non-empty value is a shape; a cell with both source
// and target set is a connector.
type mxCellXML struct {
	ID       string         `xml:"id,attr"`
	Value    string         `xml:"value,attr"`
	Style    string         `xml:"style,attr"`
	Source   string         `xml:"source,attr"`
	Target   string         `xml:"target,attr"`
	Geometry *mxGeometryXML `xml:"mxGeometry"`
}

// mxGeometryXML keeps coordinates as strings: exports occasionally
// carry empty or non-numeric values here, and geometry is advisory,
// so a bad coordinate must not fail the parse.
type mxGeometryXML struct {
	X      string `xml:"x,attr"`
	Y      string `xml:"y,attr"`
	Width  string `xml:"width,attr"`
	Height string `xml:"height,attr"`
}

// Parse decodes raw diagram bytes into a Graph.
//
// # Description
//
// Parse walks every <mxCell> element in the document, at any nesting
// depth. Cells with a non-empty (after trimming) value attribute and a
// non-reserved ID become nodes; cells with both source and target
// attributes become edges. Edges whose endpoints do not resolve to
// parsed nodes are dropped silently.
//
// A document with zero shapes is a valid, empty Graph (the EMPTY
// analysis tier), not an error. ErrMalformedDocument is reserved for
// input that is not well-formed XML at all (or contains no markup
// elements whatsoever).
//
// # Outputs
//
//   - *Graph: Parsed graph, node order matching document order
//   - error: Wraps ErrMalformedDocument on non-XML input
//
// Parse is a pure function of the input bytes.
func Parse(raw []byte) (*Graph, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, fmt.Errorf("%w: empty input", ErrMalformedDocument)
	}

	dec := xml.NewDecoder(bytes.NewReader(raw))
	var cells []mxCellXML
	sawElement := false

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedDocument, err)
		}
		se, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}
		sawElement = true
		if se.Name.Local != "mxCell" {
			continue
		}
		var cell mxCellXML
		if err := dec.DecodeElement(&cell, &se); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedDocument, err)
		}
		cells = append(cells, cell)
	}

	// Bare text with no elements tokenizes cleanly but is not markup.
	if !sawElement {
		return nil, fmt.Errorf("%w: no markup elements found", ErrMalformedDocument)
	}

	return buildGraph(cells), nil
}

// buildGraph assembles nodes then edges, dropping reserved cells,
// duplicate node IDs, and dangling edges.
func buildGraph(cells []mxCellXML) *Graph {
	g := &Graph{}
	nodeIDs := make(map[string]bool, len(cells))

	for _, cell := range cells {
		label := strings.TrimSpace(cell.Value)
		if label == "" || reservedCellIDs[cell.ID] {
			continue
		}
		// Connector cells carry their label in value; they are not shapes.
		if cell.Source != "" && cell.Target != "" {
			continue
		}
		if nodeIDs[cell.ID] {
			continue
		}
		nodeIDs[cell.ID] = true
		g.Nodes = append(g.Nodes, Node{
			ID:       cell.ID,
			Label:    label,
			Style:    cell.Style,
			Geometry: parseGeometry(cell.Geometry),
		})
	}

	for _, cell := range cells {
		if cell.Source == "" || cell.Target == "" {
			continue
		}
		// Dangling edges referencing missing shapes are dropped, not fatal.
		if !nodeIDs[cell.Source] || !nodeIDs[cell.Target] {
			continue
		}
		g.Edges = append(g.Edges, Edge{
			ID:     cell.ID,
			Source: cell.Source,
			Target: cell.Target,
			Label:  strings.TrimSpace(cell.Value),
		})
	}

	return g
}

// parseGeometry converts the string attributes to floats, tolerating
// anything non-numeric as zero.
func parseGeometry(raw *mxGeometryXML) *Geometry {
	if raw == nil {
		return nil
	}
	return &Geometry{
		X:      parseCoord(raw.X),
		Y:      parseCoord(raw.Y),
		Width:  parseCoord(raw.Width),
		Height: parseCoord(raw.Height),
	}
}

func parseCoord(s string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0
	}
	return v
}
