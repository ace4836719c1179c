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

// Pattern names. The catalog is fixed; detection order follows the
// declaration order here.
const (
	PatternLoadBalancedWeb  = "load-balanced-web-application"
	PatternServerlessAPI    = "serverless-api"
	PatternMultiTierStorage = "multi-tier-storage"
	PatternMicroservices    = "microservices"
	PatternEventDriven      = "event-driven"
	PatternCDN              = "content-delivery-network"
)

// PatternFinding is one detected architectural pattern with the nodes
// that support it. Findings are derived, read-only, and recomputed on
// every analysis.
type PatternFinding struct {
	Name              string   `json:"pattern_name"`
	SupportingNodeIDs []string `json:"supporting_node_ids"`
}

// DetectPatterns inspects the classified graph for recognizable
// architectural patterns.
//
// Patterns are independent and non-exclusive: a diagram may match
// several at once, and matching none is a normal outcome (common at
// the EMPTY and MINIMAL tiers). Topology-based patterns treat edge
// direction as advisory, since diagrams encode flow loosely.
//
// The result order is fixed (catalog order) and supporting node IDs
// are deduplicated in first-seen document order, so the output is
// deterministic for a given graph.
func DetectPatterns(g *Graph, s *Summary) []PatternFinding {
	var findings []PatternFinding

	categoryOf := make(map[string]Category, len(s.Matches))
	for _, m := range s.Matches {
		categoryOf[m.NodeID] = m.Category
	}

	// Load-balanced web tier: a load balancer wired to compute.
	if ids := connectedPair(g, categoryOf, CategoryLoadBalancer, CategoryCompute); len(ids) > 0 {
		findings = append(findings, PatternFinding{Name: PatternLoadBalancedWeb, SupportingNodeIDs: ids})
	}

	// Serverless API: a function wired to an API layer.
	if ids := connectedPair(g, categoryOf, CategoryServerless, CategoryAPILayer); len(ids) > 0 {
		findings = append(findings, PatternFinding{Name: PatternServerlessAPI, SupportingNodeIDs: ids})
	}

	// Multi-tier storage: at least two distinct data-store categories
	// present (object storage alongside databases).
	if s.CategoryCounts[CategoryStorage] > 0 && s.CategoryCounts[CategoryDatabase] > 0 {
		ids := nodeIDsInCategories(s, CategoryStorage, CategoryDatabase)
		findings = append(findings, PatternFinding{Name: PatternMultiTierStorage, SupportingNodeIDs: ids})
	}

	// Microservices: more than two independent functions.
	if s.CategoryCounts[CategoryServerless] > 2 {
		ids := nodeIDsInCategories(s, CategoryServerless)
		findings = append(findings, PatternFinding{Name: PatternMicroservices, SupportingNodeIDs: ids})
	}

	// Event-driven: any queueing or streaming service.
	if ids := nodeIDsWithServices(s, "sqs", "sns", "kinesis"); len(ids) > 0 {
		findings = append(findings, PatternFinding{Name: PatternEventDriven, SupportingNodeIDs: ids})
	}

	// CDN: CloudFront in front of anything.
	if ids := nodeIDsWithServices(s, "cloudfront"); len(ids) > 0 {
		findings = append(findings, PatternFinding{Name: PatternCDN, SupportingNodeIDs: ids})
	}

	return findings
}

// PatternNames projects findings to their names, preserving order.
func PatternNames(findings []PatternFinding) []string {
	names := make([]string, 0, len(findings))
	for _, f := range findings {
		names = append(names, f.Name)
	}
	return names
}

// connectedPair returns the IDs of nodes from catA and catB that are
// joined by at least one edge in either direction, in edge order.
func connectedPair(g *Graph, categoryOf map[string]Category, catA, catB Category) []string {
	var ids []string
	seen := make(map[string]bool)
	add := func(id string) {
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	for _, e := range g.Edges {
		sc, tc := categoryOf[e.Source], categoryOf[e.Target]
		if (sc == catA && tc == catB) || (sc == catB && tc == catA) {
			add(e.Source)
			add(e.Target)
		}
	}
	return ids
}

// nodeIDsInCategories returns node IDs in any of the categories, in
// document order.
func nodeIDsInCategories(s *Summary, cats ...Category) []string {
	want := make(map[Category]bool, len(cats))
	for _, c := range cats {
		want[c] = true
	}
	var ids []string
	for _, m := range s.Matches {
		if want[m.Category] {
			ids = append(ids, m.NodeID)
		}
	}
	return ids
}

// nodeIDsWithServices returns node IDs whose canonical service is one
// of the given ids, in document order.
func nodeIDsWithServices(s *Summary, services ...string) []string {
	want := make(map[string]bool, len(services))
	for _, svc := range services {
		want[svc] = true
	}
	var ids []string
	for _, m := range s.Matches {
		if m.Service != "" && want[m.Service] {
			ids = append(ids, m.NodeID)
		}
	}
	return ids
}
