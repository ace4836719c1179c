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
	"fmt"
	"strings"
)

// EmptyDiagramMessage is the fixed EMPTY-tier description. Tests and
// the fallback scorer both key off this exact wording, so it must stay
// in lockstep with the tier threading.
const EmptyDiagramMessage = "No AWS services were detected in the uploaded diagram. " +
	"Please ensure your diagram contains AWS service components with recognizable labels " +
	"(e.g., 'EC2 Instance', 'S3 Bucket', 'RDS Database')."

// Describe generates the tiered natural-language description of a
// classified diagram.
//
// The tier carried by the summary (computed once, shared with the
// fallback scorer) selects the depth:
//
//   - EMPTY: a fixed educational message, nothing else.
//   - MINIMAL: the per-category inventory plus an explicit note that
//     pattern detection is limited. No pattern or data-flow sections.
//   - RICH: inventory, detected patterns, a best-effort data-flow
//     narrative from ingress nodes toward terminal data stores, and a
//     security-posture note.
//
// Output is deterministic: same graph, same bytes.
func Describe(g *Graph, s *Summary, findings []PatternFinding) string {
	switch s.Tier {
	case TierEmpty:
		return EmptyDiagramMessage
	case TierMinimal:
		return describeMinimal(s)
	default:
		return describeRich(g, s, findings)
	}
}

func describeMinimal(s *Summary) string {
	var b strings.Builder
	fmt.Fprintf(&b, "This architecture diagram contains %d detected %s:\n\n",
		s.ClassifiedCount, pluralize(s.ClassifiedCount, "service", "services"))
	writeInventory(&b, s)
	b.WriteString("\nArchitectural pattern detection is limited: the diagram contains too few " +
		"services or connections to infer patterns reliably. Add more labeled components " +
		"and their connections for a deeper analysis.")
	return b.String()
}

func describeRich(g *Graph, s *Summary, findings []PatternFinding) string {
	var b strings.Builder
	fmt.Fprintf(&b, "This architecture diagram contains %d detected %s:\n\n",
		s.ClassifiedCount, pluralize(s.ClassifiedCount, "service", "services"))
	writeInventory(&b, s)

	if len(findings) > 0 {
		b.WriteString("\n**Architecture Patterns Detected:**\n")
		for _, f := range findings {
			fmt.Fprintf(&b, "- %s\n", f.Name)
		}
	}

	if flow := dataFlowNarrative(g, s); flow != "" {
		b.WriteString("\n**Data Flow:**\n")
		b.WriteString(flow)
		b.WriteString("\n")
	}

	b.WriteString("\n**Security Aspects:**\n")
	b.WriteString(securityAspects(s))
	return b.String()
}

// writeInventory emits one line per populated category, in canonical
// category order, listing the matched node labels in document order.
// The per-category counts sum to the classified node count.
func writeInventory(b *strings.Builder, s *Summary) {
	for _, cat := range Categories {
		matches := s.MatchesInCategory(cat)
		if len(matches) == 0 {
			continue
		}
		labels := make([]string, 0, len(matches))
		generic := 0
		for _, m := range matches {
			labels = append(labels, m.Label)
			if m.Generic() {
				generic++
			}
		}
		line := fmt.Sprintf("- %s: %d (%s)", cat.DisplayName(), len(matches), strings.Join(labels, ", "))
		if generic > 0 {
			line += fmt.Sprintf(" — includes %d generic %s", generic,
				pluralize(generic, "component", "components"))
		}
		b.WriteString(line)
		b.WriteString("\n")
	}
}

// dataFlowNarrative walks edges from an ingress node (gateway, load
// balancer, or API layer; failing that, any source-only node) toward
// the first reachable storage or database node and renders the path.
// Returns "" when the graph has no usable flow to narrate.
func dataFlowNarrative(g *Graph, s *Summary) string {
	if len(g.Edges) == 0 {
		return ""
	}

	adj := g.Adjacency()
	in, out := g.Degrees()

	var starts []string
	for _, m := range s.Matches {
		switch m.Category {
		case CategoryNetworkingGateway, CategoryLoadBalancer, CategoryAPILayer:
			if out[m.NodeID] > 0 {
				starts = append(starts, m.NodeID)
			}
		}
	}
	if len(starts) == 0 {
		for _, n := range g.Nodes {
			if in[n.ID] == 0 && out[n.ID] > 0 {
				starts = append(starts, n.ID)
			}
		}
	}

	isStore := func(id string) bool {
		m, ok := s.Match(id)
		return ok && (m.Category == CategoryStorage || m.Category == CategoryDatabase)
	}

	for _, start := range starts {
		if path := walkToStore(start, adj, isStore); len(path) > 1 {
			labels := make([]string, 0, len(path))
			for _, id := range path {
				if n, ok := g.Node(id); ok {
					labels = append(labels, n.Label)
				}
			}
			return strings.Join(labels, " -> ")
		}
	}

	// No store-terminated path; fall back to naming the endpoints.
	var entries, terminals []string
	for _, n := range g.Nodes {
		if in[n.ID] == 0 && out[n.ID] > 0 {
			entries = append(entries, n.Label)
		}
		if out[n.ID] == 0 && in[n.ID] > 0 {
			terminals = append(terminals, n.Label)
		}
	}
	if len(entries) > 0 && len(terminals) > 0 {
		return fmt.Sprintf("Data flows from %s toward %s.",
			strings.Join(entries, ", "), strings.Join(terminals, ", "))
	}
	return ""
}

// walkToStore runs a depth-first walk along directed edges, expanding
// neighbors in document order, and returns the first path ending at a
// data store.
func walkToStore(start string, adj map[string][]string, isStore func(string) bool) []string {
	visited := map[string]bool{start: true}
	path := []string{start}

	var dfs func() []string
	dfs = func() []string {
		current := path[len(path)-1]
		for _, next := range adj[current] {
			if visited[next] {
				continue
			}
			visited[next] = true
			path = append(path, next)
			if isStore(next) {
				result := make([]string, len(path))
				copy(result, path)
				return result
			}
			if found := dfs(); found != nil {
				return found
			}
			path = path[:len(path)-1]
		}
		return nil
	}
	return dfs()
}

// securityAspects notes which present categories bear on security
// posture: monitoring, dedicated security services, and network
// boundaries.
func securityAspects(s *Summary) string {
	var present, absent []string

	if n := s.CategoryCounts[CategoryMonitoring]; n > 0 {
		present = append(present, fmt.Sprintf("monitoring is present (%s)", categoryLabels(s, CategoryMonitoring)))
	} else {
		absent = append(absent, "no monitoring services detected")
	}
	if n := s.CategoryCounts[CategorySecurity]; n > 0 {
		present = append(present, fmt.Sprintf("dedicated security services are present (%s)", categoryLabels(s, CategorySecurity)))
	} else {
		absent = append(absent, "no dedicated security services (IAM, WAF) detected")
	}
	if s.CategoryCounts[CategoryNetworkingGateway] > 0 {
		present = append(present, "network boundary components are present")
	}

	var parts []string
	if len(present) > 0 {
		parts = append(parts, capitalize(strings.Join(present, "; "))+".")
	}
	if len(absent) > 0 {
		parts = append(parts, capitalize(strings.Join(absent, "; "))+".")
	}
	if len(parts) == 0 {
		return "No security-relevant components detected."
	}
	return strings.Join(parts, " ")
}

func categoryLabels(s *Summary, cat Category) string {
	matches := s.MatchesInCategory(cat)
	labels := make([]string, 0, len(matches))
	for _, m := range matches {
		labels = append(labels, m.Label)
	}
	return strings.Join(labels, ", ")
}

func pluralize(n int, singular, plural string) string {
	if n == 1 {
		return singular
	}
	return plural
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
