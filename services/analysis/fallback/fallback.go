// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package fallback computes a deterministic, rule-based security
// analysis used whenever the oracle cannot. The same tier value that
// drove the description drives the scoring policy here, so a diagram
// described as "no services detected" can never come back with a
// healthy score.
package fallback

import (
	"fmt"
	"strings"

	"github.com/AleutianAI/archlens/services/analysis/datatypes"
	"github.com/AleutianAI/archlens/services/analysis/diagram"
)

// Tier score policy. EMPTY and MINIMAL are fixed scores; RICH starts
// from a baseline and subtracts per-finding penalties.
const (
	emptyScore   = 1.0
	minimalScore = 3.0
	richBaseline = 8.0

	publicPenaltyPer    = 0.5
	publicPenaltyCap    = 2.0
	unencryptedPer      = 0.3
	unencryptedCap      = 1.5
	securityCreditPer   = 0.2
	securityCreditCap   = 1.0
)

// Label and style markers for the exposure heuristics. Matching is
// case-insensitive substring, same as the classifier.
var (
	publicMarkers    = []string{"public", "internet", "external"}
	protectedMarkers = []string{"private", "encrypted"}
)

// Generate computes the rule-based analysis for a classified diagram.
//
// The summary's tier selects the policy:
//
//   - EMPTY: fixed low score with one HIGH finding, since nothing
//     recognizable means nothing can be vouched for.
//   - MINIMAL: fixed cautious score with a MEDIUM finding noting the
//     diagram is too sparse to review meaningfully.
//   - RICH: baseline-minus-penalty scoring with component-specific
//     findings (public data stores, unencrypted storage, missing IAM
//     or WAF coverage).
//
// Output is a pure function of (graph, summary): no clock, no
// randomness, byte-identical across calls.
func Generate(g *diagram.Graph, s *diagram.Summary) *datatypes.AnalysisResults {
	switch s.Tier {
	case diagram.TierEmpty:
		return emptyResults()
	case diagram.TierMinimal:
		return minimalResults(s)
	default:
		return richResults(g, s)
	}
}

func emptyResults() *datatypes.AnalysisResults {
	return &datatypes.AnalysisResults{
		OverallScore: emptyScore,
		Security: datatypes.SecurityAnalysis{
			Score: emptyScore,
			Issues: []datatypes.SecurityIssue{{
				Severity:       datatypes.SeverityHigh,
				Component:      "Diagram",
				Issue:          "No AWS services detected in the diagram",
				Recommendation: "Add AWS services with proper labels (e.g., 'EC2 Instance', 'S3 Bucket', 'RDS Database')",
			}},
			Recommendations: []string{
				"Label each shape with the AWS service it represents",
				"Connect components to show how data flows between them",
			},
		},
	}
}

func minimalResults(s *diagram.Summary) *datatypes.AnalysisResults {
	return &datatypes.AnalysisResults{
		OverallScore: minimalScore,
		Security: datatypes.SecurityAnalysis{
			Score: minimalScore,
			Issues: []datatypes.SecurityIssue{{
				Severity:       datatypes.SeverityMedium,
				Component:      "Architecture",
				Issue:          fmt.Sprintf("Limited services detected (%d) - may not represent complete architecture", s.ClassifiedCount),
				Recommendation: "Add the remaining components and their connections to enable a meaningful security review",
			}},
			Recommendations: []string{
				"Include every service the workload depends on, not just the core path",
				"Mark data stores that hold sensitive data so encryption needs are visible",
			},
		},
	}
}

func richResults(g *diagram.Graph, s *diagram.Summary) *datatypes.AnalysisResults {
	var issues []datatypes.SecurityIssue

	public := publicDataNodes(g, s)
	for _, m := range public {
		issues = append(issues, datatypes.SecurityIssue{
			Severity:       datatypes.SeverityHigh,
			Component:      m.Label,
			Issue:          "Data store appears publicly accessible based on its label or styling",
			Recommendation: "Restrict public access and require explicit, audited exceptions",
			AWSService:     m.Service,
		})
	}

	unencrypted := unencryptedStorageNodes(g, s)
	for _, m := range unencrypted {
		issues = append(issues, datatypes.SecurityIssue{
			Severity:       datatypes.SeverityMedium,
			Component:      m.Label,
			Issue:          "No encryption at rest indicated for this storage component",
			Recommendation: "Enable server-side encryption and note it in the diagram",
			AWSService:     m.Service,
		})
	}

	if !s.HasService("iam") {
		issues = append(issues, datatypes.SecurityIssue{
			Severity:       datatypes.SeverityMedium,
			Component:      "Architecture",
			Issue:          "No identity and access management boundary appears in the diagram",
			Recommendation: "Define IAM roles and least-privilege policies for every service-to-service call",
		})
	}

	webFacing := s.CategoryCounts[diagram.CategoryCompute] > 0 ||
		s.CategoryCounts[diagram.CategoryAPILayer] > 0 ||
		s.CategoryCounts[diagram.CategoryLoadBalancer] > 0
	if webFacing && !s.HasService("waf") {
		issues = append(issues, datatypes.SecurityIssue{
			Severity:       datatypes.SeverityLow,
			Component:      "Architecture",
			Issue:          "Web-facing services without a web application firewall in front",
			Recommendation: "Place AWS WAF on the internet-facing entry points",
		})
	}

	score := richBaseline
	score -= min(publicPenaltyCap, float64(len(public))*publicPenaltyPer)
	score -= min(unencryptedCap, float64(len(unencrypted))*unencryptedPer)
	score += min(securityCreditCap, float64(s.CategoryCounts[diagram.CategorySecurity])*securityCreditPer)
	score = clamp(score, 0, 10)

	recs := []string{
		"Enable encryption at rest and in transit for every data store",
		"Apply least-privilege IAM policies to all components",
	}
	if s.CategoryCounts[diagram.CategoryMonitoring] == 0 {
		recs = append(recs, "Add CloudWatch monitoring and alerting for the critical path")
	}

	return &datatypes.AnalysisResults{
		OverallScore: score,
		Security: datatypes.SecurityAnalysis{
			Score:           score,
			Issues:          issues,
			Recommendations: recs,
		},
	}
}

// publicDataNodes returns storage- and database-category nodes whose
// label or style carries a public-exposure marker, in document order.
// The check is deliberately scoped to data stores: an Internet Gateway
// is supposed to face the internet.
func publicDataNodes(g *diagram.Graph, s *diagram.Summary) []diagram.ServiceMatch {
	var out []diagram.ServiceMatch
	for _, m := range s.Matches {
		if m.Category != diagram.CategoryStorage && m.Category != diagram.CategoryDatabase {
			continue
		}
		if nodeHasMarker(g, m, publicMarkers) {
			out = append(out, m)
		}
	}
	return out
}

// unencryptedStorageNodes returns storage-category nodes with no
// private/encrypted marker. Storage that does not say it is protected
// is scored as if it is not.
func unencryptedStorageNodes(g *diagram.Graph, s *diagram.Summary) []diagram.ServiceMatch {
	var out []diagram.ServiceMatch
	for _, m := range s.Matches {
		if m.Category != diagram.CategoryStorage {
			continue
		}
		if !nodeHasMarker(g, m, protectedMarkers) {
			out = append(out, m)
		}
	}
	return out
}

func nodeHasMarker(g *diagram.Graph, m diagram.ServiceMatch, markers []string) bool {
	haystack := strings.ToLower(m.Label)
	if n, ok := g.Node(m.NodeID); ok {
		haystack += " " + strings.ToLower(n.Style)
	}
	for _, marker := range markers {
		if strings.Contains(haystack, marker) {
			return true
		}
	}
	return false
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
