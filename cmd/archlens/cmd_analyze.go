// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/archlens/pkg/ux"
	"github.com/AleutianAI/archlens/services/analysis/datatypes"
	"github.com/AleutianAI/archlens/services/analysis/diagram"
	"github.com/AleutianAI/archlens/services/analysis/fallback"
)

// localReport is the result of an offline analysis run.
type localReport struct {
	FileName    string                     `json:"file_name"`
	Nodes       int                        `json:"nodes"`
	Edges       int                        `json:"edges"`
	Tier        string                     `json:"tier"`
	Description string                     `json:"description"`
	Results     *datatypes.AnalysisResults `json:"results"`
}

// analyzeLocally runs the full offline pipeline: parse, classify,
// detect patterns, describe, and score with the fallback generator.
// The oracle is never consulted.
func analyzeLocally(fileName string, raw []byte, catalogPath string) (*localReport, error) {
	graph, err := diagram.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%s is not a valid diagram document: %w", fileName, err)
	}

	catalog := diagram.DefaultCatalog()
	if catalogPath != "" {
		catalog, err = diagram.LoadCatalogFile(catalogPath)
		if err != nil {
			return nil, err
		}
	}

	summary := catalog.ClassifyGraph(graph)
	findings := diagram.DetectPatterns(graph, summary)
	results := fallback.Generate(graph, summary)
	results.Patterns = diagram.PatternNames(findings)

	return &localReport{
		FileName:    fileName,
		Nodes:       len(graph.Nodes),
		Edges:       len(graph.Edges),
		Tier:        summary.Tier.String(),
		Description: diagram.Describe(graph, summary, findings),
		Results:     results,
	}, nil
}

func runAnalyzeCommand(cmd *cobra.Command, args []string) {
	path := args[0]
	raw, err := os.ReadFile(path)
	if err != nil {
		log.Fatalf("Failed to read %s: %v", path, err)
	}

	report, err := analyzeLocally(filepath.Base(path), raw, catalogFile)
	if err != nil {
		log.Fatalf("Analysis failed: %v", err)
	}

	if outputJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(report); err != nil {
			log.Fatalf("Failed to encode report: %v", err)
		}
		return
	}

	printReport(report)
}

// printReport renders an offline report in the styled terminal format.
func printReport(report *localReport) {
	ux.Title("ArchLens: " + report.FileName)
	ux.Info(fmt.Sprintf("%d nodes, %d edges, %s detail", report.Nodes, report.Edges, report.Tier))
	fmt.Println()
	fmt.Println(report.Description)

	ux.Title("Offline Security Assessment")
	fmt.Printf("Overall: %s   Security: %s\n",
		ux.Score(report.Results.OverallScore), ux.Score(report.Results.Security.Score))

	if len(report.Results.Security.Issues) > 0 {
		fmt.Println()
		for _, issue := range report.Results.Security.Issues {
			fmt.Println("  " + formatIssueLine(issue))
		}
	}
	if len(report.Results.Security.Recommendations) > 0 {
		fmt.Println()
		ux.Title("Recommendations")
		for _, rec := range report.Results.Security.Recommendations {
			ux.Bullet(rec)
		}
	}
}

// formatIssueLine renders one security issue as a single line.
func formatIssueLine(issue datatypes.SecurityIssue) string {
	return fmt.Sprintf("%s %s: %s", ux.SeverityBadge(string(issue.Severity)),
		issue.Component, issue.Issue)
}
