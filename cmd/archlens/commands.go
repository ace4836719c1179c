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
	"github.com/spf13/cobra"
)

// --- Global Command Variables ---
var (
	serverURL   string // Base URL of the running analysis service
	outputJSON  bool   // Emit machine-readable JSON instead of styled text
	catalogFile string // Override the compiled-in classification catalog

	rootCmd = &cobra.Command{
		Use:   "archlens",
		Short: "A cli for the ArchLens architecture diagram analysis service",
		Long: `ArchLens analyzes draw.io architecture diagrams: it classifies the
				services a diagram depicts, detects architecture patterns, and
				scores the security posture. Use 'analyze' for a fully offline
				run, or submit/status/result against a running service.`,
	}

	// --- Offline ---
	analyzeCmd = &cobra.Command{
		Use:   "analyze [diagram.xml]",
		Short: "Analyze a diagram locally without the service or the oracle",
		Args:  cobra.ExactArgs(1),
		Run:   runAnalyzeCommand, // Defined in cmd_analyze.go
	}

	// --- Against a running service ---
	submitCmd = &cobra.Command{
		Use:   "submit [diagram.xml]",
		Short: "Submit a diagram to the analysis service",
		Args:  cobra.ExactArgs(1),
		Run:   runSubmitCommand, // Defined in cmd_remote.go
	}
	statusCmd = &cobra.Command{
		Use:   "status [analysis_id]",
		Short: "Show the status of a submitted analysis",
		Args:  cobra.ExactArgs(1),
		Run:   runStatusCommand, // Defined in cmd_remote.go
	}
	resultCmd = &cobra.Command{
		Use:   "result [analysis_id]",
		Short: "Fetch the full result of a submitted analysis",
		Args:  cobra.ExactArgs(1),
		Run:   runResultCommand, // Defined in cmd_remote.go
	}
)

// init runs when the Go program starts
func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "http://localhost:12310",
		"Base URL of the analysis service")
	rootCmd.PersistentFlags().BoolVar(&outputJSON, "json", false,
		"Print raw JSON output for scripting")

	rootCmd.AddCommand(analyzeCmd)
	analyzeCmd.Flags().StringVar(&catalogFile, "catalog", "",
		"Path to a catalog YAML file replacing the compiled-in one")

	rootCmd.AddCommand(submitCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(resultCmd)
}
