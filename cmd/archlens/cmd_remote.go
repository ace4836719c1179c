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
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/archlens/pkg/ux"
	"github.com/AleutianAI/archlens/services/analysis/datatypes"
)

// apiClient is shared by all remote commands. Submissions carry whole
// diagrams, so the timeout is generous.
var apiClient = &http.Client{Timeout: 60 * time.Second}

// apiURL joins the server base URL and a path without doubling
// slashes.
func apiURL(server, path string) string {
	return strings.TrimRight(server, "/") + path
}

// decodeResponse reads the body and, for success codes, decodes JSON
// into dst. Error responses come back as an error carrying the body so
// the user sees the service's own message.
func decodeResponse(resp *http.Response, dst any) error {
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read the service response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("the analysis service returned %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}
	if err := json.Unmarshal(body, dst); err != nil {
		return fmt.Errorf("failed to parse the service response: %w", err)
	}
	return nil
}

// submitDiagram uploads one diagram file to the service.
func submitDiagram(server, path string) (*datatypes.SubmitResponse, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer file.Close()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", filepath.Base(path))
	if err != nil {
		return nil, err
	}
	if _, err := io.Copy(fw, file); err != nil {
		return nil, fmt.Errorf("failed to buffer %s: %w", path, err)
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}

	resp, err := apiClient.Post(apiURL(server, "/api/analyze"), mw.FormDataContentType(), &buf)
	if err != nil {
		return nil, fmt.Errorf("failed to reach the analysis service: %w", err)
	}
	var submitted datatypes.SubmitResponse
	if err := decodeResponse(resp, &submitted); err != nil {
		return nil, err
	}
	return &submitted, nil
}

// fetchStatus polls the lightweight status endpoint.
func fetchStatus(server, analysisID string) (*datatypes.StatusResponse, error) {
	resp, err := apiClient.Get(apiURL(server, "/api/analysis/"+analysisID+"/status"))
	if err != nil {
		return nil, fmt.Errorf("failed to reach the analysis service: %w", err)
	}
	var status datatypes.StatusResponse
	if err := decodeResponse(resp, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// fetchResult retrieves the full analysis record.
func fetchResult(server, analysisID string) (*datatypes.DetailResponse, error) {
	resp, err := apiClient.Get(apiURL(server, "/api/analysis/"+analysisID))
	if err != nil {
		return nil, fmt.Errorf("failed to reach the analysis service: %w", err)
	}
	var detail datatypes.DetailResponse
	if err := decodeResponse(resp, &detail); err != nil {
		return nil, err
	}
	return &detail, nil
}

func runSubmitCommand(cmd *cobra.Command, args []string) {
	submitted, err := submitDiagram(serverURL, args[0])
	if err != nil {
		log.Fatalf("Submit failed: %v", err)
	}

	if outputJSON {
		printJSON(submitted)
		return
	}

	ux.Success("Analysis started")
	fmt.Printf("  ID:     %s\n", submitted.AnalysisID)
	fmt.Printf("  Status: %s\n", ux.StatusBadge(string(submitted.Status)))
	if submitted.Description != "" {
		fmt.Println()
		fmt.Println(submitted.Description)
	}
	ux.Info(fmt.Sprintf("Run 'archlens result %s' once processing finishes.", submitted.AnalysisID))
}

func runStatusCommand(cmd *cobra.Command, args []string) {
	status, err := fetchStatus(serverURL, args[0])
	if err != nil {
		log.Fatalf("Status check failed: %v", err)
	}

	if outputJSON {
		printJSON(status)
		return
	}

	fmt.Printf("%s  %s (%.0f%%)\n", status.AnalysisID,
		ux.StatusBadge(string(status.Status)), status.Progress*100)
}

func runResultCommand(cmd *cobra.Command, args []string) {
	detail, err := fetchResult(serverURL, args[0])
	if err != nil {
		log.Fatalf("Result fetch failed: %v", err)
	}

	if outputJSON {
		printJSON(detail)
		return
	}

	printDetail(detail)
}

// printDetail renders a full analysis record in the styled format.
func printDetail(detail *datatypes.DetailResponse) {
	ux.Title("ArchLens: " + detail.FileName)
	fmt.Printf("  ID:     %s\n", detail.AnalysisID)
	fmt.Printf("  Status: %s\n", ux.StatusBadge(string(detail.Status)))

	if detail.Status == datatypes.StatusFailed {
		ux.Error(detail.ErrorMessage)
		return
	}
	if detail.Results == nil {
		ux.Info("Still processing. Check again shortly.")
		return
	}

	fmt.Println()
	fmt.Println(detail.Description)

	ux.Title("Security Assessment")
	fmt.Printf("Overall: %s   Security: %s\n",
		ux.Score(detail.Results.OverallScore), ux.Score(detail.Results.Security.Score))

	if len(detail.Results.Patterns) > 0 {
		fmt.Println()
		ux.Title("Detected Patterns")
		for _, pattern := range detail.Results.Patterns {
			ux.Bullet(pattern)
		}
	}
	if len(detail.Results.Security.Issues) > 0 {
		fmt.Println()
		ux.Title("Issues")
		for _, issue := range detail.Results.Security.Issues {
			fmt.Println("  " + formatIssueLine(issue))
		}
	}
	if len(detail.Results.Security.Recommendations) > 0 {
		fmt.Println()
		ux.Title("Recommendations")
		for _, rec := range detail.Results.Security.Recommendations {
			ux.Bullet(rec)
		}
	}
}

// printJSON writes any payload as indented JSON to stdout.
func printJSON(payload any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(payload); err != nil {
		log.Fatalf("Failed to encode response: %v", err)
	}
}
