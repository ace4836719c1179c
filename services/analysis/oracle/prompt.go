package oracle

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/tmc/langchaingo/textsplitter"

	"github.com/AleutianAI/archlens/services/analysis/datatypes"
)

const (
	// systemPrompt pins the model into reviewer mode. Kept short so it
	// never competes with the diagram content for context budget.
	systemPrompt = "You are a cloud security architect reviewing AWS architecture diagrams. " +
		"You respond with a single JSON object and nothing else."

	// maxDescriptionChars bounds how much of the generated description
	// is forwarded. Descriptions are usually far smaller; pathological
	// diagrams with thousands of nodes must not blow the prompt budget.
	maxDescriptionChars = 4000
)

var descriptionSeparators = []string{"\n\n", "\n", " ", ""}

// BuildPrompt renders the analysis request into the user prompt. The
// output is deterministic: services are listed in sorted order and the
// description is truncated at stable boundaries.
func BuildPrompt(req Request) string {
	var b strings.Builder

	b.WriteString("Analyze the security posture of the following AWS architecture.\n\n")
	fmt.Fprintf(&b, "Diagram file: %s\n", req.FileName)
	fmt.Fprintf(&b, "Detail level: %s\n", req.Tier)

	if len(req.Services) > 0 {
		ids := make([]string, 0, len(req.Services))
		for id := range req.Services {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		b.WriteString("Services: ")
		for i, id := range ids {
			if i > 0 {
				b.WriteString(", ")
			}
			fmt.Fprintf(&b, "%s x%d", id, req.Services[id])
		}
		b.WriteString("\n")
	}
	if len(req.Patterns) > 0 {
		fmt.Fprintf(&b, "Detected patterns: %s\n", strings.Join(req.Patterns, ", "))
	}

	b.WriteString("\nArchitecture description:\n")
	b.WriteString(boundDescription(req.Description))
	b.WriteString("\n\nRespond with only a JSON object in exactly this form:\n")
	b.WriteString(`{
  "overall_score": <number 0-10>,
  "security": {
    "score": <number 0-10>,
    "issues": [
      {
        "severity": "HIGH" | "MEDIUM" | "LOW",
        "component": "<node label>",
        "issue": "<what is wrong>",
        "recommendation": "<how to fix it>",
        "aws_service": "<service name, omit if unknown>"
      }
    ],
    "recommendations": ["<overall improvement>"]
  }
}`)
	return b.String()
}

// boundDescription truncates an oversized description at a natural
// boundary rather than mid-word.
func boundDescription(desc string) string {
	if len(desc) <= maxDescriptionChars {
		return desc
	}
	splitter := textsplitter.NewRecursiveCharacter(
		textsplitter.WithChunkSize(maxDescriptionChars),
		textsplitter.WithChunkOverlap(0),
		textsplitter.WithSeparators(descriptionSeparators),
	)
	chunks, err := splitter.SplitText(desc)
	if err != nil || len(chunks) == 0 {
		return desc[:maxDescriptionChars]
	}
	return chunks[0]
}

// ExtractJSON pulls the first-to-last brace span out of raw model
// text. Models wrap JSON in prose or markdown fences often enough that
// parsing the raw text directly would reject good answers.
func ExtractJSON(raw string) (string, bool) {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end <= start {
		return "", false
	}
	return raw[start : end+1], true
}

// ParseResults turns raw oracle text into validated analysis results.
// Any failure here means the response is unusable and the exchange
// counts as the service being unavailable.
func ParseResults(raw string) (*datatypes.AnalysisResults, error) {
	blob, ok := ExtractJSON(raw)
	if !ok {
		return nil, fmt.Errorf("oracle response contains no JSON object")
	}

	var results datatypes.AnalysisResults
	if err := json.Unmarshal([]byte(blob), &results); err != nil {
		return nil, fmt.Errorf("parsing oracle response: %w", err)
	}

	// Models are loose about severity casing.
	for i := range results.Security.Issues {
		sev := strings.ToUpper(strings.TrimSpace(string(results.Security.Issues[i].Severity)))
		results.Security.Issues[i].Severity = datatypes.IssueSeverity(sev)
	}

	if err := results.Validate(); err != nil {
		return nil, fmt.Errorf("oracle response failed validation: %w", err)
	}
	return &results, nil
}
