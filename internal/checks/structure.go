package checks

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/visibleai/siteaudit/internal/analysis"
)

// StructuredDataCheck looks for JSON-LD blocks and collects their schema
// types.
type StructuredDataCheck struct{}

func (StructuredDataCheck) Name() string                { return "structured_data" }
func (StructuredDataCheck) Category() analysis.Category { return analysis.CategoryStructure }

func (c StructuredDataCheck) Run(ctx context.Context, probe *Probe) (analysis.CheckResult, error) {
	doc, err := probe.Document(ctx)
	if err != nil {
		return analysis.CheckResult{}, err
	}

	var schemaTypes []string
	doc.Find(`script[type="application/ld+json"]`).Each(func(_ int, s *goquery.Selection) {
		var payload map[string]any
		if err := json.Unmarshal([]byte(s.Text()), &payload); err != nil {
			return
		}
		if t, ok := payload["@type"].(string); ok && t != "" {
			schemaTypes = append(schemaTypes, t)
		}
	})

	if len(schemaTypes) > 0 {
		return analysis.CheckResult{
			Status:        analysis.CheckStatusPass,
			Score:         100,
			Impact:        analysis.ImpactLow,
			FixDifficulty: analysis.FixMedium,
			Details:       map[string]any{"schemas_found": schemaTypes},
		}, nil
	}
	return analysis.CheckResult{
		Status:          analysis.CheckStatusWarn,
		Score:           50,
		Impact:          analysis.ImpactHigh,
		FixDifficulty:   analysis.FixMedium,
		Recommendation:  "Add JSON-LD structured data (Schema.org) to help AI understand your content",
		FixTimeEstimate: "1 hour",
		Details:         map[string]any{"message": "No structured data found"},
	}, nil
}

// Meta tag scoring penalties.
const (
	penaltyNoTitle   = 40
	penaltyLongTitle = 20
	penaltyNoDesc    = 30
	penaltyLongDesc  = 15
)

// MetaTagsCheck scores the title and description tags, deducting from a full
// score for each issue found.
type MetaTagsCheck struct{}

func (MetaTagsCheck) Name() string                { return "meta_tags" }
func (MetaTagsCheck) Category() analysis.Category { return analysis.CategoryStructure }

func (c MetaTagsCheck) Run(ctx context.Context, probe *Probe) (analysis.CheckResult, error) {
	doc, err := probe.Document(ctx)
	if err != nil {
		return analysis.CheckResult{}, err
	}

	title := strings.TrimSpace(doc.Find("title").First().Text())
	desc, _ := doc.Find(`meta[name="description"]`).Attr("content")
	desc = strings.TrimSpace(desc)

	score := 100
	var issues []string
	switch {
	case title == "":
		score -= penaltyNoTitle
		issues = append(issues, "Missing title tag")
	case len(title) > 60:
		score -= penaltyLongTitle
		issues = append(issues, fmt.Sprintf("Title too long (%d chars, max 60)", len(title)))
	}
	switch {
	case desc == "":
		score -= penaltyNoDesc
		issues = append(issues, "Missing meta description")
	case len(desc) > 160:
		score -= penaltyLongDesc
		issues = append(issues, fmt.Sprintf("Description too long (%d chars, max 160)", len(desc)))
	}

	if len(issues) == 0 {
		return analysis.CheckResult{
			Status:        analysis.CheckStatusPass,
			Score:         100,
			Impact:        analysis.ImpactLow,
			FixDifficulty: analysis.FixEasy,
			Details:       map[string]any{"title_length": len(title), "description_length": len(desc)},
		}, nil
	}

	status := analysis.CheckStatusWarn
	if score <= 50 {
		status = analysis.CheckStatusFail
	}
	return analysis.CheckResult{
		Status:          status,
		Score:           score,
		Impact:          analysis.ImpactMedium,
		FixDifficulty:   analysis.FixEasy,
		Recommendation:  strings.Join(issues, ". "),
		FixTimeEstimate: "15 minutes",
		Details:         map[string]any{"issues": issues, "title_length": len(title), "description_length": len(desc)},
	}, nil
}
