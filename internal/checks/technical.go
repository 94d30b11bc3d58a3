package checks

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/visibleai/siteaudit/internal/analysis"
)

// Latency thresholds for the page speed check.
const (
	speedPassThreshold = 2500 * time.Millisecond
	speedWarnThreshold = 4 * time.Second
)

// PageSpeedCheck measures end-to-end fetch latency for the target page with
// its own timed request.
type PageSpeedCheck struct{}

func (PageSpeedCheck) Name() string                { return "page_speed" }
func (PageSpeedCheck) Category() analysis.Category { return analysis.CategoryTechnical }

func (c PageSpeedCheck) Run(ctx context.Context, probe *Probe) (analysis.CheckResult, error) {
	resp, err := probe.Fetch(ctx, probe.Target().URL)
	if err != nil {
		return analysis.CheckResult{}, fmt.Errorf("timed fetch: %w", err)
	}
	details := map[string]any{"load_time": fmt.Sprintf("%.2f seconds", resp.Duration.Seconds())}

	switch {
	case resp.Duration < speedPassThreshold:
		return analysis.CheckResult{
			Status:        analysis.CheckStatusPass,
			Score:         100,
			Impact:        analysis.ImpactLow,
			FixDifficulty: analysis.FixMedium,
			Details:       details,
		}, nil
	case resp.Duration < speedWarnThreshold:
		return analysis.CheckResult{
			Status:          analysis.CheckStatusWarn,
			Score:           70,
			Impact:          analysis.ImpactMedium,
			FixDifficulty:   analysis.FixMedium,
			Recommendation:  "Optimize page load time to under 2.5 seconds",
			FixTimeEstimate: "2 hours",
			Details:         details,
		}, nil
	default:
		return analysis.CheckResult{
			Status:          analysis.CheckStatusFail,
			Score:           30,
			Impact:          analysis.ImpactHigh,
			FixDifficulty:   analysis.FixMedium,
			Recommendation:  "Page loads too slowly. Optimize images, minify CSS/JS, and enable caching",
			FixTimeEstimate: "2 hours",
			Details:         details,
		}, nil
	}
}

// MobileViewportCheck verifies a responsive viewport meta tag is present.
type MobileViewportCheck struct{}

func (MobileViewportCheck) Name() string                { return "mobile_viewport" }
func (MobileViewportCheck) Category() analysis.Category { return analysis.CategoryTechnical }

func (c MobileViewportCheck) Run(ctx context.Context, probe *Probe) (analysis.CheckResult, error) {
	doc, err := probe.Document(ctx)
	if err != nil {
		return analysis.CheckResult{}, err
	}
	content, _ := doc.Find(`meta[name="viewport"]`).Attr("content")
	if strings.Contains(content, "width=device-width") {
		return analysis.CheckResult{
			Status:        analysis.CheckStatusPass,
			Score:         100,
			Impact:        analysis.ImpactLow,
			FixDifficulty: analysis.FixEasy,
			Details:       map[string]any{"message": "Mobile viewport configured"},
		}, nil
	}
	return analysis.CheckResult{
		Status:          analysis.CheckStatusFail,
		Score:           0,
		Impact:          analysis.ImpactHigh,
		FixDifficulty:   analysis.FixEasy,
		Recommendation:  `Add a viewport meta tag: <meta name="viewport" content="width=device-width, initial-scale=1">`,
		FixTimeEstimate: "5 minutes",
		Details:         map[string]any{"message": "No mobile viewport found"},
	}, nil
}

// SitemapCheck looks for a sitemap.xml at the site root.
type SitemapCheck struct{}

func (SitemapCheck) Name() string                { return "sitemap" }
func (SitemapCheck) Category() analysis.Category { return analysis.CategoryTechnical }

func (c SitemapCheck) Run(ctx context.Context, probe *Probe) (analysis.CheckResult, error) {
	resp, err := probe.Fetch(ctx, probe.Target().BaseURL+"/sitemap.xml")
	if err == nil && resp.StatusCode == 200 {
		return analysis.CheckResult{
			Status:        analysis.CheckStatusPass,
			Score:         100,
			Impact:        analysis.ImpactLow,
			FixDifficulty: analysis.FixEasy,
			Details:       map[string]any{"message": "sitemap.xml found"},
		}, nil
	}
	details := map[string]any{"message": "sitemap.xml not found"}
	if err != nil {
		details = map[string]any{"message": "could not check for sitemap", "error": err.Error()}
	}
	return analysis.CheckResult{
		Status:          analysis.CheckStatusWarn,
		Score:           60,
		Impact:          analysis.ImpactMedium,
		FixDifficulty:   analysis.FixEasy,
		Recommendation:  "Create a sitemap.xml file to help AI bots discover all your pages",
		FixTimeEstimate: "30 minutes",
		Details:         details,
	}, nil
}
