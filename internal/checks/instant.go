package checks

import (
	"context"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/temoto/robotstxt"

	"github.com/visibleai/siteaudit/internal/analysis"
)

// aiBots lists the crawler agent strings checked against robots.txt.
var aiBots = []string{
	"GPTBot", "ChatGPT-User", "Claude-Web", "anthropic-ai",
	"Bard", "Gemini", "Bingbot", "msnbot", "facebookexternalhit",
	"PerplexityBot", "CCBot", "YouBot", "Diffbot", "SemrushBot", "AhrefsBot",
}

// primaryBots are the engine crawlers whose blocking is a critical failure.
var primaryBots = map[string]bool{
	"GPTBot":       true,
	"ChatGPT-User": true,
}

// BotAccessCheck parses the target's robots.txt and reports which known AI
// crawlers are denied access.
type BotAccessCheck struct{}

func (BotAccessCheck) Name() string                { return "ai_bot_access" }
func (BotAccessCheck) Category() analysis.Category { return analysis.CategoryAIReadiness }

func (c BotAccessCheck) Run(ctx context.Context, probe *Probe) (analysis.CheckResult, error) {
	target := probe.Target()
	resp, err := probe.Fetch(ctx, target.BaseURL+"/robots.txt")
	if err != nil {
		return analysis.CheckResult{}, fmt.Errorf("fetch robots.txt: %w", err)
	}
	if resp.StatusCode != 200 {
		return analysis.CheckResult{
			Status:          analysis.CheckStatusWarn,
			Score:           50,
			Impact:          analysis.ImpactHigh,
			FixDifficulty:   analysis.FixEasy,
			Recommendation:  "Create a robots.txt file to control AI bot access",
			FixTimeEstimate: "5 minutes",
			Details:         map[string]any{"message": "robots.txt not found"},
		}, nil
	}

	data, err := robotstxt.FromStatusAndBytes(resp.StatusCode, resp.Body)
	if err != nil {
		return analysis.CheckResult{}, fmt.Errorf("parse robots.txt: %w", err)
	}

	pagePath := strings.TrimPrefix(target.URL, target.BaseURL)
	if pagePath == "" {
		pagePath = "/"
	}
	partial := groupDisallows(resp.Body)

	var blocked []string
	primaryBlocked := false
	for _, bot := range aiBots {
		group := data.FindGroup(bot)
		denied := group != nil && (!group.Test("/") || !group.Test(pagePath))
		if !denied && !partial[bot] {
			continue
		}
		blocked = append(blocked, bot)
		if primaryBots[bot] {
			primaryBlocked = true
		}
	}

	switch {
	case primaryBlocked:
		return analysis.CheckResult{
			Status:          analysis.CheckStatusFail,
			Score:           0,
			Impact:          analysis.ImpactCritical,
			FixDifficulty:   analysis.FixEasy,
			Recommendation:  robotsFixInstructions(blocked),
			FixTimeEstimate: "5 minutes",
			Details: map[string]any{
				"blocked_bots": blocked,
				"message":      "Primary AI engine crawlers cannot access this site",
			},
		}, nil
	case len(blocked) > 0:
		return analysis.CheckResult{
			Status:          analysis.CheckStatusWarn,
			Score:           60,
			Impact:          analysis.ImpactHigh,
			FixDifficulty:   analysis.FixEasy,
			Recommendation:  "Some AI bots are blocked: " + strings.Join(blocked, ", "),
			FixTimeEstimate: "5 minutes",
			Details:         map[string]any{"blocked_bots": blocked},
		}, nil
	default:
		return analysis.CheckResult{
			Status:        analysis.CheckStatusPass,
			Score:         100,
			Impact:        analysis.ImpactLow,
			FixDifficulty: analysis.FixEasy,
			Details:       map[string]any{"message": "All AI bots have access"},
		}, nil
	}
}

// groupDisallows reports, per known AI bot, whether a robots.txt group naming
// that agent carries any non-empty Disallow rule. A sub-path disallow counts
// as blocking. Wildcard groups are left to the parsed matcher, which evaluates
// them against the page path.
func groupDisallows(body []byte) map[string]bool {
	blocked := make(map[string]bool)
	var agents []string
	inRules := false
	for _, line := range strings.Split(string(body), "\n") {
		if i := strings.Index(line, "#"); i >= 0 {
			line = line[:i]
		}
		key, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		key = strings.ToLower(strings.TrimSpace(key))
		value = strings.TrimSpace(value)
		switch key {
		case "user-agent":
			// Consecutive User-agent lines share one group; a rule line ends it.
			if inRules {
				agents = agents[:0]
				inRules = false
			}
			agents = append(agents, strings.ToLower(value))
		case "disallow":
			inRules = true
			if value == "" {
				continue
			}
			for _, agent := range agents {
				for _, bot := range aiBots {
					if strings.Contains(agent, strings.ToLower(bot)) {
						blocked[bot] = true
					}
				}
			}
		default:
			inRules = true
		}
	}
	return blocked
}

func robotsFixInstructions(blocked []string) string {
	var b strings.Builder
	b.WriteString("AI search engines cannot see this website. Allow the blocked crawlers in robots.txt:\n")
	for _, bot := range blocked {
		fmt.Fprintf(&b, "\nUser-agent: %s\nAllow: /\n", bot)
	}
	return b.String()
}

// LLMSTxtCheck looks for an llms.txt context file at the site root.
type LLMSTxtCheck struct{}

func (LLMSTxtCheck) Name() string                { return "llms_txt" }
func (LLMSTxtCheck) Category() analysis.Category { return analysis.CategoryAIReadiness }

func (c LLMSTxtCheck) Run(ctx context.Context, probe *Probe) (analysis.CheckResult, error) {
	resp, err := probe.Fetch(ctx, probe.Target().BaseURL+"/llms.txt")
	if err == nil && resp.StatusCode == 200 {
		return analysis.CheckResult{
			Status:        analysis.CheckStatusPass,
			Score:         100,
			Impact:        analysis.ImpactLow,
			FixDifficulty: analysis.FixEasy,
			Details:       map[string]any{"message": "llms.txt file found"},
		}, nil
	}
	details := map[string]any{"message": "llms.txt file not found"}
	if err != nil {
		details = map[string]any{"message": "could not check for llms.txt", "error": err.Error()}
	}
	return analysis.CheckResult{
		Status:          analysis.CheckStatusWarn,
		Score:           70,
		Impact:          analysis.ImpactMedium,
		FixDifficulty:   analysis.FixEasy,
		Recommendation:  "Create an llms.txt file to provide context for AI systems",
		FixTimeEstimate: "10 minutes",
		Details:         details,
	}, nil
}

// TransportSecurityCheck verifies the target is served over an encrypted
// scheme. It needs no network round trip.
type TransportSecurityCheck struct{}

func (TransportSecurityCheck) Name() string                { return "transport_security" }
func (TransportSecurityCheck) Category() analysis.Category { return analysis.CategoryTechnical }

func (c TransportSecurityCheck) Run(_ context.Context, probe *Probe) (analysis.CheckResult, error) {
	if !probe.Target().Secure {
		return analysis.CheckResult{
			Status:          analysis.CheckStatusFail,
			Score:           0,
			Impact:          analysis.ImpactCritical,
			FixDifficulty:   analysis.FixMedium,
			Recommendation:  "Enable HTTPS to secure your website",
			FixTimeEstimate: "1 hour",
			Details:         map[string]any{"message": "Site not using HTTPS"},
		}, nil
	}
	return analysis.CheckResult{
		Status:        analysis.CheckStatusPass,
		Score:         100,
		Impact:        analysis.ImpactLow,
		FixDifficulty: analysis.FixEasy,
		Details:       map[string]any{"message": "Site served over HTTPS"},
	}, nil
}

// HeadingStructureCheck analyzes the top-level heading hierarchy.
type HeadingStructureCheck struct{}

func (HeadingStructureCheck) Name() string                { return "heading_structure" }
func (HeadingStructureCheck) Category() analysis.Category { return analysis.CategoryStructure }

func (c HeadingStructureCheck) Run(ctx context.Context, probe *Probe) (analysis.CheckResult, error) {
	doc, err := probe.Document(ctx)
	if err != nil {
		return analysis.CheckResult{}, err
	}

	h1Count := doc.Find("h1").Length()
	questions := 0
	doc.Find("h1, h2, h3").Each(func(_ int, s *goquery.Selection) {
		if isInterrogative(strings.TrimSpace(s.Text())) {
			questions++
		}
	})

	switch {
	case h1Count == 0:
		return analysis.CheckResult{
			Status:          analysis.CheckStatusFail,
			Score:           0,
			Impact:          analysis.ImpactHigh,
			FixDifficulty:   analysis.FixEasy,
			Recommendation:  "Add a clear H1 tag to define your page topic",
			FixTimeEstimate: "5 minutes",
			Details:         map[string]any{"message": "No H1 tag found"},
		}, nil
	case h1Count > 1:
		return analysis.CheckResult{
			Status:          analysis.CheckStatusWarn,
			Score:           70,
			Impact:          analysis.ImpactMedium,
			FixDifficulty:   analysis.FixEasy,
			Recommendation:  "Use only one H1 tag per page",
			FixTimeEstimate: "10 minutes",
			Details:         map[string]any{"message": fmt.Sprintf("Multiple H1 tags found (%d)", h1Count)},
		}, nil
	case questions > 0:
		return analysis.CheckResult{
			Status:        analysis.CheckStatusPass,
			Score:         80,
			Impact:        analysis.ImpactLow,
			FixDifficulty: analysis.FixEasy,
			Details:       map[string]any{"h1_count": h1Count, "question_headings": questions},
		}, nil
	default:
		return analysis.CheckResult{
			Status:          analysis.CheckStatusWarn,
			Score:           60,
			Impact:          analysis.ImpactMedium,
			FixDifficulty:   analysis.FixEasy,
			Recommendation:  "Add more question-based headings for better AI optimization",
			FixTimeEstimate: "15 minutes",
			Details:         map[string]any{"h1_count": h1Count, "question_headings": 0},
		}, nil
	}
}
