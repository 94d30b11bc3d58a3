package checks

import (
	"context"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/visibleai/siteaudit/internal/analysis"
)

// Content depth thresholds and penalties.
const (
	maxAvgParagraphWords = 100
	minTotalWords        = 300

	penaltyLongParagraphs = 30
	penaltyThinContent    = 40
	penaltyNoLists        = 20
)

// ContentDepthCheck scores how substantial and scannable the page content is.
type ContentDepthCheck struct{}

func (ContentDepthCheck) Name() string                { return "content_depth" }
func (ContentDepthCheck) Category() analysis.Category { return analysis.CategoryContent }

func (c ContentDepthCheck) Run(ctx context.Context, probe *Probe) (analysis.CheckResult, error) {
	doc, err := probe.Document(ctx)
	if err != nil {
		return analysis.CheckResult{}, err
	}

	paragraphs := doc.Find("p")
	if paragraphs.Length() == 0 {
		return analysis.CheckResult{
			Status:          analysis.CheckStatusFail,
			Score:           0,
			Impact:          analysis.ImpactCritical,
			FixDifficulty:   analysis.FixHard,
			Recommendation:  "Page has no paragraph content. Add substantial text content",
			FixTimeEstimate: "4 hours",
			Details:         map[string]any{"message": "No paragraph content found"},
		}, nil
	}

	// The word total spans the whole document text, not just paragraphs, so
	// list- and div-heavy pages are not misread as thin. Script and style
	// payloads do not count as content.
	totalWords := wordCount(doc.Find("body").Text())
	doc.Find("body script, body style").Each(func(_ int, s *goquery.Selection) {
		totalWords -= wordCount(s.Text())
	})

	paraWords, paraCount := 0, 0
	paragraphs.Each(func(_ int, s *goquery.Selection) {
		if n := wordCount(s.Text()); n > 0 {
			paraWords += n
			paraCount++
		}
	})
	avgWords := 0
	if paraCount > 0 {
		avgWords = paraWords / paraCount
	}
	lists := doc.Find("ul, ol").Length()
	tables := doc.Find("table").Length()

	score := 100
	var issues []string
	if avgWords > maxAvgParagraphWords {
		score -= penaltyLongParagraphs
		issues = append(issues, fmt.Sprintf("Paragraphs too long (avg %d words). Break them up", avgWords))
	}
	if totalWords < minTotalWords {
		score -= penaltyThinContent
		issues = append(issues, fmt.Sprintf("Thin content (%d words). Add more depth", totalWords))
	}
	if lists+tables == 0 {
		score -= penaltyNoLists
		issues = append(issues, "No lists or tables. Add structured elements for scannability")
	}
	if score < 0 {
		score = 0
	}

	details := map[string]any{
		"word_count":           totalWords,
		"avg_paragraph_length": avgWords,
		"lists":                lists,
		"tables":               tables,
	}

	if len(issues) == 0 {
		return analysis.CheckResult{
			Status:        analysis.CheckStatusPass,
			Score:         100,
			Impact:        analysis.ImpactLow,
			FixDifficulty: analysis.FixMedium,
			Details:       details,
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
		FixDifficulty:   analysis.FixMedium,
		Recommendation:  strings.Join(issues, ". "),
		FixTimeEstimate: "2 hours",
		Details:         details,
	}, nil
}

// Direct answer paragraph bounds, in words.
const (
	directAnswerMinWords = 40
	directAnswerMaxWords = 60
)

// DirectAnswersCheck verifies that question headings are followed by a
// concise answer paragraph, the format AI engines lift into responses.
type DirectAnswersCheck struct{}

func (DirectAnswersCheck) Name() string                { return "direct_answers" }
func (DirectAnswersCheck) Category() analysis.Category { return analysis.CategoryContent }

func (c DirectAnswersCheck) Run(ctx context.Context, probe *Probe) (analysis.CheckResult, error) {
	doc, err := probe.Document(ctx)
	if err != nil {
		return analysis.CheckResult{}, err
	}

	questionHeadings := 0
	answered := 0
	doc.Find("h1, h2, h3, h4").Each(func(_ int, s *goquery.Selection) {
		if !isInterrogative(strings.TrimSpace(s.Text())) {
			return
		}
		questionHeadings++
		next := s.NextFiltered("p")
		if next.Length() == 0 {
			return
		}
		if n := wordCount(next.Text()); n >= directAnswerMinWords && n <= directAnswerMaxWords {
			answered++
		}
	})

	details := map[string]any{"question_headings": questionHeadings, "direct_answers": answered}
	switch {
	case questionHeadings == 0:
		return analysis.CheckResult{
			Status:          analysis.CheckStatusFail,
			Score:           0,
			Impact:          analysis.ImpactCritical,
			FixDifficulty:   analysis.FixMedium,
			Recommendation:  "Add question-based headings followed by direct 40-60 word answers",
			FixTimeEstimate: "2 hours",
			Details:         details,
		}, nil
	case answered == questionHeadings:
		return analysis.CheckResult{
			Status:        analysis.CheckStatusPass,
			Score:         100,
			Impact:        analysis.ImpactLow,
			FixDifficulty: analysis.FixMedium,
			Details:       details,
		}, nil
	case answered > 0:
		return analysis.CheckResult{
			Status:          analysis.CheckStatusWarn,
			Score:           60,
			Impact:          analysis.ImpactMedium,
			FixDifficulty:   analysis.FixMedium,
			Recommendation:  "Some question headings lack a concise 40-60 word answer paragraph",
			FixTimeEstimate: "1 hour",
			Details:         details,
		}, nil
	default:
		return analysis.CheckResult{
			Status:          analysis.CheckStatusFail,
			Score:           20,
			Impact:          analysis.ImpactHigh,
			FixDifficulty:   analysis.FixMedium,
			Recommendation:  "Question headings exist but none are followed by a direct answer paragraph",
			FixTimeEstimate: "2 hours",
			Details:         details,
		}, nil
	}
}

// minInternalLinks is the smallest same-origin link count considered healthy.
const minInternalLinks = 3

// InternalLinkingCheck counts same-origin links on the page.
type InternalLinkingCheck struct{}

func (InternalLinkingCheck) Name() string                { return "internal_linking" }
func (InternalLinkingCheck) Category() analysis.Category { return analysis.CategoryContent }

func (c InternalLinkingCheck) Run(ctx context.Context, probe *Probe) (analysis.CheckResult, error) {
	doc, err := probe.Document(ctx)
	if err != nil {
		return analysis.CheckResult{}, err
	}

	target := probe.Target()
	internal, external := 0, 0
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		href = strings.TrimSpace(href)
		if href == "" || strings.HasPrefix(href, "#") ||
			strings.HasPrefix(href, "mailto:") || strings.HasPrefix(href, "tel:") ||
			strings.HasPrefix(href, "javascript:") {
			return
		}
		if target.SameOrigin(href) {
			internal++
		} else {
			external++
		}
	})

	details := map[string]any{"internal_links": internal, "external_links": external}
	if internal < minInternalLinks {
		return analysis.CheckResult{
			Status:          analysis.CheckStatusFail,
			Score:           30,
			Impact:          analysis.ImpactHigh,
			FixDifficulty:   analysis.FixEasy,
			Recommendation:  fmt.Sprintf("Only %d internal links found. Add more to help AI crawlers discover related content", internal),
			FixTimeEstimate: "1 hour",
			Details:         details,
		}, nil
	}
	return analysis.CheckResult{
		Status:        analysis.CheckStatusPass,
		Score:         100,
		Impact:        analysis.ImpactLow,
		FixDifficulty: analysis.FixEasy,
		Details:       details,
	}, nil
}
