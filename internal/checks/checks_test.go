package checks

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/visibleai/siteaudit/internal/aiengine"
	"github.com/visibleai/siteaudit/internal/analysis"
)

func TestBotAccessPrimaryBlocked(t *testing.T) {
	t.Parallel()

	robots := "User-agent: GPTBot\nDisallow: /\n"
	probe := newTestProbe(t, "https://example.com", map[string]stubResponse{
		"https://example.com/robots.txt": {status: 200, body: robots},
	})

	res := RunOne(context.Background(), BotAccessCheck{}, probe)
	require.Equal(t, analysis.CheckStatusFail, res.Status)
	require.Equal(t, 0, res.Score)
	require.Equal(t, analysis.ImpactCritical, res.Impact)
	require.Contains(t, res.Details["blocked_bots"], "GPTBot")
}

func TestBotAccessSecondaryBlocked(t *testing.T) {
	t.Parallel()

	robots := "User-agent: SemrushBot\nDisallow: /\n"
	probe := newTestProbe(t, "https://example.com", map[string]stubResponse{
		"https://example.com/robots.txt": {status: 200, body: robots},
	})

	res := RunOne(context.Background(), BotAccessCheck{}, probe)
	require.Equal(t, analysis.CheckStatusWarn, res.Status)
	require.Equal(t, 60, res.Score)
	require.Equal(t, analysis.ImpactHigh, res.Impact)
}

func TestBotAccessPartialDisallowBlocksAgent(t *testing.T) {
	t.Parallel()

	// A sub-path disallow in the agent's own group counts as blocking even
	// though the root stays fetchable.
	robots := "User-agent: GPTBot\nDisallow: /private\n"
	probe := newTestProbe(t, "https://example.com", map[string]stubResponse{
		"https://example.com/robots.txt": {status: 200, body: robots},
	})

	res := RunOne(context.Background(), BotAccessCheck{}, probe)
	require.Equal(t, analysis.CheckStatusFail, res.Status)
	require.Equal(t, 0, res.Score)
	require.Equal(t, analysis.ImpactCritical, res.Impact)
	require.Contains(t, res.Details["blocked_bots"], "GPTBot")
}

func TestBotAccessPartialDisallowSecondary(t *testing.T) {
	t.Parallel()

	robots := "User-agent: CCBot\nDisallow: /archive\n"
	probe := newTestProbe(t, "https://example.com", map[string]stubResponse{
		"https://example.com/robots.txt": {status: 200, body: robots},
	})

	res := RunOne(context.Background(), BotAccessCheck{}, probe)
	require.Equal(t, analysis.CheckStatusWarn, res.Status)
	require.Equal(t, 60, res.Score)
	require.Contains(t, res.Details["blocked_bots"], "CCBot")
}

func TestBotAccessWildcardSubPathDisallowPasses(t *testing.T) {
	t.Parallel()

	// A generic sub-path disallow for every crawler does not single out AI
	// bots; the page itself stays reachable.
	robots := "User-agent: *\nDisallow: /admin\n"
	probe := newTestProbe(t, "https://example.com", map[string]stubResponse{
		"https://example.com/robots.txt": {status: 200, body: robots},
	})

	res := RunOne(context.Background(), BotAccessCheck{}, probe)
	require.Equal(t, analysis.CheckStatusPass, res.Status)
	require.Equal(t, 100, res.Score)
}

func TestBotAccessMissingRobots(t *testing.T) {
	t.Parallel()

	probe := newTestProbe(t, "https://example.com", map[string]stubResponse{
		"https://example.com/robots.txt": {status: 404},
	})

	res := RunOne(context.Background(), BotAccessCheck{}, probe)
	require.Equal(t, analysis.CheckStatusWarn, res.Status)
	require.Equal(t, 50, res.Score)
}

func TestBotAccessAllAllowed(t *testing.T) {
	t.Parallel()

	robots := "User-agent: *\nAllow: /\n"
	probe := newTestProbe(t, "https://example.com", map[string]stubResponse{
		"https://example.com/robots.txt": {status: 200, body: robots},
	})

	res := RunOne(context.Background(), BotAccessCheck{}, probe)
	require.Equal(t, analysis.CheckStatusPass, res.Status)
	require.Equal(t, 100, res.Score)
}

func TestLLMSTxt(t *testing.T) {
	t.Parallel()

	found := newTestProbe(t, "https://example.com", map[string]stubResponse{
		"https://example.com/llms.txt": {status: 200, body: "# context"},
	})
	res := RunOne(context.Background(), LLMSTxtCheck{}, found)
	require.Equal(t, analysis.CheckStatusPass, res.Status)

	missing := newTestProbe(t, "https://example.com", map[string]stubResponse{
		"https://example.com/llms.txt": {status: 404},
	})
	res = RunOne(context.Background(), LLMSTxtCheck{}, missing)
	require.Equal(t, analysis.CheckStatusWarn, res.Status)
	require.Equal(t, 70, res.Score)
}

func TestTransportSecurity(t *testing.T) {
	t.Parallel()

	insecure := newTestProbe(t, "http://example.com", nil)
	res := RunOne(context.Background(), TransportSecurityCheck{}, insecure)
	require.Equal(t, analysis.CheckStatusFail, res.Status)
	require.Equal(t, analysis.ImpactCritical, res.Impact)

	secure := newTestProbe(t, "https://example.com", nil)
	res = RunOne(context.Background(), TransportSecurityCheck{}, secure)
	require.Equal(t, analysis.CheckStatusPass, res.Status)
}

func TestHeadingStructure(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		html   string
		status analysis.CheckStatus
		score  int
	}{
		{"no h1", "<html><body><p>text</p></body></html>", analysis.CheckStatusFail, 0},
		{"multiple h1", "<html><body><h1>A</h1><h1>B</h1></body></html>", analysis.CheckStatusWarn, 70},
		{"question heading", "<html><body><h1>What is AI visibility?</h1></body></html>", analysis.CheckStatusPass, 80},
		{"no questions", "<html><body><h1>Our Product</h1></body></html>", analysis.CheckStatusWarn, 60},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			probe := newTestProbe(t, "https://example.com", map[string]stubResponse{
				"https://example.com/": {status: 200, body: tc.html},
			})
			res := RunOne(context.Background(), HeadingStructureCheck{}, probe)
			require.Equal(t, tc.status, res.Status)
			require.Equal(t, tc.score, res.Score)
		})
	}
}

func TestPageSpeedThresholds(t *testing.T) {
	t.Parallel()

	cases := []struct {
		dur    time.Duration
		status analysis.CheckStatus
		score  int
	}{
		{time.Second, analysis.CheckStatusPass, 100},
		{3 * time.Second, analysis.CheckStatusWarn, 70},
		{5 * time.Second, analysis.CheckStatusFail, 30},
	}
	for _, tc := range cases {
		probe := newTestProbe(t, "https://example.com", map[string]stubResponse{
			"https://example.com/": {status: 200, body: "<html></html>", duration: tc.dur},
		})
		res := RunOne(context.Background(), PageSpeedCheck{}, probe)
		require.Equal(t, tc.status, res.Status)
		require.Equal(t, tc.score, res.Score)
	}
}

func TestMobileViewport(t *testing.T) {
	t.Parallel()

	withTag := `<html><head><meta name="viewport" content="width=device-width, initial-scale=1"></head></html>`
	probe := newTestProbe(t, "https://example.com", map[string]stubResponse{
		"https://example.com/": {status: 200, body: withTag},
	})
	res := RunOne(context.Background(), MobileViewportCheck{}, probe)
	require.Equal(t, analysis.CheckStatusPass, res.Status)

	probe = newTestProbe(t, "https://example.com", map[string]stubResponse{
		"https://example.com/": {status: 200, body: "<html><head></head></html>"},
	})
	res = RunOne(context.Background(), MobileViewportCheck{}, probe)
	require.Equal(t, analysis.CheckStatusFail, res.Status)
	require.Equal(t, 0, res.Score)
}

func TestSitemap(t *testing.T) {
	t.Parallel()

	probe := newTestProbe(t, "https://example.com", map[string]stubResponse{
		"https://example.com/sitemap.xml": {status: 200, body: "<urlset/>"},
	})
	res := RunOne(context.Background(), SitemapCheck{}, probe)
	require.Equal(t, analysis.CheckStatusPass, res.Status)

	probe = newTestProbe(t, "https://example.com", map[string]stubResponse{
		"https://example.com/sitemap.xml": {status: 404},
	})
	res = RunOne(context.Background(), SitemapCheck{}, probe)
	require.Equal(t, analysis.CheckStatusWarn, res.Status)
	require.Equal(t, 60, res.Score)
}

func TestStructuredData(t *testing.T) {
	t.Parallel()

	withLD := `<html><head><script type="application/ld+json">{"@type":"Organization"}</script></head></html>`
	probe := newTestProbe(t, "https://example.com", map[string]stubResponse{
		"https://example.com/": {status: 200, body: withLD},
	})
	res := RunOne(context.Background(), StructuredDataCheck{}, probe)
	require.Equal(t, analysis.CheckStatusPass, res.Status)
	require.Contains(t, res.Details["schemas_found"], "Organization")

	probe = newTestProbe(t, "https://example.com", map[string]stubResponse{
		"https://example.com/": {status: 200, body: "<html></html>"},
	})
	res = RunOne(context.Background(), StructuredDataCheck{}, probe)
	require.Equal(t, analysis.CheckStatusWarn, res.Status)
	require.Equal(t, 50, res.Score)
}

func TestMetaTagsPenalties(t *testing.T) {
	t.Parallel()

	// Missing title (-40) and missing description (-30) leaves 30 -> fail.
	probe := newTestProbe(t, "https://example.com", map[string]stubResponse{
		"https://example.com/": {status: 200, body: "<html><head></head></html>"},
	})
	res := RunOne(context.Background(), MetaTagsCheck{}, probe)
	require.Equal(t, analysis.CheckStatusFail, res.Status)
	require.Equal(t, 30, res.Score)

	clean := `<html><head><title>Short title</title><meta name="description" content="A concise description."></head></html>`
	probe = newTestProbe(t, "https://example.com", map[string]stubResponse{
		"https://example.com/": {status: 200, body: clean},
	})
	res = RunOne(context.Background(), MetaTagsCheck{}, probe)
	require.Equal(t, analysis.CheckStatusPass, res.Status)
	require.Equal(t, 100, res.Score)
}

func TestContentDepth(t *testing.T) {
	t.Parallel()

	probe := newTestProbe(t, "https://example.com", map[string]stubResponse{
		"https://example.com/": {status: 200, body: "<html><body><h1>Title</h1></body></html>"},
	})
	res := RunOne(context.Background(), ContentDepthCheck{}, probe)
	require.Equal(t, analysis.CheckStatusFail, res.Status)
	require.Equal(t, 0, res.Score)
	require.Equal(t, analysis.ImpactCritical, res.Impact)

	// Thin content (-40) and no lists (-20): 40 -> fail.
	thin := "<html><body><p>just a few words here</p></body></html>"
	probe = newTestProbe(t, "https://example.com", map[string]stubResponse{
		"https://example.com/": {status: 200, body: thin},
	})
	res = RunOne(context.Background(), ContentDepthCheck{}, probe)
	require.Equal(t, analysis.CheckStatusFail, res.Status)
	require.Equal(t, 40, res.Score)
	require.Equal(t, 5, res.Details["word_count"])
}

func TestContentDepthCountsWholeDocument(t *testing.T) {
	t.Parallel()

	// Most of the text lives in list items; the total must still clear the
	// thin-content threshold.
	page := "<html><body>\n" +
		wordsHTMLParagraph(20) + "\n" + wordsHTMLParagraph(20) + "\n" +
		"<ul><li>" + wordsText(300) + "</li></ul>\n" +
		"</body></html>"
	probe := newTestProbe(t, "https://example.com", map[string]stubResponse{
		"https://example.com/": {status: 200, body: page},
	})

	res := RunOne(context.Background(), ContentDepthCheck{}, probe)
	require.Equal(t, analysis.CheckStatusPass, res.Status)
	require.Equal(t, 100, res.Score)
	require.Equal(t, 340, res.Details["word_count"])
	require.Equal(t, 20, res.Details["avg_paragraph_length"])
}

func TestContentDepthIgnoresEmptyParagraphs(t *testing.T) {
	t.Parallel()

	// The empty paragraph must not drag the average below the long-paragraph
	// threshold.
	page := "<html><body><p></p>" + wordsHTMLParagraph(120) + "</body></html>"
	probe := newTestProbe(t, "https://example.com", map[string]stubResponse{
		"https://example.com/": {status: 200, body: page},
	})

	res := RunOne(context.Background(), ContentDepthCheck{}, probe)
	require.Equal(t, 120, res.Details["avg_paragraph_length"])
	require.Contains(t, res.Recommendation, "Paragraphs too long")
}

func TestDirectAnswers(t *testing.T) {
	t.Parallel()

	answer := wordsHTMLParagraph(50)

	allAnswered := "<html><body><h2>What is this?</h2>" + answer + "</body></html>"
	probe := newTestProbe(t, "https://example.com", map[string]stubResponse{
		"https://example.com/": {status: 200, body: allAnswered},
	})
	res := RunOne(context.Background(), DirectAnswersCheck{}, probe)
	require.Equal(t, analysis.CheckStatusPass, res.Status)
	require.Equal(t, 100, res.Score)

	noQuestions := "<html><body><h2>Overview</h2><p>text</p></body></html>"
	probe = newTestProbe(t, "https://example.com", map[string]stubResponse{
		"https://example.com/": {status: 200, body: noQuestions},
	})
	res = RunOne(context.Background(), DirectAnswersCheck{}, probe)
	require.Equal(t, analysis.CheckStatusFail, res.Status)
	require.Equal(t, 0, res.Score)

	unanswered := "<html><body><h2>Why choose us?</h2><p>short</p></body></html>"
	probe = newTestProbe(t, "https://example.com", map[string]stubResponse{
		"https://example.com/": {status: 200, body: unanswered},
	})
	res = RunOne(context.Background(), DirectAnswersCheck{}, probe)
	require.Equal(t, analysis.CheckStatusFail, res.Status)
	require.Equal(t, 20, res.Score)
}

func TestInternalLinking(t *testing.T) {
	t.Parallel()

	linked := `<html><body>
		<a href="/a">a</a><a href="/b">b</a><a href="/c">c</a>
		<a href="https://other.com/d">d</a>
	</body></html>`
	probe := newTestProbe(t, "https://example.com", map[string]stubResponse{
		"https://example.com/": {status: 200, body: linked},
	})
	res := RunOne(context.Background(), InternalLinkingCheck{}, probe)
	require.Equal(t, analysis.CheckStatusPass, res.Status)
	require.Equal(t, 3, res.Details["internal_links"])
	require.Equal(t, 1, res.Details["external_links"])

	sparse := `<html><body><a href="/only">one</a></body></html>`
	probe = newTestProbe(t, "https://example.com", map[string]stubResponse{
		"https://example.com/": {status: 200, body: sparse},
	})
	res = RunOne(context.Background(), InternalLinkingCheck{}, probe)
	require.Equal(t, analysis.CheckStatusFail, res.Status)
	require.Equal(t, 30, res.Score)
}

func TestEngineChecksShareOneScorerCall(t *testing.T) {
	t.Parallel()

	scorer := &countingScorer{inner: aiengine.NewStaticScorer()}
	probe := newTestProbe(t, "https://example.com", nil)

	var results []analysis.CheckResult
	for _, c := range engineChecks(scorer) {
		results = append(results, RunOne(context.Background(), c, probe))
	}
	require.Len(t, results, 5)
	require.Equal(t, 1, scorer.calls)

	engines := analysis.CollectEngineScores(results)
	require.NotNil(t, engines.ChatGPT)
	require.Equal(t, 75, *engines.ChatGPT)
	require.NotNil(t, engines.GoogleAI)
	require.Equal(t, 85, *engines.GoogleAI)
}

func TestRunOneConvertsErrorsToFailResults(t *testing.T) {
	t.Parallel()

	// Every fetch fails; document-based checks degrade to fail results
	// instead of aborting.
	probe := newTestProbe(t, "https://example.com", nil)
	res := RunOne(context.Background(), HeadingStructureCheck{}, probe)
	require.Equal(t, analysis.CheckStatusFail, res.Status)
	require.Equal(t, 0, res.Score)
	require.Equal(t, "heading_structure", res.CheckName)
	require.NotEmpty(t, res.Details["error"])
}

func TestIsInterrogative(t *testing.T) {
	t.Parallel()

	require.True(t, isInterrogative("What is GEO?"))
	require.True(t, isInterrogative("How we price"))
	require.True(t, isInterrogative("Pricing?"))
	require.False(t, isInterrogative("Pricing"))
	require.False(t, isInterrogative("Our showcase"))
}

// --- test stubs ---

type stubResponse struct {
	status   int
	body     string
	duration time.Duration
}

type stubFetcher struct {
	responses map[string]stubResponse
}

func (f *stubFetcher) Fetch(_ context.Context, url string) (analysis.FetchResponse, error) {
	resp, ok := f.responses[url]
	if !ok {
		return analysis.FetchResponse{}, errors.New("connection refused")
	}
	return analysis.FetchResponse{
		URL:        url,
		StatusCode: resp.status,
		Body:       []byte(resp.body),
		Duration:   resp.duration,
	}, nil
}

func newTestProbe(t *testing.T, rawURL string, responses map[string]stubResponse) *Probe {
	t.Helper()
	target, err := analysis.NewTarget(rawURL)
	require.NoError(t, err)
	return NewProbe(&stubFetcher{responses: responses}, target)
}

type countingScorer struct {
	inner aiengine.StaticScorer
	calls int
}

func (s *countingScorer) Score(ctx context.Context, target analysis.Target) (map[string]int, error) {
	s.calls++
	return s.inner.Score(ctx, target)
}

func wordsHTMLParagraph(n int) string {
	return "<p>" + wordsText(n) + "</p>"
}

func wordsText(n int) string {
	var b strings.Builder
	for i := 0; i < n; i++ {
		b.WriteString("word ")
	}
	return strings.TrimSpace(b.String())
}
