package checks

import "github.com/visibleai/siteaudit/internal/aiengine"

// Stage is an ordered group of checks sharing a progress band. Stages run
// strictly in order; the progress value jumps to StartProgress when the
// stage begins and to Ceiling once its results are persisted.
type Stage struct {
	Name          string
	StartProgress int
	Ceiling       int
	Checks        []Check
}

// Stages returns the full ordered pipeline. The instant stage needs no page
// parse, later stages share the probe's cached document.
func Stages(scorer aiengine.Scorer) []Stage {
	return []Stage{
		{
			Name:          "instant",
			StartProgress: 5,
			Ceiling:       20,
			Checks: []Check{
				BotAccessCheck{},
				LLMSTxtCheck{},
				TransportSecurityCheck{},
				HeadingStructureCheck{},
			},
		},
		{
			Name:          "technical",
			StartProgress: 25,
			Ceiling:       45,
			Checks: []Check{
				PageSpeedCheck{},
				MobileViewportCheck{},
				SitemapCheck{},
				StructuredDataCheck{},
				MetaTagsCheck{},
			},
		},
		{
			Name:          "content",
			StartProgress: 50,
			Ceiling:       70,
			Checks: []Check{
				ContentDepthCheck{},
				DirectAnswersCheck{},
				InternalLinkingCheck{},
			},
		},
		{
			Name:          "ai",
			StartProgress: 75,
			Ceiling:       95,
			Checks:        engineChecks(scorer),
		},
	}
}
