package ingest

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Classifier assigns a relevance tier to a call by matching its free text
// against ordered keyword tiers, most specific first. The first tier with
// at least one match wins and no lower tier is consulted: a record hitting
// both a very_high and a low keyword is very_high, by contract.
type Classifier struct {
	tiers []KeywordTier
}

// KeywordTier pairs a relevance level with the keywords that select it.
// Tier order in the slice is match priority.
type KeywordTier struct {
	Level    Relevance
	Keywords []string
}

// defaultTiers carries the audiovisual-sector keyword sets. Keywords are
// accent-folded at construction so "animación" and "animacion" match alike.
var defaultTiers = []KeywordTier{
	{RelevanceVeryHigh, []string{
		"cine", "cortometraje", "largometraje", "documental", "film",
		"producción cinematográfica", "audiovisual", "postproducción",
		"rodaje", "cineasta", "guion", "festival de cine",
	}},
	{RelevanceHigh, []string{
		"vídeo", "video", "grabación", "animación", "efectos visuales",
		"vfx", "contenido digital", "multimedia", "creativo",
	}},
	{RelevanceMedium, []string{
		"fotografía", "arte", "artístico", "cultural", "medios audiovisuales",
	}},
	{RelevanceLow, []string{
		"música", "teatro", "danza", "exposición", "festival",
	}},
}

func NewClassifier() *Classifier {
	return NewClassifierWithTiers(defaultTiers)
}

func NewClassifierWithTiers(tiers []KeywordTier) *Classifier {
	folded := make([]KeywordTier, 0, len(tiers))
	for _, t := range tiers {
		ft := KeywordTier{Level: t.Level}
		seen := make(map[string]bool, len(t.Keywords))
		for _, kw := range t.Keywords {
			f := FoldText(kw)
			if !seen[f] {
				seen[f] = true
				ft.Keywords = append(ft.Keywords, f)
			}
		}
		folded = append(folded, ft)
	}
	return &Classifier{tiers: folded}
}

// Run classifies a call from its title, description and any extra free-text
// fields. Returns the winning tier plus the keywords that matched within
// it, for logging. No match falls through to low.
func (c *Classifier) Run(call *Call, extra ...string) (Relevance, []string) {
	parts := append([]string{call.Title, call.Description}, extra...)
	text := FoldText(strings.Join(parts, " "))

	for _, tier := range c.tiers {
		var matched []string
		for _, kw := range tier.Keywords {
			if strings.Contains(text, kw) {
				matched = append(matched, kw)
			}
		}
		if len(matched) > 0 {
			return tier.Level, matched
		}
	}

	return RelevanceLow, nil
}

// FoldText lowercases and strips diacritics so keyword matching is
// insensitive to the accent inconsistencies of the source data.
// Transformers carry state, so a fresh chain is built per call.
func FoldText(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, strings.ToLower(s))
	if err != nil {
		return strings.ToLower(s)
	}
	return folded
}
