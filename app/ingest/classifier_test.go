package ingest

import (
	"testing"
)

func TestClassifier_Run_TierPriority(t *testing.T) {
	classifier := NewClassifier()

	// Contains both a very_high keyword ("documental") and a low keyword
	// ("festival"): the higher tier must win and the lower one must never
	// be consulted.
	call := &Call{
		Title:       "Ayudas a la producción de documental",
		Description: "Incluye presencia en festival de música",
	}

	level, matched := classifier.Run(call)
	if level != RelevanceVeryHigh {
		t.Errorf("Expected very_high, got %q", level)
	}
	if len(matched) == 0 {
		t.Error("Expected matched keywords to be reported")
	}
	for _, kw := range matched {
		if kw == "festival" || kw == "musica" {
			t.Errorf("Lower-tier keyword %q should not be reported once a higher tier matched", kw)
		}
	}
}

func TestClassifier_Run_DefaultLow(t *testing.T) {
	classifier := NewClassifier()

	level, matched := classifier.Run(&Call{
		Title:       "Subvenciones para la mejora de regadíos",
		Description: "Modernización de infraestructuras agrarias",
	})

	if level != RelevanceLow {
		t.Errorf("Expected catch-all low, got %q", level)
	}
	if matched != nil {
		t.Errorf("Expected no matched keywords, got %v", matched)
	}
}

func TestClassifier_Run_AccentFolding(t *testing.T) {
	classifier := NewClassifier()

	cases := []struct {
		title string
		want  Relevance
	}{
		{"Ayudas a la animación", RelevanceHigh},
		{"Ayudas a la animacion", RelevanceHigh},
		{"Premio de FOTOGRAFÍA contemporánea", RelevanceMedium},
		{"Premio de fotografia contemporanea", RelevanceMedium},
	}

	for _, tc := range cases {
		level, _ := classifier.Run(&Call{Title: tc.title})
		if level != tc.want {
			t.Errorf("Classify(%q): expected %q, got %q", tc.title, tc.want, level)
		}
	}
}

func TestClassifier_Run_ExtraText(t *testing.T) {
	classifier := NewClassifier()

	call := &Call{Title: "Convocatoria general de ayudas"}

	level, _ := classifier.Run(call)
	if level != RelevanceLow {
		t.Fatalf("Expected low without extra text, got %q", level)
	}

	level, _ = classifier.Run(call, "destinadas al rodaje de largometrajes")
	if level != RelevanceVeryHigh {
		t.Errorf("Expected very_high with extra text, got %q", level)
	}
}

func TestClassifier_Run_Deterministic(t *testing.T) {
	classifier := NewClassifier()
	call := &Call{Title: "Ayudas al vídeo y efectos visuales"}

	first, firstMatched := classifier.Run(call)
	for i := 0; i < 5; i++ {
		level, matched := classifier.Run(call)
		if level != first || len(matched) != len(firstMatched) {
			t.Fatal("Classification must be deterministic for identical input")
		}
	}
}

func TestFoldText(t *testing.T) {
	cases := map[string]string{
		"Producción Cinematográfica": "produccion cinematografica",
		"VÍDEO":                      "video",
		"música y danza":             "musica y danza",
		"plain ascii":                "plain ascii",
	}

	for input, want := range cases {
		if got := FoldText(input); got != want {
			t.Errorf("FoldText(%q): expected %q, got %q", input, want, got)
		}
	}
}

func TestNewClassifierWithTiers(t *testing.T) {
	classifier := NewClassifierWithTiers([]KeywordTier{
		{RelevanceVeryHigh, []string{"videojuego", "Videojuego"}},
		{RelevanceMedium, []string{"ocio digital"}},
	})

	level, matched := classifier.Run(&Call{Title: "Ayudas al desarrollo de videojuegos"})
	if level != RelevanceVeryHigh {
		t.Errorf("Expected very_high from custom tier, got %q", level)
	}
	if len(matched) != 1 {
		t.Errorf("Duplicate keywords should be folded at construction, got %v", matched)
	}

	level, _ = classifier.Run(&Call{Title: "Programa de ocio digital"})
	if level != RelevanceMedium {
		t.Errorf("Expected medium from custom tier, got %q", level)
	}
}
