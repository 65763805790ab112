package extract

import (
	"strings"
	"testing"
)

func TestNamesDeduplicates(t *testing.T) {
	e := NewProseExtractor()

	names := e.Names("Google announced BERT. Google later open-sourced BERT.")
	lower := make(map[string]int)
	for _, n := range names {
		lower[strings.ToLower(n)]++
	}
	for name, count := range lower {
		if count > 1 {
			t.Errorf("Entity %q appears %d times, expected dedup", name, count)
		}
	}
}

func TestNamesFallbackOnPlainText(t *testing.T) {
	e := NewProseExtractor()

	// Short question; the fallback should still pick up the acronym
	names := e.Names("what does BERT do")
	found := false
	for _, n := range names {
		if strings.EqualFold(n, "BERT") {
			found = true
		}
	}
	if !found {
		t.Errorf("Expected BERT among candidates, got %v", names)
	}
}

func TestNamesEmptyInput(t *testing.T) {
	e := NewProseExtractor()
	if names := e.Names(""); len(names) != 0 {
		t.Errorf("Expected no entities for empty input, got %v", names)
	}
}

func TestCapitalizedRuns(t *testing.T) {
	runs := capitalizedRuns("the Neural Network model and BERT improved results")
	joined := strings.Join(runs, "|")
	if !strings.Contains(joined, "Neural Network") {
		t.Errorf("Expected Neural Network run, got %v", runs)
	}
	if !strings.Contains(joined, "BERT") {
		t.Errorf("Expected BERT run, got %v", runs)
	}
	if strings.Contains(joined, "the") || strings.Contains(joined, "model") {
		t.Errorf("Lowercase words leaked into runs: %v", runs)
	}
}
