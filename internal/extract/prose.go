// Package extract pulls entity mentions out of free text for graph seeding.
package extract

import (
	"strings"
	"unicode"

	"github.com/tsawler/prose/v3"
)

// Entity is one extracted mention
type Entity struct {
	Name       string
	Label      string
	Confidence float64
}

// ProseExtractor uses the prose NLP library for entity extraction
type ProseExtractor struct{}

// NewProseExtractor creates a new prose-based entity extractor
func NewProseExtractor() *ProseExtractor {
	return &ProseExtractor{}
}

// Extract performs entity extraction using prose NLP
func (e *ProseExtractor) Extract(text string) []Entity {
	doc, err := prose.NewDocument(text)
	if err != nil {
		return nil
	}

	var entities []Entity
	for _, ent := range doc.Entities() {
		entities = append(entities, Entity{
			Name:       ent.Text,
			Label:      ent.Label,
			Confidence: ent.Confidence,
		})
	}
	return entities
}

// Names returns deduplicated entity names. Questions too short or plain for
// the NER model fall back to capitalized token runs, so graph lookups still
// get candidate seeds.
func (e *ProseExtractor) Names(text string) []string {
	seen := make(map[string]bool)
	var names []string
	add := func(name string) {
		name = strings.TrimSpace(name)
		if name == "" {
			return
		}
		key := strings.ToLower(name)
		if seen[key] {
			return
		}
		seen[key] = true
		names = append(names, name)
	}

	for _, ent := range e.Extract(text) {
		add(ent.Name)
	}
	if len(names) == 0 {
		for _, run := range capitalizedRuns(text) {
			add(run)
		}
	}
	return names
}

// capitalizedRuns collects maximal runs of capitalized words, skipping a
// leading sentence-initial word unless the run continues.
func capitalizedRuns(text string) []string {
	words := strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '-'
	})

	var runs []string
	var current []string
	flush := func() {
		if len(current) > 0 {
			runs = append(runs, strings.Join(current, " "))
			current = nil
		}
	}
	for i, w := range words {
		r := []rune(w)
		capitalized := len(r) > 0 && unicode.IsUpper(r[0])
		allUpper := strings.ToUpper(w) == w && len(w) > 1
		if capitalized || allUpper {
			// skip a lone sentence-initial word
			if i == 0 && !allUpper {
				continue
			}
			current = append(current, w)
		} else {
			flush()
		}
	}
	flush()
	return runs
}
