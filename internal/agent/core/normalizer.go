package core

import (
	"context"
	"log"
	"strings"

	"github.com/medassist/medassist/internal/lang"
	"github.com/medassist/medassist/internal/translate"
)

// Translator is the slice of the translation client the normalizer needs.
type Translator interface {
	Translate(ctx context.Context, req translate.Request) string
}

// Stage is one named post-processing step.
type Stage struct {
	Name  string
	Apply func(ctx context.Context, text string) string
}

// Normalizer guarantees the final answer is in the target language by
// running the combined text through a fixed, declared pipeline of stages.
type Normalizer struct {
	stages []Stage
	logger *log.Logger
}

// NewNormalizer wires the standard pipeline: whitespace cleanup, then
// translation into the target language with the configured glossary.
func NewNormalizer(tr Translator, target lang.Language, terms map[string]string) *Normalizer {
	logger := log.New(log.Writer(), "[NORMALIZE] ", log.LstdFlags)
	return &Normalizer{
		logger: logger,
		stages: []Stage{
			{
				Name: "cleanup",
				Apply: func(_ context.Context, text string) string {
					return strings.TrimSpace(text)
				},
			},
			{
				Name: "translate",
				Apply: func(ctx context.Context, text string) string {
					if lang.Detect(text) == target {
						return text
					}
					return tr.Translate(ctx, translate.Request{
						Text:       text,
						TargetLang: target,
						Terms:      terms,
					})
				},
			},
		},
	}
}

// Normalize applies every stage in declared order.
func (n *Normalizer) Normalize(ctx context.Context, text string) string {
	for _, stage := range n.stages {
		text = stage.Apply(ctx, text)
	}
	return text
}

// StageNames lists the pipeline order, for logging and tests.
func (n *Normalizer) StageNames() []string {
	out := make([]string, 0, len(n.stages))
	for _, s := range n.stages {
		out = append(out, s.Name)
	}
	return out
}
