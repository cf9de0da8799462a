// Package assets provides embedded static assets for the application.
//
// Prompt templates are stored as text files under prompts/ and embedded at
// compile time, keeping prompt wording reviewable without touching code.
package assets

import (
	_ "embed"
)

// ClassifySystemPrompt instructs the model to classify one capture record
// into a single caregiving activity and answer with a strict JSON verdict.
//
//go:embed prompts/classify-system.txt
var ClassifySystemPrompt string
