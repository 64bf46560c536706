// Package templates embeds orc's built-in prompt templates so the binary
// runs standalone with no external file dependencies.
package templates

import "embed"

// Prompts holds the embedded default prompts, overridable per-project via
// .orc/prompts/<phase>.md (see internal/prompt.Resolver).
//
//go:embed prompts/*.md
var Prompts embed.FS
