package ai

import (
	_ "embed"
)

// markdownFormatSystemPrompt instructs the model to reformat text without
// altering its content. Sent as the system message on every completion.
//
//go:embed prompts/markdown_format.md
var markdownFormatSystemPrompt string
