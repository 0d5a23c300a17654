// Package providers links every built-in AI provider into the binary.
// Import it for side effects:
//
//	_ "github.com/reunite-app/reunite/src/ai/providers"
package providers

import (
	_ "github.com/reunite-app/reunite/src/ai/gemini"
	_ "github.com/reunite-app/reunite/src/ai/openai"
)
