package app

// Compiled-in modules. Each registers itself with core in init.
import (
	_ "github.com/sori-ai/sori/internal/gateway"
	_ "github.com/sori-ai/sori/internal/tracing"
	_ "github.com/sori-ai/sori/modules/memory/inmem"
	_ "github.com/sori-ai/sori/modules/memory/postgres"
	_ "github.com/sori-ai/sori/modules/memory/sqlite"
	_ "github.com/sori-ai/sori/modules/provider/anthropic"
	_ "github.com/sori-ai/sori/modules/provider/openai"
	_ "github.com/sori-ai/sori/modules/speech/openai"
)
