// Package providers wires modelclient.BackendKind values to the concrete
// per-backend client packages. It exists separately from modelclient
// itself so that package can stay free of a dependency on every backend
// (backends import modelclient for its shared Message/Tool/Response
// types, so modelclient importing them back would cycle).
package providers

import (
	"fmt"

	"github.com/rakunlabs/sshwarma/internal/modelclient"
	"github.com/rakunlabs/sshwarma/internal/modelclient/anthropic"
	"github.com/rakunlabs/sshwarma/internal/modelclient/gemini"
	"github.com/rakunlabs/sshwarma/internal/modelclient/ollama"
	"github.com/rakunlabs/sshwarma/internal/modelclient/openai"
	"github.com/rakunlabs/sshwarma/internal/modelclient/vertex"
)

// Construct is the production modelclient.Registry factory: it
// dispatches on cfg.Kind and builds the matching per-backend client.
func Construct(cfg modelclient.BackendConfig) (modelclient.Backend, error) {
	switch cfg.Kind {
	case modelclient.BackendOpenAI:
		return openai.New(cfg.APIKey, cfg.Endpoint)
	case modelclient.BackendAnthropic:
		return anthropic.New(cfg.APIKey, cfg.Endpoint)
	case modelclient.BackendGemini:
		return gemini.New(cfg.APIKey, cfg.Endpoint)
	case modelclient.BackendVertex:
		return vertex.New(cfg.Endpoint)
	case modelclient.BackendOllama:
		return ollama.New(cfg.Endpoint), nil
	default:
		return nil, fmt.Errorf("unknown backend kind %q", cfg.Kind)
	}
}
