package generator

import (
	"encoding/json"
	"fmt"
	"hash/fnv"
	"math/rand"
	"net/http"
	"regexp"
	"time"

	"aoai-simulated-api/internal/sim"
	"aoai-simulated-api/internal/tokens"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	// defaultCompletionTokens sizes completions when the request
	// does not provide max_tokens.
	defaultCompletionTokens = 64

	embeddingDimensions = 1536
)

var (
	chatCompletionsPath = regexp.MustCompile(`^/openai/deployments/([^/]+)/chat/completions$`)
	completionsPath     = regexp.MustCompile(`^/openai/deployments/([^/]+)/completions$`)
	embeddingsPath      = regexp.MustCompile(`^/openai/deployments/([^/]+)/embeddings$`)
)

// OpenAILatencies model simulated durations per operation kind.
type OpenAILatencies struct {
	ChatCompletions Latency
	Completions     Latency
	Embeddings      Latency
}

// OpenAIGenerator synthesizes responses for the Azure OpenAI surface:
// chat completions, legacy completions and embeddings.
type OpenAIGenerator struct {
	logger      zerolog.Logger
	deployments map[string]Deployment
	latencies   OpenAILatencies
	rnd         *lockedRand
}

func NewOpenAIGenerator(logger zerolog.Logger, deployments map[string]Deployment, latencies OpenAILatencies) *OpenAIGenerator {
	return &OpenAIGenerator{
		logger:      logger.With().Str("generator", "openai").Logger(),
		deployments: deployments,
		latencies:   latencies,
		rnd:         newLockedRand(time.Now().UnixNano()),
	}
}

func (g *OpenAIGenerator) Name() string {
	return "openai"
}

func (g *OpenAIGenerator) Generate(rctx *sim.RequestContext) (*sim.Response, error) {
	if rctx.Request.Method != http.MethodPost {
		return nil, nil
	}

	path := rctx.Request.URL.Path

	switch {
	case chatCompletionsPath.MatchString(path):
		return g.chatCompletion(rctx, chatCompletionsPath.FindStringSubmatch(path)[1])

	case completionsPath.MatchString(path):
		return g.completion(rctx, completionsPath.FindStringSubmatch(path)[1])

	case embeddingsPath.MatchString(path):
		return g.embedding(rctx, embeddingsPath.FindStringSubmatch(path)[1])

	default:
		return nil, nil
	}
}

// resolveDeployment validates the deployment and marks the request for
// OpenAI rate limiting. A nil deployment means the error response
// should be returned as is.
func (g *OpenAIGenerator) resolveDeployment(rctx *sim.RequestContext, name string) (*Deployment, *sim.Response) {
	rctx.Deployment = name
	rctx.Limiter = sim.LimiterOpenAI

	deployment, found := g.deployments[name]
	if !found {
		g.logger.Warn().Str("deployment", name).Msg("unknown deployment requested")

		return nil, sim.NewErrorResponse(
			http.StatusNotFound,
			"DeploymentNotFound",
			"The API deployment for this resource does not exist.",
		)
	}

	return &deployment, nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionRequest struct {
	Messages  []chatMessage `json:"messages"`
	MaxTokens int           `json:"max_tokens"`
}

type usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens,omitempty"`
	TotalTokens      int `json:"total_tokens"`
}

func (g *OpenAIGenerator) chatCompletion(rctx *sim.RequestContext, deploymentName string) (*sim.Response, error) {
	deployment, errResp := g.resolveDeployment(rctx, deploymentName)
	if errResp != nil {
		return errResp, nil
	}

	var req chatCompletionRequest
	err := json.NewDecoder(rctx.Request.Body).Decode(&req)
	if err != nil {
		return sim.NewErrorResponse(http.StatusBadRequest, "400", "Invalid request body"), nil
	}

	promptTokens := 0
	for _, m := range req.Messages {
		promptTokens += tokens.Estimate(m.Content)
	}

	completionTokens := tokens.CompletionSize(defaultCompletionTokens, req.MaxTokens)

	finishReason := "stop"
	if req.MaxTokens > 0 && completionTokens == req.MaxTokens {
		finishReason = "length"
	}

	rctx.PromptTokens = promptTokens
	rctx.CompletionTokens = completionTokens
	rctx.TargetDuration = g.rnd.latency(g.latencies.ChatCompletions)

	return sim.NewJSONResponse(http.StatusOK, map[string]interface{}{
		"id":      "chatcmpl-" + uuid.New().String(),
		"object":  "chat.completion",
		"created": time.Now().Unix(),
		"model":   deployment.Model,
		"choices": []map[string]interface{}{
			{
				"index": 0,
				"message": chatMessage{
					Role:    "assistant",
					Content: g.rnd.text(completionTokens),
				},
				"finish_reason": finishReason,
			},
		},
		"usage": usage{
			PromptTokens:     promptTokens,
			CompletionTokens: completionTokens,
			TotalTokens:      promptTokens + completionTokens,
		},
	})
}

type completionRequest struct {
	Prompt    json.RawMessage `json:"prompt"`
	MaxTokens int             `json:"max_tokens"`
}

func (g *OpenAIGenerator) completion(rctx *sim.RequestContext, deploymentName string) (*sim.Response, error) {
	deployment, errResp := g.resolveDeployment(rctx, deploymentName)
	if errResp != nil {
		return errResp, nil
	}

	var req completionRequest
	err := json.NewDecoder(rctx.Request.Body).Decode(&req)
	if err != nil {
		return sim.NewErrorResponse(http.StatusBadRequest, "400", "Invalid request body"), nil
	}

	promptTokens := 0
	for _, prompt := range decodeStringOrList(req.Prompt) {
		promptTokens += tokens.Estimate(prompt)
	}

	completionTokens := tokens.CompletionSize(defaultCompletionTokens, req.MaxTokens)

	finishReason := "stop"
	if req.MaxTokens > 0 && completionTokens == req.MaxTokens {
		finishReason = "length"
	}

	rctx.PromptTokens = promptTokens
	rctx.CompletionTokens = completionTokens
	rctx.TargetDuration = g.rnd.latency(g.latencies.Completions)

	return sim.NewJSONResponse(http.StatusOK, map[string]interface{}{
		"id":      "cmpl-" + uuid.New().String(),
		"object":  "text_completion",
		"created": time.Now().Unix(),
		"model":   deployment.Model,
		"choices": []map[string]interface{}{
			{
				"index":         0,
				"text":          g.rnd.text(completionTokens),
				"logprobs":      nil,
				"finish_reason": finishReason,
			},
		},
		"usage": usage{
			PromptTokens:     promptTokens,
			CompletionTokens: completionTokens,
			TotalTokens:      promptTokens + completionTokens,
		},
	})
}

type embeddingRequest struct {
	Input json.RawMessage `json:"input"`
}

func (g *OpenAIGenerator) embedding(rctx *sim.RequestContext, deploymentName string) (*sim.Response, error) {
	deployment, errResp := g.resolveDeployment(rctx, deploymentName)
	if errResp != nil {
		return errResp, nil
	}

	var req embeddingRequest
	err := json.NewDecoder(rctx.Request.Body).Decode(&req)
	if err != nil {
		return sim.NewErrorResponse(http.StatusBadRequest, "400", "Invalid request body"), nil
	}

	inputs := decodeStringOrList(req.Input)
	if len(inputs) == 0 {
		return sim.NewErrorResponse(http.StatusBadRequest, "400", "'input' is a required property"), nil
	}

	promptTokens := 0
	data := make([]map[string]interface{}, 0, len(inputs))
	for i, input := range inputs {
		promptTokens += tokens.Estimate(input)

		data = append(data, map[string]interface{}{
			"object":    "embedding",
			"index":     i,
			"embedding": embeddingVector(input),
		})
	}

	rctx.PromptTokens = promptTokens
	rctx.TargetDuration = g.rnd.latency(g.latencies.Embeddings)

	return sim.NewJSONResponse(http.StatusOK, map[string]interface{}{
		"object": "list",
		"data":   data,
		"model":  deployment.Model,
		"usage": usage{
			PromptTokens: promptTokens,
			TotalTokens:  promptTokens,
		},
	})
}

// embeddingVector derives a vector from the input deterministically,
// so repeated requests for the same text embed identically.
func embeddingVector(input string) []float32 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(input))

	rnd := rand.New(rand.NewSource(int64(h.Sum64()))) // nolint:gosec

	vector := make([]float32, embeddingDimensions)
	for i := range vector {
		vector[i] = float32(rnd.Float64()*2 - 1)
	}

	return vector
}

// decodeStringOrList handles fields the OpenAI API accepts as either
// a single string or a list of strings.
func decodeStringOrList(raw json.RawMessage) []string {
	if len(raw) == 0 {
		return nil
	}

	var single string
	if err := json.Unmarshal(raw, &single); err == nil {
		return []string{single}
	}

	var list []string
	if err := json.Unmarshal(raw, &list); err == nil {
		return list
	}

	return []string{fmt.Sprintf("%s", raw)}
}
