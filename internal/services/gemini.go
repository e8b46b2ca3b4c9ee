package services

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"techmatch/talent-matcher/internal/config"
	"techmatch/talent-matcher/internal/logger"
	"techmatch/talent-matcher/internal/models"
)

const (
	maxEmbedInputChars = 40000
	maxOutputTokens    = 4096
)

// GeminiService is the generation and embedding client.
type GeminiService interface {
	Generate(ctx context.Context, req models.GenerationRequest) (*models.Generation, error)
	Embed(ctx context.Context, text string) (*models.Embedding, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	// ResolveModel returns name when it is an available model, the default
	// model otherwise.
	ResolveModel(name string) string
	DefaultModel() string
	AvailableModels() []string
	EmbedModel() string
}

// ProviderError is returned for any failed call to the model provider.
type ProviderError struct {
	Op  string
	Err error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("gemini %s failed: %v", e.Op, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// modelsAPI is the subset of *genai.Models used by the service.
type modelsAPI interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
	EmbedContent(ctx context.Context, model string, contents []*genai.Content, config *genai.EmbedContentConfig) (*genai.EmbedContentResponse, error)
}

type geminiService struct {
	api             modelsAPI
	modelName       string
	availableModels []string
	embedModel      string
	dimensions      int
	maxRetries      int
	retryDelay      time.Duration
	log             *zap.Logger
}

func NewGeminiService(ctx context.Context, cfg config.GeminiConfig, log *zap.Logger) (GeminiService, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("gemini api key is not configured")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}

	return newGeminiService(client.Models, cfg, log), nil
}

func newGeminiService(api modelsAPI, cfg config.GeminiConfig, log *zap.Logger) *geminiService {
	available := cfg.AvailableModels
	if !slices.Contains(available, cfg.Model) {
		available = append([]string{cfg.Model}, available...)
	}
	retries := cfg.MaxRetries
	if retries < 1 {
		retries = 1
	}

	return &geminiService{
		api:             api,
		modelName:       cfg.Model,
		availableModels: available,
		embedModel:      cfg.EmbedModel,
		dimensions:      cfg.EmbeddingDimensions,
		maxRetries:      retries,
		retryDelay:      500 * time.Millisecond,
		log:             logger.Named(log, "gemini"),
	}
}

func (g *geminiService) DefaultModel() string {
	return g.modelName
}

func (g *geminiService) AvailableModels() []string {
	return slices.Clone(g.availableModels)
}

func (g *geminiService) EmbedModel() string {
	return g.embedModel
}

func (g *geminiService) ResolveModel(name string) string {
	name = strings.TrimSpace(name)
	if name != "" && slices.Contains(g.availableModels, name) {
		return name
	}
	if name != "" {
		g.log.Debug("unknown model requested, using default",
			zap.String("requested", name),
			zap.String(logger.FieldModel, g.modelName),
		)
	}
	return g.modelName
}

// Generate implements GeminiService.
func (g *geminiService) Generate(ctx context.Context, req models.GenerationRequest) (*models.Generation, error) {
	model := g.ResolveModel(req.Model)

	parts := []*genai.Part{{Text: req.Prompt}}
	if req.Attachment != nil {
		parts = append(parts, &genai.Part{
			InlineData: &genai.Blob{Data: req.Attachment.Data, MIMEType: req.Attachment.MediaType},
		})
	}
	contents := []*genai.Content{{Role: genai.RoleUser, Parts: parts}}

	cfg := &genai.GenerateContentConfig{
		Temperature:     req.Temperature,
		MaxOutputTokens: maxOutputTokens,
	}
	if req.JSON {
		cfg.ResponseMIMEType = "application/json"
	}

	var lastErr error
	for attempt := 1; attempt <= g.maxRetries; attempt++ {
		gen, err := g.generateOnce(ctx, model, contents, cfg)
		if err == nil {
			return gen, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return nil, &ProviderError{Op: "generate", Err: ctx.Err()}
		}
		if attempt < g.maxRetries {
			g.log.Warn("⚠️ generation attempt failed, retrying",
				zap.Int("attempt", attempt),
				zap.String(logger.FieldModel, model),
				zap.Error(err),
			)
			select {
			case <-ctx.Done():
				return nil, &ProviderError{Op: "generate", Err: ctx.Err()}
			case <-time.After(g.retryDelay * time.Duration(attempt)):
			}
		}
	}

	return nil, &ProviderError{Op: "generate", Err: lastErr}
}

func (g *geminiService) generateOnce(ctx context.Context, model string, contents []*genai.Content, cfg *genai.GenerateContentConfig) (*models.Generation, error) {
	resp, err := g.api.GenerateContent(ctx, model, contents, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to generate text: %w", err)
	}
	if resp == nil {
		return nil, errors.New("no response generated (nil response)")
	}

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return nil, errors.New("no text content in response")
	}

	var usage models.TokenUsage
	if resp.UsageMetadata != nil {
		usage.InputTokens = int(resp.UsageMetadata.PromptTokenCount)
		usage.OutputTokens = int(resp.UsageMetadata.CandidatesTokenCount)
	}

	g.log.Debug("📊 Gemini response received",
		zap.String(logger.FieldModel, model),
		zap.Int("input_tokens", usage.InputTokens),
		zap.Int("output_tokens", usage.OutputTokens),
		zap.String("preview", logger.TruncateForLog(text, 80)),
	)

	return &models.Generation{Text: text, Model: model, Usage: usage}, nil
}

// Embed implements GeminiService.
func (g *geminiService) Embed(ctx context.Context, text string) (*models.Embedding, error) {
	resp, err := g.embed(ctx, []string{text}, "RETRIEVAL_QUERY")
	if err != nil {
		return nil, err
	}

	emb := resp.Embeddings[0]
	tokens := 0
	if emb.Statistics != nil {
		tokens = int(emb.Statistics.TokenCount)
	}
	return &models.Embedding{Vector: emb.Values, Tokens: tokens}, nil
}

// EmbedBatch implements GeminiService. Vectors are returned in input order.
func (g *geminiService) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	resp, err := g.embed(ctx, texts, "RETRIEVAL_DOCUMENT")
	if err != nil {
		return nil, err
	}

	vectors := make([][]float32, len(resp.Embeddings))
	for i, emb := range resp.Embeddings {
		vectors[i] = emb.Values
	}
	return vectors, nil
}

func (g *geminiService) embed(ctx context.Context, texts []string, taskType string) (*genai.EmbedContentResponse, error) {
	contents := make([]*genai.Content, 0, len(texts))
	for _, text := range texts {
		// ~10000 tokens is the embedding input limit
		text = truncateUTF8(text, maxEmbedInputChars)
		contents = append(contents, genai.Text(text)...)
	}

	cfg := &genai.EmbedContentConfig{TaskType: taskType}
	if g.dimensions > 0 {
		dims := int32(g.dimensions)
		cfg.OutputDimensionality = &dims
	}

	resp, err := g.api.EmbedContent(ctx, g.embedModel, contents, cfg)
	if err != nil {
		return nil, &ProviderError{Op: "embed", Err: fmt.Errorf("failed to generate embedding: %w", err)}
	}
	if resp == nil || len(resp.Embeddings) != len(texts) {
		return nil, &ProviderError{Op: "embed", Err: errors.New("unexpected embedding result count")}
	}

	for i, emb := range resp.Embeddings {
		if emb == nil || len(emb.Values) == 0 {
			return nil, &ProviderError{Op: "embed", Err: fmt.Errorf("empty embedding at index %d", i)}
		}
		if g.dimensions > 0 && len(emb.Values) != g.dimensions {
			return nil, &ProviderError{Op: "embed", Err: fmt.Errorf("embedding has %d dimensions, expected %d", len(emb.Values), g.dimensions)}
		}
	}

	return resp, nil
}

// truncateUTF8 cuts s to at most limit bytes without splitting a rune.
func truncateUTF8(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
