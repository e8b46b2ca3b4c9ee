package pipeline

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"techmatch/talent-matcher/internal/logger"
	"techmatch/talent-matcher/internal/models"
)

const (
	DefaultMaxFileSize         int64   = 5 * 1024 * 1024
	DefaultSimilarityThreshold float64 = 0.62
)

var DefaultAllowedMimeTypes = []string{"application/pdf"}

// Generator produces text for a prompt, optionally with an attachment.
type Generator interface {
	Generate(ctx context.Context, req models.GenerationRequest) (*models.Generation, error)
}

// Embedder turns text into a fixed-length vector.
type Embedder interface {
	Embed(ctx context.Context, text string) (*models.Embedding, error)
}

// ProfileStore returns the profiles whose similarity to vector is above
// threshold, most similar first.
type ProfileStore interface {
	Query(ctx context.Context, vector []float32, threshold float64) ([]models.ProfileMatch, error)
}

// PDFInspector reports the page count of a PDF document.
type PDFInspector interface {
	PageCount(data []byte) (int, error)
}

type Options struct {
	MaxFileSize         int64
	AllowedMimeTypes    []string
	SimilarityThreshold float64
	// EmbeddingDimensions, when positive, is the required vector length.
	EmbeddingDimensions int

	// TextClassifier judges the reply to the text relevance prompt.
	// Defaults to ContainsYes.
	TextClassifier Classifier
	// ContentClassifier judges the reply to the PDF relevance prompt.
	// Defaults to StartsWithYes.
	ContentClassifier Classifier

	Inspector PDFInspector
	Logger    *zap.Logger
}

type stage struct {
	id  StageID
	run func(ctx context.Context, s *State) (Patch, error)
}

// Pipeline validates a requirement, embeds it and retrieves matching
// profiles. It is safe for concurrent use; every run owns its own State.
type Pipeline struct {
	generator Generator
	embedder  Embedder
	store     ProfileStore
	opts      Options
	log       *zap.Logger
}

func New(generator Generator, embedder Embedder, store ProfileStore, opts Options) *Pipeline {
	if opts.MaxFileSize <= 0 {
		opts.MaxFileSize = DefaultMaxFileSize
	}
	if len(opts.AllowedMimeTypes) == 0 {
		opts.AllowedMimeTypes = DefaultAllowedMimeTypes
	}
	if opts.SimilarityThreshold <= 0 {
		opts.SimilarityThreshold = DefaultSimilarityThreshold
	}
	if opts.TextClassifier == nil {
		opts.TextClassifier = ContainsYes
	}
	if opts.ContentClassifier == nil {
		opts.ContentClassifier = StartsWithYes
	}

	return &Pipeline{
		generator: generator,
		embedder:  embedder,
		store:     store,
		opts:      opts,
		log:       logger.Named(opts.Logger, "pipeline"),
	}
}

func (p *Pipeline) Threshold() float64 {
	return p.opts.SimilarityThreshold
}

// Run executes the whole graph: the branch chosen by the input kind followed
// by embedding, retrieval and context assembly.
//
// Stage failures are reported in State.Error. The returned error is only
// non-nil when ctx is done, in which case the state is discarded.
func (p *Pipeline) Run(ctx context.Context, req Request) (*State, error) {
	state := newState(req)
	stages := append(p.branch(state.Input.Kind()), p.tail()...)
	return p.execute(ctx, state, stages)
}

// ResolveRequirement runs only the branch stages and stops once the
// requirement text is known.
func (p *Pipeline) ResolveRequirement(ctx context.Context, req Request) (*State, error) {
	state := newState(req)
	return p.execute(ctx, state, p.branch(state.Input.Kind()))
}

func (p *Pipeline) branch(kind InputKind) []stage {
	if kind == InputFile {
		return []stage{
			{StageValidateFileExists, p.validateFileExists},
			{StageValidateFileSize, p.validateFileSize},
			{StageValidateMimeType, p.validateMimeType},
			{StageConvertFileToBytes, p.convertFileToBytes},
			{StageValidatePDFContent, p.validatePDFContent},
			{StageGenerateRequirement, p.generateRequirement},
		}
	}
	return []stage{
		{StageValidateTextInput, p.validateTextInput},
	}
}

func (p *Pipeline) tail() []stage {
	return []stage{
		{StageEmbedRequirement, p.embedRequirement},
		{StageRetrieveProfiles, p.retrieveProfiles},
		{StageAssembleContext, p.assembleContext},
	}
}

func (p *Pipeline) execute(ctx context.Context, state *State, stages []stage) (*State, error) {
	log := p.log.With(
		zap.String(logger.FieldSource, string(state.Source)),
		zap.String(logger.FieldModel, state.Model),
		zap.Stringer("branch", state.Input.Kind()),
	)
	started := time.Now()

	for _, st := range stages {
		if err := ctx.Err(); err != nil {
			log.Info("run cancelled", zap.String(logger.FieldStage, string(st.id)))
			return nil, err
		}

		stageStarted := time.Now()
		patch, err := p.runStage(ctx, st, state)
		state.apply(patch)
		state.Trace = append(state.Trace, st.id)

		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				log.Info("run cancelled", zap.String(logger.FieldStage, string(st.id)))
				return nil, ctxErr
			}
			state.Error = asStageError(err, st.id)
			log.Warn("run stopped",
				zap.String(logger.FieldStage, string(st.id)),
				zap.String("kind", string(state.Error.Kind)),
				zap.String("reason", logger.TruncateForLog(state.Error.Reason, 200)),
				zap.NamedError("cause", state.Error.Err),
			)
			return state, nil
		}

		log.Debug("stage finished",
			zap.String(logger.FieldStage, string(st.id)),
			zap.Duration("duration", time.Since(stageStarted)),
		)
	}

	log.Info("run finished",
		zap.Int("matches", len(state.MatchedProfiles)),
		zap.Int("input_tokens", state.Usage.InputTokens),
		zap.Int("output_tokens", state.Usage.OutputTokens),
		zap.Duration("duration", time.Since(started)),
	)
	return state, nil
}

// runStage calls the stage and converts a panic into an error for that stage.
// A panicking stage never leaves file bytes behind.
func (p *Pipeline) runStage(ctx context.Context, st stage, state *State) (patch Patch, err error) {
	defer func() {
		if r := recover(); r != nil {
			patch = Patch{DropFileBytes: true}
			err = newStageError(KindProviderError, st.id, fmt.Sprintf("unexpected failure: %v", r), nil)
		}
	}()
	return st.run(ctx, state)
}
