package pipeline

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"techmatch/talent-matcher/internal/models"
)

type fakeGenerator struct {
	mu      sync.Mutex
	calls   []models.GenerationRequest
	respond func(req models.GenerationRequest) (*models.Generation, error)
}

func (f *fakeGenerator) Generate(_ context.Context, req models.GenerationRequest) (*models.Generation, error) {
	f.mu.Lock()
	f.calls = append(f.calls, req)
	f.mu.Unlock()
	return f.respond(req)
}

func (f *fakeGenerator) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func reply(text string) func(models.GenerationRequest) (*models.Generation, error) {
	return func(models.GenerationRequest) (*models.Generation, error) {
		return &models.Generation{Text: text, Usage: models.TokenUsage{InputTokens: 10, OutputTokens: 2}}, nil
	}
}

type fakeEmbedder struct {
	calls  []string
	vector []float32
	err    error
}

func (f *fakeEmbedder) Embed(_ context.Context, text string) (*models.Embedding, error) {
	f.calls = append(f.calls, text)
	if f.err != nil {
		return nil, f.err
	}
	return &models.Embedding{Vector: f.vector, Tokens: 5}, nil
}

type fakeStore struct {
	calls     int
	threshold float64
	matches   []models.ProfileMatch
	err       error
}

func (f *fakeStore) Query(_ context.Context, _ []float32, threshold float64) ([]models.ProfileMatch, error) {
	f.calls++
	f.threshold = threshold
	return f.matches, f.err
}

func vector(n int) []float32 {
	v := make([]float32, n)
	for i := range v {
		v[i] = 0.01
	}
	return v
}

func newTestPipeline(gen *fakeGenerator, emb *fakeEmbedder, store *fakeStore) *Pipeline {
	return New(gen, emb, store, Options{EmbeddingDimensions: 768})
}

func reactMatches() []models.ProfileMatch {
	return []models.ProfileMatch{
		{ExternalID: "rec2", Content: "Ana, React developer", Similarity: 0.74, Metadata: `{"email":"ana@example.com"}`},
		{ExternalID: "rec1", Content: "Luis, frontend engineer", Similarity: 0.81, Metadata: map[string]any{"location": "Madrid"}},
		{ExternalID: "rec3", Content: "Marta, designer", Similarity: 0.62},
	}
}

func TestRun_TextAccepted(t *testing.T) {
	gen := &fakeGenerator{respond: reply("yes")}
	emb := &fakeEmbedder{vector: vector(768)}
	store := &fakeStore{matches: reactMatches()}
	p := newTestPipeline(gen, emb, store)

	input := "Need a senior React engineer with TypeScript"
	state, err := p.Run(context.Background(), Request{Input: TextInput(input), Source: SourceHR})
	require.NoError(t, err)
	require.False(t, state.Failed())

	assert.Equal(t, input, state.RequirementText)
	assert.Equal(t, []string{input}, emb.calls)
	assert.True(t, state.Validation[CheckIsValid])
	assert.Equal(t, DefaultSimilarityThreshold, store.threshold)

	require.Len(t, state.MatchedProfiles, 2)
	assert.Equal(t, "rec1", state.MatchedProfiles[0].ExternalID)
	assert.Equal(t, "rec2", state.MatchedProfiles[1].ExternalID)
	assert.Contains(t, state.Context, "Profile 1:\nLuis, frontend engineer")
	assert.Contains(t, state.Context, "- Similarity Score: 81.0%")

	assert.Equal(t, []StageID{
		StageValidateTextInput, StageEmbedRequirement, StageRetrieveProfiles, StageAssembleContext,
	}, state.Trace)
	assert.Equal(t, models.TokenUsage{InputTokens: 15, OutputTokens: 2}, state.Usage)
}

func TestRun_TextRejected(t *testing.T) {
	gen := &fakeGenerator{respond: reply("  This is a recipe, not a job description.\n")}
	emb := &fakeEmbedder{vector: vector(768)}
	store := &fakeStore{}
	p := newTestPipeline(gen, emb, store)

	state, err := p.Run(context.Background(), Request{Input: TextInput("chocolate cake recipe")})
	require.NoError(t, err)
	require.True(t, state.Failed())

	assert.Equal(t, KindTextInputRejected, state.Error.Kind)
	assert.Equal(t, StageValidateTextInput, state.Error.Step)
	assert.Equal(t, "This is a recipe, not a job description.", state.Error.Reason)
	assert.False(t, state.Validation[CheckIsValid])

	assert.Empty(t, emb.calls)
	assert.Zero(t, store.calls)
	assert.Empty(t, state.RequirementText)
	assert.Nil(t, state.Embedding)
	assert.Nil(t, state.MatchedProfiles)
	assert.Empty(t, state.Context)
	assert.Equal(t, 2, state.Usage.OutputTokens)
}

func TestRun_EmptyTextSkipsModel(t *testing.T) {
	gen := &fakeGenerator{respond: reply("yes")}
	p := newTestPipeline(gen, &fakeEmbedder{}, &fakeStore{})

	state, err := p.Run(context.Background(), Request{Input: TextInput("   ")})
	require.NoError(t, err)
	require.True(t, state.Failed())
	assert.Equal(t, KindTextInputRejected, state.Error.Kind)
	assert.Zero(t, gen.callCount())
}

func TestRun_FileTooLarge(t *testing.T) {
	gen := &fakeGenerator{respond: reply("yes")}
	opened := false
	file := &File{
		Name:      "offer.pdf",
		MediaType: "application/pdf",
		Size:      6 * 1024 * 1024,
		Open: func() (io.ReadCloser, error) {
			opened = true
			return io.NopCloser(strings.NewReader("")), nil
		},
	}
	p := newTestPipeline(gen, &fakeEmbedder{}, &fakeStore{})

	state, err := p.Run(context.Background(), Request{Input: FileInput(file), Source: SourcePDF})
	require.NoError(t, err)
	require.True(t, state.Failed())

	assert.Equal(t, KindFileTooLarge, state.Error.Kind)
	assert.Equal(t, StageValidateFileSize, state.Error.Step)
	assert.Contains(t, state.Error.Reason, "5 MiB")
	assert.Zero(t, gen.callCount())
	assert.False(t, opened)
	assert.True(t, state.Validation[CheckFileExists])
	assert.False(t, state.Validation[CheckFileSizeValid])
}

func TestRun_FileAccepted(t *testing.T) {
	gen := &fakeGenerator{respond: func(req models.GenerationRequest) (*models.Generation, error) {
		if req.Prompt == contentRelevancePrompt {
			return &models.Generation{Text: "Yes.", Usage: models.TokenUsage{InputTokens: 300, OutputTokens: 1}}, nil
		}
		return &models.Generation{
			Text:  "  Necesito un desarrollador frontend experto en React y Tailwind.\n",
			Usage: models.TokenUsage{InputTokens: 300, OutputTokens: 15},
		}, nil
	}}
	emb := &fakeEmbedder{vector: vector(768)}
	store := &fakeStore{matches: reactMatches()}
	p := newTestPipeline(gen, emb, store)

	file := NewFileFromBytes("offer.pdf", "application/pdf", make([]byte, 1024*1024))
	state, err := p.Run(context.Background(), Request{Input: FileInput(file), Model: "gemini-2.5-flash", Source: SourcePDF})
	require.NoError(t, err)
	require.False(t, state.Failed(), "unexpected error: %v", state.Error)

	want := "Necesito un desarrollador frontend experto en React y Tailwind."
	assert.Equal(t, want, state.RequirementText)
	assert.Equal(t, []string{want}, emb.calls)
	assert.Nil(t, state.FileBytes)
	assert.Len(t, state.MatchedProfiles, 2)

	require.Equal(t, 2, gen.callCount())
	for _, call := range gen.calls {
		require.NotNil(t, call.Attachment)
		assert.Equal(t, "application/pdf", call.Attachment.MediaType)
		assert.Len(t, call.Attachment.Data, 1024*1024)
		assert.Equal(t, "gemini-2.5-flash", call.Model)
	}

	for _, key := range []string{CheckFileExists, CheckFileSizeValid, CheckMimeTypeValid, CheckContentValid} {
		assert.True(t, state.Validation[key], key)
	}
	assert.Equal(t, models.TokenUsage{InputTokens: 605, OutputTokens: 16}, state.Usage)
}

func TestRun_FileNotAJobOffer(t *testing.T) {
	gen := &fakeGenerator{respond: reply("no")}
	emb := &fakeEmbedder{vector: vector(768)}
	p := newTestPipeline(gen, emb, &fakeStore{})

	file := NewFileFromBytes("menu.pdf", "application/pdf", []byte("%PDF-1.4 menu"))
	state, err := p.Run(context.Background(), Request{Input: FileInput(file)})
	require.NoError(t, err)
	require.True(t, state.Failed())

	assert.Equal(t, KindNotAJobOffer, state.Error.Kind)
	assert.Equal(t, StageValidatePDFContent, state.Error.Step)
	assert.Equal(t, "The PDF does not contain a valid software development job offer.", state.Error.Reason)
	assert.False(t, state.Validation[CheckContentValid])
	assert.Nil(t, state.FileBytes)
	assert.Equal(t, 1, gen.callCount())
	assert.Empty(t, emb.calls)
}

func TestRun_NoFilePart(t *testing.T) {
	p := newTestPipeline(&fakeGenerator{respond: reply("yes")}, &fakeEmbedder{}, &fakeStore{})

	state, err := p.Run(context.Background(), Request{Input: FileInput(nil)})
	require.NoError(t, err)
	require.True(t, state.Failed())
	assert.Equal(t, KindNoFileProvided, state.Error.Kind)
	assert.Equal(t, StageValidateFileExists, state.Error.Step)
	assert.Equal(t, []StageID{StageValidateFileExists}, state.Trace)
}

func TestRun_MimeTypeRejectedBeforeRead(t *testing.T) {
	opened := false
	file := &File{
		Name:      "photo.png",
		MediaType: "image/png",
		Size:      100,
		Open: func() (io.ReadCloser, error) {
			opened = true
			return io.NopCloser(strings.NewReader("png")), nil
		},
	}
	gen := &fakeGenerator{respond: reply("yes")}
	p := newTestPipeline(gen, &fakeEmbedder{}, &fakeStore{})

	state, err := p.Run(context.Background(), Request{Input: FileInput(file)})
	require.NoError(t, err)
	require.True(t, state.Failed())

	assert.Equal(t, KindUnsupportedMediaType, state.Error.Kind)
	assert.Equal(t, "Invalid file type: image/png. Allowed types are: application/pdf.", state.Error.Reason)
	assert.False(t, opened)
	assert.Zero(t, gen.callCount())
}

func TestRun_MimeTypeNormalized(t *testing.T) {
	gen := &fakeGenerator{respond: reply("yes")}
	p := New(gen, &fakeEmbedder{vector: vector(3)}, &fakeStore{}, Options{})

	file := NewFileFromBytes("offer.pdf", "Application/PDF; name=offer.pdf", []byte("%PDF"))
	state, err := p.ResolveRequirement(context.Background(), Request{Input: FileInput(file)})
	require.NoError(t, err)
	require.False(t, state.Failed(), "unexpected error: %v", state.Error)
	assert.True(t, state.Validation[CheckMimeTypeValid])
}

func TestRun_DeclaredSizeLies(t *testing.T) {
	gen := &fakeGenerator{respond: reply("yes")}
	p := New(gen, &fakeEmbedder{}, &fakeStore{}, Options{MaxFileSize: 10})

	file := NewFileFromBytes("offer.pdf", "application/pdf", []byte("0123456789ABC"))
	file.Size = 4

	state, err := p.Run(context.Background(), Request{Input: FileInput(file)})
	require.NoError(t, err)
	require.True(t, state.Failed())
	assert.Equal(t, KindFileTooLarge, state.Error.Kind)
	assert.Equal(t, StageConvertFileToBytes, state.Error.Step)
	assert.Zero(t, gen.callCount())
}

func TestRun_UnreadableFile(t *testing.T) {
	file := &File{
		Name:      "offer.pdf",
		MediaType: "application/pdf",
		Size:      10,
		Open: func() (io.ReadCloser, error) {
			return nil, errors.New("disk gone")
		},
	}
	p := newTestPipeline(&fakeGenerator{respond: reply("yes")}, &fakeEmbedder{}, &fakeStore{})

	state, err := p.Run(context.Background(), Request{Input: FileInput(file)})
	require.NoError(t, err)
	require.True(t, state.Failed())
	assert.Equal(t, KindFileUnreadable, state.Error.Kind)
	assert.ErrorContains(t, state.Error.Err, "disk gone")
}

func TestRun_PromptGenerationFails(t *testing.T) {
	gen := &fakeGenerator{respond: func(req models.GenerationRequest) (*models.Generation, error) {
		if req.Prompt == contentRelevancePrompt {
			return &models.Generation{Text: "yes"}, nil
		}
		return nil, errors.New("quota exceeded")
	}}
	p := newTestPipeline(gen, &fakeEmbedder{}, &fakeStore{})

	file := NewFileFromBytes("offer.pdf", "application/pdf", []byte("%PDF"))
	state, err := p.Run(context.Background(), Request{Input: FileInput(file)})
	require.NoError(t, err)
	require.True(t, state.Failed())
	assert.Equal(t, KindPromptGenerationFailed, state.Error.Kind)
	assert.Contains(t, state.Error.Reason, "quota exceeded")
	assert.Nil(t, state.FileBytes)
	assert.Empty(t, state.RequirementText)
}

func TestRun_GeneratorErrorInTextBranch(t *testing.T) {
	gen := &fakeGenerator{respond: func(models.GenerationRequest) (*models.Generation, error) {
		return nil, errors.New("network down")
	}}
	p := newTestPipeline(gen, &fakeEmbedder{}, &fakeStore{})

	state, err := p.Run(context.Background(), Request{Input: TextInput("Go developer")})
	require.NoError(t, err)
	require.True(t, state.Failed())
	assert.Equal(t, KindProviderError, state.Error.Kind)
	assert.Equal(t, StageValidateTextInput, state.Error.Step)
}

func TestRun_EmbeddingFailures(t *testing.T) {
	tests := []struct {
		name string
		emb  *fakeEmbedder
	}{
		{name: "provider error", emb: &fakeEmbedder{err: errors.New("rate limited")}},
		{name: "wrong dimensions", emb: &fakeEmbedder{vector: vector(512)}},
		{name: "empty vector", emb: &fakeEmbedder{vector: []float32{}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &fakeStore{}
			p := newTestPipeline(&fakeGenerator{respond: reply("yes")}, tt.emb, store)

			state, err := p.Run(context.Background(), Request{Input: TextInput("Go developer")})
			require.NoError(t, err)
			require.True(t, state.Failed())
			assert.Equal(t, KindEmbeddingFailed, state.Error.Kind)
			assert.Equal(t, StageEmbedRequirement, state.Error.Step)
			assert.Zero(t, store.calls)
			assert.Nil(t, state.Embedding)
		})
	}
}

func TestRun_RetrievalFails(t *testing.T) {
	store := &fakeStore{err: errors.New("connection refused")}
	p := newTestPipeline(&fakeGenerator{respond: reply("yes")}, &fakeEmbedder{vector: vector(768)}, store)

	state, err := p.Run(context.Background(), Request{Input: TextInput("Go developer")})
	require.NoError(t, err)
	require.True(t, state.Failed())
	assert.Equal(t, KindRetrievalFailed, state.Error.Kind)
	assert.Nil(t, state.MatchedProfiles)
	assert.Empty(t, state.Context)
	assert.False(t, state.Reached(StageAssembleContext))
}

func TestRun_NoMatchesStillAssemblesContext(t *testing.T) {
	store := &fakeStore{matches: []models.ProfileMatch{{ExternalID: "x", Similarity: 0.3}}}
	p := newTestPipeline(&fakeGenerator{respond: reply("yes")}, &fakeEmbedder{vector: vector(768)}, store)

	state, err := p.Run(context.Background(), Request{Input: TextInput("COBOL mainframe developer")})
	require.NoError(t, err)
	require.False(t, state.Failed())
	assert.NotNil(t, state.MatchedProfiles)
	assert.Empty(t, state.MatchedProfiles)
	assert.Empty(t, state.Context)
	assert.True(t, state.Reached(StageAssembleContext))
}

func TestRun_ThresholdIsConfigurable(t *testing.T) {
	store := &fakeStore{matches: reactMatches()}
	p := New(&fakeGenerator{respond: reply("yes")}, &fakeEmbedder{vector: vector(4)}, store, Options{SimilarityThreshold: 0.8})

	state, err := p.Run(context.Background(), Request{Input: TextInput("React developer")})
	require.NoError(t, err)
	assert.Equal(t, 0.8, store.threshold)
	assert.Equal(t, 0.8, p.Threshold())
	require.Len(t, state.MatchedProfiles, 1)
	assert.Equal(t, "rec1", state.MatchedProfiles[0].ExternalID)
}

func TestRun_StagePanicBecomesError(t *testing.T) {
	gen := &fakeGenerator{respond: func(models.GenerationRequest) (*models.Generation, error) {
		panic("malformed response")
	}}
	p := newTestPipeline(gen, &fakeEmbedder{}, &fakeStore{})

	state, err := p.Run(context.Background(), Request{Input: TextInput("Go developer")})
	require.NoError(t, err)
	require.True(t, state.Failed())
	assert.Equal(t, KindProviderError, state.Error.Kind)
	assert.Equal(t, StageValidateTextInput, state.Error.Step)
	assert.Contains(t, state.Error.Reason, "malformed response")
}

func TestRun_StagePanicDropsFileBytes(t *testing.T) {
	gen := &fakeGenerator{respond: func(models.GenerationRequest) (*models.Generation, error) {
		panic("nil candidate")
	}}
	p := newTestPipeline(gen, &fakeEmbedder{}, &fakeStore{})

	file := NewFileFromBytes("offer.pdf", "application/pdf", []byte("%PDF-1.4 offer"))
	state, err := p.Run(context.Background(), Request{Input: FileInput(file)})
	require.NoError(t, err)
	require.True(t, state.Failed())
	assert.Equal(t, KindProviderError, state.Error.Kind)
	assert.Equal(t, StageValidatePDFContent, state.Error.Step)
	assert.Nil(t, state.FileBytes)
}

func TestRun_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	gen := &fakeGenerator{respond: func(models.GenerationRequest) (*models.Generation, error) {
		cancel()
		return nil, context.Canceled
	}}
	emb := &fakeEmbedder{vector: vector(768)}
	p := newTestPipeline(gen, emb, &fakeStore{})

	state, err := p.Run(ctx, Request{Input: TextInput("Go developer")})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, state)
	assert.Empty(t, emb.calls)
}

func TestRun_AlreadyCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	gen := &fakeGenerator{respond: reply("yes")}
	p := newTestPipeline(gen, &fakeEmbedder{}, &fakeStore{})

	state, err := p.Run(ctx, Request{Input: TextInput("Go developer")})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, state)
	assert.Zero(t, gen.callCount())
}

func TestResolveRequirement_StopsBeforeEmbedding(t *testing.T) {
	gen := &fakeGenerator{respond: func(req models.GenerationRequest) (*models.Generation, error) {
		if req.Prompt == contentRelevancePrompt {
			return &models.Generation{Text: "yes"}, nil
		}
		return &models.Generation{Text: "Necesito un desarrollador Go."}, nil
	}}
	emb := &fakeEmbedder{vector: vector(768)}
	p := newTestPipeline(gen, emb, &fakeStore{})

	file := NewFileFromBytes("offer.pdf", "application/pdf", []byte("%PDF"))
	state, err := p.ResolveRequirement(context.Background(), Request{Input: FileInput(file)})
	require.NoError(t, err)
	require.False(t, state.Failed())
	assert.Equal(t, "Necesito un desarrollador Go.", state.RequirementText)
	assert.Empty(t, emb.calls)
	assert.False(t, state.Reached(StageEmbedRequirement))
}

type fakeInspector struct {
	pages int
	err   error
	seen  int
}

func (f *fakeInspector) PageCount(data []byte) (int, error) {
	f.seen = len(data)
	return f.pages, f.err
}

func TestRun_InspectorFailureIsNotFatal(t *testing.T) {
	inspector := &fakeInspector{err: errors.New("malformed xref")}
	p := New(&fakeGenerator{respond: reply("yes")}, &fakeEmbedder{vector: vector(2)}, &fakeStore{},
		Options{Inspector: inspector})

	file := NewFileFromBytes("offer.pdf", "application/pdf", []byte("%PDF-1.7"))
	state, err := p.ResolveRequirement(context.Background(), Request{Input: FileInput(file)})
	require.NoError(t, err)
	require.False(t, state.Failed())
	assert.Equal(t, len("%PDF-1.7"), inspector.seen)
}

func TestRun_CustomClassifier(t *testing.T) {
	strict := ClassifierFunc(func(reply string) Verdict {
		if strings.TrimSpace(strings.ToLower(reply)) == "yes" {
			return Verdict{Accepted: true}
		}
		return Verdict{Reason: "not exactly yes"}
	})
	gen := &fakeGenerator{respond: reply("No, and yes it is unrelated.")}
	p := New(gen, &fakeEmbedder{vector: vector(2)}, &fakeStore{}, Options{TextClassifier: strict})

	state, err := p.Run(context.Background(), Request{Input: TextInput("weather report")})
	require.NoError(t, err)
	require.True(t, state.Failed())
	assert.Equal(t, "not exactly yes", state.Error.Reason)
}
