package handlers

import (
	"context"
	"errors"
	"io"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"techmatch/talent-matcher/internal/logger"
	"techmatch/talent-matcher/internal/models"
	"techmatch/talent-matcher/internal/pipeline"
	"techmatch/talent-matcher/internal/services"
)

// Matcher runs the matching pipeline.
type Matcher interface {
	Run(ctx context.Context, req pipeline.Request) (*pipeline.State, error)
	ResolveRequirement(ctx context.Context, req pipeline.Request) (*pipeline.State, error)
}

// ModelCatalog resolves the per-request model selection.
type ModelCatalog interface {
	ResolveModel(name string) string
	DefaultModel() string
	AvailableModels() []string
}

type SearchHandler struct {
	matcher    Matcher
	models     ModelCatalog
	structurer services.ProfileStructurer
	recorder   services.SearchRecorder
	validate   *validator.Validate
	timeout    time.Duration
	log        *zap.Logger
}

func NewSearchHandler(
	matcher Matcher,
	catalog ModelCatalog,
	structurer services.ProfileStructurer,
	recorder services.SearchRecorder,
	timeout time.Duration,
	log *zap.Logger,
) *SearchHandler {
	return &SearchHandler{
		matcher:    matcher,
		models:     catalog,
		structurer: structurer,
		recorder:   recorder,
		validate:   validator.New(),
		timeout:    timeout,
		log:        logger.Named(log, "handlers"),
	}
}

// HandleMatch handles POST /match
func (h *SearchHandler) HandleMatch(c *fiber.Ctx) error {
	req, query, err := h.parseRequest(c)
	if err != nil {
		return err
	}

	ctx, cancel := h.requestContext(c)
	defer cancel()

	state, err := h.matcher.Run(ctx, req)
	if err != nil {
		return h.cancelled(err)
	}
	h.record(state, query, models.TokenUsage{})

	if state.Failed() {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(stageErrorResponse("Agent processing error", state.Error))
	}

	return c.JSON(models.MatchResponse{
		RequirementText: state.RequirementText,
		MatchedProfiles: state.MatchedProfiles,
		Context:         state.Context,
		Usage:           state.Usage,
	})
}

// HandleSearchProfiles handles POST /search-profiles. It runs the pipeline and
// structures the matched profiles for display.
func (h *SearchHandler) HandleSearchProfiles(c *fiber.Ctx) error {
	req, query, err := h.parseRequest(c)
	if err != nil {
		return err
	}

	ctx, cancel := h.requestContext(c)
	defer cancel()

	state, err := h.matcher.Run(ctx, req)
	if err != nil {
		return h.cancelled(err)
	}
	if state.Failed() {
		h.record(state, query, models.TokenUsage{})
		return c.Status(fiber.StatusUnprocessableEntity).JSON(stageErrorResponse("Agent processing error", state.Error))
	}

	profiles, usage, err := h.structurer.Structure(ctx, state.Model, state.RequirementText, state.Context)
	h.record(state, query, usage)
	if err != nil {
		if ctx.Err() != nil {
			return h.cancelled(ctx.Err())
		}
		h.log.Error("❌ Failed to structure profiles", zap.Error(err))
		return c.Status(fiber.StatusBadGateway).JSON(models.ErrorResponse{
			Error: "Error processing search request",
		})
	}

	return c.JSON(models.SearchProfilesResponse{
		RequirementText: state.RequirementText,
		Profiles:        profiles,
		Usage:           state.Usage.Add(usage),
	})
}

// HandleProcessPDF handles POST /process-pdf. It only turns the uploaded PDF
// into a requirement.
func (h *SearchHandler) HandleProcessPDF(c *fiber.Ctx) error {
	if !isMultipart(c) {
		return c.Status(fiber.StatusBadRequest).JSON(models.ErrorResponse{
			Error: "Expected a multipart/form-data upload with a 'file' field",
		})
	}

	req, query := h.fileRequest(c)

	ctx, cancel := h.requestContext(c)
	defer cancel()

	state, err := h.matcher.ResolveRequirement(ctx, req)
	if err != nil {
		return h.cancelled(err)
	}
	h.record(state, query, models.TokenUsage{})

	if state.Failed() {
		return c.Status(fiber.StatusBadRequest).JSON(stageErrorResponse("Invalid PDF", state.Error))
	}

	return c.JSON(models.ProcessPDFResponse{
		Prompt: state.RequirementText,
		Usage:  state.Usage,
	})
}

// HandleModels handles GET /models
func (h *SearchHandler) HandleModels(c *fiber.Ctx) error {
	return c.JSON(models.ModelsResponse{
		Default:   h.models.DefaultModel(),
		Available: h.models.AvailableModels(),
	})
}

// parseRequest builds the pipeline request. Multipart bodies take the file
// branch, anything else is read as JSON text input.
func (h *SearchHandler) parseRequest(c *fiber.Ctx) (pipeline.Request, string, error) {
	if isMultipart(c) {
		req, query := h.fileRequest(c)
		return req, query, nil
	}

	var body models.SearchRequest
	if err := c.BodyParser(&body); err != nil {
		return pipeline.Request{}, "", fiber.NewError(fiber.StatusBadRequest, "Invalid request payload")
	}
	if err := h.validate.Struct(body); err != nil {
		return pipeline.Request{}, "", fiber.NewError(fiber.StatusBadRequest, validationMessage(err))
	}

	return pipeline.Request{
		Input:  pipeline.TextInput(body.Input),
		Model:  h.models.ResolveModel(body.Model),
		Source: pipeline.SourceHR,
	}, body.Input, nil
}

func (h *SearchHandler) fileRequest(c *fiber.Ctx) (pipeline.Request, string) {
	req := pipeline.Request{
		Input:  pipeline.FileInput(nil),
		Model:  h.models.ResolveModel(c.FormValue("model")),
		Source: pipeline.SourcePDF,
	}

	fh, err := c.FormFile("file")
	if err != nil {
		return req, ""
	}

	req.Input = pipeline.FileInput(&pipeline.File{
		Name:      fh.Filename,
		MediaType: fh.Header.Get(fiber.HeaderContentType),
		Size:      fh.Size,
		Open: func() (io.ReadCloser, error) {
			return fh.Open()
		},
	})
	return req, fh.Filename
}

func (h *SearchHandler) requestContext(c *fiber.Ctx) (context.Context, context.CancelFunc) {
	if h.timeout <= 0 {
		return context.WithCancel(c.UserContext())
	}
	return context.WithTimeout(c.UserContext(), h.timeout)
}

func (h *SearchHandler) cancelled(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fiber.NewError(fiber.StatusGatewayTimeout, "Search timed out")
	}
	return fiber.NewError(fiber.StatusRequestTimeout, "Search cancelled")
}

func (h *SearchHandler) record(state *pipeline.State, query string, extra models.TokenUsage) {
	if h.recorder == nil {
		return
	}
	h.recorder.Enqueue(newSearchRecord(state, query, extra))
}

func newSearchRecord(state *pipeline.State, query string, extra models.TokenUsage) *models.SearchRecord {
	usage := state.Usage.Add(extra)
	record := &models.SearchRecord{
		Source:          string(state.Source),
		Model:           state.Model,
		Query:           query,
		RequirementText: state.RequirementText,
		Status:          models.SearchCompleted,
		MatchCount:      len(state.MatchedProfiles),
		InputTokens:     usage.InputTokens,
		OutputTokens:    usage.OutputTokens,
		TotalTokens:     usage.Total(),
	}
	if state.Failed() {
		record.Status = models.SearchFailed
		record.FailedStep = string(state.Error.Step)
		record.ErrorReason = state.Error.Reason
	}
	return record
}

func isMultipart(c *fiber.Ctx) bool {
	return strings.HasPrefix(strings.ToLower(c.Get(fiber.HeaderContentType)), fiber.MIMEMultipartForm)
}
