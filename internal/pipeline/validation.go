package pipeline

import (
	"context"
	"fmt"
	"io"
	"mime"
	"strings"

	"go.uber.org/zap"

	"techmatch/talent-matcher/internal/logger"
	"techmatch/talent-matcher/internal/models"
)

const mib = 1024 * 1024

func check(key string, ok bool) map[string]bool {
	return map[string]bool{key: ok}
}

func (p *Pipeline) validateFileExists(_ context.Context, s *State) (Patch, error) {
	if s.Input.File() == nil {
		return Patch{Validation: check(CheckFileExists, false)},
			newStageError(KindNoFileProvided, StageValidateFileExists, "No file was provided.", nil)
	}
	return Patch{Validation: check(CheckFileExists, true)}, nil
}

func (p *Pipeline) validateFileSize(_ context.Context, s *State) (Patch, error) {
	if s.Input.File().Size > p.opts.MaxFileSize {
		return Patch{Validation: check(CheckFileSizeValid, false)},
			newStageError(KindFileTooLarge, StageValidateFileSize, p.fileTooLargeReason(), nil)
	}
	return Patch{Validation: check(CheckFileSizeValid, true)}, nil
}

func (p *Pipeline) validateMimeType(_ context.Context, s *State) (Patch, error) {
	declared := s.Input.File().MediaType
	mediaType := normalizeMediaType(declared)

	for _, allowed := range p.opts.AllowedMimeTypes {
		if mediaType == normalizeMediaType(allowed) {
			return Patch{Validation: check(CheckMimeTypeValid, true)}, nil
		}
	}

	reason := fmt.Sprintf("Invalid file type: %s. Allowed types are: %s.",
		declared, strings.Join(p.opts.AllowedMimeTypes, ", "))
	return Patch{Validation: check(CheckMimeTypeValid, false)},
		newStageError(KindUnsupportedMediaType, StageValidateMimeType, reason, nil)
}

// convertFileToBytes reads the upload, enforcing the size cap on the bytes
// actually read since the declared size comes from the client.
func (p *Pipeline) convertFileToBytes(_ context.Context, s *State) (Patch, error) {
	file := s.Input.File()
	if file.Open == nil {
		return Patch{}, newStageError(KindFileUnreadable, StageConvertFileToBytes, "The uploaded file could not be read.", nil)
	}

	rc, err := file.Open()
	if err != nil {
		return Patch{}, newStageError(KindFileUnreadable, StageConvertFileToBytes,
			"The uploaded file could not be read.", fmt.Errorf("failed to open upload: %w", err))
	}
	defer rc.Close()

	data, err := io.ReadAll(io.LimitReader(rc, p.opts.MaxFileSize+1))
	if err != nil {
		return Patch{}, newStageError(KindFileUnreadable, StageConvertFileToBytes,
			"The uploaded file could not be read.", fmt.Errorf("failed to read upload: %w", err))
	}
	if int64(len(data)) > p.opts.MaxFileSize {
		return Patch{Validation: check(CheckFileSizeValid, false)},
			newStageError(KindFileTooLarge, StageConvertFileToBytes, p.fileTooLargeReason(), nil)
	}
	if len(data) == 0 {
		return Patch{}, newStageError(KindFileUnreadable, StageConvertFileToBytes, "The uploaded file is empty.", nil)
	}

	if p.opts.Inspector != nil {
		pages, err := p.opts.Inspector.PageCount(data)
		if err != nil {
			p.log.Warn("could not parse uploaded PDF",
				zap.String("file", file.Name),
				zap.Error(err),
			)
		} else {
			p.log.Debug("upload inspected",
				zap.String("file", file.Name),
				zap.Int("pages", pages),
				zap.Int("bytes", len(data)),
			)
		}
	}

	return Patch{FileBytes: data}, nil
}

func (p *Pipeline) validatePDFContent(ctx context.Context, s *State) (Patch, error) {
	gen, err := p.generator.Generate(ctx, models.GenerationRequest{
		Model:  s.Model,
		Prompt: contentRelevancePrompt,
		Attachment: &models.Attachment{
			Data:      s.FileBytes,
			MediaType: normalizeMediaType(s.Input.File().MediaType),
		},
	})
	if err != nil {
		return Patch{DropFileBytes: true}, newStageError(KindProviderError, StageValidatePDFContent,
			fmt.Sprintf("Content validation failed: %v", err), err)
	}

	verdict := p.opts.ContentClassifier.Classify(gen.Text)
	patch := Patch{Validation: check(CheckContentValid, verdict.Accepted), Usage: gen.Usage}
	if !verdict.Accepted {
		p.log.Info("upload rejected by content check",
			zap.String("reply", logger.TruncateForLog(gen.Text, 120)),
		)
		patch.DropFileBytes = true
		return patch, newStageError(KindNotAJobOffer, StageValidatePDFContent,
			"The PDF does not contain a valid software development job offer.", nil)
	}
	return patch, nil
}

// validateTextInput asks the model whether the text describes a software
// developer role. An accepted text becomes the requirement unmodified.
func (p *Pipeline) validateTextInput(ctx context.Context, s *State) (Patch, error) {
	text := s.Input.Text()
	if strings.TrimSpace(text) == "" {
		return Patch{Validation: check(CheckIsValid, false)},
			newStageError(KindTextInputRejected, StageValidateTextInput, "The input text is empty.", nil)
	}

	gen, err := p.generator.Generate(ctx, models.GenerationRequest{
		Model:  s.Model,
		Prompt: buildTextValidationPrompt(text),
	})
	if err != nil {
		return Patch{}, newStageError(KindProviderError, StageValidateTextInput,
			fmt.Sprintf("Text validation failed: %v", err), err)
	}

	verdict := p.opts.TextClassifier.Classify(gen.Text)
	patch := Patch{Validation: check(CheckIsValid, verdict.Accepted), Usage: gen.Usage}
	if !verdict.Accepted {
		reason := verdict.Reason
		if reason == "" {
			reason = "The input does not describe a software developer job."
		}
		return patch, newStageError(KindTextInputRejected, StageValidateTextInput, reason, nil)
	}

	patch.RequirementText = text
	return patch, nil
}

func (p *Pipeline) fileTooLargeReason() string {
	return fmt.Sprintf("File size exceeds the %s limit.", formatMiB(p.opts.MaxFileSize))
}

func formatMiB(n int64) string {
	if n%mib == 0 {
		return fmt.Sprintf("%d MiB", n/mib)
	}
	return fmt.Sprintf("%.1f MiB", float64(n)/mib)
}

// normalizeMediaType drops parameters and lowercases, so "Application/PDF;
// name=x" compares equal to "application/pdf".
func normalizeMediaType(v string) string {
	mediaType, _, err := mime.ParseMediaType(v)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(v))
	}
	return mediaType
}
