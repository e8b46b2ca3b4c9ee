package pipeline

import (
	"errors"
	"fmt"
)

// StageID names a step of the matching graph.
type StageID string

const (
	StageValidateFileExists  StageID = "validateFileExists"
	StageValidateFileSize    StageID = "validateFileSize"
	StageValidateMimeType    StageID = "validateMimeType"
	StageConvertFileToBytes  StageID = "convertFileToBytes"
	StageValidatePDFContent  StageID = "validatePdfContent"
	StageGenerateRequirement StageID = "generateRequirementText"
	StageValidateTextInput   StageID = "validateTextInput"
	StageEmbedRequirement    StageID = "embedRequirement"
	StageRetrieveProfiles    StageID = "retrieveMatchingProfiles"
	StageAssembleContext     StageID = "assembleContext"
)

// ErrorKind classifies a terminal pipeline failure.
type ErrorKind string

const (
	KindNoFileProvided         ErrorKind = "NoFileProvided"
	KindFileTooLarge           ErrorKind = "FileTooLarge"
	KindUnsupportedMediaType   ErrorKind = "UnsupportedMediaType"
	KindFileUnreadable         ErrorKind = "FileUnreadable"
	KindNotAJobOffer           ErrorKind = "NotAJobOffer"
	KindTextInputRejected      ErrorKind = "TextInputRejected"
	KindPromptGenerationFailed ErrorKind = "PromptGenerationFailed"
	KindEmbeddingFailed        ErrorKind = "EmbeddingFailed"
	KindRetrievalFailed        ErrorKind = "RetrievalFailed"
	KindProviderError          ErrorKind = "ProviderError"
)

// StageError is the terminal error of a run. Reason is safe to show to the
// caller; Err keeps the underlying cause for logs.
type StageError struct {
	Kind   ErrorKind
	Step   StageID
	Reason string
	Err    error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s at %s: %s", e.Kind, e.Step, e.Reason)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

func newStageError(kind ErrorKind, step StageID, reason string, cause error) *StageError {
	return &StageError{Kind: kind, Step: step, Reason: reason, Err: cause}
}

// asStageError tags any error escaping a stage with that stage's identifier.
func asStageError(err error, step StageID) *StageError {
	var stageErr *StageError
	if errors.As(err, &stageErr) {
		if stageErr.Step == "" {
			stageErr.Step = step
		}
		return stageErr
	}
	return newStageError(KindProviderError, step, err.Error(), err)
}
