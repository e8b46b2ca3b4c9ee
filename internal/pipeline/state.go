package pipeline

import (
	"bytes"
	"io"

	"techmatch/talent-matcher/internal/models"
)

// Source tags which entry point started a run.
type Source string

const (
	SourceHR  Source = "hr"
	SourcePDF Source = "pdf"
)

// Validation keys recorded by the checks of each branch.
const (
	CheckFileExists    = "fileExists"
	CheckFileSizeValid = "fileSizeValid"
	CheckMimeTypeValid = "mimeTypeValid"
	CheckContentValid  = "contentValid"
	CheckIsValid       = "isValid"
)

type InputKind int

const (
	InputText InputKind = iota
	InputFile
)

func (k InputKind) String() string {
	if k == InputFile {
		return "file"
	}
	return "text"
}

// File is an uploaded file as declared by the client. Open is only called by
// the byte conversion stage, after the declared size and media type pass.
type File struct {
	Name      string
	MediaType string
	Size      int64
	Open      func() (io.ReadCloser, error)
}

// NewFileFromBytes wraps in-memory content as an upload.
func NewFileFromBytes(name, mediaType string, data []byte) *File {
	return &File{
		Name:      name,
		MediaType: mediaType,
		Size:      int64(len(data)),
		Open: func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(data)), nil
		},
	}
}

// Input is the raw request payload: either free text or a file submission.
// The kind is fixed at construction and decides the branch of the run.
type Input struct {
	kind InputKind
	text string
	file *File
}

func TextInput(text string) Input {
	return Input{kind: InputText, text: text}
}

// FileInput builds a file submission. A nil file means the submission had no
// file part.
func FileInput(file *File) Input {
	return Input{kind: InputFile, file: file}
}

func (i Input) Kind() InputKind { return i.kind }
func (i Input) Text() string    { return i.text }
func (i Input) File() *File     { return i.file }

type Request struct {
	Input  Input
	Model  string
	Source Source
}

// State is threaded through the stages of one run. It is owned by that run
// and never shared.
//
// MatchedProfiles is nil until the retrieval stage runs; an empty non-nil
// slice means nothing passed the threshold.
type State struct {
	Source Source
	Model  string
	Input  Input

	FileBytes       []byte
	Validation      map[string]bool
	RequirementText string
	Embedding       []float32
	MatchedProfiles []models.ProfileMatch
	Context         string
	Usage           models.TokenUsage
	Error           *StageError

	// Trace lists the stages that ran, in order.
	Trace []StageID
}

func newState(req Request) *State {
	return &State{
		Source:     req.Source,
		Model:      req.Model,
		Input:      req.Input,
		Validation: make(map[string]bool),
	}
}

// Failed reports whether the run stopped on an error.
func (s *State) Failed() bool {
	return s.Error != nil
}

// Reached reports whether stage ran during this run.
func (s *State) Reached(stage StageID) bool {
	for _, id := range s.Trace {
		if id == stage {
			return true
		}
	}
	return false
}

// Patch is the partial update returned by a stage. Zero fields leave the
// state untouched.
type Patch struct {
	FileBytes       []byte
	DropFileBytes   bool
	Validation      map[string]bool
	RequirementText string
	Embedding       []float32
	MatchedProfiles []models.ProfileMatch
	Context         *string
	Usage           models.TokenUsage
}

// apply merges p into s. Validation is append-only and usage accumulates.
func (s *State) apply(p Patch) {
	if p.FileBytes != nil {
		s.FileBytes = p.FileBytes
	}
	if p.DropFileBytes {
		s.FileBytes = nil
	}
	for k, v := range p.Validation {
		s.Validation[k] = v
	}
	if p.RequirementText != "" {
		s.RequirementText = p.RequirementText
	}
	if p.Embedding != nil {
		s.Embedding = p.Embedding
	}
	if p.MatchedProfiles != nil {
		s.MatchedProfiles = p.MatchedProfiles
	}
	if p.Context != nil {
		s.Context = *p.Context
	}
	s.Usage = s.Usage.Add(p.Usage)
}
