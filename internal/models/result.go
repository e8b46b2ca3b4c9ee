package models

type SearchRequest struct {
	Input string `json:"input" validate:"max=8000"`
	Model string `json:"model" validate:"omitempty,max=100"`
}

type StageErrorDetails struct {
	Reason string `json:"reason"`
	Step   string `json:"step"`
	Kind   string `json:"kind"`
}

type ErrorResponse struct {
	Error   string             `json:"error"`
	Details *StageErrorDetails `json:"details,omitempty"`
}

type MatchResponse struct {
	RequirementText string         `json:"requirementText"`
	MatchedProfiles []ProfileMatch `json:"matchedProfiles"`
	Context         string         `json:"context"`
	Usage           TokenUsage     `json:"usage"`
}

type SearchProfilesResponse struct {
	RequirementText string              `json:"requirementText"`
	Profiles        []StructuredProfile `json:"profiles"`
	Usage           TokenUsage          `json:"usage"`
}

type ProcessPDFResponse struct {
	Prompt string     `json:"prompt"`
	Usage  TokenUsage `json:"usage"`
}

type ModelsResponse struct {
	Default   string   `json:"default"`
	Available []string `json:"available"`
}

type TokenUsageResponse struct {
	TokenUsage TokenUsageView `json:"tokenUsage"`
}

type TokenUsageView struct {
	InputTokens  int    `json:"inputTokens"`
	OutputTokens int    `json:"outputTokens"`
	TotalTokens  int    `json:"totalTokens"`
	Source       string `json:"source"`
	CreatedAt    string `json:"createdAt"`
}

type HistoryResponse struct {
	Records []SearchRecord `json:"records"`
}

// StructuredProfile is a matched profile as structured by the model for the UI.
type StructuredProfile struct {
	FullName          string   `json:"fullName"`
	JobTitle          string   `json:"jobTitle"`
	Seniority         string   `json:"seniority"`
	Area              string   `json:"area"`
	Skills            []string `json:"skills"`
	ContractType      []string `json:"contractType"`
	Location          string   `json:"location"`
	Office            string   `json:"office"`
	Email             string   `json:"email"`
	ProfilePictureURL string   `json:"profilePictureUrl,omitempty"`
	SimilarityScore   string   `json:"similarityScore"`
	Summary           string   `json:"summary"`
}
