package services

import (
	"fmt"
	"strings"

	"techmatch/talent-matcher/internal/models"
)

// EmployeeRecord is one row of the HR base export.
type EmployeeRecord struct {
	ID     string         `json:"id"`
	Fields map[string]any `json:"fields"`
}

// IsActive reports whether the record should be indexed: it must have a full
// name and the Active status.
func (r EmployeeRecord) IsActive() bool {
	return r.text("Full Name") != "" && r.text("Status") == "Active"
}

func (r EmployeeRecord) text(key string) string {
	switch v := r.Fields[key].(type) {
	case string:
		return strings.TrimSpace(v)
	case fmt.Stringer:
		return strings.TrimSpace(v.String())
	case nil:
		return ""
	default:
		return strings.TrimSpace(fmt.Sprint(v))
	}
}

func (r EmployeeRecord) list(key string) []string {
	switch v := r.Fields[key].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok && strings.TrimSpace(s) != "" {
				out = append(out, strings.TrimSpace(s))
			}
		}
		return out
	case string:
		if v = strings.TrimSpace(v); v != "" {
			return []string{v}
		}
	}
	return nil
}

func (r EmployeeRecord) jobTitle() string {
	if title := r.text("Position"); title != "" {
		return title
	}
	return r.text("Job")
}

// pictureURL reads Profile Picture[0].thumbnails.large.url.
func (r EmployeeRecord) pictureURL() string {
	attachments, ok := r.Fields["Profile Picture"].([]any)
	if !ok || len(attachments) == 0 {
		return ""
	}
	first, _ := attachments[0].(map[string]any)
	thumbnails, _ := first["thumbnails"].(map[string]any)
	large, _ := thumbnails["large"].(map[string]any)
	url, _ := large["url"].(string)
	return url
}

func or(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}

// BuildProfileDocument renders the searchable profile text and metadata of a
// record. The embedding is left empty.
func BuildProfileDocument(r EmployeeRecord) models.ProfileDocument {
	title := or(r.jobTitle(), "N/A")
	seniority := or(r.text("Seniority"), "N/A")

	contract := "N/A"
	if types := r.list("Type of Contract"); len(types) > 0 {
		contract = strings.Join(types, ", ")
	}
	skills := "No technical skills listed."
	if list := r.list("Skills"); len(list) > 0 {
		skills = strings.Join(list, ", ")
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Professional Profile: %s, %s, Seniority: %s\n\n", or(r.text("Full Name"), "N/A"), title, seniority)
	fmt.Fprintf(&b, "Summary:\n%s\n\n", or(r.text("About you"), "No personal summary provided."))
	b.WriteString("Core Role:\n")
	fmt.Fprintf(&b, "- Job Title: %s\n", title)
	fmt.Fprintf(&b, "- Department: %s\n", or(r.text("Area"), "N/A"))
	fmt.Fprintf(&b, "- Seniority Level: %s\n", seniority)
	fmt.Fprintf(&b, "- Contract Type: %s\n\n", contract)
	b.WriteString("Technical Skills:\n")
	fmt.Fprintf(&b, "- Primary Skills: %s\n\n", skills)
	b.WriteString("Education:\n")
	fmt.Fprintf(&b, "- University: %s\n", or(r.text("University"), "N/A"))
	fmt.Fprintf(&b, "- Degree: %s\n", or(r.text("Career"), "N/A"))
	fmt.Fprintf(&b, "- Status: %s\n", or(r.text("Career status"), "N/A"))

	return models.ProfileDocument{
		ExternalID: r.ID,
		Content:    CleanText(b.String()),
		Metadata: models.ProfileMetadata{
			RecordID:          r.ID,
			FullName:          r.text("Full Name"),
			Email:             r.text("Email"),
			Status:            r.text("Status"),
			Area:              r.text("Area"),
			JobTitle:          r.jobTitle(),
			Seniority:         r.text("Seniority"),
			Location:          r.text("Location"),
			Office:            r.text("Office"),
			ProfilePictureURL: r.pictureURL(),
		},
	}
}
