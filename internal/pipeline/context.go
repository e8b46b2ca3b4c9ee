package pipeline

import (
	"context"
	"fmt"
	"strings"

	"techmatch/talent-matcher/internal/models"
)

const (
	notAvailable   = "N/A"
	blockSeparator = "--------------------"
)

func (p *Pipeline) assembleContext(_ context.Context, s *State) (Patch, error) {
	text := BuildContext(s.MatchedProfiles)
	return Patch{Context: &text}, nil
}

// BuildContext renders matches as numbered profile blocks for the structuring
// prompt. Metadata may arrive as a structure or as serialized JSON; anything
// unreadable renders as N/A.
func BuildContext(matches []models.ProfileMatch) string {
	blocks := make([]string, 0, len(matches))
	for i, m := range matches {
		meta, err := models.ParseMetadata(m.Metadata)
		if err != nil {
			meta = models.ProfileMetadata{}
		}

		var b strings.Builder
		fmt.Fprintf(&b, "Profile %d:\n", i+1)
		b.WriteString(m.Content)
		b.WriteString("\n\nAdditional Metadata:\n")
		fmt.Fprintf(&b, "- Email: %s\n", orNA(meta.Email))
		fmt.Fprintf(&b, "- Location: %s\n", orNA(meta.Location))
		fmt.Fprintf(&b, "- Office: %s\n", orNA(meta.Office))
		fmt.Fprintf(&b, "- Profile Picture URL: %s\n", orNA(meta.ProfilePictureURL))
		fmt.Fprintf(&b, "- Similarity Score: %.1f%%\n", m.Similarity*100)
		b.WriteString(blockSeparator)
		blocks = append(blocks, b.String())
	}
	return strings.Join(blocks, "\n")
}

func orNA(v string) string {
	if strings.TrimSpace(v) == "" {
		return notAvailable
	}
	return v
}
