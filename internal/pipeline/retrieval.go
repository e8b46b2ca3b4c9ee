package pipeline

import (
	"context"
	"fmt"
	"sort"

	"techmatch/talent-matcher/internal/models"
)

func (p *Pipeline) embedRequirement(ctx context.Context, s *State) (Patch, error) {
	emb, err := p.embedder.Embed(ctx, s.RequirementText)
	if err != nil {
		return Patch{}, newStageError(KindEmbeddingFailed, StageEmbedRequirement,
			fmt.Sprintf("Failed to embed requirement: %v", err), err)
	}
	if len(emb.Vector) == 0 {
		return Patch{}, newStageError(KindEmbeddingFailed, StageEmbedRequirement,
			"Failed to embed requirement: empty vector.", nil)
	}
	if dims := p.opts.EmbeddingDimensions; dims > 0 && len(emb.Vector) != dims {
		return Patch{}, newStageError(KindEmbeddingFailed, StageEmbedRequirement,
			fmt.Sprintf("Failed to embed requirement: expected %d dimensions, got %d.", dims, len(emb.Vector)), nil)
	}

	return Patch{
		Embedding: emb.Vector,
		Usage:     models.TokenUsage{InputTokens: emb.Tokens},
	}, nil
}

func (p *Pipeline) retrieveProfiles(ctx context.Context, s *State) (Patch, error) {
	matches, err := p.store.Query(ctx, s.Embedding, p.opts.SimilarityThreshold)
	if err != nil {
		return Patch{}, newStageError(KindRetrievalFailed, StageRetrieveProfiles,
			fmt.Sprintf("Failed to retrieve matching profiles: %v", err), err)
	}
	return Patch{MatchedProfiles: FilterMatches(matches, p.opts.SimilarityThreshold)}, nil
}

// FilterMatches keeps matches strictly above threshold, most similar first.
// Equal similarities keep the store's order. The result is never nil.
func FilterMatches(matches []models.ProfileMatch, threshold float64) []models.ProfileMatch {
	kept := make([]models.ProfileMatch, 0, len(matches))
	for _, m := range matches {
		if m.Similarity > threshold {
			kept = append(kept, m)
		}
	}
	sort.SliceStable(kept, func(i, j int) bool {
		return kept[i].Similarity > kept[j].Similarity
	})
	return kept
}
