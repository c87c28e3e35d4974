package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"square/internal/models"
)

func TestEvaluateRequirements(t *testing.T) {
	snapshot := &models.VerificationContext{
		Likes:       10,
		Follows:     5,
		Posts:       2,
		Articles:    1,
		Hashtags:    []string{"#GoLang", "#Web3"},
		LoginStreak: 4,
		Tokens:      []string{"TOKEN-A"},
		NFTs:        []string{"nft-1"},
	}

	tests := []struct {
		name            string
		req             *models.TaskRequirements
		vc              *models.VerificationContext
		wantRequirement string
	}{
		{
			name: "nil tree always passes",
			req:  nil,
		},
		{
			name: "empty tree always passes",
			req:  &models.TaskRequirements{},
		},
		{
			name: "all thresholds met",
			req:  &models.TaskRequirements{MinLikes: 10, MinFollows: 5, MinPosts: 2},
			vc:   snapshot,
		},
		{
			name:            "one threshold short fails the whole tree",
			req:             &models.TaskRequirements{MinLikes: 10, MinPosts: 3},
			vc:              snapshot,
			wantRequirement: "min_posts",
		},
		{
			name:            "nil snapshot evaluates as all zeros",
			req:             &models.TaskRequirements{MinLikes: 1},
			vc:              nil,
			wantRequirement: "min_likes",
		},
		{
			name:            "login streak short",
			req:             &models.TaskRequirements{MinLoginStreak: 5},
			vc:              snapshot,
			wantRequirement: "min_login_streak",
		},
		{
			name: "hashtags match case-insensitively",
			req:  &models.TaskRequirements{RequiredHashtags: []string{"#golang"}},
			vc:   snapshot,
		},
		{
			name:            "missing hashtag",
			req:             &models.TaskRequirements{RequiredHashtags: []string{"#defi"}},
			vc:              snapshot,
			wantRequirement: "required_hashtags",
		},
		{
			name: "token held",
			req:  &models.TaskRequirements{RequiredTokens: []string{"token-a"}},
			vc:   snapshot,
		},
		{
			name:            "nft not held",
			req:             &models.TaskRequirements{RequiredNFTs: []string{"nft-2"}},
			vc:              snapshot,
			wantRequirement: "required_nfts",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := EvaluateRequirements(tt.req, tt.vc)
			if tt.wantRequirement == "" {
				require.NoError(t, err)
				return
			}

			var reqErr *RequirementError
			require.ErrorAs(t, err, &reqErr)
			assert.Equal(t, tt.wantRequirement, reqErr.Requirement)
		})
	}
}

func TestValidateProof(t *testing.T) {
	requires := &models.Task{RequiresProof: true}
	optional := &models.Task{}

	assert.NoError(t, ValidateProof(optional, ""))
	assert.NoError(t, ValidateProof(requires, "https://example.com/post/1"))
	assert.Error(t, ValidateProof(requires, ""))
	assert.Error(t, ValidateProof(requires, "   "))
}

func TestContainsFold(t *testing.T) {
	haystack := []string{"Alpha", "BETA"}

	assert.True(t, containsFold(haystack, "alpha"))
	assert.True(t, containsFold(haystack, "beta"))
	assert.False(t, containsFold(haystack, "gamma"))
	assert.False(t, containsFold(nil, "alpha"))
}
