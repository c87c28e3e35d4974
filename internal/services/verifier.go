package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-redis/redis_rate/v10"
	"github.com/hiendaovinh/toolkit/pkg/errorx"
	"github.com/redis/go-redis/v9"
	"github.com/samber/do"

	"square/internal/datastore/redis_store"
	"square/internal/interfaces"
	"square/internal/models"
	"square/internal/pkg/limiter"
)

type ServiceVerifier struct {
	*ServiceHTTP
	container *do.Injector
	redisDB   redis.UniversalClient
	limiter   interfaces.Limiter

	serviceConfig *ServiceConfig
}

func NewServiceVerifier(container *do.Injector) (*ServiceVerifier, error) {
	db, err := do.InvokeNamed[redis.UniversalClient](container, "redis-db")
	if err != nil {
		return nil, err
	}

	limiter, err := do.Invoke[interfaces.Limiter](container)
	if err != nil {
		return nil, err
	}

	serviceConfig, err := do.Invoke[*ServiceConfig](container)
	if err != nil {
		return nil, err
	}

	return &ServiceVerifier{&ServiceHTTP{}, container, db, limiter, serviceConfig}, nil
}

// EvaluateRequirements applies the requirement tree to a collaborator
// snapshot. All sub-requirements must hold; the first failing one is named in
// the returned RequirementError. A nil or empty tree always passes.
func EvaluateRequirements(req *models.TaskRequirements, vc *models.VerificationContext) error {
	if req.Empty() {
		return nil
	}

	if vc == nil {
		vc = &models.VerificationContext{}
	}

	type threshold struct {
		name string
		min  int64
		got  int64
	}
	thresholds := []threshold{
		{"min_likes", req.MinLikes, vc.Likes},
		{"min_follows", req.MinFollows, vc.Follows},
		{"min_shares", req.MinShares, vc.Shares},
		{"min_posts", req.MinPosts, vc.Posts},
		{"min_comments", req.MinComments, vc.Comments},
		{"min_articles", req.MinArticles, vc.Articles},
		{"min_login_streak", req.MinLoginStreak, vc.LoginStreak},
	}
	for _, t := range thresholds {
		// zero threshold is an exists-only check, always satisfied
		if t.min > 0 && t.got < t.min {
			return &RequirementError{
				Requirement: t.name,
				Detail:      fmt.Sprintf("have %d, need %d", t.got, t.min),
			}
		}
	}

	for _, tag := range req.RequiredHashtags {
		if !containsFold(vc.Hashtags, tag) {
			return &RequirementError{Requirement: "required_hashtags", Detail: tag}
		}
	}

	for _, token := range req.RequiredTokens {
		if !containsFold(vc.Tokens, token) {
			return &RequirementError{Requirement: "required_tokens", Detail: token}
		}
	}

	for _, nft := range req.RequiredNFTs {
		if !containsFold(vc.NFTs, nft) {
			return &RequirementError{Requirement: "required_nfts", Detail: nft}
		}
	}

	return nil
}

// ValidateProof enforces the task's proof policy before anything else runs.
func ValidateProof(task *models.Task, proof string) error {
	if task.RequiresProof && strings.TrimSpace(proof) == "" {
		return errorx.Wrap(ErrProofRequired, errorx.Validation)
	}

	return nil
}

// GatherAttestation fetches the collaborator counters and holdings for a
// user from the external services. It runs without any user lock held;
// callers re-validate the snapshot under the lock before committing.
func (service *ServiceVerifier) GatherAttestation(ctx context.Context, userID int64, task *models.Task) (*models.VerificationContext, error) {
	cached, err := redis_store.GetAttestation(ctx, service.redisDB, userID, task.ID)
	if err == nil {
		return cached, nil
	}
	if err != redis.Nil {
		return nil, err
	}

	err = service.limiter.Allow(ctx, LimitKeyUserVerify(userID), redis_rate.PerMinute(VERIFY_RATE_LIMIT_PER_MINUTE))
	if err != nil {
		if errors.Is(err, limiter.ErrRateLimited) {
			return nil, errorx.Wrap(err, errorx.RateLimiting)
		}
		return nil, err
	}

	allowed, err := redis_store.CheckVerifyLimit(ctx, service.redisDB, userID)
	if err != nil {
		return nil, err
	}
	if !allowed {
		return nil, errorx.Wrap(ErrUserLock, errorx.RateLimiting)
	}

	vc, err := service.apiCollaboratorCounters(ctx, userID)
	if err != nil {
		return nil, errorx.Wrap(err, errorx.Service)
	}

	if task.Requirements != nil && (len(task.Requirements.RequiredTokens) > 0 || len(task.Requirements.RequiredNFTs) > 0) {
		holdings, err := service.apiHoldings(ctx, userID)
		if err != nil {
			return nil, errorx.Wrap(err, errorx.Service)
		}
		vc.Tokens = holdings.Tokens
		vc.NFTs = holdings.NFTs
	}

	err = redis_store.SetAttestation(ctx, service.redisDB, userID, task.ID, vc)
	if err != nil {
		return nil, err
	}

	return vc, nil
}

func (service *ServiceVerifier) apiCollaboratorCounters(ctx context.Context, userID int64) (*models.VerificationContext, error) {
	baseURL, err := service.serviceConfig.GetStringConfig(ctx, CONFIG_COLLABORATOR_API_BASE_URL, "")
	if err != nil || baseURL == "" {
		// no collaborator configured, evaluate against an empty snapshot
		return &models.VerificationContext{}, nil
	}

	resp, err := service.httpClient(1).Get(
		fmt.Sprintf("%s/users/%d/counters", baseURL, userID),
		http.Header{},
	)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var body collaboratorCountersResp
	err = json.NewDecoder(resp.Body).Decode(&body)
	if err != nil {
		return nil, err
	}

	return &models.VerificationContext{
		Likes:       body.Likes,
		Follows:     body.Follows,
		Shares:      body.Shares,
		Posts:       body.Posts,
		Comments:    body.Comments,
		Articles:    body.Articles,
		Hashtags:    body.Hashtags,
		LoginStreak: body.LoginStreak,
	}, nil
}

func (service *ServiceVerifier) apiHoldings(ctx context.Context, userID int64) (*holdingsResp, error) {
	baseURL, err := service.serviceConfig.GetStringConfig(ctx, CONFIG_HOLDINGS_API_BASE_URL, "")
	if err != nil || baseURL == "" {
		return &holdingsResp{}, nil
	}

	resp, err := service.httpClient(1).Get(
		fmt.Sprintf("%s/accounts/%d/holdings", baseURL, userID),
		http.Header{},
	)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var body holdingsResp
	err = json.NewDecoder(resp.Body).Decode(&body)
	if err != nil {
		return nil, err
	}

	return &body, nil
}

func (service *ServiceVerifier) InvalidateAttestation(ctx context.Context, userID int64, taskID string) error {
	return redis_store.DeleteAttestation(ctx, service.redisDB, userID, taskID)
}

func containsFold(haystack []string, needle string) bool {
	for _, s := range haystack {
		if strings.EqualFold(s, needle) {
			return true
		}
	}

	return false
}

type collaboratorCountersResp struct {
	Likes       int64    `json:"likes"`
	Follows     int64    `json:"follows"`
	Shares      int64    `json:"shares"`
	Posts       int64    `json:"posts"`
	Comments    int64    `json:"comments"`
	Articles    int64    `json:"articles"`
	Hashtags    []string `json:"hashtags"`
	LoginStreak int64    `json:"login_streak"`
}

type holdingsResp struct {
	Tokens []string `json:"tokens"`
	NFTs   []string `json:"nfts"`
}
