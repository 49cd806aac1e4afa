package service

import (
	"context"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/trackflow/trackflow/internal/app/model"
	"go.uber.org/zap"
)

// Scoring rule weights. Rules are additive and independent; the final score
// is clamped to 100.
const (
	weightIPVelocity   = 30
	weightPrivateIP    = 20
	weightBotAgent     = 50
	weightShortAgent   = 25
	weightPairVelocity = 40
	weightBadReferrer  = 35

	ipVelocityWindow   = 5 * time.Minute
	ipVelocityLimit    = 10
	pairVelocityWindow = time.Minute
	pairVelocityLimit  = 3
	minUserAgentLength = 10
)

var botSignatures = []string{"bot", "crawler", "spider", "scraper", "curl", "wget"}

var referrerDenylist = []string{"click-farm", "clickfarm", "traffic-bot"}

// ClickContext is the request context a click is scored on.
type ClickContext struct {
	IP          string
	UserAgent   string
	Referrer    string
	OfferID     string
	AffiliateID string
}

// FraudResult is the scoring outcome attached to a click.
type FraudResult struct {
	Score   int
	Reasons []string
	IsFraud bool
}

// VelocityStore tracks rolling click counts per key. The Redis
// implementation backs production; tests swap in a fake.
type VelocityStore interface {
	IncrWindow(ctx context.Context, key string, window time.Duration) (int64, error)
}

type redisVelocityStore struct {
	client *redis.Client
}

// NewRedisVelocityStore returns a VelocityStore over Redis counters with
// per-window expiry.
func NewRedisVelocityStore(client *redis.Client) VelocityStore {
	return &redisVelocityStore{client: client}
}

func (s *redisVelocityStore) IncrWindow(ctx context.Context, key string, window time.Duration) (int64, error) {
	count, err := s.client.Incr(ctx, key).Result()
	if err != nil {
		return 0, err
	}
	if count == 1 {
		s.client.Expire(ctx, key, window)
	}
	return count, nil
}

// FraudScorer computes a 0-100 heuristic risk score per click.
type FraudScorer struct {
	logger   *zap.Logger
	velocity VelocityStore
}

// NewFraudScorer creates a scorer over the given velocity store.
func NewFraudScorer(logger *zap.Logger, velocity VelocityStore) *FraudScorer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FraudScorer{logger: logger, velocity: velocity}
}

// Score evaluates all rules against the click context. Scoring must never
// block a click: any failure, including a panic, degrades to score 0.
func (s *FraudScorer) Score(ctx context.Context, click ClickContext) (result FraudResult) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("fraud scoring panicked, failing safe to 0",
				zap.Any("panic", r), zap.String("ip", click.IP))
			result = FraudResult{}
		}
	}()

	score := 0
	var reasons []string

	if count, err := s.incr(ctx, fmt.Sprintf("fraud:ip:%s", click.IP), ipVelocityWindow); err == nil {
		if count >= ipVelocityLimit {
			score += weightIPVelocity
			reasons = append(reasons, "too many clicks from same IP")
		}
	}

	if isPrivateIP(click.IP) {
		score += weightPrivateIP
		reasons = append(reasons, "private or loopback IP range")
	}

	ua := strings.ToLower(click.UserAgent)
	for _, sig := range botSignatures {
		if strings.Contains(ua, sig) {
			score += weightBotAgent
			reasons = append(reasons, "bot signature in user agent")
			break
		}
	}

	if len(click.UserAgent) < minUserAgentLength {
		score += weightShortAgent
		reasons = append(reasons, "user agent too short")
	}

	pairKey := fmt.Sprintf("fraud:pair:%s:%s", click.AffiliateID, click.OfferID)
	if count, err := s.incr(ctx, pairKey, pairVelocityWindow); err == nil {
		if count > pairVelocityLimit {
			score += weightPairVelocity
			reasons = append(reasons, "click burst on affiliate/offer pair")
		}
	}

	ref := strings.ToLower(click.Referrer)
	for _, keyword := range referrerDenylist {
		if strings.Contains(ref, keyword) {
			score += weightBadReferrer
			reasons = append(reasons, "denylisted referrer keyword")
			break
		}
	}

	if score > 100 {
		score = 100
	}

	return FraudResult{
		Score:   score,
		Reasons: reasons,
		IsFraud: score > model.FraudThreshold,
	}
}

func (s *FraudScorer) incr(ctx context.Context, key string, window time.Duration) (int64, error) {
	if s.velocity == nil {
		return 0, fmt.Errorf("velocity store not configured")
	}
	count, err := s.velocity.IncrWindow(ctx, key, window)
	if err != nil {
		s.logger.Warn("velocity counter unavailable, skipping rule",
			zap.String("key", key), zap.Error(err))
		return 0, err
	}
	return count, nil
}

func isPrivateIP(raw string) bool {
	ip := net.ParseIP(raw)
	if ip == nil {
		return false
	}
	return ip.IsLoopback() || ip.IsPrivate() || ip.IsLinkLocalUnicast()
}
