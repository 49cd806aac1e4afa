package service

import (
	"context"
	"errors"
	"testing"
)

const cleanAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36"

func TestFraudScorer_CleanClick(t *testing.T) {
	scorer := NewFraudScorer(nil, &fakeVelocityStore{})

	result := scorer.Score(context.Background(), ClickContext{
		IP:          "203.0.113.5",
		UserAgent:   cleanAgent,
		Referrer:    "https://news.example.com",
		OfferID:     "ML-00001",
		AffiliateID: "aff-1",
	})

	if result.Score != 0 {
		t.Fatalf("expected score 0, got %d", result.Score)
	}
	if result.IsFraud {
		t.Fatal("clean click flagged as fraud")
	}
}

func TestFraudScorer_ClampAt100(t *testing.T) {
	velocity := &fakeVelocityStore{}
	scorer := NewFraudScorer(nil, velocity)
	ctx := context.Background()

	click := ClickContext{
		IP:          "203.0.113.5",
		UserAgent:   "bot",
		OfferID:     "ML-00001",
		AffiliateID: "aff-1",
	}

	var result FraudResult
	for i := 0; i < 11; i++ {
		result = scorer.Score(ctx, click)
	}

	// 11th click from the same IP inside the window: +30 for IP velocity,
	// +50 for the bot agent, +25 for the short agent, +40 for the pair
	// burst, clamped to 100.
	if result.Score != 100 {
		t.Fatalf("expected clamped score 100, got %d", result.Score)
	}
	if !result.IsFraud {
		t.Fatal("expected is_fraud to be set")
	}
}

func TestFraudScorer_PrivateIP(t *testing.T) {
	scorer := NewFraudScorer(nil, &fakeVelocityStore{})

	for _, ip := range []string{"127.0.0.1", "10.0.0.4", "192.168.1.20"} {
		result := scorer.Score(context.Background(), ClickContext{
			IP:        ip,
			UserAgent: cleanAgent,
		})
		if result.Score != 20 {
			t.Fatalf("ip %s: expected score 20, got %d", ip, result.Score)
		}
	}
}

func TestFraudScorer_ShortUserAgent(t *testing.T) {
	scorer := NewFraudScorer(nil, &fakeVelocityStore{})

	result := scorer.Score(context.Background(), ClickContext{
		IP:        "203.0.113.5",
		UserAgent: "short",
	})

	if result.Score != 25 {
		t.Fatalf("expected score 25, got %d", result.Score)
	}
}

func TestFraudScorer_DenylistedReferrer(t *testing.T) {
	scorer := NewFraudScorer(nil, &fakeVelocityStore{})

	result := scorer.Score(context.Background(), ClickContext{
		IP:        "203.0.113.5",
		UserAgent: cleanAgent,
		Referrer:  "https://best-click-farm.example.com/go",
	})

	if result.Score != 35 {
		t.Fatalf("expected score 35, got %d", result.Score)
	}
}

func TestFraudScorer_VelocityStoreDown(t *testing.T) {
	// Velocity failures skip their rules rather than blocking the click.
	scorer := NewFraudScorer(nil, &fakeVelocityStore{err: errors.New("redis down")})

	result := scorer.Score(context.Background(), ClickContext{
		IP:        "203.0.113.5",
		UserAgent: cleanAgent,
	})

	if result.Score != 0 {
		t.Fatalf("expected score 0 with store down, got %d", result.Score)
	}
}

func TestFraudScorer_NilStoreFailsSafe(t *testing.T) {
	scorer := NewFraudScorer(nil, nil)

	result := scorer.Score(context.Background(), ClickContext{
		IP:        "203.0.113.5",
		UserAgent: cleanAgent,
	})

	if result.Score != 0 || result.IsFraud {
		t.Fatalf("expected safe zero result, got %+v", result)
	}
}
