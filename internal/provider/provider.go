// Package provider generates chapters through external text-generation
// services. Every generator takes a prompt and returns a structured chapter.
package provider

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/jpearleverett/story-continuity/internal/config"
	"github.com/jpearleverett/story-continuity/internal/model"
)

// Request is one chapter generation call.
type Request struct {
	// CacheKey is the derived generation key for this call.
	CacheKey string
	// PrefixID identifies the stable prompt prefix; providers that support
	// context caching reuse a cache per PrefixID.
	PrefixID string
	// System is the stable prefix: story bible and writing rules.
	System string
	// Prompt is the per-chapter dynamic section.
	Prompt string

	Chapter    int
	Subchapter int
	PathKey    string

	// Guidance and Mandatory are the structured inputs behind Prompt, for
	// generators that do not read prose instructions.
	Guidance  *model.ChapterArc
	Mandatory []model.Thread
}

// Response is a generated chapter.
type Response struct {
	Chapter  model.Chapter
	Provider string
	// CachedPrefix reports whether a provider-side context cache was used.
	CachedPrefix bool
}

// Generator produces chapters.
type Generator interface {
	Name() string
	Generate(ctx context.Context, req Request) (*Response, error)
}

// NewFromConfig builds the configured generator. With Fallback set, failures
// of an online provider fall through to the offline generator.
func NewFromConfig(ctx context.Context, cfg config.ProviderConfig, logger *zap.Logger) (Generator, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	retry := DefaultRetryPolicy()
	if cfg.MaxRetries > 0 {
		retry.MaxAttempts = cfg.MaxRetries
	}

	var g Generator
	switch strings.ToLower(cfg.Name) {
	case "openai":
		g = NewOpenAI(cfg.APIKey, cfg.Model, cfg.MaxOutput, retry)
	case "gemini":
		gm, err := NewGemini(ctx, cfg.APIKey, cfg.Model, parseTTL(cfg.CacheTTL), retry, logger)
		if err != nil {
			return nil, err
		}
		g = gm
	case "offline", "":
		return NewOffline(), nil
	default:
		return nil, fmt.Errorf("unknown provider %q", cfg.Name)
	}

	if cfg.Fallback {
		return WithFallback(g, NewOffline(), logger), nil
	}
	return g, nil
}

// toChapter converts a decoded provider output into a chapter at the requested position.
func toChapter(req Request, out ChapterOutput) model.Chapter {
	ch := model.Chapter{
		Chapter:        req.Chapter,
		Subchapter:     req.Subchapter,
		PathKey:        req.PathKey,
		Title:          strings.TrimSpace(out.Title),
		BridgeText:     strings.TrimSpace(out.BridgeText),
		Narrative:      strings.TrimSpace(out.Narrative),
		ChapterSummary: strings.TrimSpace(out.ChapterSummary),
		Threads:        []model.ThreadAnnotation{},
	}
	for _, t := range out.NarrativeThreads {
		ch.Threads = append(ch.Threads, t.Annotation())
	}
	return ch
}
