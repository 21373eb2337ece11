package provider

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"google.golang.org/genai"
)

const defaultGeminiModel = "gemini-2.5-flash"

// Gemini generates chapters with Gemini, holding the stable prompt prefix in
// a server-side context cache per prefix id.
type Gemini struct {
	client *genai.Client
	model  string
	ttl    time.Duration
	retry  RetryPolicy
	logger *zap.Logger

	mu     sync.Mutex
	caches map[string]cacheEntry
}

type cacheEntry struct {
	name    string
	expires time.Time
}

// NewGemini creates a Gemini generator.
func NewGemini(ctx context.Context, apiKey, model string, ttl time.Duration, retry RetryPolicy, logger *zap.Logger) (*Gemini, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}
	if model == "" {
		model = defaultGeminiModel
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return &Gemini{
		client: client,
		model:  model,
		ttl:    ttl,
		retry:  retry,
		logger: logger,
		caches: map[string]cacheEntry{},
	}, nil
}

func (g *Gemini) Name() string { return "gemini" }

func (g *Gemini) Generate(ctx context.Context, req Request) (*Response, error) {
	cfg := &genai.GenerateContentConfig{
		ResponseMIMEType:   "application/json",
		ResponseJsonSchema: chapterSchema,
	}
	cached := false
	if name := g.prefixCache(ctx, req); name != "" {
		cfg.CachedContent = name
		cached = true
	} else {
		cfg.SystemInstruction = genai.NewContentFromText(req.System, genai.RoleUser)
	}

	var text string
	err := g.retry.Do(ctx, func(ctx context.Context) error {
		resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(req.Prompt), cfg)
		if err != nil {
			return err
		}
		text = resp.Text()
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("gemini generate %s: %w", req.CacheKey, err)
	}

	var out ChapterOutput
	if err := decodeOutput(text, &out); err != nil {
		return nil, fmt.Errorf("gemini decode %s: %w", req.CacheKey, err)
	}
	return &Response{Chapter: toChapter(req, out), Provider: g.Name(), CachedPrefix: cached}, nil
}

// prefixCache returns the context cache holding req.System, creating one when
// none is live. Cache failures degrade to an uncached call.
func (g *Gemini) prefixCache(ctx context.Context, req Request) string {
	if req.PrefixID == "" || g.ttl <= 0 {
		return ""
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if e, ok := g.caches[req.PrefixID]; ok && time.Now().Before(e.expires) {
		g.logger.Debug("prefix cache hit", zap.String("prefix", req.PrefixID), zap.String("key", req.CacheKey))
		return e.name
	}

	cc, err := g.client.Caches.Create(ctx, g.model, &genai.CreateCachedContentConfig{
		DisplayName:       req.PrefixID,
		TTL:               g.ttl,
		SystemInstruction: genai.NewContentFromText(req.System, genai.RoleUser),
	})
	if err != nil {
		g.logger.Warn("create prefix cache failed; generating uncached",
			zap.String("prefix", req.PrefixID), zap.Error(err))
		return ""
	}
	// Local expiry trails the server TTL by a tenth.
	g.caches[req.PrefixID] = cacheEntry{name: cc.Name, expires: time.Now().Add(g.ttl - g.ttl/10)}
	g.logger.Info("prefix cache created", zap.String("prefix", req.PrefixID), zap.String("name", cc.Name))
	return cc.Name
}

func parseTTL(s string) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0
	}
	return d
}
