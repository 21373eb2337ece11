package provider

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// WithFallback returns a generator that prefers primary and falls back on error.
func WithFallback(primary, fallback Generator, logger *zap.Logger) Generator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &fallbackGenerator{p: primary, f: fallback, logger: logger}
}

type fallbackGenerator struct {
	p, f   Generator
	logger *zap.Logger
}

func (g *fallbackGenerator) Name() string {
	if g.p == nil {
		return g.f.Name()
	}
	return g.p.Name() + "+" + g.f.Name()
}

func (g *fallbackGenerator) Generate(ctx context.Context, req Request) (*Response, error) {
	if g.p == nil {
		return g.f.Generate(ctx, req)
	}
	resp, err := g.p.Generate(ctx, req)
	if err == nil {
		return resp, nil
	}
	// A cancelled caller wants nothing committed, not a substitute chapter.
	if ctx.Err() != nil {
		return nil, err
	}
	g.logger.Warn("primary provider failed; using fallback",
		zap.String("primary", g.p.Name()),
		zap.String("fallback", g.f.Name()),
		zap.String("key", req.CacheKey),
		zap.Error(err))
	resp, ferr := g.f.Generate(ctx, req)
	if ferr != nil {
		return nil, fmt.Errorf("fallback after %v: %w", err, ferr)
	}
	return resp, nil
}
