package extract

import (
	"context"

	"go.uber.org/zap"
)

// Composite layers extractors first-match-wins: a slot reported by an earlier
// extractor is never overridden by a later one. The deterministic pre-pass
// goes first so cheap, exact parses beat model guesses.
type Composite struct {
	passes []Extractor
}

// NewComposite builds a composite over the given passes, in priority order.
func NewComposite(passes ...Extractor) *Composite {
	return &Composite{passes: passes}
}

// Extract runs each pass in order and merges results. A failing pass is
// logged and skipped; the composite only errors when every pass fails and
// nothing was extracted, so a dead model service still leaves the
// deterministic results usable.
func (c *Composite) Extract(ctx context.Context, userText string, ec Context) (Extraction, error) {
	merged := make(Extraction)
	var lastErr error

	for _, p := range c.passes {
		ext, err := p.Extract(ctx, userText, ec)
		if err != nil {
			lastErr = err
			zap.L().Warn("extract: pass failed", zap.Error(err))
			continue
		}
		for name, cand := range ext {
			if _, taken := merged[name]; !taken {
				merged[name] = cand
			}
		}
	}

	if len(merged) == 0 && lastErr != nil {
		return nil, lastErr
	}
	return merged, nil
}
