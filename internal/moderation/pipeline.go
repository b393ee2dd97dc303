package moderation

import (
	"context"
	"time"

	"github.com/gigglechat/giggle/internal/logger"
	"github.com/gigglechat/giggle/internal/models"
)

var log = logger.New("moderation")

// FlagThreshold is the classifier score at or above which a message is
// treated as toxic.
const FlagThreshold = 0.6

// DefaultTimeout bounds the external classification call. Whichever of
// the call and the timer settles first decides the verdict.
const DefaultTimeout = 4 * time.Second

// Score is the raw verdict from the external classifier.
type Score struct {
	Score    float64 `json:"score"`
	Category string  `json:"category"`
}

// Classifier is the external toxicity classifier. It may error or
// exceed the pipeline's deadline; the pipeline fails open either way.
type Classifier interface {
	Classify(ctx context.Context, text string) (Score, error)
}

// Pipeline decides whether message text is toxic. It is stateless and
// side-effect-free: strike counting and escalation belong to the caller.
type Pipeline struct {
	classifier Classifier
	timeout    time.Duration
}

func NewPipeline(classifier Classifier, timeout time.Duration) *Pipeline {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Pipeline{classifier: classifier, timeout: timeout}
}

// Classify resolves within the pipeline's timeout regardless of
// classifier latency. The lexical denylist short-circuits before the
// external call; on classifier error or timeout the result is
// unflagged so an outage never blocks communication.
func (p *Pipeline) Classify(ctx context.Context, text string) models.ModerationResult {
	if matchesDenylist(text) {
		return models.ModerationResult{
			Score:    0.99,
			Category: "profanity",
			Flagged:  true,
			Reason:   "contains explicit language",
		}
	}

	if p.classifier == nil {
		return models.ModerationResult{Category: "neutral"}
	}

	raceCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	type outcome struct {
		score Score
		err   error
	}

	// Buffered so a classification that outlives the timer parks its
	// result instead of leaking the goroutine. A late result is never
	// applied: the select below commits exactly once.
	results := make(chan outcome, 1)
	go func() {
		score, err := p.classifier.Classify(raceCtx, text)
		results <- outcome{score: score, err: err}
	}()

	select {
	case out := <-results:
		if out.err != nil {
			log.Warn("classifier unavailable, failing open: %v", out.err)
			return models.ModerationResult{Category: "unknown"}
		}
		flagged := out.score.Score >= FlagThreshold
		result := models.ModerationResult{
			Score:    out.score.Score,
			Category: out.score.Category,
			Flagged:  flagged,
		}
		if flagged {
			result.Reason = "toxic content (" + out.score.Category + ")"
		}
		return result
	case <-raceCtx.Done():
		log.Warn("classification timed out after %s, failing open", p.timeout)
		return models.ModerationResult{Category: "unknown"}
	}
}
