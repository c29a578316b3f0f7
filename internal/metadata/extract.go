// Package metadata pulls book metadata out of a loading renderer.
//
// The renderer reports nothing until its document has loaded, so
// extraction waits for a warm-up period and then polls with a bounded
// number of retries before settling on a title derived from the file name.
package metadata

import (
	"context"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/justyntemme/pagemark/internal/errors"
	"github.com/justyntemme/pagemark/internal/logger"
	"github.com/justyntemme/pagemark/pkg/models"
)

// Source is the part of the renderer metadata extraction needs
type Source interface {
	Meta() *models.Metadata
	CoverImage() ([]byte, string, error)
}

// Policy bounds the polling loop
type Policy struct {
	Warmup     time.Duration
	MaxRetries int
	Interval   time.Duration
}

// DefaultPolicy waits one second, then polls up to 15 times every 500ms
func DefaultPolicy() Policy {
	return Policy{
		Warmup:     time.Second,
		MaxRetries: 15,
		Interval:   500 * time.Millisecond,
	}
}

// Result is the outcome of an extraction
type Result struct {
	Meta      models.Metadata
	Cover     []byte
	CoverType string
	// Fallback is true when the renderer never produced metadata
	Fallback bool
}

var errNotReady = errors.Unavailable("metadata not ready")

// Extract polls src for metadata. It never fails: when the retry budget is
// spent or ctx ends, the result carries a title taken from path and no cover.
func Extract(ctx context.Context, src Source, path string, policy Policy, log *slog.Logger) Result {
	if log == nil {
		log = logger.Discard()
	}

	if policy.Warmup > 0 {
		timer := time.NewTimer(policy.Warmup)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return fallback(path)
		}
	}

	var meta models.Metadata
	attempt := 0
	poll := func() error {
		m := src.Meta()
		if m == nil {
			if attempt > 0 {
				log.Debug("retrying metadata extraction", "attempt", attempt)
			}
			attempt++
			return errNotReady
		}
		meta = *m
		return nil
	}

	b := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(policy.Interval), uint64(max(policy.MaxRetries, 0))),
		ctx,
	)
	if err := backoff.Retry(poll, b); err != nil {
		log.Warn("no metadata found after retries", "path", path, "attempts", attempt, "error", err)
		return fallback(path)
	}

	res := Result{Meta: meta}
	if res.Meta.Title == "" {
		res.Meta.Title = filepath.Base(path)
	}

	cover, coverType, err := src.CoverImage()
	if err != nil {
		log.Debug("no cover image", "path", path, "error", err)
		return res
	}
	res.Cover, res.CoverType = cover, coverType
	return res
}

func fallback(path string) Result {
	return Result{Meta: models.Metadata{Title: filepath.Base(path)}, Fallback: true}
}
