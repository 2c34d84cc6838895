package service

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"sync"

	"github.com/krau/taggerapi/interrogator"
)

type Options struct {
	// Threshold is used by single-image requests that carry no threshold.
	Threshold float32
	// BatchThreshold is applied to every batch image; batch requests carry no threshold.
	BatchThreshold float32
	// SkipInvalidImages lets a batch continue past files that fail to decode.
	SkipInvalidImages bool
}

func DefaultOptions() Options {
	return Options{
		Threshold:      DefaultThreshold,
		BatchThreshold: DefaultThreshold,
	}
}

// Tagger serializes every interrogation through lock, which is shared with
// whatever else in the process touches the inference backend.
type Tagger struct {
	registry interrogator.Registry
	lock     sync.Locker
	logger   *slog.Logger
	opts     Options
}

func NewTagger(registry interrogator.Registry, lock sync.Locker, logger *slog.Logger, opts Options) *Tagger {
	if logger == nil {
		logger = slog.Default()
	}
	return &Tagger{
		registry: registry,
		lock:     lock,
		logger:   logger,
		opts:     opts,
	}
}

func (t *Tagger) Models() ([]string, error) {
	if err := t.registry.EnsureLoaded(); err != nil {
		return nil, err
	}
	return t.registry.Names(), nil
}

func (t *Tagger) lookup(model string) (interrogator.Interrogator, error) {
	if err := t.registry.EnsureLoaded(); err != nil {
		return nil, err
	}
	it, ok := t.registry.Lookup(model)
	if !ok {
		return nil, notFound("Model not found")
	}
	return it, nil
}

// Interrogate tags one base64 image. Ratings are returned unfiltered; tags
// below the threshold are dropped, and a tag overrides a rating of the same name.
func (t *Tagger) Interrogate(ctx context.Context, req InterrogateRequest) (*InterrogateResponse, error) {
	if req.Image == "" {
		return nil, notFound("Image not found")
	}
	it, err := t.lookup(req.Model)
	if err != nil {
		return nil, err
	}

	threshold := t.opts.Threshold
	if req.Threshold != nil {
		threshold = *req.Threshold
	}
	if threshold < 0 || threshold > 1 {
		return nil, badRequest("Threshold must be between 0 and 1")
	}

	img, err := interrogator.DecodeBase64(req.Image)
	if err != nil {
		return nil, err
	}

	ratings, tags, err := t.run(ctx, it, img)
	if err != nil {
		return nil, fmt.Errorf("interrogate with %s: %w", it.Name(), err)
	}

	caption := ratings.Map()
	for _, s := range it.PostprocessTags(tags, threshold) {
		caption[s.Tag] = s.Score
	}
	return &InterrogateResponse{Caption: caption}, nil
}

func (t *Tagger) run(ctx context.Context, it interrogator.Interrogator, img image.Image) (interrogator.Scores, interrogator.Scores, error) {
	t.lock.Lock()
	defer t.lock.Unlock()
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	return it.Interrogate(img)
}
