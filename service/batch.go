package service

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/krau/taggerapi/interrogator"
)

var batchExtensions = map[string]struct{}{
	"jpg":  {},
	"jpeg": {},
	"png":  {},
}

// BatchInterrogate tags every jpg/jpeg/png file in req.SrcDir and writes one
// comma-separated tag file per image into req.DstDir. The whole batch runs
// under a single acquisition of the shared lock.
func (t *Tagger) BatchInterrogate(ctx context.Context, req BatchRequest) (*BatchResponse, error) {
	src, dst := req.SrcDir, req.DstDir
	if strings.TrimSpace(src) == "" {
		return nil, badRequest("Source directory is required")
	}
	if _, err := os.Stat(src); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, notFound("Source directory not exists")
		}
		return nil, fmt.Errorf("stat source directory: %w", err)
	}
	if strings.TrimSpace(dst) == "" {
		dst = src
	}
	if _, err := os.Stat(dst); errors.Is(err, fs.ErrNotExist) {
		if err := os.MkdirAll(dst, 0755); err != nil {
			return nil, fmt.Errorf("create destination directory: %w", err)
		}
	}
	if strings.TrimSpace(req.Model) == "" {
		return nil, badRequest("Model is required")
	}
	if _, err := t.lookup(req.Model); err != nil {
		return nil, err
	}

	images, err := listImages(src)
	if err != nil {
		return nil, err
	}
	if len(images) == 0 {
		return &BatchResponse{Success: true, Message: MsgNoImages}, nil
	}

	if err := t.runBatch(ctx, req.Model, src, dst, images); err != nil {
		return nil, err
	}
	return &BatchResponse{Success: true, Message: MsgCompleted}, nil
}

func (t *Tagger) runBatch(ctx context.Context, model, src, dst string, images []string) error {
	t.lock.Lock()
	defer t.lock.Unlock()

	it, err := t.lookup(model)
	if err != nil {
		return err
	}
	logger := t.logger.With(
		slog.String("batch_id", uuid.NewString()),
		slog.String("model", model),
		slog.String("src", src),
		slog.String("dst", dst),
	)
	logger.Info("Starting batch", slog.Int("images", len(images)))

	written := 0
	for i, name := range images {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("batch aborted after %d/%d images: %w", i, len(images), err)
		}
		logger.Info(fmt.Sprintf("Interrogating %d/%d", i+1, len(images)), slog.String("file", name))

		img, err := interrogator.Open(filepath.Join(src, name))
		if err != nil {
			if t.opts.SkipInvalidImages {
				logger.Warn("Skipping unreadable image", slog.String("file", name), slog.String("error", err.Error()))
				continue
			}
			return err
		}
		_, tags, err := it.Interrogate(img)
		if err != nil {
			return fmt.Errorf("interrogate %s: %w", name, err)
		}
		tags = it.PostprocessTags(tags, t.opts.BatchThreshold)

		out := filepath.Join(dst, OutputName(name))
		if err := os.WriteFile(out, []byte(strings.Join(tags.Tags(), ",")), 0644); err != nil {
			return fmt.Errorf("write tags for %s: %w", name, err)
		}
		written++
	}
	logger.Info("Batch completed", slog.Int("written", written))
	return nil
}

// listImages returns the regular files in dir with a batch extension, in
// lexicographic order.
func listImages(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read source directory: %w", err)
	}
	var images []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		dot := strings.LastIndex(name, ".")
		if dot < 0 {
			continue
		}
		if _, ok := batchExtensions[strings.ToLower(name[dot+1:])]; ok {
			images = append(images, name)
		}
	}
	return images, nil
}

// OutputName cuts name at its first dot and appends ".txt", so "a.b.jpg"
// becomes "a.txt".
func OutputName(name string) string {
	if i := strings.Index(name, "."); i >= 0 {
		name = name[:i]
	}
	return name + ".txt"
}
