package interrogator

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
)

// DiscoverDir treats every subdirectory of dir holding a model.onnx as a
// model named after the directory. The tags file decides the variant.
func DiscoverDir(dir string, opts PostprocessOptions) Discoverer {
	return func() ([]Interrogator, error) {
		entries, err := os.ReadDir(dir)
		if errors.Is(err, fs.ErrNotExist) {
			slog.Warn("Model dir does not exist", slog.String("model_dir", dir))
			return nil, nil
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read model dir: %w", err)
		}

		var found []Interrogator
		for _, e := range entries {
			if !e.IsDir() {
				continue
			}
			modelDir := filepath.Join(dir, e.Name())
			if !exists(filepath.Join(modelDir, WaifuModelFile)) {
				continue
			}

			var (
				it  Interrogator
				err error
			)
			switch {
			case exists(filepath.Join(modelDir, WaifuTagsFile)):
				it, err = NewWaifuDiffusion(e.Name(), modelDir, opts)
			case exists(filepath.Join(modelDir, JoyTagTagsFile)):
				it, err = NewJoyTag(e.Name(), modelDir, opts)
			default:
				slog.Warn("Skipping model without tags file", slog.String("dir", modelDir))
				continue
			}
			if err != nil {
				slog.Error("Failed to register model", slog.String("dir", modelDir), slog.String("error", err.Error()))
				continue
			}
			slog.Info("Discovered interrogator", slog.String("model", it.Name()))
			found = append(found, it)
		}
		return found, nil
	}
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
