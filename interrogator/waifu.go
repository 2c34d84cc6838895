package interrogator

import (
	"encoding/csv"
	"errors"
	"fmt"
	"image"
	"io"
	"os"
	"path/filepath"
	"strconv"
)

const (
	WaifuModelFile = "model.onnx"
	WaifuTagsFile  = "selected_tags.csv"

	ratingCategory = 9
)

type label struct {
	name     string
	category int
}

// WaifuDiffusion runs a WD14-style tagger: the model emits one probability per
// row of selected_tags.csv, and rows in the rating category are ratings.
type WaifuDiffusion struct {
	name    string
	labels  []label
	session *session
	opts    PostprocessOptions
}

func NewWaifuDiffusion(name, dir string, opts PostprocessOptions) (*WaifuDiffusion, error) {
	labels, err := readSelectedTags(filepath.Join(dir, WaifuTagsFile))
	if err != nil {
		return nil, err
	}
	return &WaifuDiffusion{
		name:    name,
		labels:  labels,
		session: newSession(filepath.Join(dir, WaifuModelFile), layoutNHWC, len(labels)),
		opts:    opts,
	}, nil
}

func (w *WaifuDiffusion) Name() string { return w.name }

func (w *WaifuDiffusion) Interrogate(img image.Image) (Scores, Scores, error) {
	probs, err := w.session.run(img)
	if err != nil {
		return nil, nil, err
	}
	return splitLabels(w.labels, probs)
}

func (w *WaifuDiffusion) PostprocessTags(tags Scores, threshold float32) Scores {
	return w.opts.Postprocess(tags, threshold)
}

func (w *WaifuDiffusion) Unload() error {
	return w.session.unload()
}

func splitLabels(labels []label, probs []float32) (Scores, Scores, error) {
	if len(probs) != len(labels) {
		return nil, nil, fmt.Errorf("model returned %d scores for %d labels", len(probs), len(labels))
	}
	var ratings, tags Scores
	for i, l := range labels {
		s := TagScore{Tag: l.name, Score: probs[i]}
		if l.category == ratingCategory {
			ratings = append(ratings, s)
		} else {
			tags = append(tags, s)
		}
	}
	return ratings, tags, nil
}

func readSelectedTags(path string) ([]label, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open tags: %w", err)
	}
	defer f.Close()
	return parseSelectedTags(f)
}

func parseSelectedTags(r io.Reader) ([]label, error) {
	cr := csv.NewReader(r)
	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read tags header: %w", err)
	}
	nameCol, catCol := -1, -1
	for i, h := range header {
		switch h {
		case "name":
			nameCol = i
		case "category":
			catCol = i
		}
	}
	if nameCol < 0 || catCol < 0 {
		return nil, errors.New("tags csv needs name and category columns")
	}

	var labels []label
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read tags: %w", err)
		}
		cat, err := strconv.Atoi(rec[catCol])
		if err != nil {
			return nil, fmt.Errorf("invalid category %q for tag %q", rec[catCol], rec[nameCol])
		}
		labels = append(labels, label{name: rec[nameCol], category: cat})
	}
	if len(labels) == 0 {
		return nil, errors.New("tags csv is empty")
	}
	return labels, nil
}
