package interrogator

import (
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strings"
)

const (
	JoyTagModelFile = "model.onnx"
	JoyTagTagsFile  = "top_tags.txt"
)

// JoyTag runs a joytag model. It has no rating head, so ratings are always
// empty, and its logits go through a sigmoid.
type JoyTag struct {
	name    string
	topTags []string
	session *session
	opts    PostprocessOptions
}

func NewJoyTag(name, dir string, opts PostprocessOptions) (*JoyTag, error) {
	tags, err := readLines(filepath.Join(dir, JoyTagTagsFile))
	if err != nil {
		return nil, fmt.Errorf("failed to read tags: %w", err)
	}
	if len(tags) == 0 {
		return nil, errors.New("top tags file is empty")
	}
	return &JoyTag{
		name:    name,
		topTags: tags,
		session: newSession(filepath.Join(dir, JoyTagModelFile), layoutNCHW, len(tags)),
		opts:    opts,
	}, nil
}

func (j *JoyTag) Name() string { return j.name }

func (j *JoyTag) Interrogate(img image.Image) (Scores, Scores, error) {
	logits, err := j.session.run(img)
	if err != nil {
		return nil, nil, err
	}
	if len(logits) != len(j.topTags) {
		return nil, nil, fmt.Errorf("model returned %d scores for %d tags", len(logits), len(j.topTags))
	}
	tags := make(Scores, len(logits))
	for i, v := range logits {
		tags[i] = TagScore{Tag: j.topTags[i], Score: sigmoid(v)}
	}
	return Scores{}, tags, nil
}

func (j *JoyTag) PostprocessTags(tags Scores, threshold float32) Scores {
	return j.opts.Postprocess(tags, threshold)
}

func (j *JoyTag) Unload() error {
	return j.session.unload()
}

func readLines(path string) ([]string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, l := range strings.Split(string(b), "\n") {
		if l = strings.TrimSpace(l); l != "" {
			out = append(out, l)
		}
	}
	return out, nil
}
