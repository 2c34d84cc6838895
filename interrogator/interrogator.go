package interrogator

import (
	"image"
	"sort"
	"strings"
)

// Interrogator turns a decoded image into rating and tag scores.
type Interrogator interface {
	Name() string
	Interrogate(img image.Image) (ratings, tags Scores, err error)
	// PostprocessTags keeps tags scoring at or above threshold.
	PostprocessTags(tags Scores, threshold float32) Scores
	Unload() error
}

type TagScore struct {
	Tag   string  `json:"tag"`
	Score float32 `json:"score"`
}

// Scores is an ordered list of label confidences.
type Scores []TagScore

func (s Scores) Map() map[string]float32 {
	m := make(map[string]float32, len(s))
	for _, it := range s {
		m[it.Tag] = it.Score
	}
	return m
}

func (s Scores) Tags() []string {
	out := make([]string, 0, len(s))
	for _, it := range s {
		out = append(out, it.Tag)
	}
	return out
}

// PostprocessOptions tune how tags are filtered and rendered.
type PostprocessOptions struct {
	ReplaceUnderscore bool
	EscapeTags        bool
	ExcludeTags       []string
}

var tagEscaper = strings.NewReplacer(`\`, `\\`, `(`, `\(`, `)`, `\)`)

// Postprocess filters tags below threshold and sorts the rest by descending
// score. Every variant shares it.
func (o PostprocessOptions) Postprocess(tags Scores, threshold float32) Scores {
	exclude := make(map[string]struct{}, len(o.ExcludeTags))
	for _, t := range o.ExcludeTags {
		exclude[strings.TrimSpace(t)] = struct{}{}
	}

	items := make(Scores, 0, len(tags))
	for _, it := range tags {
		if it.Score < threshold {
			continue
		}
		if _, ok := exclude[it.Tag]; ok {
			continue
		}
		name := it.Tag
		if o.ReplaceUnderscore {
			name = strings.ReplaceAll(name, "_", " ")
		}
		if o.EscapeTags {
			name = tagEscaper.Replace(name)
		}
		items = append(items, TagScore{Tag: name, Score: it.Score})
	}

	sort.SliceStable(items, func(i, j int) bool {
		if items[i].Score != items[j].Score {
			return items[i].Score > items[j].Score
		}
		return items[i].Tag < items[j].Tag
	})
	return items
}
