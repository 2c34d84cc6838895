package interrogator

import (
	"bytes"
	"encoding/base64"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPostprocess(t *testing.T) {
	tags := Scores{
		{Tag: "1girl", Score: 0.9},
		{Tag: "solo", Score: 0.35},
		{Tag: "smile", Score: 0.3499},
		{Tag: "long_hair", Score: 0.6},
		{Tag: "blush", Score: 0.6},
	}

	t.Run("threshold_and_order", func(t *testing.T) {
		got := PostprocessOptions{}.Postprocess(tags, 0.35)
		require.Equal(t, []string{"1girl", "blush", "long_hair", "solo"}, got.Tags())
		for _, it := range got {
			require.GreaterOrEqual(t, it.Score, float32(0.35))
		}
	})

	t.Run("zero_threshold_keeps_all", func(t *testing.T) {
		got := PostprocessOptions{}.Postprocess(tags, 0)
		require.Len(t, got, len(tags))
	})

	t.Run("rendering", func(t *testing.T) {
		opts := PostprocessOptions{
			ReplaceUnderscore: true,
			EscapeTags:        true,
			ExcludeTags:       []string{"1girl"},
		}
		got := opts.Postprocess(Scores{
			{Tag: "1girl", Score: 0.9},
			{Tag: "long_hair", Score: 0.8},
			{Tag: "kaname_madoka_(cosplay)", Score: 0.7},
		}, 0.5)
		require.Equal(t, []string{"long hair", `kaname madoka \(cosplay\)`}, got.Tags())
	})

	t.Run("input_untouched", func(t *testing.T) {
		in := Scores{{Tag: "b", Score: 0.1}, {Tag: "a", Score: 0.9}}
		_ = PostprocessOptions{}.Postprocess(in, 0)
		require.Equal(t, "b", in[0].Tag)
	})
}

func TestParseSelectedTags(t *testing.T) {
	csv := "tag_id,name,category,count\n" +
		"9999999,general,9,1\n" +
		"9999998,sensitive,9,1\n" +
		"470575,1girl,0,4000000\n" +
		"1,hatsune_miku,4,100\n"
	labels, err := parseSelectedTags(strings.NewReader(csv))
	require.NoError(t, err)
	require.Len(t, labels, 4)

	ratings, tags, err := splitLabels(labels, []float32{0.8, 0.1, 0.95, 0.5})
	require.NoError(t, err)
	require.Equal(t, map[string]float32{"general": 0.8, "sensitive": 0.1}, ratings.Map())
	require.Equal(t, []string{"1girl", "hatsune_miku"}, tags.Tags())

	_, _, err = splitLabels(labels, []float32{0.1})
	require.Error(t, err)

	_, err = parseSelectedTags(strings.NewReader("tag_id,count\n1,2\n"))
	require.Error(t, err)
}

type stubInterrogator struct{ name string }

func (s stubInterrogator) Name() string { return s.name }
func (s stubInterrogator) Interrogate(image.Image) (Scores, Scores, error) {
	return nil, nil, nil
}
func (s stubInterrogator) PostprocessTags(tags Scores, threshold float32) Scores {
	return PostprocessOptions{}.Postprocess(tags, threshold)
}
func (s stubInterrogator) Unload() error { return nil }

func TestRegistryPopulatesOnce(t *testing.T) {
	var calls atomic.Int32
	reg := NewRegistry(func() ([]Interrogator, error) {
		calls.Add(1)
		return []Interrogator{
			stubInterrogator{name: "wd14-vit-v2"},
			stubInterrogator{name: "joytag"},
			stubInterrogator{name: "wd14-vit-v2"},
		}, nil
	})

	var wg sync.WaitGroup
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			require.NoError(t, reg.EnsureLoaded())
		}()
	}
	wg.Wait()

	require.Equal(t, int32(1), calls.Load())
	require.Equal(t, []string{"wd14-vit-v2", "joytag"}, reg.Names())

	first, ok := reg.Lookup("joytag")
	require.True(t, ok)
	require.False(t, reg.Register(stubInterrogator{name: "joytag"}))
	again, _ := reg.Lookup("joytag")
	require.Equal(t, first, again)

	_, ok = reg.Lookup("missing")
	require.False(t, ok)
	require.NoError(t, reg.Close())
}

func TestDiscoverDir(t *testing.T) {
	root := t.TempDir()
	write := func(rel, content string) {
		p := filepath.Join(root, rel)
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0755))
		require.NoError(t, os.WriteFile(p, []byte(content), 0644))
	}
	write("wd-v1-4-vit/model.onnx", "onnx")
	write("wd-v1-4-vit/selected_tags.csv", "tag_id,name,category,count\n1,general,9,1\n2,1girl,0,1\n")
	write("joytag/model.onnx", "onnx")
	write("joytag/top_tags.txt", "1girl\nsolo\n\n")
	write("no-tags/model.onnx", "onnx")
	write("no-model/top_tags.txt", "solo\n")
	write("stray.txt", "x")

	found, err := DiscoverDir(root, PostprocessOptions{})()
	require.NoError(t, err)
	require.Len(t, found, 2)
	require.Equal(t, "joytag", found[0].Name())
	require.IsType(t, &JoyTag{}, found[0])
	require.Equal(t, "wd-v1-4-vit", found[1].Name())
	require.IsType(t, &WaifuDiffusion{}, found[1])

	found, err = DiscoverDir(filepath.Join(root, "missing"), PostprocessOptions{})()
	require.NoError(t, err)
	require.Empty(t, found)

	// a file where the dir should be is still an error
	_, err = DiscoverDir(filepath.Join(root, "stray.txt"), PostprocessOptions{})()
	require.Error(t, err)
}

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestDecodeBase64(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 3, 2))
	data := encodePNG(t, src)
	enc := base64.StdEncoding.EncodeToString(data)

	for _, in := range []string{
		enc,
		"data:image/png;base64," + enc,
		strings.TrimRight(enc, "="),
	} {
		img, err := DecodeBase64(in)
		require.NoError(t, err)
		require.Equal(t, 3, img.Bounds().Dx())
	}

	_, err := DecodeBase64("not base64!!")
	require.Error(t, err)
	_, err = DecodeBase64(base64.StdEncoding.EncodeToString([]byte("plain text")))
	require.Error(t, err)
}

func TestOpen(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "a.png")
	require.NoError(t, os.WriteFile(good, encodePNG(t, image.NewGray(image.Rect(0, 0, 4, 4))), 0644))
	bad := filepath.Join(dir, "b.png")
	require.NoError(t, os.WriteFile(bad, []byte("nope"), 0644))

	img, err := Open(good)
	require.NoError(t, err)
	require.Equal(t, 4, img.Bounds().Dy())

	_, err = Open(bad)
	require.Error(t, err)
	_, err = Open(filepath.Join(dir, "missing.png"))
	require.Error(t, err)
}

func TestPreprocess(t *testing.T) {
	// a black 4x2 strip; padding rows must come out white
	img := image.NewRGBA(image.Rect(0, 0, 4, 2))
	for y := range 2 {
		for x := range 4 {
			img.Set(x, y, color.Black)
		}
	}

	nhwc := preprocessNHWCBGR(img, 8)
	require.Len(t, nhwc, 3*8*8)
	require.Equal(t, []float32{255, 255, 255}, nhwc[:3])

	nchw := preprocessNCHW(img, 8)
	require.Len(t, nchw, 3*8*8)
	require.InDelta(t, (1-clipMean[0])/clipStd[0], nchw[0], 1e-3)
}

func TestSigmoid(t *testing.T) {
	require.InDelta(t, 0.5, sigmoid(0), 1e-6)
	require.InDelta(t, 1, sigmoid(1000), 1e-6)
	require.InDelta(t, 0, sigmoid(-1000), 1e-6)
}
