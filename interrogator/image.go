package interrogator

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"strings"

	_ "github.com/gen2brain/avif"
	_ "golang.org/x/image/webp"
)

// DecodeBase64 decodes a base64 image, optionally wrapped as a data URL.
func DecodeBase64(s string) (image.Image, error) {
	if strings.HasPrefix(s, "data:image/") {
		if _, rest, ok := strings.Cut(s, ";base64,"); ok {
			s = rest
		}
	}
	s = strings.TrimSpace(s)

	data, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		// some clients drop the padding
		data, err = base64.RawStdEncoding.DecodeString(strings.TrimRight(s, "="))
		if err != nil {
			return nil, fmt.Errorf("invalid encoded image: %w", err)
		}
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("invalid encoded image: %w", err)
	}
	return img, nil
}

func Open(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return img, nil
}
