// Package colortag finds the dominant colors of a thumbnail and names them.
package colortag

import (
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"sort"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"

	"github.com/cesargomez89/artshelf/internal/constants"
)

// Result is one dominant color. For the transparent entry RGB is zero and
// Confidence is the share of all sampled pixels; for every other entry it is
// the share of opaque pixels.
type Result struct {
	Tag        string
	RGB        RGB
	Confidence float64
}

type bucket struct {
	key              [3]uint8
	sumR, sumG, sumB int
	count            int
}

func (b *bucket) average() RGB {
	return RGB{
		R: uint8(b.sumR / b.count),
		G: uint8(b.sumG / b.count),
		B: uint8(b.sumB / b.count),
	}
}

// FindDominantColors returns up to limit named colors ordered by pixel share,
// preceded by a transparent entry when enough of the image is see-through.
// Tag names never repeat within one result. limit is clamped to
// [1, constants.MaxColorTagLimit].
func FindDominantColors(img image.Image, limit int) []Result {
	if limit < 1 {
		limit = 1
	}
	if limit > constants.MaxColorTagLimit {
		limit = constants.MaxColorTagLimit
	}

	sample := downsample(img)
	bounds := sample.Bounds()

	total := bounds.Dx() * bounds.Dy()
	if total == 0 {
		return nil
	}

	var transparent int
	buckets := make(map[[3]uint8]*bucket)
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			px := sample.NRGBAAt(x, y)
			if px.A < constants.ColorAlphaCutoff {
				transparent++
				continue
			}
			key := [3]uint8{quantize(px.R), quantize(px.G), quantize(px.B)}
			b, ok := buckets[key]
			if !ok {
				b = &bucket{key: key}
				buckets[key] = b
			}
			b.sumR += int(px.R)
			b.sumG += int(px.G)
			b.sumB += int(px.B)
			b.count++
		}
	}

	var results []Result
	if ratio := float64(transparent) / float64(total); ratio > constants.ColorTransparentRatio {
		results = append(results, Result{Tag: constants.TagNameTransparent, Confidence: ratio})
	}

	opaque := total - transparent
	if opaque == 0 {
		return results
	}

	ranked := make([]*bucket, 0, len(buckets))
	for _, b := range buckets {
		ranked = append(ranked, b)
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].count != ranked[j].count {
			return ranked[i].count > ranked[j].count
		}
		ki, kj := ranked[i].key, ranked[j].key
		if ki[0] != kj[0] {
			return ki[0] < kj[0]
		}
		if ki[1] != kj[1] {
			return ki[1] < kj[1]
		}
		return ki[2] < kj[2]
	})

	seen := map[string]bool{constants.TagNameTransparent: true}
	colors := 0
	for _, b := range ranked {
		if colors >= limit {
			break
		}
		avg := b.average()
		name := Classify(avg)
		if seen[name] {
			continue
		}
		seen[name] = true
		results = append(results, Result{
			Tag:        name,
			RGB:        avg,
			Confidence: float64(b.count) / float64(opaque),
		})
		colors++
	}
	return results
}

func quantize(v uint8) uint8 {
	return v / constants.ColorQuantizeStep * constants.ColorQuantizeStep
}

// downsample scales img so neither side exceeds the sample grid, keeping the
// aspect ratio. Small images are copied as-is.
func downsample(img image.Image) *image.NRGBA {
	src := img.Bounds()
	w, h := src.Dx(), src.Dy()
	grid := constants.ColorSampleGrid

	if w > grid || h > grid {
		if w >= h {
			h = max(1, h*grid/w)
			w = grid
		} else {
			w = max(1, w*grid/h)
			h = grid
		}
	}

	dst := image.NewNRGBA(image.Rect(0, 0, w, h))
	draw.NearestNeighbor.Scale(dst, dst.Bounds(), img, src, draw.Src, nil)
	return dst
}

// LoadImage decodes a PNG, JPEG or WebP file.
func LoadImage(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return img, nil
}

// Analyze loads the thumbnail at path and returns its dominant colors with
// entries below minConfidence removed.
func Analyze(path string, limit int, minConfidence float64) ([]Result, error) {
	img, err := LoadImage(path)
	if err != nil {
		return nil, err
	}
	all := FindDominantColors(img, limit)
	kept := all[:0]
	for _, r := range all {
		if r.Confidence >= minConfidence {
			kept = append(kept, r)
		}
	}
	return kept, nil
}
