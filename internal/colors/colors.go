// Package colors reduces a capture to its dominant color, average color,
// and a frequency-ordered palette via k-means over the sky band of the
// frame. Purely numeric; no side effects beyond reading the file.
package colors

import (
	"fmt"
	"image"
	"image/color"
	_ "image/jpeg"
	_ "image/png"
	"math"
	"os"
	"sort"
)

const (
	// numClusters matches the "top N colors" the summary reports.
	numClusters = 10

	maxIterations = 25

	// maxSamples caps the pixel count fed to clustering; the band is
	// sampled on a stride to stay under it.
	maxSamples = 20000
)

// Palette is the result of extracting colors from one image.
type Palette struct {
	Dominant color.NRGBA
	Average  color.NRGBA

	// Ordered lists the cluster colors most-frequent first. Ordered[0]
	// equals Dominant.
	Ordered []color.NRGBA
}

// Hex renders c as "#rrggbb".
func Hex(c color.NRGBA) string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}

type vec3 struct{ r, g, b float64 }

func (v vec3) sub(o vec3) vec3 { return vec3{v.r - o.r, v.g - o.g, v.b - o.b} }

func (v vec3) norm2() float64 { return v.r*v.r + v.g*v.g + v.b*v.b }

// Extract decodes the image at path and clusters the sky band.
func Extract(path string) (*Palette, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("colors: decode %s: %w", path, err)
	}
	return FromImage(img), nil
}

// FromImage clusters an already-decoded image. Split out for tests.
func FromImage(img image.Image) *Palette {
	pixels := samplePixels(img)
	if len(pixels) == 0 {
		return &Palette{}
	}

	avg := mean(pixels)

	k := numClusters
	if k > len(pixels) {
		k = len(pixels)
	}
	centers, counts := kmeans(pixels, k)

	order := make([]int, len(centers))
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(a, b int) bool { return counts[order[a]] > counts[order[b]] })

	p := &Palette{Average: toNRGBA(avg)}
	for _, i := range order {
		if counts[i] == 0 {
			continue
		}
		p.Ordered = append(p.Ordered, toNRGBA(centers[i]))
	}
	if len(p.Ordered) > 0 {
		p.Dominant = p.Ordered[0]
	}
	return p
}

// samplePixels walks the band of the frame above the horizon line, on a
// stride that keeps the sample count bounded.
func samplePixels(img image.Image) []vec3 {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w == 0 || h == 0 {
		return nil
	}

	// Sky band: upper-middle rows, center-weighted columns.
	y0 := b.Min.Y + h/12
	y1 := b.Min.Y + h/3
	x0 := b.Min.X + w/4
	x1 := b.Min.X + w - w/12
	if y1 <= y0 || x1 <= x0 {
		y0, y1 = b.Min.Y, b.Max.Y
		x0, x1 = b.Min.X, b.Max.X
	}

	area := (y1 - y0) * (x1 - x0)
	stride := 1
	if area > maxSamples {
		stride = int(math.Sqrt(float64(area) / float64(maxSamples)))
		if stride < 1 {
			stride = 1
		}
	}

	out := make([]vec3, 0, maxSamples)
	for y := y0; y < y1; y += stride {
		for x := x0; x < x1; x += stride {
			r, g, bb, _ := img.At(x, y).RGBA()
			out = append(out, vec3{float64(r >> 8), float64(g >> 8), float64(bb >> 8)})
		}
	}
	return out
}

func mean(px []vec3) vec3 {
	var s vec3
	for _, p := range px {
		s.r += p.r
		s.g += p.g
		s.b += p.b
	}
	n := float64(len(px))
	return vec3{s.r / n, s.g / n, s.b / n}
}

// kmeans runs Lloyd's algorithm with deterministic spread initialization
// so repeated runs on the same frame agree.
func kmeans(px []vec3, k int) ([]vec3, []int) {
	centers := make([]vec3, k)
	for i := 0; i < k; i++ {
		centers[i] = px[i*len(px)/k]
	}

	assign := make([]int, len(px))
	counts := make([]int, k)

	for iter := 0; iter < maxIterations; iter++ {
		changed := false
		for i, p := range px {
			best, bestD := 0, math.MaxFloat64
			for c, ctr := range centers {
				if d := p.sub(ctr).norm2(); d < bestD {
					best, bestD = c, d
				}
			}
			if assign[i] != best || iter == 0 {
				assign[i] = best
				changed = true
			}
		}
		if !changed {
			break
		}

		sums := make([]vec3, k)
		for i := range counts {
			counts[i] = 0
		}
		for i, p := range px {
			c := assign[i]
			sums[c].r += p.r
			sums[c].g += p.g
			sums[c].b += p.b
			counts[c]++
		}
		for c := range centers {
			if counts[c] > 0 {
				n := float64(counts[c])
				centers[c] = vec3{sums[c].r / n, sums[c].g / n, sums[c].b / n}
			}
		}
	}
	return centers, counts
}

func toNRGBA(v vec3) color.NRGBA {
	return color.NRGBA{R: clamp8(v.r), G: clamp8(v.g), B: clamp8(v.b), A: 0xff}
}

func clamp8(f float64) uint8 {
	i := int(math.Round(f))
	if i < 0 {
		i = 0
	}
	if i > 255 {
		i = 255
	}
	return uint8(i)
}
