package colortag

import "math"

// RGB is an 8-bit color triple.
type RGB struct {
	R, G, B uint8
}

type reference struct {
	name string
	rgb  RGB
}

// references is ordered; on equal distance the earlier entry wins.
var references = []reference{
	{"red", RGB{220, 20, 30}},
	{"red", RGB{180, 0, 0}},
	{"red", RGB{255, 60, 60}},
	{"red", RGB{130, 10, 20}},
	{"orange", RGB{255, 140, 0}},
	{"orange", RGB{240, 110, 40}},
	{"orange", RGB{255, 170, 80}},
	{"yellow", RGB{255, 220, 0}},
	{"yellow", RGB{240, 230, 120}},
	{"yellow", RGB{200, 180, 20}},
	{"green", RGB{30, 160, 50}},
	{"green", RGB{100, 200, 80}},
	{"green", RGB{20, 90, 30}},
	{"green", RGB{150, 190, 60}},
	{"teal", RGB{0, 128, 128}},
	{"teal", RGB{40, 180, 170}},
	{"teal", RGB{20, 90, 100}},
	{"blue", RGB{30, 70, 200}},
	{"blue", RGB{80, 140, 230}},
	{"blue", RGB{10, 30, 120}},
	{"blue", RGB{130, 190, 240}},
	{"purple", RGB{120, 50, 170}},
	{"purple", RGB{170, 110, 210}},
	{"purple", RGB{70, 20, 100}},
	{"pink", RGB{255, 120, 180}},
	{"pink", RGB{240, 170, 200}},
	{"pink", RGB{210, 50, 130}},
	{"brown", RGB{130, 80, 40}},
	{"brown", RGB{160, 110, 70}},
	{"brown", RGB{90, 55, 30}},
	{"brown", RGB{190, 150, 110}},
}

// Classify maps a color to the nearest named tag. Near-black, near-white and
// desaturated colors resolve by lightness before any hue matching.
func Classify(c RGB) string {
	_, s, l := toHSL(c)

	switch {
	case l < 0.10:
		return "black"
	case l > 0.95:
		return "white"
	case s < 0.15:
		switch {
		case l < 0.25:
			return "black"
		case l > 0.85:
			return "white"
		default:
			return "gray"
		}
	}

	best := references[0].name
	bestDist := math.MaxFloat64
	for _, ref := range references {
		if d := distance(c, ref.rgb); d < bestDist {
			best, bestDist = ref.name, d
		}
	}
	return best
}

func distance(a, b RGB) float64 {
	dr := float64(a.R) - float64(b.R)
	dg := float64(a.G) - float64(b.G)
	db := float64(a.B) - float64(b.B)
	return math.Sqrt(dr*dr + dg*dg + db*db)
}

// toHSL returns hue in degrees and saturation and lightness in [0, 1].
func toHSL(c RGB) (h, s, l float64) {
	r := float64(c.R) / 255
	g := float64(c.G) / 255
	b := float64(c.B) / 255

	maxC := math.Max(r, math.Max(g, b))
	minC := math.Min(r, math.Min(g, b))
	l = (maxC + minC) / 2

	delta := maxC - minC
	if delta == 0 {
		return 0, 0, l
	}

	if l > 0.5 {
		s = delta / (2 - maxC - minC)
	} else {
		s = delta / (maxC + minC)
	}

	switch maxC {
	case r:
		h = math.Mod((g-b)/delta, 6)
	case g:
		h = (b-r)/delta + 2
	default:
		h = (r-g)/delta + 4
	}
	h *= 60
	if h < 0 {
		h += 360
	}
	return h, s, l
}
