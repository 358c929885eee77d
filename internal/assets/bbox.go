package assets

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/parksorry96/mathhub/internal/segment"
)

// clipPaddingMin is the minimum padding in page points added around a clip
// region. Larger regions get proportional padding instead.
const clipPaddingMin = 6.0

// clipPaddingRatio scales padding with the clip's larger span.
const clipPaddingRatio = 0.06

// overshootFactor is the tolerance for boxes that extend past page bounds.
// A box wider or taller than overshootFactor times the page is assumed to be
// expressed in a different coordinate space and is scaled down to fit.
const overshootFactor = 1.8

// ToXYXY converts a bounding-box payload into a segment.BBox. Providers and
// AI responses disagree on field naming, so four shapes are accepted:
// {x1,y1,x2,y2}, {left,top,right,bottom}, {x,y,w,h} and {x,y,width,height}.
func ToXYXY(raw map[string]any) (*segment.BBox, error) {
	if raw == nil {
		return nil, fmt.Errorf("bbox payload is nil")
	}

	if x1, ok := numValue(raw, "x1"); ok {
		y1, ok1 := numValue(raw, "y1")
		x2, ok2 := numValue(raw, "x2")
		y2, ok3 := numValue(raw, "y2")
		if !ok1 || !ok2 || !ok3 {
			return nil, fmt.Errorf("incomplete x1/y1/x2/y2 bbox")
		}
		return orderedBox(x1, y1, x2, y2), nil
	}

	if left, ok := numValue(raw, "left"); ok {
		top, ok1 := numValue(raw, "top")
		right, ok2 := numValue(raw, "right")
		bottom, ok3 := numValue(raw, "bottom")
		if !ok1 || !ok2 || !ok3 {
			return nil, fmt.Errorf("incomplete left/top/right/bottom bbox")
		}
		return orderedBox(left, top, right, bottom), nil
	}

	if x, ok := numValue(raw, "x"); ok {
		y, ok1 := numValue(raw, "y")
		if !ok1 {
			return nil, fmt.Errorf("bbox has x without y")
		}
		w, okW := numValue(raw, "w")
		if !okW {
			w, okW = numValue(raw, "width")
		}
		h, okH := numValue(raw, "h")
		if !okH {
			h, okH = numValue(raw, "height")
		}
		if !okW || !okH {
			return nil, fmt.Errorf("bbox has x/y without width/height")
		}
		return orderedBox(x, y, x+w, y+h), nil
	}

	return nil, fmt.Errorf("unrecognized bbox shape: %v", raw)
}

// ResolveClip maps a bounding box into page coordinates and expands it with
// padding. Boxes whose coordinates all fall in [0,1] are treated as page
// ratios. Boxes that overshoot the page beyond the tolerance are scaled down
// uniformly, then clamped to the page.
func ResolveClip(box *segment.BBox, pageWidth, pageHeight float64) (*segment.BBox, error) {
	if box == nil {
		return nil, fmt.Errorf("clip bbox is nil")
	}
	if pageWidth <= 0 || pageHeight <= 0 {
		return nil, fmt.Errorf("invalid page dimensions %gx%g", pageWidth, pageHeight)
	}

	b := *box

	// Ratio boxes come from providers that normalize against page size.
	if b.X1 >= 0 && b.Y1 >= 0 && b.X2 <= 1 && b.Y2 <= 1 {
		b.X1 *= pageWidth
		b.X2 *= pageWidth
		b.Y1 *= pageHeight
		b.Y2 *= pageHeight
	}

	if scale := overshootScale(&b, pageWidth, pageHeight); scale < 1 {
		b.X1 *= scale
		b.X2 *= scale
		b.Y1 *= scale
		b.Y2 *= scale
	}

	span := math.Max(b.Width(), b.Height())
	pad := math.Max(clipPaddingMin, span*clipPaddingRatio)
	b.X1 -= pad
	b.Y1 -= pad
	b.X2 += pad
	b.Y2 += pad

	b.X1 = clamp(b.X1, 0, pageWidth)
	b.X2 = clamp(b.X2, 0, pageWidth)
	b.Y1 = clamp(b.Y1, 0, pageHeight)
	b.Y2 = clamp(b.Y2, 0, pageHeight)

	if b.Width() <= 0 || b.Height() <= 0 {
		return nil, fmt.Errorf("clip collapsed to empty region")
	}
	return &b, nil
}

// Normalize converts a page-coordinate box into ratios of the page size,
// rounded to six decimals. Stored boxes survive re-renders at any DPI.
func Normalize(box *segment.BBox, pageWidth, pageHeight float64) *segment.BBox {
	if box == nil || pageWidth <= 0 || pageHeight <= 0 {
		return nil
	}
	return &segment.BBox{
		X1: round6(box.X1 / pageWidth),
		Y1: round6(box.Y1 / pageHeight),
		X2: round6(box.X2 / pageWidth),
		Y2: round6(box.Y2 / pageHeight),
	}
}

func overshootScale(b *segment.BBox, pageWidth, pageHeight float64) float64 {
	scale := 1.0
	if b.X2 > pageWidth*overshootFactor {
		scale = math.Min(scale, pageWidth/b.X2)
	}
	if b.Y2 > pageHeight*overshootFactor {
		scale = math.Min(scale, pageHeight/b.Y2)
	}
	return scale
}

func orderedBox(x1, y1, x2, y2 float64) *segment.BBox {
	if x2 < x1 {
		x1, x2 = x2, x1
	}
	if y2 < y1 {
		y1, y2 = y2, y1
	}
	return &segment.BBox{X1: x1, Y1: y1, X2: x2, Y2: y2}
}

func numValue(m map[string]any, key string) (float64, bool) {
	v, ok := m[key]
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func round6(v float64) float64 {
	return math.Round(v*1e6) / 1e6
}
