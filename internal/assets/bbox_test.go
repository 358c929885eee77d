package assets

import (
	"math"
	"testing"

	"github.com/parksorry96/mathhub/internal/segment"
)

func TestToXYXYShapes(t *testing.T) {
	tests := []struct {
		name string
		raw  map[string]any
		want segment.BBox
	}{
		{
			name: "corner pair",
			raw:  map[string]any{"x1": 10.0, "y1": 20.0, "x2": 110.0, "y2": 80.0},
			want: segment.BBox{X1: 10, Y1: 20, X2: 110, Y2: 80},
		},
		{
			name: "edges",
			raw:  map[string]any{"left": 5.0, "top": 6.0, "right": 50.0, "bottom": 60.0},
			want: segment.BBox{X1: 5, Y1: 6, X2: 50, Y2: 60},
		},
		{
			name: "origin plus short size",
			raw:  map[string]any{"x": 10.0, "y": 20.0, "w": 30.0, "h": 40.0},
			want: segment.BBox{X1: 10, Y1: 20, X2: 40, Y2: 60},
		},
		{
			name: "origin plus long size",
			raw:  map[string]any{"x": 10.0, "y": 20.0, "width": 30.0, "height": 40.0},
			want: segment.BBox{X1: 10, Y1: 20, X2: 40, Y2: 60},
		},
		{
			name: "swapped corners are reordered",
			raw:  map[string]any{"x1": 110.0, "y1": 80.0, "x2": 10.0, "y2": 20.0},
			want: segment.BBox{X1: 10, Y1: 20, X2: 110, Y2: 80},
		},
		{
			name: "integer values",
			raw:  map[string]any{"x1": 1, "y1": 2, "x2": 3, "y2": 4},
			want: segment.BBox{X1: 1, Y1: 2, X2: 3, Y2: 4},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ToXYXY(tt.raw)
			if err != nil {
				t.Fatalf("ToXYXY: %v", err)
			}
			if *got != tt.want {
				t.Errorf("got %+v, want %+v", *got, tt.want)
			}
		})
	}
}

func TestToXYXYRejectsBadShapes(t *testing.T) {
	tests := []struct {
		name string
		raw  map[string]any
	}{
		{"nil", nil},
		{"empty", map[string]any{}},
		{"partial corners", map[string]any{"x1": 1.0, "y1": 2.0}},
		{"origin without size", map[string]any{"x": 1.0, "y": 2.0}},
		{"non numeric", map[string]any{"x1": "a", "y1": "b", "x2": "c", "y2": "d"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ToXYXY(tt.raw); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestResolveClipRatioBox(t *testing.T) {
	// All coordinates within [0,1] are page ratios.
	clip, err := ResolveClip(&segment.BBox{X1: 0.1, Y1: 0.1, X2: 0.5, Y2: 0.3}, 600, 800)
	if err != nil {
		t.Fatalf("ResolveClip: %v", err)
	}
	// Scaled region is (60,80)-(300,240); span 240, padding 14.4.
	wantX1, wantY1, wantX2, wantY2 := 45.6, 65.6, 314.4, 254.4
	if math.Abs(clip.X1-wantX1) > 1e-9 || math.Abs(clip.Y1-wantY1) > 1e-9 ||
		math.Abs(clip.X2-wantX2) > 1e-9 || math.Abs(clip.Y2-wantY2) > 1e-9 {
		t.Errorf("got %+v, want (%g,%g)-(%g,%g)", *clip, wantX1, wantY1, wantX2, wantY2)
	}
}

func TestResolveClipMinimumPadding(t *testing.T) {
	// Small regions get the floor padding of 6 points.
	clip, err := ResolveClip(&segment.BBox{X1: 100, Y1: 100, X2: 150, Y2: 140}, 600, 800)
	if err != nil {
		t.Fatalf("ResolveClip: %v", err)
	}
	want := segment.BBox{X1: 94, Y1: 94, X2: 156, Y2: 146}
	if *clip != want {
		t.Errorf("got %+v, want %+v", *clip, want)
	}
}

func TestResolveClipOvershootScalesDown(t *testing.T) {
	// A box wildly past the page edge is assumed mis-scaled and shrunk.
	clip, err := ResolveClip(&segment.BBox{X1: 0, Y1: 0, X2: 1200, Y2: 400}, 600, 800)
	if err != nil {
		t.Fatalf("ResolveClip: %v", err)
	}
	if clip.X2 > 600 {
		t.Errorf("X2 = %g, want <= page width 600", clip.X2)
	}
	if clip.Width() <= 0 || clip.Height() <= 0 {
		t.Errorf("clip collapsed: %+v", *clip)
	}
}

func TestResolveClipClampsToPage(t *testing.T) {
	clip, err := ResolveClip(&segment.BBox{X1: -20, Y1: 790, X2: 300, Y2: 810}, 600, 800)
	if err != nil {
		t.Fatalf("ResolveClip: %v", err)
	}
	if clip.X1 < 0 || clip.Y1 < 0 || clip.X2 > 600 || clip.Y2 > 800 {
		t.Errorf("clip outside page: %+v", *clip)
	}
}

func TestResolveClipErrors(t *testing.T) {
	if _, err := ResolveClip(nil, 600, 800); err == nil {
		t.Error("expected error for nil box")
	}
	if _, err := ResolveClip(&segment.BBox{X1: 10, Y1: 10, X2: 20, Y2: 20}, 0, 800); err == nil {
		t.Error("expected error for zero page width")
	}
}

func TestNormalizeRounding(t *testing.T) {
	got := Normalize(&segment.BBox{X1: 100, Y1: 200, X2: 300, Y2: 400}, 600, 800)
	want := segment.BBox{X1: 0.166667, Y1: 0.25, X2: 0.5, Y2: 0.5}
	if *got != want {
		t.Errorf("got %+v, want %+v", *got, want)
	}

	if Normalize(nil, 600, 800) != nil {
		t.Error("expected nil for nil box")
	}
	if Normalize(&segment.BBox{X2: 1, Y2: 1}, 0, 0) != nil {
		t.Error("expected nil for zero page dims")
	}
}
