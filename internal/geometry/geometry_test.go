package geometry

import "testing"

func TestPointArithmetic(t *testing.T) {
	press := Point{X: 140, Y: 80}
	overlayTopLeft := Point{X: 120, Y: 70}

	offset := press.Sub(overlayTopLeft)
	if offset.X != 20 || offset.Y != 10 {
		t.Fatalf("unexpected offset: %+v", offset)
	}

	restored := overlayTopLeft.Add(offset)
	if restored != press {
		t.Fatalf("expected add to invert sub, got %+v", restored)
	}
}

func TestRectContains(t *testing.T) {
	parent := Rect{Origin: Point{X: 20, Y: 20}, Width: 300, Height: 400}

	tests := []struct {
		name   string
		point  Point
		inside bool
	}{
		{name: "interior", point: Point{X: 100, Y: 100}, inside: true},
		{name: "origin_corner", point: Point{X: 20, Y: 20}, inside: true},
		{name: "past_right_edge", point: Point{X: 320, Y: 100}, inside: false},
		{name: "above_parent", point: Point{X: 100, Y: 10}, inside: false},
		{name: "negative_overflow", point: Point{X: -40, Y: 100}, inside: false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := parent.Contains(tc.point); got != tc.inside {
				t.Fatalf("Contains(%+v) = %v, want %v", tc.point, got, tc.inside)
			}
		})
	}
}

func TestPlacementStyle(t *testing.T) {
	placement := Placement{
		Position: Point{X: 160, Y: 50},
		Rotation: -12.5,
		Scale:    1.25,
	}

	style := placement.Style()
	if style.LeftPx != 160 || style.TopPx != 50 {
		t.Fatalf("unexpected offsets: %+v", style)
	}
	if style.Transform != "rotate(-12.5deg) scale(1.25)" {
		t.Fatalf("unexpected transform: %s", style.Transform)
	}
}

func TestPlacementStyleDefaultsZeroScale(t *testing.T) {
	style := Placement{Position: Point{X: 1, Y: 2}}.Style()
	if style.Transform != "rotate(0deg) scale(1)" {
		t.Fatalf("unexpected transform: %s", style.Transform)
	}
}

func TestTranslateKeepsRotationAndScale(t *testing.T) {
	placement := Placement{Position: Point{X: 10, Y: 10}, Rotation: 45, Scale: 0.8}
	moved := placement.Translate(Point{X: -30, Y: 500})

	if moved.Position.X != -30 || moved.Position.Y != 500 {
		t.Fatalf("unexpected position: %+v", moved.Position)
	}
	if moved.Rotation != 45 || moved.Scale != 0.8 {
		t.Fatalf("translate must not touch rotation or scale: %+v", moved)
	}
}
