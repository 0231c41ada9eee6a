package rating

import "testing"

func TestStars_Boundaries(t *testing.T) {
	tests := []struct {
		p    float64
		want int
	}{
		{0.0, 0},
		{0.2, 0},
		{0.2000001, 1},
		{0.4, 1},
		{0.41, 2},
		{0.6, 2},
		{0.8, 3},
		{0.85, 4},
		{0.9, 4},
		{0.9000001, 5},
		{1.0, 5},
	}
	for _, tt := range tests {
		if got := Stars(tt.p); got != tt.want {
			t.Errorf("Stars(%v) = %d, want %d", tt.p, got, tt.want)
		}
	}
}

func TestBands_Index_Custom(t *testing.T) {
	b := Bands{0.4, 0.7}
	if got := b.Index(0.4); got != 0 {
		t.Errorf("Index(0.4) = %d, want 0", got)
	}
	if got := b.Index(0.5); got != 1 {
		t.Errorf("Index(0.5) = %d, want 1", got)
	}
	if got := b.Index(0.99); got != 2 {
		t.Errorf("Index(0.99) = %d, want 2", got)
	}
}

func TestBands_Valid(t *testing.T) {
	if !StarBands.Valid() {
		t.Error("StarBands should be valid")
	}
	if (Bands{0.5, 0.5}).Valid() {
		t.Error("non-increasing bands should be invalid")
	}
	if (Bands{0.5, 1.2}).Valid() {
		t.Error("bound above 1 should be invalid")
	}
}

func TestTopicStarsAndTotal(t *testing.T) {
	vec := map[string]float64{"a": 0.1, "b": 0.5, "c": 0.95}
	stars := TopicStars(vec)
	if stars["a"] != 0 || stars["b"] != 2 || stars["c"] != 5 {
		t.Errorf("TopicStars = %v", stars)
	}
	if got := Total(stars); got != 7 {
		t.Errorf("Total = %d, want 7", got)
	}
}

func TestLadder_Title(t *testing.T) {
	l := DefaultLadder()
	tests := []struct {
		total int
		want  string
	}{
		{0, "novice"},
		{4, "novice"},
		{5, "explorer"},
		{9, "explorer"},
		{10, "future architect"},
		{15, "master"},
		{19, "master"},
		{20, "grand master"},
		{45, "grand master"},
	}
	for _, tt := range tests {
		if got := l.Title(tt.total); got != tt.want {
			t.Errorf("Title(%d) = %q, want %q", tt.total, got, tt.want)
		}
	}
}

func TestLadder_LocalizedLabels(t *testing.T) {
	titles := DefaultTitles()
	titles.Novice = "Tân binh"
	l := NewLadder(titles)
	if got := l.Title(0); got != "Tân binh" {
		t.Errorf("Title(0) = %q", got)
	}
}
