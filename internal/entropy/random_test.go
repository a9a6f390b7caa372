package entropy

import "testing"

func TestSeededIsDeterministic(t *testing.T) {
	a, b := NewSeeded(7), NewSeeded(7)
	for i := 0; i < 50; i++ {
		if x, y := a.Intn(1000), b.Intn(1000); x != y {
			t.Fatalf("draw %d: got %d and %d from equal seeds", i, x, y)
		}
	}
}

func TestScaleInt(t *testing.T) {
	tests := []struct {
		name string
		f    float64
		n    int
		want int
	}{
		{"zero", 0, 10, 0},
		{"middle", 0.55, 10, 5},
		{"just below one", 0.9999999, 10, 9},
		{"one clamps", 1.0, 10, 9},
		{"empty range", 0.5, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := scaleInt(tt.f, tt.n); got != tt.want {
				t.Errorf("scaleInt(%v, %d) = %d, want %d", tt.f, tt.n, got, tt.want)
			}
		})
	}
}

func TestSequenceCycles(t *testing.T) {
	s := &Sequence{Values: []float64{0.1, 0.9}}
	want := []float64{0.1, 0.9, 0.1}
	for i, w := range want {
		if got := s.Float64(); got != w {
			t.Errorf("draw %d = %v, want %v", i, got, w)
		}
	}
}

func TestNilClientFallsBack(t *testing.T) {
	var c *Client
	for i := 0; i < 20; i++ {
		f := c.Float64()
		if f < 0 || f >= 1 {
			t.Fatalf("fallback float out of range: %v", f)
		}
	}
	if NewClient("") != nil {
		t.Error("NewClient with empty key should return nil")
	}
	if _, ok := FromKey("").(Crypto); !ok {
		t.Error("FromKey without key should return Crypto")
	}
}
