package marketdata

import (
	"errors"
	"math"
	"testing"
)

// TestClassify_Directional tests the strict two-sided Up/Down rules
func TestClassify_Directional(t *testing.T) {
	prev := Bar{Index: 0, Open: 10, High: 11, Low: 9, Close: 10}

	tests := []struct {
		name string
		bar  Bar
		want BarType
	}{
		{
			name: "higher high and higher low is up",
			bar:  Bar{Index: 1, Open: 10, High: 12, Low: 10, Close: 11},
			want: Up,
		},
		{
			name: "lower high and lower low is down",
			bar:  Bar{Index: 1, Open: 9, High: 10, Low: 8, Close: 9},
			want: Down,
		},
		{
			name: "contained range is inside",
			bar:  Bar{Index: 1, Open: 10, High: 10.5, Low: 9.5, Close: 10},
			want: Inside,
		},
		{
			name: "engulfing range is outside",
			bar:  Bar{Index: 1, Open: 10, High: 12, Low: 8, Close: 10},
			want: Outside,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(tt.bar, &prev)
			if got != tt.want {
				t.Errorf("Expected %s, got %s", tt.want, got)
			}
		})
	}
}

// TestClassify_Ties tests that ties on one bound never produce Up or Down
func TestClassify_Ties(t *testing.T) {
	prev := Bar{Index: 0, Open: 10, High: 11, Low: 9, Close: 10}

	tests := []struct {
		name string
		bar  Bar
		want BarType
	}{
		{
			name: "equal high and equal low is inside",
			bar:  Bar{Index: 1, Open: 10, High: 11, Low: 9, Close: 10},
			want: Inside,
		},
		{
			name: "equal high with higher low is inside not up",
			bar:  Bar{Index: 1, Open: 10, High: 11, Low: 9.5, Close: 10},
			want: Inside,
		},
		{
			name: "lower high with equal low is inside not down",
			bar:  Bar{Index: 1, Open: 10, High: 10.5, Low: 9, Close: 10},
			want: Inside,
		},
		{
			name: "higher high with equal low is outside not up",
			bar:  Bar{Index: 1, Open: 10, High: 12, Low: 9, Close: 10},
			want: Outside,
		},
		{
			name: "equal high with lower low is outside not down",
			bar:  Bar{Index: 1, Open: 10, High: 11, Low: 8, Close: 10},
			want: Outside,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(tt.bar, &prev)
			if got != tt.want {
				t.Errorf("Expected %s, got %s", tt.want, got)
			}
		})
	}
}

// TestClassify_Reference tests that the first bar has no comparison type
func TestClassify_Reference(t *testing.T) {
	bar := Bar{Index: 0, Open: 10, High: 11, Low: 9, Close: 10}

	if got := Classify(bar, nil); got != Reference {
		t.Errorf("Expected %s for first bar, got %s", Reference, got)
	}
}

// TestBarValidate tests malformed bar rejection
func TestBarValidate(t *testing.T) {
	tests := []struct {
		name    string
		bar     Bar
		wantErr bool
	}{
		{
			name:    "well formed bar",
			bar:     Bar{Index: 0, Open: 10, High: 11, Low: 9, Close: 10},
			wantErr: false,
		},
		{
			name:    "high equal to low is allowed",
			bar:     Bar{Index: 0, Open: 10, High: 10, Low: 10, Close: 10},
			wantErr: false,
		},
		{
			name:    "high below low",
			bar:     Bar{Index: 0, Open: 10, High: 9, Low: 11, Close: 10},
			wantErr: true,
		},
		{
			name:    "NaN close",
			bar:     Bar{Index: 0, Open: 10, High: 11, Low: 9, Close: math.NaN()},
			wantErr: true,
		},
		{
			name:    "infinite high",
			bar:     Bar{Index: 0, Open: 10, High: math.Inf(1), Low: 9, Close: 10},
			wantErr: true,
		},
		{
			name:    "missing open reads as zero",
			bar:     Bar{Index: 0, High: 11, Low: 9, Close: 10},
			wantErr: true,
		},
		{
			name:    "negative low",
			bar:     Bar{Index: 0, Open: 10, High: 11, Low: -1, Close: 10},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.bar.Validate()
			if tt.wantErr && err == nil {
				t.Error("Expected validation error, got nil")
			}
			if !tt.wantErr && err != nil {
				t.Errorf("Expected no error, got %v", err)
			}
			if tt.wantErr && err != nil && !errors.Is(err, ErrMalformedBar) {
				t.Errorf("Expected ErrMalformedBar, got %v", err)
			}
		})
	}
}

func BenchmarkClassify(b *testing.B) {
	prev := Bar{Index: 0, Open: 10, High: 11, Low: 9, Close: 10}
	bar := Bar{Index: 1, Open: 10, High: 12, Low: 10, Close: 11}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		Classify(bar, &prev)
	}
}
