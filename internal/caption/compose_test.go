package caption

import "testing"

func TestLabel_Boundaries(t *testing.T) {
	tests := []struct {
		confidence float64
		want       string
	}{
		{0.99, "Very Sure"},
		{0.905, "Very Sure"},
		{0.90, "Kinda Sure"},
		{0.80, "Kinda Sure"},
		{0.75, "Somewhat Sure"},
		{0.51, "Somewhat Sure"},
		{0.50, "Not Sure"},
		{0.10, "Not Sure"},
		{0, "Not Sure"},
	}
	for _, tt := range tests {
		if got := Label(tt.confidence); got != tt.want {
			t.Errorf("Label(%v) = %q, want %q", tt.confidence, got, tt.want)
		}
	}
}

func TestPercent(t *testing.T) {
	tests := []struct {
		confidence float64
		want       int
	}{
		{0.92, 92},
		{0.125, 12},
		{0.135, 14},
		{0.005, 0},
		{0.845, 84},
		{0.065, 6},
		{0.5, 50},
		{0.004, 0},
		{1, 100},
	}
	for _, tt := range tests {
		if got := Percent(tt.confidence); got != tt.want {
			t.Errorf("Percent(%v) = %d, want %d", tt.confidence, got, tt.want)
		}
	}
}

func TestCompose(t *testing.T) {
	got := Compose("a red barn", 0.92, "https://redd.it/p3")
	want := "'a red barn'\nVery Sure - 92%\nhttps://redd.it/p3"
	if got != want {
		t.Errorf("Compose() = %q, want %q", got, want)
	}

	got = Compose("a fox", 0.125, "https://redd.it/f")
	want = "'a fox'\nNot Sure - 12%\nhttps://redd.it/f"
	if got != want {
		t.Errorf("Compose() = %q, want %q", got, want)
	}

	got = Compose("a dog", 0.5, "https://redd.it/x")
	want = "'a dog'\nNot Sure - 50%\nhttps://redd.it/x"
	if got != want {
		t.Errorf("Compose() = %q, want %q", got, want)
	}
}
