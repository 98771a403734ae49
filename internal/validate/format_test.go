package validate

import "testing"

func TestIsAllowedFormat(t *testing.T) {
	tests := []struct {
		url  string
		want bool
	}{
		{"https://i.redd.it/abc.jpg", true},
		{"https://i.redd.it/abc.jpeg", true},
		{"https://i.redd.it/abc.png", true},
		{"https://i.imgur.com/abc.gif", true},
		{"https://example.com/scan.bmp", true},
		{"https://example.com/PHOTO.JPG", true},
		{"https://example.com/photo.mp4", false},
		{"https://example.com/page.html", false},
		{"https://example.com/photo.jpg?width=640", false},
		{"noextension", false},
		{"", false},
	}

	for _, tt := range tests {
		if got := IsAllowedFormat(tt.url); got != tt.want {
			t.Errorf("IsAllowedFormat(%q) = %v, want %v", tt.url, got, tt.want)
		}
	}
}
