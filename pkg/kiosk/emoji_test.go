package kiosk

import "testing"

func TestExtractEmojis(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"no emoji", "Aapka order ready hai.", ""},
		{"single", "Great choice! 😋", "😋"},
		{"multiple scattered", "🎉 Order confirmed 🥳 enjoy!", "🎉🥳"},
		{"dingbat range", "Done ✅", "✅"},
		{"variation selector kept in sequence", "Thanks ❤️", "❤️"},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExtractEmojis(tt.in); got != tt.want {
				t.Fatalf("ExtractEmojis(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestStripEmojis(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain text untouched", "Do samosa aur ek chai.", "Do samosa aur ek chai."},
		{"emoji removed", "Great choice! 😋 Anything else?", "Great choice! Anything else?"},
		{"only emoji", "🎉🥳", ""},
		{"spacing collapsed", "Done ✅  thanks", "Done thanks"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := StripEmojis(tt.in); got != tt.want {
				t.Fatalf("StripEmojis(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
