package kiosk

import "strings"

// emojiRanges covers the blocks the agent actually emits: emoticons,
// misc symbols and pictographs, transport, supplemental symbols, and
// the legacy dingbat/misc ranges.
var emojiRanges = [][2]rune{
	{0x1F300, 0x1F5FF},
	{0x1F600, 0x1F64F},
	{0x1F680, 0x1F6FF},
	{0x1F900, 0x1F9FF},
	{0x1FA70, 0x1FAFF},
	{0x2600, 0x26FF},
	{0x2700, 0x27BF},
}

func isEmoji(r rune) bool {
	for _, rg := range emojiRanges {
		if r >= rg[0] && r <= rg[1] {
			return true
		}
	}
	return false
}

// ExtractEmojis returns the emoji characters found in text, in order,
// for the transient popup cue. Joiners and variation selectors are
// kept only between emoji so sequences stay intact.
func ExtractEmojis(text string) string {
	var b strings.Builder
	prevEmoji := false
	for _, r := range text {
		switch {
		case isEmoji(r):
			b.WriteRune(r)
			prevEmoji = true
		case prevEmoji && (r == 0x200D || r == 0xFE0F):
			b.WriteRune(r)
		default:
			prevEmoji = false
		}
	}
	return b.String()
}

// StripEmojis removes emoji (and their joiners) from text so they are
// not fed to the synthesizer.
func StripEmojis(text string) string {
	var b strings.Builder
	for _, r := range text {
		if isEmoji(r) || r == 0x200D || r == 0xFE0F {
			continue
		}
		b.WriteRune(r)
	}
	return strings.Join(strings.Fields(b.String()), " ")
}
