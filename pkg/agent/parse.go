package agent

import (
	"encoding/json"
	"regexp"
	"strings"
)

// streamLine is one "data:" fragment of the completions stream.
type streamLine struct {
	Data *streamData `json:"data"`
}

type streamData struct {
	SessionID string `json:"session_id"`
	Answer    string `json:"answer"`
}

// The control block rides inside the free-text answer after one of
// these markers. The triple-underscore form is checked first so it is
// not mistaken for the double.
var blockDelimiters = []string{"___", "__", "\n\n{"}

// parseStream decodes a completions response body. Each line may carry
// a fragment; later fragments supersede earlier ones, so the last line
// that parses wins. Nothing in here returns an error: a line that can
// not be understood is skipped, and an answer whose control block can
// not be recovered keeps the default directives.
func parseStream(body, fallbackSession string) *Result {
	result := &Result{
		SessionID:  fallbackSession,
		Directives: DefaultDirectives(),
	}

	for _, rawLine := range strings.Split(strings.TrimSpace(body), "\n") {
		line := strings.TrimSpace(strings.Replace(rawLine, "data:", "", 1))
		if line == "" {
			continue
		}

		var fragment streamLine
		if err := json.Unmarshal([]byte(line), &fragment); err != nil || fragment.Data == nil {
			continue
		}
		if fragment.Data.SessionID != "" {
			result.SessionID = fragment.Data.SessionID
		}
		if fragment.Data.Answer == "" {
			continue
		}

		reply, directives, blockSession := splitAnswer(fragment.Data.Answer)
		result.Reply = reply
		result.Directives = directives
		if blockSession != "" {
			result.SessionID = blockSession
		}
	}

	return result
}

// splitAnswer separates the spoken reply from the embedded control
// block and returns the cleaned reply, the normalized directives, and
// the session id from the block if it named one.
func splitAnswer(answer string) (string, Directives, string) {
	delim, at := findDelimiter(answer)
	if at < 0 {
		return cleanReply(answer), DefaultDirectives(), ""
	}

	tail := answer[at+len(delim):]
	if delim == "\n\n{" {
		// Keep the opening brace the marker consumed.
		tail = "{" + tail
	}
	reply := cleanReply(answer[:at])

	blockText := outermostObject(tail)
	if blockText == "" {
		return reply, DefaultDirectives(), ""
	}

	var block controlBlock
	if err := json.Unmarshal([]byte(sanitizeJSON(blockText)), &block); err != nil {
		return reply, DefaultDirectives(), ""
	}
	return reply, block.normalize(), block.sessionID()
}

// findDelimiter locates the earliest-priority marker present in the
// answer.
func findDelimiter(answer string) (string, int) {
	for _, delim := range blockDelimiters {
		if at := strings.Index(answer, delim); at >= 0 {
			return delim, at
		}
	}
	return "", -1
}

// outermostObject returns the substring from the first "{" through the
// last "}", or "" when the text holds no complete object.
func outermostObject(s string) string {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end <= start {
		return ""
	}
	return s[start : end+1]
}

var (
	doubleColonRe   = regexp.MustCompile(`::`)
	trailingCommaRe = regexp.MustCompile(`,\s*([}\]])`)
	strayEscapeRe   = regexp.MustCompile(`\\+"`)
	multiSpaceRe    = regexp.MustCompile(`\s{2,}`)
	asterisksRe     = regexp.MustCompile(`\*+`)
)

// sanitizeJSON repairs the malformations the agent backend is known to
// emit: doubled colons, trailing commas, smart quotes, stray escaping
// in front of quotes, and HTML non-breaking spaces. The result is a
// best effort; the caller still has to survive a failed decode.
func sanitizeJSON(s string) string {
	s = doubleColonRe.ReplaceAllString(s, ":")
	s = trailingCommaRe.ReplaceAllString(s, "$1")
	s = strayEscapeRe.ReplaceAllString(s, `"`)
	s = strings.NewReplacer(
		"“", `"`,
		"”", `"`,
		"‘", "'",
		"’", "'",
		"&nbsp;", " ",
	).Replace(s)
	return s
}

// cleanReply strips markdown litter and stream artifacts from text that
// is about to be spoken aloud.
func cleanReply(s string) string {
	s = asterisksRe.ReplaceAllString(s, " ")
	s = strings.ReplaceAll(s, "&", " ")
	s = strings.ReplaceAll(s, "’", "'")
	s = strings.ReplaceAll(s, "\n", " ")
	s = multiSpaceRe.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}
