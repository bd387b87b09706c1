package agent

import (
	"testing"
)

func TestParseStream(t *testing.T) {
	t.Run("plain reply without control block", func(t *testing.T) {
		body := `data: {"data": {"session_id": "s1", "answer": "Namaste! Welcome."}}`
		result := parseStream(body, "")

		if result.SessionID != "s1" {
			t.Errorf("expected session s1, got %q", result.SessionID)
		}
		if result.Reply != "Namaste! Welcome." {
			t.Errorf("unexpected reply: %q", result.Reply)
		}
		if result.Directives.Disconnect {
			t.Error("disconnect should default to false")
		}
		if result.Directives.Language != DefaultVoice {
			t.Errorf("expected default voice, got %q", result.Directives.Language)
		}
	})

	t.Run("triple underscore delimiter", func(t *testing.T) {
		body := `data: {"data": {"session_id": "s1", "answer": "Your order is confirmed.___{\"control\": {\"is_order\": 1, \"order\": {\"Paneer Tikka(2)\": 400}, \"language\": \"en-IN-NeerjaNeural\"}}"}}`
		result := parseStream(body, "")

		if result.Reply != "Your order is confirmed." {
			t.Errorf("unexpected reply: %q", result.Reply)
		}
		d := result.Directives
		if !d.IsOrder {
			t.Error("order directive not extracted")
		}
		if d.Order["Paneer Tikka(2)"] != 400 {
			t.Errorf("unexpected order map: %v", d.Order)
		}
		if d.Language != "en-IN-NeerjaNeural" {
			t.Errorf("unexpected language: %q", d.Language)
		}
	})

	t.Run("double newline brace delimiter", func(t *testing.T) {
		body := `data: {"data": {"session_id": "s1", "answer": "Goodbye!\n\n{\"control\": {\"disconnect\": \"1\"}}"}}`
		result := parseStream(body, "")

		if result.Reply != "Goodbye!" {
			t.Errorf("unexpected reply: %q", result.Reply)
		}
		if !result.Directives.Disconnect {
			t.Error("disconnect directive not extracted")
		}
	})

	t.Run("last parsed line wins", func(t *testing.T) {
		body := `data: {"data": {"session_id": "s1", "answer": "Thinking..."}}
data: {"data": {"session_id": "s1", "answer": "Here is the menu.___{\"control\": {\"show_menu\": 1}}"}}`
		result := parseStream(body, "")

		if result.Reply != "Here is the menu." {
			t.Errorf("unexpected reply: %q", result.Reply)
		}
		if !result.Directives.ShowMenu {
			t.Error("show_menu from the final line was lost")
		}
	})

	t.Run("malformed block falls back to defaults", func(t *testing.T) {
		// Unescapable garbage after the delimiter: reply survives,
		// directives reset to defaults, no panic.
		body := `data: {"data": {"session_id": "s1", "answer": "Aapka order ready hai.___{\"control\": {\"is_order\": 1, \"notes\": \"say \"yes\" now}}"}}`
		result := parseStream(body, "")

		if result.SessionID != "s1" {
			t.Errorf("expected session s1, got %q", result.SessionID)
		}
		d := result.Directives
		if d.IsOrder {
			t.Error("directives from an unparseable block should be defaults")
		}
		if d.Disconnect || len(d.Order) != 0 || d.Language != DefaultVoice {
			t.Errorf("expected default directives, got %+v", d)
		}
	})

	t.Run("unparseable lines are skipped", func(t *testing.T) {
		body := "data: not json at all\ndata: {\"data\": {\"session_id\": \"s2\", \"answer\": \"Hi\"}}"
		result := parseStream(body, "")

		if result.SessionID != "s2" || result.Reply != "Hi" {
			t.Errorf("good line lost among bad ones: %+v", result)
		}
	})

	t.Run("block session id overrides stream session id", func(t *testing.T) {
		body := `data: {"data": {"session_id": "outer", "answer": "ok___{\"control\": {\"session_id\": \"inner\"}}"}}`
		result := parseStream(body, "")

		if result.SessionID != "inner" {
			t.Errorf("expected inner session id, got %q", result.SessionID)
		}
	})

	t.Run("fallback session survives empty stream", func(t *testing.T) {
		result := parseStream("", "kept")
		if result.SessionID != "kept" {
			t.Errorf("fallback session lost: %q", result.SessionID)
		}
	})
}

func TestSanitizeJSON(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "doubled colons",
			input: `{"language":: "hi-IN"}`,
			want:  `{"language": "hi-IN"}`,
		},
		{
			name:  "trailing commas",
			input: `{"order": {"a": 1,}, "tags": [1, 2,],}`,
			want:  `{"order": {"a": 1}, "tags": [1, 2]}`,
		},
		{
			name:  "smart quotes",
			input: "{“show_menu”: 1}",
			want:  `{"show_menu": 1}`,
		},
		{
			name:  "stray escapes and nbsp",
			input: `{\"notes\": \"ready&nbsp;soon\"}`,
			want:  `{"notes": "ready soon"}`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := sanitizeJSON(tt.input); got != tt.want {
				t.Errorf("sanitizeJSON(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestCleanReply(t *testing.T) {
	in := "**Special** today: paneer & rice\nfresh  from   the kitchen"
	want := "Special today: paneer rice fresh from the kitchen"
	if got := cleanReply(in); got != want {
		t.Errorf("cleanReply = %q, want %q", got, want)
	}
}

func TestLooseFlag(t *testing.T) {
	truthy := []any{true, float64(1), "1", "true", "TRUE", "2"}
	falsy := []any{nil, false, float64(0), "0", "", "false", "no", []any{}}

	for _, v := range truthy {
		if !looseFlag(v) {
			t.Errorf("looseFlag(%#v) = false, want true", v)
		}
	}
	for _, v := range falsy {
		if looseFlag(v) {
			t.Errorf("looseFlag(%#v) = true, want false", v)
		}
	}
}
