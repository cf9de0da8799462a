package jsonutil

import "testing"

type verdict struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
}

func TestStripMarkdownFences(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"no fences", `{"a":1}`, `{"a":1}`},
		{"json fence", "```json\n{\"a\":1}\n```", `{"a":1}`},
		{"bare fence", "```\n{\"a\":1}\n```", `{"a":1}`},
		{"leading whitespace", "  ```json\n{\"a\":1}\n```  ", `{"a":1}`},
		{"too short to be fenced", "```", "```"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := StripMarkdownFences(tt.in); got != tt.want {
				t.Errorf("StripMarkdownFences(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    string
		wantErr bool
	}{
		{"bare object", `{"a":1}`, `{"a":1}`, false},
		{"prose around object", `Sure! Here is the result: {"a":1}. Let me know.`, `{"a":1}`, false},
		{"array", `[1,2,3]`, `[1,2,3]`, false},
		{"no json", "nothing here", "", true},
		{"unclosed object", `{"a":1`, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExtractJSON(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ExtractJSON(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ExtractJSON(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestParseJSON(t *testing.T) {
	raw := "```json\n{\"label\": \"feeding\", \"confidence\": 0.9}\n```"
	got, err := ParseJSON[verdict](raw)
	if err != nil {
		t.Fatalf("ParseJSON: %v", err)
	}
	if got.Label != "feeding" || got.Confidence != 0.9 {
		t.Errorf("ParseJSON = %+v, want {feeding 0.9}", got)
	}

	if _, err := ParseJSON[verdict]("the model refused"); err == nil {
		t.Error("expected an error for non-JSON text")
	}
}
