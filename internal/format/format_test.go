package format

import (
	"bytes"
	"strings"
	"testing"
)

type sample struct {
	Name  string `json:"name" yaml:"name"`
	Width int    `json:"width" yaml:"width"`
}

func TestByName(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{name: "json", want: "\"name\": \"pasta\""},
		{name: "", want: "\"width\": 640"},
		{name: "YAML", want: "name: pasta\nwidth: 640\n"},
		{name: "yml", want: "width: 640"},
	}
	for _, tt := range tests {
		f, err := ByName(tt.name)
		if err != nil {
			t.Fatalf("ByName(%q): %v", tt.name, err)
		}
		var buf bytes.Buffer
		if err := f.Write(&buf, sample{Name: "pasta", Width: 640}); err != nil {
			t.Fatalf("write %q: %v", tt.name, err)
		}
		if !strings.Contains(buf.String(), tt.want) {
			t.Fatalf("format %q: expected %q in %q", tt.name, tt.want, buf.String())
		}
	}
	if _, err := ByName("xml"); err == nil {
		t.Fatal("expected error for unknown format")
	}
}
