package render

import (
	"reflect"
	"strings"
	"testing"
)

func TestParseJSON(t *testing.T) {
	tests := []struct {
		name string
		body string
		want []Field
	}{
		{
			name: "keeps key order",
			body: `{"zeta":"last","alpha":"first"}`,
			want: []Field{{"zeta", "last"}, {"alpha", "first"}},
		},
		{
			name: "numbers keep their text",
			body: `{"temp":21.50,"frames":1200000000000}`,
			want: []Field{{"temp", "21.50"}, {"frames", "1200000000000"}},
		},
		{
			name: "other values compacted",
			body: `{"ok":true,"gps":null,"tags":[ "a", "b" ]}`,
			want: []Field{{"ok", "true"}, {"gps", "null"}, {"tags", `["a","b"]`}},
		},
		{
			name: "null is not an empty string",
			body: `{"gps":null,"sd":"","label":"null"}`,
			want: []Field{{"gps", "null"}, {"sd", ""}, {"label", "null"}},
		},
		{
			name: "empty object",
			body: `{}`,
			want: []Field{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseJSON([]byte(tt.body))
			if err != nil {
				t.Fatalf("ParseJSON() error = %v", err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ParseJSON() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestParseJSON_Errors(t *testing.T) {
	for _, body := range []string{``, `[]`, `"text"`, `{"a":`, `{"a":1`} {
		if _, err := ParseJSON([]byte(body)); err == nil {
			t.Errorf("ParseJSON(%q) error = nil, want error", body)
		}
	}
}

func TestParseJSON_NullRendersAsText(t *testing.T) {
	fields, err := ParseJSON([]byte(`{"gps":null}`))
	if err != nil {
		t.Fatalf("ParseJSON() error = %v", err)
	}
	got, err := Tbody(fields)
	if err != nil {
		t.Fatalf("Tbody() error = %v", err)
	}
	if !strings.Contains(got, "<td>null</td>") {
		t.Errorf("Tbody() = %q, want a null cell", got)
	}
}
