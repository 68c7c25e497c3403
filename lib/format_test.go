package lib

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

type mockRecord struct {
	Name    string
	Content string
}

func (m mockRecord) String() string {
	return m.Name
}

func (m mockRecord) Pretty() string {
	return fmt.Sprintf("Name: %s | Content: %s", m.Name, m.Content)
}

func (m mockRecord) TableHeaders() []string {
	return []string{"Name", "Content"}
}

func (m mockRecord) TableRow() []string {
	return []string{m.Name, m.Content}
}

func TestFormatOutput(t *testing.T) {
	data := []mockRecord{
		{Name: "alpha", Content: "first"},
		{Name: "beta", Content: "second"},
	}

	tests := []struct {
		format FormatType
		output string
		hasErr bool
	}{
		{Text, "alpha\nbeta", false},
		{Pretty, "Name: alpha | Content: first\nName: beta | Content: second", false},
		{YAML, "- name: alpha\n  content: first\n- name: beta\n  content: second\n", false},
		{FormatType("unknown"), "", true},
	}

	for _, tt := range tests {
		result, err := FormatOutput(data, tt.format)
		if (err != nil) != tt.hasErr {
			t.Errorf("format %s: expected error %v, got %v", tt.format, tt.hasErr, err)
		}
		if result != tt.output {
			t.Errorf("format %s: expected output %q, got %q", tt.format, tt.output, result)
		}
	}
}

func TestFormatOutputJSON(t *testing.T) {
	data := []mockRecord{{Name: "alpha", Content: "first"}}

	result, err := FormatOutput(data, JSON)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if !strings.Contains(result, `"Name": "alpha"`) {
		t.Errorf("unexpected json output: %q", result)
	}
}

func TestFormatOutputTable(t *testing.T) {
	data := []mockRecord{
		{Name: "alpha", Content: "first"},
		{Name: "beta", Content: "second"},
	}

	result, err := FormatOutput(data, Table)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	for _, want := range []string{"NAME", "CONTENT", "alpha", "beta"} {
		if !strings.Contains(result, want) {
			t.Errorf("table output missing %q:\n%s", want, result)
		}
	}
}

func TestFormatSingleOutput(t *testing.T) {
	record := mockRecord{Name: "alpha", Content: "first"}

	result, err := FormatSingleOutput(record, Text)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if result != "alpha" {
		t.Errorf("expected %q, got %q", "alpha", result)
	}

	result, err = FormatSingleOutput(record, Table)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if !strings.Contains(result, "alpha") {
		t.Errorf("table output missing row: %q", result)
	}
}

func TestFormatOutputToFile(t *testing.T) {
	data := []mockRecord{{Name: "alpha", Content: "first"}}
	path := filepath.Join(t.TempDir(), "format_output.txt")

	if err := FormatOutputToFile(data, Pretty, path); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("could not read test file: %v", err)
	}
	expected := "Name: alpha | Content: first"
	if string(content) != expected {
		t.Errorf("expected file content %q, got %q", expected, string(content))
	}
}

func TestParseFormatType(t *testing.T) {
	for _, name := range []string{"pretty", "text", "json", "YAML", "Table"} {
		format, err := ParseFormatType(name)
		if err != nil {
			t.Errorf("expected %q to parse, got %v", name, err)
		}
		if string(format) != strings.ToLower(name) {
			t.Errorf("expected %q, got %q", strings.ToLower(name), format)
		}
	}

	if _, err := ParseFormatType("csv"); err == nil {
		t.Error("expected error for unsupported format")
	}
}
