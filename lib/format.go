package lib

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/olekukonko/tablewriter"

	"gopkg.in/yaml.v3"
)

// ANSI color codes used by Pretty output.
const (
	ResetColor = "\033[0m"

	Red    = "\033[31m"
	Green  = "\033[32m"
	Yellow = "\033[33m"
	Blue   = "\033[34m"
	Cyan   = "\033[36m"
)

// Colorize wraps the text with the specified color and resets the color after.
func Colorize(text, color string) string {
	return color + text + ResetColor
}

// FormatType selects how CLI results are rendered.
type FormatType string

const (
	Pretty FormatType = "pretty"
	Text   FormatType = "text"
	JSON   FormatType = "json"
	YAML   FormatType = "yaml"
	Table  FormatType = "table"
)

// Formattable is implemented by records that can render themselves for the
// CLI. Table output pulls headers from the first item.
type Formattable interface {
	String() string
	Pretty() string
	TableHeaders() []string
	TableRow() []string
}

// FormatOutput renders a slice of records in the requested format.
func FormatOutput[T Formattable](data []T, format FormatType) (string, error) {
	switch format {
	case Text:
		lines := make([]string, 0, len(data))
		for _, item := range data {
			lines = append(lines, item.String())
		}
		return strings.Join(lines, "\n"), nil
	case Pretty:
		blocks := make([]string, 0, len(data))
		for _, item := range data {
			blocks = append(blocks, item.Pretty())
		}
		return strings.Join(blocks, "\n"), nil
	case JSON:
		j, err := json.MarshalIndent(data, "", "  ")
		if err != nil {
			return "", err
		}
		return string(j), nil
	case YAML:
		y, err := yaml.Marshal(data)
		if err != nil {
			return "", err
		}
		return string(y), nil
	case Table:
		buffer := new(bytes.Buffer)
		table := tablewriter.NewWriter(buffer)
		if len(data) > 0 {
			table.SetHeader(data[0].TableHeaders())
		}
		table.SetBorder(true)
		for _, item := range data {
			table.Append(item.TableRow())
		}
		table.Render()
		return buffer.String(), nil
	default:
		return "", fmt.Errorf("unknown format: %v", format)
	}
}

// FormatSingleOutput renders one record in the requested format.
func FormatSingleOutput[T Formattable](data T, format FormatType) (string, error) {
	switch format {
	case Text:
		return data.String(), nil
	case Pretty:
		return data.Pretty(), nil
	case JSON:
		j, err := json.MarshalIndent(data, "", "  ")
		if err != nil {
			return "", err
		}
		return string(j), nil
	case YAML:
		y, err := yaml.Marshal(data)
		if err != nil {
			return "", err
		}
		return string(y), nil
	case Table:
		buffer := new(bytes.Buffer)
		table := tablewriter.NewWriter(buffer)
		table.SetHeader(data.TableHeaders())
		table.Append(data.TableRow())
		table.SetBorder(true)
		table.Render()
		return buffer.String(), nil
	default:
		return "", fmt.Errorf("unknown format: %v", format)
	}
}

// FormatOutputToFile renders records and writes them to a file.
func FormatOutputToFile[T Formattable](data []T, format FormatType, filepath string) error {
	formatted, err := FormatOutput(data, format)
	if err != nil {
		return err
	}
	return os.WriteFile(filepath, []byte(formatted), 0o644)
}

// ParseFormatType converts a string format to a FormatType.
func ParseFormatType(format string) (FormatType, error) {
	switch strings.ToLower(format) {
	case "pretty":
		return Pretty, nil
	case "text":
		return Text, nil
	case "json":
		return JSON, nil
	case "yaml":
		return YAML, nil
	case "table":
		return Table, nil
	default:
		return "", fmt.Errorf("unknown format: %s", format)
	}
}
