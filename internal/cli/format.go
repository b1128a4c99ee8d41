package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/embedfixer/embedfixer/internal/embed"
)

type format string

const (
	formatText format = "text"
	formatJSON format = "json"
	formatYAML format = "yaml"
)

func parseFormat(s string) (format, error) {
	switch f := format(strings.ToLower(s)); f {
	case formatText, formatJSON, formatYAML:
		return f, nil
	default:
		return "", fmt.Errorf("unknown output format %q (want text, json or yaml)", s)
	}
}

func writeResult(w io.Writer, r *embed.Result, f format) error {
	switch f {
	case formatJSON:
		return writeJSON(w, r)
	case formatYAML:
		return writeYAML(w, r)
	}

	fmt.Fprintf(w, "Platform:     %s\n", r.Platform)
	fmt.Fprintf(w, "Content:      %s %s\n", r.ContentType, r.ContentID)
	fmt.Fprintf(w, "Embed URL:    %s\n", r.EmbedURL)
	if r.PreviewHeight != "" {
		fmt.Fprintf(w, "Height:       %spx\n", r.PreviewHeight)
	}
	fmt.Fprintf(w, "\nWhat we fixed:\n  %s\n", r.Explanation)
	fmt.Fprintf(w, "\nEmbed code:\n%s\n", r.EmbedCode)
	return nil
}

func writeReport(w io.Writer, rep embed.Report, f format) error {
	switch f {
	case formatJSON:
		return writeJSON(w, rep)
	case formatYAML:
		return writeYAML(w, rep)
	}
	_, err := fmt.Fprintln(w, rep.String())
	return err
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}

func writeYAML(w io.Writer, v any) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return err
	}
	return enc.Close()
}
