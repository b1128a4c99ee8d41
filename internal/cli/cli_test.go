package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"

	"github.com/embedfixer/embedfixer/internal/embed"
)

func run(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	cmd := NewRootCmd(&out, &errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), errOut.String(), err
}

func stubClipboard(t *testing.T) *string {
	t.Helper()
	var copied string
	orig := copyToClipboard
	copyToClipboard = func(s string) error {
		copied = s
		return nil
	}
	t.Cleanup(func() { copyToClipboard = orig })
	return &copied
}

func TestRecognize_Text(t *testing.T) {
	out, _, err := run(t, "recognize", "https://open.spotify.com/episode/7makk4oTQel546B0PZlDM5?si=x")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for _, want := range []string{
		"Platform:     Spotify",
		"Content:      episode 7makk4oTQel546B0PZlDM5",
		"Embed URL:    https://open.spotify.com/embed/episode/7makk4oTQel546B0PZlDM5?utm_source=generator",
		"Height:       232px",
		"We removed extra sharing parameters",
		`<iframe style="border-radius:12px"`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestRecognize_RootShortcut(t *testing.T) {
	viaRoot, _, err := run(t, "https://youtu.be/dQw4w9WgXcQ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	viaCmd, _, err := run(t, "recognize", "https://youtu.be/dQw4w9WgXcQ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if viaRoot != viaCmd {
		t.Errorf("root output differs from recognize:\n%s\nvs\n%s", viaRoot, viaCmd)
	}
	if strings.Contains(viaRoot, "Height:") {
		t.Error("YouTube has no preview height")
	}
}

func TestRecognize_Formats(t *testing.T) {
	url := "https://www.youtube.com/watch?v=dQw4w9WgXcQ&si=abc"

	t.Run("json", func(t *testing.T) {
		out, _, err := run(t, "recognize", "-o", "json", url)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		var r embed.Result
		if err := json.Unmarshal([]byte(out), &r); err != nil {
			t.Fatalf("invalid JSON: %v\n%s", err, out)
		}
		if r.ContentID != "dQw4w9WgXcQ" || r.OriginalURL != url {
			t.Errorf("got %+v", r)
		}
		if strings.Contains(out, `\u003c`) {
			t.Error("embed code should not be HTML-escaped")
		}
	})

	t.Run("yaml", func(t *testing.T) {
		out, _, err := run(t, "recognize", "--output", "YAML", url)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		var r embed.Result
		if err := yaml.Unmarshal([]byte(out), &r); err != nil {
			t.Fatalf("invalid YAML: %v\n%s", err, out)
		}
		if r.Platform != embed.PlatformYouTube || r.EmbedURL != "https://www.youtube.com/embed/dQw4w9WgXcQ" {
			t.Errorf("got %+v", r)
		}
	})

	t.Run("code only", func(t *testing.T) {
		out, _, err := run(t, "recognize", "--code-only", url)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.HasPrefix(out, "<iframe ") || strings.Count(out, "\n") != 1 {
			t.Errorf("expected a single iframe line, got:\n%s", out)
		}
	})

	t.Run("unknown format", func(t *testing.T) {
		if _, _, err := run(t, "recognize", "-o", "xml", url); err == nil {
			t.Error("expected error for unknown format")
		}
	})
}

func TestRecognize_Errors(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want error
	}{
		{"blank", []string{"recognize", "  "}, embed.ErrEmptyInput},
		{"unsupported", []string{"recognize", "https://vimeo.com/1"}, embed.ErrUnrecognized},
		{"report unsupported", []string{"report", "https://example.com"}, embed.ErrUnrecognized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, _, err := run(t, tt.args...)
			if !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
			if out != "" {
				t.Errorf("expected no output, got %q", out)
			}
		})
	}
}

func TestRecognize_CleansPastedInput(t *testing.T) {
	out, _, err := run(t, "recognize", "--code-only", "https://youtu.be/dQw4w\u200b9WgXcQ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out, "https://www.youtube.com/embed/dQw4w9WgXcQ") {
		t.Errorf("output = %q, want the cleaned embed URL", out)
	}
}

func TestRecognize_Copy(t *testing.T) {
	copied := stubClipboard(t)

	out, errOut, err := run(t, "recognize", "--copy", "--code-only", "youtu.be/dQw4w9WgXcQ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if *copied != strings.TrimSpace(out) {
		t.Errorf("copied %q, printed %q", *copied, out)
	}
	if !strings.Contains(errOut, "Copied embed code") {
		t.Errorf("stderr = %q", errOut)
	}
}

func TestReport(t *testing.T) {
	copied := stubClipboard(t)
	url := "https://open.spotify.com/artist/0OdUWJ0sBjDrqHygGUXeCF?si=z"

	out, _, err := run(t, "report", "--copy", url)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !strings.HasPrefix(out, "Subject: Bug Report: Incorrect Share Link Behavior for Spotify\n\n") {
		t.Errorf("unexpected report start:\n%s", out)
	}
	if !strings.Contains(out, "Original URL: "+url) {
		t.Errorf("report missing original URL:\n%s", out)
	}
	if *copied+"\n" != out {
		t.Error("clipboard does not hold the printed report")
	}
}

func TestPlatforms(t *testing.T) {
	out, _, err := run(t, "platforms")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "YouTube\nSpotify\n" {
		t.Errorf("output = %q", out)
	}
}

func TestRoot_NoArgs(t *testing.T) {
	origTerm, origRun := isTerminal, runInteractive
	t.Cleanup(func() { isTerminal, runInteractive = origTerm, origRun })

	var started bool
	runInteractive = func(*embed.Registry) error {
		started = true
		return nil
	}

	t.Run("not a terminal prints help", func(t *testing.T) {
		isTerminal = func() bool { return false }
		out, _, err := run(t)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if started || !strings.Contains(out, "Usage:") {
			t.Errorf("expected help, got %q", out)
		}
	})

	t.Run("terminal opens the form", func(t *testing.T) {
		isTerminal = func() bool { return true }
		if _, _, err := run(t); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !started {
			t.Error("interactive form not started")
		}
	})
}
