package embed

import (
	"strings"
	"text/template"
)

// Report is a plain-text bug report for the platform maintainers. It is never
// submitted anywhere; callers display or copy it.
type Report struct {
	Platform Platform `json:"platform" yaml:"platform"`
	Subject  string   `json:"subject" yaml:"subject"`
	Body     string   `json:"body" yaml:"body"`
}

var reportBody = template.Must(template.New("report").Parse(`Platform: {{.Platform}}
Original URL: {{.OriginalURL}}
Extracted Content ID: {{.ContentID}}

Description:
The share URL provided above does not consistently generate a stable embeddable link. It appears to contain non-standard formatting or extraneous tracking parameters (e.g., '?si=...') that can cause issues when embedding the content on other websites.

This tool was able to parse the correct content ID ("{{.ContentID}}") and generate a working embed code. Please consider reviewing the link generation logic to ensure it produces clean, reliable URLs for embedding purposes. Thank you.`))

// ReportInput is the part of a recognition a report needs
type ReportInput struct {
	Platform    Platform
	OriginalURL string
	ContentID   string
}

// NewReport renders the report for a previous recognition
func NewReport(r *Result) Report {
	return RenderReport(ReportInput{
		Platform:    r.Platform,
		OriginalURL: r.OriginalURL,
		ContentID:   r.ContentID,
	})
}

// RenderReport renders the report from its inputs. The output only depends on in.
func RenderReport(in ReportInput) Report {
	var body strings.Builder
	// Executing into a strings.Builder with string fields cannot fail
	_ = reportBody.Execute(&body, in)

	return Report{
		Platform: in.Platform,
		Subject:  "Bug Report: Incorrect Share Link Behavior for " + string(in.Platform),
		Body:     body.String(),
	}
}

// String returns the full report text, subject line first
func (r Report) String() string {
	return "Subject: " + r.Subject + "\n\n" + r.Body
}
