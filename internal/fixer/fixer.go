// Package fixer ties the recognition engine to report tokens and metrics. It
// is what the HTTP and websocket surfaces call.
package fixer

import (
	"errors"

	"github.com/embedfixer/embedfixer/internal/embed"
	apperrors "github.com/embedfixer/embedfixer/internal/errors"
	"github.com/embedfixer/embedfixer/internal/metrics"
	"github.com/embedfixer/embedfixer/internal/report"
)

// Fixed is a recognition plus the token needed to request its report later
type Fixed struct {
	*embed.Result
	ReportToken string `json:"report_token"`
}

// Fixer recognizes links and renders reports
type Fixer struct {
	registry *embed.Registry
	signer   *report.Signer
	metrics  *metrics.Metrics
}

// New creates a fixer. m may be nil.
func New(registry *embed.Registry, signer *report.Signer, m *metrics.Metrics) *Fixer {
	return &Fixer{
		registry: registry,
		signer:   signer,
		metrics:  m,
	}
}

// Platforms returns the supported platforms in matching order
func (f *Fixer) Platforms() []embed.Platform {
	return f.registry.Platforms()
}

// Fix recognizes rawURL and issues a report token for it. Errors are
// *apperrors.AppError.
func (f *Fixer) Fix(rawURL string) (*Fixed, error) {
	result, err := f.registry.Recognize(rawURL)
	if err != nil {
		appErr := apperrors.FromRecognition(err)
		if appErr.Code == apperrors.CodeUnrecognized {
			appErr = appErr.WithDetails(map[string]any{
				"supported_platforms": f.registry.Platforms(),
			})
		}
		if f.metrics != nil {
			f.metrics.RecordRejection(appErr.Code)
		}
		return nil, appErr
	}

	token, err := f.signer.Issue(result)
	if err != nil {
		return nil, apperrors.InternalError("failed to issue report token").WithCause(err)
	}

	if f.metrics != nil {
		f.metrics.RecordRecognition(string(result.Platform))
	}
	return &Fixed{Result: result, ReportToken: token}, nil
}

// Report renders the bug report carried by a token from Fix. Errors are
// *apperrors.AppError.
func (f *Fixer) Report(token string) (embed.Report, error) {
	if token == "" {
		return embed.Report{}, apperrors.ValidationError("report_token is required")
	}

	r, err := f.signer.Render(token)
	switch {
	case errors.Is(err, report.ErrTokenExpired):
		return embed.Report{}, apperrors.TokenExpired().WithCause(err)
	case err != nil:
		return embed.Report{}, apperrors.InvalidToken("report token is invalid").WithCause(err)
	}

	if f.metrics != nil {
		f.metrics.RecordReport()
	}
	return r, nil
}
