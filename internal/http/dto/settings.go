package dto

import "github.com/cesargomez89/artshelf/internal/app"

// ColorTaggingRequest is a partial update of the color tagging settings.
// Out-of-range values are clamped by the service, not rejected.
type ColorTaggingRequest struct {
	Enabled       *bool    `json:"enabled"`
	MinConfidence *float64 `json:"min_confidence"`
	Limit         *int     `json:"limit"`
}

func (r *ColorTaggingRequest) Validate() []ValidationError {
	var errs []ValidationError
	if r.Enabled == nil && r.MinConfidence == nil && r.Limit == nil {
		errs = append(errs, ValidationError{Field: "body", Message: "at least one of enabled, min_confidence, limit is required"})
	}
	return errs
}

func (r *ColorTaggingRequest) ToUpdate() app.ColorTagUpdate {
	return app.ColorTagUpdate{
		Enabled:       r.Enabled,
		MinConfidence: r.MinConfidence,
		Limit:         r.Limit,
	}
}
