package dto

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/cesargomez89/artshelf/internal/constants"
	"github.com/cesargomez89/artshelf/internal/domain"
)

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) ToMap() map[string]string {
	return map[string]string{e.Field: e.Message}
}

func ToMap(errs []ValidationError) map[string]string {
	result := make(map[string]string)
	for _, e := range errs {
		result[e.Field] = e.Message
	}
	return result
}

func ToResponse(errs []ValidationError) string {
	var msgs []string
	for _, e := range errs {
		msgs = append(msgs, e.Error())
	}
	return strings.Join(msgs, "; ")
}

func validatePath(path string) []ValidationError {
	var errs []ValidationError
	path = strings.TrimSpace(path)
	switch {
	case path == "":
		errs = append(errs, ValidationError{Field: "path", Message: "is required"})
	case !filepath.IsAbs(path):
		errs = append(errs, ValidationError{Field: "path", Message: "must be absolute"})
	case !strings.EqualFold(filepath.Ext(path), constants.ExtProcreate):
		errs = append(errs, ValidationError{Field: "path", Message: "must be a .procreate file"})
	}
	return errs
}

func validateQueueType(queueType string) []ValidationError {
	var errs []ValidationError
	if queueType != "" && !domain.QueueType(queueType).Valid() {
		errs = append(errs, ValidationError{Field: "type", Message: "must be one of metadata, vector, color_tag"})
	}
	return errs
}

func validateQueueStatus(status string) []ValidationError {
	var errs []ValidationError
	if status != "" && !domain.QueueStatus(status).Valid() {
		errs = append(errs, ValidationError{Field: "status", Message: "must be one of pending, processing, completed, failed"})
	}
	return errs
}

// ParseBool reads an optional boolean query parameter.
func ParseBool(field, raw string) (bool, *ValidationError) {
	if raw == "" {
		return false, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, &ValidationError{Field: field, Message: "must be true or false"}
	}
	return v, nil
}

// ParseID reads a positive queue item id from a path segment.
func ParseID(raw string) (int64, *ValidationError) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, &ValidationError{Field: "id", Message: "must be a positive integer"}
	}
	return id, nil
}

// ParseDays reads the clear-temp age in days. Empty means the default.
func ParseDays(raw string) (int, *ValidationError) {
	if raw == "" {
		return constants.DefaultClearTempDays, nil
	}
	days, err := strconv.Atoi(raw)
	if err != nil || days < 1 || days > 3650 {
		return 0, &ValidationError{Field: "days", Message: "must be between 1 and 3650"}
	}
	return days, nil
}
