package dto

import "github.com/cesargomez89/artshelf/internal/app"

type SimilarResponse struct {
	Similar    []app.SimilarFile `json:"similar"`
	Pagination Pagination        `json:"pagination"`
	FileID     int64             `json:"file_id"`
}
