package services

import "errors"

// Ошибки сервисного слоя, маппятся на HTTP-ответы в handlers.
var (
	ErrPointNotFound = errors.New("point not found")
	ErrInvalidLimit  = errors.New("limit must be between 1 and 500")
)
