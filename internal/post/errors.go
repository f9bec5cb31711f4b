package post

import "errors"

var (
	// ErrPostNotFound indicates the requested post does not exist.
	ErrPostNotFound = errors.New("post not found")
	// ErrSlugExists is returned when another post already uses the derived slug.
	ErrSlugExists = errors.New("a post with the same title already exists")
	// ErrCategoriesNotFound is wrapped with the ids that do not exist.
	ErrCategoriesNotFound = errors.New("categories not found")
	// ErrForbidden is returned when a caller modifies a post they do not own.
	ErrForbidden = errors.New("forbidden")
	// ErrInvalidInput marks payloads the service refuses.
	ErrInvalidInput = errors.New("invalid input")
)
