package media

import "errors"

var (
	// ErrFileRequired signals a multipart request without a file part.
	ErrFileRequired = errors.New("file is required")
	// ErrFileTooLarge signals that the upload exceeds the configured limit.
	ErrFileTooLarge = errors.New("file too large")
	// ErrUnsupportedType rejects uploads that are not images.
	ErrUnsupportedType = errors.New("only image uploads are allowed")
	// ErrCoverNotFound means the post has no cover image.
	ErrCoverNotFound = errors.New("cover image not found")
)
