package blobstore

import "errors"

var (
	ErrNotFound      = errors.New("blob not found")
	ErrInvalidKey    = errors.New("invalid blob key")
	ErrInvalidConfig = errors.New("invalid blob store configuration")

	// S3 classification
	ErrBucketNotFound     = errors.New("bucket not found")
	ErrAccessDenied       = errors.New("access denied")
	ErrServiceUnavailable = errors.New("service temporarily unavailable")
	ErrFailedToLoadConfig = errors.New("failed to load AWS config")
	ErrPaginatorNil       = errors.New("paginator factory returned nil")

	ErrOperationTimeout  = errors.New("operation timed out")
	ErrOperationCanceled = errors.New("operation canceled")
)
