package storage

import "context"

// UploadOptions conveys upload destination metadata.
type UploadOptions struct {
	Bucket    string
	KeyPrefix string
}

// Service uploads user media to remote object storage. UploadFile removes
// the local temporary file after the attempt, success or failure, and
// returns a stable URL for the stored object.
type Service interface {
	UploadFile(ctx context.Context, localPath string, opts UploadOptions) (string, error)
}
