// Package publisher uploads the finished bundle archive to an S3-compatible
// bucket through minio-go.
package publisher
