// Package covers serves book cover images from S3-compatible object
// storage.
//
// Covers are uploaded out-of-band by a sync script that mirrors the
// library directory layout into a bucket: one cover.jpg per book path.
// This package only reads: [Storage.URL] hands out presigned URLs so
// clients fetch covers straight from the bucket, and [Storage.Get]
// streams the bytes for deployments where clients cannot reach the
// bucket directly.
//
// Cover storage is optional. When the bucket is not configured
// (Config.Enabled returns false), the cover route answers 404.
package covers
