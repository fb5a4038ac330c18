// Package blobstore keeps encrypted blobs outside the workspace.
//
// Two implementations of Store are provided. S3Store talks to Amazon S3 or
// any S3-compatible service through aws-sdk-go-v2. DirStore mirrors blobs
// into a local directory, which is handy for backups on a mounted drive and
// for tests.
//
// Keys are slash-separated relative paths such as "data/keys.csv.encrypted".
// Stores never see plaintext.
package blobstore
