// Package s3upload uploads launch artifacts to S3.
package s3upload

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/dustin/go-humanize"
	"go.uber.org/zap"
)

// PutObjectAPI is the subset of the S3 client used by the uploader.
type PutObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Uploader uploads files under a fixed bucket and key prefix.
type Uploader struct {
	lg       *zap.Logger
	client   PutObjectAPI
	bucket   string
	prefix   string
	metadata map[string]string
}

// New returns an uploader. Keys are "prefix/<rel>" for each uploaded file.
func New(lg *zap.Logger, client PutObjectAPI, bucket string, prefix string, metadata map[string]string) *Uploader {
	return &Uploader{
		lg:       lg,
		client:   client,
		bucket:   bucket,
		prefix:   prefix,
		metadata: metadata,
	}
}

// Key returns the S3 key for a path relative to the upload base directory.
func (u *Uploader) Key(rel string) string {
	return path.Join(u.prefix, filepath.ToSlash(rel))
}

// UploadFiles uploads baseDir/rel for each rel and returns the uploaded keys.
// It keeps going after a failed file and returns all failures joined.
func (u *Uploader) UploadFiles(ctx context.Context, baseDir string, rels []string) (keys []string, err error) {
	var errs []error
	for _, rel := range rels {
		key := u.Key(rel)
		if uerr := u.upload(ctx, filepath.Join(baseDir, rel), key); uerr != nil {
			errs = append(errs, uerr)
			continue
		}
		keys = append(keys, key)
	}
	return keys, errors.Join(errs...)
}

func (u *Uploader) upload(ctx context.Context, fpath string, key string) error {
	stat, err := os.Stat(fpath)
	if err != nil {
		return fmt.Errorf("file %q does not exist; failed to upload to %s/%s (%w)", fpath, u.bucket, key, err)
	}
	size := humanize.Bytes(uint64(stat.Size()))

	u.lg.Info("uploading",
		zap.String("s3-bucket", u.bucket),
		zap.String("remote-path", key),
		zap.String("file-size", size),
	)
	rf, err := os.Open(fpath)
	if err != nil {
		u.lg.Warn("failed to read a file", zap.String("file-path", fpath), zap.Error(err))
		return err
	}
	defer rf.Close()

	_, err = u.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(u.bucket),
		Key:           aws.String(key),
		Body:          rf,
		ContentLength: aws.Int64(stat.Size()),
		ACL:           types.ObjectCannedACLPrivate,
		Metadata:      u.metadata,
	})
	if err != nil {
		fields := []zap.Field{
			zap.String("s3-bucket", u.bucket),
			zap.String("remote-path", key),
			zap.Error(err),
		}
		var ae smithy.APIError
		if errors.As(err, &ae) {
			fields = append(fields, zap.String("error-code", ae.ErrorCode()))
		}
		u.lg.Warn("failed to upload", fields...)
		return fmt.Errorf("failed to upload %q to s3://%s/%s (%w)", fpath, u.bucket, key, err)
	}

	u.lg.Info("uploaded",
		zap.String("s3-bucket", u.bucket),
		zap.String("remote-path", key),
		zap.String("file-size", size),
	)
	return nil
}
