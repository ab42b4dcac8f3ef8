package flat

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
)

const s3UploadTimeout = 10 * time.Minute

// UploadS3 uploads a local file to S3 under the given key. The AWS
// library configures itself from environment variables.
func UploadS3(ctx context.Context, bucket, key, path string) error {
	if bucket == "" {
		return fmt.Errorf("flat: no S3 bucket configured")
	}
	fi, err := os.Open(path)
	if err != nil {
		return err
	}
	defer fi.Close()

	sess := session.Must(session.NewSession())
	uploader := s3manager.NewUploader(sess)

	ctx, cancel := context.WithTimeout(ctx, s3UploadTimeout)
	defer cancel()

	_, err = uploader.UploadWithContext(ctx, &s3manager.UploadInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
		Body:   fi,
	})
	if err != nil {
		if aerr, ok := err.(awserr.Error); ok && aerr.Code() == request.CanceledErrorCode {
			slog.Error("S3 upload canceled", "bucket", bucket, "key", key, "error", err)
		} else {
			slog.Error("S3 upload failed", "bucket", bucket, "key", key, "error", err)
		}
		return err
	}

	slog.Info("Uploaded backup to S3", "bucket", bucket, "key", key)
	return nil
}

// DownloadS3 downloads an S3 object into the provided writer.
func DownloadS3(ctx context.Context, wr io.WriterAt, bucket, key string) (int64, error) {
	if bucket == "" {
		return 0, fmt.Errorf("flat: no S3 bucket configured")
	}
	sess := session.Must(session.NewSession())
	downloader := s3manager.NewDownloader(sess)
	return downloader.DownloadWithContext(ctx, wr, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
}
