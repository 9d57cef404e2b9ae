package s3

import (
	"bytes"
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/linpawslitap/mds-scaling/internal/logger"
	"github.com/linpawslitap/mds-scaling/pkg/bulk"
)

// writer buffers one object and uploads it either as a single PutObject or,
// once the buffer reaches the part size, as a multipart upload.
type writer struct {
	ctx      context.Context
	store    *S3BulkStore
	path     string
	key      string
	metadata map[string]string
	progress bulk.ProgressFunc

	buf       bytes.Buffer
	published int
	uploadID  string
	parts     []types.CompletedPart
	closed    bool
	failed    error
}

func (w *writer) Write(p []byte) (int, error) {
	if w.closed {
		return 0, bulk.ErrWriterClosed
	}
	if w.failed != nil {
		return 0, w.failed
	}

	n, _ := w.buf.Write(p)
	if err := w.uploadFullParts(); err != nil {
		w.failed = err
		return n, err
	}
	return n, nil
}

// Flush makes the written bytes readable. Until the object outgrows one part
// the whole buffer is published with PutObject; Close publishes the final
// object.
// After a multipart upload has begun, full parts are uploaded but the
// trailing partial part stays buffered until Close, because S3 requires all
// parts but the last to be at least 5MB; readers keep seeing the last
// published prefix until then.
func (w *writer) Flush() error {
	if w.closed {
		return bulk.ErrWriterClosed
	}
	if w.failed != nil {
		return w.failed
	}
	if err := w.uploadFullParts(); err != nil {
		w.failed = err
		return err
	}
	if w.uploadID != "" || w.published == w.buf.Len() {
		return nil
	}
	if err := w.put(); err != nil {
		w.failed = err
		return err
	}
	w.published = w.buf.Len()
	return nil
}

// put publishes the whole buffer as a single object.
func (w *writer) put() error {
	_, err := w.store.client.PutObject(w.ctx, &s3.PutObjectInput{
		Bucket:   aws.String(w.store.bucket),
		Key:      aws.String(w.key),
		Body:     bytes.NewReader(w.buf.Bytes()),
		Metadata: w.metadata,
	})
	if err != nil {
		return fmt.Errorf("failed to put object: %w", err)
	}
	if w.progress != nil {
		w.progress()
	}
	return nil
}

func (w *writer) uploadFullParts() error {
	for int64(w.buf.Len()) >= w.store.partSize {
		if w.uploadID == "" {
			if err := w.begin(); err != nil {
				return err
			}
		}
		if err := w.uploadPart(w.buf.Next(int(w.store.partSize))); err != nil {
			return err
		}
	}
	return nil
}

func (w *writer) begin() error {
	out, err := w.store.client.CreateMultipartUpload(w.ctx, &s3.CreateMultipartUploadInput{
		Bucket:   aws.String(w.store.bucket),
		Key:      aws.String(w.key),
		Metadata: w.metadata,
	})
	if err != nil {
		return fmt.Errorf("failed to create multipart upload: %w", err)
	}
	w.uploadID = aws.ToString(out.UploadId)
	return nil
}

func (w *writer) uploadPart(data []byte) error {
	partNumber := int32(len(w.parts) + 1)
	out, err := w.store.client.UploadPart(w.ctx, &s3.UploadPartInput{
		Bucket:     aws.String(w.store.bucket),
		Key:        aws.String(w.key),
		UploadId:   aws.String(w.uploadID),
		PartNumber: aws.Int32(partNumber),
		Body:       bytes.NewReader(data),
	})
	if err != nil {
		return fmt.Errorf("failed to upload part %d: %w", partNumber, err)
	}

	w.parts = append(w.parts, types.CompletedPart{
		ETag:       out.ETag,
		PartNumber: aws.Int32(partNumber),
	})
	if w.progress != nil {
		w.progress()
	}
	return nil
}

func (w *writer) abort() {
	if w.uploadID == "" {
		return
	}
	_, err := w.store.client.AbortMultipartUpload(context.WithoutCancel(w.ctx), &s3.AbortMultipartUploadInput{
		Bucket:   aws.String(w.store.bucket),
		Key:      aws.String(w.key),
		UploadId: aws.String(w.uploadID),
	})
	if err != nil {
		logger.Warn("abort multipart upload %s for %s: %v", w.uploadID, w.path, err)
	}
}

// Close publishes the object. On failure any multipart upload is aborted.
func (w *writer) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	defer w.store.unclaim(w.key)

	if w.failed != nil {
		w.abort()
		return w.failed
	}

	if err := w.finish(); err != nil {
		w.abort()
		return &bulk.PathError{Op: "close", Path: w.path, Err: err}
	}
	return nil
}

func (w *writer) finish() error {
	if w.uploadID == "" {
		if w.published == w.buf.Len() && w.published > 0 {
			return nil
		}
		return w.put()
	}

	if w.buf.Len() > 0 {
		if err := w.uploadPart(w.buf.Bytes()); err != nil {
			return err
		}
	}

	_, err := w.store.client.CompleteMultipartUpload(w.ctx, &s3.CompleteMultipartUploadInput{
		Bucket:   aws.String(w.store.bucket),
		Key:      aws.String(w.key),
		UploadId: aws.String(w.uploadID),
		MultipartUpload: &types.CompletedMultipartUpload{
			Parts: w.parts,
		},
	})
	if err != nil {
		return fmt.Errorf("failed to complete multipart upload: %w", err)
	}
	return nil
}
