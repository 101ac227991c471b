package documents

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/offerflow/offerflow-backend/pkg/storage"
)

var errNoContent = errors.New("document has no stored content")

// StorageProvider addresses document content blobs in S3. Keys are derived
// deterministically from document identity and content type, so branching a
// document is a same-bucket copy.
type StorageProvider struct {
	s3            storage.S3Client
	bucket        string
	presignExpiry time.Duration
}

func NewStorageProvider(s3 storage.S3Client, bucket string, presignExpiry time.Duration) *StorageProvider {
	return &StorageProvider{
		s3:            s3,
		bucket:        bucket,
		presignExpiry: presignExpiry,
	}
}

func (p *StorageProvider) Exists(ctx context.Context, doc *Document, contentType ContentType) (bool, error) {
	return p.s3.Exists(ctx, p.bucket, doc.FilePath(contentType))
}

// CopyContent copies the source document's blob to the destination's key,
// preferring JSON content and falling back to legacy HTML. Returns the
// content type that was copied.
func (p *StorageProvider) CopyContent(ctx context.Context, source, dest *Document) (ContentType, error) {
	for _, contentType := range []ContentType{ContentJSON, ContentHTML} {
		exists, err := p.s3.Exists(ctx, p.bucket, source.FilePath(contentType))
		if err != nil {
			return "", err
		}
		if !exists {
			continue
		}
		if err := p.s3.Copy(ctx, p.bucket, source.FilePath(contentType), dest.FilePath(contentType)); err != nil {
			return "", err
		}
		return contentType, nil
	}
	return "", errNoContent
}

// DeleteContent removes every stored representation of the document.
func (p *StorageProvider) DeleteContent(ctx context.Context, doc *Document) error {
	var errs []error
	for _, contentType := range []ContentType{ContentJSON, ContentHTML, ContentPDF} {
		exists, err := p.s3.Exists(ctx, p.bucket, doc.FilePath(contentType))
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if !exists {
			continue
		}
		if err := p.s3.Delete(ctx, p.bucket, doc.FilePath(contentType)); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (p *StorageProvider) Upload(ctx context.Context, doc *Document, contentType ContentType, body io.Reader) error {
	return p.s3.Upload(ctx, p.bucket, doc.FilePath(contentType), string(contentType), body)
}

func (p *StorageProvider) PresignedGet(ctx context.Context, doc *Document, contentType ContentType, asAttachment bool) (string, error) {
	disposition := ""
	if asAttachment {
		disposition = fmt.Sprintf("attachment; filename=%q", doc.Title+"."+contentType.Suffix())
	}
	return p.s3.PresignGet(ctx, p.bucket, doc.FilePath(contentType), string(contentType), disposition, p.presignExpiry)
}

func (p *StorageProvider) PresignedPut(ctx context.Context, doc *Document, contentType ContentType) (string, error) {
	return p.s3.PresignPut(ctx, p.bucket, doc.FilePath(contentType), string(contentType), p.presignExpiry)
}
