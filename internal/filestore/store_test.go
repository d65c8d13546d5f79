package filestore

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fleetdocs/internal/document/models"
	dErrors "fleetdocs/pkg/domain-errors"
	"fleetdocs/pkg/requestcontext"
)

type fakeS3 struct {
	objects   map[string]*s3.PutObjectInput
	putErr    error
	headErr   error
	created   bool
	deleted   []string
	deleteErr error
}

func newFakeS3() *fakeS3 { return &fakeS3{objects: make(map[string]*s3.PutObjectInput)} }

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.putErr != nil {
		return nil, f.putErr
	}
	f.objects[aws.ToString(in.Key)] = in
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) DeleteObject(_ context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	if f.deleteErr != nil {
		return nil, f.deleteErr
	}
	f.deleted = append(f.deleted, aws.ToString(in.Key))
	return &s3.DeleteObjectOutput{}, nil
}

func (f *fakeS3) HeadBucket(_ context.Context, _ *s3.HeadBucketInput, _ ...func(*s3.Options)) (*s3.HeadBucketOutput, error) {
	return &s3.HeadBucketOutput{}, f.headErr
}

func (f *fakeS3) CreateBucket(_ context.Context, _ *s3.CreateBucketInput, _ ...func(*s3.Options)) (*s3.CreateBucketOutput, error) {
	f.created = true
	return &s3.CreateBucketOutput{}, nil
}

func discardLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestS3Store_Store(t *testing.T) {
	fake := newFakeS3()
	store := newS3Store(fake, "fleet", "/tenant-a/", "https://files.example.com/fleet", discardLogger())
	ctx := requestcontext.WithTime(context.Background(), time.Date(2026, 2, 9, 10, 0, 0, 0, time.UTC))

	ref, err := store.Store(ctx, models.Upload{Name: "Policy.PDF", ContentType: "application/pdf", Data: pdfBytes})
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(ref.Key, "tenant-a/documents/2026/02/"), ref.Key)
	assert.True(t, strings.HasSuffix(ref.Key, ".pdf"))
	assert.Equal(t, "https://files.example.com/fleet/"+ref.Key, ref.URL)
	assert.Equal(t, int64(len(pdfBytes)), ref.Size)
	assert.Equal(t, "application/pdf", ref.ContentType)

	put, ok := fake.objects[ref.Key]
	require.True(t, ok)
	assert.Equal(t, "fleet", aws.ToString(put.Bucket))
	assert.Equal(t, "application/pdf", aws.ToString(put.ContentType))
}

func TestS3Store_Failures(t *testing.T) {
	ctx := context.Background()

	t.Run("rejected upload never reaches S3", func(t *testing.T) {
		fake := newFakeS3()
		store := newS3Store(fake, "fleet", "", "", discardLogger())
		_, err := store.Store(ctx, models.Upload{Name: "x.exe", ContentType: "application/x-msdownload", Data: []byte("MZ")})
		assert.True(t, dErrors.HasCode(err, dErrors.CodeFileRejected))
		assert.Empty(t, fake.objects)
	})

	t.Run("put failure is a storage failure", func(t *testing.T) {
		fake := newFakeS3()
		fake.putErr = errors.New("503 slow down")
		store := newS3Store(fake, "fleet", "", "", discardLogger())
		_, err := store.Store(ctx, models.Upload{Name: "p.pdf", ContentType: "application/pdf", Data: pdfBytes})
		assert.True(t, dErrors.HasCode(err, dErrors.CodeStorageFailure))
	})

	t.Run("delete failure is a storage failure", func(t *testing.T) {
		fake := newFakeS3()
		fake.deleteErr = errors.New("timeout")
		store := newS3Store(fake, "fleet", "", "", discardLogger())
		err := store.Delete(ctx, models.FileRef{Key: "documents/a.pdf"})
		assert.True(t, dErrors.HasCode(err, dErrors.CodeStorageFailure))
	})

	t.Run("deleting a zero ref is a no-op", func(t *testing.T) {
		fake := newFakeS3()
		store := newS3Store(fake, "fleet", "", "", discardLogger())
		require.NoError(t, store.Delete(ctx, models.FileRef{}))
		assert.Empty(t, fake.deleted)
	})
}

func TestS3Store_EnsureBucket(t *testing.T) {
	fake := newFakeS3()
	fake.headErr = errors.New("not found")
	store := newS3Store(fake, "fleet", "", "", discardLogger())

	require.NoError(t, store.ensureBucket(context.Background()))
	assert.True(t, fake.created)
}

func TestMemory(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	ref, err := m.Store(ctx, models.Upload{Name: "card.png", ContentType: "image/png", Data: pngBytes})
	require.NoError(t, err)
	assert.True(t, m.Has(ref.Key))
	assert.Equal(t, 1, m.Len())

	require.NoError(t, m.Delete(ctx, ref))
	assert.False(t, m.Has(ref.Key))

	_, err = m.Store(ctx, models.Upload{Name: "card.png", ContentType: "image/png"})
	assert.True(t, dErrors.HasCode(err, dErrors.CodeFileRejected))
}
