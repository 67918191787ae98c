package s3store

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
	"github.com/aws/aws-sdk-go/service/s3/s3manager/s3manageriface"

	"github.com/V4T54L/medallion/internal/domain"
)

type fakeS3 struct {
	s3iface.S3API
	pages   [][]*s3.Object
	failAt    int
	objects   map[string][]byte
	deleteErr error
}

func (f *fakeS3) ListObjectsV2PagesWithContext(_ aws.Context, in *s3.ListObjectsV2Input, fn func(*s3.ListObjectsV2Output, bool) bool, _ ...request.Option) error {
	for i, page := range f.pages {
		if f.failAt > 0 && i == f.failAt {
			return awserr.New("InternalError", "listing interrupted", nil)
		}
		if !fn(&s3.ListObjectsV2Output{Contents: page}, i == len(f.pages)-1) {
			break
		}
	}
	return nil
}

func (f *fakeS3) GetObjectWithContext(_ aws.Context, in *s3.GetObjectInput, _ ...request.Option) (*s3.GetObjectOutput, error) {
	data, ok := f.objects[aws.StringValue(in.Key)]
	if !ok {
		return nil, awserr.New(s3.ErrCodeNoSuchKey, "missing", nil)
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func (f *fakeS3) DeleteObjectWithContext(_ aws.Context, in *s3.DeleteObjectInput, _ ...request.Option) (*s3.DeleteObjectOutput, error) {
	if f.deleteErr != nil {
		return nil, f.deleteErr
	}
	delete(f.objects, aws.StringValue(in.Key))
	return &s3.DeleteObjectOutput{}, nil
}

type fakeUploader struct {
	s3manageriface.UploaderAPI
	uploaded map[string][]byte
	err      error
}

func (f *fakeUploader) UploadWithContext(_ aws.Context, in *s3manager.UploadInput, _ ...func(*s3manager.Uploader)) (*s3manager.UploadOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	data, _ := io.ReadAll(in.Body)
	f.uploaded[aws.StringValue(in.Key)] = data
	return &s3manager.UploadOutput{}, nil
}

func newTestStore(client *fakeS3, uploader *fakeUploader) *Store {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewWithClients(client, uploader, "lake", logger)
}

func obj(key string, size int64) *s3.Object {
	return &s3.Object{Key: aws.String(key), Size: aws.Int64(size), LastModified: aws.Time(time.Unix(1710000000, 0))}
}

func TestStore_List(t *testing.T) {
	t.Run("All pages", func(t *testing.T) {
		client := &fakeS3{pages: [][]*s3.Object{
			{obj("bronze/logs_20240101_000000.json", 10)},
			{obj("bronze/logs_20240102_000000.json", 20)},
		}}
		store := newTestStore(client, &fakeUploader{})

		objects, err := store.List(context.Background(), "bronze/")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(objects) != 2 || objects[1].Size != 20 {
			t.Errorf("unexpected listing: %+v", objects)
		}
	})

	t.Run("Partial listing on failure", func(t *testing.T) {
		client := &fakeS3{failAt: 1, pages: [][]*s3.Object{
			{obj("bronze/logs_20240101_000000.json", 10)},
			{obj("bronze/logs_20240102_000000.json", 20)},
		}}
		store := newTestStore(client, &fakeUploader{})

		objects, err := store.List(context.Background(), "bronze/")
		if err == nil {
			t.Fatal("expected an error")
		}
		if len(objects) != 1 {
			t.Errorf("expected the first page to be returned, got %d objects", len(objects))
		}
	})
}

func TestStore_GetPut(t *testing.T) {
	client := &fakeS3{objects: map[string][]byte{"bronze/a.json": []byte(`{"a":1}`)}}
	uploader := &fakeUploader{uploaded: map[string][]byte{}}
	store := newTestStore(client, uploader)
	ctx := context.Background()

	data, err := store.Get(ctx, "bronze/a.json")
	if err != nil || string(data) != `{"a":1}` {
		t.Errorf("unexpected get result %q, %v", data, err)
	}

	if _, err := store.Get(ctx, "bronze/missing.json"); !errors.Is(err, domain.ErrObjectNotFound) {
		t.Errorf("expected ErrObjectNotFound, got %v", err)
	}

	if err := store.Put(ctx, "silver/part.parquet", []byte("PAR1")); err != nil {
		t.Fatalf("unexpected put error: %v", err)
	}
	if string(uploader.uploaded["silver/part.parquet"]) != "PAR1" {
		t.Error("expected object to be uploaded")
	}

	uploader.err = errors.New("throttled")
	if err := store.Put(ctx, "silver/other.parquet", nil); err == nil {
		t.Error("expected upload error to be returned")
	}
}

func TestStore_Delete(t *testing.T) {
	client := &fakeS3{objects: map[string][]byte{"gold/daily_metrics/part.parquet": []byte("PAR1")}}
	store := newTestStore(client, &fakeUploader{})
	ctx := context.Background()

	if err := store.Delete(ctx, "gold/daily_metrics/part.parquet"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, ok := client.objects["gold/daily_metrics/part.parquet"]; ok {
		t.Error("expected the object to be deleted")
	}

	client.deleteErr = awserr.New(s3.ErrCodeNoSuchKey, "missing", nil)
	if err := store.Delete(ctx, "gold/daily_metrics/gone.parquet"); err != nil {
		t.Errorf("expected a missing key to be ignored, got %v", err)
	}

	client.deleteErr = awserr.New("AccessDenied", "denied", nil)
	if err := store.Delete(ctx, "gold/daily_metrics/part.parquet"); err == nil {
		t.Error("expected the delete error to be returned")
	}
}
