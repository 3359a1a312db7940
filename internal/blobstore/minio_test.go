package blobstore

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/minio/minio-go/v7"
)

type fakeObjectAPI struct {
	puts      map[string][]byte
	removed   []string
	removeErr error
}

func (f *fakeObjectAPI) PutObject(_ context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error) {
	data, err := io.ReadAll(reader)
	if err != nil {
		return minio.UploadInfo{}, err
	}
	if f.puts == nil {
		f.puts = map[string][]byte{}
	}
	f.puts[bucketName+"/"+objectName] = data
	return minio.UploadInfo{Bucket: bucketName, Key: objectName, Size: objectSize}, nil
}

func (f *fakeObjectAPI) GetObject(context.Context, string, string, minio.GetObjectOptions) (*minio.Object, error) {
	return nil, errors.New("not supported in fake")
}

func (f *fakeObjectAPI) RemoveObject(_ context.Context, bucketName, objectName string, _ minio.RemoveObjectOptions) error {
	f.removed = append(f.removed, bucketName+"/"+objectName)
	return f.removeErr
}

func TestMinIOPutUsesPrefixedObjectName(t *testing.T) {
	api := &fakeObjectAPI{}
	store := newMinIOWithClient(api, "meals", "/uploads/meals/")

	if err := store.Put(context.Background(), "1-abcdef.jpg", []byte("jpeg")); err != nil {
		t.Fatalf("put: %v", err)
	}
	got, ok := api.puts["meals/uploads/meals/1-abcdef.jpg"]
	if !ok {
		t.Fatalf("expected prefixed object name, got %#v", api.puts)
	}
	if string(got) != "jpeg" {
		t.Fatalf("unexpected payload %q", string(got))
	}
}

func TestMinIODeleteTreatsMissingObjectAsNoop(t *testing.T) {
	api := &fakeObjectAPI{removeErr: minio.ErrorResponse{Code: minioNoSuchKey}}
	store := newMinIOWithClient(api, "meals", "")

	if err := store.Delete(context.Background(), "missing.jpg"); err != nil {
		t.Fatalf("expected missing object delete to be noop, got %v", err)
	}
	if len(api.removed) != 1 || api.removed[0] != "meals/missing.jpg" {
		t.Fatalf("unexpected removals: %#v", api.removed)
	}
}

func TestMinIODeletePropagatesOtherErrors(t *testing.T) {
	api := &fakeObjectAPI{removeErr: minio.ErrorResponse{Code: "AccessDenied"}}
	store := newMinIOWithClient(api, "meals", "")

	if err := store.Delete(context.Background(), "a.jpg"); err == nil {
		t.Fatal("expected access denied error")
	}
}

func TestMinIORejectsInvalidKey(t *testing.T) {
	store := newMinIOWithClient(&fakeObjectAPI{}, "meals", "")
	if err := store.Put(context.Background(), "../a.jpg", nil); !errors.Is(err, ErrInvalidKey) {
		t.Fatalf("expected ErrInvalidKey, got %v", err)
	}
}
