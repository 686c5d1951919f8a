package publisher

import (
	"context"
	"errors"
	"testing"

	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/require"

	"github.com/oshokin/webstart-packager/internal/config"
)

type fakeStore struct {
	exists    bool
	made      []string
	uploads   map[string]string
	uploadErr error
}

func (f *fakeStore) BucketExists(_ context.Context, _ string) (bool, error) {
	return f.exists, nil
}

func (f *fakeStore) MakeBucket(_ context.Context, bucket string, _ minio.MakeBucketOptions) error {
	f.made = append(f.made, bucket)
	f.exists = true

	return nil
}

func (f *fakeStore) FPutObject(
	_ context.Context,
	_, object, filePath string,
	opts minio.PutObjectOptions,
) (minio.UploadInfo, error) {
	if f.uploadErr != nil {
		return minio.UploadInfo{}, f.uploadErr
	}

	if f.uploads == nil {
		f.uploads = make(map[string]string)
	}

	f.uploads[object] = filePath + "|" + opts.ContentType

	return minio.UploadInfo{Key: object}, nil
}

// TestPublish creates the bucket on first use and uploads under the prefix.
func TestPublish(t *testing.T) {
	t.Parallel()

	store := new(fakeStore)
	p := NewWithStore(store, &config.Publish{Bucket: "bundles", Prefix: "/apps/demo/"})

	key, err := p.Publish(context.Background(), "/out/demo.zip")
	require.NoError(t, err)
	require.Equal(t, "apps/demo/demo.zip", key)
	require.Equal(t, []string{"bundles"}, store.made)
	require.Equal(t, "/out/demo.zip|application/zip", store.uploads[key])

	_, err = p.Publish(context.Background(), "/out/demo.zip")
	require.NoError(t, err)
	require.Len(t, store.made, 1)
}

// TestPublishUploadError wraps the store failure.
func TestPublishUploadError(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")
	p := NewWithStore(&fakeStore{exists: true, uploadErr: boom}, &config.Publish{Bucket: "b"})

	_, err := p.Publish(context.Background(), "/out/x.zip")
	require.ErrorIs(t, err, boom)
}

// TestObjectKey handles an empty prefix.
func TestObjectKey(t *testing.T) {
	t.Parallel()

	require.Equal(t, "x.zip", ObjectKey("", "/a/b/x.zip"))
	require.Equal(t, "p/x.zip", ObjectKey("p", "x.zip"))
}
