package storage_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"

	gcs "cloud.google.com/go/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/nfe-emissor/internal/domain"
	"github.com/jhoicas/nfe-emissor/internal/infrastructure/storage"
)

type fakeGCS struct {
	objects  map[string][]byte
	types    map[string]string
	writeErr error
	readErr  error
	closed   bool
}

func newFakeGCS() *fakeGCS {
	return &fakeGCS{objects: map[string][]byte{}, types: map[string]string{}}
}

// gcsWriter solo confirma el objeto en Close, como el writer real.
type gcsWriter struct {
	f    *fakeGCS
	name string
	ct   string
	buf  bytes.Buffer
}

func (w *gcsWriter) Write(p []byte) (int, error) {
	if w.f.writeErr != nil {
		return 0, w.f.writeErr
	}
	return w.buf.Write(p)
}

func (w *gcsWriter) Close() error {
	if w.f.writeErr != nil {
		return w.f.writeErr
	}
	w.f.objects[w.name] = w.buf.Bytes()
	w.f.types[w.name] = w.ct
	return nil
}

func (f *fakeGCS) NewWriter(_ context.Context, bucket, object, contentType string) io.WriteCloser {
	return &gcsWriter{f: f, name: bucket + "/" + object, ct: contentType}
}

func (f *fakeGCS) NewReader(_ context.Context, bucket, object string) (io.ReadCloser, error) {
	if f.readErr != nil {
		return nil, f.readErr
	}
	b, ok := f.objects[bucket+"/"+object]
	if !ok {
		return nil, gcs.ErrObjectNotExist
	}
	return io.NopCloser(bytes.NewReader(b)), nil
}

func (f *fakeGCS) Close() error {
	f.closed = true
	return nil
}

func TestGCSStore_PutGet(t *testing.T) {
	fake := newFakeGCS()
	s := storage.NewGCSStoreWithClient(fake, "artefactos", "homolog")
	ctx := context.Background()

	loc, err := s.Put(ctx, storage.XMLKey("3124"), []byte("<NFe/>"), "application/xml")
	require.NoError(t, err)
	assert.Equal(t, "gs://artefactos/homolog/xml/3124.xml", loc)
	assert.Equal(t, "application/xml", fake.types["artefactos/homolog/xml/3124.xml"])

	data, err := s.Get(ctx, "xml/3124.xml")
	require.NoError(t, err)
	assert.Equal(t, "<NFe/>", string(data))

	_, err = s.Get(ctx, storage.PDFKey("otro"))
	assert.ErrorIs(t, err, domain.ErrNotFound)

	require.NoError(t, s.Close())
	assert.True(t, fake.closed)
}

func TestGCSStore_Errores(t *testing.T) {
	ctx := context.Background()

	fake := newFakeGCS()
	fake.writeErr = errors.New("quota exceeded")
	s := storage.NewGCSStoreWithClient(fake, "artefactos", "")
	_, err := s.Put(ctx, storage.PDFKey("abc"), []byte("%PDF"), "application/pdf")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "quota exceeded")
	assert.Empty(t, fake.objects)

	fake = newFakeGCS()
	fake.readErr = errors.New("permission denied")
	s = storage.NewGCSStoreWithClient(fake, "artefactos", "")
	_, err = s.Get(ctx, storage.PDFKey("abc"))
	require.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrNotFound)

	_, err = s.Put(ctx, "   ", []byte("x"), "")
	assert.Error(t, err)
}

func TestNewGCSStore_BucketObligatorio(t *testing.T) {
	_, err := storage.NewGCSStore(context.Background(), "", "")
	assert.Error(t, err)
}
