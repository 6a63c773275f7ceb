package desired

import (
	"bytes"
	"context"
	"io"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/rs/zerolog"
)

type fakeS3 struct {
	mu      sync.Mutex
	objects map[string][]byte
	ctypes  map[string]string
}

func newFakeS3() *fakeS3 {
	return &fakeS3{objects: map[string][]byte{}, ctypes: map[string]string{}}
}

func (f *fakeS3) PutObject(ctx context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	b, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	k := aws.ToString(in.Bucket) + "/" + aws.ToString(in.Key)
	f.mu.Lock()
	f.objects[k] = b
	f.ctypes[k] = aws.ToString(in.ContentType)
	f.mu.Unlock()
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) GetObject(ctx context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	k := aws.ToString(in.Bucket) + "/" + aws.ToString(in.Key)
	f.mu.Lock()
	b, ok := f.objects[k]
	f.mu.Unlock()
	if !ok {
		return nil, &s3types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(b))}, nil
}

func TestS3Store_PublishRead(t *testing.T) {
	api := newFakeS3()
	s := NewS3StoreWithClient(api, "fleet", "state/desired", JSON, 0, zerolog.Nop())
	if _, ok := s.Read(context.Background()); ok {
		t.Fatalf("expected absent record")
	}
	if err := s.Publish(context.Background(), "m-s3"); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if ct := api.ctypes["fleet/state/desired"]; ct != "application/json" {
		t.Fatalf("unexpected content type %q", ct)
	}
	ds, ok := s.Read(context.Background())
	if !ok || ds.DesiredArtifactID != "m-s3" {
		t.Fatalf("unexpected record %+v", ds)
	}
}

func TestS3Store_Msgpack(t *testing.T) {
	api := newFakeS3()
	s := NewS3StoreWithClient(api, "fleet", "", Msgpack, 0, zerolog.Nop())
	if err := s.Publish(context.Background(), "m"); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if ct := api.ctypes["fleet/"+DefaultKey]; ct != "application/msgpack" {
		t.Fatalf("unexpected content type %q", ct)
	}
	if ds, ok := s.Read(context.Background()); !ok || ds.DesiredArtifactID != "m" {
		t.Fatalf("unexpected record %+v", ds)
	}
}
