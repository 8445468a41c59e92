package artifact

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3"
)

type fakeS3 struct {
	puts    []*s3.PutObjectInput
	body    string
	deletes []string
	err     error
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	b, _ := io.ReadAll(in.Body)
	f.body = string(b)
	f.puts = append(f.puts, in)
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) DeleteObject(_ context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	f.deletes = append(f.deletes, *in.Key)
	return &s3.DeleteObjectOutput{}, nil
}

func TestNewKey(t *testing.T) {
	tests := []struct {
		name    string
		wantExt string
	}{
		{"plan.PDF", ".pdf"},
		{"../../etc/passwd", ""},
		{`C:\docs\journal.xlsx`, ".xlsx"},
		{"noext", ""},
		{"weird.ext with space", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key := NewKey(7, tt.name)
			if !strings.HasPrefix(key, "assignments/7/") {
				t.Errorf("key %q lacks owner prefix", key)
			}
			if !strings.HasSuffix(key, tt.wantExt) {
				t.Errorf("key %q, want suffix %q", key, tt.wantExt)
			}
			if strings.Contains(key, "..") {
				t.Errorf("key %q contains traversal", key)
			}
		})
	}
	if NewKey(1, "a.pdf") == NewKey(1, "a.pdf") {
		t.Error("keys must be unique")
	}
}

func TestS3StorePut(t *testing.T) {
	fake := &fakeS3{}
	st := NewS3StoreWithClient(fake, "uploads")

	ref, err := st.Put(context.Background(), 3, "dir/report.pdf", "application/pdf", 5, strings.NewReader("hello"))
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if len(fake.puts) != 1 || *fake.puts[0].Bucket != "uploads" || fake.body != "hello" {
		t.Fatalf("unexpected put: %+v body %q", fake.puts, fake.body)
	}
	if ref.Name != "report.pdf" || ref.Size != 5 || !strings.HasPrefix(ref.Location, "s3://uploads/assignments/3/") {
		t.Errorf("ref = %+v", ref)
	}
	if err := st.Delete(context.Background(), ref.Key); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if len(fake.deletes) != 1 || fake.deletes[0] != ref.Key {
		t.Errorf("deletes = %v", fake.deletes)
	}

	fake.err = errors.New("boom")
	if _, err := st.Put(context.Background(), 3, "x.pdf", "application/pdf", 1, strings.NewReader("x")); err == nil {
		t.Error("expected error from failing client")
	}
}

func TestLocalStore(t *testing.T) {
	root := t.TempDir()
	st, err := NewLocalStore(root)
	if err != nil {
		t.Fatalf("NewLocalStore: %v", err)
	}

	ref, err := st.Put(context.Background(), 9, "notes.txt", "text/plain", 4, strings.NewReader("abcd"))
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(ref.Key)))
	if err != nil || string(data) != "abcd" {
		t.Fatalf("stored = %q, %v", data, err)
	}

	// Declared size must match.
	if _, err := st.Put(context.Background(), 9, "notes.txt", "text/plain", 2, strings.NewReader("abcd")); err == nil {
		t.Error("expected size mismatch error")
	}

	if err := st.Delete(context.Background(), ref.Key); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := st.Delete(context.Background(), ref.Key); err != nil {
		t.Errorf("deleting twice: %v", err)
	}
}
