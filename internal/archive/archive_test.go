package archive

import (
	"context"
	"testing"
)

func TestMemoryRoundTrip(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	data := []byte("Date,Amount,Description\n01/02/2024,4.50,COFFEE\n")
	uri, err := m.Archive(ctx, "statement.csv", data)
	if err != nil {
		t.Fatal(err)
	}
	if uri == "" {
		t.Fatal("empty archive URI")
	}

	got, err := m.Fetch(ctx, uri)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != string(data) {
		t.Fatalf("fetched %q, want %q", got, data)
	}

	if _, err := m.Fetch(ctx, "mem://nope"); err == nil {
		t.Fatal("expected unknown URI error")
	}
}

func TestMemoryURIsAreUnique(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	a, _ := m.Archive(ctx, "same.csv", []byte("a"))
	b, _ := m.Archive(ctx, "same.csv", []byte("b"))
	if a == b {
		t.Fatalf("identical URIs for distinct archives: %s", a)
	}
	if m.Len() != 2 {
		t.Fatalf("got %d objects, want 2", m.Len())
	}
}

func TestSplitURI(t *testing.T) {
	tests := []struct {
		uri     string
		bucket  string
		object  string
		wantErr bool
	}{
		{uri: "gs://my-bucket/uploads/2024/01/02/file.csv", bucket: "my-bucket", object: "uploads/2024/01/02/file.csv"},
		{uri: "gs://my-bucket/", wantErr: true},
		{uri: "gs://my-bucket", wantErr: true},
		{uri: "https://example.com/file.csv", wantErr: true},
		{uri: "", wantErr: true},
	}
	for _, tt := range tests {
		bucket, object, err := splitURI(tt.uri)
		if tt.wantErr {
			if err == nil {
				t.Errorf("splitURI(%q): expected error", tt.uri)
			}
			continue
		}
		if err != nil {
			t.Errorf("splitURI(%q): %v", tt.uri, err)
			continue
		}
		if bucket != tt.bucket || object != tt.object {
			t.Errorf("splitURI(%q) = %q, %q", tt.uri, bucket, object)
		}
	}
}
