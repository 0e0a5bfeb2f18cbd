package supabase

import (
	"context"
	"io"
	"net/http"
	"testing"
)

func TestStorageUploadWithToken(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Fatalf("method = %s", r.Method)
		}
		if r.URL.EscapedPath() != "/storage/v1/object/frames/products/wall%20art.png" {
			t.Fatalf("unexpected path: %s", r.URL.EscapedPath())
		}
		if got := r.Header.Get("Content-Type"); got != "image/png" {
			t.Fatalf("Content-Type = %q", got)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer admin-token" {
			t.Fatalf("Authorization = %q", got)
		}
		data, _ := io.ReadAll(r.Body)
		if string(data) != "png-bytes" {
			t.Fatalf("unexpected body: %q", data)
		}
		_, _ = w.Write([]byte(`{"Key":"frames/products/wall art.png"}`))
	}))

	obj, err := client.Storage().UploadWithToken(context.Background(), "frames", "products/wall art.png",
		[]byte("png-bytes"), &UploadOptions{ContentType: "image/png"}, "admin-token")
	if err != nil {
		t.Fatalf("UploadWithToken: %v", err)
	}
	if obj.Key != "frames/products/wall art.png" || obj.Name != "wall art.png" {
		t.Fatalf("unexpected object: %+v", obj)
	}
}

func TestStorageUploadDefaultsContentType(t *testing.T) {
	client := newTestClientWithConfig(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Content-Type"); got != "application/octet-stream" {
			t.Fatalf("Content-Type = %q", got)
		}
		if got := r.Header.Get("x-upsert"); got != "true" {
			t.Fatalf("x-upsert = %q", got)
		}
		w.WriteHeader(http.StatusOK)
	}), Config{AnonKey: "anon-key", ServiceKey: "service-key"})

	obj, err := client.Storage().Upload(context.Background(), "frames", "a.bin", []byte("x"), &UploadOptions{Upsert: true})
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if obj.Key != "frames/a.bin" {
		t.Fatalf("unexpected key: %q", obj.Key)
	}
}

func TestStorageGetPublicURL(t *testing.T) {
	c, err := New(Config{ProjectURL: "https://abc.supabase.co", AnonKey: "k"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	got := c.Storage().GetPublicURL("frames", "products/a b.png")
	want := "https://abc.supabase.co/storage/v1/object/public/frames/products/a%20b.png"
	if got != want {
		t.Fatalf("GetPublicURL = %q, want %q", got, want)
	}
}

func TestStorageUploadError(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"Bucket not found","message":"Bucket not found"}`))
	}))

	_, err := client.Storage().UploadWithToken(context.Background(), "missing", "a.png", []byte("x"), nil, "t")
	if StatusCode(err) != http.StatusBadRequest {
		t.Fatalf("expected 400, got %v", err)
	}
}
