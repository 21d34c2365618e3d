package fingerprint

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func newFaceServer(t *testing.T, handler http.HandlerFunc) *FaceClient {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewFaceClient(server.URL + "/")
}

func TestFaceClient_ExtractFirstFace(t *testing.T) {
	client := newFaceServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/embed/face" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Method != http.MethodPost {
			t.Errorf("unexpected method %s", r.Method)
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			t.Fatalf("missing file part: %v", err)
		}
		defer file.Close()
		data, _ := io.ReadAll(file)
		if string(data) != "\xFF\xD8\xFFimagebytes" {
			t.Errorf("unexpected body %q", data)
		}
		if ct := header.Header.Get("Content-Type"); ct != "image/jpeg" {
			t.Errorf("expected image/jpeg part, got %s", ct)
		}

		json.NewEncoder(w).Encode(FaceResponse{
			FacesCount: 2,
			Faces: []FaceDetection{
				{FaceIndex: 0, Dim: 3, Embedding: []float32{0.1, 0.2, 0.3}},
				{FaceIndex: 1, Dim: 3, Embedding: []float32{0.9, 0.9, 0.9}},
			},
			Model: "buffalo_l",
		})
	})

	emb, err := client.Extract(context.Background(), []byte("\xFF\xD8\xFFimagebytes"))
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if len(emb) != 3 || emb[0] != 0.1 {
		t.Errorf("expected first face embedding, got %v", emb)
	}
}

func TestFaceClient_NoFace(t *testing.T) {
	client := newFaceServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"faces_count":0,"faces":[],"model":"buffalo_l"}`))
	})

	_, err := client.Extract(context.Background(), []byte("img"))
	if !errors.Is(err, ErrNoFace) {
		t.Fatalf("expected ErrNoFace, got %v", err)
	}
}

func TestFaceClient_ServerError(t *testing.T) {
	client := newFaceServer(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not loaded", http.StatusServiceUnavailable)
	})

	_, err := client.Extract(context.Background(), []byte("img"))
	if err == nil {
		t.Fatal("expected error")
	}
	if errors.Is(err, ErrNoFace) {
		t.Error("server errors must not be reported as no face")
	}
	if !strings.Contains(err.Error(), "503") {
		t.Errorf("expected status in error, got %v", err)
	}
}

func TestFaceClient_EmptyEmbedding(t *testing.T) {
	client := newFaceServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"faces_count":1,"faces":[{"face_index":0,"embedding":[]}]}`))
	})

	if _, err := client.Extract(context.Background(), []byte("img")); err == nil {
		t.Fatal("expected error for empty embedding")
	}
}

func TestFaceClient_InvalidJSON(t *testing.T) {
	client := newFaceServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`not json`))
	})

	if _, err := client.ComputeFaceEmbeddings(context.Background(), []byte("img")); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestNewFaceClient_DefaultURL(t *testing.T) {
	c := NewFaceClient("")
	if c.baseURL != defaultEmbeddingURL {
		t.Errorf("expected default URL, got %s", c.baseURL)
	}
}
