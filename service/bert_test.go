package service

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bhavanareddy19/cardicarrestnewborn/core"
	"github.com/bhavanareddy19/cardicarrestnewborn/feature"
)

// vecFor 从文本内容确定性地派生一个向量，服务端与断言共用。
func vecFor(text string, dim int) []float64 {
	base := 0
	for _, b := range []byte(text) {
		base += int(b)
	}
	vec := make([]float64, dim)
	for j := range vec {
		vec[j] = float64(base + j)
	}
	return vec
}

// newEmbedServer 起一个按 vecFor 回答的推理端点。
func newEmbedServer(t *testing.T, model string, dim int, requests *int32) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/predictions/"+model {
			t.Errorf("unexpected path %s", r.URL.Path)
			http.NotFound(w, r)
			return
		}
		if requests != nil {
			atomic.AddInt32(requests, 1)
		}
		var req embedRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if req.MaxLength <= 0 {
			t.Errorf("request missing max_length, got %d", req.MaxLength)
		}
		resp := embedResponse{Embeddings: make([][]float64, len(req.Texts))}
		for i, text := range req.Texts {
			resp.Embeddings[i] = vecFor(text, dim)
		}
		json.NewEncoder(w).Encode(resp)
	}))
}

func TestBERTEncoder_EmbedTexts_BatchesAndKeepsRowOrder(t *testing.T) {
	var requests int32
	srv := newEmbedServer(t, "clinical_bert", 4, &requests)
	defer srv.Close()

	enc := NewBERTEncoder(srv.URL,
		WithModelName("clinical_bert"),
		WithDimension(4),
		WithBatchSize(2),
		WithParallel(2),
	)
	texts := []string{"case 0", "case 1", "case 2", "case 3", "case 4"}
	out, err := enc.EmbedTexts(context.Background(), texts)
	if err != nil {
		t.Fatalf("EmbedTexts: %v", err)
	}

	rows, cols := out.Dims()
	if rows != 5 || cols != 4 {
		t.Fatalf("output dims = %dx%d, want 5x4", rows, cols)
	}
	// 批次并发完成顺序不定，行必须按输入顺序重组
	for i, text := range texts {
		want := vecFor(text, 4)
		for j := range want {
			if out.At(i, j) != want[j] {
				t.Fatalf("row %d col %d = %v, want %v (text %q)", i, j, out.At(i, j), want[j], text)
			}
		}
	}
	if got := atomic.LoadInt32(&requests); got != 3 {
		t.Errorf("server saw %d requests, want 3 batches for 5 texts at batch size 2", got)
	}
}

func TestBERTEncoder_EmbedRecords_TemplatesNarratives(t *testing.T) {
	var mu sync.Mutex
	var received []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req embedRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		mu.Lock()
		received = append(received, req.Texts...)
		mu.Unlock()
		resp := embedResponse{Embeddings: make([][]float64, len(req.Texts))}
		for i, text := range req.Texts {
			resp.Embeddings[i] = vecFor(text, 3)
		}
		json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	records := []core.Record{
		{Index: 0, Values: map[string]string{"BirthWeight": "WeightTooLow", "SkinTinge": "Bluish"}},
		{Index: 1, Values: map[string]string{"BirthWeight": "NormalWeight", "SkinTinge": "NotBluish"}},
	}
	enc := NewBERTEncoder(srv.URL, WithDimension(3))
	out, err := enc.EmbedRecords(context.Background(), records)
	if err != nil {
		t.Fatalf("EmbedRecords: %v", err)
	}

	want := feature.ClinicalNarratives(records)
	mu.Lock()
	defer mu.Unlock()
	if len(received) != len(want) {
		t.Fatalf("server received %d texts, want %d", len(received), len(want))
	}
	for i := range want {
		if received[i] != want[i] {
			t.Errorf("text %d = %q, want narrative %q", i, received[i], want[i])
		}
	}
	if r, c := out.Dims(); r != 2 || c != 3 {
		t.Fatalf("output dims = %dx%d, want 2x3", r, c)
	}
}

func TestBERTEncoder_ErrorMapping(t *testing.T) {
	t.Run("server error is unavailable", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "model not loaded", http.StatusInternalServerError)
		}))
		defer srv.Close()
		enc := NewBERTEncoder(srv.URL, WithDimension(3))
		_, err := enc.EmbedTexts(context.Background(), []string{"case"})
		if !core.IsUnavailable(err) {
			t.Fatalf("expected UNAVAILABLE for status 500, got %v", err)
		}
	})

	t.Run("unreachable endpoint is unavailable", func(t *testing.T) {
		srv := httptest.NewServer(http.NotFoundHandler())
		url := srv.URL
		srv.Close()
		enc := NewBERTEncoder(url, WithDimension(3), WithTimeout(time.Second))
		_, err := enc.EmbedTexts(context.Background(), []string{"case"})
		if !core.IsUnavailable(err) {
			t.Fatalf("expected UNAVAILABLE for closed endpoint, got %v", err)
		}
	})

	t.Run("row count mismatch is internal", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(embedResponse{Embeddings: [][]float64{{1, 2, 3}}})
		}))
		defer srv.Close()
		enc := NewBERTEncoder(srv.URL, WithDimension(3))
		_, err := enc.EmbedTexts(context.Background(), []string{"a", "b"})
		de := core.GetDomainError(err)
		if de == nil || de.Code != core.ErrorCodeInternalError {
			t.Fatalf("expected INTERNAL_ERROR for row mismatch, got %v", err)
		}
	})

	t.Run("width mismatch is internal", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(embedResponse{Embeddings: [][]float64{{1, 2}}})
		}))
		defer srv.Close()
		enc := NewBERTEncoder(srv.URL, WithDimension(3))
		_, err := enc.EmbedTexts(context.Background(), []string{"a"})
		de := core.GetDomainError(err)
		if de == nil || de.Code != core.ErrorCodeInternalError {
			t.Fatalf("expected INTERNAL_ERROR for width mismatch, got %v", err)
		}
	})

	t.Run("no texts is missing input", func(t *testing.T) {
		enc := NewBERTEncoder("http://invalid", WithDimension(3))
		_, err := enc.EmbedTexts(context.Background(), nil)
		if !core.IsMissingInput(err) {
			t.Fatalf("expected MISSING_INPUT for empty text list, got %v", err)
		}
	})
}

func TestBERTEncoder_HealthAndAuth(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/ping" {
			http.NotFound(w, r)
			return
		}
		if got := r.Header.Get("Authorization"); got != "Bearer tok" {
			t.Errorf("Authorization header = %q, want bearer token", got)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	enc := NewBERTEncoder(srv.URL, WithAuth(&AuthConfig{Type: "bearer", Token: "tok"}))
	if err := enc.Health(context.Background()); err != nil {
		t.Fatalf("Health: %v", err)
	}

	down := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "draining", http.StatusServiceUnavailable)
	}))
	defer down.Close()
	if err := NewBERTEncoder(down.URL).Health(context.Background()); !core.IsUnavailable(err) {
		t.Fatalf("expected UNAVAILABLE from failing health check, got %v", err)
	}
}

func TestBERTEncoder_Defaults(t *testing.T) {
	enc := NewBERTEncoder("http://localhost:8080/")
	if enc.Endpoint != "http://localhost:8080" {
		t.Errorf("endpoint not trimmed: %q", enc.Endpoint)
	}
	if enc.Dim != core.DefaultEmbeddingDim {
		t.Errorf("default dim = %d, want %d", enc.Dim, core.DefaultEmbeddingDim)
	}
	if enc.BatchSize != DefaultBatchSize || enc.Parallel != DefaultParallel {
		t.Errorf("defaults = batch %d parallel %d, want %d/%d",
			enc.BatchSize, enc.Parallel, DefaultBatchSize, DefaultParallel)
	}
	if enc.MaxLength != DefaultMaxLength {
		t.Errorf("default max length = %d, want %d", enc.MaxLength, DefaultMaxLength)
	}
	if enc.Name() != "bert:"+defaultModelName {
		t.Errorf("Name() = %q", enc.Name())
	}
	if enc.Dimension() != core.DefaultEmbeddingDim {
		t.Errorf("Dimension() = %d", enc.Dimension())
	}
}
