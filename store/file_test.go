package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/bhavanareddy19/cardicarrestnewborn/core"
)

func TestFileStore_RoundTrip(t *testing.T) {
	fs, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore failed: %v", err)
	}
	defer fs.Close()
	ctx := context.Background()

	if err := fs.Set(ctx, "embeddings_train", []byte(`[[0.1,0.2]]`)); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	got, err := fs.Get(ctx, "embeddings_train")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if string(got) != `[[0.1,0.2]]` {
		t.Errorf("Get = %q, want stored payload", got)
	}

	if err := fs.Delete(ctx, "embeddings_train"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := fs.Get(ctx, "embeddings_train"); !core.IsStoreNotFound(err) {
		t.Errorf("Get after Delete = %v, want store not found", err)
	}
	// 重复删除不报错
	if err := fs.Delete(ctx, "embeddings_train"); err != nil {
		t.Errorf("Delete of missing key = %v, want nil", err)
	}
}

func TestFileStore_MissingKeyIsNotFound(t *testing.T) {
	fs, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore failed: %v", err)
	}
	defer fs.Close()

	_, err = fs.Get(context.Background(), "never-set")
	if !core.IsStoreNotFound(err) {
		t.Errorf("Get missing key = %v, want store not found", err)
	}
}

func TestFileStore_SanitizesKeys(t *testing.T) {
	dir := t.TempDir()
	fs, err := NewFileStore(dir)
	if err != nil {
		t.Fatalf("NewFileStore failed: %v", err)
	}
	defer fs.Close()
	ctx := context.Background()

	// 包含分隔符和冒号的 key 不得逃出目录
	key := "emb:bert/base:../escape"
	if err := fs.Set(ctx, key, []byte("v")); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	got, err := fs.Get(ctx, key)
	if err != nil || string(got) != "v" {
		t.Fatalf("Get = %q, %v, want round trip", got, err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir failed: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("store dir has %d entries, want 1", len(entries))
	}
	name := entries[0].Name()
	if filepath.Ext(name) != ".json" {
		t.Errorf("stored file %q, want .json extension", name)
	}
	if entries[0].IsDir() {
		t.Errorf("key %q created a directory, want a flat file", key)
	}
}

func TestFileStore_BatchOps(t *testing.T) {
	fs, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore failed: %v", err)
	}
	defer fs.Close()
	ctx := context.Background()

	kvs := map[string][]byte{
		"embeddings_train": []byte("t"),
		"embeddings_val":   []byte("v"),
	}
	if err := fs.BatchSet(ctx, kvs); err != nil {
		t.Fatalf("BatchSet failed: %v", err)
	}
	hits, err := fs.BatchGet(ctx, []string{"embeddings_train", "embeddings_val", "embeddings_test"})
	if err != nil {
		t.Fatalf("BatchGet failed: %v", err)
	}
	if len(hits) != 2 {
		t.Fatalf("BatchGet returned %d entries, want 2", len(hits))
	}
	for k, want := range kvs {
		if string(hits[k]) != string(want) {
			t.Errorf("BatchGet[%q] = %q, want %q", k, hits[k], want)
		}
	}
}

func TestFileStore_PersistsAcrossInstances(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	first, err := NewFileStore(dir)
	if err != nil {
		t.Fatalf("NewFileStore failed: %v", err)
	}
	if err := first.Set(ctx, "embeddings_train", []byte("persisted")); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	first.Close()

	second, err := NewFileStore(dir)
	if err != nil {
		t.Fatalf("NewFileStore on existing dir failed: %v", err)
	}
	defer second.Close()
	got, err := second.Get(ctx, "embeddings_train")
	if err != nil {
		t.Fatalf("Get from second instance failed: %v", err)
	}
	if string(got) != "persisted" {
		t.Errorf("Get = %q, want %q", got, "persisted")
	}
}

func TestFileStore_EmptyDirIsInvalidConfig(t *testing.T) {
	_, err := NewFileStore("")
	if !core.IsInvalidConfig(err) {
		t.Errorf("NewFileStore(\"\") = %v, want invalid config", err)
	}
}
