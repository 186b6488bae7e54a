package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/bhavanareddy19/cardicarrestnewborn/core"
)

// FileStore 把每个 key 存成目录下的一个 JSON 文件。
// 用于分区级嵌入缓存（<dir>/embeddings_<partition>.json）等
// 少量大对象的本地持久化；TTL 参数被忽略。
type FileStore struct {
	dir string
}

// NewFileStore 创建文件存储，目录不存在时自动创建。
func NewFileStore(dir string) (*FileStore, error) {
	if dir == "" {
		return nil, core.NewDomainError(core.ModuleStore, core.ErrorCodeInvalidConfig,
			"store: file store needs a directory")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create store dir: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

var _ core.Store = (*FileStore)(nil)

func (f *FileStore) Name() string { return "file:" + f.dir }

// path 把 key 映射为目录内的文件名，非法字符替换为下划线。
func (f *FileStore) path(key string) string {
	cleaned := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '.' || r == '-' || r == '_':
			return r
		default:
			return '_'
		}
	}, key)
	return filepath.Join(f.dir, cleaned+".json")
}

func (f *FileStore) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := os.ReadFile(f.path(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, core.ErrStoreNotFound
		}
		return nil, fmt.Errorf("read %s: %w", key, err)
	}
	return data, nil
}

func (f *FileStore) Set(ctx context.Context, key string, value []byte, ttl ...int) error {
	if err := os.WriteFile(f.path(key), value, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", key, err)
	}
	return nil
}

func (f *FileStore) Delete(ctx context.Context, key string) error {
	if err := os.Remove(f.path(key)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}

func (f *FileStore) BatchGet(ctx context.Context, keys []string) (map[string][]byte, error) {
	result := make(map[string][]byte, len(keys))
	for _, k := range keys {
		data, err := f.Get(ctx, k)
		if err != nil {
			if core.IsStoreNotFound(err) {
				continue
			}
			return nil, err
		}
		result[k] = data
	}
	return result, nil
}

func (f *FileStore) BatchSet(ctx context.Context, kvs map[string][]byte, ttl ...int) error {
	for k, v := range kvs {
		if err := f.Set(ctx, k, v, ttl...); err != nil {
			return err
		}
	}
	return nil
}

func (f *FileStore) Close() error { return nil }
