package cache

import (
	"context"
	"errors"
	"io"
	"time"
)

// Store 负责管理镜像缓存的读写。磁盘布局遵循：
//
//	<CacheRoot>/<path>    # URL 路径与文件路径一一对应
//
// 条目在首次成功回源时创建，此后不再更新或失效（无 TTL、无版本）。
type Store interface {
	// Has 是纯粹的存在性检查，不产生任何副作用。
	Has(ctx context.Context, assetPath string) (bool, error)

	// Get 返回一个可流式读取的缓存条目。若不存在则返回 ErrNotFound。
	Get(ctx context.Context, assetPath string) (*ReadResult, error)

	// Put 将回源正文写入缓存，并产出新的 Entry 描述。实现需通过临时文件 + rename
	// 保证写入原子性，并在失败时清理临时文件；中间目录按需创建。
	Put(ctx context.Context, assetPath string, body io.Reader, opts PutOptions) (*Entry, error)
}

// PutOptions 控制写入过程中的可选属性。
type PutOptions struct {
	ModTime time.Time
}

// Entry 表示一次缓存命中结果，包含绝对文件路径及文件信息。
type Entry struct {
	Path      string `json:"path"`
	FilePath  string `json:"file_path"`
	SizeBytes int64  `json:"size_bytes"`
	ModTime   time.Time
}

// ReadResult 组合 Entry 与正文 Reader，便于处理器直接将 Body 流式返回。
type ReadResult struct {
	Entry  Entry
	Reader io.ReadSeekCloser
}

// ErrNotFound 表示缓存不存在。
var ErrNotFound = errors.New("cache entry not found")

// ErrInvalidPath 表示请求路径越出缓存根目录，拒绝触碰文件系统。
var ErrInvalidPath = errors.New("invalid cache path")
