// Package contenttype maps asset paths to MIME types via a fixed, ordered
// extension table, and special-cases source-map requests so they never reach
// the cache or the remote origin.
package contenttype

import "strings"

// 常用 MIME 常量，供处理器与测试直接引用。
const (
	JavaScript = "application/javascript"
	JSON       = "application/json"
	HTML       = "text/html"
)

// SourceMapBody 是 .map 请求的合成响应体，避免对源站发起无意义的回源。
const SourceMapBody = "{}"

type mapping struct {
	ext  string
	mime string
}

// table 按固定优先级排列，首个后缀匹配生效。
var table = []mapping{
	{".js", JavaScript},
	{".css", "text/css"},
	{".svg", "image/svg+xml"},
	{".png", "image/png"},
	{".jpg", "image/jpeg"},
	{".gif", "image/gif"},
}

// Resolve 根据路径后缀返回 MIME 类型；无匹配时返回 false，由传输层默认值兜底。
func Resolve(assetPath string) (string, bool) {
	for _, m := range table {
		if strings.HasSuffix(assetPath, m.ext) {
			return m.mime, true
		}
	}
	return "", false
}

// IsSourceMap 判断是否为 source-map 请求，命中时调用方应直接返回 SourceMapBody。
func IsSourceMap(assetPath string) bool {
	return strings.HasSuffix(assetPath, ".map")
}
