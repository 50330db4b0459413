package handlers

import (
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
)

const indexFile = "index.html"

// StaticHandler 兜底路由：从静态目录提供前端打包产物
type StaticHandler struct {
	root string
}

func NewStaticHandler(root string) (*StaticHandler, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	return &StaticHandler{root: abs}, nil
}

// Serve 只处理 GET/HEAD；文件不存在时保持 gin 默认的 404
func (h *StaticHandler) Serve(c *gin.Context) {
	if c.Request.Method != http.MethodGet && c.Request.Method != http.MethodHead {
		c.Header("Allow", "GET, HEAD")
		c.String(http.StatusMethodNotAllowed, "405 method not allowed")
		return
	}

	file, info, ok := h.open(c.Request.URL.Path)
	if !ok {
		return
	}
	defer file.Close()

	// ServeContent 不会把 /index.html 重定向到 /
	http.ServeContent(c.Writer, c.Request, info.Name(), info.ModTime(), file)
}

// open 解析请求路径，目录取其 index.html；越界或不存在返回 false
func (h *StaticHandler) open(urlPath string) (*os.File, os.FileInfo, bool) {
	if strings.ContainsRune(urlPath, 0) {
		return nil, nil, false
	}

	name := filepath.Join(h.root, filepath.FromSlash(path.Clean("/"+urlPath)))
	if name != h.root && !strings.HasPrefix(name, h.root+string(filepath.Separator)) {
		return nil, nil, false
	}

	info, err := os.Stat(name)
	if err != nil {
		return nil, nil, false
	}
	if info.IsDir() {
		name = filepath.Join(name, indexFile)
		if info, err = os.Stat(name); err != nil || info.IsDir() {
			return nil, nil, false
		}
	}

	file, err := os.Open(name)
	if err != nil {
		return nil, nil, false
	}
	return file, info, true
}
