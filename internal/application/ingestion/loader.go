package ingestion

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ledongthuc/pdf"
)

// supportedExtensions 库目录扫描时识别的扩展名。
var supportedExtensions = map[string]bool{
	".pdf": true,
	".txt": true,
	".md":  true,
}

// RawDocument 从磁盘装载的原始文档。
type RawDocument struct {
	Filename  string
	FileHash  string
	PageCount int
	Pages     []PageText
}

// Loader 从 SOP 库目录装载文档。
type Loader struct {
	libraryDir string
}

// NewLoader 创建文档装载器
func NewLoader(libraryDir string) *Loader {
	return &Loader{libraryDir: libraryDir}
}

// LibraryDir 返回库目录
func (l *Loader) LibraryDir() string {
	return l.libraryDir
}

// ListLibrary 列出库目录下全部受支持的文档，按文件名排序。
func (l *Loader) ListLibrary() ([]string, error) {
	entries, err := os.ReadDir(l.libraryDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read library dir %s: %w", l.libraryDir, err)
	}
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if supportedExtensions[strings.ToLower(filepath.Ext(e.Name()))] {
			out = append(out, filepath.Join(l.libraryDir, e.Name()))
		}
	}
	sort.Strings(out)
	return out, nil
}

// Load 装载单个文档并按页提取文本。
func (l *Loader) Load(path string) (*RawDocument, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	sum := sha256.Sum256(data)

	doc := &RawDocument{
		Filename: filepath.Base(path),
		FileHash: hex.EncodeToString(sum[:]),
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		pages, err := extractPDFPages(path)
		if err != nil {
			return nil, err
		}
		doc.Pages = pages
	case ".txt", ".md":
		doc.Pages = []PageText{{Number: 1, Text: string(data)}}
	default:
		return nil, fmt.Errorf("unsupported file type: %s", path)
	}

	doc.PageCount = len(doc.Pages)
	return doc, nil
}

func extractPDFPages(path string) ([]PageText, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open pdf %s: %w", path, err)
	}
	defer f.Close()

	total := r.NumPage()
	pages := make([]PageText, 0, total)
	for num := 1; num <= total; num++ {
		p := r.Page(num)
		if p.V.IsNull() {
			continue
		}
		text, err := p.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("failed to extract page %d of %s: %w", num, path, err)
		}
		pages = append(pages, PageText{Number: num, Text: text})
	}
	return pages, nil
}
