// Package extractor 负责把上传的原始文件变成纯文本。
// 支持 PDF（逐页解析）与纯文本；其余类型（图片、视频、未知二进制）
// 约定返回空字符串，这不是错误，而是文档化的行为。
// 提取永远不会让摄取流程中断：页级失败跳过该页，整个文档打不开
// 则降级为固定的占位文本。
package extractor

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"

	"medkb-go/pkg/log"

	"github.com/ledongthuc/pdf"
)

const (
	// DefaultMaxPages 是 PDF 逐页解析的页数上限，用于限制延迟。
	DefaultMaxPages = 50
	// DefaultMaxChars 是提取结果的字符上限。边累积边截断，
	// 到达上限即停止读页，而不是事后截断，以限制内存。
	DefaultMaxChars = 100000
	// Placeholder 是整个文档无法打开时的降级占位文本。
	Placeholder = "[document content could not be extracted]"
)

var spaceRe = regexp.MustCompile(`\s+`)

// 被识别为纯文本的类型 token。
var textKinds = map[string]bool{
	"txt": true, "text": true, "md": true, "markdown": true, "csv": true,
}

// Extractor 封装了文本提取的上限参数。
type Extractor struct {
	MaxPages int
	MaxChars int
}

// New 创建一个 Extractor；非正的上限参数回退为默认值。
func New(maxPages, maxChars int) *Extractor {
	if maxPages <= 0 {
		maxPages = DefaultMaxPages
	}
	if maxChars <= 0 {
		maxChars = DefaultMaxChars
	}
	return &Extractor{MaxPages: maxPages, MaxChars: maxChars}
}

// Extract 根据声明的类型提取纯文本。
//   - PDF：逐页解析，页间以页标记分隔，归一化页内空白；
//   - 纯文本：原样返回解码内容；
//   - 其他类型：返回空字符串。
func (e *Extractor) Extract(data []byte, fileName, declaredKind string) string {
	kind := normalizeKind(fileName, declaredKind)

	switch {
	case kind == "pdf":
		return e.extractPDF(data, fileName)
	case textKinds[kind]:
		return string(data)
	default:
		return ""
	}
}

// pageSource 抽象了"按页取文本"的来源，便于在不构造真实 PDF 的
// 情况下验证页数上限与页级失败跳过的行为。
type pageSource interface {
	NumPage() int
	PageText(i int) (string, error)
}

// extractPDF 打开 PDF 并走逐页提取；打不开时降级为占位文本。
func (e *Extractor) extractPDF(data []byte, fileName string) string {
	src, err := openPDF(data)
	if err != nil {
		log.Warnf("[Extractor] 无法打开 PDF 文档, file: %s, error: %v", fileName, err)
		return Placeholder
	}
	return e.walkPages(src, fileName)
}

// walkPages 按页累积文本：至多 MaxPages 页，累积到 MaxChars 即停。
// 单页解析失败被捕获并跳过，部分提取是可接受的结果。
func (e *Extractor) walkPages(src pageSource, fileName string) string {
	var sb strings.Builder
	chars := 0

	total := src.NumPage()
	if total > e.MaxPages {
		total = e.MaxPages
	}

	for i := 1; i <= total; i++ {
		text, err := pageTextSafe(src, i)
		if err != nil {
			log.Warnf("[Extractor] 第 %d 页解析失败，跳过, file: %s, error: %v", i, fileName, err)
			continue
		}
		text = spaceRe.ReplaceAllString(strings.TrimSpace(text), " ")
		if text == "" {
			continue
		}

		segment := text
		if sb.Len() > 0 {
			segment = fmt.Sprintf("\n\n--- page %d ---\n\n", i) + text
		}

		remaining := e.MaxChars - chars
		runes := []rune(segment)
		if len(runes) >= remaining {
			sb.WriteString(string(runes[:remaining]))
			return sb.String()
		}
		sb.WriteString(segment)
		chars += len(runes)
	}

	return sb.String()
}

// pageTextSafe 提取单页文本，把底层库可能的 panic 收敛为错误。
func pageTextSafe(src pageSource, i int) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("页解析 panic: %v", r)
		}
	}()
	return src.PageText(i)
}

// pdfSource 把 *pdf.Reader 适配为 pageSource。
type pdfSource struct {
	reader *pdf.Reader
}

func (s *pdfSource) NumPage() int {
	return s.reader.NumPage()
}

func (s *pdfSource) PageText(i int) (string, error) {
	page := s.reader.Page(i)
	if page.V.IsNull() {
		return "", fmt.Errorf("第 %d 页为空", i)
	}
	return page.GetPlainText(nil)
}

// openPDF 打开 PDF 字节流；解析器的 panic 同样收敛为错误。
func openPDF(data []byte) (src pageSource, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("PDF 解析 panic: %v", r)
		}
	}()
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, err
	}
	return &pdfSource{reader: reader}, nil
}

// normalizeKind 归一化类型 token：优先使用声明类型，为空时退回
// 文件名后缀。
func normalizeKind(fileName, declaredKind string) string {
	kind := strings.ToLower(strings.TrimSpace(declaredKind))
	kind = strings.TrimPrefix(kind, ".")
	if kind == "" {
		if idx := strings.LastIndex(fileName, "."); idx >= 0 {
			kind = strings.ToLower(fileName[idx+1:])
		}
	}
	return kind
}
