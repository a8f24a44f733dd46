package extractor

import (
	"fmt"
	"strings"
	"testing"

	"medkb-go/pkg/log"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	log.InitDefault()
	m.Run()
}

// fakePages 以固定文本模拟一个按页取文本的来源。
type fakePages struct {
	pages   []string
	failAt  map[int]bool
	panicAt map[int]bool
}

func (f *fakePages) NumPage() int { return len(f.pages) }

func (f *fakePages) PageText(i int) (string, error) {
	if f.panicAt[i] {
		panic("corrupt page object")
	}
	if f.failAt[i] {
		return "", fmt.Errorf("page %d broken", i)
	}
	return f.pages[i-1], nil
}

func TestExtractUnsupportedKindsReturnEmpty(t *testing.T) {
	e := New(0, 0)
	for _, kind := range []string{"image", "png", "jpg", "video", "mp4", "bin", "exe", ""} {
		assert.NotPanics(t, func() {
			got := e.Extract([]byte{0x00, 0x01, 0xff}, "archivo", kind)
			assert.Empty(t, got, "kind %q", kind)
		})
	}
}

func TestExtractPlainTextUnmodified(t *testing.T) {
	e := New(0, 0)
	raw := "línea uno\nlínea dos\n"
	assert.Equal(t, raw, e.Extract([]byte(raw), "notas.txt", "txt"))
	// 声明类型为空时退回文件名后缀
	assert.Equal(t, raw, e.Extract([]byte(raw), "notas.md", ""))
}

func TestExtractMalformedPDFReturnsPlaceholder(t *testing.T) {
	e := New(0, 0)
	got := e.Extract([]byte("definitivamente no es un pdf"), "roto.pdf", "pdf")
	assert.Equal(t, Placeholder, got)
}

// 超过页数上限的页绝不应出现在结果里。
func TestWalkPagesHonorsPageCap(t *testing.T) {
	pages := make([]string, 60)
	for i := range pages {
		pages[i] = fmt.Sprintf("pagetext%02d", i+1)
	}
	e := New(50, 0)

	got := e.walkPages(&fakePages{pages: pages}, "grande.pdf")
	assert.Contains(t, got, "pagetext50")
	assert.NotContains(t, got, "pagetext51")
}

func TestWalkPagesSkipsFailingPages(t *testing.T) {
	src := &fakePages{
		pages:   []string{"uno", "dos", "tres"},
		failAt:  map[int]bool{2: true},
		panicAt: map[int]bool{},
	}
	e := New(0, 0)
	got := e.walkPages(src, "parcial.pdf")
	assert.Contains(t, got, "uno")
	assert.NotContains(t, got, "dos")
	assert.Contains(t, got, "tres")
}

func TestWalkPagesRecoversFromPagePanic(t *testing.T) {
	src := &fakePages{
		pages:   []string{"uno", "dos"},
		panicAt: map[int]bool{1: true},
	}
	e := New(0, 0)
	var got string
	require.NotPanics(t, func() { got = e.walkPages(src, "panico.pdf") })
	assert.Contains(t, got, "dos")
}

// 字符上限是边累积边截断：命中上限后不再读后续页。
func TestWalkPagesAccumulateAndStop(t *testing.T) {
	src := &fakePages{pages: []string{
		strings.Repeat("a", 40),
		strings.Repeat("b", 40),
		strings.Repeat("c", 40),
	}}
	e := New(0, 60)
	got := e.walkPages(src, "limite.pdf")

	runes := []rune(got)
	assert.Len(t, runes, 60)
	assert.NotContains(t, got, "c")
}

func TestWalkPagesNormalizesWhitespace(t *testing.T) {
	src := &fakePages{pages: []string{"  hola \t\n  mundo  "}}
	e := New(0, 0)
	assert.Equal(t, "hola mundo", e.walkPages(src, "ws.pdf"))
}

func TestWalkPagesInsertsPageMarkers(t *testing.T) {
	src := &fakePages{pages: []string{"uno", "dos"}}
	e := New(0, 0)
	got := e.walkPages(src, "marcas.pdf")
	assert.Contains(t, got, "--- page 2 ---")
}
