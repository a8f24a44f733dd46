package classifier

import (
	"testing"

	"medkb-go/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifyKnownLabels(t *testing.T) {
	tests := []struct {
		label        string
		wantCategory string
		wantLinked   bool
		wantAudience []string
	}{
		{"AI corpus", CategoryAIDocuments, true, []string{AudienceProfessional}},
		{"Documentos IA", CategoryAIDocuments, true, []string{AudienceProfessional}},
		{"Protocolos", CategoryProtocols, true, []string{AudienceProfessional, AudienceStudent}},
		{"Multimedia", CategoryMultimedia, true, []string{AudienceProfessional, AudienceStudent, AudiencePatient}},
		{"Para estudiantes", CategoryResearch, true, []string{AudienceStudent}},
		{"Informes", CategoryReports, false, []string{AudienceProfessional}},
	}

	for _, tt := range tests {
		t.Run(tt.label, func(t *testing.T) {
			got := Classify(tt.label, "pdf")
			assert.Equal(t, tt.wantCategory, got.Category)
			assert.Equal(t, tt.wantLinked, got.IsLinkedToAI)
			assert.Equal(t, model.StringList(tt.wantAudience), got.Audience)
		})
	}
}

func TestClassifyUnknownLabelFallsBack(t *testing.T) {
	got := Classify("algo inventado", "txt")
	assert.Equal(t, CategoryResearch, got.Category)
	assert.Equal(t, model.StringList{AudienceProfessional}, got.Audience)
}

// 每个规范分类产出的标签集合都必须包含该分类自身的 token。
func TestClassifySeedsCategoryToken(t *testing.T) {
	labels := []string{"AI corpus", "Protocolos", "Multimedia", "Para estudiantes", "Informes", "desconocido"}
	for _, label := range labels {
		got := Classify(label, "pdf")
		require.NotEmpty(t, got.Tags, "label %q", label)
		assert.True(t, got.Tags.Contains(got.Category), "label %q: tags %v 缺少分类 token %q", label, got.Tags, got.Category)
		assert.True(t, got.Keywords.Contains(got.Category), "label %q: keywords %v 缺少分类 token %q", label, got.Keywords, got.Category)
	}
}

func TestClassifyIsDeterministic(t *testing.T) {
	a := Classify("Protocolos", "pdf")
	b := Classify("Protocolos", "pdf")
	assert.Equal(t, a, b)
}

func TestClassifySeedsExtensionTag(t *testing.T) {
	got := Classify("AI corpus", ".PDF")
	assert.True(t, got.Tags.Contains("pdf"))
	assert.True(t, got.Tags.Contains("ai-corpus"))
}

// protocols 与 multimedia 必须被强制关联 AI（跨类目自动规则）。
func TestLinkageRuleTable(t *testing.T) {
	assert.True(t, linkageRules[CategoryProtocols])
	assert.True(t, linkageRules[CategoryMultimedia])
	assert.True(t, linkageRules[CategoryAIDocuments])
	assert.True(t, linkageRules[CategoryResearch])
	assert.False(t, linkageRules[CategoryReports])
}

func TestDeriveRestoresCategoryToken(t *testing.T) {
	doc := &model.KbDocument{
		Category: CategoryProtocols,
		Tags:     model.StringList{"pdf"},
		Keywords: model.StringList{},
	}

	derived := Derive(doc)
	assert.True(t, derived.Tags.Contains(CategoryProtocols))
	assert.True(t, derived.Keywords.Contains(CategoryProtocols))
	assert.True(t, derived.IsLinkedToAI)

	// 幂等：对已修复的信号再推一次不再有变化。
	doc.Tags = derived.Tags
	doc.Keywords = derived.Keywords
	doc.IsLinkedToAI = derived.IsLinkedToAI
	again := Derive(doc)
	assert.Equal(t, derived, again)
}

func TestDeriveResolvesLegacyCategoryFromSignals(t *testing.T) {
	doc := &model.KbDocument{
		Category: "documentos-viejos",
		Tags:     model.StringList{"protocolos", "pdf"},
	}
	derived := Derive(doc)
	assert.Equal(t, CategoryProtocols, derived.Category)
}

func TestImpliesCategory(t *testing.T) {
	assert.True(t, ImpliesCategory(model.StringList{"x", "protocolo"}, CategoryProtocols))
	assert.True(t, ImpliesCategory(model.StringList{"ai-residente"}, CategoryAIDocuments))
	assert.False(t, ImpliesCategory(model.StringList{"pdf"}, CategoryProtocols))
}
