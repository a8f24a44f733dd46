// Package model 定义了与数据库表对应的 Go 结构体。
package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// StringList 是以 JSON 形式存储在单列中的字符串集合。
// tags / keywords / target_audience 等字段都使用这种列类型。
type StringList []string

// Value 实现 driver.Valuer，在写库时把集合序列化为 JSON。
func (l StringList) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	b, err := json.Marshal([]string(l))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan 实现 sql.Scanner，在读库时把 JSON 反序列化为集合。
func (l *StringList) Scan(value interface{}) error {
	if value == nil {
		*l = StringList{}
		return nil
	}
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("无法将 %T 扫描为 StringList", value)
	}
	if len(data) == 0 {
		*l = StringList{}
		return nil
	}
	return json.Unmarshal(data, (*[]string)(l))
}

// Contains 判断集合是否包含指定元素。
func (l StringList) Contains(s string) bool {
	for _, v := range l {
		if v == s {
			return true
		}
	}
	return false
}

// Equal 按元素顺序比较两个集合。
func (l StringList) Equal(other StringList) bool {
	if len(l) != len(other) {
		return false
	}
	for i := range l {
		if l[i] != other[i] {
			return false
		}
	}
	return true
}

// KbDocument 对应于数据库中的 kb_documents 表，是知识库的基本单元。
type KbDocument struct {
	ID             string     `gorm:"type:varchar(36);primaryKey" json:"id"`
	Title          string     `gorm:"type:varchar(255);not null" json:"title"`
	Content        string     `gorm:"type:longtext" json:"content"`
	Summary        string     `gorm:"type:varchar(512)" json:"summary"`
	FileType       string     `gorm:"type:varchar(20);index" json:"fileType"`
	FileURL        string     `gorm:"type:text" json:"fileUrl"`
	ObjectName     string     `gorm:"type:varchar(512)" json:"-"` // 对象存储中的键，指针过期后凭它重新签发
	FileSize       int64      `json:"fileSize"`
	Author         string     `gorm:"type:varchar(100)" json:"author"`
	Category       string     `gorm:"type:varchar(50);index" json:"category"`
	TargetAudience StringList `gorm:"type:json" json:"targetAudience"`
	Tags           StringList `gorm:"type:json" json:"tags"`
	Keywords       StringList `gorm:"type:json" json:"keywords"`
	IsLinkedToAI   bool       `gorm:"not null;default:false;index" json:"isLinkedToAI"`
	AIRelevance    int        `gorm:"not null;default:0" json:"aiRelevance"`
	Downloads      int64      `gorm:"not null;default:0" json:"downloads"`
	IngestID       string     `gorm:"type:varchar(36);index" json:"-"` // 摄取流水线分配的关联 ID，用于可见性确认
	CreatedAt      time.Time  `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt      time.Time  `gorm:"autoUpdateTime" json:"-"`
}

// TableName 指定了此模型在数据库中对应的表名。
func (KbDocument) TableName() string {
	return "kb_documents"
}

// ClassificationSignals 把一个文档的全部分类信号聚合为一个值对象。
// tags 和 keywords 是两个语义上重叠的冗余集合，这是从原系统沿用的
// 模式；对账任务是维持两者一致的唯一写入方。
type ClassificationSignals struct {
	Category     string
	Audience     StringList
	Tags         StringList
	Keywords     StringList
	IsLinkedToAI bool
}

// SignalsOf 读取文档当前存储的分类信号。
func SignalsOf(doc *KbDocument) ClassificationSignals {
	return ClassificationSignals{
		Category:     doc.Category,
		Audience:     doc.TargetAudience,
		Tags:         doc.Tags,
		Keywords:     doc.Keywords,
		IsLinkedToAI: doc.IsLinkedToAI,
	}
}
