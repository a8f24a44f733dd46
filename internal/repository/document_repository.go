// Package repository 定义了与数据库进行数据交换的接口和实现。
package repository

import (
	"errors"
	"fmt"

	"medkb-go/internal/model"

	"gorm.io/gorm"
)

// KbDocumentRepository 接口定义了知识库文档记录的持久化操作。
// 这是 Store Adapter 的"记录"一半；ListAll 允许滞后于最近的写入
// （最终一致是这个边界被接受的属性，不是缺陷），摄取流水线
// 据此做可见性确认。
type KbDocumentRepository interface {
	Create(doc *model.KbDocument) error
	Update(id string, fields map[string]interface{}) error
	FindByID(id string) (*model.KbDocument, error)
	ListAll() ([]model.KbDocument, error)
	Delete(id string) error
	IncrementDownloads(id string) error
}

// kbDocumentRepository 是 KbDocumentRepository 接口的 GORM 实现。
type kbDocumentRepository struct {
	db *gorm.DB
}

// NewKbDocumentRepository 创建一个新的 KbDocumentRepository 实例。
func NewKbDocumentRepository(db *gorm.DB) KbDocumentRepository {
	return &kbDocumentRepository{db: db}
}

// Create 在数据库中创建一条新的文档记录。单行插入是原子的：
// 事后要么整条记录存在，要么完全不存在。
func (r *kbDocumentRepository) Create(doc *model.KbDocument) error {
	return r.db.Create(doc).Error
}

// Update 对指定文档做部分字段更新。
func (r *kbDocumentRepository) Update(id string, fields map[string]interface{}) error {
	result := r.db.Model(&model.KbDocument{}).Where("id = ?", id).Updates(fields)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("文档不存在: %s", id)
	}
	return nil
}

// FindByID 根据 ID 检索单条文档记录。
func (r *kbDocumentRepository) FindByID(id string) (*model.KbDocument, error) {
	var doc model.KbDocument
	if err := r.db.Where("id = ?", id).First(&doc).Error; err != nil {
		return nil, err
	}
	return &doc, nil
}

// ListAll 读取整个语料，按创建时间倒序。
func (r *kbDocumentRepository) ListAll() ([]model.KbDocument, error) {
	var docs []model.KbDocument
	err := r.db.Order("created_at desc").Find(&docs).Error
	return docs, err
}

// Delete 删除一条文档记录。记录不存在不视为错误。
func (r *kbDocumentRepository) Delete(id string) error {
	err := r.db.Where("id = ?", id).Delete(&model.KbDocument{}).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil
	}
	return err
}

// IncrementDownloads 原子地将下载计数加一。
func (r *kbDocumentRepository) IncrementDownloads(id string) error {
	return r.db.Model(&model.KbDocument{}).Where("id = ?", id).
		UpdateColumn("downloads", gorm.Expr("downloads + 1")).Error
}
