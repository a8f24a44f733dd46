// Package storage 提供了与对象存储服务（如 MinIO）交互的功能。
// 对知识库而言，这里是 Store Adapter 的"原始字节"一半：
// 写入对象、生成带有效期的预签名指针、尽力删除。
package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/url"
	"time"

	"medkb-go/internal/config"
	"medkb-go/pkg/log"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinioClient 是一个全局的 MinIO 客户端实例。
var MinioClient *minio.Client

// Store 封装了针对知识库存储桶的对象操作。
type Store struct {
	client *minio.Client
	bucket string
}

// InitMinIO 初始化 MinIO 客户端并确保指定的存储桶存在，返回针对该桶的 Store。
func InitMinIO(cfg config.MinIOConfig) *Store {
	var err error

	MinioClient, err = minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		log.Fatal("初始化 MinIO 客户端失败", err)
	}

	log.Info("MinIO 客户端初始化成功")

	// 检查存储桶是否存在，如果不存在则创建
	ctx := context.Background()
	exists, err := MinioClient.BucketExists(ctx, cfg.BucketName)
	if err != nil {
		log.Fatal("检查 MinIO 存储桶失败", err)
	}

	if !exists {
		log.Infof("存储桶 '%s' 不存在，正在创建...", cfg.BucketName)
		if err := MinioClient.MakeBucket(ctx, cfg.BucketName, minio.MakeBucketOptions{}); err != nil {
			log.Fatal("创建 MinIO 存储桶失败", err)
		}
		log.Infof("存储桶 '%s' 创建成功", cfg.BucketName)
	} else {
		log.Infof("存储桶 '%s' 已存在", cfg.BucketName)
	}

	return &Store{client: MinioClient, bucket: cfg.BucketName}
}

// Put 将原始字节写入对象存储，返回对象名。
func (s *Store) Put(ctx context.Context, objectName string, data []byte, contentType string) (string, error) {
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	_, err := s.client.PutObject(ctx, s.bucket, objectName, bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return "", fmt.Errorf("写入对象 '%s' 失败: %w", objectName, err)
	}
	return objectName, nil
}

// PresignedURL 为对象生成一个带有效期的预签名下载链接。
// 链接会过期，调用方必须能够凭对象名重新生成，而不是假设指针永久有效。
func (s *Store) PresignedURL(ctx context.Context, objectName string, expiry time.Duration) (string, error) {
	presignedURL, err := s.client.PresignedGetObject(ctx, s.bucket, objectName, expiry, url.Values{})
	if err != nil {
		log.Errorf("生成预签名链接失败, object: %s, error: %v", objectName, err)
		return "", err
	}
	return presignedURL.String(), nil
}

// Get 读取对象的全部内容。
func (s *Store) Get(ctx context.Context, objectName string) ([]byte, error) {
	object, err := s.client.GetObject(ctx, s.bucket, objectName, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("读取对象 '%s' 失败: %w", objectName, err)
	}
	defer object.Close()

	buf := new(bytes.Buffer)
	if _, err := io.Copy(buf, object); err != nil {
		return nil, fmt.Errorf("读取对象流 '%s' 失败: %w", objectName, err)
	}
	return buf.Bytes(), nil
}

// Remove 删除一个对象。对象不存在不视为错误（尽力而为的删除语义）。
func (s *Store) Remove(ctx context.Context, objectName string) error {
	return s.client.RemoveObject(ctx, s.bucket, objectName, minio.RemoveObjectOptions{})
}
