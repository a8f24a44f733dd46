// Package main 是应用程序的入口点。
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"medkb-go/internal/config"
	"medkb-go/internal/extractor"
	"medkb-go/internal/handler"
	"medkb-go/internal/kbcache"
	"medkb-go/internal/middleware"
	"medkb-go/internal/model"
	"medkb-go/internal/pipeline"
	"medkb-go/internal/query"
	"medkb-go/internal/repository"
	"medkb-go/internal/service"
	"medkb-go/pkg/database"
	"medkb-go/pkg/embedding"
	"medkb-go/pkg/es"
	"medkb-go/pkg/kafka"
	"medkb-go/pkg/log"
	"medkb-go/pkg/storage"

	"github.com/gin-gonic/gin"
)

func main() {
	// 1. 初始化配置
	config.Init("./configs/config.yaml")
	cfg := config.Conf

	// 2. 初始化日志记录器
	log.Init(cfg.Log.Level, cfg.Log.Format, cfg.Log.OutputPath)
	defer log.Sync() // 确保在程序退出时刷新所有缓冲的日志条目
	log.Info("日志记录器初始化成功")

	// 3. 初始化数据库、Redis 与对象存储
	database.InitMySQL(cfg.Database.MySQL.DSN)
	database.AutoMigrate(&model.KbDocument{})
	database.InitRedis(cfg.Database.Redis.Addr, cfg.Database.Redis.Password, cfg.Database.Redis.DB)
	store := storage.InitMinIO(cfg.MinIO)

	// 4. 初始化语义检索后端（可选）
	var indexer pipeline.Indexer
	var embeddingClient embedding.Client
	var ranker query.Ranker
	if cfg.Embedding.Enabled {
		embeddingClient = embedding.NewClient(cfg.Embedding)
	}
	if cfg.Elasticsearch.Enabled {
		if err := es.InitES(cfg.Elasticsearch, cfg.Embedding.Dimensions); err != nil {
			log.Errorf("es 初始化失败 %s", err)
			return
		}
		indexer = es.NewKbIndexer(cfg.Elasticsearch.IndexName)
		ranker = query.NewEsRanker(cfg.Elasticsearch.IndexName, embeddingClient, 20)
	}

	kafka.InitProducer(cfg.Kafka)

	// 5. 初始化 Repository 与语料缓存
	docRepo := repository.NewKbDocumentRepository(database.DB)
	corpusCache := kbcache.New(docRepo, database.RDB, cfg.Knowledge.CacheTTL())

	// 6. 初始化摄取流水线与 Service (依赖注入)
	ext := extractor.New(cfg.Knowledge.ExtractMaxPages, cfg.Knowledge.ExtractMaxChars)
	processor := pipeline.NewProcessor(docRepo, store, corpusCache, ext, embeddingClient, indexer, cfg.Knowledge)

	engine := query.NewEngine(ranker)
	docService := service.NewDocumentService(docRepo, corpusCache, engine, store, indexer, cfg.Knowledge)
	reconcileService := service.NewReconcileService(docRepo, corpusCache)
	ingestService := service.NewIngestService(processor, docRepo, kafka.ProduceTask)
	taskService := service.NewTaskService(docRepo, reconcileService)

	// 7. 启动后台 Kafka 消费者
	go kafka.StartConsumer(cfg.Kafka, taskService)

	// 7.1 初始化导入 seed 目录：通过标准摄取流程导入（幂等，已存在则跳过）
	seedCtx, cancelSeed := context.WithCancel(context.Background())
	defer cancelSeed()
	if cfg.Knowledge.SeedDir != "" {
		go ingestService.SeedImport(seedCtx, cfg.Knowledge.SeedDir)
	}

	// 8. 设置 Gin 模式并创建路由引擎
	gin.SetMode(cfg.Server.Mode)
	r := gin.New() // 使用 New() 创建一个不带默认中间件的引擎
	r.Use(middleware.RequestLogger(), gin.Recovery())

	// 9. 注册路由
	apiV1 := r.Group("/api/v1")
	{
		documents := apiV1.Group("/documents")
		{
			documents.POST("/upload", handler.NewUploadHandler(ingestService).Upload)
			documents.GET("/stats", handler.NewDocumentHandler(docService).Stats)
			documents.PUT("/:id/ai-link", handler.NewDocumentHandler(docService).LinkToAI)
			documents.DELETE("/:id/ai-link", handler.NewDocumentHandler(docService).UnlinkFromAI)
			documents.POST("/:id/downloads", handler.NewDocumentHandler(docService).IncrementDownload)
			documents.GET("/:id/download", handler.NewDocumentHandler(docService).GenerateDownloadURL)
			documents.DELETE("/:id", handler.NewDocumentHandler(docService).DeleteDocument)
		}

		search := apiV1.Group("/search")
		{
			search.GET("", handler.NewSearchHandler(docService).Search)
		}

		admin := apiV1.Group("/admin")
		{
			admin.POST("/reconcile", handler.NewAdminHandler(reconcileService, kafka.ProduceTask).Reconcile)
		}
	}

	// 启动 HTTP 服务器并实现优雅停机
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: r,
	}

	go func() {
		log.Infof("服务启动于 %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP 服务监听失败: %s\n", err)
		}
	}()

	// 等待中断信号以实现优雅停机
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("接收到停机信号，正在关闭服务...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("HTTP 服务器关闭失败: %v", err)
	}

	// Kafka 消费者是一个循环，会在进程退出时自然结束；
	// 需要更精细的控制时可以在 StartConsumer 中加关闭通道。
	log.Info("服务已优雅关闭")
}
