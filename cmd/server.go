/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mautops/pickup-gin/internal/api"
	"github.com/mautops/pickup-gin/internal/auth"
	"github.com/mautops/pickup-gin/internal/config"
	"github.com/mautops/pickup-gin/internal/container"
	"github.com/spf13/cobra"
)

// serverCmd represents the server command
var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Start the API server",
	Long: `Start the Pickup Gin API server.
The server will listen on the configured host and port,
provide REST API interfaces for task and container management,
and run the daily task scheduler in the background.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		// 1. 加载配置
		configPath, _ := cmd.Flags().GetString("config")
		cfg, err := config.Load(configPath)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		// 2. 初始化容器
		ctr, err := container.NewContainer(cfg)
		if err != nil {
			return fmt.Errorf("failed to initialize container: %w", err)
		}
		defer ctr.Close()

		// 3. 初始化控制器
		taskController := api.NewTaskController(ctr.TaskService())
		containerController := api.NewContainerController(ctr.ContainerService())
		schedulerController := api.NewSchedulerController(ctr.DailyScheduler())

		// 4. 设置路由
		router := setupRoutesWithControllers(ctr, taskController, containerController, schedulerController, cfg)

		// 5. 启动每日任务调度器
		schedulerCtx, stopScheduler := context.WithCancel(context.Background())
		defer stopScheduler()
		ctr.DailyScheduler().Start(schedulerCtx)

		// 6. 启动服务器
		addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
		srv := &http.Server{
			Addr:    addr,
			Handler: router,
		}

		// 启动服务器（在 goroutine 中）
		go func() {
			log.Printf("Server starting on %s", addr)
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Fatalf("Failed to start server: %v", err)
			}
		}()

		// 等待中断信号
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit

		log.Println("Shutting down server...")

		// 停止调度器,等待进行中的生成轮次结束
		stopScheduler()
		ctr.DailyScheduler().Stop()

		// 优雅关闭
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			log.Fatalf("Server forced to shutdown: %v", err)
		}

		log.Println("Server exited")
		return nil
	},
}

// setupRoutesWithControllers 设置路由并绑定控制器
func setupRoutesWithControllers(
	ctr *container.Container,
	taskController *api.TaskController,
	containerController *api.ContainerController,
	schedulerController *api.SchedulerController,
	cfg *config.Config,
) *gin.Engine {
	router := api.SetupRoutes(ctr.DB(), cfg)

	// API v1 路由组,全部需要 Bearer 身份
	v1 := router.Group("/api/v1")
	v1.Use(auth.IdentityMiddleware(ctr.TokenValidator()))
	{
		// 任务管理路由
		tasks := v1.Group("/tasks")
		{
			tasks.POST("", taskController.Create)
			tasks.GET("", taskController.List)
			tasks.GET("/:id", taskController.Get)

			// 具体路径的路由（必须在 /:id 之后，Gin 会优先匹配更长的路径）
			tasks.POST("/:id/claim", taskController.Claim)
			tasks.POST("/:id/accept", taskController.Accept)
			tasks.POST("/:id/pickup", taskController.Pickup)
			tasks.POST("/:id/transit", taskController.Transit)
			tasks.POST("/:id/deliver", taskController.Deliver)
			tasks.POST("/:id/cancel", taskController.Cancel)
			tasks.POST("/:id/handover", taskController.Handover)
			tasks.POST("/:id/assign", taskController.Assign)
			tasks.PUT("/:id/status", taskController.SetStatus)
		}

		// 容器管理路由
		containers := v1.Group("/containers")
		{
			containers.GET("/:id", containerController.Get)
			containers.GET("/:id/history", containerController.History)
			containers.POST("/:id/reset", containerController.Reset)
		}

		// 调度管理路由
		scheduler := v1.Group("/scheduler")
		{
			scheduler.POST("/daily-run", schedulerController.RunDaily)
		}
	}

	// 自定义 NoRoute 处理器,返回 JSON 格式的 404
	router.NoRoute(func(c *gin.Context) {
		api.Error(c, http.StatusNotFound, "route not found", "the requested route does not exist")
	})

	return router
}

func init() {
	rootCmd.AddCommand(serverCmd)

	// 服务器配置标志
	serverCmd.Flags().String("config", "", "Config file path (default: config.yaml)")
	serverCmd.Flags().String("host", "0.0.0.0", "Server host")
	serverCmd.Flags().Int("port", 8080, "Server port")
}
