/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>

*/
package cmd

import (
	"context"
	"fmt"
	"log"

	"github.com/mautops/pickup-gin/internal/config"
	"github.com/mautops/pickup-gin/internal/container"
	"github.com/spf13/cobra"
)

// generateCmd represents the generate command
var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Run one round of daily task generation",
	Long: `Run a single round of daily full-container task generation and exit.
Stale daily tasks from previous days are cancelled, and one task per active
stand is created for today. Stands that already have a task for today are
skipped, so the command is safe to run repeatedly.`,
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

		// 3. 执行一轮生成
		report, err := ctr.DailyScheduler().Run(context.Background())
		if err != nil {
			return fmt.Errorf("daily generation failed: %w", err)
		}

		log.Printf("Daily generation completed: created=%d skipped=%d cancelled=%d",
			report.CreatedCount, report.SkippedCount, report.CancelledPreviousCount)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(generateCmd)

	generateCmd.Flags().String("config", "", "Config file path (default: config.yaml)")
}
