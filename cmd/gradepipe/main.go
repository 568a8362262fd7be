package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"autograde/internal/common/cache"
	"autograde/internal/grading/config"
	"autograde/internal/grading/executor"
	"autograde/internal/grading/repository"
	"autograde/internal/grading/service"
	"autograde/internal/grading/step"
	"autograde/pkg/utils/logger"

	"go.uber.org/zap"
)

const defaultConfigPath = "configs/autograde.yaml"

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", defaultConfigPath, "Path to config file")
	only := flag.String("only", "", "Grade only queued files whose name contains this")
	silent := flag.Bool("silent", false, "Do not print the run summary")
	flag.Parse()

	appCfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load app config failed: %v\n", err)
		return 2
	}

	if err := logger.Init(appCfg.Logger); err != nil {
		fmt.Fprintf(os.Stderr, "init logger failed: %v\n", err)
		return 2
	}
	defer func() {
		_ = logger.Sync()
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	redisCache, err := appCfg.NewCache()
	if err != nil {
		logger.Error(ctx, "init redis failed", zap.Error(err))
		return 2
	}
	if redisCache != nil {
		defer func() {
			_ = redisCache.Close()
		}()
	}

	pipeline, err := buildPipeline(appCfg, redisCache)
	if err != nil {
		logger.Error(ctx, "init grading pipeline failed", zap.Error(err))
		return 2
	}

	summary, err := pipeline.Run(ctx, *only)
	if !*silent {
		printSummary(summary)
	}
	if err != nil {
		logger.Error(ctx, "grading run failed", zap.String("run_id", summary.RunID), zap.Error(err))
		return 1
	}
	return 0
}

func buildPipeline(appCfg *config.App, redisCache cache.Cache) (*service.Pipeline, error) {
	exec := executor.New(executor.Config{MaxOutputBytes: appCfg.Grading.MaxOutputBytes})
	pipelines, err := appCfg.Pipelines(step.Deps{
		Exec:           exec,
		DefaultTimeout: appCfg.Grading.StepTimeout,
	})
	if err != nil {
		return nil, err
	}

	queue := repository.NewQueue(appCfg.Paths.Submitted)
	runner, err := service.NewRunner(service.RunnerConfig{
		QueueDir:          appCfg.Paths.Submitted,
		GradersRoot:       appCfg.Paths.Graders,
		Assignments:       appCfg.AssignmentStore(),
		Workspace:         repository.NewWorkspace(appCfg.Paths.Workspace),
		Results:           repository.NewResultStore(appCfg.Grading.ResultExt),
		Pipelines:         pipelines,
		Precision:         *appCfg.Grading.Precision,
		LeaveProblemFiles: appCfg.Grading.LeaveProblemFiles,
	})
	if err != nil {
		return nil, err
	}

	pipelineLock, err := appCfg.NewLock(redisCache)
	if err != nil {
		return nil, err
	}

	cfg := service.PipelineConfig{
		Lock:            pipelineLock,
		Queue:           queue,
		Grader:          runner,
		ProgressTimeout: appCfg.Progress.Timeout,
		RefreshInterval: appCfg.Lock.RefreshInterval,
	}
	if redisCache != nil {
		cfg.Progress = repository.NewProgressRepository(redisCache, appCfg.Progress.TTL)
	}
	return service.NewPipeline(cfg)
}

func printSummary(s service.Summary) {
	if !s.Started {
		fmt.Printf("grading skipped: %s\n", s.Skipped)
		return
	}
	recorded := make(map[string]bool, len(s.Outcomes))
	for _, o := range s.Outcomes {
		recorded[o.Filename] = true
		status := "passed"
		if !o.Passed {
			status = "failed"
		}
		fmt.Printf("%-40s %-6s %s\n", o.Filename, o.Grade, status)
	}
	for _, name := range s.Failures {
		if !recorded[name] {
			fmt.Printf("%-40s not graded\n", name)
		}
	}
	fmt.Printf("graded %d, failed %d\n", s.Graded, s.Failed)
}
