package app

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"copyflow/internal/ai"
	"copyflow/internal/compliance"
	"copyflow/internal/config"
	"copyflow/internal/dispatch"
	"copyflow/internal/executor"
	"copyflow/internal/ingest"
	"copyflow/internal/model"
	"copyflow/internal/queue"
	"copyflow/internal/server"
	"copyflow/internal/store"
)

// App 聚合核心依赖并驱动系统生命周期。
type App struct {
	cfg    *config.Config
	logger *zap.Logger
	store  *store.Store
}

// New 创建 App 实例。
func New(cfg *config.Config, logger *zap.Logger, store *store.Store) *App {
	return &App{
		cfg:    cfg,
		logger: logger,
		store:  store,
	}
}

// Run 组装各组件并并行运行管理接口与执行队列，直到收到退出信号。
func (a *App) Run(ctx context.Context) error {
	a.logger.Info("信号分发系统已初始化",
		zap.String("environment", a.cfg.App.Environment),
		zap.String("compliance_timezone", a.cfg.Compliance.Timezone),
		zap.Bool("ai_fallback", a.cfg.AI.Enabled),
	)

	intents, err := store.NewIntentRepo(a.store)
	if err != nil {
		return fmt.Errorf("初始化意图仓储失败: %w", err)
	}
	accounts, err := store.NewAccountRepo(a.store)
	if err != nil {
		return fmt.Errorf("初始化账户仓储失败: %w", err)
	}
	copysets, err := store.NewCopySetRepo(a.store)
	if err != nil {
		return fmt.Errorf("初始化分组仓储失败: %w", err)
	}
	profiles, err := store.NewProfileRepo(a.store)
	if err != nil {
		return fmt.Errorf("初始化档案仓储失败: %w", err)
	}
	execLogs, err := store.NewExecLogRepo(a.store)
	if err != nil {
		return fmt.Errorf("初始化审计仓储失败: %w", err)
	}
	masters, err := store.NewMasterRepo(a.store)
	if err != nil {
		return fmt.Errorf("初始化信号源仓储失败: %w", err)
	}

	gate, err := compliance.NewGate(a.cfg.Compliance.Timezone)
	if err != nil {
		return err
	}

	registry := executor.NewRegistry()
	registry.Register(model.PlatformMT5,
		executor.NewMT5Executor(a.cfg.Gateway.MT5URL, a.cfg.Gateway.Timeout, a.logger))
	registry.Register(model.PlatformCTrader, executor.NewCTraderExecutor())

	dispatcher, err := dispatch.New(dispatch.Deps{
		Intents:  intents,
		Accounts: accounts,
		CopySets: copysets,
		Profiles: profiles,
		ExecLogs: execLogs,
		Gate:     gate,
		Registry: registry,
	}, a.logger)
	if err != nil {
		return err
	}

	execQueue := queue.New(a.cfg.Queue.Buffer, a.cfg.Queue.Workers, a.logger)

	var extractor ingest.Extractor
	if a.cfg.AI.Enabled {
		client, err := ai.NewClient(a.cfg.AI, a.logger)
		if err != nil {
			return fmt.Errorf("初始化辅助解析客户端失败: %w", err)
		}
		extractor = client
	}

	ingestSvc, err := ingest.New(masters, intents, execQueue, extractor, a.cfg.Ingest.AutoQueue, a.logger)
	if err != nil {
		return err
	}

	httpSrv, err := server.New(server.Deps{
		Masters:  masters,
		Accounts: accounts,
		CopySets: copysets,
		Profiles: profiles,
		Intents:  intents,
		ExecLogs: execLogs,
		Ingest:   ingestSvc,
		Enqueuer: execQueue,
	}, a.logger)
	if err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return execQueue.Run(ctx, func(ctx context.Context, intentID string) error {
			_, err := dispatcher.Run(ctx, intentID)
			return err
		})
	})

	g.Go(func() error {
		return httpSrv.Start(ctx, a.cfg.Server.Port, a.cfg.Server.ShutdownTimeout)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("系统异常退出: %w", err)
	}

	a.logger.Info("系统收到退出信号，正在停止")
	return nil
}
