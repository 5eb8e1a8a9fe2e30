package queue

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Name 是执行队列的名称，入队方与工作协程通过它对账。
const Name = "exec"

// Handler 处理一个交易意图标识。返回的错误只记录不重投。
type Handler func(ctx context.Context, intentID string) error

// Queue 是进程内的执行作业队列：投递交易意图标识，由固定数量的
// 工作协程消费。语义按至少一次看待——同一标识允许被重复投递，
// 本层不做去重。
// TODO: 分发本身在重复投递下不幂等，接入带去重键的外部队列前
// 需要先在 dispatch 层落地幂等方案。
type Queue struct {
	jobs    chan string
	workers int
	logger  *zap.Logger
}

// New 创建队列。
func New(buffer, workers int, logger *zap.Logger) *Queue {
	if buffer <= 0 {
		buffer = 64
	}
	if workers <= 0 {
		workers = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Queue{
		jobs:    make(chan string, buffer),
		workers: workers,
		logger:  logger,
	}
}

// Enqueue 投递一个交易意图标识。队列满时阻塞直到可写或 ctx 取消。
func (q *Queue) Enqueue(ctx context.Context, intentID string) error {
	if intentID == "" {
		return errors.New("queue: intent id 不能为空")
	}

	select {
	case q.jobs <- intentID:
		q.logger.Debug("作业已入队",
			zap.String("queue", Name),
			zap.String("intent_id", intentID),
		)
		return nil
	case <-ctx.Done():
		return fmt.Errorf("queue: 入队被取消: %w", ctx.Err())
	}
}

// Run 启动工作协程并阻塞消费，直到 ctx 取消。
// 处理失败只记录日志，作业一律视为已确认，不自动重投。
func (q *Queue) Run(ctx context.Context, handler Handler) error {
	if handler == nil {
		return errors.New("queue: handler 不能为空")
	}

	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < q.workers; i++ {
		worker := i
		g.Go(func() error {
			q.logger.Info("执行工作协程已启动",
				zap.String("queue", Name),
				zap.Int("worker", worker),
			)
			for {
				select {
				case <-ctx.Done():
					return nil
				case intentID := <-q.jobs:
					if err := handler(ctx, intentID); err != nil {
						q.logger.Error("处理执行作业失败",
							zap.String("intent_id", intentID),
							zap.Error(err),
						)
					}
				}
			}
		})
	}

	return g.Wait()
}
