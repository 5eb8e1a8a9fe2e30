package executor

import "context"

// CTraderExecutor 是 cTrader 平台的占位实现，保证分发循环对各平台
// 形态一致；接入 cTrader Open API 时只需替换本类型。
type CTraderExecutor struct{}

// NewCTraderExecutor 创建占位执行器。
func NewCTraderExecutor() *CTraderExecutor {
	return &CTraderExecutor{}
}

// Submit 固定返回未实现。
func (e *CTraderExecutor) Submit(ctx context.Context, accountExternalID string, intent IntentPayload) Outcome {
	return Outcome{OK: false, Message: "cTrader executor not implemented"}
}

var _ Executor = (*CTraderExecutor)(nil)
