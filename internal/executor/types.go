package executor

import (
	"context"

	"copyflow/internal/model"
)

// Outcome 表示一次平台提交的结果。提交失败不抛出错误，
// 只以 OK=false 加失败文本的形式返回。
type Outcome struct {
	OK      bool
	Message string
}

// IntentPayload 是发往执行端的订单载荷，lot 未配置时整体省略。
type IntentPayload struct {
	ID        string             `json:"id"`
	Symbol    string             `json:"symbol"`
	Side      string             `json:"side"`
	OrderType string             `json:"order_type"`
	Entry     *float64           `json:"entry"`
	ZoneLow   *float64           `json:"zone_low"`
	ZoneHigh  *float64           `json:"zone_high"`
	SL        *float64           `json:"sl"`
	TPs       []model.TakeProfit `json:"tps"`
	Lot       *float64           `json:"lot,omitempty"`
}

// Executor 抽象单个交易平台的订单提交能力。
type Executor interface {
	Submit(ctx context.Context, accountExternalID string, intent IntentPayload) Outcome
}
