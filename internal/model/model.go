package model

import "time"

// IntentStatus 表示交易意图的生命周期状态。
type IntentStatus string

const (
	IntentStatusNew    IntentStatus = "NEW"
	IntentStatusQueued IntentStatus = "QUEUED"
	IntentStatusDone   IntentStatus = "DONE"
	IntentStatusFailed IntentStatus = "FAILED"
	// IntentStatusBlocked 预留状态，当前分发逻辑不会写入。
	IntentStatusBlocked IntentStatus = "BLOCKED"
)

// Side 表示交易方向。
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// OrderType 表示订单类型。
type OrderType string

const (
	OrderTypeMarket OrderType = "MARKET"
	OrderTypeLimit  OrderType = "LIMIT"
	OrderTypeStop   OrderType = "STOP"
	OrderTypeZone   OrderType = "ZONE"
)

// Platform 表示账户所属的交易平台。
type Platform string

const (
	PlatformMT5     Platform = "MT5"
	PlatformCTrader Platform = "CTRADER"
)

// SizingMethod 表示风险档案的仓位计算方式。
type SizingMethod string

const (
	SizingFixedLot      SizingMethod = "fixed_lot"
	SizingPercentEquity SizingMethod = "percent_equity"
	SizingRiskPerTrade  SizingMethod = "risk_per_trade"
)

// LogOutcome 表示单次 (意图, 账户) 分发尝试的结果。
type LogOutcome string

const (
	LogOutcomeOK      LogOutcome = "OK"
	LogOutcomeError   LogOutcome = "ERROR"
	LogOutcomeSkipped LogOutcome = "SKIPPED"
)

// TakeProfit 表示带序号的止盈目标。
type TakeProfit struct {
	N     int     `json:"n"`
	Price float64 `json:"price"`
}

// TradeIntent 是由信号解析得到的结构化交易指令。
// entry 与 zone 互斥：纯市价单两者可同时为空。
type TradeIntent struct {
	ID        string
	MasterID  string
	Symbol    string
	Side      Side
	OrderType OrderType
	Entry     *float64
	ZoneLow   *float64
	ZoneHigh  *float64
	SL        *float64
	TPs       []TakeProfit
	RawText   string
	Status    IntentStatus
	CreatedAt time.Time
}

// Master 表示信号源（频道、人工或平台喂价）。
type Master struct {
	ID       string
	Name     string
	Source   string
	IsActive bool
}

// CopySet 表示跟随某个信号源的账户分组。
type CopySet struct {
	ID       string
	Name     string
	MasterID string
	IsActive bool
}

// CopySetSlave 表示分组与账户的归属关系。
type CopySetSlave struct {
	ID        string
	CopySetID string
	AccountID string
}

// Account 表示下游交易账户。
type Account struct {
	ID            string
	Name          string
	Platform      Platform
	ExternalID    string
	PropFirmID    string
	RiskProfileID string
}

// PropFirm 表示合规档案：周末交易开关与人工红色新闻封锁。
type PropFirm struct {
	ID             string
	Name           string
	WeekendTrading bool
	NewsRedBlock   bool
}

// RiskProfile 表示账户的仓位档案。
type RiskProfile struct {
	ID          string
	Name        string
	Method      SizingMethod
	RiskPercent float64
	FixedLot    float64
	MaxLot      float64
}

// ExecutionLog 是单次 (意图, 账户) 分发尝试的审计记录，只追加不修改。
type ExecutionLog struct {
	ID            string
	TradeIntentID string
	AccountID     string
	Outcome       LogOutcome
	Message       string
	CreatedAt     time.Time
}
