package ai

import (
	"errors"
	"fmt"
	"strings"

	"copyflow/internal/model"
	"copyflow/internal/signal"
)

// Extraction 表示大模型从文本中提取出的信号字段。
type Extraction struct {
	Matched   bool               `json:"matched"`
	Symbol    string             `json:"symbol"`
	Side      string             `json:"side"`
	OrderType string             `json:"order_type"`
	Entry     *float64           `json:"entry"`
	ZoneLow   *float64           `json:"zone_low"`
	ZoneHigh  *float64           `json:"zone_high"`
	SL        *float64           `json:"sl"`
	TPs       []model.TakeProfit `json:"tps"`
}

var (
	validSides = map[string]struct{}{
		"BUY":  {},
		"SELL": {},
	}
	validOrderTypes = map[string]struct{}{
		"MARKET": {},
		"LIMIT":  {},
		"STOP":   {},
		"ZONE":   {},
	}
)

// Validate 校验提取字段合法性，约束与正则解析器保持一致。
func (e Extraction) Validate() error {
	if !e.Matched {
		return nil
	}
	if strings.TrimSpace(e.Symbol) == "" {
		return errors.New("symbol 不能为空")
	}
	if _, ok := validSides[strings.ToUpper(e.Side)]; !ok {
		return fmt.Errorf("side %q 不合法", e.Side)
	}
	if _, ok := validOrderTypes[strings.ToUpper(e.OrderType)]; !ok {
		return fmt.Errorf("order_type %q 不合法", e.OrderType)
	}
	for _, tp := range e.TPs {
		if tp.N <= 0 {
			return fmt.Errorf("止盈序号 %d 不合法", tp.N)
		}
		if tp.Price <= 0 {
			return fmt.Errorf("止盈价格 %v 不合法", tp.Price)
		}
	}
	return nil
}

// ToParsed 将提取结果转换为解析器的输出形态；未命中时返回 (nil, false)。
func (e Extraction) ToParsed() (*signal.ParsedSignal, bool) {
	if !e.Matched {
		return nil, false
	}

	return &signal.ParsedSignal{
		Symbol:    strings.ToUpper(strings.TrimSpace(e.Symbol)),
		Side:      model.Side(strings.ToUpper(e.Side)),
		OrderType: model.OrderType(strings.ToUpper(e.OrderType)),
		Entry:     e.Entry,
		ZoneLow:   e.ZoneLow,
		ZoneHigh:  e.ZoneHigh,
		SL:        e.SL,
		TPs:       e.TPs,
	}, true
}
