package ai

import (
	"bytes"
	"fmt"
	"text/template"
)

const extractionTemplate = `
你是一个交易信号抄写员。下面是一条来自信号频道的原始消息，标准的正则解析器未能识别它。请判断它是否仍然是一条可执行的交易信号，并提取结构化字段。

原始消息：
{{ .Text }}

提取规则：
1. symbol 为交易品种（如 XAUUSD、EURUSD），统一大写；
2. side 只能是 BUY 或 SELL；
3. order_type 只能是 MARKET、LIMIT、STOP、ZONE 之一，"now"、"立即" 等含义视作 MARKET；
4. 单个入场价写入 entry；价格区间写入 zone_low/zone_high，按消息中的书写顺序，不要交换大小；
5. 止损写入 sl；止盈按序号写入 tps，重复序号全部保留；
6. 缺失的字段返回 null，不要编造数值；
7. 消息不是交易信号时 matched 填 false，其余字段返回 null。

请严格输出唯一的 JSON 对象，格式如下：
{
  "matched": true,
  "symbol": "XAUUSD",
  "side": "BUY|SELL",
  "order_type": "MARKET|LIMIT|STOP|ZONE",
  "entry": 0.0,
  "zone_low": 0.0,
  "zone_high": 0.0,
  "sl": 0.0,
  "tps": [{"n": 1, "price": 0.0}]
}
`

var tmpl = template.Must(template.New("extraction").Parse(extractionTemplate))

// PromptContext 用于渲染提示词。
type PromptContext struct {
	Text string
}

// BuildPrompt 渲染信号提取提示词。
func BuildPrompt(text string) (string, error) {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, PromptContext{Text: text}); err != nil {
		return "", fmt.Errorf("渲染提示词失败: %w", err)
	}
	return buf.String(), nil
}
