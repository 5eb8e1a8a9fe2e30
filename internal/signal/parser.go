package signal

import (
	"regexp"
	"sort"
	"strconv"
	"strings"

	"copyflow/internal/model"
)

// ParsedSignal 是从自由文本中提取的结构化信号字段。
type ParsedSignal struct {
	Symbol    string
	Side      model.Side
	OrderType model.OrderType
	Entry     *float64
	ZoneLow   *float64
	ZoneHigh  *float64
	SL        *float64
	TPs       []model.TakeProfit
}

// 信号主句形如 "XAUUSD SELL ZONE 5187.5-5190"，SL/TP 片段可出现在文本任意位置。
var (
	clauseRe = regexp.MustCompile(`(?i)([A-Z0-9/_-]+)\s+(BUY|SELL)\s+(ZONE|LIMIT|STOP|MARKET|NOW)\s*(\d+(?:\.\d+)?(?:\s*[-–]\s*\d+(?:\.\d+)?)?)?`)
	slRe     = regexp.MustCompile(`(?i)\bSL\b\s*(\d+(?:\.\d+)?)`)
	tpRe     = regexp.MustCompile(`(?i)\bTP(\d+)\b\s*(\d+(?:\.\d+)?)`)
	zoneSep  = regexp.MustCompile(`[-–]`)
)

// Parse 将原始文本解析为结构化信号。主句缺失时返回 (nil, false)，
// 解析自身是纯函数，不产生任何副作用。
func Parse(text string) (*ParsedSignal, bool) {
	t := strings.Join(strings.Fields(strings.TrimSpace(text)), " ")

	m := clauseRe.FindStringSubmatch(t)
	if m == nil {
		return nil, false
	}

	ps := &ParsedSignal{
		Symbol: strings.ToUpper(m[1]),
		Side:   model.Side(strings.ToUpper(m[2])),
	}

	switch otype := strings.ToUpper(m[3]); otype {
	case "NOW", "MARKET":
		ps.OrderType = model.OrderTypeMarket
	default:
		ps.OrderType = model.OrderType(otype)
	}

	// 单个价格视作入场价，low-high 区间按书写顺序拆分，不做大小校验：
	// 作者写反时 zone_low > zone_high 原样保留。
	if zone := m[4]; zone != "" {
		if zoneSep.MatchString(zone) {
			parts := zoneSep.Split(zone, 2)
			low, lowErr := parseFloat(parts[0])
			high, highErr := parseFloat(parts[1])
			if lowErr == nil && highErr == nil {
				ps.ZoneLow = &low
				ps.ZoneHigh = &high
			}
		} else if entry, err := parseFloat(zone); err == nil {
			ps.Entry = &entry
		}
	}

	if msl := slRe.FindStringSubmatch(t); msl != nil {
		if sl, err := parseFloat(msl[1]); err == nil {
			ps.SL = &sl
		}
	}

	// 止盈在整段文本中收集后按序号稳定排序；重复序号全部保留。
	for _, mtp := range tpRe.FindAllStringSubmatch(t, -1) {
		n, nErr := strconv.Atoi(mtp[1])
		price, pErr := parseFloat(mtp[2])
		if nErr != nil || pErr != nil {
			continue
		}
		ps.TPs = append(ps.TPs, model.TakeProfit{N: n, Price: price})
	}
	sort.SliceStable(ps.TPs, func(i, j int) bool {
		return ps.TPs[i].N < ps.TPs[j].N
	})

	return ps, true
}

func parseFloat(value string) (float64, error) {
	return strconv.ParseFloat(strings.TrimSpace(value), 64)
}
