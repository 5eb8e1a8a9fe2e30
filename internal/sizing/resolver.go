package sizing

import (
	"math"

	"copyflow/internal/model"
)

// Resolve 根据风险档案计算下单手数。未配置档案时返回 ok=false，
// 执行器将不携带手数覆盖。
//
// 当前版本只实现 fixed_lot：percent_equity 与 risk_per_trade 暂时
// 同样退化为固定手数，等待基于净值/止损距离的仓位引擎接入后替换，
// 上层契约不受影响。
func Resolve(rp *model.RiskProfile) (float64, bool) {
	if rp == nil {
		return 0, false
	}

	var lot float64
	switch rp.Method {
	case model.SizingFixedLot:
		lot = rp.FixedLot
	case model.SizingPercentEquity, model.SizingRiskPerTrade:
		lot = rp.FixedLot
	default:
		lot = rp.FixedLot
	}

	if lot > 0 && rp.MaxLot > 0 {
		lot = math.Min(lot, rp.MaxLot)
	}

	return lot, true
}
