package compliance

import (
	"fmt"
	"time"

	"copyflow/internal/model"
)

// Decision 表示一次合规判定结果。
type Decision struct {
	Allowed bool
	Reason  string
}

// Gate 按合规档案判断某一时刻是否允许下单。
// 周末判定使用固定的参照时区，与账户与信号无关。
type Gate struct {
	loc *time.Location
}

// NewGate 加载参照时区并创建判定器。
func NewGate(timezone string) (*Gate, error) {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, fmt.Errorf("compliance: 加载时区 %q 失败: %w", timezone, err)
	}
	return &Gate{loc: loc}, nil
}

// Evaluate 依次判定各条规则，第一条拒绝即返回。
// 未挂载合规档案的账户始终放行。每次分发都重新判定，不做缓存。
func (g *Gate) Evaluate(prof *model.PropFirm, asOf time.Time) Decision {
	if prof == nil {
		return Decision{Allowed: true}
	}

	if g.isWeekend(asOf) && !prof.WeekendTrading {
		return Decision{
			Allowed: false,
			Reason:  fmt.Sprintf("Weekend blocked by prop '%s'", prof.Name),
		}
	}

	if prof.NewsRedBlock {
		return Decision{
			Allowed: false,
			Reason:  fmt.Sprintf("NEWS_RED block active for prop '%s'", prof.Name),
		}
	}

	return Decision{Allowed: true}
}

func (g *Gate) isWeekend(asOf time.Time) bool {
	switch asOf.In(g.loc).Weekday() {
	case time.Saturday, time.Sunday:
		return true
	default:
		return false
	}
}
