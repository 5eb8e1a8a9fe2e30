package dispatch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"copyflow/internal/compliance"
	"copyflow/internal/executor"
	"copyflow/internal/model"
	"copyflow/internal/sizing"
	"copyflow/internal/store"
)

// PassOutcome 表示一次分发的整体结局。
type PassOutcome string

const (
	// PassCompleted 表示扇出执行完毕。单个账户的成败只体现在审计记录里，
	// 全部跳过或全部出错的一轮同样以 DONE 收尾。
	PassCompleted PassOutcome = "completed"
	// PassIntentNotFound 表示意图在入队与执行之间消失，按幂等空操作处理。
	PassIntentNotFound PassOutcome = "intent_not_found"
	// PassNoActiveCopySets 表示信号源下没有启用的分组，意图置为 FAILED。
	PassNoActiveCopySets PassOutcome = "no_active_copysets"
)

// Result 汇总一次分发的账户级计数。
type Result struct {
	Outcome   PassOutcome
	Submitted int
	Skipped   int
	Errored   int
}

// Dispatcher 将单个交易意图扇出到其全部订阅账户：
// 合规判定 → 仓位解析 → 平台提交 → 审计记录，最后落终态。
type Dispatcher struct {
	intents  *store.IntentRepo
	accounts *store.AccountRepo
	copysets *store.CopySetRepo
	profiles *store.ProfileRepo
	execLogs *store.ExecLogRepo
	gate     *compliance.Gate
	registry *executor.Registry
	logger   *zap.Logger
}

// Deps 聚合分发器的全部协作方。
type Deps struct {
	Intents  *store.IntentRepo
	Accounts *store.AccountRepo
	CopySets *store.CopySetRepo
	Profiles *store.ProfileRepo
	ExecLogs *store.ExecLogRepo
	Gate     *compliance.Gate
	Registry *executor.Registry
}

// New 创建分发器。
func New(deps Deps, logger *zap.Logger) (*Dispatcher, error) {
	if deps.Intents == nil || deps.Accounts == nil || deps.CopySets == nil ||
		deps.Profiles == nil || deps.ExecLogs == nil {
		return nil, errors.New("dispatch: 仓储依赖不完整")
	}
	if deps.Gate == nil {
		return nil, errors.New("dispatch: gate 不能为空")
	}
	if deps.Registry == nil {
		return nil, errors.New("dispatch: registry 不能为空")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Dispatcher{
		intents:  deps.Intents,
		accounts: deps.Accounts,
		copysets: deps.CopySets,
		profiles: deps.Profiles,
		execLogs: deps.ExecLogs,
		gate:     deps.Gate,
		registry: deps.Registry,
		logger:   logger,
	}, nil
}

// Run 执行一次完整的分发。只有存储故障以 error 返回；
// 意图缺失与无启用分组属于业务结局，体现在 Result 里。
// 重复投递同一意图会完整地再扇出一遍，本层不做去重。
func (d *Dispatcher) Run(ctx context.Context, intentID string) (Result, error) {
	intent, err := d.intents.Get(ctx, intentID)
	if err != nil {
		return Result{}, err
	}
	if intent == nil {
		d.logger.Warn("交易意图不存在，跳过本次分发", zap.String("intent_id", intentID))
		return Result{Outcome: PassIntentNotFound}, nil
	}

	copysets, err := d.copysets.ActiveByMaster(ctx, intent.MasterID)
	if err != nil {
		return Result{}, err
	}
	if len(copysets) == 0 {
		if err := d.intents.UpdateStatus(ctx, intent.ID, model.IntentStatusFailed); err != nil {
			return Result{}, err
		}
		d.logger.Warn("信号源下无启用分组，意图置为 FAILED",
			zap.String("intent_id", intent.ID),
			zap.String("master_id", intent.MasterID),
		)
		return Result{Outcome: PassNoActiveCopySets}, nil
	}

	now := time.Now().UTC()
	payload := buildPayload(intent)
	result := Result{Outcome: PassCompleted}

	for _, cs := range copysets {
		slaves, err := d.copysets.SlavesByCopySet(ctx, cs.ID)
		if err != nil {
			return Result{}, err
		}

		for _, slave := range slaves {
			acc, err := d.accounts.Get(ctx, slave.AccountID)
			if err != nil {
				return Result{}, err
			}
			if acc == nil {
				continue
			}

			if err := d.processAccount(ctx, intent, acc, payload, now, &result); err != nil {
				return Result{}, err
			}
		}
	}

	if err := d.intents.UpdateStatus(ctx, intent.ID, model.IntentStatusDone); err != nil {
		return Result{}, err
	}

	d.logger.Info("分发完成",
		zap.String("intent_id", intent.ID),
		zap.String("symbol", intent.Symbol),
		zap.Int("submitted", result.Submitted),
		zap.Int("skipped", result.Skipped),
		zap.Int("errored", result.Errored),
	)

	return result, nil
}

func (d *Dispatcher) processAccount(ctx context.Context, intent *model.TradeIntent, acc *model.Account,
	payload executor.IntentPayload, now time.Time, result *Result) error {

	prof, err := d.loadPropFirm(ctx, acc)
	if err != nil {
		return err
	}

	if decision := d.gate.Evaluate(prof, now); !decision.Allowed {
		result.Skipped++
		return d.execLogs.Append(ctx, &model.ExecutionLog{
			TradeIntentID: intent.ID,
			AccountID:     acc.ID,
			Outcome:       model.LogOutcomeSkipped,
			Message:       decision.Reason,
		})
	}

	rp, err := d.loadRiskProfile(ctx, acc)
	if err != nil {
		return err
	}
	if lot, ok := sizing.Resolve(rp); ok {
		payload.Lot = &lot
	} else {
		payload.Lot = nil
	}

	outcome := d.submit(ctx, acc, payload)

	logOutcome := model.LogOutcomeOK
	if outcome.OK {
		result.Submitted++
	} else {
		logOutcome = model.LogOutcomeError
		result.Errored++
	}

	return d.execLogs.Append(ctx, &model.ExecutionLog{
		TradeIntentID: intent.ID,
		AccountID:     acc.ID,
		Outcome:       logOutcome,
		Message:       outcome.Message,
	})
}

func (d *Dispatcher) submit(ctx context.Context, acc *model.Account, payload executor.IntentPayload) executor.Outcome {
	exec, err := d.registry.ForPlatform(acc.Platform)
	if err != nil {
		return executor.Outcome{OK: false, Message: err.Error()}
	}
	return exec.Submit(ctx, acc.ExternalID, payload)
}

func (d *Dispatcher) loadPropFirm(ctx context.Context, acc *model.Account) (*model.PropFirm, error) {
	if acc.PropFirmID == "" {
		return nil, nil
	}
	prof, err := d.profiles.GetPropFirm(ctx, acc.PropFirmID)
	if err != nil {
		return nil, fmt.Errorf("dispatch: 加载合规档案失败: %w", err)
	}
	return prof, nil
}

func (d *Dispatcher) loadRiskProfile(ctx context.Context, acc *model.Account) (*model.RiskProfile, error) {
	if acc.RiskProfileID == "" {
		return nil, nil
	}
	rp, err := d.profiles.GetRiskProfile(ctx, acc.RiskProfileID)
	if err != nil {
		return nil, fmt.Errorf("dispatch: 加载风险档案失败: %w", err)
	}
	return rp, nil
}

func buildPayload(intent *model.TradeIntent) executor.IntentPayload {
	return executor.IntentPayload{
		ID:        intent.ID,
		Symbol:    intent.Symbol,
		Side:      string(intent.Side),
		OrderType: string(intent.OrderType),
		Entry:     intent.Entry,
		ZoneLow:   intent.ZoneLow,
		ZoneHigh:  intent.ZoneHigh,
		SL:        intent.SL,
		TPs:       intent.TPs,
	}
}
