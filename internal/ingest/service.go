package ingest

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"copyflow/internal/model"
	"copyflow/internal/signal"
	"copyflow/internal/store"
)

// Extractor 是可选的辅助解析能力，正则未命中时兜底。
type Extractor interface {
	ExtractSignal(ctx context.Context, text string) (*signal.ParsedSignal, bool, error)
}

// Enqueuer 投递执行作业。
type Enqueuer interface {
	Enqueue(ctx context.Context, intentID string) error
}

// Service 接收某个来源的原始信号文本：定位启用的信号源、解析、
// 落库为 NEW 意图，并按配置自动转入 QUEUED 入队。
// 未命中的文本静默丢弃，不产生任何记录。
type Service struct {
	masters   *store.MasterRepo
	intents   *store.IntentRepo
	enqueuer  Enqueuer
	extractor Extractor
	autoQueue bool
	logger    *zap.Logger
}

// New 创建接入服务。extractor 可为 nil，表示不启用辅助解析。
func New(masters *store.MasterRepo, intents *store.IntentRepo, enqueuer Enqueuer,
	extractor Extractor, autoQueue bool, logger *zap.Logger) (*Service, error) {

	if masters == nil || intents == nil {
		return nil, errors.New("ingest: 仓储依赖不完整")
	}
	if autoQueue && enqueuer == nil {
		return nil, errors.New("ingest: 启用自动入队时 enqueuer 不能为空")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Service{
		masters:   masters,
		intents:   intents,
		enqueuer:  enqueuer,
		extractor: extractor,
		autoQueue: autoQueue,
		logger:    logger,
	}, nil
}

// Handle 处理一条原始消息。未命中信号或找不到启用信号源时
// 返回 (nil, nil)。
func (s *Service) Handle(ctx context.Context, source, text string) (*model.TradeIntent, error) {
	master, err := s.masters.ActiveBySource(ctx, source)
	if err != nil {
		return nil, err
	}
	if master == nil {
		s.logger.Warn("来源下无启用信号源，消息被丢弃", zap.String("source", source))
		return nil, nil
	}

	parsed, ok := signal.Parse(text)
	if !ok && s.extractor != nil {
		parsed, ok, err = s.extractor.ExtractSignal(ctx, text)
		if err != nil {
			s.logger.Warn("辅助解析失败，消息被丢弃", zap.Error(err))
			return nil, nil
		}
	}
	if !ok {
		return nil, nil
	}

	intent := &model.TradeIntent{
		ID:        uuid.NewString(),
		MasterID:  master.ID,
		Symbol:    parsed.Symbol,
		Side:      parsed.Side,
		OrderType: parsed.OrderType,
		Entry:     parsed.Entry,
		ZoneLow:   parsed.ZoneLow,
		ZoneHigh:  parsed.ZoneHigh,
		SL:        parsed.SL,
		TPs:       parsed.TPs,
		RawText:   text,
		Status:    model.IntentStatusNew,
		CreatedAt: time.Now().UTC(),
	}

	if err := s.intents.Insert(ctx, intent); err != nil {
		return nil, err
	}

	s.logger.Info("交易意图已创建",
		zap.String("intent_id", intent.ID),
		zap.String("symbol", intent.Symbol),
		zap.String("side", string(intent.Side)),
		zap.String("order_type", string(intent.OrderType)),
	)

	if s.autoQueue {
		if err := s.queueIntent(ctx, intent); err != nil {
			return intent, err
		}
	}

	return intent, nil
}

func (s *Service) queueIntent(ctx context.Context, intent *model.TradeIntent) error {
	if err := s.intents.UpdateStatus(ctx, intent.ID, model.IntentStatusQueued); err != nil {
		return err
	}
	intent.Status = model.IntentStatusQueued

	if err := s.enqueuer.Enqueue(ctx, intent.ID); err != nil {
		return err
	}
	return nil
}
