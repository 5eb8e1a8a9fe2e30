package executor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

const defaultGatewayTimeout = 10 * time.Second

// MT5Executor 通过 HTTP 调用外部 MT5 订单网关。
// 每次 Submit 只发起一次出站请求，不在本层重试。
type MT5Executor struct {
	baseURL string
	client  *http.Client
	logger  *zap.Logger
}

type orderRequest struct {
	AccountExternalID string        `json:"account_external_id"`
	Intent            IntentPayload `json:"intent"`
}

// NewMT5Executor 创建网关执行器。baseURL 为空时执行器仍可创建，
// 提交会以配置缺失的失败结果返回。
func NewMT5Executor(baseURL string, timeout time.Duration, logger *zap.Logger) *MT5Executor {
	if timeout <= 0 {
		timeout = defaultGatewayTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &MT5Executor{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

// Submit 将订单载荷 POST 到网关的 /v1/orders。
func (e *MT5Executor) Submit(ctx context.Context, accountExternalID string, intent IntentPayload) Outcome {
	if e.baseURL == "" {
		return Outcome{OK: false, Message: "gateway.mt5_url not set"}
	}

	body, err := json.Marshal(orderRequest{
		AccountExternalID: accountExternalID,
		Intent:            intent,
	})
	if err != nil {
		return Outcome{OK: false, Message: fmt.Sprintf("marshal order payload: %v", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/v1/orders", bytes.NewReader(body))
	if err != nil {
		return Outcome{OK: false, Message: err.Error()}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		e.logger.Warn("调用订单网关失败", zap.Error(err))
		return Outcome{OK: false, Message: err.Error()}
	}
	defer resp.Body.Close()

	text, err := io.ReadAll(resp.Body)
	if err != nil {
		return Outcome{OK: false, Message: fmt.Sprintf("read gateway response: %v", err)}
	}

	if resp.StatusCode != http.StatusOK {
		return Outcome{OK: false, Message: fmt.Sprintf("HTTP %d: %s", resp.StatusCode, string(text))}
	}

	return Outcome{OK: true, Message: string(text)}
}

var _ Executor = (*MT5Executor)(nil)
