package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"copyflow/internal/config"
	"copyflow/internal/signal"
)

// Client 封装 OpenAI 调用逻辑，只在正则解析未命中时作为兜底使用。
type Client struct {
	cfg    config.AIConfig
	logger *zap.Logger
	sdk    *openai.Client
}

// NewClient 使用给定配置创建提取客户端。
func NewClient(cfg config.AIConfig, logger *zap.Logger) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("ai api_key 不能为空")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	sdkCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		sdkCfg.BaseURL = cfg.BaseURL
	}
	sdkCfg.HTTPClient = &http.Client{
		Timeout: cfg.Timeout + 5*time.Second,
	}

	return &Client{
		cfg:    cfg,
		logger: logger,
		sdk:    openai.NewClientWithConfig(sdkCfg),
	}, nil
}

// ExtractSignal 调用模型从文本中提取信号字段。
// 模型判定不是信号时返回 (nil, false, nil)，与正则解析器的未命中等价。
func (c *Client) ExtractSignal(ctx context.Context, text string) (*signal.ParsedSignal, bool, error) {
	if c.cfg.Model == "" {
		return nil, false, errors.New("ai model 不能为空")
	}

	prompt, err := BuildPrompt(text)
	if err != nil {
		return nil, false, err
	}

	response, err := c.sdk.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.cfg.Model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleUser,
				Content: prompt,
			},
		},
		Temperature: 0,
	})
	if err != nil {
		c.logger.Error("调用OpenAI失败", zap.Error(err))
		return nil, false, fmt.Errorf("调用OpenAI失败: %w", err)
	}

	if len(response.Choices) == 0 {
		return nil, false, errors.New("OpenAI 返回结果为空")
	}

	rawContent := strings.TrimSpace(response.Choices[0].Message.Content)
	if rawContent == "" {
		return nil, false, errors.New("OpenAI 返回内容为空")
	}

	extraction, err := parseExtraction(rawContent)
	if err != nil {
		c.logger.Error("解析模型提取结果失败",
			zap.Error(err),
			zap.String("raw_content", rawContent),
		)
		return nil, false, err
	}

	if err := extraction.Validate(); err != nil {
		return nil, false, err
	}

	parsed, ok := extraction.ToParsed()
	if !ok {
		return nil, false, nil
	}

	c.logger.Info("辅助解析命中信号",
		zap.String("symbol", parsed.Symbol),
		zap.String("side", string(parsed.Side)),
		zap.String("order_type", string(parsed.OrderType)),
	)

	return parsed, true, nil
}

func parseExtraction(content string) (Extraction, error) {
	jsonPayload, err := extractJSON(content)
	if err != nil {
		return Extraction{}, err
	}

	var extraction Extraction
	if err = json.Unmarshal(jsonPayload, &extraction); err != nil {
		return Extraction{}, fmt.Errorf("解析提取JSON失败: %w", err)
	}

	return extraction, nil
}

func extractJSON(content string) ([]byte, error) {
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")

	if start == -1 || end == -1 || end <= start {
		return nil, fmt.Errorf("模型输出未找到有效JSON: %s", content)
	}

	return []byte(content[start : end+1]), nil
}
