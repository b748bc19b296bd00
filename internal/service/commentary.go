package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"go.uber.org/zap"

	"powerx/internal/config"
	"powerx/internal/repository"
)

// ChatClient is the narrow port the commentary service needs from a language
// model provider.
type ChatClient interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// AnthropicClient implements ChatClient against the Anthropic messages API.
type AnthropicClient struct {
	client    anthropic.Client
	model     string
	maxTokens int64
}

func NewAnthropicClient(apiKey, model string, maxTokens int) *AnthropicClient {
	if model == "" {
		model = "claude-sonnet-4-5"
	}
	if maxTokens <= 0 {
		maxTokens = 1024
	}
	return &AnthropicClient{
		client:    anthropic.NewClient(option.WithAPIKey(apiKey)),
		model:     model,
		maxTokens: int64(maxTokens),
	}
}

func (a *AnthropicClient) Complete(ctx context.Context, prompt string) (string, error) {
	msg, err := a.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(a.model),
		MaxTokens: a.maxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return "", fmt.Errorf("anthropic completion: %w", err)
	}
	var out strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			out.WriteString(block.Text)
		}
	}
	return out.String(), nil
}

// CommentaryService produces a short market brief from recent quotes and rule
// activity.
type CommentaryService struct {
	Repo   repository.Repository
	Chat   ChatClient
	Config config.CommentaryConfig
	Logger *zap.Logger
}

func (s *CommentaryService) Enabled() bool {
	return s != nil && s.Config.Enabled && s.Chat != nil
}

// DailyBrief summarizes the given provinces' latest prices and the last day of
// rule executions.
func (s *CommentaryService) DailyBrief(ctx context.Context, provinces []string, marketType string) (string, error) {
	if !s.Enabled() {
		return "", fmt.Errorf("commentary disabled")
	}
	prompt, err := s.buildPrompt(ctx, provinces, marketType)
	if err != nil {
		return "", err
	}
	text, err := s.Chat.Complete(ctx, prompt)
	if err != nil {
		return "", err
	}
	if s.Logger != nil {
		s.Logger.Info("commentary generated", zap.Int("chars", len(text)))
	}
	return text, nil
}

func (s *CommentaryService) buildPrompt(ctx context.Context, provinces []string, marketType string) (string, error) {
	var b strings.Builder
	b.WriteString("你是电力现货市场分析师。基于以下数据写一段不超过 200 字的中文市场简评，")
	b.WriteString("指出价格水平、波动与值得关注的省份。\n\n最新行情：\n")

	found := 0
	for _, province := range provinces {
		quote, err := s.Repo.LatestMarketQuote(ctx, province, marketType)
		if err != nil {
			return "", err
		}
		if quote == nil {
			continue
		}
		found++
		fmt.Fprintf(&b, "- %s %s：%s 元/MWh，成交量 %s MWh（%s）\n",
			province, marketType,
			quote.Price.StringFixed(2), quote.Volume.StringFixed(0),
			quote.QuotedAt.Format("15:04"))
	}
	if found == 0 {
		return "", fmt.Errorf("no quotes available")
	}

	since := time.Now().Add(-24 * time.Hour)
	execCount, err := s.Repo.CountRuleExecutions(ctx, repository.ListRuleExecutionsParams{Since: &since})
	if err != nil {
		return "", err
	}
	fmt.Fprintf(&b, "\n过去 24 小时自动规则共执行 %d 次。\n", execCount)
	return b.String(), nil
}
