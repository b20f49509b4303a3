// Package advisor runs an LLM agent that screens candidate tickers
// into BUY/IGNORE evaluations, checking the price trend through a
// function tool before deciding.
package advisor

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"google.golang.org/adk/agent"
	"google.golang.org/adk/agent/llmagent"
	"google.golang.org/adk/model/gemini"
	"google.golang.org/adk/runner"
	"google.golang.org/adk/session"
	"google.golang.org/adk/tool"
	"google.golang.org/adk/tool/functiontool"
	"google.golang.org/genai"

	"github.com/quangtb/stockvn/internal/screener"
)

const appName = "stockvn_advisor"

// Evaluation is the agent's verdict on one candidate.
type Evaluation struct {
	Ticker     string  `json:"ticker"`
	Action     string  `json:"action"` // BUY or IGNORE
	Confidence float64 `json:"confidence"`
	Reasoning  string  `json:"reasoning"`

	CandidateSummary string `json:"-"` // screener facts fed to the agent
	TechnicalSummary string `json:"-"` // tool output captured from the run
}

// Advisor owns the agent runner and session service.
type Advisor struct {
	runner         *runner.Runner
	sessionService session.Service
	userID         string
}

const systemPrompt = `
You are an AI advisor for the Vietnamese stock market (long only, no short selling).
Goal: Find stocks with strong momentum, healthy liquidity, and a confirmed uptrend.

# Workflow:
1. **Review the candidate**: momentum, liquidity and volume data are provided.
2. **Check Technicals (Tool)**: CALL "get_price_trend".
3. **Final Decision**:
   - **CRITICAL RULE 1**: If the tool reports insufficient data or very low trading value, IGNORE.
   - **CRITICAL RULE 2**: If the tool reports a DOWNTREND, IGNORE.

   - Momentum strong + Trend UPTREND/FLAT + Liquidity OK -> BUY
   - Otherwise -> IGNORE

Output JSON: {"ticker": string, "action": "BUY"|"IGNORE", "confidence": float, "reasoning": string}
`

// New builds the advisor: model, tool, agent, runner.
func New(ctx context.Context, apiKey string, source HistorySource) (*Advisor, error) {
	clientConfig := &genai.ClientConfig{APIKey: apiKey}
	model, err := gemini.NewModel(ctx, "gemini-2.5-pro", clientConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create model: %w", err)
	}

	trendToolInstance := &PriceTrendTool{Source: source}
	trendTool, err := functiontool.New(
		functiontool.Config{
			Name:        "get_price_trend",
			Description: "Get recent stock price trend, liquidity and volatility to filter out weak candidates.",
		},
		trendToolInstance.Execute,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create tool: %w", err)
	}

	advisorAgent, err := llmagent.New(llmagent.Config{
		Name:        "vn_advisor",
		Model:       model,
		Instruction: systemPrompt,
		Tools:       []tool.Tool{trendTool},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create agent: %w", err)
	}

	sessService := session.InMemoryService()
	r, err := runner.New(runner.Config{
		AppName:        appName,
		Agent:          advisorAgent,
		SessionService: sessService,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create runner: %w", err)
	}

	return &Advisor{
		runner:         r,
		sessionService: sessService,
		userID:         "system_advisor",
	}, nil
}

// Evaluate runs the agent on one screener candidate. Each call uses a
// fresh session so earlier tickers never leak into the context.
func (a *Advisor) Evaluate(ctx context.Context, candidate screener.HotStock, baseDate string) (*Evaluation, error) {
	sess, err := a.sessionService.Create(ctx, &session.CreateRequest{
		AppName: appName,
		UserID:  a.userID,
	})
	if err != nil {
		return nil, fmt.Errorf("session create error: %w", err)
	}
	defer a.sessionService.Delete(ctx, &session.DeleteRequest{SessionID: sess.Session.ID()})

	candidateSummary := fmt.Sprintf(
		"Change: %.2f%% | AvgValue: %.2fB VND | VolRatio: %.2f | Sector: %s",
		candidate.ChangePct, candidate.AvgValueBn, candidate.VolumeRatio, candidate.Sector,
	)
	userPrompt := fmt.Sprintf("Analyze Ticker: %s (Date: %s)\n%s\n", candidate.Ticker, baseDate, candidateSummary)

	events := a.runner.Run(
		ctx,
		a.userID,
		sess.Session.ID(),
		genai.NewContentFromText(userPrompt, genai.RoleUser),
		agent.RunConfig{StreamingMode: agent.StreamingModeNone},
	)

	var lastText string
	var toolOutput string
	for event, err := range events {
		if err != nil {
			return nil, fmt.Errorf("agent run error: %w", err)
		}
		if event.Content == nil {
			continue
		}
		for _, part := range event.Content.Parts {
			if part.Text != "" {
				lastText = part.Text
			}
			if part.FunctionResponse != nil {
				if val, ok := part.FunctionResponse.Response["analysis"]; ok {
					toolOutput = fmt.Sprintf("%v", val)
				} else {
					toolOutput = fmt.Sprintf("%v", part.FunctionResponse.Response)
				}
			}
		}
	}

	if lastText == "" {
		return nil, fmt.Errorf("agent returned no text response")
	}
	eval, err := parseJSONResponse(lastText)
	if err != nil {
		return nil, fmt.Errorf("json parse error: %w (raw: %s)", err, lastText)
	}

	eval.Ticker = candidate.Ticker
	eval.CandidateSummary = candidateSummary
	eval.TechnicalSummary = toolOutput
	return eval, nil
}

// parseJSONResponse pulls the JSON object out of a possibly
// markdown-fenced model reply.
func parseJSONResponse(text string) (*Evaluation, error) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start == -1 || end == -1 {
		return nil, fmt.Errorf("no json found in response: %s", text)
	}
	var eval Evaluation
	if err := json.Unmarshal([]byte(text[start:end+1]), &eval); err != nil {
		return nil, fmt.Errorf("json unmarshal error: %w", err)
	}
	return &eval, nil
}
