package reasoning

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	openai "github.com/sashabaranov/go-openai"

	"github.com/cloudtriage/cloudtriage/internal/dispatch"
	"github.com/cloudtriage/cloudtriage/internal/session"
)

// Control tools let the model express the non-invoke decision variants
// through the same function-calling channel as diagnostic actions.
const (
	toolRequestInput = "request_user_input"
	toolConclude     = "conclude_analysis"
	toolAbandon      = "abandon_analysis"
)

// OpenAIReasoner proposes next steps via the OpenAI chat completions API
// with function calling.
type OpenAIReasoner struct {
	client *openai.Client
	model  string
	logger *slog.Logger
}

// NewOpenAIReasoner creates a reasoner using the given API key and model.
func NewOpenAIReasoner(apiKey, model string, logger *slog.Logger) *OpenAIReasoner {
	if logger == nil {
		logger = slog.Default()
	}
	return &OpenAIReasoner{
		client: openai.NewClient(apiKey),
		model:  model,
		logger: logger,
	}
}

// ProposeNextStep implements Reasoner.
func (r *OpenAIReasoner) ProposeNextStep(ctx context.Context, s *session.DebugSession, actions []dispatch.Definition) (Decision, error) {
	req := openai.ChatCompletionRequest{
		Model: r.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt(actions)},
			{Role: openai.ChatMessageRoleUser, Content: userPrompt(s)},
		},
		Tools: buildTools(actions),
	}

	resp, err := r.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return Decision{}, fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return Decision{}, fmt.Errorf("%w: no choices returned", ErrUnparseable)
	}

	msg := resp.Choices[0].Message
	r.logger.DebugContext(ctx, "reasoner responded",
		"trace_id", s.TraceID,
		"tool_calls", len(msg.ToolCalls),
		"finish_reason", resp.Choices[0].FinishReason,
	)

	return parseMessage(msg)
}

// buildTools converts the action definitions plus the control tools into
// the wire tool format.
func buildTools(actions []dispatch.Definition) []openai.Tool {
	tools := make([]openai.Tool, 0, len(actions)+3)
	for _, def := range actions {
		fn := &openai.FunctionDefinition{
			Name:        def.Name,
			Description: def.Description,
		}
		if def.Schema != nil {
			fn.Parameters = def.Schema
		}
		tools = append(tools, openai.Tool{Type: openai.ToolTypeFunction, Function: fn})
	}

	tools = append(tools,
		stringParamTool(toolRequestInput, "Ask the user for information the investigation needs", "question", "What to ask the user"),
		stringParamTool(toolConclude, "Declare the investigation concluded, with the root cause and remediation steps", "summary", "Root cause and remediation steps"),
		stringParamTool(toolAbandon, "Declare the investigation exhausted without a result", "reason", "Why no further progress is possible"),
	)
	return tools
}

func stringParamTool(name, description, param, paramDesc string) openai.Tool {
	return openai.Tool{
		Type: openai.ToolTypeFunction,
		Function: &openai.FunctionDefinition{
			Name:        name,
			Description: description,
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					param: map[string]any{"type": "string", "description": paramDesc},
				},
				"required": []string{param},
			},
		},
	}
}

// parseMessage maps a completion message onto a Decision. A tool call
// wins over content; plain content is treated as a conclusion, matching
// how models signal completion when they stop calling tools.
func parseMessage(msg openai.ChatCompletionMessage) (Decision, error) {
	if len(msg.ToolCalls) > 0 {
		call := msg.ToolCalls[0]
		if call.Function.Name == "" {
			return Decision{}, fmt.Errorf("%w: tool call without a function name", ErrUnparseable)
		}

		args := map[string]any{}
		if call.Function.Arguments != "" {
			if err := json.Unmarshal([]byte(call.Function.Arguments), &args); err != nil {
				return Decision{}, fmt.Errorf("%w: bad tool arguments: %v", ErrUnparseable, err)
			}
		}

		switch call.Function.Name {
		case toolRequestInput:
			question, _ := args["question"].(string)
			if question == "" {
				return Decision{}, fmt.Errorf("%w: %s without a question", ErrUnparseable, toolRequestInput)
			}
			return Decision{Kind: DecisionRequestInfo, Question: question}, nil
		case toolConclude:
			summary, _ := args["summary"].(string)
			if summary == "" {
				return Decision{}, fmt.Errorf("%w: %s without a summary", ErrUnparseable, toolConclude)
			}
			return Decision{Kind: DecisionConclude, Summary: summary}, nil
		case toolAbandon:
			reason, _ := args["reason"].(string)
			if reason == "" {
				return Decision{}, fmt.Errorf("%w: %s without a reason", ErrUnparseable, toolAbandon)
			}
			return Decision{Kind: DecisionExhausted, Reason: reason}, nil
		default:
			return Decision{Kind: DecisionInvoke, Action: call.Function.Name, Params: args, Rationale: msg.Content}, nil
		}
	}

	if msg.Content != "" {
		return Decision{Kind: DecisionConclude, Summary: msg.Content}, nil
	}
	return Decision{}, fmt.Errorf("%w: neither tool call nor content", ErrUnparseable)
}
