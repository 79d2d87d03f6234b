package llm

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/document"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	"github.com/google/uuid"

	"github.com/shannon-ai/shannon/internal/model"
)

// BedrockProvider implements Provider against AWS Bedrock's Converse API,
// targeting Bedrock-hosted Claude models as a third native tool-use
// backend alongside the direct Anthropic and OpenAI providers.
type BedrockProvider struct {
	client       *bedrockruntime.Client
	defaultModel string
}

// BedrockConfig configures a BedrockProvider.
type BedrockConfig struct {
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string
	DefaultModel    string
}

// NewBedrockProvider constructs a Provider backed by AWS Bedrock's
// Converse API.
func NewBedrockProvider(ctx context.Context, cfg BedrockConfig) (*BedrockProvider, error) {
	if cfg.Region == "" {
		cfg.Region = "us-east-1"
	}
	if cfg.DefaultModel == "" {
		cfg.DefaultModel = "anthropic.claude-3-5-sonnet-20241022-v2:0"
	}

	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.AccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, cfg.SessionToken)))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("llm: bedrock: load aws config: %w", err)
	}
	return &BedrockProvider{
		client:       bedrockruntime.NewFromConfig(awsCfg),
		defaultModel: cfg.DefaultModel,
	}, nil
}

func (p *BedrockProvider) Name() string        { return "bedrock" }
func (p *BedrockProvider) SupportsTools() bool { return true }

func (p *BedrockProvider) model(req Request) string {
	if req.Model != "" {
		return req.Model
	}
	return p.defaultModel
}

func convertBedrockMessages(messages []Message) []types.Message {
	var out []types.Message
	for _, m := range messages {
		var blocks []types.ContentBlock
		if m.Content != "" {
			blocks = append(blocks, &types.ContentBlockMemberText{Value: m.Content})
		}
		for _, tc := range m.ToolCalls {
			input, _ := json.Marshal(tc.Arguments)
			var doc map[string]any
			_ = json.Unmarshal(input, &doc)
			blocks = append(blocks, &types.ContentBlockMemberToolUse{
				Value: types.ToolUseBlock{ToolUseId: &tc.ID, Name: &tc.Name, Input: document.NewLazyDocument(doc)},
			})
		}
		for _, tr := range m.ToolResults {
			content := []types.ToolResultContentBlock{&types.ToolResultContentBlockMemberText{Value: tr.Output}}
			status := types.ToolResultStatusSuccess
			if !tr.Success {
				status = types.ToolResultStatusError
				content = []types.ToolResultContentBlock{&types.ToolResultContentBlockMemberText{Value: tr.Error}}
			}
			blocks = append(blocks, &types.ContentBlockMemberToolResult{
				Value: types.ToolResultBlock{ToolUseId: &tr.ToolCallID, Content: content, Status: status},
			})
		}
		if len(blocks) == 0 {
			continue
		}
		role := types.ConversationRoleUser
		if m.Role == "assistant" {
			role = types.ConversationRoleAssistant
		}
		out = append(out, types.Message{Role: role, Content: blocks})
	}
	return out
}

func convertBedrockTools(specs []ToolSpec) *types.ToolConfiguration {
	if len(specs) == 0 {
		return nil
	}
	var tools []types.Tool
	for _, s := range specs {
		tools = append(tools, &types.ToolMemberToolSpec{
			Value: types.ToolSpecification{
				Name:        &s.Name,
				Description: &s.Description,
				InputSchema: &types.ToolInputSchemaMemberJson{Value: document.NewLazyDocument(s.Parameters)},
			},
		})
	}
	return &types.ToolConfiguration{Tools: tools}
}

// Complete sends a non-streaming Converse request.
func (p *BedrockProvider) Complete(ctx context.Context, req Request) (Response, error) {
	in := &bedrockruntime.ConverseInput{
		ModelId:  aws.String(p.model(req)),
		Messages: convertBedrockMessages(req.Messages),
	}
	if req.System != "" {
		in.System = []types.SystemContentBlock{&types.SystemContentBlockMemberText{Value: req.System}}
	}
	if tools := convertBedrockTools(req.Tools); tools != nil {
		in.ToolConfig = tools
	}
	maxTokens := int32(req.MaxTokens)
	if maxTokens <= 0 {
		maxTokens = 4096
	}
	temp := req.Temperature
	in.InferenceConfig = &types.InferenceConfiguration{MaxTokens: &maxTokens, Temperature: &temp}

	out, err := p.client.Converse(ctx, in)
	if err != nil {
		return Response{}, fmt.Errorf("llm: bedrock: %w", err)
	}

	resp := Response{StopReason: string(out.StopReason)}
	if out.Usage != nil {
		resp.InputTokens = int(*out.Usage.InputTokens)
		resp.OutputTokens = int(*out.Usage.OutputTokens)
	}
	msg, ok := out.Output.(*types.ConverseOutputMemberMessage)
	if !ok {
		return resp, nil
	}
	for _, block := range msg.Value.Content {
		switch v := block.(type) {
		case *types.ContentBlockMemberText:
			resp.Text += v.Value
		case *types.ContentBlockMemberToolUse:
			id := uuid.NewString()
			if v.Value.ToolUseId != nil {
				id = *v.Value.ToolUseId
			}
			name := ""
			if v.Value.Name != nil {
				name = *v.Value.Name
			}
			var args map[string]any
			_ = v.Value.Input.UnmarshalSmithyDocument(&args)
			resp.ToolCalls = append(resp.ToolCalls, model.ToolCall{ID: id, Name: name, Arguments: args})
		}
	}
	return resp, nil
}

// CountTokens approximates Bedrock Claude's tokenizer the same way the
// direct Anthropic provider does.
func (p *BedrockProvider) CountTokens(text string) int {
	return (len(text) + 3) / 4
}
