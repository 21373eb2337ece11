package provider

import (
	"context"
	"errors"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/responses"
)

const defaultOpenAIModel = "gpt-4.1-mini"

// OpenAI generates chapters through the Responses API with a strict JSON schema.
type OpenAI struct {
	client    *openai.Client
	model     string
	maxOutput int64
	retry     RetryPolicy
}

// NewOpenAI creates an OpenAI generator.
func NewOpenAI(apiKey, model string, maxOutput int64, retry RetryPolicy, opts ...option.RequestOption) *OpenAI {
	if model == "" {
		model = defaultOpenAIModel
	}
	if maxOutput <= 0 {
		maxOutput = 8000
	}
	opts = append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)
	client := openai.NewClient(opts...)
	return &OpenAI{client: &client, model: model, maxOutput: maxOutput, retry: retry}
}

func (o *OpenAI) Name() string { return "openai" }

func (o *OpenAI) Generate(ctx context.Context, req Request) (*Response, error) {
	if o.client == nil {
		return nil, errors.New("openai: client is nil")
	}

	params := responses.ResponseNewParams{
		Model:           o.model,
		MaxOutputTokens: openai.Int(o.maxOutput),
		Instructions:    openai.String(req.System),
		Input: responses.ResponseNewParamsInputUnion{
			OfInputItemList: []responses.ResponseInputItemUnionParam{
				responses.ResponseInputItemParamOfMessage(req.Prompt, responses.EasyInputMessageRoleUser),
			},
		},
		Text: responses.ResponseTextConfigParam{
			Format: responses.ResponseFormatTextConfigUnionParam{
				OfJSONSchema: &responses.ResponseFormatTextJSONSchemaConfigParam{
					Name:        "Chapter",
					Schema:      chapterSchema,
					Strict:      openai.Bool(true),
					Description: openai.String("Generated chapter with narrative thread annotations"),
					Type:        "json_schema",
				},
			},
		},
	}

	var resp *responses.Response
	err := o.retry.Do(ctx, func(ctx context.Context) error {
		var err error
		resp, err = o.client.Responses.New(ctx, params)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("openai generate %s: %w", req.CacheKey, err)
	}

	var out ChapterOutput
	if err := decodeOutput(resp.OutputText(), &out); err != nil {
		return nil, fmt.Errorf("openai decode %s: %w", req.CacheKey, err)
	}
	return &Response{Chapter: toChapter(req, out), Provider: o.Name()}, nil
}
