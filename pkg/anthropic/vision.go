package anthropic

import (
	"context"

	"github.com/rotisserie/eris"
)

// VisionReply is the raw outcome of one image-plus-prompt call.
type VisionReply struct {
	Text         string
	Model        string
	InputTokens  int64
	OutputTokens int64
}

// Vision sends a single image URL with an instruction prompt to a vision model.
type Vision struct {
	client    Client
	model     string
	maxTokens int64
}

// NewVision creates a Vision caller for the given model.
func NewVision(client Client, model string, maxTokens int64) *Vision {
	if maxTokens <= 0 {
		maxTokens = 4096
	}
	return &Vision{client: client, model: model, maxTokens: maxTokens}
}

// Model returns the configured model identifier.
func (v *Vision) Model() string { return v.model }

// Extract runs the prompt against the image and returns the reply text with
// token usage.
func (v *Vision) Extract(ctx context.Context, imageURL, prompt string) (*VisionReply, error) {
	if imageURL == "" {
		return nil, eris.New("anthropic: vision requires an image url")
	}

	resp, err := v.client.CreateMessage(ctx, MessageRequest{
		Model:     v.model,
		MaxTokens: v.maxTokens,
		Messages: []Message{
			{Role: "user", Content: prompt, ImageURL: imageURL},
		},
	})
	if err != nil {
		return nil, eris.Wrap(err, "anthropic: vision extract")
	}

	model := resp.Model
	if model == "" {
		model = v.model
	}
	return &VisionReply{
		Text:         resp.Text(),
		Model:        model,
		InputTokens:  resp.Usage.InputTokens,
		OutputTokens: resp.Usage.OutputTokens,
	}, nil
}
