package imagegen

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log"

	"github.com/lox/weatherdash/internal/forecast"
	"github.com/lox/weatherdash/internal/metrics"
	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

// Generator handles backdrop image generation using OpenAI's API.
type Generator struct {
	client openai.Client
	model  string
}

// NewGenerator creates a new image generator. Extra options are passed to
// the OpenAI client.
func NewGenerator(apiKey string, opts ...option.RequestOption) (*Generator, error) {
	if apiKey == "" {
		return nil, errors.New("openai api key not set")
	}

	client := openai.NewClient(
		append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)...,
	)

	return &Generator{
		client: client,
		model:  "gpt-image-1",
	}, nil
}

// Generate creates a backdrop for the given condition and time of day.
// Returns the image as PNG bytes.
func (g *Generator) Generate(ctx context.Context, condition forecast.WeatherCondition, tod forecast.TimeOfDay) ([]byte, error) {
	prompt := forecast.BuildPromptWithTime(condition, tod)
	fullCondition := forecast.ConditionWithTime(condition, tod)

	log.Printf("imagegen: generating backdrop for %s", fullCondition)

	data, err := g.generate(ctx, prompt)
	if err != nil {
		metrics.ImagesGenerated.WithLabelValues("error").Inc()
		return nil, err
	}
	metrics.ImagesGenerated.WithLabelValues("ok").Inc()

	log.Printf("imagegen: generated backdrop for %s (%d bytes)", fullCondition, len(data))
	return data, nil
}

func (g *Generator) generate(ctx context.Context, prompt string) ([]byte, error) {
	resp, err := g.client.Images.Generate(ctx, openai.ImageGenerateParams{
		Model:        g.model,
		Prompt:       prompt,
		Size:         openai.ImageGenerateParamsSize1536x1024,
		Quality:      openai.ImageGenerateParamsQualityLow,
		OutputFormat: openai.ImageGenerateParamsOutputFormatPNG,
	})
	if err != nil {
		return nil, fmt.Errorf("image generation failed: %w", err)
	}

	if len(resp.Data) == 0 {
		return nil, errors.New("no image data returned")
	}

	imageData := resp.Data[0].B64JSON
	if imageData == "" {
		return nil, errors.New("empty image data returned")
	}

	imageBytes, err := base64.StdEncoding.DecodeString(imageData)
	if err != nil {
		return nil, fmt.Errorf("failed to decode image data: %w", err)
	}
	return imageBytes, nil
}
