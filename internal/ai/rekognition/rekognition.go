// Package rekognition analyzes drawings with AWS Rekognition: label
// detection for scoring and moderation-label detection for content policy.
package rekognition

import (
	"context"
	"fmt"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/rekognition"
	"github.com/aws/aws-sdk-go-v2/service/rekognition/types"
	"github.com/rs/zerolog"
	"github.com/samber/lo"

	"github.com/sketchdash/sketchdash/internal/ai"
)

const (
	maxLabels               = 20
	labelMinConfidence      = 30
	moderationMinConfidence = 60
)

type Client struct {
	rek *rekognition.Client
	log zerolog.Logger
	// failOpen treats a failed moderation call as appropriate content, so a
	// Rekognition outage degrades scoring instead of blocking submissions.
	failOpen bool
}

func New(ctx context.Context, region string, failOpen bool, log zerolog.Logger) (*Client, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("loading aws config: %w", err)
	}
	return &Client{rek: rekognition.NewFromConfig(cfg), log: log, failOpen: failOpen}, nil
}

// Analyze runs label detection and moderation concurrently. Label failures
// always degrade to an empty list; moderation failures degrade to
// "appropriate" only when failOpen is set, otherwise the error is returned.
func (c *Client) Analyze(ctx context.Context, image []byte) (ai.Analysis, error) {
	var (
		wg          sync.WaitGroup
		labels      []string
		labelErr    error
		appropriate bool
		modErr      error
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		labels, labelErr = c.detectLabels(ctx, image)
	}()
	go func() {
		defer wg.Done()
		appropriate, modErr = c.moderate(ctx, image)
	}()
	wg.Wait()

	if labelErr != nil {
		c.log.Error().Err(labelErr).Msg("label detection failed")
		labels = []string{}
	}
	if modErr != nil {
		if !c.failOpen {
			return ai.Analysis{}, fmt.Errorf("moderating content: %w", modErr)
		}
		c.log.Error().Err(modErr).Msg("moderation failed, assuming appropriate")
		appropriate = true
	}
	return ai.Analysis{Labels: labels, IsAppropriate: appropriate}, nil
}

func (c *Client) detectLabels(ctx context.Context, image []byte) ([]string, error) {
	out, err := c.rek.DetectLabels(ctx, &rekognition.DetectLabelsInput{
		Image:         &types.Image{Bytes: image},
		MaxLabels:     aws.Int32(maxLabels),
		MinConfidence: aws.Float32(labelMinConfidence),
	})
	if err != nil {
		return nil, err
	}
	return lo.Map(out.Labels, func(l types.Label, _ int) string {
		return aws.ToString(l.Name)
	}), nil
}

func (c *Client) moderate(ctx context.Context, image []byte) (bool, error) {
	out, err := c.rek.DetectModerationLabels(ctx, &rekognition.DetectModerationLabelsInput{
		Image:         &types.Image{Bytes: image},
		MinConfidence: aws.Float32(moderationMinConfidence),
	})
	if err != nil {
		return false, err
	}
	return len(out.ModerationLabels) == 0, nil
}
