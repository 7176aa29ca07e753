package client

import (
	"context"

	"github.com/menta2k/image-classifier/pkg/types"
)

type VisionClient interface {
	SimpleQuery(ctx context.Context, model, prompt, imgB64 string) (string, error)
	Classify(ctx context.Context, model, prompt, imgB64 string) ([]types.Category, error)
}
