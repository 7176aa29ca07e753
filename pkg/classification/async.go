package classification

import (
	"context"

	"github.com/menta2k/image-classifier/pkg/types"
)

// Outcome is the result of an asynchronous classification:
// either Result is set or Err describes the failure.
type Outcome struct {
	Result *types.Classification
	Err    error
}

// ClassifyAsync runs Classify on a new goroutine. Exactly one Outcome is
// delivered on the returned channel, which is then closed.
func (c *Classifier) ClassifyAsync(ctx context.Context, imageB64 string) <-chan Outcome {
	out := make(chan Outcome, 1)
	go func() {
		defer close(out)
		result, err := c.Classify(ctx, imageB64)
		if err == nil && ctx.Err() != nil {
			result, err = nil, ctx.Err()
		}
		out <- Outcome{Result: result, Err: err}
	}()
	return out
}
