package coordinator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"labbroker/pkg/model"
)

var ErrNoRequest = errors.New("no structured request found in text")

// IntentExtractor turns free text into a structured request.
type IntentExtractor interface {
	Extract(ctx context.Context, text string) (*model.StructuredRequest, error)
}

type ExtractorFunc func(ctx context.Context, text string) (*model.StructuredRequest, error)

func (f ExtractorFunc) Extract(ctx context.Context, text string) (*model.StructuredRequest, error) {
	return f(ctx, text)
}

// JSONExtractor decodes the first JSON object embedded in the text, the
// shape a language model is asked to answer with.
type JSONExtractor struct{}

func (JSONExtractor) Extract(ctx context.Context, text string) (*model.StructuredRequest, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	start := strings.IndexByte(text, '{')
	if start < 0 {
		return nil, ErrNoRequest
	}

	var req model.StructuredRequest
	dec := json.NewDecoder(strings.NewReader(text[start:]))
	if err := dec.Decode(&req); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoRequest, err)
	}
	req.ApplyDefaults()
	return &req, nil
}
