package benchmarks

import (
	"context"
	"errors"
)

var ErrInvalidInput = errors.New("invalid input")

// DefaultIndustry is the peer group used for analysis context.
const DefaultIndustry = "SaaS"

type Repo interface {
	Add(ctx context.Context, b Benchmark) error
	// ListByIndustry returns up to limit rows, newest first.
	ListByIndustry(ctx context.Context, industry string, limit int) ([]Benchmark, error)
}
