package benchmarks

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"sealdeal-backend/internal/shared/telemetry"
	"sealdeal-backend/internal/users"
)

// RoleChecker is satisfied by users.Service.
type RoleChecker interface {
	EnsureHasRole(ctx context.Context, userID, required string) error
}

// AddInput is the payload accepted for a new benchmark.
type AddInput struct {
	Industry    string   `json:"industry" validate:"required"`
	Stage       string   `json:"stage" validate:"required"`
	ARR         *float64 `json:"arr" validate:"required"`
	MRR         *float64 `json:"mrr"`
	CAC         *float64 `json:"cac"`
	LTV         *float64 `json:"ltv"`
	LTVCACRatio *float64 `json:"ltv_cac_ratio"`
	GrossMargin *float64 `json:"gross_margin"`
}

type Service struct {
	Repo     Repo
	Roles    RoleChecker
	Now      func() time.Time
	validate *validator.Validate
}

func NewService(repo Repo, roles RoleChecker) *Service {
	return &Service{Repo: repo, Roles: roles, Now: time.Now, validate: validator.New()}
}

// Add stores a benchmark for a caller holding benchmarking_admin or admin.
func (s *Service) Add(ctx context.Context, callerID string, in AddInput) (Benchmark, error) {
	if err := s.Roles.EnsureHasRole(ctx, callerID, users.RoleBenchmarkingAdmin); err != nil {
		return Benchmark{}, err
	}
	in.Industry = strings.TrimSpace(in.Industry)
	in.Stage = strings.TrimSpace(in.Stage)
	if err := s.validate.Struct(in); err != nil {
		return Benchmark{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	b := Benchmark{
		ID:          uuid.NewString(),
		Industry:    in.Industry,
		Stage:       in.Stage,
		ARR:         *in.ARR,
		MRR:         in.MRR,
		CAC:         in.CAC,
		LTV:         in.LTV,
		LTVCACRatio: in.LTVCACRatio,
		GrossMargin: in.GrossMargin,
		AddedBy:     callerID,
		CreatedAt:   s.Now().UTC(),
	}
	if r := DeriveRatio(b.LTV, b.CAC); r != nil {
		b.LTVCACRatio = r
	}
	if err := s.Repo.Add(ctx, b); err != nil {
		return Benchmark{}, err
	}
	telemetry.Info("benchmark.added", map[string]any{"benchmark_id": b.ID, "user_id": callerID, "industry": b.Industry})
	return b, nil
}

// List returns peer rows for an industry, defaulting to SaaS and 10 rows.
func (s *Service) List(ctx context.Context, industry string, limit int) ([]Benchmark, error) {
	if strings.TrimSpace(industry) == "" {
		industry = DefaultIndustry
	}
	if limit <= 0 || limit > 100 {
		limit = 10
	}
	return s.Repo.ListByIndustry(ctx, industry, limit)
}
