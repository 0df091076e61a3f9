package app

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/fd1az/mev-bundler/business/opportunity/domain"
)

// Evaluator runs the per-opportunity stages in order: factors, cost, score.
// Cost depends on the Competition factor and the score on the final cost, so
// the order is fixed.
type Evaluator struct {
	assessor *FactorAssessor
	costs    *CostEstimator
	scorer   *RiskScorer
	tracer   trace.Tracer
}

// NewEvaluator creates an evaluator.
func NewEvaluator(assessor *FactorAssessor, costs *CostEstimator, scorer *RiskScorer) *Evaluator {
	return &Evaluator{
		assessor: assessor,
		costs:    costs,
		scorer:   scorer,
		tracer:   scorer.tracer,
	}
}

// Evaluate assesses, prices and scores opp.
func (e *Evaluator) Evaluate(ctx context.Context, opp *domain.Opportunity) {
	ctx, span := e.tracer.Start(ctx, "opportunity.evaluate",
		trace.WithAttributes(
			attribute.String("id", opp.ID),
			attribute.String("kind", string(opp.Kind)),
		))
	defer span.End()

	e.assessor.Assess(opp)
	opp.ApplyCost(e.costs.Estimate(opp))
	score := e.scorer.Score(ctx, opp)

	span.SetAttributes(
		attribute.Float64("risk", score),
		attribute.String("net", opp.NetProfit().String()),
	)
	span.SetStatus(codes.Ok, "")
}

// Costs exposes the estimator for bundle pricing.
func (e *Evaluator) Costs() *CostEstimator { return e.costs }
