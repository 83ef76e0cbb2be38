package services

import (
	"math"
	"math/rand"
	"sort"

	"github.com/Spydiecy/Sniffle-Power/models"
)

// Fundamental risk is the rule-based contribution derived from liquidity,
// volume, age and 24h volatility. Each factor lands in one of three brackets
// and contributes a bounded penalty; the top bracket of every factor is
// worth maxFactorPenalty.
const maxFactorPenalty = 1.0

const (
	minRisk = 1.0
	maxRisk = 10.0
)

// LiquidityPenalty brackets pool liquidity in USD.
func LiquidityPenalty(usd float64) float64 {
	switch {
	case usd < 5_000:
		return maxFactorPenalty
	case usd < 25_000:
		return 0.5
	case usd < 100_000:
		return 0.25
	default:
		return 0
	}
}

// VolumePenalty brackets 24h trade volume in USD.
func VolumePenalty(usd float64) float64 {
	switch {
	case usd < 1_000:
		return maxFactorPenalty
	case usd < 10_000:
		return 0.5
	case usd < 50_000:
		return 0.25
	default:
		return 0
	}
}

// AgePenalty brackets pair age: the younger the pair, the higher the risk.
// Unknown age (zero duration) takes the top bracket.
func AgePenalty(age float64) float64 {
	const hour = 1.0
	switch {
	case age < 6*hour:
		return maxFactorPenalty
	case age < 24*hour:
		return 0.5
	case age < 7*24*hour:
		return 0.25
	default:
		return 0
	}
}

// VolatilityPenalty brackets the absolute 24h percentage change.
func VolatilityPenalty(change24h float64) float64 {
	abs := math.Abs(change24h)
	switch {
	case abs >= 200:
		return maxFactorPenalty
	case abs >= 100:
		return 0.5
	case abs >= 50:
		return 0.25
	default:
		return 0
	}
}

// FundamentalRisk sums the four factor penalties for a token record.
func FundamentalRisk(rec *models.TokenRecord) float64 {
	ageHours := ParseAge(rec.Age).Hours()
	return LiquidityPenalty(ParseMoney(rec.Liquidity)) +
		VolumePenalty(ParseMoney(rec.Volume)) +
		AgePenalty(ageHours) +
		VolatilityPenalty(ParseChange(rec.Change24h))
}

// CombineRisk merges the model's risk score with the fundamental-risk
// adjustment and clamps to the valid range.
func CombineRisk(modelRisk float64, rec *models.TokenRecord) float64 {
	return clampRisk(modelRisk + FundamentalRisk(rec))
}

func clampRisk(v float64) float64 {
	return math.Min(maxRisk, math.Max(minRisk, v))
}

// RiskNormalizer rescales risk scores across a result set before persisting.
// The exact scale semantics (absolute vs. relative-to-batch) is a policy
// choice selected by configuration.
type RiskNormalizer interface {
	Normalize(results []models.AnalysisResult)
}

// AbsoluteNormalizer keeps model-reported risk as-is, only clamping to the
// valid range.
type AbsoluteNormalizer struct{}

// Normalize clamps every risk score to [1, 10].
func (AbsoluteNormalizer) Normalize(results []models.AnalysisResult) {
	for i := range results {
		results[i].Risk = clampRisk(results[i].Risk)
	}
}

// RelativeNormalizer min-max stretches risk scores to the full 1–10 range so
// they read as relative within the batch, with a small jitter to avoid
// visually identical ties.
type RelativeNormalizer struct {
	rng *rand.Rand
}

// NewRelativeNormalizer creates a RelativeNormalizer with the given random
// source (injectable for deterministic tests).
func NewRelativeNormalizer(rng *rand.Rand) *RelativeNormalizer {
	return &RelativeNormalizer{rng: rng}
}

// Normalize rescales in place. Batches of size < 2 or with identical scores
// are clamped only — there is no spread to stretch.
func (n *RelativeNormalizer) Normalize(results []models.AnalysisResult) {
	if len(results) < 2 {
		AbsoluteNormalizer{}.Normalize(results)
		return
	}

	lo, hi := results[0].Risk, results[0].Risk
	for _, r := range results[1:] {
		if r.Risk < lo {
			lo = r.Risk
		}
		if r.Risk > hi {
			hi = r.Risk
		}
	}
	if hi == lo {
		AbsoluteNormalizer{}.Normalize(results)
		return
	}

	for i := range results {
		stretched := minRisk + (results[i].Risk-lo)/(hi-lo)*(maxRisk-minRisk)
		jitter := (n.rng.Float64() - 0.5) * 0.3
		results[i].Risk = clampRisk(stretched + jitter)
	}
}

// NewNormalizer returns the normalizer selected by the config mode string.
func NewNormalizer(mode string, rng *rand.Rand) RiskNormalizer {
	if mode == "absolute" {
		return AbsoluteNormalizer{}
	}
	return NewRelativeNormalizer(rng)
}

// SortResults orders results by ascending risk, tie-broken by descending
// investment potential.
func SortResults(results []models.AnalysisResult) {
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Risk != results[j].Risk {
			return results[i].Risk < results[j].Risk
		}
		return results[i].InvestmentPotential > results[j].InvestmentPotential
	})
}
