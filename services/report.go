package services

import (
	"fmt"
	"strings"

	"github.com/Spydiecy/Sniffle-Power/models"
)

// RunReport summarizes the analysis set after an enrichment pass.
type RunReport struct {
	TotalAnalyzed int
	AverageRisk   float64
	LowRisk       int // risk < 4
	MediumRisk    int // 4 <= risk < 7
	HighRisk      int // risk >= 7
	Best          *models.AnalysisResult
}

// GenerateReport computes the summary over the current result set.
func GenerateReport(results []models.AnalysisResult) *RunReport {
	report := &RunReport{TotalAnalyzed: len(results)}
	if len(results) == 0 {
		return report
	}

	var totalRisk float64
	for i := range results {
		r := &results[i]
		totalRisk += r.Risk
		switch {
		case r.Risk < 4:
			report.LowRisk++
		case r.Risk < 7:
			report.MediumRisk++
		default:
			report.HighRisk++
		}
		if report.Best == nil || r.Overall > report.Best.Overall {
			report.Best = r
		}
	}
	report.AverageRisk = totalRisk / float64(len(results))
	return report
}

// PrintReport writes the summary to stdout.
func PrintReport(r *RunReport) {
	sep := strings.Repeat("═", 54)
	thin := strings.Repeat("─", 54)

	fmt.Printf("\n\033[1;35m%s\033[0m\n", sep)
	fmt.Printf("\033[1;35m  MEMECOIN ANALYSIS SUMMARY\033[0m\n")
	fmt.Printf("\033[1;35m%s\033[0m\n\n", sep)

	fmt.Printf("  Tokens analyzed : \033[1m%d\033[0m\n", r.TotalAnalyzed)
	if r.TotalAnalyzed == 0 {
		fmt.Printf("\n\033[1;35m%s\033[0m\n\n", sep)
		return
	}

	fmt.Printf("  Average risk    : \033[1m%.2f\033[0m\n\n", r.AverageRisk)

	fmt.Printf("\033[1;33m  Risk Distribution\033[0m\n")
	fmt.Printf("  %s\n", thin)
	fmt.Printf("  Low    (<4)  : \033[1;32m%d\033[0m\n", r.LowRisk)
	fmt.Printf("  Medium (4-7) : \033[1;33m%d\033[0m\n", r.MediumRisk)
	fmt.Printf("  High   (>=7) : \033[1;31m%d\033[0m\n", r.HighRisk)

	if r.Best != nil {
		fmt.Printf("\n\033[1;33m  Best Token\033[0m\n")
		fmt.Printf("  %s\n", thin)
		fmt.Printf("  %s — overall \033[1;32m%d\033[0m, risk %.1f, potential %.1f\n",
			r.Best.Symbol, r.Best.Overall, r.Best.Risk, r.Best.InvestmentPotential)
		fmt.Printf("  %s\n", truncate(r.Best.Rationale, 100))
	}

	fmt.Printf("\n\033[1;35m%s\033[0m\n\n", sep)
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
