// Package profiling describes the shape of a return series: moments,
// quantiles, a normality test and lag-1 autocorrelation. Heavy tails and
// serial dependence are what make the block bootstrap necessary, so the
// profile travels with every verdict.
package profiling

import (
	"fmt"
	"math"

	"github.com/montanaflynn/stats"
	"gonum.org/v1/gonum/stat/distuv"

	domainStats "overfitguard/domain/stats"
)

// MinObservations is the smallest series the analyzer accepts.
const MinObservations = 4

// NormalityAlpha is the Jarque-Bera rejection level.
const NormalityAlpha = 0.05

// zeroVariance treats rounding noise in a constant series as no variance.
const zeroVariance = 1e-12

// DistributionAnalyzer handles distribution shape analysis
type DistributionAnalyzer struct{}

// NewDistributionAnalyzer creates a new distribution analyzer
func NewDistributionAnalyzer() *DistributionAnalyzer {
	return &DistributionAnalyzer{}
}

// AnalyzeDistribution profiles data, which must be finite.
func (da *DistributionAnalyzer) AnalyzeDistribution(data []float64) (domainStats.SeriesProfile, error) {
	var profile domainStats.SeriesProfile
	if len(data) < MinObservations {
		return profile, fmt.Errorf("profile needs %d observations, got %d", MinObservations, len(data))
	}

	mean, err := stats.Mean(data)
	if err != nil {
		return profile, err
	}
	stdDev, err := stats.StandardDeviationSample(data)
	if err != nil {
		return profile, err
	}
	min, err := stats.Min(data)
	if err != nil {
		return profile, err
	}
	max, err := stats.Max(data)
	if err != nil {
		return profile, err
	}
	median, err := stats.Median(data)
	if err != nil {
		return profile, err
	}

	// Quartiles for IQR-based outlier detection
	q25, err := stats.Percentile(data, 25)
	if err != nil {
		return profile, err
	}
	q75, err := stats.Percentile(data, 75)
	if err != nil {
		return profile, err
	}

	profile.Count = len(data)
	profile.Mean = mean
	profile.StdDev = stdDev
	profile.Min = min
	profile.Max = max
	profile.Median = median
	profile.Q25 = q25
	profile.Q75 = q75
	profile.Outliers = detectOutliers(data, q25, q75)

	if stdDev < zeroVariance {
		// shape statistics are undefined for a constant series
		return profile, nil
	}

	skewness, kurtosis := moments(data, mean)
	profile.Skewness = skewness
	profile.Kurtosis = kurtosis
	profile.JarqueBera, profile.NormalP = jarqueBera(len(data), skewness, kurtosis)
	profile.IsNormal = profile.NormalP > NormalityAlpha

	if ac, err := stats.AutoCorrelation(data, 1); err == nil {
		profile.Lag1AC = ac
	}
	return profile, nil
}

// moments returns the population skewness g1 and excess kurtosis g2.
func moments(data []float64, mean float64) (skewness, kurtosis float64) {
	n := float64(len(data))
	var m2, m3, m4 float64
	for _, x := range data {
		d := x - mean
		d2 := d * d
		m2 += d2
		m3 += d2 * d
		m4 += d2 * d2
	}
	m2 /= n
	m3 /= n
	m4 /= n
	return m3 / math.Pow(m2, 1.5), m4/(m2*m2) - 3
}

// jarqueBera is n/6 (S^2 + K^2/4) with its chi-square(2) upper tail.
func jarqueBera(n int, skewness, excessKurtosis float64) (statistic, pValue float64) {
	statistic = float64(n) / 6 * (skewness*skewness + excessKurtosis*excessKurtosis/4)
	pValue = 1 - distuv.ChiSquared{K: 2}.CDF(statistic)
	return statistic, pValue
}

// detectOutliers counts values outside the 1.5 IQR fences
func detectOutliers(data []float64, q25, q75 float64) int {
	iqr := q75 - q25
	lowerBound := q25 - 1.5*iqr
	upperBound := q75 + 1.5*iqr

	outlierCount := 0
	for _, x := range data {
		if x < lowerBound || x > upperBound {
			outlierCount++
		}
	}
	return outlierCount
}
