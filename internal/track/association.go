package track

import (
	"fmt"
	"math"
)

// Hypothesis is a gated candidate measurement for the current
// prediction, carrying its gating distance and association weight.
type Hypothesis struct {
	Measurement Measurement
	// Distance2 is the squared Mahalanobis distance to the predicted
	// measurement.
	Distance2 float64
	// Likelihood is exp(-Distance2/2). The Gaussian normalisation
	// constant is deliberately omitted: the value ranks candidates but
	// is not a probability and must not be reported as one.
	Likelihood float64
	// Probability is the likelihood normalised across the gated set.
	Probability float64
}

// Associate gates every measurement in the scan against the filter's
// current prediction, weights the survivors, and selects the best
// hypothesis. It returns the selected hypothesis (nil when nothing
// passes the gate — an expected outcome, not an error) together with
// the full gated candidate set.
func Associate(f *Filter, scan Scan) (*Hypothesis, []Hypothesis, error) {
	var candidates []Hypothesis
	for _, m := range scan {
		ok, d2, err := f.Gate(m)
		if err != nil {
			return nil, nil, fmt.Errorf("gate: %w", err)
		}
		if !ok {
			continue
		}
		candidates = append(candidates, Hypothesis{
			Measurement: m,
			Distance2:   d2,
			Likelihood:  math.Exp(-0.5 * d2),
		})
	}

	if len(candidates) == 0 {
		return nil, nil, nil
	}

	var total float64
	for _, h := range candidates {
		total += h.Likelihood
	}

	// Normalise into marginal association probabilities. When every
	// likelihood underflows to zero the candidates are weighted
	// uniformly.
	best := 0
	if total == 0 {
		uniform := 1.0 / float64(len(candidates))
		for i := range candidates {
			candidates[i].Probability = uniform
		}
	} else {
		for i := range candidates {
			candidates[i].Probability = candidates[i].Likelihood / total
			if candidates[i].Probability > candidates[best].Probability {
				best = i
			}
		}
	}

	return &candidates[best], candidates, nil
}
