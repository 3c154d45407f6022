package agent

import "fmt"

// Settings tunes the decision core. The zero value is not usable; start
// from DefaultSettings.
type Settings struct {
	Strategy string // see StrategyForName

	ThresholdLow     float64 // acceptance floor reached at the deadline
	ThresholdHigh    float64 // acceptance ceiling at the start
	TightenThreshold bool    // pull the threshold toward the bid just chosen
	EarlyRounds      int     // turns spent probing by rank before Nash selection

	FrequencyExponent float64 // damping exponent on (count+1)
	WeightWindow      int     // k: size of each re-estimation window
	ChiThreshold      float64 // χ² at or below which an issue counts as stable
	WeightStep        float64 // weight added to a shifted issue on concession

	// Deprecated: random opponent estimates were a placeholder before the
	// frequency model existed. Kept for comparison runs only.
	RandomOpponentEstimates bool
}

// DefaultSettings returns the reference constants.
func DefaultSettings() Settings {
	return Settings{
		Strategy:          "concession",
		ThresholdLow:      0.7,
		ThresholdHigh:     1.0,
		TightenThreshold:  true,
		EarlyRounds:       6,
		FrequencyExponent: 0.2,
		WeightWindow:      3,
		ChiThreshold:      0.05,
		WeightStep:        0.1,
	}
}

// Validate rejects inconsistent settings.
func (s Settings) Validate() error {
	switch {
	case s.ThresholdLow < 0 || s.ThresholdHigh > 1:
		return fmt.Errorf("%w: thresholds must lie in [0,1] (low=%v high=%v)", ErrConfiguration, s.ThresholdLow, s.ThresholdHigh)
	case s.ThresholdLow > s.ThresholdHigh:
		return fmt.Errorf("%w: threshold low %v above high %v", ErrConfiguration, s.ThresholdLow, s.ThresholdHigh)
	case s.EarlyRounds < 0:
		return fmt.Errorf("%w: negative early rounds", ErrConfiguration)
	case s.FrequencyExponent <= 0:
		return fmt.Errorf("%w: frequency exponent must be positive", ErrConfiguration)
	case s.WeightWindow < 1:
		return fmt.Errorf("%w: weight window must be at least 1", ErrConfiguration)
	case s.ChiThreshold < 0 || s.WeightStep < 0:
		return fmt.Errorf("%w: negative re-estimation parameter", ErrConfiguration)
	}
	return nil
}
