// Package strength scores password guessability on the coarse 0–4 scale
// used by the health report and the generator's feedback line.
package strength

import zxcvbn "github.com/ccojocar/zxcvbn-go"

// MaxScore is the best possible score.
const MaxScore = 4

// Estimator rates a password from 0 (trivially guessable) to MaxScore.
type Estimator interface {
	Score(password string) int
}

// Zxcvbn is the default Estimator, backed by the zxcvbn algorithm.
type Zxcvbn struct {
	// UserInputs are extra dictionary words (e.g. the entry title) that
	// should not count towards strength.
	UserInputs []string
}

func (z Zxcvbn) Score(password string) int {
	if password == "" {
		return 0
	}
	return clamp(zxcvbn.PasswordStrength(password, z.UserInputs).Score)
}

// Label returns a short description of a score.
func Label(score int) string {
	switch clamp(score) {
	case 0:
		return "very weak"
	case 1:
		return "weak"
	case 2:
		return "fair"
	case 3:
		return "strong"
	default:
		return "very strong"
	}
}

func clamp(score int) int {
	if score < 0 {
		return 0
	}
	if score > MaxScore {
		return MaxScore
	}
	return score
}
