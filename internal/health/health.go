// Package health classifies weaknesses in stored credentials: weak,
// reused and stale passwords, and entries without a second factor.
//
// Analysis is a pure function of the entries and the supplied time.
package health

import (
	"fmt"
	"time"

	"github.com/dmitrijs2005/keynest/internal/client/models"
	"github.com/dmitrijs2005/keynest/internal/strength"
)

// IssueType names a class of weakness.
type IssueType string

const (
	IssueWeak   IssueType = "weak"
	IssueReused IssueType = "reused"
	IssueOld    IssueType = "old"
	IssueNo2FA  IssueType = "no-2fa"
)

const (
	// DefaultMaxAge is how long a password may go unchanged before it is old.
	DefaultMaxAge = 180 * 24 * time.Hour
	// WeakBelow is the lowest score not reported as weak.
	WeakBelow = 3
)

// PasswordIssue is one weakness found on one entry.
type PasswordIssue struct {
	EntryID string    `json:"entryId"`
	Type    IssueType `json:"type"`
	Detail  string    `json:"detail,omitempty"`
}

// Summary counts issues per type. An entry with two issue types counts
// towards both.
type Summary struct {
	Weak   int `json:"weak"`
	Reused int `json:"reused"`
	Old    int `json:"old"`
	No2FA  int `json:"no2fa"`
}

type Report struct {
	Issues  []PasswordIssue `json:"issues"`
	Summary Summary         `json:"summary"`
}

// EntryIssues is every issue of one entry.
type EntryIssues struct {
	EntryID string
	Issues  []PasswordIssue
}

// Analyzer scans a vault. The zero value is not usable; build it with New.
type Analyzer struct {
	Estimator strength.Estimator
	MaxAge    time.Duration
}

type Option func(*Analyzer)

// WithMaxAge overrides DefaultMaxAge.
func WithMaxAge(d time.Duration) Option {
	return func(a *Analyzer) {
		if d > 0 {
			a.MaxAge = d
		}
	}
}

func New(est strength.Estimator, opts ...Option) *Analyzer {
	a := &Analyzer{Estimator: est, MaxAge: DefaultMaxAge}
	for _, o := range opts {
		o(a)
	}
	return a
}

// Analyse reports the issues of entries as of now. Issues are ordered by
// type (weak, reused, old, no-2fa) and within a type by entry order; reused
// groups appear in order of their first member. Entries without an id, and
// entries the estimator cannot score, yield no issues and are left out of
// reuse grouping. Entries without a modification time skip only the age
// check.
func (a *Analyzer) Analyse(entries []models.VaultEntry, now time.Time) Report {
	var (
		valid  = make([]models.VaultEntry, 0, len(entries))
		scores = make([]int, 0, len(entries))
	)
	for _, e := range entries {
		if e.ID == "" {
			continue
		}
		score, ok := a.score(e.Password)
		if !ok {
			continue
		}
		valid = append(valid, e)
		scores = append(scores, score)
	}

	var issues []PasswordIssue

	for i, e := range valid {
		if scores[i] < WeakBelow {
			issues = append(issues, PasswordIssue{
				EntryID: e.ID,
				Type:    IssueWeak,
				Detail:  fmt.Sprintf("Strength score %d/%d", scores[i], strength.MaxScore),
			})
		}
	}

	// Empty passwords form a group like any other value, so two blank
	// entries are reported as reused. Likely unintended; preserved.
	var order []string
	groups := make(map[string][]string)
	for _, e := range valid {
		if _, seen := groups[e.Password]; !seen {
			order = append(order, e.Password)
		}
		groups[e.Password] = append(groups[e.Password], e.ID)
	}
	for _, pw := range order {
		ids := groups[pw]
		if len(ids) < 2 {
			continue
		}
		for _, id := range ids {
			issues = append(issues, PasswordIssue{
				EntryID: id,
				Type:    IssueReused,
				Detail:  fmt.Sprintf("Reused %d times", len(ids)),
			})
		}
	}

	days := int(a.MaxAge / (24 * time.Hour))
	for _, e := range valid {
		if e.UpdatedAt <= 0 {
			continue
		}
		updated := time.UnixMilli(e.UpdatedAt)
		if now.Sub(updated) > a.MaxAge {
			issues = append(issues, PasswordIssue{
				EntryID: e.ID,
				Type:    IssueOld,
				Detail: fmt.Sprintf("Last updated on %s (over %d days ago)",
					updated.In(now.Location()).Format(time.DateOnly), days),
			})
		}
	}

	for _, e := range valid {
		if e.TOTPSecret == "" {
			issues = append(issues, PasswordIssue{EntryID: e.ID, Type: IssueNo2FA})
		}
	}

	return Report{Issues: issues, Summary: summarise(issues)}
}

func (a *Analyzer) score(password string) (score int, ok bool) {
	defer func() {
		if recover() != nil {
			score, ok = 0, false
		}
	}()
	return a.Estimator.Score(password), true
}

func summarise(issues []PasswordIssue) Summary {
	var s Summary
	for _, i := range issues {
		switch i.Type {
		case IssueWeak:
			s.Weak++
		case IssueReused:
			s.Reused++
		case IssueOld:
			s.Old++
		case IssueNo2FA:
			s.No2FA++
		}
	}
	return s
}

// Total is the number of issues.
func (s Summary) Total() int {
	return s.Weak + s.Reused + s.Old + s.No2FA
}

// ByEntry groups issues per entry, entries in order of first appearance.
func (r Report) ByEntry() []EntryIssues {
	var out []EntryIssues
	index := make(map[string]int)
	for _, issue := range r.Issues {
		i, ok := index[issue.EntryID]
		if !ok {
			i = len(out)
			index[issue.EntryID] = i
			out = append(out, EntryIssues{EntryID: issue.EntryID})
		}
		out[i].Issues = append(out[i].Issues, issue)
	}
	return out
}
