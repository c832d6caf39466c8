// Package match pairs OS-probe window records with browser window snapshots
// for a single point in time.
package match

import (
	"github.com/dgnsrekt/window_namer/internal/types"
)

// Score weights. Bounds equality is the primary acceptance test; an exact
// active-tab-title match outranks it when both are present so that windows at
// identical coordinates can still be told apart.
const (
	boundsMatchScore = 1
	titleMatchScore  = 2
)

// Pair associates one browser window with the OS-level name the probe saw.
type Pair struct {
	BrowserWindowID int    `json:"browserWindowId"`
	Name            string `json:"name"`
	HasCustomName   bool   `json:"hasCustomName"`
}

// CandidateScore is the per-candidate breakdown emitted by the diagnostic
// variant, one row per probe/window pair considered.
type CandidateScore struct {
	ProbeName       string `json:"probeName"`
	BrowserWindowID int    `json:"browserWindowId"`
	BoundsScore     int    `json:"boundsScore"`
	TitleScore      int    `json:"titleScore"`
	TotalScore      int    `json:"totalScore"`
	Accepted        bool   `json:"accepted"`
}

// Match greedily pairs probe records against browser windows. Only probe
// records carrying a custom name participate. A probe claims the first
// not-yet-claimed browser window whose bounds are exactly equal or whose
// active tab title exactly equals the probe's; a claimed window is removed
// from consideration, so no browser window id appears twice in the result.
// Greedy first-fit is order dependent and not globally optimal.
func Match(probes []types.ProbeWindowRecord, windows []types.BrowserWindowRecord) []Pair {
	pairs, _ := run(probes, windows, false)
	return pairs
}

// MatchDiagnostics behaves like Match and additionally reports the score
// breakdown for every candidate pair it examined.
func MatchDiagnostics(probes []types.ProbeWindowRecord, windows []types.BrowserWindowRecord) ([]Pair, []CandidateScore) {
	return run(probes, windows, true)
}

func run(probes []types.ProbeWindowRecord, windows []types.BrowserWindowRecord, diagnose bool) ([]Pair, []CandidateScore) {
	pairs := make([]Pair, 0, len(probes))
	var scores []CandidateScore
	claimed := make(map[int]bool, len(windows))

	for _, probe := range probes {
		if !probe.HasCustomName {
			continue
		}
		for _, window := range windows {
			if claimed[window.ID] {
				continue
			}

			boundsScore := 0
			if probe.Bounds == window.Bounds {
				boundsScore = boundsMatchScore
			}
			titleScore := 0
			if probe.ActiveTabTitle != "" && probe.ActiveTabTitle == window.ActiveTabTitle() {
				titleScore = titleMatchScore
			}
			accepted := boundsScore > 0 || titleScore > 0

			if diagnose {
				scores = append(scores, CandidateScore{
					ProbeName:       probe.Name,
					BrowserWindowID: window.ID,
					BoundsScore:     boundsScore,
					TitleScore:      titleScore,
					TotalScore:      boundsScore + titleScore,
					Accepted:        accepted,
				})
			}

			if accepted {
				claimed[window.ID] = true
				pairs = append(pairs, Pair{
					BrowserWindowID: window.ID,
					Name:            probe.Name,
					HasCustomName:   probe.HasCustomName,
				})
				break
			}
		}
	}

	return pairs, scores
}
