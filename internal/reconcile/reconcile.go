// Package reconcile re-attaches tombstoned window names to freshly observed
// windows after a browser or agent restart.
package reconcile

import (
	"sort"

	"github.com/dgnsrekt/window_namer/internal/fingerprint"
	"github.com/dgnsrekt/window_namer/internal/namecache"
	"github.com/dgnsrekt/window_namer/internal/types"
)

// MinSimilarity is the Jaccard threshold below which a tombstone is never
// reassigned.
const MinSimilarity = 0.6

// Reassignment records one name moved from a tombstoned key to a live window.
type Reassignment struct {
	OldKey     string  `json:"oldKey"`
	WindowID   int     `json:"windowId"`
	Name       string  `json:"name"`
	Similarity float64 `json:"similarity"`
}

// Run reassigns closed cache entries to unmatched live windows by fingerprint
// similarity. A window is unmatched when it has no cache entry or its own
// entry is itself closed. Each unmatched window takes the not-yet-consumed
// closed candidate with the strictly highest similarity at or above
// MinSimilarity; the winning entry moves to the live window's key (keeping
// its name, taking the window's current fingerprint) and the old key is
// deleted. A consumed candidate is never reused within the pass. Candidate
// keys are visited in sorted order so ties resolve the same way every run.
//
// The input cache is not modified; when nothing qualifies the original map is
// returned unchanged with changed == false, signalling the caller to skip the
// write entirely.
func Run(cache namecache.Cache, windows []types.BrowserWindowRecord) (namecache.Cache, []Reassignment, bool) {
	closedKeys := make([]string, 0)
	for cacheKey, entry := range cache {
		if entry.Closed {
			closedKeys = append(closedKeys, cacheKey)
		}
	}
	sort.Strings(closedKeys)

	unmatched := make([]types.BrowserWindowRecord, 0, len(windows))
	for _, window := range windows {
		entry, ok := cache[namecache.Key(window.ID)]
		if !ok || entry.Closed {
			unmatched = append(unmatched, window)
		}
	}

	if len(closedKeys) == 0 || len(unmatched) == 0 {
		return cache, nil, false
	}

	updated := make(namecache.Cache, len(cache))
	for cacheKey, entry := range cache {
		updated[cacheKey] = entry
	}

	consumed := make(map[string]bool, len(closedKeys))
	written := make(map[string]bool, len(unmatched))
	var reassignments []Reassignment

	for _, window := range unmatched {
		windowFP := fingerprint.Compute(window.Tabs)

		bestKey := ""
		bestSimilarity := 0.0
		for _, candidateKey := range closedKeys {
			if consumed[candidateKey] {
				continue
			}
			similarity := fingerprint.Similarity(windowFP, cache[candidateKey].URLFingerprint)
			if similarity > bestSimilarity {
				bestKey = candidateKey
				bestSimilarity = similarity
			}
		}
		if bestKey == "" || bestSimilarity < MinSimilarity {
			continue
		}

		consumed[bestKey] = true
		liveKey := namecache.Key(window.ID)
		updated[liveKey] = namecache.Entry{
			Name:           cache[bestKey].Name,
			URLFingerprint: windowFP,
		}
		written[liveKey] = true
		// The old key may already hold an entry written earlier in this
		// pass when the browser reuses window ids across restarts; only
		// stale tombstones are removed.
		if bestKey != liveKey && !written[bestKey] {
			delete(updated, bestKey)
		}
		reassignments = append(reassignments, Reassignment{
			OldKey:     bestKey,
			WindowID:   window.ID,
			Name:       cache[bestKey].Name,
			Similarity: bestSimilarity,
		})
	}

	if len(reassignments) == 0 {
		return cache, nil, false
	}
	return updated, reassignments, true
}
