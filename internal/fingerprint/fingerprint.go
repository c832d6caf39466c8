// Package fingerprint derives stable identity signatures for browser windows
// from the hostnames of their open tabs.
package fingerprint

import (
	"net/url"
	"sort"
	"strings"

	"github.com/dgnsrekt/window_namer/internal/types"
)

// Compute builds a window fingerprint from its tab set: the hostname of every
// syntactically valid tab URL, deduplicated, sorted, joined with "|". Tabs
// with a missing or unparsable URL are skipped. The result depends only on
// the hostname set, never on tab order or duplication, so recomputing from an
// equivalent tab set yields the same string byte-for-byte.
func Compute(tabs []types.TabRecord) string {
	seen := make(map[string]bool, len(tabs))
	hosts := make([]string, 0, len(tabs))
	for _, tab := range tabs {
		host := hostname(tab.URL)
		if host == "" || seen[host] {
			continue
		}
		seen[host] = true
		hosts = append(hosts, host)
	}
	sort.Strings(hosts)
	return strings.Join(hosts, "|")
}

// Hosts splits a fingerprint back into its hostname set. An empty fingerprint
// yields an empty set.
func Hosts(fp string) map[string]bool {
	set := make(map[string]bool)
	for _, host := range strings.Split(fp, "|") {
		if host != "" {
			set[host] = true
		}
	}
	return set
}

// Similarity returns the Jaccard similarity of two fingerprints: intersection
// size over union size of their hostname sets. Two empty fingerprints score
// 0, not 1, so windows with no usable tabs never look alike.
func Similarity(a, b string) float64 {
	setA, setB := Hosts(a), Hosts(b)
	if len(setA) == 0 && len(setB) == 0 {
		return 0
	}

	intersection := 0
	for host := range setA {
		if setB[host] {
			intersection++
		}
	}
	union := len(setA) + len(setB) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

func hostname(rawURL string) string {
	if rawURL == "" {
		return ""
	}
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return parsed.Hostname()
}
