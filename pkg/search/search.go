// Package search implements the Search Index (C8): a pure scoring function
// over the latest ProjectedStore snapshot (spec.md §4.8). There is no
// persistent index — every query rescans the snapshot, which is small
// enough (UI-scale graphs) that an inverted index would be premature.
package search

import (
	"math"
	"regexp"
	"sort"
	"strings"

	"github.com/theredstring/redstring-sub011/pkg/graphmodel"
)

// Scope restricts which candidate kinds are searched.
type Scope string

const (
	ScopeGraphs     Scope = "graphs"
	ScopePrototypes Scope = "prototypes"
	ScopeInstances  Scope = "instances"
	ScopeAll        Scope = "all"
)

// Options configures Query.
type Options struct {
	Scope         Scope
	GraphID       string // restricts instance-scope search to one graph
	Limit         int    // default 50
	Regex         bool
	Fuzzy         bool
	CaseSensitive bool
}

// Result is one scored candidate.
type Result struct {
	Kind  string `json:"kind"` // "graph" | "prototype" | "instance"
	ID    string `json:"id"`
	Name  string `json:"name"`
	Score int    `json:"score"`
}

// Query scores every candidate named by opts.Scope against q and returns
// them sorted descending by score, truncated to opts.Limit (default 50).
func Query(store graphmodel.ProjectedStore, q string, opts Options) ([]Result, error) {
	if opts.Limit <= 0 {
		opts.Limit = 50
	}
	scope := opts.Scope
	if scope == "" {
		scope = ScopeAll
	}

	var re *regexp.Regexp
	if opts.Regex {
		pattern := q
		if !opts.CaseSensitive {
			pattern = "(?i)" + pattern
		}
		compiled, err := regexp.Compile(pattern)
		if err != nil {
			return nil, err
		}
		re = compiled
	}

	var out []Result
	score := func(haystack string) int {
		return Score(q, haystack, opts.CaseSensitive, opts.Fuzzy, re)
	}

	if scope == ScopeGraphs || scope == ScopeAll {
		for _, g := range store.Graphs {
			if s := score(g.Name); s > 0 {
				out = append(out, Result{Kind: "graph", ID: g.ID, Name: g.Name, Score: s})
			}
		}
	}
	if scope == ScopePrototypes || scope == ScopeAll {
		for _, p := range store.NodePrototypes {
			if s := score(p.Name); s > 0 {
				out = append(out, Result{Kind: "prototype", ID: p.ID, Name: p.Name, Score: s})
			}
		}
	}
	if scope == ScopeInstances || scope == ScopeAll {
		protoNames := make(map[string]string)
		for _, p := range store.NodePrototypes {
			protoNames[p.ID] = p.Name
		}
		for _, g := range store.Graphs {
			if opts.GraphID != "" && g.ID != opts.GraphID {
				continue
			}
			for instID, inst := range g.Instances {
				name := protoNames[inst.PrototypeID]
				if s := score(name); s > 0 {
					out = append(out, Result{Kind: "instance", ID: instID, Name: name, Score: s})
				}
			}
		}
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if len(out) > opts.Limit {
		out = out[:opts.Limit]
	}
	return out, nil
}

// Score implements spec.md §4.8's scoring branches for query q against
// haystack h. re, when non-nil, replaces scoring with a boolean test
// yielding a constant 90 (regex mode).
func Score(q, h string, caseSensitive, fuzzy bool, re *regexp.Regexp) int {
	if re != nil {
		if re.MatchString(h) {
			return 90
		}
		return 0
	}

	qq, hh := q, h
	if !caseSensitive {
		qq = strings.ToLower(q)
		hh = strings.ToLower(h)
	}

	switch {
	case hh == qq:
		return 100
	case strings.HasPrefix(hh, qq):
		return 95
	case strings.Contains(hh, qq):
		denom := len(hh)
		if denom < 4 {
			denom = 4
		}
		score := 80 * len(qq) / denom
		if score < 80 {
			score = 80
		}
		return score
	case isSubsequence(qq, hh):
		return 70
	case fuzzy:
		dist := levenshtein(qq, hh, 64)
		maxLen := len(qq)
		if len(hh) > maxLen {
			maxLen = len(hh)
		}
		if maxLen == 0 {
			return 0
		}
		ratio := 1 - float64(dist)/float64(maxLen)
		if ratio < 0 {
			ratio = 0
		}
		return int(math.Round(60 * ratio))
	default:
		return 0
	}
}

// isSubsequence reports whether every rune of q appears in h in order
// (not necessarily contiguously).
func isSubsequence(q, h string) bool {
	if q == "" {
		return true
	}
	qr := []rune(q)
	i := 0
	for _, r := range h {
		if r == qr[i] {
			i++
			if i == len(qr) {
				return true
			}
		}
	}
	return false
}

// levenshtein computes edit distance, capping both inputs at cap
// characters (spec.md §4.8 "Levenshtein capped at 64 characters").
func levenshtein(a, b string, cap int) int {
	ar, br := []rune(a), []rune(b)
	if len(ar) > cap {
		ar = ar[:cap]
	}
	if len(br) > cap {
		br = br[:cap]
	}

	n, m := len(ar), len(br)
	if n == 0 {
		return m
	}
	if m == 0 {
		return n
	}

	prev := make([]int, m+1)
	curr := make([]int, m+1)
	for j := 0; j <= m; j++ {
		prev[j] = j
	}

	for i := 1; i <= n; i++ {
		curr[0] = i
		for j := 1; j <= m; j++ {
			cost := 1
			if ar[i-1] == br[j-1] {
				cost = 0
			}
			del := prev[j] + 1
			ins := curr[j-1] + 1
			sub := prev[j-1] + cost
			curr[j] = min3(del, ins, sub)
		}
		prev, curr = curr, prev
	}
	return prev[m]
}

func min3(a, b, c int) int {
	m := a
	if b < m {
		m = b
	}
	if c < m {
		m = c
	}
	return m
}
