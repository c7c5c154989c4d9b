package termio

import (
	"sort"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// TriggerKind identifies what kind of name is being completed at the
// cursor.
type TriggerKind int

const (
	TriggerNone TriggerKind = iota
	TriggerCommand
	TriggerRoom
	TriggerTool
	TriggerModel
)

// Candidate is one completion candidate.
type Candidate struct {
	Insert string
	Label  string
	Score  int
}

// commandsTakingRoomArg and commandsTakingToolArg name the slash
// commands whose first argument completes against rooms or tools.
var commandsTakingRoomArg = map[string]bool{"join": true}
var commandsTakingToolArg = map[string]bool{"run": true}

// DetectTrigger inspects (line, cursor) and returns the completion
// trigger kind plus the [start, cursor) replacement range and the
// partial text already typed.
func DetectTrigger(line string, cursor int) (kind TriggerKind, start int, partial string) {
	if cursor > len(line) {
		cursor = len(line)
	}
	head := line[:cursor]

	if strings.HasPrefix(head, "/") && !strings.Contains(head, " ") {
		return TriggerCommand, 0, head[1:]
	}

	if strings.HasPrefix(head, "/") {
		fields := strings.Fields(head)
		if len(fields) >= 1 {
			cmd := strings.TrimPrefix(fields[0], "/")
			wordStart := strings.LastIndexByte(head, ' ') + 1
			partial := head[wordStart:]
			if commandsTakingRoomArg[cmd] {
				return TriggerRoom, wordStart, partial
			}
			if commandsTakingToolArg[cmd] {
				return TriggerTool, wordStart, partial
			}
		}
		return TriggerNone, cursor, ""
	}

	if at := strings.LastIndexByte(head, '@'); at >= 0 {
		rest := head[at+1:]
		if !strings.ContainsAny(rest, " \t") {
			return TriggerModel, at + 1, rest
		}
	}

	return TriggerNone, cursor, ""
}

// foldKey returns a case-and-accent-folded key for fuzzy comparison:
// Unicode NFD normalization strips combining marks, then the result
// is lowercased.
func foldKey(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}
	return strings.ToLower(folded)
}

// Filter scores candidate names against partial using a fuzzy
// subsequence matcher with case/accent-smart folding, and returns them
// sorted by descending score. An empty partial matches everything with
// score 0, preserving input order.
func Filter(names []string, partial string) []Candidate {
	if partial == "" {
		out := make([]Candidate, len(names))
		for i, n := range names {
			out[i] = Candidate{Insert: n, Label: n, Score: 0}
		}
		return out
	}

	needle := foldKey(partial)
	var out []Candidate
	for _, n := range names {
		score, ok := fuzzyScore(foldKey(n), needle)
		if !ok {
			continue
		}
		out = append(out, Candidate{Insert: n, Label: n, Score: score})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out
}

// fuzzyScore implements a small subsequence scorer: needle's runes
// must all appear in haystack in order; score rewards contiguous runs
// and a match at the start of haystack.
func fuzzyScore(haystack, needle string) (int, bool) {
	h := []rune(haystack)
	n := []rune(needle)
	if len(n) == 0 {
		return 0, true
	}
	hi, ni := 0, 0
	score := 0
	consecutive := 0
	matchedAtStart := false
	for hi < len(h) && ni < len(n) {
		if h[hi] == n[ni] {
			if hi == 0 && ni == 0 {
				matchedAtStart = true
			}
			consecutive++
			score += 1 + consecutive
			ni++
		} else {
			consecutive = 0
		}
		hi++
	}
	if ni < len(n) {
		return 0, false
	}
	if matchedAtStart {
		score += 5
	}
	// Favor shorter haystacks among equal subsequence quality.
	score -= len(h) / 8
	return score, true
}
