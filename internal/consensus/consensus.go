// Package consensus merges the judgments of several ensemble runs into one
// consensus judgment and reports how far the runs agreed.
package consensus

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/prabhakaran-jm/intent-drift-radar/internal/drift"
	"github.com/prabhakaran-jm/intent-drift-radar/internal/schema"
)

// MinResults is the fewest judgments Compute accepts.
const MinResults = 2

// maxMinorityEvidence caps how many single-run evidence items reach the
// consensus evidence list.
const maxMinorityEvidence = 5

// Compute builds the consensus judgment and the agreement statistics from
// judgments, which must hold at least MinResults entries. The inputs are not
// modified and their order does not matter: runs are first put in canonical
// order (see canonicalOrder), which fixes both the median run and the
// first-seen order of evidence. The consensus is returned with analysisID and
// has already been through drift.Postprocess.
func Compute(judgments []schema.Judgment, analysisID string) (schema.Judgment, schema.Agreement, error) {
	if len(judgments) < MinResults {
		return schema.Judgment{}, schema.Agreement{}, schema.ErrInsufficientResults
	}
	judgments = canonicalOrder(judgments)

	votes := driftVotes(judgments)
	confMedian, confMin, confMax := confidenceStats(judgments)
	median := medianRun(judgments)
	directions := directionVotes(judgments)
	buckets := evidenceBuckets(judgments)

	direction := median.DriftDirection
	if len(directions) > 0 && directions[0].Count >= 2 {
		direction = directions[0].Value
	}

	evidence := make([]schema.EvidenceItem, 0,
		len(buckets.ThreeOfThree)+len(buckets.TwoOfThree)+maxMinorityEvidence)
	evidence = append(evidence, buckets.ThreeOfThree...)
	evidence = append(evidence, buckets.TwoOfThree...)
	minority := buckets.OneOfThree
	if len(minority) > maxMinorityEvidence {
		minority = minority[:maxMinorityEvidence]
	}
	evidence = append(evidence, minority...)

	// Intents, cards and the question travel together from the median run.
	base := median.Clone()
	draft := schema.Judgment{
		AnalysisID:     analysisID,
		BaselineIntent: base.BaselineIntent,
		CurrentIntent:  base.CurrentIntent,
		DriftDetected:  votes.True > votes.False,
		Confidence:     confMedian,
		DriftDirection: direction,
		Evidence:       evidence,
		ReasoningCards: base.ReasoningCards,
		OneQuestion:    base.OneQuestion,
	}
	draft.DriftSignature = drift.BuildSignature(draft)

	out, err := drift.Postprocess(draft)
	if err != nil {
		return schema.Judgment{}, schema.Agreement{}, fmt.Errorf("consensus: postprocess: %w", err)
	}

	agreement := schema.Agreement{
		DriftDetectedVotes: votes,
		ConfidenceMin:      confMin,
		ConfidenceMax:      confMax,
		DirectionVotes:     directions,
		EvidenceAgreement:  buckets,
	}
	return out, agreement, nil
}

func driftVotes(judgments []schema.Judgment) schema.DriftVotes {
	var v schema.DriftVotes
	for _, j := range judgments {
		if j.DriftDetected {
			v.True++
		} else {
			v.False++
		}
	}
	return v
}

// confidenceStats returns the clamped median, the raw minimum and the
// clamped maximum of the run confidences.
func confidenceStats(judgments []schema.Judgment) (median, lo, hi float64) {
	confs := make([]float64, len(judgments))
	for i, j := range judgments {
		confs[i] = j.Confidence
	}
	sort.Float64s(confs)

	n := len(confs)
	if n%2 == 1 {
		median = confs[n/2]
	} else {
		median = (confs[n/2-1] + confs[n/2]) / 2
	}
	return math.Min(schema.MaxConfidence, median), confs[0], math.Min(schema.MaxConfidence, confs[n-1])
}

// canonicalOrder returns a copy of judgments sorted by confidence ascending,
// then by analysis id. Ensemble runs carry distinct "{id}-{mode}" ids, so
// completion order never leaks into the consensus. Runs equal on both keys
// keep their input order.
func canonicalOrder(judgments []schema.Judgment) []schema.Judgment {
	out := append([]schema.Judgment(nil), judgments...)
	sort.SliceStable(out, func(a, b int) bool {
		if out[a].Confidence != out[b].Confidence {
			return out[a].Confidence < out[b].Confidence
		}
		return out[a].AnalysisID < out[b].AnalysisID
	})
	return out
}

// medianRun returns the run at index N/2 of canonically ordered judgments.
// For even N this is the upper of the two middle runs.
func medianRun(ordered []schema.Judgment) schema.Judgment {
	return ordered[len(ordered)/2]
}

// directionVotes counts trimmed directions, ordered by count descending then
// value ascending.
func directionVotes(judgments []schema.Judgment) []schema.DirectionVote {
	counts := make(map[string]int)
	for _, j := range judgments {
		counts[strings.TrimSpace(j.DriftDirection)]++
	}
	votes := make([]schema.DirectionVote, 0, len(counts))
	for v, c := range counts {
		votes = append(votes, schema.DirectionVote{Value: v, Count: c})
	}
	sort.Slice(votes, func(a, b int) bool {
		if votes[a].Count != votes[b].Count {
			return votes[a].Count > votes[b].Count
		}
		return votes[a].Value < votes[b].Value
	})
	return votes
}

// EvidenceKey is the identity used to match evidence across runs.
func EvidenceKey(e schema.EvidenceItem) string {
	return strings.TrimSpace(strings.ToLower(e.Day + "|" + e.Reason))
}

// evidenceBuckets groups evidence by how often its key was cited. Every
// occurrence counts, so a run citing the same item twice adds two. The first
// item seen for a key is the one reported, and buckets keep first-seen order.
func evidenceBuckets(judgments []schema.Judgment) schema.EvidenceAgreement {
	var order []string
	first := make(map[string]schema.EvidenceItem)
	counts := make(map[string]int)
	for _, j := range judgments {
		for _, e := range j.Evidence {
			k := EvidenceKey(e)
			if _, seen := first[k]; !seen {
				first[k] = e
				order = append(order, k)
			}
			counts[k]++
		}
	}

	n := len(judgments)
	out := schema.EvidenceAgreement{
		ThreeOfThree: []schema.EvidenceItem{},
		TwoOfThree:   []schema.EvidenceItem{},
		OneOfThree:   []schema.EvidenceItem{},
	}
	for _, k := range order {
		switch c := counts[k]; {
		case c >= 3 || c == n:
			out.ThreeOfThree = append(out.ThreeOfThree, first[k])
		case c == 2:
			out.TwoOfThree = append(out.TwoOfThree, first[k])
		default:
			out.OneOfThree = append(out.OneOfThree, first[k])
		}
	}
	return out
}
