package core

import (
	"math"
	"strings"
)

type tokenPrediction struct {
	label string
	score float64
	start int
	end   int
}

func argmaxSoftmax(logits []float32) (int, float64) {
	best := 0
	for i, v := range logits {
		if v > logits[best] {
			best = i
		}
	}

	var sum float64
	for _, v := range logits {
		sum += math.Exp(float64(v - logits[best]))
	}
	return best, 1 / sum
}

func splitTag(tag string) (string, string) {
	if prefix, entity, ok := strings.Cut(tag, "-"); ok && (prefix == "B" || prefix == "I") {
		return prefix, entity
	}
	return "", tag
}

// aggregateSimple merges adjacent tokens tagged with the same entity into a
// single group, starting a new group on every B- tag. The group score is the
// mean of its token scores.
func aggregateSimple(preds []tokenPrediction) []tokenPrediction {
	var groups []tokenPrediction
	var count int

	open := false
	for _, p := range preds {
		prefix, entity := splitTag(p.label)
		if entity == "O" {
			open = false
			continue
		}

		if open && groups[len(groups)-1].label == entity && prefix != "B" {
			last := &groups[len(groups)-1]
			last.end = p.end
			last.score = (last.score*float64(count) + p.score) / float64(count+1)
			count++
			continue
		}

		groups = append(groups, tokenPrediction{label: entity, score: p.score, start: p.start, end: p.end})
		count = 1
		open = true
	}

	return groups
}
