package question

import "strings"

// ExactMatchMaxTokens is the token count below which a short answer is
// considered safe to mark by string comparison.
const ExactMatchMaxTokens = 10

// SelectMethod decides how a classified question gets marked.
//
// Multiple-choice and true/false always use exact match, as do short answers
// whose canonical answer has fewer than ExactMatchMaxTokens words. Everything
// else needs semantic grading by the remote evaluator.
func SelectMethod(q Question) Method {
	switch q.Type {
	case TypeMultipleChoice, TypeTrueFalse:
		return MethodExactMatch
	case TypeShortAnswer:
		if len(strings.Fields(q.Answer)) < ExactMatchMaxTokens {
			return MethodExactMatch
		}
	}
	return MethodRemoteEvaluation
}

// ExactMatchable reports whether the exact-match evaluator can produce a
// meaningful result for this question type. Used when the remote evaluator
// is unreachable.
func ExactMatchable(t Type) bool {
	switch t {
	case TypeMultipleChoice, TypeTrueFalse, TypeShortAnswer:
		return true
	}
	return false
}
