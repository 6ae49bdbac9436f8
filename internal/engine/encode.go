package engine

import "question-engine/internal/domain"

// Encode maps a working state to its wire-level answer payload. It is pure and
// total: identical states yield identical payloads and no state can make it
// panic. The second result reports whether the answer is empty; empty answers
// must not be submitted.
//
// Emptiness is an explicit per-variant predicate, never a default:
//   - SingleChoice: no selection made.
//   - MultipleChoice: zero options picked.
//   - TextInput: zero-length string. Whitespace-only input counts as an answer;
//     the server applies no trimming and neither do we.
//   - Conformity: no pairs to arrange.
//   - Ordering: the pool still holds undrained items. A partially built
//     sequence is not an answer.
//   - Classification: no items to distribute.
//   - CodeInput / EmbeddedProblem: empty source buffer.
func Encode(s *WorkingState) (domain.Answer, bool) {
	switch s.Variant {
	case domain.SingleChoice:
		if s.Selected < 0 {
			return domain.Answer{}, true
		}
		return domain.Answer{Choices: []int{s.Selected}}, false

	case domain.MultipleChoice:
		var ids []int
		for _, opt := range s.Options {
			if s.Picked[opt.ID] {
				ids = append(ids, opt.ID)
			}
		}
		if len(ids) == 0 {
			return domain.Answer{}, true
		}
		return domain.Answer{Choices: ids}, false

	case domain.TextInput:
		input := s.Text
		return domain.Answer{Input: &input}, len(input) == 0

	case domain.Conformity:
		answer := domain.Answer{
			GroupOne: append([]string{}, s.ColumnOne...),
			GroupTwo: append([]string{}, s.ColumnTwo...),
		}
		return answer, len(s.ColumnOne) == 0 && len(s.ColumnTwo) == 0

	case domain.Ordering:
		answer := domain.Answer{OrderingList: append([]string{}, s.Sequence...)}
		return answer, len(s.Pool) > 0

	case domain.Classification:
		groups := make([]domain.ClassificationGroup, len(s.Buckets))
		total := 0
		for i, b := range s.Buckets {
			groups[i] = domain.ClassificationGroup{
				Key:    b.Key,
				Values: append([]string{}, b.Values...),
			}
			total += len(b.Values)
		}
		return domain.Answer{Groups: groups}, total == 0

	case domain.CodeInput:
		code := s.Code
		return domain.Answer{Code: &code}, len(code) == 0

	case domain.EmbeddedProblem:
		code := s.Code
		return domain.Answer{Code: &code, Lang: s.Lang}, len(code) == 0
	}
	return domain.Answer{}, true
}
