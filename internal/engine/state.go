package engine

import (
	"context"
	"math/rand"

	"question-engine/internal/domain"
)

// TemplateCache supplies per-question code templates for the CodeInput and
// EmbeddedProblem variants, keyed by question number and language.
type TemplateCache interface {
	Template(ctx context.Context, activityID string, number int, lang string) (string, bool)
}

// WorkingState is the mutable, per-question, in-memory representation of the
// user's current unsubmitted answer. It is rebuilt from scratch every time a
// question becomes active and discarded when the user moves away; only the
// variant-relevant fields are populated.
type WorkingState struct {
	Number  int
	Variant domain.Variant

	// SingleChoice / MultipleChoice: Options holds the display order.
	Options  []domain.Option
	Selected int          // index into Options, -1 when nothing selected
	Picked   map[int]bool // option id -> picked

	// TextInput
	Text string

	// Conformity: two independently shuffled columns for the user to re-pair.
	ColumnOne []string
	ColumnTwo []string

	// Ordering: items move between the shuffled pool and the user-built
	// sequence. An item lives in exactly one of the two at any moment.
	Pool     []string
	Sequence []string

	// Classification: one bucket per distinct key, in first-seen key order.
	Buckets []domain.ClassificationGroup

	// CodeInput / EmbeddedProblem
	Code string
	Lang string
}

// newWorkingState builds the presentation state for a freshly activated
// question. Randomization happens here and only here: re-rendering a question
// view must not call this again.
func newWorkingState(ctx context.Context, r *rand.Rand, activityID string, q domain.Question, templates TemplateCache) *WorkingState {
	s := &WorkingState{
		Number:   q.Number,
		Variant:  q.Variant,
		Selected: -1,
	}

	switch q.Variant {
	case domain.SingleChoice:
		// Restoring a server-marked selection keeps the canonical option
		// order; this is the one exception to re-randomizing on activation.
		if i := selectedIndex(q.Options); i >= 0 {
			s.Options = append([]domain.Option(nil), q.Options...)
			s.Selected = i
			break
		}
		s.Options = Shuffle(r, q.Options)

	case domain.MultipleChoice:
		s.Options = Shuffle(r, q.Options)
		s.Picked = make(map[int]bool)
		for _, opt := range q.Options {
			if opt.Selected {
				s.Picked[opt.ID] = true
			}
		}

	case domain.TextInput:
		s.Text = ""

	case domain.Conformity:
		mains := make([]string, 0, len(q.Options))
		secondaries := make([]string, 0, len(q.Options))
		for _, opt := range q.Options {
			mains = append(mains, opt.Main)
			secondaries = append(secondaries, opt.Secondary)
		}
		// The two shuffles are deliberately uncorrelated: the user must
		// manually rebuild the pairing.
		s.ColumnOne = Shuffle(r, mains)
		s.ColumnTwo = Shuffle(r, secondaries)

	case domain.Ordering:
		items := make([]string, 0, len(q.Options))
		for _, opt := range q.Options {
			items = append(items, opt.Text)
		}
		s.Pool = Shuffle(r, items)
		s.Sequence = []string{}

	case domain.Classification:
		s.Buckets = classificationBuckets(r, q.Options)

	case domain.CodeInput, domain.EmbeddedProblem:
		s.Lang = q.Lang
		if templates != nil {
			if tpl, ok := templates.Template(ctx, activityID, q.Number, q.Lang); ok {
				s.Code = tpl
			}
		}
	}
	return s
}

func selectedIndex(opts []domain.Option) int {
	for i, opt := range opts {
		if opt.Selected {
			return i
		}
	}
	return -1
}

// classificationBuckets collapses duplicate keys into one bucket each and
// scatters every secondary item into a uniformly chosen bucket. The scatter is
// scaffolding for the user to rearrange, not an answer suggestion; the correct
// grouping is opaque to the client.
func classificationBuckets(r *rand.Rand, opts []domain.Option) []domain.ClassificationGroup {
	var keys []string
	index := make(map[string]int)
	for _, opt := range opts {
		if _, ok := index[opt.Main]; !ok {
			index[opt.Main] = len(keys)
			keys = append(keys, opt.Main)
		}
	}
	buckets := make([]domain.ClassificationGroup, len(keys))
	for i, key := range keys {
		buckets[i] = domain.ClassificationGroup{Key: key, Values: []string{}}
	}
	if len(keys) == 0 {
		return buckets
	}
	for _, opt := range opts {
		i := index[ChooseOne(r, keys)]
		buckets[i].Values = append(buckets[i].Values, opt.Secondary)
	}
	return buckets
}

// select1 records a single-choice pick by display index.
func (s *WorkingState) select1(i int) {
	if s.Variant != domain.SingleChoice || i < 0 || i >= len(s.Options) {
		return
	}
	s.Selected = i
}

// toggle flips a multiple-choice option by id.
func (s *WorkingState) toggle(id int) {
	if s.Variant != domain.MultipleChoice {
		return
	}
	for _, opt := range s.Options {
		if opt.ID == id {
			if s.Picked[id] {
				delete(s.Picked, id)
			} else {
				s.Picked[id] = true
			}
			return
		}
	}
}

func (s *WorkingState) setText(text string) {
	if s.Variant != domain.TextInput {
		return
	}
	s.Text = text
}

func (s *WorkingState) setCode(code, lang string) {
	if s.Variant != domain.CodeInput && s.Variant != domain.EmbeddedProblem {
		return
	}
	s.Code = code
	if lang != "" {
		s.Lang = lang
	}
}

// swapColumn swaps two positions within one conformity column (1 or 2). Any
// other column value is a no-op.
func (s *WorkingState) swapColumn(column, i, j int) {
	if s.Variant != domain.Conformity || (column != 1 && column != 2) {
		return
	}
	col := s.ColumnOne
	if column == 2 {
		col = s.ColumnTwo
	}
	if i < 0 || j < 0 || i >= len(col) || j >= len(col) {
		return
	}
	col[i], col[j] = col[j], col[i]
}

// placeOrder transfers pool[poolIdx] into the sequence at position pos. The
// item leaves the pool: pool and sequence always partition the original items.
func (s *WorkingState) placeOrder(poolIdx, pos int) {
	if s.Variant != domain.Ordering || poolIdx < 0 || poolIdx >= len(s.Pool) {
		return
	}
	if pos < 0 || pos > len(s.Sequence) {
		pos = len(s.Sequence)
	}
	item := s.Pool[poolIdx]
	s.Pool = append(s.Pool[:poolIdx], s.Pool[poolIdx+1:]...)
	s.Sequence = append(s.Sequence, "")
	copy(s.Sequence[pos+1:], s.Sequence[pos:])
	s.Sequence[pos] = item
}

// recallOrder transfers sequence[seqIdx] back into the pool.
func (s *WorkingState) recallOrder(seqIdx int) {
	if s.Variant != domain.Ordering || seqIdx < 0 || seqIdx >= len(s.Sequence) {
		return
	}
	item := s.Sequence[seqIdx]
	s.Sequence = append(s.Sequence[:seqIdx], s.Sequence[seqIdx+1:]...)
	s.Pool = append(s.Pool, item)
}

// moveOrder repositions an item already inside the sequence.
func (s *WorkingState) moveOrder(from, to int) {
	if s.Variant != domain.Ordering {
		return
	}
	if from < 0 || from >= len(s.Sequence) || to < 0 || to >= len(s.Sequence) || from == to {
		return
	}
	item := s.Sequence[from]
	s.Sequence = append(s.Sequence[:from], s.Sequence[from+1:]...)
	s.Sequence = append(s.Sequence, "")
	copy(s.Sequence[to+1:], s.Sequence[to:])
	s.Sequence[to] = item
}

// moveBucket moves the first occurrence of item from one classification bucket
// to the end of another. A move never duplicates or drops items.
func (s *WorkingState) moveBucket(item, fromKey, toKey string) {
	if s.Variant != domain.Classification || fromKey == toKey {
		return
	}
	from := s.bucket(fromKey)
	to := s.bucket(toKey)
	if from == nil || to == nil {
		return
	}
	for i, v := range from.Values {
		if v == item {
			from.Values = append(from.Values[:i], from.Values[i+1:]...)
			to.Values = append(to.Values, item)
			return
		}
	}
}

func (s *WorkingState) bucket(key string) *domain.ClassificationGroup {
	for i := range s.Buckets {
		if s.Buckets[i].Key == key {
			return &s.Buckets[i]
		}
	}
	return nil
}
