package domain

// Variant is the discrete question type. It determines both how a question is
// presented and how its answer is encoded on the wire. A question's variant
// never changes for the lifetime of the question object.
type Variant string

const (
	SingleChoice    Variant = "single_choice"
	MultipleChoice  Variant = "multiple_choice"
	TextInput       Variant = "text_input"
	Conformity      Variant = "conformity"
	Ordering        Variant = "ordering"
	Classification  Variant = "classification"
	CodeInput       Variant = "code_input"
	EmbeddedProblem Variant = "embedded_problem"
)

// Option is one entry in a question's option list. Which fields carry meaning
// depends on the variant:
//   - SingleChoice/MultipleChoice: ID and Text, plus Selected when the server
//     restores a previously submitted choice.
//   - Conformity/Classification: Main and Secondary form the pair. For
//     classification, Main values are bucket keys (duplicates collapse into one
//     bucket) and Secondary values are the items to distribute.
//   - Ordering: Text holds the item; the canonical slice order is the correct order.
type Option struct {
	ID        int    `json:"id"`
	Text      string `json:"text,omitempty"`
	Main      string `json:"optionMain,omitempty"`
	Secondary string `json:"optionSecondary,omitempty"`
	Selected  bool   `json:"selected,omitempty"`
}

// Question is a single question definition as supplied by the loader. The
// engine treats it as read-only except for the Answered flag, which flips to
// true strictly after a confirmed successful submission.
type Question struct {
	Number   int      `json:"number"` // 1-based, stable ordinal within the activity
	Variant  Variant  `json:"variant"`
	Options  []Option `json:"options"`
	Body     string   `json:"body"` // opaque display payload
	Lang     string   `json:"lang,omitempty"`
	Answered bool     `json:"answered"`
}

// Activity is a loadable question set with its timer configuration.
type Activity struct {
	ID        string      `json:"id"`
	Questions []Question  `json:"questions"`
	Timer     TimerConfig `json:"timer"`
}

// TimerConfig selects between a per-question countdown and one countdown shared
// across the whole set. The two fields are mutually exclusive; zero for both
// means no countdown.
type TimerConfig struct {
	PerQuestionSeconds int `json:"perQuestionSeconds,omitempty" yaml:"per_question_seconds"`
	TotalSeconds       int `json:"totalSeconds,omitempty" yaml:"total_seconds"`
}

// ClassificationGroup is one bucket in a classification answer.
type ClassificationGroup struct {
	Key    string   `json:"key"`
	Values []string `json:"values"`
}

// Answer is the wire-level answer payload for one question. Exactly one field
// group is populated, matching the question's variant; the JSON field names are
// the external protocol and must not change:
//
//	SingleChoice:    choices = [selectedIndex]
//	MultipleChoice:  choices = selected option ids
//	TextInput:       input
//	Conformity:      group_one, group_two
//	Ordering:        ordering_list
//	Classification:  classification_groups
//	CodeInput:       code
//	EmbeddedProblem: code, lang
type Answer struct {
	Choices      []int                 `json:"choices,omitempty"`
	Input        *string               `json:"input,omitempty"`
	GroupOne     []string              `json:"group_one,omitempty"`
	GroupTwo     []string              `json:"group_two,omitempty"`
	OrderingList []string              `json:"ordering_list,omitempty"`
	Groups       []ClassificationGroup `json:"classification_groups,omitempty"`
	Code         *string               `json:"code,omitempty"`
	Lang         string                `json:"lang,omitempty"`
}

// SubmitMeta carries the two completion signals alongside a submission. They
// are independent: the last question of the set can be submitted long before
// the clock runs out, and the clock can expire mid-set.
type SubmitMeta struct {
	LastQuestion bool
	TimeExpired  bool
}

// Tally is the final result of an activity, returned once by FinishActivity.
type Tally struct {
	ActivityID string `json:"activityId"`
	Submitted  int    `json:"submitted"`
	Total      int    `json:"total"`
}
