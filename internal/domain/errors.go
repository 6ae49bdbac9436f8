package domain

import "errors"

var (
	// ErrActivityNotFound indicates the question set could not be loaded.
	ErrActivityNotFound = errors.New("activity not found")
	// ErrEngineNotFound is returned when no engine exists for an activity/user pair.
	ErrEngineNotFound = errors.New("engine not found")
	// ErrNoQuestions indicates an activity with an empty question list.
	ErrNoQuestions = errors.New("activity has no questions")
	// ErrQuestionNotFound indicates a referenced question number is out of range.
	ErrQuestionNotFound = errors.New("question not found")
	// ErrFinished is returned when an operation arrives after the activity
	// reached its terminal state.
	ErrFinished = errors.New("activity already finished")
)
