package records

// Status is a workflow lifecycle state.
type Status string

const (
	StatusStarting               Status = "STARTING"
	StatusExtractingText         Status = "EXTRACTING_TEXT"
	StatusFormattingText         Status = "FORMATTING_TEXT"
	StatusTextFormattingComplete Status = "TEXT_FORMATTING_COMPLETE"
	StatusTranslating            Status = "TRANSLATING"
	StatusTranslationComplete    Status = "TRANSLATION_COMPLETE"
	StatusConvertingToSpeech     Status = "CONVERTING_TO_SPEECH"
	StatusSucceeded              Status = "SUCCEEDED"
	StatusFailed                 Status = "FAILED"
	StatusTimedOut               Status = "TIMED_OUT"
)

// Category groups statuses for filtering.
type Category string

const (
	CategoryActive    Category = "active"
	CategoryCompleted Category = "completed"
	CategoryFailed    Category = "failed"
)

var categories = map[Status]Category{
	StatusStarting:               CategoryActive,
	StatusExtractingText:         CategoryActive,
	StatusFormattingText:         CategoryActive,
	StatusTextFormattingComplete: CategoryActive,
	StatusTranslating:            CategoryActive,
	StatusTranslationComplete:    CategoryActive,
	StatusConvertingToSpeech:     CategoryActive,
	StatusSucceeded:              CategoryCompleted,
	StatusFailed:                 CategoryFailed,
	StatusTimedOut:               CategoryFailed,
}

// TerminalStatuses lists the absorbing statuses.
var TerminalStatuses = []Status{StatusSucceeded, StatusFailed, StatusTimedOut}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	_, ok := categories[s]
	return ok
}

// Terminal reports whether s is absorbing.
func (s Status) Terminal() bool {
	return s == StatusSucceeded || s == StatusFailed || s == StatusTimedOut
}

// Category returns the filter category of s, or "" for unknown statuses.
func (s Status) Category() Category {
	return categories[s]
}

// Valid reports whether c is a known category.
func (c Category) Valid() bool {
	switch c {
	case CategoryActive, CategoryCompleted, CategoryFailed:
		return true
	}
	return false
}
