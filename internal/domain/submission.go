package domain

import "time"

// SubmissionConfirmed is the state of a session accepted and confirmed by its speakers.
const SubmissionConfirmed = "confirmed"

// LocalizedText maps a language code to text, as the talk-submission platform returns
// translatable fields.
type LocalizedText map[string]string

// Prefer returns the text for the first language that has a non-empty value.
func (t LocalizedText) Prefer(langs ...string) string {
	for _, l := range langs {
		if v := t[l]; v != "" {
			return v
		}
	}
	return ""
}

// Submission is the talk-submission platform's read model of a session.
type Submission struct {
	Code           string              `json:"code"`
	Title          string              `json:"title"`
	SubmissionType LocalizedText       `json:"submission_type"`
	State          string              `json:"state"`
	Slot           *Slot               `json:"slot"`
	Speakers       []SubmissionSpeaker `json:"speakers"`
}

// Slot is where and when a session is scheduled.
type Slot struct {
	Start time.Time     `json:"start"`
	End   time.Time     `json:"end"`
	Room  LocalizedText `json:"room"`
}

// SubmissionSpeaker is a speaker of a session.
type SubmissionSpeaker struct {
	Code  string `json:"code"`
	Name  string `json:"name"`
	Email string `json:"email"`
}
