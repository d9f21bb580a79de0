// Package schedule builds the streaming run sheet from the talk-submission platform's
// confirmed sessions.
package schedule

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/pyladiescon/confops/internal/domain"
)

// MainStream is the room broadcast on the conference stream.
const MainStream = "Main Stream"

// Kind is the normalised session type.
type Kind string

const (
	Talk     Kind = "talk"
	Workshop Kind = "workshop"
	Keynote  Kind = "keynote"
	Panel    Kind = "panel"
	Sprint   Kind = "sprint"
	// Break marks a gap between two scheduled sessions. It is never a submission.
	Break Kind = "break"
)

var kindsByType = map[string]Kind{
	"Talk":                Talk,
	"Workshop":            Workshop,
	"Taller (60 minutos)": Workshop,
	"Taller (90 minutos)": Workshop,
	"Panel":               Panel,
	"Keynote":             Keynote,
	"Sprints guiados":     Sprint,
}

// Classify maps a localized submission type to a Kind, preferring the Spanish label
// when present. ok is false for labels it does not know.
func Classify(t domain.LocalizedText) (kind Kind, ok bool) {
	kind, ok = kindsByType[t.Prefer("es", "en")]
	return kind, ok
}

// Session is one row of the run sheet.
type Session struct {
	Code     string     `json:"session_code"`
	Title    string     `json:"title"`
	Kind     Kind       `json:"submission_type"`
	State    string     `json:"state"`
	Room     string     `json:"room,omitempty"`
	Start    *time.Time `json:"start_time,omitempty"`
	End      *time.Time `json:"end_time,omitempty"`
	Speakers []string   `json:"speakers"`
	FolderID string     `json:"folder_id,omitempty"`
	QA       string     `json:"q_a,omitempty"`
}

// Scheduled reports whether the session has a slot.
func (s Session) Scheduled() bool { return s.Start != nil && s.End != nil }

// Schedule is the run sheet: the streamed room's sessions and breaks in start order,
// then every session without a slot.
type Schedule struct {
	Room        string    `json:"room"`
	Sessions    []Session `json:"sessions"`
	Unscheduled []Session `json:"unscheduled"`
}

// Day is the scheduled sessions and breaks that start on one date.
type Day struct {
	Date     string    `json:"date"`
	Sessions []Session `json:"sessions"`
}

// Days groups the scheduled sessions by the date they start on, in the slot's own
// time zone.
func (s Schedule) Days() []Day {
	var days []Day
	for _, sess := range s.Sessions {
		date := sess.Start.Format(time.DateOnly)
		if n := len(days); n == 0 || days[n-1].Date != date {
			days = append(days, Day{Date: date})
		}
		days[len(days)-1].Sessions = append(days[len(days)-1].Sessions, sess)
	}
	return days
}

// SubmissionSource pages through submissions. *provider.PretalxClient satisfies it.
type SubmissionSource interface {
	EachSubmission(ctx context.Context, state string, fn func(domain.Submission) error) error
}

// Generator builds the run sheet for one room.
type Generator struct {
	source  SubmissionSource
	room    string
	folders map[string]Folder
	logger  *slog.Logger
}

// NewGenerator creates a Generator. An empty room means MainStream. folders maps
// speaker codes to their recording folders and may be nil.
func NewGenerator(source SubmissionSource, room string, folders map[string]Folder, logger *slog.Logger) *Generator {
	if room == "" {
		room = MainStream
	}
	return &Generator{source: source, room: room, folders: folders, logger: logger}
}

// Build fetches the confirmed sessions and lays them out.
func (g *Generator) Build(ctx context.Context) (Schedule, error) {
	var all []Session
	err := g.source.EachSubmission(ctx, domain.SubmissionConfirmed, func(sub domain.Submission) error {
		if sub.State != domain.SubmissionConfirmed {
			g.logger.Debug("skipping unconfirmed session", "code", sub.Code, "state", sub.State)
			return nil
		}
		all = append(all, g.session(sub))
		return nil
	})
	if err != nil {
		return Schedule{}, fmt.Errorf("list sessions: %w", err)
	}
	return layout(g.room, all), nil
}

func (g *Generator) session(sub domain.Submission) Session {
	kind, ok := Classify(sub.SubmissionType)
	if !ok {
		g.logger.Warn("unknown session type", "code", sub.Code, "type", sub.SubmissionType.Prefer("es", "en"))
	}
	s := Session{
		Code:     sub.Code,
		Title:    sub.Title,
		Kind:     kind,
		State:    sub.State,
		Speakers: make([]string, 0, len(sub.Speakers)),
	}
	if sub.Slot != nil && !sub.Slot.Start.IsZero() && !sub.Slot.End.IsZero() {
		start, end := sub.Slot.Start, sub.Slot.End
		s.Start, s.End = &start, &end
		s.Room = sub.Slot.Room.Prefer("en")
	}
	for _, sp := range sub.Speakers {
		s.Speakers = append(s.Speakers, sp.Name)
		if f, ok := g.folders[sp.Code]; ok && s.FolderID == "" {
			s.FolderID, s.QA = f.ID, f.QA
		}
	}
	return s
}

// layout keeps the room's scheduled sessions in start order with a Break between
// consecutive sessions on the same day that leave a gap.
func layout(room string, all []Session) Schedule {
	out := Schedule{Room: room, Sessions: []Session{}, Unscheduled: []Session{}}

	var streamed []Session
	for _, s := range all {
		switch {
		case !s.Scheduled():
			out.Unscheduled = append(out.Unscheduled, s)
		case s.Room == room:
			streamed = append(streamed, s)
		}
	}
	slices.SortStableFunc(streamed, func(a, b Session) int {
		if c := a.Start.Compare(*b.Start); c != 0 {
			return c
		}
		return strings.Compare(a.Code, b.Code)
	})

	for i, s := range streamed {
		if i > 0 {
			prev := streamed[i-1]
			if prev.End.Before(*s.Start) && sameDay(*prev.Start, *s.Start) {
				out.Sessions = append(out.Sessions, breakBetween(room, prev, s))
			}
		}
		out.Sessions = append(out.Sessions, s)
	}
	return out
}

func breakBetween(room string, prev, next Session) Session {
	start, end := *prev.End, *next.Start
	return Session{
		Title:    "Break",
		Kind:     Break,
		State:    domain.SubmissionConfirmed,
		Room:     room,
		Start:    &start,
		End:      &end,
		Speakers: []string{},
	}
}

func sameDay(a, b time.Time) bool {
	b = b.In(a.Location())
	return a.Year() == b.Year() && a.YearDay() == b.YearDay()
}
