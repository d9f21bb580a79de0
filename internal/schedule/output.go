package schedule

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"
)

// FolderURL is the link to a recording folder id.
const FolderURL = "https://drive.google.com/drive/folders/"

var csvHeader = []string{
	"session_code", "title", "submission_type", "state", "room",
	"start_time", "end_time", "speakers", "folder_id", "q&a", "folder_url",
}

// WriteCSV writes the run sheet with the streamed sessions first, then the
// unscheduled ones.
func (s Schedule) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("write schedule header: %w", err)
	}
	for _, rows := range [][]Session{s.Sessions, s.Unscheduled} {
		for _, sess := range rows {
			if err := cw.Write(sess.record()); err != nil {
				return fmt.Errorf("write session %s: %w", sess.Code, err)
			}
		}
	}
	cw.Flush()
	return cw.Error()
}

func (s Session) record() []string {
	url := ""
	if s.FolderID != "" {
		url = FolderURL + s.FolderID
	}
	return []string{
		s.Code, s.Title, string(s.Kind), s.State, s.Room,
		formatTime(s.Start), formatTime(s.End),
		strings.Join(s.Speakers, ","), s.FolderID, s.QA, url,
	}
}

func formatTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(time.RFC3339)
}

type jsonSchedule struct {
	Room        string    `json:"room"`
	Days        []Day     `json:"days"`
	Unscheduled []Session `json:"unscheduled"`
}

// WriteJSON writes the run sheet grouped by day.
func (s Schedule) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	days := s.Days()
	if days == nil {
		days = []Day{}
	}
	if err := enc.Encode(jsonSchedule{Room: s.Room, Days: days, Unscheduled: s.Unscheduled}); err != nil {
		return fmt.Errorf("encode schedule: %w", err)
	}
	return nil
}
