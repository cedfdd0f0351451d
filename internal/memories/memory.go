package memories

import (
	"cmp"
	"slices"
	"strings"
	"time"

	wire "nuestra-historia/pkg/models"
)

type Kind string

const (
	KindImage Kind = wire.TypeImage
	KindVideo Kind = wire.TypeVideo
)

// ParseKind maps a wire type to a Kind. Anything that is not a video is shown
// as an image, which is what records written before video support carry.
func ParseKind(s string) Kind {
	if strings.EqualFold(strings.TrimSpace(s), wire.TypeVideo) {
		return KindVideo
	}
	return KindImage
}

const (
	// DefaultTitle replaces a title left blank at creation.
	DefaultTitle = "Sin título"
	// DateLayout is the calendar date format used on the wire.
	DateLayout = "2006-01-02"
)

// Memory is one uploaded photo or video as shown in the gallery.
type Memory struct {
	ID        string `json:"id"`
	URL       string `json:"url"`
	Kind      Kind   `json:"kind"`
	Title     string `json:"title"`
	Date      string `json:"date"`
	CreatedAt int64  `json:"createdAt"` // ms since epoch
}

// Fields are the caller supplied parts of a new memory.
type Fields struct {
	Title string
	Date  string
	URL   string
	Kind  Kind
}

// Encode builds the wire record for f, filling the placeholder title and
// today's date when they were omitted. The timestamp is left for the server.
func Encode(f Fields, now time.Time) wire.MemoryRecord {
	title := strings.TrimSpace(f.Title)
	if title == "" {
		title = DefaultTitle
	}
	date := strings.TrimSpace(f.Date)
	if date == "" {
		date = now.UTC().Format(DateLayout)
	}
	kind := f.Kind
	if kind == "" {
		kind = KindImage
	}

	return wire.MemoryRecord{
		URL:   f.URL,
		Type:  string(kind),
		Title: title,
		Date:  date,
	}
}

// Decode converts a keyed snapshot into display order. The result is never nil.
func Decode(snapshot wire.Snapshot) []Memory {
	out := make([]Memory, 0, len(snapshot))
	for id, rec := range snapshot {
		title := rec.Title
		if strings.TrimSpace(title) == "" {
			title = DefaultTitle
		}
		out = append(out, Memory{
			ID:        id,
			URL:       rec.URL,
			Kind:      ParseKind(rec.Type),
			Title:     title,
			Date:      rec.Date,
			CreatedAt: rec.Timestamp,
		})
	}
	Sort(out)
	return out
}

// Sort orders memories by date descending, then creation time descending,
// then id. A missing or malformed date counts as the UTC day of CreatedAt.
func Sort(list []Memory) {
	days := make(map[string]string, len(list))
	for _, m := range list {
		days[m.ID] = sortDay(m)
	}

	slices.SortFunc(list, func(a, b Memory) int {
		if c := strings.Compare(days[b.ID], days[a.ID]); c != 0 {
			return c
		}
		if c := cmp.Compare(b.CreatedAt, a.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
}

func sortDay(m Memory) string {
	if t, err := time.Parse(DateLayout, strings.TrimSpace(m.Date)); err == nil {
		return t.Format(DateLayout)
	}
	return time.UnixMilli(m.CreatedAt).UTC().Format(DateLayout)
}
