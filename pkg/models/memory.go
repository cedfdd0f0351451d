package models

// Media kinds accepted on the wire.
const (
	TypeImage = "image"
	TypeVideo = "video"
)

// MemoryRecord is the wire encoding of one memory inside a collection snapshot.
// The record ID is not part of the body; snapshots key records by ID.
type MemoryRecord struct {
	URL       string `json:"url"`
	Type      string `json:"type"` // image, video
	Title     string `json:"title"`
	Date      string `json:"date"`      // YYYY-MM-DD
	Timestamp int64  `json:"timestamp"` // ms since epoch, assigned server side
}

// Snapshot is the full content of a collection keyed by record ID.
type Snapshot map[string]MemoryRecord

// LocalMemory is one entry of the list the first browser revision kept in
// local storage under the "memories" key.
type LocalMemory struct {
	ID        int64  `json:"id"`
	ImageURL  string `json:"imageUrl"`
	Title     string `json:"title"`
	Date      string `json:"date"`
	Timestamp int64  `json:"timestamp"`
}
