package library

import "time"

// Entry holds metadata for a saved dataset.
type Entry struct {
	ID      string    `json:"id"`
	Name    string    `json:"name"`
	File    string    `json:"file"`
	Rows    int       `json:"rows"`
	Cols    int       `json:"cols"`
	SavedAt time.Time `json:"saved_at"`
}
