package db

import (
	"database/sql"
	"strconv"
)

// Selection is the persisted "currently selected folder".
type Selection struct {
	db *sql.DB
}

// NewSelection returns a Selection backed by db.
func NewSelection(db *sql.DB) *Selection {
	return &Selection{db: db}
}

// Get returns the selected folder id. A stored value that is not an integer is
// cleared and reported as no selection.
func (s *Selection) Get() (int64, bool, error) {
	raw, ok, err := GetPreference(s.db, SelectedFolderKey)
	if err != nil || !ok {
		return 0, false, err
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		if err := s.Clear(); err != nil {
			return 0, false, err
		}
		return 0, false, nil
	}
	return id, true, nil
}

// Set persists id as the selection.
func (s *Selection) Set(id int64) error {
	return SetPreference(s.db, SelectedFolderKey, strconv.FormatInt(id, 10))
}

// Clear forgets the selection.
func (s *Selection) Clear() error {
	return DeletePreference(s.db, SelectedFolderKey)
}
