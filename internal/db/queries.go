package db

import (
	"database/sql"
	stderrors "errors"
	"time"

	"github.com/hpungsan/folio/internal/errors"
)

// SelectedFolderKey stores the last selected folder id as a decimal string.
const SelectedFolderKey = "selectedFolderId"

// GetPreference returns the stored value for key. ok is false when unset.
func GetPreference(db *sql.DB, key string) (value string, ok bool, err error) {
	err = db.QueryRow(`SELECT value FROM preferences WHERE key = ?`, key).Scan(&value)
	if stderrors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, errors.NewInternal(err)
	}
	return value, true, nil
}

// SetPreference upserts key.
func SetPreference(db *sql.DB, key, value string) error {
	_, err := db.Exec(`
		INSERT INTO preferences (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`, key, value, time.Now().Unix())
	if err != nil {
		return errors.NewInternal(err)
	}
	return nil
}

// DeletePreference removes key. Deleting a missing key is not an error.
func DeletePreference(db *sql.DB, key string) error {
	if _, err := db.Exec(`DELETE FROM preferences WHERE key = ?`, key); err != nil {
		return errors.NewInternal(err)
	}
	return nil
}

// SetFolderOpen records whether a folder is expanded in the navigation tree.
func SetFolderOpen(db *sql.DB, folderID int64, open bool) error {
	var err error
	if open {
		_, err = db.Exec(`
			INSERT INTO open_folders (folder_id, updated_at) VALUES (?, ?)
			ON CONFLICT(folder_id) DO UPDATE SET updated_at = excluded.updated_at
		`, folderID, time.Now().Unix())
	} else {
		_, err = db.Exec(`DELETE FROM open_folders WHERE folder_id = ?`, folderID)
	}
	if err != nil {
		return errors.NewInternal(err)
	}
	return nil
}

// OpenFolders returns the set of expanded folder ids.
func OpenFolders(db *sql.DB) (map[int64]bool, error) {
	rows, err := db.Query(`SELECT folder_id FROM open_folders`)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	defer rows.Close()

	open := make(map[int64]bool)
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, errors.NewInternal(err)
		}
		open[id] = true
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewInternal(err)
	}
	return open, nil
}
