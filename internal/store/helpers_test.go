package store_test

import (
	"database/sql"

	_ "modernc.org/sqlite"
)

func bumpSchemaVersion(path string) error {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return err
	}
	defer db.Close()
	_, err = db.Exec(`PRAGMA user_version = 99`)
	return err
}

func setCreatedAt(path, id, createdAt string) error {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return err
	}
	defer db.Close()
	_, err = db.Exec(`UPDATE jobs SET created_at = ? WHERE id = ?`, createdAt, id)
	return err
}
