package database

import (
	"database/sql"
	"fmt"
	"time"

	"forum-sync/models"
)

// AddThreadToExclusionList adds a thread to the exclusion list, replacing any
// previous entry for it.
func AddThreadToExclusionList(db *sql.DB, channelID, threadID, reason string) error {
	query := `INSERT OR REPLACE INTO exclusions (thread_id, channel_id, reason, timestamp) VALUES (?, ?, ?, ?)`
	stmt, err := db.Prepare(query)
	if err != nil {
		return err
	}
	defer stmt.Close()

	_, err = stmt.Exec(threadID, channelID, reason, time.Now().Unix())
	return err
}

// RemoveThreadFromExclusionList deletes a thread from the exclusion list and
// reports whether it was present.
func RemoveThreadFromExclusionList(db *sql.DB, channelID, threadID string) (bool, error) {
	res, err := db.Exec(`DELETE FROM exclusions WHERE thread_id = ? AND channel_id = ?`, threadID, channelID)
	if err != nil {
		return false, fmt.Errorf("failed to remove exclusion for thread %s: %w", threadID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// GetExcludedThreads returns the excluded thread ids of a channel.
func GetExcludedThreads(db *sql.DB, channelID string) (map[string]bool, error) {
	rows, err := db.Query("SELECT thread_id FROM exclusions WHERE channel_id = ?", channelID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	excluded := make(map[string]bool)
	for rows.Next() {
		var threadID string
		if err := rows.Scan(&threadID); err != nil {
			return nil, err
		}
		excluded[threadID] = true
	}
	return excluded, rows.Err()
}

// ListExclusions returns the exclusion entries of a channel, most recent first.
func ListExclusions(db *sql.DB, channelID string) ([]models.Exclusion, error) {
	rows, err := db.Query(`
    SELECT thread_id, channel_id, reason, timestamp FROM exclusions
    WHERE channel_id = ? ORDER BY timestamp DESC, thread_id`, channelID)
	if err != nil {
		return nil, fmt.Errorf("failed to query exclusions: %w", err)
	}
	defer rows.Close()

	var list []models.Exclusion
	for rows.Next() {
		var (
			e      models.Exclusion
			reason sql.NullString
			ts     int64
		)
		if err := rows.Scan(&e.ThreadID, &e.ChannelID, &reason, &ts); err != nil {
			return nil, fmt.Errorf("failed to scan exclusion: %w", err)
		}
		e.Reason = reason.String
		e.Timestamp = time.Unix(ts, 0).UTC()
		list = append(list, e)
	}
	return list, rows.Err()
}
