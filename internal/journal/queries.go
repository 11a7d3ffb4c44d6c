package journal

const (
	insertEntryQuery = `
		INSERT INTO print_journal (
			item_id, sender, source, line, state, reason, error, recorded_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	selectRecentQuery = `
		SELECT id, item_id, sender, source, line, state, reason, error, recorded_at
		FROM print_journal
		ORDER BY recorded_at DESC, id DESC
		LIMIT ?
	`

	selectByItemQuery = `
		SELECT id, item_id, sender, source, line, state, reason, error, recorded_at
		FROM print_journal
		WHERE item_id = ?
		ORDER BY recorded_at ASC, id ASC
	`

	countUnresolvedSinceQuery = `
		SELECT COUNT(DISTINCT f.item_id)
		FROM print_journal f
		WHERE f.reason = ? AND f.recorded_at >= ?
		AND NOT EXISTS (
			SELECT 1 FROM print_journal a
			WHERE a.item_id = f.item_id AND a.state = ? AND a.id > f.id
		)
	`

	pruneBeforeQuery = `
		DELETE FROM print_journal
		WHERE recorded_at < ?
	`
)
