// Package statspersist gives corelane.Runtime a durable sink for its
// stats.Registry counters alongside profile's JSON idle-time output.
// Grounded directly on the teacher's own reserve-persistence path
// (syncharvest/syncharvester.go's initializeSchema/Exec pattern over
// database/sql with the mattn/go-sqlite3 driver registered via its
// blank import) — generalized from "Uniswap pair reserves" to
// "per-channel counter snapshot".
package statspersist

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/coldbrewlabs/corelane/stats"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id          INTEGER PRIMARY KEY,
	fingerprint TEXT NOT NULL,
	recorded_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS channel_counters (
	run_id  INTEGER NOT NULL,
	channel INTEGER NOT NULL,
	counter TEXT NOT NULL,
	value   INTEGER NOT NULL,
	PRIMARY KEY (run_id, channel, counter)
) WITHOUT ROWID;
`

// Write opens (or creates) a SQLite database at path, ensures the schema
// above exists, and inserts one runs row tagged with fingerprint and
// recordedAtUnixNano plus one channel_counters row per (channel, Counter)
// pair read from reg.
func Write(path string, reg *stats.Registry, channelCount int, fingerprint string, recordedAtUnixNano int64) error {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return fmt.Errorf("statspersist: open %s: %w", path, err)
	}
	defer db.Close()

	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("statspersist: schema: %w", err)
	}

	res, err := db.Exec(`INSERT INTO runs (fingerprint, recorded_at) VALUES (?, ?)`, fingerprint, recordedAtUnixNano)
	if err != nil {
		return fmt.Errorf("statspersist: insert run: %w", err)
	}
	runID, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("statspersist: run id: %w", err)
	}

	stmt, err := db.Prepare(`INSERT INTO channel_counters (run_id, channel, counter, value) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("statspersist: prepare: %w", err)
	}
	defer stmt.Close()

	for ch := 0; ch < channelCount; ch++ {
		for _, c := range stats.All() {
			if _, err := stmt.Exec(runID, ch, c.String(), reg.Read(c, ch)); err != nil {
				return fmt.Errorf("statspersist: insert counter: %w", err)
			}
		}
	}
	return nil
}
