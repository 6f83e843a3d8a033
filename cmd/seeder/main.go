package main

import (
	"database/sql"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

// Matches the journal's stored timestamp format.
const timestampLayout = "2006-01-02T15:04:05.000Z"

type seedEvent struct {
	offset    time.Duration
	eventType string
	data      map[string]interface{}
}

func main() {
	dbPath := flag.String("db", "./beepwatch.db", "Journal database to seed (run the server once to create it)")
	sessions := flag.Int("sessions", 3, "Number of demo sessions")
	beeps := flag.Int("beeps", 8, "Beeps per session")
	flag.Parse()

	db, err := sql.Open("sqlite3", *dbPath)
	if err != nil {
		log.Fatal(err)
	}
	defer db.Close()

	var table string
	if err := db.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name='events'").Scan(&table); err != nil {
		log.Fatalf("%s has no journal schema; start beepwatch-server with this database first", *dbPath)
	}

	fmt.Println("Seeding journal...")

	base := time.Now().Add(-time.Duration(*sessions) * time.Hour)
	for i := 0; i < *sessions; i++ {
		sessionID := uuid.New().String()
		interval := int64(30_000 * (i + 1))
		started := base.Add(time.Duration(i) * time.Hour)

		events := demoSession(interval, *beeps)
		var maxElapsed, beepCount int64
		for _, e := range events {
			payload, _ := json.Marshal(e.data)
			ts := started.Add(e.offset).UTC().Format(timestampLayout)
			if _, err := db.Exec("INSERT INTO events (session_id, event_type, event_data, created_at) VALUES (?, ?, ?, ?)",
				sessionID, e.eventType, string(payload), ts); err != nil {
				log.Printf("Failed to insert event: %v", err)
				continue
			}
			if e.eventType == "timeReached" {
				beepCount++
			}
			if v, ok := e.data["currentTime"].(int64); ok && v > maxElapsed {
				maxElapsed = v
			}
			if v, ok := e.data["stopTime"].(int64); ok && v > maxElapsed {
				maxElapsed = v
			}
		}

		first := started.UTC().Format(timestampLayout)
		last := started.Add(events[len(events)-1].offset).UTC().Format(timestampLayout)
		if _, err := db.Exec(`INSERT INTO sessions (session_id, first_seen_at, last_seen_at, beep_count, max_elapsed_ms)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT(session_id) DO UPDATE SET
				last_seen_at = excluded.last_seen_at,
				beep_count = excluded.beep_count,
				max_elapsed_ms = excluded.max_elapsed_ms`,
			sessionID, first, last, beepCount, maxElapsed); err != nil {
			log.Printf("Failed to insert session: %v", err)
		}

		fmt.Printf("  session %s: %d events, interval %ds\n", sessionID, len(events), interval/1000)
	}

	fmt.Println("Seeding complete.")
}

// demoSession simulates start, a run of beeps, an interval change and a stop.
func demoSession(interval int64, beeps int) []seedEvent {
	events := []seedEvent{
		{0, "stopwatchStarted", map[string]interface{}{"startTime": int64(0)}},
	}

	var elapsed int64
	for n := 1; n <= beeps; n++ {
		elapsed = interval * int64(n)
		events = append(events, seedEvent{
			offset:    time.Duration(elapsed) * time.Millisecond,
			eventType: "timeReached",
			data:      map[string]interface{}{"currentTime": elapsed},
		})
		if n == beeps/2 {
			events = append(events, seedEvent{
				offset:    time.Duration(elapsed+1) * time.Millisecond,
				eventType: "intervalChanged",
				data:      map[string]interface{}{"interval": interval, "nextBeepAt": elapsed + interval},
			})
		}
	}

	stop := elapsed + interval/2
	events = append(events, seedEvent{
		offset:    time.Duration(stop) * time.Millisecond,
		eventType: "stopwatchStopped",
		data:      map[string]interface{}{"stopTime": stop},
	})
	return events
}
