//cmd/seeder/main.go
package main

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
)

const schema = `
CREATE TABLE IF NOT EXISTS campaigns (
    id                UUID PRIMARY KEY,
    type              TEXT NOT NULL,
    status            TEXT NOT NULL DEFAULT 'pending',
    subject           TEXT NOT NULL DEFAULT '',
    message_body      TEXT NOT NULL DEFAULT '',
    recipients        JSONB NOT NULL,
    total_recipients  INT NOT NULL,
    sent_count        INT NOT NULL DEFAULT 0,
    failed_count      INT NOT NULL DEFAULT 0,
    failed_deliveries JSONB NOT NULL DEFAULT '[]',
    created_at        TIMESTAMPTZ NOT NULL,
    completed_at      TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS idx_campaigns_active
    ON campaigns (created_at)
    WHERE status IN ('pending', 'in_progress');

CREATE TABLE IF NOT EXISTS action_log (
    id         SERIAL PRIMARY KEY,
    kind       TEXT NOT NULL,
    created_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_action_log_kind ON action_log (kind, created_at DESC);
`

type demoRecipient struct {
	Email     string `json:"email"`
	Phone     string `json:"phone"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Sent      bool   `json:"sent"`
}

func main() {
	dsn := os.Getenv("DATABASE_URL")
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		log.Fatal(err)
	}
	defer db.Close()

	if _, err := db.Exec(schema); err != nil {
		log.Fatalf("failed to create schema: %v", err)
	}
	fmt.Println("Schema created.")

	if os.Getenv("SEED_DEMO") == "" {
		fmt.Println("Set SEED_DEMO=1 to insert a demo campaign.")
		return
	}

	roster := make([]demoRecipient, 0, 120)
	for i := 1; i <= 120; i++ {
		roster = append(roster, demoRecipient{
			Email:     fmt.Sprintf("member%03d@example.org", i),
			Phone:     fmt.Sprintf("+2547000%05d", i),
			FirstName: "Member",
			LastName:  fmt.Sprintf("%03d", i),
		})
	}

	rosterJSON, err := json.Marshal(roster)
	if err != nil {
		log.Fatal(err)
	}

	_, err = db.Exec(`
        INSERT INTO campaigns (id, type, status, subject, message_body, recipients, total_recipients, created_at)
        VALUES ($1, 'welfare_notification', 'pending', $2, $3, $4, $5, $6)`,
		uuid.NewString(),
		"Welfare contribution notice",
		"Hello {first_name}, a welfare case has been opened. Please check your portal for details.",
		rosterJSON,
		len(roster),
		time.Now(),
	)
	if err != nil {
		log.Fatalf("failed to seed demo campaign: %v", err)
	}

	fmt.Println("Database seeding completed successfully!")
}
