// Package dbtest opens in-memory SQLite databases carrying the production
// schema for repository and service tests.
package dbtest

import (
	"fmt"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/smallbiznis/givelane/internal/migration"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var seq atomic.Int64

// sqliteTypes maps postgres column types onto ones the sqlite driver
// converts back into Go values.
var sqliteTypes = strings.NewReplacer(
	"TIMESTAMPTZ", "DATETIME",
	"JSONB", "TEXT",
)

// Open returns a fresh database with every migration applied.
func Open(t testing.TB) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:memdb_%d_%d?mode=memory&cache=shared", time.Now().UnixNano(), seq.Add(1))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	scripts, err := migration.UpScripts()
	if err != nil {
		t.Fatalf("read migrations: %v", err)
	}
	for _, script := range scripts {
		for _, stmt := range strings.Split(sqliteTypes.Replace(script), ";") {
			if strings.TrimSpace(stmt) == "" {
				continue
			}
			if err := db.Exec(stmt).Error; err != nil {
				t.Fatalf("apply schema: %v\n%s", err, stmt)
			}
		}
	}
	return db
}

// Node returns a snowflake node for generating test ids.
func Node(t testing.TB) *snowflake.Node {
	t.Helper()
	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("new node: %v", err)
	}
	return node
}

// Seed inserts a donor and an active campaign and returns their ids.
func Seed(t testing.TB, db *gorm.DB, node *snowflake.Node, currency string) (donorID, campaignID snowflake.ID) {
	t.Helper()
	donorID = node.Generate()
	campaignID = node.Generate()
	if err := db.Exec(`INSERT INTO donors (id, name, email) VALUES (?, ?, ?)`,
		donorID, "Asha Rao", fmt.Sprintf("donor-%s@example.org", donorID)).Error; err != nil {
		t.Fatalf("seed donor: %v", err)
	}
	if err := db.Exec(`INSERT INTO campaigns (id, name, status, currency, goal_amount, raised) VALUES (?, ?, 'active', ?, ?, 0)`,
		campaignID, "Clean Water", currency, 10000000).Error; err != nil {
		t.Fatalf("seed campaign: %v", err)
	}
	return donorID, campaignID
}

// SubscriptionSeed describes a subscription row inserted by SeedSubscription.
type SubscriptionSeed struct {
	DonorID        snowflake.ID
	CampaignID     snowflake.ID
	Provider       string
	ExternalID     string
	Amount         int64
	Currency       string
	Frequency      string
	Status         string
	NextChargeDate time.Time
	FailedPayments int
}

// SeedSubscription inserts a subscription and returns its id.
func SeedSubscription(t testing.TB, db *gorm.DB, node *snowflake.Node, seed SubscriptionSeed) snowflake.ID {
	t.Helper()
	if seed.Frequency == "" {
		seed.Frequency = "monthly"
	}
	if seed.Status == "" {
		seed.Status = "active"
	}
	var campaignID any
	if seed.CampaignID != 0 {
		campaignID = seed.CampaignID
	}
	id := node.Generate()
	now := time.Now().UTC()
	if err := db.Exec(
		`INSERT INTO subscriptions (
			id, donor_id, campaign_id, provider, external_subscription_id, external_plan_id,
			amount, currency, frequency, status, next_charge_date, failed_payments, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, seed.DonorID, campaignID, seed.Provider, seed.ExternalID, "plan_"+seed.ExternalID,
		seed.Amount, seed.Currency, seed.Frequency, seed.Status, seed.NextChargeDate.UTC(),
		seed.FailedPayments, now, now,
	).Error; err != nil {
		t.Fatalf("seed subscription: %v", err)
	}
	return id
}
