package billing

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"github.com/ManuelReschke/OpsLedger/app/models"
)

// dryRunDB renders statements without a server and hands each create
// statement to capture.
func dryRunDB(t *testing.T, capture func(sql string, vars []interface{})) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(mysql.New(mysql.Config{
		DSN:                       "opsledger:opsledger@tcp(127.0.0.1:3306)/opsledger?parseTime=true",
		SkipInitializeWithVersion: true,
	}), &gorm.Config{DryRun: true})
	require.NoError(t, err)
	require.NoError(t, db.Callback().Create().After("gorm:create").Register("test:capture", func(tx *gorm.DB) {
		capture(tx.Statement.SQL.String(), tx.Statement.Vars)
	}))
	return db
}

func TestUpsertSubscriptionRefreshesUpdatedAt(t *testing.T) {
	var sql string
	var vars []interface{}
	db := dryRunDB(t, func(s string, v []interface{}) { sql, vars = s, v })

	stale := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	agg := &models.BillingSubscription{
		ID:                   7,
		StripeSubscriptionID: "sub_1",
		OrganizationID:       "org_1",
		Status:               models.SubscriptionStatusActive,
		StartsAt:             stale,
		CreatedAt:            stale,
		UpdatedAt:            stale,
	}

	before := time.Now().UTC().Add(-time.Second)
	_ = NewRepository(db).UpsertSubscription(context.Background(), agg)

	assert.True(t, agg.UpdatedAt.After(before), "updated_at %v not refreshed", agg.UpdatedAt)
	assert.Equal(t, stale, agg.CreatedAt)
	assert.Contains(t, sql, "ON DUPLICATE KEY UPDATE")
	assert.Contains(t, sql, "`updated_at`=VALUES(`updated_at`)")
	assert.NotContains(t, sql, "`created_by`=VALUES")

	var stamped bool
	for _, v := range vars {
		if ts, ok := v.(time.Time); ok && ts.Equal(agg.UpdatedAt) {
			stamped = true
		}
	}
	assert.True(t, stamped, "insert values carry the stale updated_at: %v", vars)
}

func TestInsertCancellationIgnoresReplays(t *testing.T) {
	var sql string
	db := dryRunDB(t, func(s string, _ []interface{}) { sql = s })

	eventID := "evt_1"
	rec := &models.BillingCancellation{ID: "c_1", StripeID: "sub_1", StripeEventID: &eventID, Reason: models.DefaultCancellationReason}
	require.NoError(t, NewRepository(db).InsertCancellation(context.Background(), rec))

	assert.Contains(t, sql, "INSERT INTO `cancellations`")
	assert.Contains(t, sql, "ON DUPLICATE KEY UPDATE `id`=`id`")
}
