package repository

import (
	"context"
	"database/sql"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/astroline/astroline-bot/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// The repository queries stay inside the SQL subset sqlite shares with
// Postgres, so an in-memory database is enough to exercise the registration
// transaction for real.
const testSchema = `
CREATE TABLE profiles (
	user_id INTEGER PRIMARY KEY,
	chat_id INTEGER NOT NULL,
	name TEXT NOT NULL,
	birth_date TEXT NOT NULL,
	birth_time TEXT NOT NULL,
	birth_place TEXT NOT NULL,
	message_time TEXT NOT NULL,
	registered_at TIMESTAMP NOT NULL,
	referral_code TEXT NOT NULL UNIQUE,
	referred_by TEXT,
	points INTEGER NOT NULL DEFAULT 0,
	is_subscribed INTEGER NOT NULL DEFAULT 0,
	subscription_expiry TIMESTAMP
);

CREATE TABLE referrals (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	referrer_code TEXT NOT NULL,
	referred_user_id INTEGER NOT NULL,
	created_at TIMESTAMP NOT NULL,
	UNIQUE (referrer_code, referred_user_id)
);
`

func setupTestRepo(t *testing.T) (ProfileRepository, *sql.DB) {
	t.Helper()

	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	// one connection, or every pooled connection gets its own memory db
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	_, err = db.Exec(testSchema)
	require.NoError(t, err)

	return NewProfileRepository(db, testLogger()), db
}

func testProfile(userID int64) *domain.Profile {
	return &domain.Profile{
		UserID:       userID,
		ChatID:       userID,
		Name:         "Anna",
		BirthDate:    "2000-01-01",
		BirthTime:    "12:00",
		BirthPlace:   "Berlin",
		MessageTime:  "09:00",
		RegisteredAt: time.Date(2026, time.March, 10, 12, 0, 0, 0, time.UTC),
	}
}

func storedPoints(t *testing.T, db *sql.DB, userID int64) int64 {
	t.Helper()

	var points int64
	require.NoError(t, db.QueryRow(`SELECT points FROM profiles WHERE user_id = $1`, userID).Scan(&points))
	return points
}

func edgeCount(t *testing.T, db *sql.DB) int64 {
	t.Helper()

	var count int64
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM referrals`).Scan(&count))
	return count
}

func TestProfileRepository_CreateCreditsReferrer(t *testing.T) {
	repo, db := setupTestRepo(t)
	ctx := context.Background()

	referrer := testProfile(1)
	created, credited, err := repo.Create(ctx, referrer, "", 10)
	require.NoError(t, err)
	assert.True(t, created)
	assert.False(t, credited)
	assert.Len(t, referrer.ReferralCode, 8)

	referred := testProfile(2)
	created, credited, err = repo.Create(ctx, referred, referrer.ReferralCode, 10)
	require.NoError(t, err)
	assert.True(t, created)
	assert.True(t, credited)

	assert.Equal(t, int64(10), storedPoints(t, db, 1))
	assert.Equal(t, int64(1), edgeCount(t, db))

	var referredID int64
	require.NoError(t, db.QueryRow(
		`SELECT referred_user_id FROM referrals WHERE referrer_code = $1`,
		referrer.ReferralCode,
	).Scan(&referredID))
	assert.Equal(t, int64(2), referredID)

	status, err := repo.ReferralStatus(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(1), status.ReferredCount)
	assert.Equal(t, int64(10), status.Points)
}

func TestProfileRepository_CreateDuplicateIsNoOp(t *testing.T) {
	repo, db := setupTestRepo(t)
	ctx := context.Background()

	referrer := testProfile(1)
	_, _, err := repo.Create(ctx, referrer, "", 10)
	require.NoError(t, err)

	referred := testProfile(2)
	created, credited, err := repo.Create(ctx, referred, referrer.ReferralCode, 10)
	require.NoError(t, err)
	assert.True(t, created)
	assert.True(t, credited)

	// the replay must not pay the referrer a second time
	created, credited, err = repo.Create(ctx, testProfile(2), referrer.ReferralCode, 10)
	require.NoError(t, err)
	assert.False(t, created)
	assert.False(t, credited)

	assert.Equal(t, int64(10), storedPoints(t, db, 1))
	assert.Equal(t, int64(1), edgeCount(t, db))
}

func TestProfileRepository_CreateUnknownCodeSkipsCreditAndEdge(t *testing.T) {
	repo, db := setupTestRepo(t)
	ctx := context.Background()

	bystander := testProfile(1)
	_, _, err := repo.Create(ctx, bystander, "", 10)
	require.NoError(t, err)

	created, credited, err := repo.Create(ctx, testProfile(2), "ZZ99ZZ99", 10)
	require.NoError(t, err)
	assert.True(t, created)
	assert.False(t, credited)

	assert.Equal(t, int64(0), storedPoints(t, db, 1))
	assert.Equal(t, int64(0), edgeCount(t, db))
}

func TestProfileRepository_ReferralStatusCountsOnlyOwnEdges(t *testing.T) {
	repo, _ := setupTestRepo(t)
	ctx := context.Background()

	alice := testProfile(1)
	_, _, err := repo.Create(ctx, alice, "", 10)
	require.NoError(t, err)

	bob := testProfile(2)
	_, _, err = repo.Create(ctx, bob, "", 10)
	require.NoError(t, err)

	_, _, err = repo.Create(ctx, testProfile(3), alice.ReferralCode, 10)
	require.NoError(t, err)
	_, _, err = repo.Create(ctx, testProfile(4), alice.ReferralCode, 10)
	require.NoError(t, err)

	aliceStatus, err := repo.ReferralStatus(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(2), aliceStatus.ReferredCount)
	assert.Equal(t, int64(20), aliceStatus.Points)

	bobStatus, err := repo.ReferralStatus(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(0), bobStatus.ReferredCount)
	assert.Equal(t, int64(0), bobStatus.Points)
}
