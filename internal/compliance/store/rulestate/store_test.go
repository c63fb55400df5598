package rulestate

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"

	"tokengate/internal/compliance/models"
	"tokengate/internal/compliance/ports"
	id "tokengate/pkg/domain"
)

// RuleStateStoreSuite exercises the RuleStateStore contract. It runs once per
// backend so memory and Redis stay behaviorally identical.
type RuleStateStoreSuite struct {
	suite.Suite
	ctx      context.Context
	newStore func(t *testing.T) ports.RuleStateStore
	store    ports.RuleStateStore
}

func TestInMemoryStore(t *testing.T) {
	suite.Run(t, &RuleStateStoreSuite{
		newStore: func(*testing.T) ports.RuleStateStore { return NewInMemoryStore() },
	})
}

func TestRedisStore(t *testing.T) {
	suite.Run(t, &RuleStateStoreSuite{
		newStore: func(t *testing.T) ports.RuleStateStore {
			mr := miniredis.RunT(t)
			return NewRedis(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
		},
	})
}

func (s *RuleStateStoreSuite) SetupTest() {
	s.ctx = context.Background()
	s.store = s.newStore(s.T())
}

func (s *RuleStateStoreSuite) newRow(token, subject string) *models.TransferRestrictions {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	row, err := models.NewTransferRestrictions(
		id.TokenID(token), id.Address(subject),
		decimal.NewFromInt(1000), decimal.NewFromInt(5000), decimal.NewFromInt(50000),
		10, 100, time.Minute, now,
	)
	s.Require().NoError(err)
	return row
}

// ============================================================
// Get / Upsert
// ============================================================

func (s *RuleStateStoreSuite) TestGetMissingReturnsNil() {
	row, err := s.store.Get(s.ctx, "tkn-1", "alice")
	s.Require().NoError(err)
	s.Nil(row)
}

func (s *RuleStateStoreSuite) TestUpsertThenGet() {
	row := s.newRow("tkn-1", "alice")
	s.Require().NoError(s.store.Upsert(s.ctx, row))

	got, err := s.store.Get(s.ctx, "tkn-1", "alice")
	s.Require().NoError(err)
	s.Require().NotNil(got)
	s.Equal(row.Token, got.Token)
	s.Equal(row.Subject, got.Subject)
	s.True(row.MaxTransferAmount.Equal(got.MaxTransferAmount))
	s.Equal(row.DailyCountLimit, got.DailyCountLimit)
	s.Equal(row.TransferLockDuration, got.TransferLockDuration)
}

func (s *RuleStateStoreSuite) TestUpsertReplacesExistingRow() {
	row := s.newRow("tkn-1", "alice")
	s.Require().NoError(s.store.Upsert(s.ctx, row))

	row.DailyCountUsed = 7
	row.DailyVolumeUsed = decimal.NewFromInt(350)
	s.Require().NoError(s.store.Upsert(s.ctx, row))

	got, err := s.store.Get(s.ctx, "tkn-1", "alice")
	s.Require().NoError(err)
	s.Require().NotNil(got)
	s.Equal(7, got.DailyCountUsed)
	s.True(got.DailyVolumeUsed.Equal(decimal.NewFromInt(350)))
}

func (s *RuleStateStoreSuite) TestMutatingReturnedRowDoesNotAffectStore() {
	s.Require().NoError(s.store.Upsert(s.ctx, s.newRow("tkn-1", "alice")))

	got, err := s.store.Get(s.ctx, "tkn-1", "alice")
	s.Require().NoError(err)
	got.DailyCountUsed = 99

	again, err := s.store.Get(s.ctx, "tkn-1", "alice")
	s.Require().NoError(err)
	s.Equal(0, again.DailyCountUsed)
}

// ============================================================
// Default row
// ============================================================

func (s *RuleStateStoreSuite) TestDefaultRowIsKeyedByEmptySubject() {
	def := s.newRow("tkn-1", "")
	s.Require().NoError(s.store.Upsert(s.ctx, def))

	got, err := s.store.GetDefault(s.ctx, "tkn-1")
	s.Require().NoError(err)
	s.Require().NotNil(got)
	s.True(got.IsGlobalDefault())

	// Default row never shadows a per-subject lookup.
	perSubject, err := s.store.Get(s.ctx, "tkn-1", "alice")
	s.Require().NoError(err)
	s.Nil(perSubject)
}

func (s *RuleStateStoreSuite) TestGetDefaultMissingReturnsNil() {
	got, err := s.store.GetDefault(s.ctx, "tkn-1")
	s.Require().NoError(err)
	s.Nil(got)
}

// ============================================================
// Delete / List
// ============================================================

func (s *RuleStateStoreSuite) TestDeleteRemovesRow() {
	s.Require().NoError(s.store.Upsert(s.ctx, s.newRow("tkn-1", "alice")))
	s.Require().NoError(s.store.Delete(s.ctx, "tkn-1", "alice"))

	got, err := s.store.Get(s.ctx, "tkn-1", "alice")
	s.Require().NoError(err)
	s.Nil(got)
}

func (s *RuleStateStoreSuite) TestDeleteMissingIsNoop() {
	s.Require().NoError(s.store.Delete(s.ctx, "tkn-1", "ghost"))
}

func (s *RuleStateStoreSuite) TestListReturnsInsertionOrderScopedToToken() {
	s.Require().NoError(s.store.Upsert(s.ctx, s.newRow("tkn-1", "carol")))
	s.Require().NoError(s.store.Upsert(s.ctx, s.newRow("tkn-1", "alice")))
	s.Require().NoError(s.store.Upsert(s.ctx, s.newRow("tkn-2", "bob")))
	s.Require().NoError(s.store.Upsert(s.ctx, s.newRow("tkn-1", "bob")))

	rows, err := s.store.List(s.ctx, "tkn-1")
	s.Require().NoError(err)
	s.Require().Len(rows, 3)
	s.Equal("carol", rows[0].Subject.String())
	s.Equal("alice", rows[1].Subject.String())
	s.Equal("bob", rows[2].Subject.String())
}

func (s *RuleStateStoreSuite) TestListUpdateKeepsPosition() {
	s.Require().NoError(s.store.Upsert(s.ctx, s.newRow("tkn-1", "alice")))
	s.Require().NoError(s.store.Upsert(s.ctx, s.newRow("tkn-1", "bob")))

	alice := s.newRow("tkn-1", "alice")
	alice.DailyCountUsed = 3
	s.Require().NoError(s.store.Upsert(s.ctx, alice))

	rows, err := s.store.List(s.ctx, "tkn-1")
	s.Require().NoError(err)
	s.Require().Len(rows, 2)
	s.Equal("alice", rows[0].Subject.String())
	s.Equal("bob", rows[1].Subject.String())
}
