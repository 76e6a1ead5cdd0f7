package ledger

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/cloudmall/storage_market/model"
)

func newTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(
		sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())),
		&gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&model.AccountBalance{}, &model.LockedBalance{}))
	return db
}

func TestCreditAndDebit(t *testing.T) {
	db := newTestDB(t)
	s := NewStore()

	require.NoError(t, s.Credit(db, "alice", NewAsset(100, Collateral)))
	require.NoError(t, s.Credit(db, "alice", NewAsset(25, Collateral)))
	b, err := s.Balance(db, "alice", Collateral)
	require.NoError(t, err)
	require.True(t, b.Amount.Equal(NewAsset(125, Collateral).Amount))

	require.NoError(t, s.Debit(db, "alice", NewAsset(125, Collateral)))
	b, err = s.Balance(db, "alice", Collateral)
	require.NoError(t, err)
	require.True(t, b.IsZero())
}

func TestDebitInsufficient(t *testing.T) {
	db := newTestDB(t)
	s := NewStore()

	require.Error(t, s.Debit(db, "nobody", NewAsset(1, Collateral)))

	require.NoError(t, s.Credit(db, "alice", NewAsset(10, Collateral)))
	require.Error(t, s.Debit(db, "alice", NewAsset(11, Collateral)))
	// a failed debit must not touch the balance
	b, err := s.Balance(db, "alice", Collateral)
	require.NoError(t, err)
	require.True(t, b.Amount.Equal(NewAsset(10, Collateral).Amount))
}

func TestSymbolsAreIndependent(t *testing.T) {
	db := newTestDB(t)
	s := NewStore()

	require.NoError(t, s.Credit(db, "alice", NewAsset(10, Collateral)))
	require.NoError(t, s.Credit(db, "alice", NewAsset(7, Capacity)))

	require.Error(t, s.Debit(db, "alice", NewAsset(8, Capacity)))
	require.NoError(t, s.Debit(db, "alice", NewAsset(7, Capacity)))
	b, err := s.Balance(db, "alice", Collateral)
	require.NoError(t, err)
	require.True(t, b.Amount.Equal(NewAsset(10, Collateral).Amount))
}

func TestLockMaturesByTime(t *testing.T) {
	db := newTestDB(t)
	s := NewStore()

	require.NoError(t, s.Lock(db, "alice", NewAsset(30, Collateral), 1000))
	require.NoError(t, s.Lock(db, "alice", NewAsset(20, Collateral), 2000))

	released, err := s.Unlock(db, "alice", Collateral, 500)
	require.NoError(t, err)
	require.True(t, released.IsZero())

	released, err = s.Unlock(db, "alice", Collateral, 1000)
	require.NoError(t, err)
	require.True(t, released.Amount.Equal(NewAsset(30, Collateral).Amount))

	released, err = s.Unlock(db, "alice", Collateral, 5000)
	require.NoError(t, err)
	require.True(t, released.Amount.Equal(NewAsset(20, Collateral).Amount))

	// matured buckets were swept into the free balance exactly once
	b, err := s.Balance(db, "alice", Collateral)
	require.NoError(t, err)
	require.True(t, b.Amount.Equal(NewAsset(50, Collateral).Amount))

	released, err = s.Unlock(db, "alice", Collateral, 5000)
	require.NoError(t, err)
	require.True(t, released.IsZero())
}
