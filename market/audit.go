package market

import (
	"crypto/rand"
	"encoding/binary"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/cloudmall/storage_market/ledger"
	"github.com/cloudmall/storage_market/merkle"
	"github.com/cloudmall/storage_market/model"
)

const phishDateKey = "phishdate"

// AuditSeeder supplies randomness for phishing audits. Tests swap in a
// deterministic one.
type AuditSeeder interface {
	Seed() uint64
}

type CryptoSeeder struct{}

func (CryptoSeeder) Seed() uint64 {
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		panic("audit seeder: " + err.Error())
	}
	return binary.LittleEndian.Uint64(buf[:])
}

// phishingAudit occasionally opens a system-originated challenge against a
// random delivering order. The unanswerable commitment forces the miner to
// prove possession through arbitration; a miner that lost the data times
// out and is slashed. The order currently being processed is never picked.
func (a *action) phishingAudit(currentOrderID uint64) error {
	var row model.MarketConfig
	err := forUpdate(a.tx).
		Where("`key` = ?", phishDateKey).Take(&row).Error
	if err == gorm.ErrRecordNotFound {
		return a.tx.Create(&model.MarketConfig{Key: phishDateKey, Value: uint64(a.now)}).Error
	}
	if err != nil {
		return err
	}
	if int64(row.Value)+a.cfg.PhishingInterval > a.now {
		return nil
	}

	var count int64
	if err := a.tx.Model(&model.Order{}).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return nil
	}
	var bounds struct {
		Lo uint64
		Hi uint64
	}
	err = a.tx.Model(&model.Order{}).
		Select("MIN(order_id) AS lo, MAX(order_id) AS hi").Take(&bounds).Error
	if err != nil {
		return err
	}
	seed := a.seeder.Seed()
	pick := bounds.Lo + seed%(bounds.Hi-bounds.Lo+1)

	var order model.Order
	err = forUpdate(a.tx).
		Where("state = ? AND order_id >= ? AND order_id <> ?",
			model.OrderStateDeliver, pick, currentOrderID).
		Order("order_id asc").Take(&order).Error
	if err == gorm.ErrRecordNotFound {
		return nil
	}
	if err != nil {
		return err
	}
	challenge, err := a.getChallenge(order.OrderID)
	if err != nil {
		return err
	}
	if !challengeSettled(challenge.State) || challenge.BlockCount == 0 {
		return nil
	}

	var seedBuf [8]byte
	binary.LittleEndian.PutUint64(seedBuf[:], seed)
	commit := merkle.LeafHash(seedBuf[:])
	dataID := binary.LittleEndian.Uint64(commit[:8]) % challenge.BlockCount

	challenge.DataID = dataID
	challenge.CommitHash = commit.Hex()
	challenge.Nonce = uuid.NewString()
	challenge.ChallengeTimes++
	challenge.State = model.ChallengeRequest
	challenge.ChallengeDate = a.now
	challenge.Challenger = ledger.SystemAccount
	if err := a.tx.Save(challenge).Error; err != nil {
		return err
	}
	log.Infow("phishing audit issued", "order", order.OrderID, "block", dataID)

	row.Value = uint64(a.now)
	return a.tx.Save(&row).Error
}
