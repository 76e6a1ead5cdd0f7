package model

import "github.com/shopspring/decimal"

type ChallengeState uint8

const (
	ChallengePrepare             ChallengeState = 0
	ChallengeConsistent          ChallengeState = 1
	ChallengeCancel              ChallengeState = 2
	ChallengeRequest             ChallengeState = 3
	ChallengeAnswer              ChallengeState = 4
	ChallengeArbitrationMinerPay ChallengeState = 5
	ChallengeArbitrationUserPay  ChallengeState = 6
	ChallengeTimeout             ChallengeState = 7
)

// Challenge is the proof-of-storage dispute record, keyed 1:1 with an Order.
// Hashes are stored hex encoded.
type Challenge struct {
	OrderID uint64 `gorm:"primaryKey;autoIncrement:false"`

	PreMerkleRoot string `gorm:"type:varchar(64)"`
	PreBlockCount uint64
	MerkleRoot    string `gorm:"type:varchar(64)"`
	BlockCount    uint64

	MerkleSubmitter string `gorm:"type:varchar(255)"`
	DataID          uint64
	CommitHash      string `gorm:"type:varchar(64)"`
	Nonce           string `gorm:"type:varchar(255)"`
	ChallengeTimes  uint64

	State         ChallengeState
	UserLock      decimal.Decimal `gorm:"type:DECIMAL(38,4)"`
	MinerPay      decimal.Decimal `gorm:"type:DECIMAL(38,4)"`
	ChallengeDate int64
	Challenger    string `gorm:"type:varchar(255)"`
}

func (Challenge) TableName() string {
	return "challenge"
}
