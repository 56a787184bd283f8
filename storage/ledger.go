package storage

import (
	"encoding/binary"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"
)

var (
	bucketBalances = []byte("ledger_balances")
	bucketShares   = []byte("ledger_shares")
)

// Ledger is a bbolt-backed custody ledger holding per-account asset balances
// and share-token balances. It implements lending.ValueMover and
// lending.ShareToken; each call is one write transaction, so a transfer's
// debit and credit always land together.
//
// The ledger deliberately lives in its own database file so engine operations
// wrapped in Store.InTransaction never nest write transactions.
type Ledger struct {
	db *bolt.DB
}

// OpenLedger creates or opens the custody ledger at path.
func OpenLedger(path string) (*Ledger, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("storage: open ledger %s: %w", path, err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{bucketBalances, bucketShares} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("storage: create ledger buckets: %w", err)
	}
	return &Ledger{db: db}, nil
}

// Close releases the underlying database.
func (l *Ledger) Close() error { return l.db.Close() }

func balanceKey(asset, account string) []byte {
	return []byte(asset + "\x00" + account)
}

func getAmount(bucket *bolt.Bucket, key []byte) uint64 {
	raw := bucket.Get(key)
	if len(raw) != 8 {
		return 0
	}
	return binary.BigEndian.Uint64(raw)
}

func putAmount(bucket *bolt.Bucket, key []byte, amount uint64) error {
	var raw [8]byte
	binary.BigEndian.PutUint64(raw[:], amount)
	return bucket.Put(key, raw[:])
}

// Move transfers amount between accounts, rejecting overdrafts.
func (l *Ledger) Move(asset, from, to string, amount uint64) error {
	if amount == 0 {
		return nil
	}
	return l.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(bucketBalances)
		fromKey := balanceKey(asset, from)
		balance := getAmount(bucket, fromKey)
		if balance < amount {
			return fmt.Errorf("storage: %s holds %d %s, cannot move %d", from, balance, asset, amount)
		}
		toKey := balanceKey(asset, to)
		target := getAmount(bucket, toKey)
		if target+amount < target {
			return fmt.Errorf("storage: balance overflow crediting %s", to)
		}
		if err := putAmount(bucket, fromKey, balance-amount); err != nil {
			return err
		}
		return putAmount(bucket, toKey, target+amount)
	})
}

// Credit adds freshly issued value to an account. Deposit gateways use this
// when external funds settle into the system.
func (l *Ledger) Credit(asset, account string, amount uint64) error {
	return l.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(bucketBalances)
		key := balanceKey(asset, account)
		balance := getAmount(bucket, key)
		if balance+amount < balance {
			return fmt.Errorf("storage: balance overflow crediting %s", account)
		}
		return putAmount(bucket, key, balance+amount)
	})
}

// Balance reports an account's holdings of an asset.
func (l *Ledger) Balance(asset, account string) (uint64, error) {
	var balance uint64
	err := l.db.View(func(tx *bolt.Tx) error {
		balance = getAmount(tx.Bucket(bucketBalances), balanceKey(asset, account))
		return nil
	})
	return balance, err
}

// Mint issues share tokens to an account.
func (l *Ledger) Mint(token, to string, amount uint64) error {
	return l.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(bucketShares)
		key := balanceKey(token, to)
		balance := getAmount(bucket, key)
		if balance+amount < balance {
			return fmt.Errorf("storage: share overflow minting %s to %s", token, to)
		}
		return putAmount(bucket, key, balance+amount)
	})
}

// Burn retires share tokens from an account, rejecting overdrafts.
func (l *Ledger) Burn(token, from string, amount uint64) error {
	return l.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(bucketShares)
		key := balanceKey(token, from)
		balance := getAmount(bucket, key)
		if balance < amount {
			return fmt.Errorf("storage: %s holds %d %s, cannot burn %d", from, balance, token, amount)
		}
		return putAmount(bucket, key, balance-amount)
	})
}

// ShareBalance reports an account's share-token holdings.
func (l *Ledger) ShareBalance(token, account string) (uint64, error) {
	var balance uint64
	err := l.db.View(func(tx *bolt.Tx) error {
		balance = getAmount(tx.Bucket(bucketShares), balanceKey(token, account))
		return nil
	})
	return balance, err
}
