package storage

import (
	"encoding/json"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"

	"lendhub/native/lending"
)

var (
	bucketGlobal    = []byte("lending_global")
	bucketMarkets   = []byte("lending_markets")
	bucketPositions = []byte("lending_positions")
	bucketVaults    = []byte("lending_vaults")

	keyGlobalConfig = []byte("config")
)

// Store persists lending records in a bbolt database. It implements
// lending.State with one transaction per call; operations needing multi-record
// atomicity run inside InTransaction, which scopes every read and write of the
// callback to a single bolt write transaction.
type Store struct {
	db *bolt.DB
}

// Open creates or opens the lending state database at path.
func Open(path string) (*Store, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("storage: open %s: %w", path, err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{bucketGlobal, bucketMarkets, bucketPositions, bucketVaults} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("storage: create buckets: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the underlying database.
func (s *Store) Close() error { return s.db.Close() }

// InTransaction runs fn against a transaction-scoped lending.State. All writes
// commit together or not at all.
func (s *Store) InTransaction(fn func(state lending.State) error) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return fn(&txState{tx: tx})
	})
}

func (s *Store) GlobalConfig() (*lending.GlobalConfig, error) {
	var cfg *lending.GlobalConfig
	err := s.db.View(func(tx *bolt.Tx) error {
		var err error
		cfg, err = (&txState{tx: tx}).GlobalConfig()
		return err
	})
	return cfg, err
}

func (s *Store) PutGlobalConfig(cfg *lending.GlobalConfig) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return (&txState{tx: tx}).PutGlobalConfig(cfg)
	})
}

func (s *Store) Market(asset string) (*lending.Market, error) {
	var market *lending.Market
	err := s.db.View(func(tx *bolt.Tx) error {
		var err error
		market, err = (&txState{tx: tx}).Market(asset)
		return err
	})
	return market, err
}

func (s *Store) PutMarket(market *lending.Market) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return (&txState{tx: tx}).PutMarket(market)
	})
}

func (s *Store) Markets() ([]*lending.Market, error) {
	var markets []*lending.Market
	err := s.db.View(func(tx *bolt.Tx) error {
		var err error
		markets, err = (&txState{tx: tx}).Markets()
		return err
	})
	return markets, err
}

func (s *Store) Position(user, asset string) (*lending.BorrowPosition, error) {
	var position *lending.BorrowPosition
	err := s.db.View(func(tx *bolt.Tx) error {
		var err error
		position, err = (&txState{tx: tx}).Position(user, asset)
		return err
	})
	return position, err
}

func (s *Store) PutPosition(position *lending.BorrowPosition) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return (&txState{tx: tx}).PutPosition(position)
	})
}

func (s *Store) Vault(owner string) (*lending.Vault, error) {
	var vault *lending.Vault
	err := s.db.View(func(tx *bolt.Tx) error {
		var err error
		vault, err = (&txState{tx: tx}).Vault(owner)
		return err
	})
	return vault, err
}

func (s *Store) PutVault(vault *lending.Vault) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return (&txState{tx: tx}).PutVault(vault)
	})
}

// txState is the transaction-scoped lending.State implementation shared by
// Store's per-call wrappers and InTransaction.
type txState struct {
	tx *bolt.Tx
}

func positionKey(user, asset string) []byte {
	return []byte(user + "\x00" + asset)
}

func (t *txState) GlobalConfig() (*lending.GlobalConfig, error) {
	raw := t.tx.Bucket(bucketGlobal).Get(keyGlobalConfig)
	if raw == nil {
		return nil, nil
	}
	cfg := new(lending.GlobalConfig)
	if err := json.Unmarshal(raw, cfg); err != nil {
		return nil, fmt.Errorf("storage: decode global config: %w", err)
	}
	return cfg, nil
}

func (t *txState) PutGlobalConfig(cfg *lending.GlobalConfig) error {
	raw, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("storage: encode global config: %w", err)
	}
	return t.tx.Bucket(bucketGlobal).Put(keyGlobalConfig, raw)
}

func (t *txState) Market(asset string) (*lending.Market, error) {
	raw := t.tx.Bucket(bucketMarkets).Get([]byte(asset))
	if raw == nil {
		return nil, nil
	}
	market := new(lending.Market)
	if err := json.Unmarshal(raw, market); err != nil {
		return nil, fmt.Errorf("storage: decode market %s: %w", asset, err)
	}
	market.EnsureDefaults()
	return market, nil
}

func (t *txState) PutMarket(market *lending.Market) error {
	raw, err := json.Marshal(market)
	if err != nil {
		return fmt.Errorf("storage: encode market %s: %w", market.Asset, err)
	}
	return t.tx.Bucket(bucketMarkets).Put([]byte(market.Asset), raw)
}

func (t *txState) Markets() ([]*lending.Market, error) {
	var markets []*lending.Market
	err := t.tx.Bucket(bucketMarkets).ForEach(func(key, raw []byte) error {
		market := new(lending.Market)
		if err := json.Unmarshal(raw, market); err != nil {
			return fmt.Errorf("storage: decode market %s: %w", key, err)
		}
		market.EnsureDefaults()
		markets = append(markets, market)
		return nil
	})
	return markets, err
}

func (t *txState) Position(user, asset string) (*lending.BorrowPosition, error) {
	raw := t.tx.Bucket(bucketPositions).Get(positionKey(user, asset))
	if raw == nil {
		return nil, nil
	}
	position := new(lending.BorrowPosition)
	if err := json.Unmarshal(raw, position); err != nil {
		return nil, fmt.Errorf("storage: decode position %s/%s: %w", user, asset, err)
	}
	position.EnsureDefaults()
	return position, nil
}

func (t *txState) PutPosition(position *lending.BorrowPosition) error {
	raw, err := json.Marshal(position)
	if err != nil {
		return fmt.Errorf("storage: encode position %s/%s: %w", position.User, position.Market, err)
	}
	return t.tx.Bucket(bucketPositions).Put(positionKey(position.User, position.Market), raw)
}

func (t *txState) Vault(owner string) (*lending.Vault, error) {
	raw := t.tx.Bucket(bucketVaults).Get([]byte(owner))
	if raw == nil {
		return nil, nil
	}
	vault := new(lending.Vault)
	if err := json.Unmarshal(raw, vault); err != nil {
		return nil, fmt.Errorf("storage: decode vault %s: %w", owner, err)
	}
	return vault, nil
}

func (t *txState) PutVault(vault *lending.Vault) error {
	raw, err := json.Marshal(vault)
	if err != nil {
		return fmt.Errorf("storage: encode vault %s: %w", vault.Owner, err)
	}
	return t.tx.Bucket(bucketVaults).Put([]byte(vault.Owner), raw)
}
