// Package store persists observations made by connections built on
// internal/p2p: peer connection history, transaction/block propagation
// timing, and double-spend flags. The codec and connection driver
// themselves are stateless; this is the demonstration crawler's own
// bookkeeping layered on top.
package store

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/keato/p2pcodec/internal/wire"
	_ "github.com/lib/pq"
)

type DB struct {
	conn *sql.DB
}

type Config struct {
	DBHost     string `json:"db_host"`
	DBPort     int    `json:"db_port"`
	DBUser     string `json:"db_user"`
	DBPassword string `json:"db_password"`
	DBName     string `json:"db_name"`
}

func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if v := os.Getenv("DB_HOST"); v != "" {
		cfg.DBHost = v
	}
	if v := os.Getenv("DB_USER"); v != "" {
		cfg.DBUser = v
	}
	if v := os.Getenv("DB_PASSWORD"); v != "" {
		cfg.DBPassword = v
	}
	if v := os.Getenv("DB_NAME"); v != "" {
		cfg.DBName = v
	}
	if v := os.Getenv("DB_PORT"); v != "" {
		if port, err := fmt.Sscanf(v, "%d", &cfg.DBPort); port != 1 || err != nil {
			return nil, fmt.Errorf("invalid DB_PORT: %s", v)
		}
	}

	return &cfg, nil
}

func New(host string, port int, user, password, dbname string) (*DB, error) {
	connStr := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		host, port, user, password, dbname,
	)

	conn, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := conn.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return &DB{conn: conn}, nil
}

func NewFromConfig(cfg *Config) (*DB, error) {
	return New(cfg.DBHost, cfg.DBPort, cfg.DBUser, cfg.DBPassword, cfg.DBName)
}

func (db *DB) Close() error {
	return db.conn.Close()
}

// Conn exposes the underlying *sql.DB for callers that need to run queries
// this package doesn't wrap directly (e.g. seeding metrics on startup).
func (db *DB) Conn() *sql.DB {
	return db.conn
}

// PeerGeoInfo holds geolocation data for a peer, sourced outside this
// module (the wire/p2p layers carry no geo awareness).
type PeerGeoInfo struct {
	CountryCode string
	City        string
	Region      string
	Latitude    float64
	Longitude   float64
	ASN         string
	OrgName     string
}

// RecordPeerConnection upserts a connection record keyed by peer address
// from the peer's own version payload.
func (db *DB) RecordPeerConnection(peerAddr string, v *wire.VersionPayload) error {
	_, err := db.conn.Exec(
		`INSERT INTO peer_connections (peer_addr, first_connected_at, last_seen_at, protocol_version, user_agent, services, connection_count)
		 VALUES ($1, NOW(), NOW(), $2, $3, $4, 1)
		 ON CONFLICT (peer_addr) DO UPDATE SET
		     last_seen_at = NOW(),
		     protocol_version = $2,
		     user_agent = $3,
		     services = $4,
		     connection_count = peer_connections.connection_count + 1`,
		peerAddr, v.Version, v.UserAgent, v.Services,
	)
	return err
}

func (db *DB) UpdatePeerGeoInfo(peerAddr string, geo *PeerGeoInfo) error {
	_, err := db.conn.Exec(
		`UPDATE peer_connections SET
		     country_code = $2,
		     city = $3,
		     region = $4,
		     latitude = $5,
		     longitude = $6,
		     asn = $7,
		     org_name = $8
		 WHERE peer_addr = $1`,
		peerAddr, geo.CountryCode, geo.City, geo.Region,
		geo.Latitude, geo.Longitude, geo.ASN, geo.OrgName,
	)
	return err
}

func (db *DB) IncrementPeerAnnouncements(peerAddr string, txCount, blockCount int) error {
	_, err := db.conn.Exec(
		`UPDATE peer_connections SET
		     tx_announcements = COALESCE(tx_announcements, 0) + $2,
		     block_announcements = COALESCE(block_announcements, 0) + $3,
		     last_seen_at = NOW()
		 WHERE peer_addr = $1`,
		peerAddr, txCount, blockCount,
	)
	return err
}

func (db *DB) UpdatePeerLatency(peerAddr string, latencyMs int) error {
	_, err := db.conn.Exec(
		`UPDATE peer_connections SET
		     avg_latency_ms = CASE
		         WHEN avg_latency_ms IS NULL THEN $2
		         ELSE (avg_latency_ms + $2) / 2
		     END,
		     last_seen_at = NOW()
		 WHERE peer_addr = $1`,
		peerAddr, latencyMs,
	)
	return err
}

// RecordObservation notes that peerAddr announced txHashHex (display-form
// hex, as returned by wire.Tx.TxHash / wire.InvVector.Hex) and records a
// propagation event timed from the first peer to announce it.
func (db *DB) RecordObservation(txHashHex, peerAddr string) error {
	_, err := db.conn.Exec(
		`INSERT INTO transaction_observations (tx_hash, first_seen_at, first_peer_addr)
		 VALUES ($1, NOW(), $2)
		 ON CONFLICT (tx_hash) DO UPDATE SET peer_count = transaction_observations.peer_count + 1`,
		txHashHex, peerAddr,
	)
	if err != nil {
		return err
	}

	_, err = db.conn.Exec(
		`INSERT INTO propagation_events (tx_hash, peer_addr, announcement_time, delay_from_first_ms)
		 VALUES ($1, $2, NOW(),
		     COALESCE(
		         EXTRACT(EPOCH FROM (NOW() - (SELECT first_seen_at FROM transaction_observations WHERE tx_hash = $1))) * 1000,
		         0
		     )::INT
		 )`,
		txHashHex, peerAddr,
	)
	return err
}

// RecordTransaction stores a decoded transaction, its inputs (with the
// spent output's address/value looked up if already known), and its
// outputs (with addresses classified via wire.ExtractAddress).
func (db *DB) RecordTransaction(tx *wire.Tx) error {
	dbTx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer dbTx.Rollback()

	encoded, err := tx.Encode()
	if err != nil {
		return fmt.Errorf("re-encoding transaction: %w", err)
	}
	sizeBytes := len(encoded)
	weight := sizeBytes * 4 // non-segwit only; see Non-goals

	totalOutput := int64(0)
	for _, out := range tx.TxOut {
		totalOutput += out.Value
	}

	_, err = dbTx.Exec(
		`INSERT INTO transactions (tx_hash, size_bytes, weight, input_count, output_count, total_output)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT DO NOTHING`,
		tx.TxHash, sizeBytes, weight, len(tx.TxIn), len(tx.TxOut), totalOutput,
	)
	if err != nil {
		return fmt.Errorf("insert transaction: %w", err)
	}

	totalInput := int64(0)
	inputsFound := 0
	for i, in := range tx.TxIn {
		prevHashHex := in.PrevOutHashHex()

		var address sql.NullString
		var valueSatoshis sql.NullInt64
		dbTx.QueryRow(
			`SELECT address, value_satoshis FROM transaction_outputs
			 WHERE tx_hash = $1 AND output_index = $2`,
			prevHashHex, in.PrevOutIndex,
		).Scan(&address, &valueSatoshis)

		if valueSatoshis.Valid {
			totalInput += valueSatoshis.Int64
			inputsFound++
		}

		_, err = dbTx.Exec(
			`INSERT INTO transaction_inputs (tx_hash, input_index, prev_tx_hash, prev_output_idx, script_sig, address, value_satoshis)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)
			 ON CONFLICT DO NOTHING`,
			tx.TxHash, i, prevHashHex, in.PrevOutIndex, in.Script,
			address, valueSatoshis,
		)
		if err != nil {
			return fmt.Errorf("insert input %d: %w", i, err)
		}

		_, err = dbTx.Exec(
			`UPDATE transaction_outputs
			 SET spent_in_tx = $1, spent_at = NOW()
			 WHERE tx_hash = $2 AND output_index = $3 AND spent_in_tx IS NULL`,
			tx.TxHash, prevHashHex, in.PrevOutIndex,
		)
		if err != nil {
			return fmt.Errorf("mark output spent %d: %w", i, err)
		}
	}

	if inputsFound == len(tx.TxIn) && totalInput > 0 {
		fee := totalInput - totalOutput
		_, err = dbTx.Exec(
			`UPDATE transactions SET total_input = $2, fee_satoshis = $3 WHERE tx_hash = $1`,
			tx.TxHash, totalInput, fee,
		)
		if err != nil {
			return fmt.Errorf("update fee: %w", err)
		}
	}

	for i, out := range tx.TxOut {
		addr := wire.ExtractAddress(out.Script)
		_, err = dbTx.Exec(
			`INSERT INTO transaction_outputs (tx_hash, output_index, value_satoshis, script_pubkey, address)
			 VALUES ($1, $2, $3, $4, $5)
			 ON CONFLICT DO NOTHING`,
			tx.TxHash, i, out.Value, out.Script,
			sql.NullString{String: addr, Valid: addr != ""},
		)
		if err != nil {
			return fmt.Errorf("insert output %d: %w", i, err)
		}
	}

	return dbTx.Commit()
}

// RecordBlock stores a decoded block header, deriving height from the
// coinbase transaction's BIP34 height push when present. It returns the
// derived height (0 if it couldn't be read) so callers can pass it straight
// to ConfirmTransactions.
func (db *DB) RecordBlock(block *wire.Block, peerAddr string) (int32, error) {
	height := blockHeightFromCoinbase(block)

	_, err := db.conn.Exec(
		`INSERT INTO blocks (block_hash, height, prev_block_hash, merkle_root, timestamp, difficulty, nonce, tx_count, first_seen_at, first_peer_addr)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW(), $9)
		 ON CONFLICT DO NOTHING`,
		block.BlockHash,
		height,
		block.Header.PrevBlockHashHex(),
		block.Header.MerkleRootHex(),
		time.Unix(int64(block.Header.Timestamp), 0),
		block.Header.Difficulty(),
		int64(block.Header.Nonce),
		len(block.Tx),
		peerAddr,
	)
	return height, err
}

// blockHeightFromCoinbase reads the block height from the coinbase
// transaction's scriptSig per BIP34, returning 0 if it can't be read (pre-
// BIP34 blocks, or a malformed coinbase).
func blockHeightFromCoinbase(block *wire.Block) int32 {
	if len(block.Tx) == 0 || len(block.Tx[0].TxIn) == 0 {
		return 0
	}
	script := block.Tx[0].TxIn[0].Script
	if len(script) < 1 {
		return 0
	}
	numBytes := int(script[0])
	if numBytes == 0 || len(script) < 1+numBytes {
		return 0
	}
	height := int32(0)
	for i := 0; i < numBytes; i++ {
		height |= int32(script[1+i]) << (8 * i)
	}
	return height
}

// DetectInputConflicts flags any unconfirmed transaction spending the same
// prevout as tx as a double-spend, and flags tx itself.
func (db *DB) DetectInputConflicts(tx *wire.Tx) error {
	var zeroHash [32]byte

	var conflictingTxHashes []string
	for _, in := range tx.TxIn {
		if bytes.Equal(in.PrevOutHash[:], zeroHash[:]) {
			continue // coinbase
		}

		rows, err := db.conn.Query(
			`SELECT DISTINCT ti.tx_hash
			 FROM transaction_inputs ti
			 JOIN transactions t ON ti.tx_hash = t.tx_hash
			 WHERE ti.prev_tx_hash = $1 AND ti.prev_output_idx = $2
			   AND t.block_hash IS NULL
			   AND ti.tx_hash != $3`,
			in.PrevOutHashHex(), in.PrevOutIndex, tx.TxHash,
		)
		if err != nil {
			return fmt.Errorf("query conflicts: %w", err)
		}

		for rows.Next() {
			var txHash string
			if err := rows.Scan(&txHash); err != nil {
				rows.Close()
				return fmt.Errorf("scan conflict: %w", err)
			}
			conflictingTxHashes = append(conflictingTxHashes, txHash)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return fmt.Errorf("rows error: %w", err)
		}
	}

	if len(conflictingTxHashes) == 0 {
		return nil
	}

	dbTx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer dbTx.Rollback()

	for _, oldTxHash := range conflictingTxHashes {
		_, err := dbTx.Exec(
			`UPDATE transaction_observations
			 SET replaced_by_tx = $1, double_spend_flag = TRUE
			 WHERE tx_hash = $2 AND replaced_by_tx IS NULL`,
			tx.TxHash, oldTxHash,
		)
		if err != nil {
			return fmt.Errorf("flag old tx: %w", err)
		}
	}

	_, err = dbTx.Exec(
		`UPDATE transaction_observations
		 SET double_spend_flag = TRUE
		 WHERE tx_hash = $1`,
		tx.TxHash,
	)
	if err != nil {
		return fmt.Errorf("flag new tx: %w", err)
	}

	return dbTx.Commit()
}

// ConfirmTransactions marks txHashes (display-hex) as confirmed in the
// named block.
func (db *DB) ConfirmTransactions(blockHash string, blockHeight int, blockTimestamp time.Time, txHashes []string) error {
	dbTx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer dbTx.Rollback()

	for _, txHash := range txHashes {
		_, err = dbTx.Exec(
			`UPDATE transactions SET block_hash = $1, block_height = $2
			 WHERE tx_hash = $3 AND block_hash IS NULL`,
			blockHash, blockHeight, txHash,
		)
		if err != nil {
			return fmt.Errorf("update transaction: %w", err)
		}

		_, err = dbTx.Exec(
			`UPDATE transaction_observations
			 SET in_block_hash = $1, confirmed_at = $2
			 WHERE tx_hash = $3 AND in_block_hash IS NULL`,
			blockHash, blockTimestamp, txHash,
		)
		if err != nil {
			return fmt.Errorf("update observation: %w", err)
		}
	}

	return dbTx.Commit()
}
