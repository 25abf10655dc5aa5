package observer

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/keato/p2pcodec/internal/logger"
	"github.com/keato/p2pcodec/internal/metrics"
	"github.com/keato/p2pcodec/internal/p2p"
	"github.com/keato/p2pcodec/internal/store"
	"github.com/keato/p2pcodec/internal/wire"
	"github.com/rs/zerolog"
)

// activeConns tracks all active connections for graceful shutdown
var activeConns = struct {
	sync.Mutex
	conns map[*p2p.Conn]struct{}
}{conns: make(map[*p2p.Conn]struct{})}

func trackConn(conn *p2p.Conn) {
	activeConns.Lock()
	activeConns.conns[conn] = struct{}{}
	activeConns.Unlock()
}

func untrackConn(conn *p2p.Conn) {
	activeConns.Lock()
	delete(activeConns.conns, conn)
	activeConns.Unlock()
}

// CloseAllConnections closes all active peer connections
func CloseAllConnections() {
	activeConns.Lock()
	defer activeConns.Unlock()
	for conn := range activeConns.conns {
		conn.Close()
	}
}

// ObserveNode connects to a node, completes the handshake, and drives its
// message loop until ctx is cancelled or the peer drops the connection.
func ObserveNode(ctx context.Context, node *Node, country string, pm *PeerManager, db *store.DB, wg *sync.WaitGroup) {
	if wg != nil {
		defer wg.Done()
	}

	addr := node.Addr()
	plog := logger.PeerLogger(addr, "outbound")

	plog.Info().Str("city", node.City).Str("country", node.CountryCode).Msg("Connecting")
	metrics.PeerConnections.Inc()

	conn := p2p.NewConn(node.Address, uint16(node.Port))
	dialCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	err := conn.Open(dialCtx)
	cancel()
	if err != nil {
		plog.Warn().Err(err).Msg("Connection failed")
		pm.MarkFailed(addr)
		return
	}
	defer conn.Close()

	trackConn(conn)
	defer untrackConn(conn)

	if err := doHandshake(ctx, conn, addr, plog, db); err != nil {
		plog.Warn().Err(err).Msg("Handshake failed")
		metrics.PeerHandshakeFailures.Inc()
		pm.MarkFailed(addr)
		return
	}

	geoInfo := &store.PeerGeoInfo{
		CountryCode: node.CountryCode,
		City:        node.City,
		Region:      country,
		Latitude:    node.Latitude,
		Longitude:   node.Longitude,
		ASN:         node.ASN,
		OrgName:     node.OrgName,
	}
	if err := db.UpdatePeerGeoInfo(addr, geoInfo); err != nil {
		plog.Error().Err(err).Msg("DB UpdatePeerGeoInfo error")
	}

	pm.SetActive(country, addr, node)
	connectedAt := time.Now()
	metrics.PeersActive.Inc()
	metrics.PeersByRegion.WithLabelValues(country).Inc()
	plog.Info().Str("city", node.City).Str("country", node.CountryCode).Msg("Connected")

	runMessageLoop(ctx, conn, addr, country, plog, db)

	pm.RemoveActive(country, addr)
	metrics.PeersActive.Dec()
	metrics.PeersByRegion.WithLabelValues(country).Dec()
	metrics.PeerDisconnections.Inc()

	if time.Since(connectedAt) < time.Minute {
		pm.MarkDisconnect(addr)
		plog.Warn().Msg("Disconnected (short-lived)")
	} else {
		plog.Info().Msg("Disconnected")
	}
}

func doHandshake(ctx context.Context, conn *p2p.Conn, address string, plog zerolog.Logger, db *store.DB) error {
	hsCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	msgs, err := conn.Handshake(hsCtx)
	if err != nil {
		return fmt.Errorf("handshake: %w", err)
	}

	for _, m := range msgs {
		if m.Version != nil {
			if err := db.RecordPeerConnection(address, m.Version); err != nil {
				plog.Error().Err(err).Msg("DB RecordPeerConnection error")
			}
		}
	}

	return nil
}

func runMessageLoop(ctx context.Context, conn *p2p.Conn, address, region string, plog zerolog.Logger, db *store.DB) {
	var pendingPingTime time.Time

	txCount := 0
	blockCount := 0
	lastSummary := time.Now()
	lastPing := time.Now()

	for {
		select {
		case <-ctx.Done():
			plog.Info().Msg("Shutting down")
			return
		default:
		}

		readCtx, cancel := context.WithTimeout(ctx, 10*time.Minute)
		msgs, err := conn.GetMessages(readCtx, 0, "inv", "tx", "block", "pong")
		cancel()
		if err != nil {
			if ctx.Err() != nil {
				plog.Info().Msg("Shutdown complete")
				return
			}
			plog.Warn().Err(err).Msg("Read error")
			return
		}

		for _, msg := range msgs {
			switch msg.Command() {
			case "inv":
				if msg.Inv != nil {
					handleInv(conn, msg.Inv, address, address, plog, db)
				}

			case "tx":
				if msg.Tx == nil {
					continue
				}
				txCount++
				metrics.TxReceived.Inc()
				if err := db.RecordTransaction(msg.Tx); err != nil {
					plog.Error().Err(err).Msg("DB RecordTransaction error")
				} else {
					metrics.TxRecordedDB.Inc()
				}
				db.DetectInputConflicts(msg.Tx)

			case "block":
				if msg.Block == nil {
					continue
				}
				block := msg.Block
				plog.Info().
					Str("hash", block.BlockHash).
					Int("txs", len(block.Tx)).
					Msg("BLOCK")
				blockCount++
				metrics.BlocksReceived.Inc()
				metrics.BlockTxCount.Observe(float64(len(block.Tx)))

				height, _ := db.RecordBlock(block, address)
				if height > 0 {
					metrics.BlockHeight.Set(float64(height))
				}
				txHashes := make([]string, len(block.Tx))
				for i, tx := range block.Tx {
					db.RecordTransaction(tx)
					txHashes[i] = tx.TxHash
				}
				blockTime := time.Unix(int64(block.Header.Timestamp), 0)
				db.ConfirmTransactions(block.BlockHash, int(height), blockTime, txHashes)

			case "pong":
				if !pendingPingTime.IsZero() {
					latencyMs := int(time.Since(pendingPingTime).Milliseconds())
					db.UpdatePeerLatency(address, latencyMs)
					metrics.PeerLatency.WithLabelValues(region).Observe(float64(latencyMs))
					pendingPingTime = time.Time{}
				}
			}
		}

		if time.Since(lastSummary) >= 60*time.Second {
			plog.Info().Int("txs", txCount).Int("blocks", blockCount).Msg("Status")
			txCount = 0
			blockCount = 0
			lastSummary = time.Now()
		}

		if time.Since(lastPing) >= 60*time.Second {
			if _, err := conn.Ping(nil); err == nil {
				pendingPingTime = time.Now()
			}
			lastPing = time.Now()
		}
	}
}

func handleInv(conn *p2p.Conn, inv *wire.InvPayload, address, peerAddr string, plog zerolog.Logger, db *store.DB) {
	var txCount, blockCount int
	var newTxVectors, newBlockVectors []wire.InvVector

	for _, v := range inv.Vectors {
		switch v.Type {
		case wire.InvTx:
			txCount++
			if err := db.RecordObservation(v.Hex(), peerAddr); err != nil {
				plog.Error().Err(err).Msg("DB RecordObservation error")
			}
			if MarkSeenTx(v.Hex()) {
				newTxVectors = append(newTxVectors, v)
			} else {
				metrics.TxDeduplicated.Inc()
			}
		case wire.InvBlock:
			blockCount++
			if MarkSeenBlock(v.Hex()) {
				newBlockVectors = append(newBlockVectors, v)
			}
		}
	}

	if txCount > 0 {
		metrics.InvTxAnnouncements.Add(float64(txCount))
	}
	if blockCount > 0 {
		metrics.InvBlockAnnouncements.Add(float64(blockCount))
	}
	if txCount > 0 || blockCount > 0 {
		if err := db.IncrementPeerAnnouncements(address, txCount, blockCount); err != nil {
			plog.Error().Err(err).Msg("DB IncrementPeerAnnouncements error")
		}
	}

	if len(newTxVectors) > 0 {
		if err := conn.RequestData(newTxVectors); err != nil {
			plog.Warn().Err(err).Msg("requesting new transactions failed")
		}
	}
	if len(newBlockVectors) > 0 {
		if err := conn.RequestData(newBlockVectors); err != nil {
			plog.Warn().Err(err).Msg("requesting new blocks failed")
		}
	}
}

// StartPeerManager starts the peer manager loop that maintains connections
func StartPeerManager(ctx context.Context, pm *PeerManager, db *store.DB, wg *sync.WaitGroup) {
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			default:
			}

			for _, country := range TargetCountries {
				active := pm.ActiveCountByCountry(country)
				if active < PeersPerCountry {
					if node, ok := pm.GetNextPeer(country); ok {
						wg.Add(1)
						go ObserveNode(ctx, node, country, pm, db, wg)
					}
				}
			}
			time.Sleep(5 * time.Second)
		}
	}()
}

// StartStatusReporter starts periodic status logging
func StartStatusReporter(ctx context.Context, pm *PeerManager, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				logger.Log.Info().
					Int("total", pm.TotalActive()).
					Str("regions", pm.Status()).
					Msg("Peer status")
			}
		}
	}()
}
