package wire

import (
	"fmt"

	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btclog"
	"github.com/keato/p2pcodec/internal/logger"
	"github.com/rs/zerolog"
)

func init() {
	txscript.UseLogger(zerologBackend{logger.Log.With().Str("component", "txscript").Logger()})
}

// zerologBackend adapts the module's zerolog logger to btclog.Logger, so
// txscript's own diagnostics (malformed scripts, unsupported opcodes
// encountered while extracting an address) flow through the same
// structured-logging path as everything else instead of going to btclog's
// default no-op backend.
type zerologBackend struct {
	log zerolog.Logger
}

func (b zerologBackend) Tracef(format string, params ...interface{}) { b.log.Trace().Msgf(format, params...) }
func (b zerologBackend) Debugf(format string, params ...interface{}) { b.log.Debug().Msgf(format, params...) }
func (b zerologBackend) Infof(format string, params ...interface{})  { b.log.Info().Msgf(format, params...) }
func (b zerologBackend) Warnf(format string, params ...interface{})  { b.log.Warn().Msgf(format, params...) }
func (b zerologBackend) Errorf(format string, params ...interface{}) { b.log.Error().Msgf(format, params...) }
func (b zerologBackend) Criticalf(format string, params ...interface{}) {
	b.log.Error().Msgf(format, params...)
}

func (b zerologBackend) Trace(v ...interface{})    { b.log.Trace().Msg(fmt.Sprint(v...)) }
func (b zerologBackend) Debug(v ...interface{})    { b.log.Debug().Msg(fmt.Sprint(v...)) }
func (b zerologBackend) Info(v ...interface{})     { b.log.Info().Msg(fmt.Sprint(v...)) }
func (b zerologBackend) Warn(v ...interface{})     { b.log.Warn().Msg(fmt.Sprint(v...)) }
func (b zerologBackend) Error(v ...interface{})    { b.log.Error().Msg(fmt.Sprint(v...)) }
func (b zerologBackend) Critical(v ...interface{}) { b.log.Error().Msg(fmt.Sprint(v...)) }

func (b zerologBackend) Level() btclog.Level         { return btclog.LevelInfo }
func (b zerologBackend) SetLevel(level btclog.Level) {}
