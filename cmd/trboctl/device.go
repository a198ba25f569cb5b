package main

import (
	"context"
	"encoding/hex"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/n5dmr/trbo-xnl/pkg/auditlog"
	"github.com/n5dmr/trbo-xnl/pkg/clone"
	"github.com/n5dmr/trbo-xnl/pkg/config"
	"github.com/n5dmr/trbo-xnl/pkg/logger"
	"github.com/n5dmr/trbo-xnl/pkg/metrics"
	"github.com/n5dmr/trbo-xnl/pkg/program"
	"github.com/n5dmr/trbo-xnl/pkg/progresshub"
	"github.com/n5dmr/trbo-xnl/pkg/xcmp"
	"github.com/n5dmr/trbo-xnl/pkg/xnl"
)

// commandEnv holds everything a subcommand needs: configuration, the
// ambient stack (logger/metrics/audit log/progress hub), and the CLI
// flags that don't fit a single subcommand's own flag set.
type commandEnv struct {
	ctx       context.Context
	cfg       *config.Config
	log       *logger.Logger
	collector *metrics.Collector
	hub       *progresshub.Hub
	audit     *auditlog.Log

	inFile   string
	outFile  string
	zones    int
	channels int
	contacts int
	verify   bool
	args     []string // positional arguments left after flag parsing (compare's two file paths)
}

// device is a connected, authenticated, unlocked radio session, ready for
// identity queries or clone read/write.
type device struct {
	sess *xnl.Session
	disp *xcmp.Dispatcher
	ctrl *program.Controller
	info program.DeviceInfo
}

// loadKey reads the 32-hex-character TEA key from path.
func loadKey(path string) ([16]byte, error) {
	var key [16]byte
	if path == "" {
		return key, fmt.Errorf("no key file configured (radio.key_file / -key-file)")
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return key, fmt.Errorf("read key file: %w", err)
	}
	decoded, err := hex.DecodeString(strings.TrimSpace(string(raw)))
	if err != nil {
		return key, fmt.Errorf("key file is not valid hex: %w", err)
	}
	if len(decoded) != 16 {
		return key, fmt.Errorf("key must decode to 16 bytes, got %d", len(decoded))
	}
	copy(key[:], decoded)
	return key, nil
}

// connectAndUnlock dials the radio, completes the XNL handshake, waits for
// the XCMP device-init gate, and runs the §4.E unlock sequence against
// partition. Callers must call close() when done, which exits program mode
// and closes the session; if Unlock fails, this function exits program mode
// (best-effort) and closes the session itself.
func connectAndUnlock(env *commandEnv, partition program.Partition) (*device, error) {
	key, err := loadKey(env.cfg.Radio.KeyFile)
	if err != nil {
		return nil, err
	}

	xnlCfg := xnl.DefaultConfig()
	xnlCfg.Host = env.cfg.Radio.Host
	xnlCfg.Port = env.cfg.Radio.Port
	xnlCfg.Key = key
	if env.cfg.Radio.DeltaOverride != 0 {
		xnlCfg.Delta = env.cfg.Radio.DeltaOverride
	}
	if env.cfg.Session.ConnectTimeoutSeconds > 0 {
		xnlCfg.ConnectTimeout = time.Duration(env.cfg.Session.ConnectTimeoutSeconds) * time.Second
	}
	if env.cfg.Session.FrameTimeoutSeconds > 0 {
		xnlCfg.FrameTimeout = time.Duration(env.cfg.Session.FrameTimeoutSeconds) * time.Second
	}
	if env.cfg.Session.HandshakeBudgetSeconds > 0 {
		xnlCfg.HandshakeBudget = time.Duration(env.cfg.Session.HandshakeBudgetSeconds) * time.Second
	}

	env.log.Info("connecting to radio", logger.String("host", xnlCfg.Host), logger.Int("port", xnlCfg.Port))
	sess, err := xnl.Connect(env.ctx, xnlCfg, env.log)
	if err != nil {
		return nil, fmt.Errorf("xnl connect: %w", err)
	}

	xcmpTimeout := 2 * time.Second
	if env.cfg.Session.XCMPTimeoutSeconds > 0 {
		xcmpTimeout = time.Duration(env.cfg.Session.XCMPTimeoutSeconds) * time.Second
	}
	disp := xcmp.NewDispatcher(sess, xcmpTimeout, env.log)
	if err := disp.WaitForInit(xnlCfg.HandshakeBudget); err != nil {
		_ = sess.Close()
		return nil, fmt.Errorf("xcmp init: %w", err)
	}

	ctrl := program.New(disp, sess.Cipher(), env.log)
	info, err := ctrl.Unlock(partition)
	if err != nil {
		_ = ctrl.ExitProgramMode()
		_ = sess.Close()
		return nil, fmt.Errorf("unlock: %w", err)
	}

	return &device{sess: sess, disp: disp, ctrl: ctrl, info: info}, nil
}

func (d *device) close(log *logger.Logger) {
	if err := d.ctrl.ExitProgramMode(); err != nil {
		log.Warn("failed to exit program mode", logger.Error(err))
	}
	if err := d.sess.Close(); err != nil {
		log.Warn("failed to close session", logger.Error(err))
	}
}

// progressPublisher returns env.hub as a clone.Publisher, or a nil
// interface value (not a non-nil interface wrapping a nil *Hub) when no
// hub is configured, so clone's publish() nil-check works correctly.
func progressPublisher(env *commandEnv) clone.Publisher {
	if env.hub == nil {
		return nil
	}
	return env.hub
}

// recordOperation writes one pkg/auditlog entry if an audit log is
// configured; errors are logged, never fatal to the operation itself.
func recordOperation(env *commandEnv, kind string, radioID uint32, started time.Time, succeeded bool, detail string) {
	if env.audit == nil {
		return
	}
	op := auditlog.Operation{
		Kind:       kind,
		Host:       env.cfg.Radio.Host,
		RadioID:    radioID,
		Succeeded:  succeeded,
		Detail:     detail,
		StartedAt:  started,
		FinishedAt: time.Now(),
	}
	if err := env.audit.Record(op); err != nil {
		env.log.Warn("failed to record audit log entry", logger.Error(err))
	}
}
