// Package server is the Server Harness: it owns both TCP listeners, the
// accept loops, the result scheduler's lifetime, and cooperative shutdown.
package server

import (
	"context"
	"fmt"
	"net"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/labsim/atellica-sim/internal/config"
	"github.com/labsim/atellica-sim/internal/lasproto"
	"github.com/labsim/atellica-sim/internal/lisproto"
	"github.com/labsim/atellica-sim/internal/logging"
	"github.com/labsim/atellica-sim/internal/scheduler"
	"github.com/labsim/atellica-sim/internal/simstate"
)

// Server wires the state store, the result scheduler, and the two
// protocol engines' listeners into one cancellable run.
type Server struct {
	cfg   *config.Config
	store *simstate.Store
	sched *scheduler.Scheduler

	seq         *lasproto.SequenceCounter
	broadcaster *lisproto.Broadcaster
	limiter     *lisproto.ConnectionLimiter

	logger logging.Logger
}

// New builds a Server from a loaded config and a fresh state store. It
// wires the store's single result listener to the LIS broadcaster.
func New(cfg *config.Config, store *simstate.Store, logger logging.Logger) *Server {
	if logger == nil {
		logger = logging.Discard{}
	}

	broadcaster := lisproto.NewBroadcaster(logger)
	store.SubscribeResult(func(sample simstate.Sample) {
		msg := lisproto.BuildResultTransmission(sample, time.Now())
		broadcaster.Broadcast([]byte(msg))
	})

	sched := scheduler.New(store, time.Second, logger)

	return &Server{
		cfg:         cfg,
		store:       store,
		sched:       sched,
		seq:         lasproto.NewSequenceCounter(),
		broadcaster: broadcaster,
		limiter:     lisproto.NewConnectionLimiter(cfg.LIS.MaxConnections),
		logger:      logger,
	}
}

// Run binds both listeners and blocks until ctx is canceled or a listener
// accept loop fails unrecoverably. Binding failure at startup is fatal and
// aborts the whole harness before any goroutine is spawned.
func (s *Server) Run(ctx context.Context) error {
	lasAddr := fmt.Sprintf("%s:%d", s.cfg.LAS.Host, s.cfg.LAS.Port)
	lasListener, err := net.Listen("tcp", lasAddr)
	if err != nil {
		return fmt.Errorf("binding LAS listener on %s: %w", lasAddr, err)
	}

	lisAddr := fmt.Sprintf("%s:%d", s.cfg.LIS.Host, s.cfg.LIS.Port)
	lisListener, err := net.Listen("tcp", lisAddr)
	if err != nil {
		_ = lasListener.Close()
		return fmt.Errorf("binding LIS listener on %s: %w", lisAddr, err)
	}

	s.logger.Info("server", "listening", "server harness bound both listeners", map[string]any{
		"las_addr": lasAddr, "lis_addr": lisAddr,
	})

	s.sched.Run(ctx)
	defer s.sched.Stop()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error { return s.acceptLAS(gctx, lasListener) })
	g.Go(func() error { return s.acceptLIS(gctx, lisListener) })
	g.Go(func() error {
		<-gctx.Done()
		_ = lasListener.Close()
		_ = lisListener.Close()
		return nil
	})

	return g.Wait()
}

func (s *Server) acceptLAS(ctx context.Context, ln net.Listener) error {
	hsCfg := lasproto.HandshakeConfig{
		ProtocolVersion:   s.cfg.LAS.ProtocolVersion,
		InstrumentType:    s.cfg.LAS.InstrumentType,
		CapabilityVersion: s.cfg.LAS.CapabilityVersion,
		SoftwareVersion:   s.cfg.LAS.SoftwareVersion,
		InstrumentID:      s.cfg.LAS.InstrumentID,
		InstrumentSerial:  s.cfg.LAS.InstrumentSerial,
	}

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("LAS accept: %w", err)
		}
		sess := lasproto.NewSession(conn, s.seq, s.store, hsCfg, s.logger)
		go sess.Serve(ctx)
	}
}

func (s *Server) acceptLIS(ctx context.Context, ln net.Listener) error {
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("LIS accept: %w", err)
		}
		if !s.limiter.TryAcquire() {
			s.logger.Warn("lis", "connection_rejected", "max LIS connections reached", map[string]any{"addr": conn.RemoteAddr().String()})
			_ = conn.Close()
			continue
		}
		sess := lisproto.NewSession(conn, s.store, s.broadcaster, s.limiter, s.logger)
		go sess.Serve(ctx)
	}
}
