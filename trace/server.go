// Package trace implements a read-only MQTT header inspector: a server
// that accepts connections, decodes every fixed header off the stream,
// logs it, skips the packet body, and optionally journals the headers
// to disk. It never writes to the peer.
package trace

import (
	"context"
	"crypto/tls"
	"io"
	"net"
	"os"
	"strings"

	"github.com/dverbeek/mqttwire"
	"github.com/dverbeek/mqttwire/internal/config"
	"github.com/dverbeek/mqttwire/internal/store"
	"github.com/dverbeek/mqttwire/websocket"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

type Server struct {
	cfg *config.Config
	st  *store.DiskStore

	tcpL, tlsL net.Listener
}

// NewServer sets up logging and the capture store per the config.
func NewServer(cfg *config.Config) (*Server, error) {
	s := Server{cfg: cfg}
	if err := setupLogging(cfg); err != nil {
		return nil, err
	}

	if cfg.Store.Enabled {
		st, err := store.NewDiskStore(cfg.Store.Dir)
		if err != nil {
			return nil, err
		}
		s.st = st
	}

	return &s, nil
}

// NewServerFromFile is NewServer with the config loaded from fPath.
func NewServerFromFile(fPath string) (*Server, error) {
	cfg, err := config.New(fPath)
	if err != nil {
		return nil, err
	}
	return NewServer(cfg)
}

// Run starts all configured listeners and blocks until the context is
// canceled or a listener fails. Connections in flight are cut off when
// Run returns.
func (s *Server) Run(ctx context.Context) error {
	group, ctx := errgroup.WithContext(ctx)

	if s.cfg.TCP.Enabled {
		l, err := net.Listen("tcp", s.cfg.TCP.Address)
		if err != nil {
			return errors.Wrap(err, "tcp listen")
		}
		s.tcpL = l
		group.Go(func() error { return s.acceptLoop(ctx, l) })
	}

	if s.cfg.TLS.Enabled {
		l, err := s.listenTLS()
		if err != nil {
			return err
		}
		s.tlsL = l
		group.Go(func() error { return s.acceptLoop(ctx, l) })
	}

	if s.cfg.WS.Enabled {
		wsErrs := make(chan error, 1)
		websocket.Setup(s.cfg.WS.Address, s.cfg.WS.CheckOrigin, s.inspect, wsErrs)
		group.Go(func() error {
			select {
			case err := <-wsErrs:
				return err
			case <-ctx.Done():
				return ctx.Err()
			}
		})
	}

	lf := make(log.Fields, 3)
	if s.cfg.TCP.Enabled {
		lf["tcp_address"] = s.cfg.TCP.Address
	}
	if s.cfg.TLS.Enabled {
		lf["tls_address"] = s.cfg.TLS.Address
	}
	if s.cfg.WS.Enabled {
		lf["ws_address"] = s.cfg.WS.Address
	}
	log.WithFields(lf).Info("Starting MQTT header inspector")

	group.Go(func() error {
		<-ctx.Done()
		s.closeListeners()
		return ctx.Err()
	})

	err := group.Wait()

	log.Info("Shutting down MQTT header inspector")
	if s.st != nil {
		if cErr := s.st.Close(); cErr != nil {
			log.WithFields(log.Fields{"err": cErr}).Error("Failed to close capture store")
		}
	}

	return err
}

// Store exposes the capture store, nil when disabled.
func (s *Server) Store() *store.DiskStore {
	return s.st
}

func (s *Server) listenTLS() (net.Listener, error) {
	cert, err := os.ReadFile(s.cfg.TLS.Cert)
	if err != nil {
		return nil, errors.Wrap(err, "tls cert")
	}

	key, err := os.ReadFile(s.cfg.TLS.Key)
	if err != nil {
		return nil, errors.Wrap(err, "tls key")
	}

	kp, err := tls.X509KeyPair(cert, key)
	if err != nil {
		return nil, errors.Wrap(err, "tls keypair")
	}

	l, err := tls.Listen("tcp", s.cfg.TLS.Address, &tls.Config{Certificates: []tls.Certificate{kp}})
	return l, errors.Wrap(err, "tls listen")
}

func (s *Server) acceptLoop(ctx context.Context, l net.Listener) error {
	for {
		conn, err := l.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
				return errors.Wrap(err, "accept")
			}
		}

		go s.inspect(conn)
	}
}

// inspect drives one connection: fixed header, body skip, repeat.
func (s *Server) inspect(conn net.Conn) {
	defer conn.Close()
	remote := conn.RemoteAddr().String()
	log.WithFields(log.Fields{"remote": remote}).Debug("New connection")

	for {
		h, err := mqttwire.ReadFixedHeader(conn)
		if err != nil {
			if err == mqttwire.ErrMalformedPacket {
				log.WithFields(log.Fields{"remote": remote}).Warn("Closing connection: malformed packet")
			} else {
				log.WithFields(log.Fields{"remote": remote, "err": err}).Debug("Connection done")
			}
			return
		}

		log.WithFields(log.Fields{
			"remote":          remote,
			"type":            h.Type.String(),
			"flags":           h.Flags,
			"remainingLength": h.RemainingLength,
		}).Debug("Got fixed header")

		if s.st != nil {
			controlByte := h.Type.Bits()<<4 | h.Flags
			if err := s.st.Record(controlByte, h.RemainingLength); err != nil {
				log.WithFields(log.Fields{"remote": remote, "err": err}).Error("Failed to record header")
			}
		}

		if h.RemainingLength > 0 {
			if _, err := io.CopyN(io.Discard, conn, int64(h.RemainingLength)); err != nil {
				log.WithFields(log.Fields{"remote": remote, "err": err}).Debug("Connection cut mid packet")
				return
			}
		}
	}
}

func (s *Server) closeListeners() {
	if s.tcpL != nil {
		s.tcpL.Close()
	}
	if s.tlsL != nil {
		s.tlsL.Close()
	}
}

func setupLogging(cfg *config.Config) error {
	if cfg.Log.File != "" {
		f, err := os.OpenFile(cfg.Log.File, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			return errors.Wrap(err, "log file")
		}
		log.SetOutput(f)
	}
	if cfg.Log.Level != "" {
		switch strings.ToLower(cfg.Log.Level) {
		case "error":
			log.SetLevel(log.ErrorLevel)
		case "warn":
			log.SetLevel(log.WarnLevel)
		case "info":
			log.SetLevel(log.InfoLevel)
		case "debug":
			log.SetLevel(log.DebugLevel)
		default:
			return errors.New("unknown log level: " + cfg.Log.Level)
		}
	}

	return nil
}
