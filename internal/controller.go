// Package internal wires together every server component into the single
// process a deployment actually runs.
package internal

import (
	"context"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"net/http"
	"os"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/dcrodman/pocketrelay/internal/core"
	"github.com/dcrodman/pocketrelay/internal/core/auth"
	"github.com/dcrodman/pocketrelay/internal/core/data"
	"github.com/dcrodman/pocketrelay/internal/redirector"
	"github.com/dcrodman/pocketrelay/internal/retriever"
	"github.com/dcrodman/pocketrelay/internal/session"
	"github.com/dcrodman/pocketrelay/internal/tls3"
	"github.com/dcrodman/pocketrelay/internal/tunnel"
)

// Controller is the main entrypoint for Pocket Relay. It's responsible for
// initializing any shared resources (database, logging, the SSLv3
// certificate), declaring every server component, and launching them all.
type Controller struct {
	Config *core.Config

	// CertPath and KeyPath locate the PEM-encoded RSA certificate/key pair
	// tls3 presents during the server handshake.
	CertPath, KeyPath string

	logger *logrus.Logger
	wg     sync.WaitGroup

	sessions    *session.Manager
	tunnelSrv   *tunnel.Server
	redirector  *redirector.Server
	httpServer  *http.Server
}

func (c *Controller) Start(ctx context.Context) error {
	defer c.Shutdown(ctx)

	var err error
	c.logger, err = core.NewLogger(c.Config)
	if err != nil {
		return fmt.Errorf("error initializing logger: %w", err)
	}

	db, err := data.Initialize(c.Config.Database.File, c.Config.Debugging.PacketLoggingEnabled)
	if err != nil {
		return fmt.Errorf("error initializing database: %w", err)
	}
	auth.Init(db)

	tlsConfig, err := c.loadTLSConfig()
	if err != nil {
		return fmt.Errorf("error loading tls3 certificate: %w", err)
	}

	c.declareServers(tlsConfig)
	c.run(ctx)
	return nil
}

func (c *Controller) loadTLSConfig() (*tls3.ServerConfig, error) {
	certPEM, err := os.ReadFile(c.CertPath)
	if err != nil {
		return nil, fmt.Errorf("reading certificate: %w", err)
	}
	keyPEM, err := os.ReadFile(c.KeyPath)
	if err != nil {
		return nil, fmt.Errorf("reading private key: %w", err)
	}

	certBlock, _ := pem.Decode(certPEM)
	if certBlock == nil {
		return nil, fmt.Errorf("no PEM block found in %s", c.CertPath)
	}
	cert, err := x509.ParseCertificate(certBlock.Bytes)
	if err != nil {
		return nil, fmt.Errorf("parsing certificate: %w", err)
	}

	keyBlock, _ := pem.Decode(keyPEM)
	if keyBlock == nil {
		return nil, fmt.Errorf("no PEM block found in %s", c.KeyPath)
	}
	key, err := x509.ParsePKCS1PrivateKey(keyBlock.Bytes)
	if err != nil {
		return nil, fmt.Errorf("parsing private key: %w", err)
	}

	return &tls3.ServerConfig{Certificate: cert, PrivateKey: key, Logger: c.logger}, nil
}

// declareServers wires up every component the way archon's Controller
// wires up its per-block/ship/patch/login frontends, but Pocket Relay only
// ever runs the one Blaze protocol stack, plus a UDP tunnel and a minimal
// HTTP status endpoint.
func (c *Controller) declareServers(tlsConfig *tls3.ServerConfig) {
	c.sessions = session.NewManager(c.Config, c.logger, tlsConfig)

	if c.Config.Retriever.Enabled {
		c.sessions.Retriever = retriever.New(c.Config.Retriever.Host, c.logger)
	}

	c.tunnelSrv = tunnel.NewServer(c.sessions, c.logger)

	mainHost, mainPort := c.Config.BroadcastAddress(c.Config.MainServer.Port)
	c.redirector = redirector.New(mainHost, mainPort, tlsConfig, c.logger)

	c.httpServer = &http.Server{
		Addr:    c.buildAddress(c.Config.HTTPServer.Port),
		Handler: c.httpMux(),
	}
}

func (c *Controller) httpMux() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/server", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"ident":"POCKET_RELAY_SERVER","players":%d}`, c.sessions.LiveSessionCount())
	})
	return mux
}

func (c *Controller) run(ctx context.Context) {
	c.wg.Add(3)

	go func() {
		defer c.wg.Done()
		if err := c.redirector.Listen(ctx, c.buildAddress(c.Config.RedirectorServer.Port)); err != nil {
			c.logger.Errorf("redirector server exited: %v", err)
		}
	}()

	go func() {
		defer c.wg.Done()
		if err := c.sessions.Listen(ctx, c.buildAddress(c.Config.MainServer.Port)); err != nil {
			c.logger.Errorf("session server exited: %v", err)
		}
	}()

	go func() {
		defer c.wg.Done()
		if err := c.tunnelSrv.Listen(ctx, c.buildAddress(c.Config.TunnelServer.Port)); err != nil {
			c.logger.Errorf("tunnel server exited: %v", err)
		}
	}()

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		<-ctx.Done()
		c.httpServer.Close()
	}()
	go func() {
		if err := c.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			c.logger.Errorf("http server exited: %v", err)
		}
	}()

	go c.sessions.Matchmaking.Run(ctx)

	c.wg.Wait()
}

func (c *Controller) buildAddress(port int) string {
	return fmt.Sprintf("%s:%v", c.Config.Hostname, port)
}

func (c *Controller) Shutdown(ctx context.Context) {
	c.wg.Wait()
	if err := data.Shutdown(); err != nil {
		c.logger.Warnf("error shutting down database: %v", err)
	}
}
