// Package web serves the approval form, its JSON API and the live websocket feed.
package web

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/lisanmuaddib/allowance-go/pkg/approval"
	"github.com/lisanmuaddib/allowance-go/pkg/chains"
	"github.com/lisanmuaddib/allowance-go/pkg/wallet"
)

// Connector is the wallet connector surface the server drives.
type Connector interface {
	approval.Wallet
	Account() (common.Address, bool)
	ChainID() uint64
	PublicClient() wallet.Transport
	Connectors() []string
	Connect(ctx context.Context, kind string) (common.Address, error)
	Disconnect()
	Status() wallet.Status
	ActiveConnector() string
	SwitchChain(ctx context.Context, chainID uint64) error
	TransportFor(chainID uint64) (wallet.Transport, bool)
}

// Approver runs approval flows.
type Approver interface {
	Approve(ctx context.Context, token string) (approval.Snapshot, error)
	Snapshot() approval.Snapshot
	Running() bool
	Subscribe(o approval.Observer) func()
}

// Config holds the dependencies and options of a Server.
type Config struct {
	Connector Connector
	Flow      Approver
	Registry  *chains.Registry
	Routers   *chains.RouterTable
	Logger    *logrus.Logger

	// ApprovePerMinute caps approve requests; zero means no limit.
	ApprovePerMinute int
	// WatchReceipts waits for the receipt of each submitted approval and
	// pushes it to websocket clients.
	WatchReceipts  bool
	ReceiptOptions wallet.ReceiptOptions
}

// Server is the HTTP surface of the approver.
type Server struct {
	connector Connector
	flow      Approver
	registry  *chains.Registry
	routers   *chains.RouterTable
	logger    *logrus.Logger
	limiter   *rate.Limiter
	hub       *Hub
	page      *template.Template

	watchReceipts  bool
	receiptOptions wallet.ReceiptOptions
	baseCtx        context.Context
	unsubscribe    func()
}

// NewServer creates a server and subscribes the websocket feed to the flow.
func NewServer(cfg Config) (*Server, error) {
	if cfg.Connector == nil || cfg.Flow == nil {
		return nil, errors.New("connector and flow are required")
	}
	if cfg.Registry == nil || cfg.Routers == nil {
		return nil, errors.New("registry and routers are required")
	}
	if cfg.Logger == nil {
		return nil, errors.New("logger is required")
	}

	page, err := template.New("index").Funcs(templateFuncs).Parse(indexTemplate)
	if err != nil {
		return nil, fmt.Errorf("failed to parse page template: %w", err)
	}

	limit := rate.Inf
	burst := 1
	if cfg.ApprovePerMinute > 0 {
		limit = rate.Every(time.Minute / time.Duration(cfg.ApprovePerMinute))
	}

	s := &Server{
		connector:      cfg.Connector,
		flow:           cfg.Flow,
		registry:       cfg.Registry,
		routers:        cfg.Routers,
		logger:         cfg.Logger,
		limiter:        rate.NewLimiter(limit, burst),
		hub:            NewHub(cfg.Logger),
		page:           page,
		watchReceipts:  cfg.WatchReceipts,
		receiptOptions: cfg.ReceiptOptions,
		baseCtx:        context.Background(),
	}

	s.unsubscribe = s.flow.Subscribe(func(snap approval.Snapshot) {
		s.hub.Broadcast(Event{Type: EventSnapshot, Snapshot: &snap})
	})

	return s, nil
}

// Handler returns the router with every endpoint mounted.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("POST /connect", s.handleConnect)
	mux.HandleFunc("POST /disconnect", s.handleDisconnect)
	mux.HandleFunc("POST /network", s.handleNetwork)
	mux.HandleFunc("POST /approve", s.handleApproveForm)

	mux.HandleFunc("GET /api/networks", s.handleNetworks)
	mux.HandleFunc("GET /api/state", s.handleState)
	mux.HandleFunc("POST /api/approve", s.handleApproveAPI)

	mux.HandleFunc("GET /ws", s.handleWebSocket)
	mux.HandleFunc("GET /health", s.handleHealth)

	return s.recoverMiddleware(s.crossSiteGuard(mux))
}

// Start serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context, addr string) error {
	s.baseCtx = ctx

	server := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.WithField("addr", addr).Info("HTTP server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("http server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	s.logger.Info("Shutting down HTTP server")
	s.unsubscribe()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// Hub returns the websocket hub.
func (s *Server) Hub() *Hub {
	return s.hub
}
