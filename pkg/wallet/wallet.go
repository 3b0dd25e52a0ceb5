package wallet

import (
	"context"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"

	"github.com/lisanmuaddib/allowance-go/pkg/chains"
)

// Status is the connection state of the wallet connector.
type Status string

const (
	StatusDisconnected Status = "disconnected"
	StatusConnected    Status = "connected"
)

// SignerSource loads the signer behind a connector kind.
type SignerSource func() (Signer, error)

// ConnectorConfig holds the dependencies of a Connector.
type ConnectorConfig struct {
	Registry       *chains.Registry
	Sources        map[string]SignerSource
	Dial           DialFunc
	DefaultChainID uint64
	Logger         *logrus.Logger
}

// Connector is the wallet connector surface: it tracks the connected account,
// the active chain and one transport per dialed chain.
type Connector struct {
	registry   *chains.Registry
	sources    map[string]SignerSource
	dial       DialFunc
	nonces     *NonceManager
	transports map[uint64]Transport
	signer     Signer
	kind       string
	chainID    uint64
	pins       int
	mu         sync.RWMutex
	log        *logrus.Logger
}

// Session is the connector state for one chain, read in a single step. While a
// session is held the active chain cannot be switched.
type Session struct {
	Account   common.Address
	Connected bool
	ChainID   uint64
	// Transport is nil when the chain has not been dialed.
	Transport Transport
	// Writer is nil when no account is connected or Transport is nil.
	Writer Writer

	release func()
}

// Release unpins the session's chain. It is safe to call more than once.
func (s Session) Release() {
	if s.release != nil {
		s.release()
	}
}

// NewConnector creates a disconnected connector on the default chain and tries
// to dial its transport. A failed dial is logged, not returned: the flow reports
// the missing transport when it is needed.
//
// Example:
//
//	conn, err := NewConnector(ctx, ConnectorConfig{
//	    Registry:       registry,
//	    Sources:        map[string]SignerSource{chains.ConnectorPrivateKey: src},
//	    Dial:           NewEthDialer(logger, DefaultDialConfig()),
//	    DefaultChainID: chains.ArbitrumOne,
//	    Logger:         logger,
//	})
func NewConnector(ctx context.Context, cfg ConnectorConfig) (*Connector, error) {
	if cfg.Registry == nil {
		return nil, fmt.Errorf("registry is required")
	}
	if cfg.Dial == nil {
		return nil, fmt.Errorf("dial function is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	if !cfg.Registry.Supports(cfg.DefaultChainID) {
		return nil, NewWalletError(ErrCodeUnsupportedChain, "default chain is not configured", nil, cfg.DefaultChainID)
	}

	sources := make(map[string]SignerSource, len(cfg.Sources))
	for kind, src := range cfg.Sources {
		if src != nil && cfg.Registry.ConnectorEnabled(kind) {
			sources[kind] = src
		}
	}

	c := &Connector{
		registry:   cfg.Registry,
		sources:    sources,
		dial:       cfg.Dial,
		nonces:     NewNonceManager(),
		transports: make(map[uint64]Transport),
		chainID:    cfg.DefaultChainID,
		log:        cfg.Logger,
	}

	if _, err := c.ensureTransport(ctx, cfg.DefaultChainID); err != nil {
		c.log.WithError(err).WithField("chain_id", cfg.DefaultChainID).Warn("Initial chain transport unavailable")
	}

	return c, nil
}

// Connectors lists the connector kinds that are enabled and have a signer source.
func (c *Connector) Connectors() []string {
	var out []string
	for _, kind := range c.registry.Connectors() {
		if _, ok := c.sources[kind]; ok {
			out = append(out, kind)
		}
	}
	return out
}

// Connect loads the signer for kind and makes it the connected account.
func (c *Connector) Connect(ctx context.Context, kind string) (common.Address, error) {
	src, ok := c.sources[kind]
	if !ok {
		return common.Address{}, fmt.Errorf("connector %q is not available", kind)
	}

	signer, err := src()
	if err != nil {
		return common.Address{}, NewWalletError(ErrCodeInvalidPrivateKey, "failed to load signer", err, 0)
	}

	c.mu.Lock()
	c.signer = signer
	c.kind = kind
	chainID := c.chainID
	c.mu.Unlock()

	if _, err := c.ensureTransport(ctx, chainID); err != nil {
		c.log.WithError(err).WithField("chain_id", chainID).Warn("Chain transport unavailable after connect")
	}

	c.log.WithFields(logrus.Fields{
		"connector": kind,
		"account":   signer.Address().Hex(),
		"chain_id":  chainID,
	}).Info("Wallet connected")

	return signer.Address(), nil
}

// Disconnect forgets the connected signer.
func (c *Connector) Disconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.signer != nil {
		c.log.WithField("account", c.signer.Address().Hex()).Info("Wallet disconnected")
	}
	c.signer = nil
	c.kind = ""
}

// Status reports whether an account is connected.
func (c *Connector) Status() Status {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.signer == nil {
		return StatusDisconnected
	}
	return StatusConnected
}

// ActiveConnector returns the kind of the connected connector, or "".
func (c *Connector) ActiveConnector() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.kind
}

// Account returns the connected address. The second value is false when no
// wallet is connected.
func (c *Connector) Account() (common.Address, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.signer == nil {
		return common.Address{}, false
	}
	return c.signer.Address(), true
}

// ChainID returns the active chain id.
func (c *Connector) ChainID() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.chainID
}

// Network returns the registry entry of the active chain.
func (c *Connector) Network() chains.Network {
	n, _ := c.registry.Network(c.ChainID())
	return n
}

// Acquire returns the account, chain and clients of the active chain as one
// consistent set, and pins that chain until the session is released.
func (c *Connector) Acquire() Session {
	c.mu.Lock()
	defer c.mu.Unlock()

	session := Session{ChainID: c.chainID}
	if c.signer != nil {
		session.Account = c.signer.Address()
		session.Connected = true
	}
	if t, ok := c.transports[c.chainID]; ok {
		session.Transport = t
		if c.signer != nil {
			session.Writer = NewWriteClient(t, c.signer, c.chainID, c.nonces, c.log)
		}
	}

	c.pins++
	session.release = sync.OnceFunc(func() {
		c.mu.Lock()
		c.pins--
		c.mu.Unlock()
	})
	return session
}

// SwitchChain makes chainID the active chain. Only registry chains are
// accepted. The chain stays unchanged when its transport cannot be dialed or
// a session is pinning the current one.
func (c *Connector) SwitchChain(ctx context.Context, chainID uint64) error {
	if !c.registry.Supports(chainID) {
		return NewWalletError(ErrCodeUnsupportedChain, "unsupported network", nil, chainID)
	}
	if c.pinned() {
		return errChainBusy(chainID)
	}

	if _, err := c.ensureTransport(ctx, chainID); err != nil {
		return err
	}

	c.mu.Lock()
	if c.pins > 0 {
		c.mu.Unlock()
		return errChainBusy(chainID)
	}
	previous := c.chainID
	c.chainID = chainID
	c.mu.Unlock()

	c.log.WithFields(logrus.Fields{
		"from_chain_id": previous,
		"chain_id":      chainID,
	}).Info("Switched chain")

	return nil
}

func (c *Connector) pinned() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.pins > 0
}

func errChainBusy(chainID uint64) error {
	return NewWalletError(ErrCodeChainBusy, "Cannot switch network while an approval is in progress", nil, chainID)
}

// PublicClient returns the transport of the active chain, or nil if it has not
// been dialed.
func (c *Connector) PublicClient() Transport {
	c.mu.RLock()
	defer c.mu.RUnlock()

	t, ok := c.transports[c.chainID]
	if !ok {
		return nil
	}
	return t
}

// TransportFor returns the transport for chainID if one was dialed.
func (c *Connector) TransportFor(chainID uint64) (Transport, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	t, ok := c.transports[chainID]
	return t, ok
}

// ensureTransport returns the transport for chainID, dialing it on first use.
func (c *Connector) ensureTransport(ctx context.Context, chainID uint64) (Transport, error) {
	c.mu.RLock()
	t, ok := c.transports[chainID]
	c.mu.RUnlock()
	if ok {
		return t, nil
	}

	network, ok := c.registry.Network(chainID)
	if !ok {
		return nil, NewWalletError(ErrCodeUnsupportedChain, "unsupported network", nil, chainID)
	}

	t, err := c.dial(ctx, network)
	if err != nil {
		return nil, NewWalletError(ErrCodeRPCError, "failed to connect to network", err, chainID)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if existing, ok := c.transports[chainID]; ok {
		t.Close()
		return existing, nil
	}
	c.transports[chainID] = t

	c.log.WithFields(logrus.Fields{
		"chain_id": chainID,
		"network":  network.Name,
	}).Debug("Chain transport connected")

	return t, nil
}

// Close closes all chain transports.
func (c *Connector) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for chainID, t := range c.transports {
		t.Close()
		c.log.WithField("chain_id", chainID).Debug("Closed network connection")
	}
	c.transports = make(map[uint64]Transport)
}
