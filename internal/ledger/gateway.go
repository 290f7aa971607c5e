package ledger

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	cmtlog "github.com/cometbft/cometbft/libs/log"
	"github.com/google/uuid"

	"export-consortium/internal/domain"
)

const defaultCallTimeout = 30 * time.Second

type Config struct {
	Org           domain.Role
	MSPID         string
	ProfilePath   string
	WalletPath    string
	Identity      string
	AdminIdentity string
	// External marks a client that hosts no peer of its own.
	External bool
	Timeout  time.Duration
}

type contractHandle struct {
	logical  string
	deployed string
}

// Gateway is the one ledger connection of an organization process. It is
// constructed once in main and shared by reference.
type Gateway struct {
	cfg       Config
	allow     AllowList
	dial      Dialer
	logger    cmtlog.Logger
	loadProf  func(string) (ConnectionProfile, error)
	wallet    *Wallet
	submitMu  sync.Mutex
	mu        sync.RWMutex
	transport Transport
	profile   ConnectionProfile
	identity  Identity
	contracts map[string]contractHandle
}

type Option func(*Gateway)

func WithDialer(d Dialer) Option { return func(g *Gateway) { g.dial = d } }

func WithLogger(l cmtlog.Logger) Option { return func(g *Gateway) { g.logger = l } }

func WithAllowList(a AllowList) Option { return func(g *Gateway) { g.allow = a } }

// WithProfile bypasses the profile file, mostly for tests and embedded setups.
func WithProfile(p ConnectionProfile) Option {
	return func(g *Gateway) {
		g.loadProf = func(string) (ConnectionProfile, error) { return p, p.Validate() }
	}
}

func NewGateway(cfg Config, opts ...Option) *Gateway {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultCallTimeout
	}
	if cfg.AdminIdentity == "" {
		cfg.AdminIdentity = "admin"
	}
	g := &Gateway{
		cfg:      cfg,
		allow:    DefaultAllowLists()[cfg.Org],
		logger:   cmtlog.NewNopLogger(),
		loadProf: LoadConnectionProfile,
		wallet:   NewFileWallet(cfg.WalletPath),
	}
	g.dial = NewCometDialer(cfg.Timeout)
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func (g *Gateway) Org() domain.Role { return g.cfg.Org }

// Connect resolves the profile and identity and dials the ledger. A second call
// on a connected gateway is a no-op.
func (g *Gateway) Connect(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.transport != nil {
		return nil
	}

	profile, err := g.loadProf(g.cfg.ProfilePath)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrLedgerUnavailable, err)
	}

	id, err := g.resolveIdentity()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrLedgerUnavailable, err)
	}

	external := g.cfg.External || !profile.HostsPeer(string(g.cfg.Org))
	if external {
		own := g.cfg.MSPID
		if own == "" {
			own = profile.MSPID(string(g.cfg.Org))
		}
		if own != "" && own != id.MSPID {
			g.logger.Info("overriding identity membership for external client", "identity", id.Label, "from", id.MSPID, "to", own)
			id.MSPID = own
		}
	}

	peer := profile.Endpoint(string(g.cfg.Org))
	transport, err := g.dial(ctx, peer, id)
	if err != nil {
		return fmt.Errorf("%w: dial %s: %v", ErrLedgerUnavailable, peer.URL, err)
	}

	g.transport = transport
	g.profile = profile
	g.identity = id
	g.contracts = make(map[string]contractHandle)
	for logical, deployed := range profile.Contracts {
		g.contracts[logical] = contractHandle{logical: logical, deployed: deployed}
	}
	g.logger.Info("connected to ledger", "org", g.cfg.Org, "peer", peer.Name, "channel", profile.Channel, "identity", id.Label, "external", external)
	return nil
}

func (g *Gateway) resolveIdentity() (Identity, error) {
	id, err := g.wallet.Get(g.cfg.Identity)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, ErrIdentityNotFound) {
		return Identity{}, err
	}
	g.logger.Info("identity not found in wallet, falling back to admin identity", "identity", g.cfg.Identity, "admin", g.cfg.AdminIdentity)
	return g.wallet.Get(g.cfg.AdminIdentity)
}

// Disconnect closes the transport and drops cached contract handles so a stale
// gateway cannot serve calls after a reconnect.
func (g *Gateway) Disconnect() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.transport == nil {
		return nil
	}
	err := g.transport.Close()
	g.transport = nil
	g.contracts = nil
	g.identity = Identity{}
	g.profile = ConnectionProfile{}
	g.logger.Info("disconnected from ledger", "org", g.cfg.Org)
	return err
}

func (g *Gateway) IsConnected() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.transport != nil
}

// Submit writes to the ledger. Calls are serialized within the process; the
// ledger resolves concurrent writes across processes.
func (g *Gateway) Submit(ctx context.Context, contract, function string, args ...string) (Receipt, error) {
	tx, transport, err := g.prepare(contract, function, args)
	if err != nil {
		return Receipt{}, err
	}

	g.submitMu.Lock()
	defer g.submitMu.Unlock()

	callCtx, cancel := context.WithTimeout(ctx, g.cfg.Timeout)
	defer cancel()
	receipt, err := transport.Submit(callCtx, tx)
	if err != nil {
		return Receipt{}, g.classify(callCtx, contract, function, err)
	}
	return receipt, nil
}

func (g *Gateway) Query(ctx context.Context, contract, function string, args ...string) ([]byte, error) {
	tx, transport, err := g.prepare(contract, function, args)
	if err != nil {
		return nil, err
	}

	callCtx, cancel := context.WithTimeout(ctx, g.cfg.Timeout)
	defer cancel()
	out, err := transport.Evaluate(callCtx, tx)
	if err != nil {
		return nil, g.classify(callCtx, contract, function, err)
	}
	return out, nil
}

func (g *Gateway) prepare(contract, function string, args []string) (Transaction, Transport, error) {
	if !g.allow.Allows(contract, function) {
		g.logger.Error("security_event",
			"event", "ledger_access_denied",
			"org", g.cfg.Org,
			"contract", contract,
			"function", function,
		)
		return Transaction{}, nil, fmt.Errorf("%w: %s may not call %s.%s", ErrAccessDenied, g.cfg.Org, contract, function)
	}

	g.mu.RLock()
	defer g.mu.RUnlock()
	if g.transport == nil {
		return Transaction{}, nil, fmt.Errorf("%w: gateway for %s is not connected", ErrLedgerUnavailable, g.cfg.Org)
	}
	handle, ok := g.contracts[contract]
	if !ok {
		return Transaction{}, nil, fmt.Errorf("%w: contract %s is not deployed on channel %s", ErrLedgerUnavailable, contract, g.profile.Channel)
	}

	return Transaction{
		ID:       uuid.NewString(),
		Channel:  g.profile.Channel,
		Contract: handle.deployed,
		Function: function,
		Args:     append([]string(nil), args...),
		Creator:  g.identity.Label,
		MSPID:    g.identity.MSPID,
	}, g.transport, nil
}

func (g *Gateway) classify(callCtx context.Context, contract, function string, err error) error {
	switch {
	case errors.Is(callCtx.Err(), context.DeadlineExceeded), errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w: %s.%s after %s", ErrLedgerTimeout, contract, function, g.cfg.Timeout)
	case errors.Is(err, ErrLedgerRejected):
		return err
	default:
		return fmt.Errorf("%w: %s.%s: %v", ErrLedgerUnavailable, contract, function, err)
	}
}
