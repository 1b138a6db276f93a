// Package deployment keeps the set of boards a user has deployed or
// joined, each as its own observable lifecycle.
package deployment

import (
	"context"
	"sync"

	"github.com/blockberries/bboard"
	"github.com/blockberries/bboard/board"
	"github.com/blockberries/bboard/metrics"
	"github.com/blockberries/bboard/stream"
	"github.com/blockberries/bboard/types"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Compile-time interface check.
var _ bboard.DeployedBoardAPIProvider = (*Manager)(nil)

// Bootstrapper supplies the providers deployments run against.
type Bootstrapper interface {
	GetProviders(ctx context.Context) (bboard.Providers, error)
}

// DeployFunc deploys a new board.
type DeployFunc func(ctx context.Context, p bboard.Providers) (bboard.DeployedBoardAPI, error)

// JoinFunc joins the board at address.
type JoinFunc func(ctx context.Context, p bboard.Providers, address types.ContractAddress) (bboard.DeployedBoardAPI, error)

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the manager logger.
func WithLogger(log zerolog.Logger) Option {
	return func(m *Manager) { m.log = log }
}

// WithDeployFunc replaces the function used to deploy boards.
func WithDeployFunc(f DeployFunc) Option {
	return func(m *Manager) { m.deploy = f }
}

// WithJoinFunc replaces the function used to join boards.
func WithJoinFunc(f JoinFunc) Option {
	return func(m *Manager) { m.join = f }
}

// WithBoardOptions sets the session options of the default deploy and
// join functions.
func WithBoardOptions(opts ...board.Option) Option {
	return func(m *Manager) { m.boardOpts = opts }
}

// Manager is the deployment registry. Entries are only ever appended.
type Manager struct {
	ctx       context.Context
	boot      Bootstrapper
	log       zerolog.Logger
	deploy    DeployFunc
	join      JoinFunc
	boardOpts []board.Option

	mu         sync.Mutex
	entries    []*entry
	list       *stream.Subject[[]stream.Observable[bboard.Deployment]]
	outbox     []func()
	publishing bool

	wg sync.WaitGroup
}

type entry struct {
	id      string
	address types.ContractAddress
	guard   *LifecycleGuard
	current bboard.Deployment
	subject *stream.Subject[bboard.Deployment]
}

// NewManager creates an empty registry. ctx bounds every resolution
// the manager starts.
func NewManager(ctx context.Context, boot Bootstrapper, opts ...Option) *Manager {
	m := &Manager{
		ctx:  ctx,
		boot: boot,
		log:  zerolog.Nop(),
		list: stream.NewWithValue[[]stream.Observable[bboard.Deployment]](nil),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.deploy == nil {
		m.deploy = func(ctx context.Context, p bboard.Providers) (bboard.DeployedBoardAPI, error) {
			api, err := board.Deploy(ctx, p, m.sessionOptions()...)
			if err != nil {
				return nil, err
			}
			return api, nil
		}
	}
	if m.join == nil {
		m.join = func(ctx context.Context, p bboard.Providers, address types.ContractAddress) (bboard.DeployedBoardAPI, error) {
			api, err := board.Join(ctx, p, address, m.sessionOptions()...)
			if err != nil {
				return nil, err
			}
			return api, nil
		}
	}
	return m
}

func (m *Manager) sessionOptions() []board.Option {
	return append([]board.Option{board.WithLogger(m.log)}, m.boardOpts...)
}

// BoardDeployments streams the list of deployments in creation order.
func (m *Manager) BoardDeployments() stream.Observable[[]stream.Observable[bboard.Deployment]] {
	return m.list
}

// Resolve returns the deployment of the board at address, deploying a
// new board when address is empty. A board that is already deployed
// is returned as is; anything else starts a new deployment whose
// stream is returned immediately in the InProgress state.
func (m *Manager) Resolve(address types.ContractAddress) stream.Observable[bboard.Deployment] {
	m.mu.Lock()
	if address != "" {
		for _, e := range m.entries {
			if e.current.Status == bboard.DeploymentDeployed && e.current.API.DeployedContractAddress() == address {
				m.mu.Unlock()
				m.log.Debug().Str("contractAddress", string(address)).Str("id", e.id).Msg("deployment already resolved")
				return e.subject
			}
		}
	}

	id := uuid.NewString()
	initial := bboard.Deployment{ID: id, Status: bboard.DeploymentInProgress}
	e := &entry{
		id:      id,
		address: address,
		guard:   NewLifecycleGuard(),
		current: initial,
		subject: stream.NewWithValue(initial),
	}
	m.entries = append(m.entries, e)
	list := m.snapshotLocked()
	drain := m.enqueueLocked(func() { m.list.Next(list) })
	m.wg.Add(1)
	m.mu.Unlock()

	if drain {
		m.drainOutbox()
	}
	metrics.DeploymentsInFlight.Inc()
	go m.resolve(e)
	return e.subject
}

// Wait blocks until every resolution started so far has finished.
func (m *Manager) Wait() {
	m.wg.Wait()
}

func (m *Manager) snapshotLocked() []stream.Observable[bboard.Deployment] {
	list := make([]stream.Observable[bboard.Deployment], len(m.entries))
	for i, e := range m.entries {
		list[i] = e.subject
	}
	return list
}

func (m *Manager) resolve(e *entry) {
	defer m.wg.Done()
	defer metrics.DeploymentsInFlight.Dec()

	log := m.log.With().Str("id", e.id).Logger()
	api, err := m.run(e)
	if err != nil {
		log.Error().Err(err).Str("contractAddress", string(e.address)).Msg("deployment failed")
		m.finish(e, bboard.Deployment{ID: e.id, Status: bboard.DeploymentFailed, Err: err})
		return
	}
	log.Info().Str("contractAddress", string(api.DeployedContractAddress())).Msg("deployment resolved")
	m.finish(e, bboard.Deployment{ID: e.id, Status: bboard.DeploymentDeployed, API: api})
}

func (m *Manager) run(e *entry) (bboard.DeployedBoardAPI, error) {
	p, err := m.boot.GetProviders(m.ctx)
	if err != nil {
		return nil, err
	}
	if e.address == "" {
		return m.deploy(m.ctx, p)
	}
	return m.join(m.ctx, p, e.address)
}

func (m *Manager) finish(e *entry, d bboard.Deployment) {
	m.mu.Lock()
	if err := e.guard.Finish(d.Status); err != nil {
		m.mu.Unlock()
		m.log.Error().Err(err).Str("id", e.id).Msg("dropping deployment update")
		return
	}
	e.current = d
	drain := m.enqueueLocked(func() { e.subject.Next(d) })
	m.mu.Unlock()

	if drain {
		m.drainOutbox()
	}
}

// enqueueLocked queues a publication and reports whether the caller
// must drain the outbox. Publications run in queue order, outside
// m.mu. Caller holds m.mu.
func (m *Manager) enqueueLocked(publish func()) bool {
	m.outbox = append(m.outbox, publish)
	if m.publishing {
		return false
	}
	m.publishing = true
	return true
}

func (m *Manager) drainOutbox() {
	for {
		m.mu.Lock()
		if len(m.outbox) == 0 {
			m.publishing = false
			m.mu.Unlock()
			return
		}
		publish := m.outbox[0]
		m.outbox[0] = nil
		m.outbox = m.outbox[1:]
		m.mu.Unlock()

		publish()
	}
}
