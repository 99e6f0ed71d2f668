package service

import (
	"context"
	"sync"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/teamspace/internal/workspace/domain"
)

type laneKey struct{}

// withLane tags ctx so lockstepRepo can tell concurrent callers apart.
func withLane(ctx context.Context, lane string) context.Context {
	return context.WithValue(ctx, laneKey{}, lane)
}

// lockstepRepo makes every lane wait after its n-th read until all lanes
// have completed their n-th read. Reads made outside a transaction
// therefore all observe the state before any lane writes. Transactional
// repositories from WithTx are not intercepted. A positive rounds limits
// gating to the first rounds reads of each lane.
type lockstepRepo struct {
	domain.Repository

	lanes   int
	rounds  int
	timeout time.Duration

	mu      sync.Mutex
	next    map[string]int
	arrived map[int]int
	gates   map[int]chan struct{}
}

func newLockstepRepo(inner domain.Repository, lanes int) *lockstepRepo {
	return &lockstepRepo{
		Repository: inner,
		lanes:      lanes,
		timeout:    2 * time.Second,
		next:       map[string]int{},
		arrived:    map[int]int{},
		gates:      map[int]chan struct{}{},
	}
}

func (r *lockstepRepo) step(ctx context.Context) {
	lane, ok := ctx.Value(laneKey{}).(string)
	if !ok {
		return
	}

	r.mu.Lock()
	n := r.next[lane]
	r.next[lane]++
	if r.rounds > 0 && n >= r.rounds {
		r.mu.Unlock()
		return
	}
	gate, ok := r.gates[n]
	if !ok {
		gate = make(chan struct{})
		r.gates[n] = gate
	}
	r.arrived[n]++
	if r.arrived[n] == r.lanes {
		close(gate)
	}
	r.mu.Unlock()

	// a lane that took a different path never arrives; do not hang on it
	select {
	case <-gate:
	case <-time.After(r.timeout):
	}
}

func (r *lockstepRepo) SlugExists(ctx context.Context, slug string) (bool, error) {
	ok, err := r.Repository.SlugExists(ctx, slug)
	r.step(ctx)
	return ok, err
}

func (r *lockstepRepo) FindWorkspace(ctx context.Context, id snowflake.ID) (*domain.Workspace, error) {
	ws, err := r.Repository.FindWorkspace(ctx, id)
	r.step(ctx)
	return ws, err
}

func (r *lockstepRepo) FindMember(ctx context.Context, workspaceID, userID snowflake.ID) (*domain.Member, error) {
	m, err := r.Repository.FindMember(ctx, workspaceID, userID)
	r.step(ctx)
	return m, err
}

func (r *lockstepRepo) FindActiveMember(ctx context.Context, workspaceID, userID snowflake.ID) (*domain.Member, error) {
	m, err := r.Repository.FindActiveMember(ctx, workspaceID, userID)
	r.step(ctx)
	return m, err
}

func (r *lockstepRepo) CountActiveOwners(ctx context.Context, workspaceID snowflake.ID, excludeUserID *snowflake.ID) (int64, error) {
	n, err := r.Repository.CountActiveOwners(ctx, workspaceID, excludeUserID)
	r.step(ctx)
	return n, err
}
