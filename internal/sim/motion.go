package sim

import (
	"context"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/arcticfish-wang/pickplace/pkg/models"
)

// PlanningOptions are the planner settings the motion service applies to every
// request.
type PlanningOptions struct {
	Group          string
	PlannerID      string
	PlanningTime   time.Duration
	SupportSurface string
}

// Call records one request made to the motion service.
type Call struct {
	Op         string // "pick" or "place"
	ID         string
	Candidates int
	Success    bool
}

// Decider chooses the outcome of a request. It is called once per request.
type Decider func(op, id string, attempt int) bool

// MotionService simulates planning and execution against a World.
type MotionService struct {
	world   *World
	opts    PlanningOptions
	decide  Decider
	mu      sync.Mutex
	calls   []Call
	counter map[string]int
}

// NewMotionService creates a motion service. A nil decider always succeeds.
func NewMotionService(world *World, opts PlanningOptions, decide Decider) *MotionService {
	if decide == nil {
		decide = func(string, string, int) bool { return true }
	}
	return &MotionService{
		world:   world,
		opts:    opts,
		decide:  decide,
		counter: make(map[string]int),
	}
}

// RandomDecider fails each request with probability failureRate.
func RandomDecider(failureRate float64, seed uint64) Decider {
	var mu sync.Mutex
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	return func(string, string, int) bool {
		mu.Lock()
		defer mu.Unlock()
		return rng.Float64() >= failureRate
	}
}

// ScriptedDecider replays a fixed sequence of outcomes per operation
// ("pick"/"place"). Once a script is exhausted the request succeeds.
func ScriptedDecider(scripts map[string][]bool) Decider {
	var mu sync.Mutex
	pos := make(map[string]int)
	return func(op, _ string, _ int) bool {
		mu.Lock()
		defer mu.Unlock()
		seq := scripts[op]
		i := pos[op]
		pos[op] = i + 1
		if i < len(seq) {
			return seq[i]
		}
		return true
	}
}

// Options returns the planner settings.
func (m *MotionService) Options() PlanningOptions {
	return m.opts
}

// Pick attaches id to the gripper when the object is in the scene, at least one
// grasp is offered, and the decider allows it.
func (m *MotionService) Pick(ctx context.Context, id string, grasps []models.GraspCandidate) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	_, present := m.world.Object(id)
	ok := present && len(grasps) > 0 && m.next("pick", id)
	if ok {
		ok = m.world.attach(id)
	}
	m.record(Call{Op: "pick", ID: id, Candidates: len(grasps), Success: ok})
	return ok, nil
}

// Place releases id at the first offered place pose.
func (m *MotionService) Place(ctx context.Context, id string, places []models.PlaceCandidate) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	ok := m.world.IsAttached(id) && len(places) > 0 && m.next("place", id)
	if ok {
		ok = m.world.detachAt(id, places[0].PlacePose)
	}
	m.record(Call{Op: "place", ID: id, Candidates: len(places), Success: ok})
	return ok, nil
}

// Calls returns a copy of the request log.
func (m *MotionService) Calls() []Call {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Call(nil), m.calls...)
}

func (m *MotionService) next(op, id string) bool {
	m.mu.Lock()
	key := op + "/" + id
	m.counter[key]++
	n := m.counter[key]
	m.mu.Unlock()
	return m.decide(op, id, n)
}

func (m *MotionService) record(c Call) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, c)
}
