package sim

import (
	"context"
	"sort"
	"sync"

	"github.com/arcticfish-wang/pickplace/pkg/models"
)

// CollisionObject is a box the planner must avoid.
type CollisionObject struct {
	ID   string
	Pose models.Pose
	Size float64
}

// World is an in-memory planning scene. It satisfies scene.Publisher.
type World struct {
	mu        sync.RWMutex
	static    []models.Obstacle
	objects   map[string]CollisionObject
	attached  map[string]CollisionObject
	markers   int
	staticPub int
}

// NewWorld creates an empty world.
func NewWorld() *World {
	return &World{
		objects:  make(map[string]CollisionObject),
		attached: make(map[string]CollisionObject),
	}
}

// PublishStaticScene replaces the static obstacles.
func (w *World) PublishStaticScene(_ context.Context, obstacles []models.Obstacle) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.static = append([]models.Obstacle(nil), obstacles...)
	w.staticPub++
	return nil
}

// PublishCollisionObject adds or replaces a collision box.
func (w *World) PublishCollisionObject(_ context.Context, id string, pose models.Pose, size float64) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.objects[id] = CollisionObject{ID: id, Pose: pose, Size: size}
	return nil
}

// RemoveCollisionObject removes a collision box. Missing ids are ignored.
func (w *World) RemoveCollisionObject(_ context.Context, id string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.objects, id)
	return nil
}

// RemoveAttachedObject detaches an object from the gripper. Missing ids are ignored.
func (w *World) RemoveAttachedObject(_ context.Context, id string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.attached, id)
	return nil
}

// PublishMarker counts rendered markers.
func (w *World) PublishMarker(_ context.Context, _ models.Pose, _ float64, _ bool) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.markers++
	return nil
}

// attach moves id from the collision set to the gripper.
func (w *World) attach(id string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	obj, ok := w.objects[id]
	if !ok {
		return false
	}
	delete(w.objects, id)
	w.attached[id] = obj
	return true
}

// detachAt releases id from the gripper and leaves it at pose.
func (w *World) detachAt(id string, pose models.Pose) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	obj, ok := w.attached[id]
	if !ok {
		return false
	}
	delete(w.attached, id)
	obj.Pose = pose
	w.objects[id] = obj
	return true
}

// Object returns the collision object for id.
func (w *World) Object(id string) (CollisionObject, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	obj, ok := w.objects[id]
	return obj, ok
}

// IsAttached reports whether id is held by the gripper.
func (w *World) IsAttached(id string) bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	_, ok := w.attached[id]
	return ok
}

// Objects returns the collision objects sorted by id.
func (w *World) Objects() []CollisionObject {
	w.mu.RLock()
	defer w.mu.RUnlock()
	out := make([]CollisionObject, 0, len(w.objects))
	for _, o := range w.objects {
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Static returns the published static obstacles.
func (w *World) Static() []models.Obstacle {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return append([]models.Obstacle(nil), w.static...)
}

// StaticPublishCount returns how many times the static scene was published.
func (w *World) StaticPublishCount() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.staticPub
}

// MarkerCount returns how many markers were published.
func (w *World) MarkerCount() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.markers
}
