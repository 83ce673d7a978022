package battlefield

import (
	"fmt"

	"github.com/zeusync/battlefield/internal/core/models"
	"github.com/zeusync/battlefield/internal/core/systems/physics"
)

// PhysicalEntity binds a scene entity to its rigid body and collider.
// Pose is the last pose seen after a step and is what movement detection
// compares against.
type PhysicalEntity struct {
	Entity   models.EntityID
	Body     physics.BodyHandle
	Collider physics.ColliderHandle
	Pose     physics.Isometry
}

// Registry maps entities to their physics handles. It owns no physics
// state; the World does.
type Registry struct {
	entities   map[models.EntityID]*PhysicalEntity
	byCollider map[physics.ColliderHandle]models.EntityID
}

func NewRegistry() *Registry {
	return &Registry{
		entities:   make(map[models.EntityID]*PhysicalEntity),
		byCollider: make(map[physics.ColliderHandle]models.EntityID),
	}
}

func (r *Registry) Insert(pe PhysicalEntity) error {
	if _, ok := r.entities[pe.Entity]; ok {
		return fmt.Errorf("%w: %s", ErrEntityExists, pe.Entity)
	}
	r.entities[pe.Entity] = &pe
	r.byCollider[pe.Collider] = pe.Entity
	return nil
}

func (r *Registry) Get(id models.EntityID) (PhysicalEntity, bool) {
	pe, ok := r.entities[id]
	if !ok {
		return PhysicalEntity{}, false
	}
	return *pe, true
}

// Remove drops the entry and returns it so the caller can release both
// handles together.
func (r *Registry) Remove(id models.EntityID) (PhysicalEntity, bool) {
	pe, ok := r.entities[id]
	if !ok {
		return PhysicalEntity{}, false
	}
	delete(r.entities, id)
	delete(r.byCollider, pe.Collider)
	return *pe, true
}

// SetPose updates the cached pose and reports whether it changed. Poses
// are compared exactly.
func (r *Registry) SetPose(id models.EntityID, pose physics.Isometry) bool {
	pe, ok := r.entities[id]
	if !ok || pe.Pose == pose {
		return false
	}
	pe.Pose = pose
	return true
}

// EntityOf resolves a collider back to its entity.
func (r *Registry) EntityOf(ch physics.ColliderHandle) (models.EntityID, bool) {
	id, ok := r.byCollider[ch]
	return id, ok
}

// IDs returns the registered entities in ascending order.
func (r *Registry) IDs() []models.EntityID {
	ids := make([]models.EntityID, 0, len(r.entities))
	for id := range r.entities {
		ids = append(ids, id)
	}
	return models.SortEntityIDs(ids)
}

func (r *Registry) Contains(id models.EntityID) bool {
	_, ok := r.entities[id]
	return ok
}

func (r *Registry) Len() int { return len(r.entities) }
