package memory

import (
	"context"
	"fmt"
	"sync"

	"auction-engine/internal/domain"
)

// IdentityDirectory is a static actor table used by the memory driver and tests.
type IdentityDirectory struct {
	mu     sync.RWMutex
	actors map[string]domain.Actor
}

func NewIdentityDirectory(actors ...domain.Actor) *IdentityDirectory {
	d := &IdentityDirectory{actors: make(map[string]domain.Actor, len(actors))}
	for _, a := range actors {
		d.actors[a.ID] = a
	}
	return d
}

func (d *IdentityDirectory) Put(actor domain.Actor) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.actors[actor.ID] = actor
}

func (d *IdentityDirectory) GetActor(ctx context.Context, userID string) (*domain.Actor, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	actor, ok := d.actors[userID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrActorNotFound, userID)
	}
	return &actor, nil
}
