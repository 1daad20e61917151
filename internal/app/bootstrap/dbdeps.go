// internal/app/bootstrap/dbdeps.go
package bootstrap

import (
	"sync"

	"github.com/dalemusser/tenantgate/internal/app/system/workers"
	"go.mongodb.org/mongo-driver/mongo"
)

// DBDeps holds database/back-end dependencies for the app.
//
// Background is allocated by ConnectDB. DBDeps is passed by value, so every
// hook sees the same Background through the pointer.
type DBDeps struct {
	MongoClient   *mongo.Client
	MongoDatabase *mongo.Database
	Background    *Background
}

// Background tracks workers started by BuildHandler until Shutdown stops them.
type Background struct {
	mu    sync.Mutex
	sweep *workers.InvitationSweep
}

// StartSweep starts w and records it, stopping any sweep recorded earlier.
func (b *Background) StartSweep(w *workers.InvitationSweep) {
	b.mu.Lock()
	prev := b.sweep
	b.sweep = w
	b.mu.Unlock()
	if prev != nil {
		prev.Stop()
	}
	w.Start()
}

// Sweep returns the running sweep worker, or nil.
func (b *Background) Sweep() *workers.InvitationSweep {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.sweep
}

// Stop stops every recorded worker. Safe on a nil receiver.
func (b *Background) Stop() {
	if b == nil {
		return
	}
	b.mu.Lock()
	w := b.sweep
	b.sweep = nil
	b.mu.Unlock()
	if w != nil {
		w.Stop()
	}
}
