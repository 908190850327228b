package state

import (
	"fmt"
	"sync"

	"go.uber.org/zap"

	"omnisearch/internal/domain"
)

type connectionEntry struct {
	id domain.ListenerID
	fn domain.ConnectionListener
}

type healthEntry struct {
	id domain.ListenerID
	fn domain.HealthListener
}

// listenerSet keeps listeners in registration order. Notification iterates a copy
// so listeners may add or remove listeners while being called.
// Connection snapshots are delivered strictly in revision order: a notifier
// waits until every earlier revision has been delivered.
type listenerSet struct {
	logger *zap.Logger

	mu          sync.RWMutex
	next        domain.ListenerID
	connections []connectionEntry
	health      []healthEntry

	seqMu     sync.Mutex
	seqCond   *sync.Cond
	delivered uint64
}

func newListenerSet(logger *zap.Logger) *listenerSet {
	l := &listenerSet{logger: logger}
	l.seqCond = sync.NewCond(&l.seqMu)
	return l
}

func (l *listenerSet) addConnection(fn domain.ConnectionListener) domain.ListenerID {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.next++
	l.connections = append(l.connections, connectionEntry{id: l.next, fn: fn})
	return l.next
}

func (l *listenerSet) removeConnection(id domain.ListenerID) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i, entry := range l.connections {
		if entry.id == id {
			l.connections = append(l.connections[:i:i], l.connections[i+1:]...)
			return true
		}
	}
	return false
}

func (l *listenerSet) addHealth(fn domain.HealthListener) domain.ListenerID {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.next++
	l.health = append(l.health, healthEntry{id: l.next, fn: fn})
	return l.next
}

func (l *listenerSet) removeHealth(id domain.ListenerID) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i, entry := range l.health {
		if entry.id == id {
			l.health = append(l.health[:i:i], l.health[i+1:]...)
			return true
		}
	}
	return false
}

// notifyConnections delivers snapshot once revision-1 has been delivered.
// Revisions are assigned consecutively under the store lock, so every waiter
// is eventually released. A listener must not mutate the store synchronously.
func (l *listenerSet) notifyConnections(snapshot domain.ConnectionSnapshot) {
	l.seqMu.Lock()
	for l.delivered+1 < snapshot.Revision {
		l.seqCond.Wait()
	}
	l.seqMu.Unlock()

	defer func() {
		l.seqMu.Lock()
		if snapshot.Revision > l.delivered {
			l.delivered = snapshot.Revision
		}
		l.seqCond.Broadcast()
		l.seqMu.Unlock()
	}()

	l.mu.RLock()
	entries := append([]connectionEntry(nil), l.connections...)
	l.mu.RUnlock()

	for _, entry := range entries {
		l.invoke("connection", entry.id, func() {
			entry.fn(cloneSnapshot(snapshot))
		})
	}
}

func (l *listenerSet) notifyHealth(status domain.HealthStatus) {
	l.mu.RLock()
	entries := append([]healthEntry(nil), l.health...)
	l.mu.RUnlock()

	for _, entry := range entries {
		l.invoke("health", entry.id, func() {
			entry.fn(status.Clone())
		})
	}
}

func (l *listenerSet) invoke(kind string, id domain.ListenerID, call func()) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Error("listener panicked",
				zap.String("listener", kind),
				zap.Uint64("listenerID", uint64(id)),
				zap.String("panic", fmt.Sprint(r)),
			)
		}
	}()
	call()
}

func cloneSnapshot(snapshot domain.ConnectionSnapshot) domain.ConnectionSnapshot {
	conns := make([]domain.Connection, len(snapshot.Connections))
	for i, conn := range snapshot.Connections {
		conns[i] = conn.Clone()
	}
	return domain.ConnectionSnapshot{Revision: snapshot.Revision, Connections: conns}
}
