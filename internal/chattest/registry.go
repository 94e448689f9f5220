package chattest

import (
	"log"
	"sync"
)

// registry tracks connected peers and their room memberships
type registry struct {
	mu    sync.RWMutex
	peers map[string]*peer
	rooms map[string]map[string]*peer
}

func newRegistry() *registry {
	return &registry{
		peers: make(map[string]*peer),
		rooms: make(map[string]map[string]*peer),
	}
}

func (r *registry) register(p *peer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.peers[p.id] = p
}

// unregister removes p from every room. Idempotent.
func (r *registry) unregister(p *peer) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.peers[p.id]; !ok {
		return
	}
	delete(r.peers, p.id)
	for roomID, members := range r.rooms {
		delete(members, p.id)
		if len(members) == 0 {
			delete(r.rooms, roomID)
		}
	}
}

func (r *registry) join(p *peer, roomID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.rooms[roomID] == nil {
		r.rooms[roomID] = make(map[string]*peer)
	}
	r.rooms[roomID][p.id] = p
}

func (r *registry) leave(p *peer, roomID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if members, ok := r.rooms[roomID]; ok {
		delete(members, p.id)
		if len(members) == 0 {
			delete(r.rooms, roomID)
		}
	}
}

func (r *registry) members(roomID string) []*peer {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*peer, 0, len(r.rooms[roomID]))
	for _, p := range r.rooms[roomID] {
		out = append(out, p)
	}
	return out
}

func (r *registry) all() []*peer {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*peer, 0, len(r.peers))
	for _, p := range r.peers {
		out = append(out, p)
	}
	return out
}

func (r *registry) stats() map[string]int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return map[string]int{
		"total_connections": len(r.peers),
		"active_rooms":      len(r.rooms),
	}
}

func (r *registry) closeAll() int {
	peers := r.all()
	for _, p := range peers {
		if err := p.close(); err != nil {
			log.Printf("chattest: close peer %s: %v", p.id, err)
		}
	}
	return len(peers)
}
