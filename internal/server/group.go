package server

import (
	"log"
	"sync"
)

// DefaultGroup is the single broadcast domain shared by every authenticated
// connection; room scoping is payload metadata, not an isolation boundary.
const DefaultGroup = "global"

// GroupRegistry maps group names to their currently connected sessions. A
// registry instance is constructed once per process and injected into the
// chat server; membership is never persisted.
type GroupRegistry struct {
	mu     sync.Mutex
	groups map[string]map[*Client]struct{}
	log    *log.Logger
}

func NewGroupRegistry(logger *log.Logger) *GroupRegistry {
	return &GroupRegistry{
		groups: make(map[string]map[*Client]struct{}),
		log:    logger,
	}
}

// Join adds a session to a group. Joining twice is a no-op.
func (g *GroupRegistry) Join(group string, c *Client) {
	g.mu.Lock()
	defer g.mu.Unlock()

	members, ok := g.groups[group]
	if !ok {
		members = make(map[*Client]struct{})
		g.groups[group] = members
	}
	members[c] = struct{}{}
}

// Leave removes a session from a group; removing an absent session is a
// no-op so every disconnect path can call it unconditionally.
func (g *GroupRegistry) Leave(group string, c *Client) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if members, ok := g.groups[group]; ok {
		delete(members, c)
	}
}

// Broadcast delivers frame to every member joined at send time and returns
// the delivery count. A slow member only loses its own copy; delivery to the
// rest is unaffected.
func (g *GroupRegistry) Broadcast(group string, frame *ServerFrame) int {
	g.mu.Lock()
	members := make([]*Client, 0, len(g.groups[group]))
	for c := range g.groups[group] {
		members = append(members, c)
	}
	g.mu.Unlock()

	delivered := 0
	for _, c := range members {
		if c.queueMessage(frame) {
			delivered++
		}
	}

	return delivered
}

// Size reports current membership of a group.
func (g *GroupRegistry) Size(group string) int {
	g.mu.Lock()
	defer g.mu.Unlock()

	return len(g.groups[group])
}
