package hub

import "sync"

// Client is the live set of sockets bound to one identity, the fan-out
// target for multi-device delivery. It exists only while the set is
// non-empty; the hub destroys it when the last socket leaves.
type Client struct {
	mu      sync.RWMutex
	sockets []*Socket
}

func newClient(first *Socket) *Client {
	return &Client{sockets: []*Socket{first}}
}

func (c *Client) add(s *Socket) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sockets = append(c.sockets, s)
}

// remove drops the socket from the set and reports how many remain.
func (c *Client) remove(id SocketID) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, s := range c.sockets {
		if s.id == id {
			c.sockets = append(c.sockets[:i], c.sockets[i+1:]...)
			break
		}
	}
	return len(c.sockets)
}

// snapshot copies the socket set so fan-out iterates without holding the lock.
func (c *Client) snapshot() []*Socket {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]*Socket, len(c.sockets))
	copy(out, c.sockets)
	return out
}
