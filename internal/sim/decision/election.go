package decision

import "time"

// Register adds id to the coordinator pool. The first member becomes the
// leader; later members wait in registration order.
func (c *Coordinator) Register(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, m := range c.members {
		if m == id {
			return
		}
	}
	c.members = append(c.members, id)
	if c.leader == "" {
		c.elect()
	}
}

// Unregister drops id. If it was the leader the next member in
// registration order takes over.
func (c *Coordinator) Unregister(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	idx := -1
	for i, m := range c.members {
		if m == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return
	}
	c.members = append(c.members[:idx], c.members[idx+1:]...)
	if c.leader == id {
		c.elect()
	}
}

// elect must be called with c.mu held.
func (c *Coordinator) elect() {
	prev := c.leader
	if len(c.members) == 0 {
		c.leader = ""
		c.lastBatch = time.Time{}
		if prev != "" {
			c.logger.Printf("coordinator %s removed; no members left, batches paused", prev)
		}
		return
	}
	c.leader = c.members[0]
	if prev == "" {
		c.logger.Printf("coordinator elected: %s", c.leader)
	} else {
		c.logger.Printf("coordinator failover: %s -> %s", prev, c.leader)
	}
}

func (c *Coordinator) Leader() (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.leader, c.leader != ""
}

func (c *Coordinator) Members() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.members...)
}
