package kernel

// Channel is a single-slot mailbox. Put overwrites; Take never blocks.
type Channel struct {
	value uint64
	full  bool
}

func (*Channel) Kind() Kind { return KindChannel }

func (c *Channel) Put(v uint64) {
	c.value = v
	c.full = true
}

func (c *Channel) Take() (uint64, bool) {
	if !c.full {
		return 0, false
	}
	c.full = false
	return c.value, true
}

func (c *Channel) Pending() bool { return c.full }
