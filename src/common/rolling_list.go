package common

// RollingList is a bounded message log. It keeps a tail of at most twice its
// size, rolling the oldest half away when the bound is reached, while
// counting every item ever added.
type RollingList struct {
	size  int
	tot   int
	items []string
}

// NewRollingList ...
func NewRollingList(size int) *RollingList {
	return &RollingList{
		size:  size,
		items: make([]string, 0, 2*size),
	}
}

// Get returns the cached tail and the total number of items ever added.
func (r *RollingList) Get() (lastWindow []string, tot int) {
	return r.items, r.tot
}

// Add appends an item, rolling the list first if it is full.
func (r *RollingList) Add(item string) {
	if len(r.items) >= 2*r.size {
		r.roll()
	}
	r.items = append(r.items, item)
	r.tot++
}

func (r *RollingList) roll() {
	newList := make([]string, 0, 2*r.size)
	newList = append(newList, r.items[r.size:]...)
	r.items = newList
}
