package rxdfa

// Cache holds the states and transitions a single parser has discovered so
// far. It is deliberately unshared: §5 calls out that "the RxDFA's lazy
// state expansion is per parser and not shared", which is what lets many
// parsers built from one compiled grammar run concurrently without any
// synchronization on the hot path.
type Cache struct {
	states      []*State
	byKey       map[string]StateID
	transitions []*[256]StateID // parallel to states; lazily allocated
	maxStates   int
}

// NewCache creates an empty cache bounded to maxStates states (DeadState
// and InvalidState are reserved sentinels, not counted against the bound).
func NewCache(maxStates int) *Cache {
	return &Cache{
		byKey:     make(map[string]StateID),
		maxStates: maxStates,
	}
}

// intern returns the StateID for a state with these nodes, reusing an
// existing equivalent state if one is already cached.
func (c *Cache) intern(nodes []Node) (StateID, error) {
	s := &State{nodes: nodes}
	if s.IsDead() {
		return DeadState, nil
	}
	k := s.key()
	if id, ok := c.byKey[k]; ok {
		return id, nil
	}
	if len(c.states) >= c.maxStates {
		return InvalidState, ErrStateLimitExceeded
	}
	id := StateID(len(c.states))
	s.id = id
	c.states = append(c.states, s)
	c.transitions = append(c.transitions, nil)
	c.byKey[k] = id
	return id, nil
}

// get returns the state for id, or nil for DeadState/InvalidState.
func (c *Cache) get(id StateID) *State {
	if id == DeadState || id == InvalidState || int(id) >= len(c.states) {
		return nil
	}
	return c.states[id]
}

// cachedTransition returns a previously-computed transition, if any.
func (c *Cache) cachedTransition(id StateID, b byte) (StateID, bool) {
	if int(id) >= len(c.transitions) || c.transitions[id] == nil {
		return InvalidState, false
	}
	next := c.transitions[id][b]
	if next == InvalidState {
		return InvalidState, false
	}
	return next, true
}

// storeTransition memoizes state id's transition on byte b.
func (c *Cache) storeTransition(id StateID, b byte, next StateID) {
	if int(id) >= len(c.transitions) {
		return
	}
	if c.transitions[id] == nil {
		table := &[256]StateID{}
		for i := range table {
			table[i] = InvalidState
		}
		c.transitions[id] = table
	}
	c.transitions[id][b] = next
}

// Len returns the number of cached states (excluding Dead/Invalid).
func (c *Cache) Len() int { return len(c.states) }
