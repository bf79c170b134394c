// Package clock describes the host supplied block context every operation
// executes under.
package clock

// BlockInfo carries the monotonically non-decreasing counters supplied by the
// host for a single invocation.
type BlockInfo struct {
	// Round is the consensus round, used by the safe price oracle.
	Round uint64
	// Epoch drives farming penalties and unbonding windows.
	Epoch uint64
	// Nonce is the block height used for per-block reward emission.
	Nonce uint64
	// Timestamp is the block time in unix seconds.
	Timestamp uint64
}

// Clock yields the block context of the current invocation.
type Clock interface {
	Current() BlockInfo
}

// Static is a Clock pinned to a single block.
type Static BlockInfo

// Current implements Clock.
func (s Static) Current() BlockInfo { return BlockInfo(s) }

// Manual is a Clock advanced explicitly, primarily for tests and scripts.
type Manual struct {
	info BlockInfo
}

// NewManual starts a manual clock at info.
func NewManual(info BlockInfo) *Manual {
	return &Manual{info: info}
}

// Current implements Clock.
func (m *Manual) Current() BlockInfo {
	if m == nil {
		return BlockInfo{}
	}
	return m.info
}

// Set pins the clock to info. Counters never move backwards.
func (m *Manual) Set(info BlockInfo) {
	if m == nil {
		return
	}
	if info.Round < m.info.Round {
		info.Round = m.info.Round
	}
	if info.Epoch < m.info.Epoch {
		info.Epoch = m.info.Epoch
	}
	if info.Nonce < m.info.Nonce {
		info.Nonce = m.info.Nonce
	}
	if info.Timestamp < m.info.Timestamp {
		info.Timestamp = m.info.Timestamp
	}
	m.info = info
}

// AdvanceBlocks moves the block nonce and round forward by n and the
// timestamp by n*secondsPerBlock.
func (m *Manual) AdvanceBlocks(n, secondsPerBlock uint64) {
	if m == nil {
		return
	}
	m.info.Nonce += n
	m.info.Round += n
	m.info.Timestamp += n * secondsPerBlock
}

// AdvanceEpochs moves the epoch forward by n.
func (m *Manual) AdvanceEpochs(n uint64) {
	if m == nil {
		return
	}
	m.info.Epoch += n
}
