// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package chain

import (
	"math/bits"
	"sort"

	"github.com/ava-labs/witnessvm/ledger"
	"github.com/ava-labs/witnessvm/protocol"
)

// slotTime is the start of the [slot]th production slot after the head. Slot
// zero has no time.
func slotTime(g *ledger.GlobalProperties, slot uint32) uint32 {
	if slot == 0 {
		return 0
	}
	interval := protocol.BlockIntervalSeconds
	head := g.Time / interval * interval
	return head + slot*interval
}

// slotAtTime is the slot [when] falls in, zero if it is not after the head.
func slotAtTime(g *ledger.GlobalProperties, when uint32) uint32 {
	first := slotTime(g, 1)
	if when < first {
		return 0
	}
	return (when-first)/protocol.BlockIntervalSeconds + 1
}

// scheduledWitness is the witness expected to produce in [slot].
func scheduledWitness(g *ledger.GlobalProperties, s *ledger.WitnessSchedule, slot uint32) string {
	n := uint64(len(s.CurrentShuffledWitnesses))
	if n == 0 {
		return ""
	}
	return s.CurrentShuffledWitnesses[(g.CurrentAslot+uint64(slot))%n]
}

// supermajority is the number of [n] witnesses that make
// protocol.HardforkRequiredPercent, rounded up.
func supermajority(n int) int {
	return (n*protocol.HardforkRequiredPercent + 99) / 100
}

// shiftSlots shifts the 128 bit recent slot window left by [k].
func shiftSlots(hi, lo uint64, k uint32) (uint64, uint64) {
	switch {
	case k >= 128:
		return 0, 0
	case k >= 64:
		return lo << (k - 64), 0
	case k == 0:
		return hi, lo
	default:
		return hi<<k | lo>>(64-k), lo << k
	}
}

// updateGlobalProperties charges missed slots to their witnesses and moves
// the head to the block being applied.
func (c *Chain) updateGlobalProperties(a *applyContext, blk *protocol.SignedBlock) (uint32, error) {
	l := a.ledger
	g, err := l.GlobalProperties()
	if err != nil {
		return 0, err
	}
	s, err := l.WitnessSchedule()
	if err != nil {
		return 0, err
	}

	var missed uint32
	if g.HeadBlockNumber != 0 {
		if slot := slotAtTime(g, blk.Timestamp); slot > 0 {
			missed = slot - 1
		}
	}
	for i := uint32(0); i < missed; i++ {
		name := scheduledWitness(g, s, i+1)
		if name == blk.Witness {
			continue
		}
		w, err := l.Witness(name)
		if err != nil {
			return 0, err
		}
		w.TotalMissed++
		shutdown := a.hasHardfork(protocol.HardforkWitnessShutdown) &&
			w.Active() &&
			g.HeadBlockNumber-w.LastConfirmedBlockNum > protocol.BlocksPerDay
		if shutdown {
			w.SigningKey = protocol.PublicKey{}
		}
		if err := l.PutWitness(w); err != nil {
			return 0, err
		}
		if shutdown {
			c.log.Warn("shutting down witness", "witness", name, "lastConfirmed", w.LastConfirmedBlockNum)
			if err := c.applyOperation(a, &protocol.ShutdownWitness{Owner: name}, true); err != nil {
				return 0, err
			}
		}
	}

	hi, lo := shiftSlots(g.RecentSlotsFilledHi, g.RecentSlotsFilledLo, missed+1)
	g.RecentSlotsFilledHi, g.RecentSlotsFilledLo = hi, lo|1
	g.ParticipationCount = uint8(bits.OnesCount64(g.RecentSlotsFilledHi) + bits.OnesCount64(g.RecentSlotsFilledLo))
	g.HeadBlockNumber = a.blockNum
	g.HeadBlockID = a.blockID
	g.Time = blk.Timestamp
	g.CurrentWitness = blk.Witness
	g.CurrentAslot += uint64(missed) + 1
	if err := l.PutGlobalProperties(g); err != nil {
		return 0, err
	}
	return missed, l.PutBlockSummary(a.blockNum, a.blockID)
}

// updateSigningWitness records the producer's confirmation, running version
// and hardfork vote.
func (*Chain) updateSigningWitness(a *applyContext, blk *protocol.SignedBlock) error {
	l := a.ledger
	g, err := l.GlobalProperties()
	if err != nil {
		return err
	}
	w, err := l.Witness(blk.Witness)
	if err != nil {
		return err
	}
	w.LastAslot = g.CurrentAslot
	w.LastConfirmedBlockNum = a.blockNum
	w.RunningVersion = blk.Version
	if blk.HardforkVote != (protocol.Version{}) {
		w.HardforkVersionVote = blk.HardforkVote
		w.HardforkTimeVote = blk.HardforkVoteTime
	}
	return l.PutWitness(w)
}

// shuffle permutes [names] with a generator seeded by [now], so every node
// computes the same round.
func shuffle(names []string, now uint32) {
	const mult = 2685821657736338717
	seed := uint64(now) << 32
	n := uint32(len(names))
	for i := uint32(0); i < n; i++ {
		k := seed + uint64(i)*mult
		k ^= k >> 12
		k ^= k << 25
		k ^= k >> 27
		k *= mult
		j := i + uint32(k%uint64(n-i))
		names[i], names[j] = names[j], names[i]
	}
}

// updateWitnessSchedule starts a new round once the head reaches the end of
// the current one. The round is made of the top voted active witnesses, and
// their votes and published properties are tallied.
func (c *Chain) updateWitnessSchedule(a *applyContext) error {
	l := a.ledger
	s, err := l.WitnessSchedule()
	if err != nil {
		return err
	}
	if a.blockNum < s.NextShuffleBlockNum {
		return nil
	}

	top, err := l.TopWitnesses(protocol.MaxScheduledWitnesses)
	if err != nil {
		return err
	}
	if len(top) == 0 {
		c.log.Warn("no active witnesses, keeping the current round", "num", a.blockNum)
		s.NextShuffleBlockNum = a.blockNum + uint32(s.NumScheduled())
		return l.PutWitnessSchedule(s)
	}
	sort.Slice(top, func(i, j int) bool { return top[i].Owner < top[j].Owner })
	names := make([]string, len(top))
	for i, w := range top {
		names[i] = w.Owner
	}
	shuffle(names, a.now)
	s.CurrentShuffledWitnesses = names
	s.NextShuffleBlockNum = a.blockNum + uint32(len(names))
	s.MajorityVersion = majorityVersion(top)
	if err := l.PutWitnessSchedule(s); err != nil {
		return err
	}

	if err := c.tallyHardforkVotes(a, top); err != nil {
		return err
	}
	return updateMedianProperties(l, top)
}

// majorityVersion is the highest version run by a supermajority of [ws].
func majorityVersion(ws []*ledger.Witness) protocol.Version {
	versions := make([]protocol.Version, len(ws))
	for i, w := range ws {
		versions[i] = w.RunningVersion
	}
	sort.Slice(versions, func(i, j int) bool { return versions[j].Less(versions[i]) })
	return versions[supermajority(len(versions))-1]
}

type versionVote struct {
	version protocol.Version
	time    uint32
}

// tallyHardforkVotes schedules the next hardfork once a supermajority of the
// round agrees on its version and time.
func (c *Chain) tallyHardforkVotes(a *applyContext, ws []*ledger.Witness) error {
	l := a.ledger
	hp, err := l.HardforkProperty()
	if err != nil {
		return err
	}
	counts := make(map[versionVote]int)
	var winner *versionVote
	required := supermajority(len(ws))
	for _, w := range ws {
		vote := versionVote{version: w.HardforkVersionVote, time: w.HardforkTimeVote}
		if !hp.CurrentHardforkVersion.Less(vote.version) {
			continue
		}
		counts[vote]++
		if counts[vote] >= required {
			winner = &vote
			break
		}
	}
	if winner == nil {
		return nil
	}
	if hp.NextHardfork == winner.version && hp.NextHardforkTime == winner.time {
		return nil
	}
	hp.NextHardfork = winner.version
	hp.NextHardforkTime = winner.time
	c.log.Info("witnesses scheduled a hardfork", "version", winner.version, "time", winner.time)
	return l.PutHardforkProperty(hp)
}

// updateMedianProperties adopts the median of the properties the round's
// witnesses publish.
func updateMedianProperties(l *ledger.Ledger, ws []*ledger.Witness) error {
	g, err := l.GlobalProperties()
	if err != nil {
		return err
	}

	sizes := make([]uint32, 0, len(ws))
	fees := make([]int64, 0, len(ws))
	var prices []protocol.Price
	for _, w := range ws {
		if w.MaximumBlockSize != 0 {
			sizes = append(sizes, w.MaximumBlockSize)
		}
		fees = append(fees, w.AccountCreationFee.Amount)
		if !w.DollarExchangeRate.IsNull() {
			prices = append(prices, w.DollarExchangeRate)
		}
	}
	if len(sizes) > 0 {
		sort.Slice(sizes, func(i, j int) bool { return sizes[i] < sizes[j] })
		size := sizes[len(sizes)/2]
		if size < protocol.MinBlockSize {
			size = protocol.MinBlockSize
		}
		if size > protocol.MaxBlockSizeCap {
			size = protocol.MaxBlockSizeCap
		}
		g.MaximumBlockSize = size
	}
	sort.Slice(fees, func(i, j int) bool { return fees[i] < fees[j] })
	g.AccountCreationFee = protocol.Tokens(fees[len(fees)/2])
	if len(prices) > 0 {
		sort.Slice(prices, func(i, j int) bool { return prices[i].Less(prices[j]) })
		g.CurrentMedianPrice = prices[len(prices)/2]
	}
	return l.PutGlobalProperties(g)
}
