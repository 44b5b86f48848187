package genesis

import (
	"crypto/ecdsa"
	"fmt"
	"sync"
	"time"

	"github.com/playergold/goldnode/src/bus"
	"github.com/playergold/goldnode/src/common"
	"github.com/playergold/goldnode/src/peers"
	"github.com/sirupsen/logrus"
)

// Phases of a negotiation round.
const (
	PhaseIdle       = "idle"
	PhaseCollecting = "collecting"
	PhaseProposing  = "proposing"
	PhaseConfirming = "confirming"
	PhaseDone       = "done"
)

// Progress reports the state of a negotiation round.
type Progress struct {
	Phase        string   `json:"phase"`
	Percentage   int      `json:"percentage"`
	Message      string   `json:"message"`
	Participants []string `json:"participants"`
}

// Messenger sends negotiation messages to one peer. The bootstrap controller
// provides an implementation backed by the node's transport.
type Messenger interface {
	// Propose offers a signed proposal. The peer answers whether it accepts.
	Propose(target *peers.Peer, proposal *Proposal) (bool, error)

	// Commit announces the final document.
	Commit(target *peers.Peer, doc *Document) error
}

// Coordinator negotiates the genesis document among ready participants.
//
// The negotiation is deterministic: the participant with the lowest
// identifier builds and signs the document, the others verify that the
// proposal reproduces their own view of the inputs, and the proposer commits
// once every participant accepted. A coordinator whose node is not the
// proposer waits for the commit instead.
type Coordinator struct {
	l sync.Mutex

	self   *peers.Peer
	key    *ecdsa.PrivateKey
	params BuildParams

	messenger Messenger
	timeout   time.Duration

	progress  Progress
	pending   *Document
	proposing *Document
	committed *Document

	commitCh   chan *Document
	shutdownCh chan struct{}

	// onCreated delivers the committed document to the bootstrap controller
	onCreated func(*Document)

	nowFunc func() time.Time

	bus    *bus.Bus
	logger *logrus.Entry
}

// NewCoordinator instantiates a Coordinator. The self peer and key identify
// this node; params carries the network profile recorded at genesis.
func NewCoordinator(
	self *peers.Peer,
	key *ecdsa.PrivateKey,
	params BuildParams,
	messenger Messenger,
	timeout time.Duration,
	onCreated func(*Document),
	b *bus.Bus,
	logger *logrus.Entry,
) *Coordinator {
	return &Coordinator{
		self:       self,
		key:        key,
		params:     params,
		messenger:  messenger,
		timeout:    timeout,
		onCreated:  onCreated,
		progress:   Progress{Phase: PhaseIdle},
		commitCh:   make(chan *Document, 1),
		shutdownCh: make(chan struct{}),
		nowFunc:    time.Now,
		bus:        b,
		logger:     logger,
	}
}

// Negotiate runs one negotiation round over the given participant set, which
// must include this node. It blocks until the genesis document is committed,
// the round times out, or a peer fails. On failure the caller refreshes the
// peer set and retries; already-committed state is never discarded.
func (c *Coordinator) Negotiate(participants *peers.PeerSet) (*Document, error) {
	if committed := c.Committed(); committed != nil {
		return committed, nil
	}

	if participants == nil || participants.Len() == 0 {
		return nil, common.NewError(common.InvalidArgument, "genesis.Negotiate", "empty participant set")
	}

	if _, ok := participants.ByID[c.self.ID()]; !ok {
		return nil, common.NewError(common.InvalidArgument, "genesis.Negotiate", "own peer not in participant set")
	}

	parts := participantKeys(participants)

	c.setProgress(PhaseCollecting, 25,
		fmt.Sprintf("%d participants ready", participants.Len()), parts)

	// A node that accepted a proposal is bound to it until the proposer
	// commits or the round times out. Proposing something else here could
	// commit two documents at once.
	c.l.Lock()
	pending := c.pending
	c.l.Unlock()

	if pending != nil {
		return c.await(fmt.Sprintf("accepted proposal %s", shortHash(pending.Block.Hash)), parts)
	}

	proposer := Proposer(participants)

	if proposer.ID() == c.self.ID() {
		return c.propose(participants, parts)
	}

	return c.await(fmt.Sprintf("proposer %d", proposer.ID()), parts)
}

// propose runs the proposer side of the round.
func (c *Coordinator) propose(participants *peers.PeerSet, parts []string) (*Document, error) {
	params := c.params
	params.CreatedBy = c.self.PubKeyString()
	params.Timestamp = c.nowFunc().Unix()

	doc, err := Build(params, participants)
	if err != nil {
		return nil, err
	}

	proposal, err := NewProposal(doc, c.key)
	if err != nil {
		return nil, err
	}

	c.l.Lock()
	c.proposing = doc
	c.l.Unlock()

	defer func() {
		c.l.Lock()
		c.proposing = nil
		c.l.Unlock()
	}()

	c.setProgress(PhaseProposing, 50,
		fmt.Sprintf("proposing genesis %s", shortHash(doc.Block.Hash)), parts)

	for _, p := range participants.SortedByID() {
		if p.ID() == c.self.ID() {
			continue
		}

		accepted, err := c.messenger.Propose(p, proposal)
		if err != nil {
			return nil, common.Errorf(common.PeerUnreachable, "genesis.propose",
				"%s: %v", p.NetAddr, err)
		}
		if !accepted {
			return nil, common.Errorf(common.GenesisConflict, "genesis.propose",
				"%s rejected proposal %s", p.NetAddr, shortHash(doc.Block.Hash))
		}
	}

	c.setProgress(PhaseConfirming, 75,
		fmt.Sprintf("confirming genesis %s", shortHash(doc.Block.Hash)), parts)

	for _, p := range participants.SortedByID() {
		if p.ID() == c.self.ID() {
			continue
		}

		if err := c.messenger.Commit(p, doc); err != nil {
			// the peer accepted the proposal; it will learn the outcome from
			// a later probe
			c.logger.WithFields(logrus.Fields{
				"peer":  p.NetAddr,
				"error": err,
			}).Warn("Commit delivery failed")
		}
	}

	c.commit(doc)

	return doc, nil
}

// await runs the acceptor side of the round: wait for a commit. On timeout
// the pending proposal, if any, is dropped so that the next round can
// propose afresh.
func (c *Coordinator) await(from string, parts []string) (*Document, error) {
	c.setProgress(PhaseProposing, 50,
		fmt.Sprintf("waiting for commit, %s", from), parts)

	select {
	case doc := <-c.commitCh:
		return doc, nil
	case <-time.After(c.timeout):
		c.l.Lock()
		c.pending = nil
		c.l.Unlock()
		return nil, common.Errorf(common.NetworkTimeout, "genesis.await",
			"no commit within %s", c.timeout)
	case <-c.shutdownCh:
		return nil, fmt.Errorf("coordinator shut down")
	}
}

// HandleProposal processes a proposal received from the wire. A nil return
// means this node accepts.
func (c *Coordinator) HandleProposal(proposal *Proposal) error {
	if err := proposal.Validate(c.params.NetworkID); err != nil {
		return err
	}

	doc := proposal.Document

	c.l.Lock()
	defer c.l.Unlock()

	if c.committed != nil {
		if c.committed.Block.Hash == doc.Block.Hash {
			return nil
		}
		return common.Errorf(common.GenesisConflict, "genesis.HandleProposal",
			"already committed %s, got %s",
			shortHash(c.committed.Block.Hash), shortHash(doc.Block.Hash))
	}

	if c.pending != nil && c.pending.Block.Hash != doc.Block.Hash {
		return common.Errorf(common.GenesisConflict, "genesis.HandleProposal",
			"conflicting proposals %s and %s",
			shortHash(c.pending.Block.Hash), shortHash(doc.Block.Hash))
	}

	if c.proposing != nil && c.proposing.Block.Hash != doc.Block.Hash {
		return common.Errorf(common.GenesisConflict, "genesis.HandleProposal",
			"proposing %s, rejecting %s",
			shortHash(c.proposing.Block.Hash), shortHash(doc.Block.Hash))
	}

	if !contains(doc.Block.Participants, c.self.PubKeyString()) {
		return common.NewError(common.ValidationFailure, "genesis.HandleProposal",
			"own peer not in proposed participant set")
	}

	c.pending = doc

	c.setProgressLocked(PhaseConfirming, 75,
		fmt.Sprintf("accepted proposal %s", shortHash(doc.Block.Hash)),
		doc.Block.Participants)

	return nil
}

// HandleCommit processes a commit received from the wire. Committing an
// equivalent document twice is a no-op.
func (c *Coordinator) HandleCommit(doc *Document) error {
	ok, err := doc.Verify()
	if err != nil {
		return err
	}
	if !ok {
		return common.NewError(common.ValidationFailure, "genesis.HandleCommit", "document hash mismatch")
	}

	c.l.Lock()

	if c.committed != nil {
		same := c.committed.Block.Hash == doc.Block.Hash
		c.l.Unlock()
		if same {
			return nil
		}
		return common.Errorf(common.GenesisConflict, "genesis.HandleCommit",
			"already committed a different genesis")
	}

	c.l.Unlock()

	c.commit(doc)

	return nil
}

// Committed returns the committed document, or nil.
func (c *Coordinator) Committed() *Document {
	c.l.Lock()
	defer c.l.Unlock()

	return c.committed
}

// CurrentProgress returns a copy of the latest progress report.
func (c *Coordinator) CurrentProgress() Progress {
	c.l.Lock()
	defer c.l.Unlock()

	return c.progress
}

// Shutdown aborts a pending await.
func (c *Coordinator) Shutdown() {
	c.l.Lock()
	defer c.l.Unlock()

	select {
	case <-c.shutdownCh:
	default:
		close(c.shutdownCh)
	}
}

// commit records the document, reports completion, and hands the document to
// the bootstrap controller. The callback runs without the coordinator lock.
func (c *Coordinator) commit(doc *Document) {
	c.l.Lock()

	if c.committed != nil {
		c.l.Unlock()
		return
	}

	c.committed = doc
	c.pending = nil

	c.setProgressLocked(PhaseDone, 100,
		fmt.Sprintf("genesis %s created", shortHash(doc.Block.Hash)),
		doc.Block.Participants)

	c.l.Unlock()

	select {
	case c.commitCh <- doc:
	default:
	}

	if c.onCreated != nil {
		c.onCreated(doc)
	}
}

func (c *Coordinator) setProgress(phase string, percentage int, message string, parts []string) {
	c.l.Lock()
	defer c.l.Unlock()

	c.setProgressLocked(phase, percentage, message, parts)
}

// setProgressLocked updates and publishes progress. Callers hold the lock.
func (c *Coordinator) setProgressLocked(phase string, percentage int, message string, parts []string) {
	c.progress = Progress{
		Phase:        phase,
		Percentage:   percentage,
		Message:      message,
		Participants: parts,
	}

	if c.logger != nil {
		c.logger.WithFields(logrus.Fields{
			"phase":      phase,
			"percentage": percentage,
		}).Debug(message)
	}

	if c.bus != nil {
		c.bus.PublishGenesisProgress(bus.GenesisProgress{
			Phase:        phase,
			Percentage:   percentage,
			Message:      message,
			Participants: parts,
		})
	}
}

func participantKeys(participants *peers.PeerSet) []string {
	res := []string{}
	for _, p := range participants.SortedByID() {
		res = append(res, p.PubKeyString())
	}
	return res
}

func contains(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}

func shortHash(hash string) string {
	if len(hash) <= 8 {
		return hash
	}
	return hash[:8]
}
