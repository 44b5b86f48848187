package boot

import (
	"crypto/ecdsa"
	"fmt"
	"sync"
	"time"

	"github.com/playergold/goldnode/src/bus"
	"github.com/playergold/goldnode/src/common"
	"github.com/playergold/goldnode/src/config"
	"github.com/playergold/goldnode/src/discovery"
	"github.com/playergold/goldnode/src/genesis"
	"github.com/playergold/goldnode/src/net"
	"github.com/playergold/goldnode/src/netstate"
	"github.com/playergold/goldnode/src/peers"
	"github.com/playergold/goldnode/src/store"
	"github.com/sirupsen/logrus"
)

// Controller is the bootstrap state machine. It is fed by the wallet (the
// address and resource registrations), drives peer discovery and genesis
// negotiation, serves the bootstrap protocol to other nodes, and reports
// every transition to the network state manager and the bus.
//
// The mode only ever advances: pioneer, discovery, genesis, network.
// Network is terminal.
type Controller struct {
	state

	coreLock sync.Mutex

	conf    *config.Config
	network config.Network

	self *peers.Peer
	key  *ecdsa.PrivateKey

	record  *store.Record
	genesis *genesis.Document

	store store.Store
	trans net.Transport
	netCh <-chan net.RPC

	discovery   *discovery.Discovery
	coordinator *genesis.Coordinator
	netstate    *netstate.Manager

	jsonPeers        *peers.JSONPeerSet
	jsonGenesisPeers *peers.JSONPeerSet

	controlTimer *common.ControlTimer

	shutdownCh   chan struct{}
	shutdownOnce sync.Once

	bus    *bus.Bus
	logger *logrus.Entry
}

// NewController instantiates a Controller along with its discovery scanner
// and genesis coordinator. Call Init before Run.
func NewController(
	conf *config.Config,
	self *peers.Peer,
	key *ecdsa.PrivateKey,
	st store.Store,
	trans net.Transport,
	nsm *netstate.Manager,
	b *bus.Bus,
) (*Controller, error) {

	network, err := conf.NetworkProfile()
	if err != nil {
		return nil, err
	}

	logger := conf.Logger().WithField("this_id", self.ID())

	c := &Controller{
		conf:             conf,
		network:          network,
		self:             self,
		key:              key,
		store:            st,
		trans:            trans,
		netCh:            trans.Consumer(),
		netstate:         nsm,
		jsonPeers:        peers.NewJSONPeerSet(conf.DataDir, true),
		jsonGenesisPeers: peers.NewJSONPeerSet(conf.DataDir, false),
		controlTimer:     common.NewFixedControlTimer(),
		shutdownCh:       make(chan struct{}),
		bus:              b,
		logger:           logger,
	}

	ranges := append([]string{}, conf.Seeds...)
	ranges = append(ranges, conf.ScanRanges...)

	c.discovery, err = discovery.NewDiscovery(
		&discovery.Config{
			NetworkID:    network.ID,
			Ranges:       ranges,
			ScanTimeout:  conf.ScanTimeout,
			PassInterval: conf.ScanInterval,
			MaxPeers:     conf.MaxPeers,
		},
		self,
		trans,
		b,
		logger,
	)
	if err != nil {
		return nil, err
	}

	c.coordinator = genesis.NewCoordinator(
		self,
		key,
		genesis.BuildParams{
			NetworkID:   network.ID,
			NetworkName: network.Name,
			P2PPort:     network.P2PPort,
			APIPort:     network.APIPort,
		},
		&transportMessenger{c},
		conf.NegotiationTimeout,
		func(doc *genesis.Document) {
			if err := c.OnGenesisCreated(doc); err != nil {
				c.logger.WithError(err).Error("Applying committed genesis")
			}
		},
		b,
		logger,
	)

	return c, nil
}

// Init loads or creates the bootstrap record. A store that already contains
// a record makes the controller resume from the saved mode instead of
// starting a fresh formation round.
func (c *Controller) Init() error {
	c.coreLock.Lock()
	defer c.coreLock.Unlock()

	if c.store.NeedBootstrap() {
		if err := c.resume(); err != nil {
			return err
		}
	} else {
		now := time.Now().Unix()
		c.record = &store.Record{
			Mode:      Pioneer.String(),
			NetworkID: c.network.ID,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := c.store.SetRecord(c.record); err != nil {
			return err
		}
	}

	c.netstate.Attach(c.getMode().String())
	if c.genesis != nil {
		c.netstate.SetGenesisExists(true)
	}

	c.logger.WithFields(logrus.Fields{
		"mode":       c.getMode().String(),
		"network_id": c.network.ID,
		"moniker":    c.self.Moniker,
		"addr":       c.trans.AdvertiseAddr(),
	}).Debug("Init")

	return nil
}

// resume restores saved state. Callers hold coreLock.
func (c *Controller) resume() error {
	record, err := c.store.GetRecord()
	if err != nil {
		if !common.Is(err, common.KeyNotFound) {
			return err
		}
		now := time.Now().Unix()
		record = &store.Record{
			Mode:      Pioneer.String(),
			NetworkID: c.network.ID,
			CreatedAt: now,
			UpdatedAt: now,
		}
	}

	if record.NetworkID != "" && record.NetworkID != c.network.ID {
		return common.Errorf(common.ValidationFailure, "boot.Init",
			"store belongs to network %s, configured for %s", record.NetworkID, c.network.ID)
	}

	c.record = record

	mode, err := ParseMode(record.Mode)
	if err != nil {
		c.logger.WithError(err).Warn("Saved mode unreadable, starting as pioneer")
		mode = Pioneer
	}
	c.setModeRaw(mode)

	if record.MiningReady {
		c.self.Ready = true
	}

	if doc, err := c.store.GetGenesis(); err == nil {
		c.genesis = doc
	} else if !common.Is(err, common.KeyNotFound) {
		return err
	}

	if saved, err := c.store.GetPeerSet(); err == nil {
		for _, p := range saved.Peers {
			c.discovery.RegisterProbe(&net.ProbeRequest{
				FromID:      p.ID(),
				FromPubKey:  p.PubKeyHex,
				FromAddr:    p.NetAddr,
				FromMoniker: p.Moniker,
				NetworkID:   c.network.ID,
			})
		}
	} else if !common.Is(err, common.KeyNotFound) {
		return err
	}

	c.logger.WithField("mode", mode.String()).Debug("Resuming from saved record")

	return nil
}

// Run invokes the main loop of the controller. It returns on Shutdown.
func (c *Controller) Run() {
	go c.controlTimer.Run(c.conf.ScanInterval)

	go c.doBackgroundWork()

	for {
		mode := c.getMode()

		c.logger.WithField("mode", mode.String()).Debug("Run loop")

		switch mode {
		case Pioneer:
			c.pioneer()
		case Discovery:
			c.discover()
		case Genesis:
			c.negotiate()
		case Network:
			c.networked()
		}

		select {
		case <-c.shutdownCh:
			return
		default:
		}
	}
}

// resetTimer re-arms the control timer for the next pass. The send selects
// on shutdown so a tick raced by Shutdown cannot strand the run loop.
func (c *Controller) resetTimer() {
	select {
	case c.controlTimer.ResetCh <- c.conf.ScanInterval:
	case <-c.shutdownCh:
	}
}

// doBackgroundWork serves inbound bootstrap RPCs regardless of the mode.
// Even a pioneer answers probes, which is what lets two pioneers find each
// other.
func (c *Controller) doBackgroundWork() {
	for {
		select {
		case rpc := <-c.netCh:
			c.goFunc(func() {
				c.processRPC(rpc)
			})
		case <-c.shutdownCh:
			return
		}
	}
}

// pioneer is the initial mode: wait for the wallet to register an address
// and a resource and call StartPeerDiscovery.
func (c *Controller) pioneer() {
	c.logger.Debug("PIONEER")

	for c.getMode() == Pioneer {
		select {
		case <-c.controlTimer.TickCh:
			c.resetTimer()
		case <-c.shutdownCh:
			return
		}
	}
}

// discover runs the scanner and watches the registry until enough ready
// peers are found to start negotiating.
func (c *Controller) discover() {
	c.logger.Debug("DISCOVERY")

	c.goFunc(c.runScanner)

	for c.getMode() == Discovery {
		select {
		case <-c.controlTimer.TickCh:
			c.checkQuorum()
			c.resetTimer()
		case <-c.shutdownCh:
			return
		}
	}
}

// runScanner drives discovery Start runs, restarting on scan timeouts until
// the retry budget is exhausted. Found peers survive across runs. The
// scanner keeps going through the genesis mode so that a retried
// negotiation sees a refreshed registry.
func (c *Controller) runScanner() {
	retries := c.conf.RetryBudget

	for {
		err := c.discovery.Start()
		if err == nil {
			// stopped on purpose
			return
		}

		c.publishError(err)

		if !common.Recoverable(err) {
			return
		}

		retries--
		if retries < 0 {
			c.logger.Warn("Discovery retry budget exhausted")
			return
		}

		select {
		case <-c.shutdownCh:
			return
		default:
		}

		if c.getMode() > Genesis {
			return
		}

		c.logger.WithField("retries_left", retries).Debug("Restarting peer scan")
	}
}

// checkQuorum moves to the genesis mode once the ready peers, this node
// included, reach the quorum.
func (c *Controller) checkQuorum() {
	if c.getMode() != Discovery {
		return
	}

	ready := c.readyParticipants()
	quorum := ready.Quorum(c.conf.QuorumFloor)

	if ready.Len() >= quorum {
		c.logger.WithFields(logrus.Fields{
			"ready":  ready.Len(),
			"quorum": quorum,
		}).Info("Quorum reached")

		c.setMode(Genesis)
	}
}

// negotiate runs genesis negotiation rounds until a document is committed,
// the retry budget is exhausted, or a conflict needs the operator. The mode
// never regresses; an aborted negotiation waits for an external commit.
func (c *Controller) negotiate() {
	c.logger.Debug("GENESIS")

	retries := c.conf.RetryBudget
	auto := true

	for c.getMode() == Genesis {
		if auto {
			ready := c.readyParticipants()
			quorum := ready.Quorum(c.conf.QuorumFloor)

			// Entering this mode through an accepted proposal does not
			// guarantee that our own registry confirms the quorum. Below it,
			// wait for the proposer's commit instead of negotiating, which
			// is what keeps a node from ever forming a network alone.
			if ready.Len() >= quorum {
				_, err := c.coordinator.Negotiate(ready)
				if err == nil {
					// the commit already went through OnGenesisCreated
					return
				}

				c.publishError(err)

				if common.Recoverable(err) && retries > 0 {
					retries--
					c.logger.WithField("retries_left", retries).Debug("Retrying genesis negotiation")
					continue
				}

				if common.Recoverable(err) {
					c.logger.Warn("Genesis retry budget exhausted")
				}

				// a conflict or an exhausted budget needs an inbound commit
				// or the operator to resolve the round
				auto = false
			}
		}

		select {
		case <-c.controlTimer.TickCh:
			c.resetTimer()
		case <-c.shutdownCh:
			return
		}
	}
}

// networked is the terminal mode.
func (c *Controller) networked() {
	c.logger.Debug("NETWORK")

	c.discovery.Stop()

	<-c.shutdownCh
}

// Shutdown stops the controller, its scanner, its coordinator, and finally
// the transport and the store.
func (c *Controller) Shutdown() {
	c.shutdownOnce.Do(func() {
		c.logger.Debug("Shutdown")

		close(c.shutdownCh)

		c.discovery.Shutdown()
		c.coordinator.Shutdown()

		c.waitRoutines()

		c.controlTimer.Shutdown()

		// transport and store are only closed once concurrent operations
		// are finished otherwise they panic trying to use closed objects
		c.trans.Close()
		c.store.Close()
	})
}

/*******************************************************************************
Public API
*******************************************************************************/

// OnWalletAddressCreated records the wallet address produced by the wallet
// key component. Recording the same address twice is a no-op; recording a
// different one is rejected, the address is immutable.
func (c *Controller) OnWalletAddressCreated(address string) error {
	op := "boot.OnWalletAddressCreated"

	if err := ValidateAddress(address); err != nil {
		return err
	}

	c.coreLock.Lock()
	defer c.coreLock.Unlock()

	if c.record.WalletAddress == address {
		return nil
	}

	if c.record.WalletAddress != "" {
		return common.Errorf(common.InvalidArgument, op,
			"wallet address already recorded")
	}

	c.record.WalletAddress = address
	c.refreshReadyLocked()

	if err := c.persistRecordLocked(); err != nil {
		return err
	}

	c.logger.WithField("address", address).Info("Wallet address recorded")

	return nil
}

// OnMiningReadiness records the selected resource model. The node becomes
// ready once both an address and a resource are recorded.
func (c *Controller) OnMiningReadiness(resourceID string) error {
	op := "boot.OnMiningReadiness"

	if resourceID == "" {
		return common.NewError(common.InvalidArgument, op, "empty resource id")
	}

	c.coreLock.Lock()
	defer c.coreLock.Unlock()

	c.record.Resource = resourceID
	c.refreshReadyLocked()

	if err := c.persistRecordLocked(); err != nil {
		return err
	}

	c.logger.WithFields(logrus.Fields{
		"resource": resourceID,
		"ready":    c.record.MiningReady,
	}).Info("Resource recorded")

	return nil
}

// StartPeerDiscovery moves the controller into the discovery mode. It
// requires a recorded address and resource. Calling it when discovery or a
// later mode was already reached is a no-op.
func (c *Controller) StartPeerDiscovery() error {
	op := "boot.StartPeerDiscovery"

	c.coreLock.Lock()

	if !c.record.MiningReady {
		c.coreLock.Unlock()
		return common.NewError(common.PreconditionFailed, op,
			"wallet address and resource registration required")
	}

	if c.getMode() >= Discovery {
		c.coreLock.Unlock()
		return nil
	}

	c.self.Ready = true

	c.coreLock.Unlock()

	c.setMode(Discovery)

	return nil
}

// OnGenesisCreated records a committed genesis document and moves to the
// network mode, from any prior mode. Applying an equivalent document twice
// is a no-op and does not re-fire any notification.
func (c *Controller) OnGenesisCreated(doc *genesis.Document) error {
	op := "boot.OnGenesisCreated"

	if doc == nil {
		return common.NewError(common.InvalidArgument, op, "missing document")
	}

	ok, err := doc.Verify()
	if err != nil {
		return err
	}
	if !ok {
		return common.NewError(common.ValidationFailure, op, "document hash mismatch")
	}

	if doc.NetworkConfig.NetworkID != c.network.ID {
		return common.Errorf(common.ValidationFailure, op,
			"document for network %s, configured for %s",
			doc.NetworkConfig.NetworkID, c.network.ID)
	}

	c.coreLock.Lock()

	if c.genesis != nil {
		same := c.genesis.Block.Hash == doc.Block.Hash
		c.coreLock.Unlock()
		if same {
			return nil
		}
		return common.NewError(common.GenesisConflict, op,
			"a different genesis document is already recorded")
	}

	c.genesis = doc

	if err := c.store.SetGenesis(doc); err != nil {
		c.logger.WithError(err).Error("Persisting genesis document")
	}

	c.coreLock.Unlock()

	c.persistPeers(doc)

	c.setMode(Network)

	c.netstate.SetGenesisExists(true)

	if c.bus != nil {
		c.bus.PublishGenesisCreated(doc.Block.Hash, doc.NetworkConfig.NetworkID)
		c.bus.PublishSuccess(fmt.Sprintf("Network %s formed with %d founding nodes",
			doc.NetworkConfig.NetworkName, len(doc.Block.Participants)))
	}

	c.logger.WithFields(logrus.Fields{
		"hash":         doc.Block.Hash,
		"participants": len(doc.Block.Participants),
	}).Info("Genesis recorded")

	return nil
}

// IsFeatureAvailable answers whether a wallet feature is available in the
// current mode. It is a pure function of the mode.
func (c *Controller) IsFeatureAvailable(feature string) bool {
	return featureAvailable(c.getMode(), feature)
}

// RestrictedFeatures returns the features denied in the current mode.
func (c *Controller) RestrictedFeatures() []string {
	return restrictedFeatures(c.getMode())
}

// Mode returns the current bootstrap mode.
func (c *Controller) Mode() Mode {
	return c.getMode()
}

// IsReady reports whether both the wallet address and the resource are
// recorded.
func (c *Controller) IsReady() bool {
	c.coreLock.Lock()
	defer c.coreLock.Unlock()

	return c.record.MiningReady
}

// BootstrapRecord returns a copy of the current bootstrap record.
func (c *Controller) BootstrapRecord() store.Record {
	c.coreLock.Lock()
	defer c.coreLock.Unlock()

	return *c.record
}

// GenesisRecord returns the derived view of the recorded genesis document.
func (c *Controller) GenesisRecord() genesis.Record {
	c.coreLock.Lock()
	defer c.coreLock.Unlock()

	if c.genesis == nil {
		return genesis.Record{}
	}
	return c.genesis.Record()
}

// GenesisDocument returns the recorded genesis document, or nil.
func (c *Controller) GenesisDocument() *genesis.Document {
	c.coreLock.Lock()
	defer c.coreLock.Unlock()

	return c.genesis
}

// KnownPeers returns the discovery registry.
func (c *Controller) KnownPeers() *peers.PeerSet {
	return c.discovery.FoundPeers()
}

// DiscoveryProgress returns the latest discovery progress report.
func (c *Controller) DiscoveryProgress() discovery.Progress {
	return c.discovery.CurrentProgress()
}

// NegotiationProgress returns the latest genesis negotiation progress.
func (c *Controller) NegotiationProgress() genesis.Progress {
	return c.coordinator.CurrentProgress()
}

// NetworkID returns the identifier of the configured network.
func (c *Controller) NetworkID() string {
	return c.network.ID
}

/*******************************************************************************
Internals
*******************************************************************************/

// setMode advances the bootstrap mode and reports the transition. Modes
// never regress; a backwards transition is dropped.
func (c *Controller) setMode(m Mode) {
	c.coreLock.Lock()

	previous := c.getMode()

	if m == previous {
		c.coreLock.Unlock()
		return
	}

	if m < previous {
		c.logger.WithFields(logrus.Fields{
			"current":   previous.String(),
			"requested": m.String(),
		}).Warn("Dropping backwards mode transition")
		c.coreLock.Unlock()
		return
	}

	c.setModeRaw(m)
	c.record.Mode = m.String()

	if err := c.persistRecordLocked(); err != nil {
		c.logger.WithError(err).Error("Persisting bootstrap record")
	}

	c.coreLock.Unlock()

	c.logger.WithFields(logrus.Fields{
		"old": previous.String(),
		"new": m.String(),
	}).Info("Mode changed")

	c.netstate.SetBootstrapMode(m.String())

	if c.bus != nil {
		c.bus.PublishModeChanged(m.String(), previous.String())
	}
}

// refreshReadyLocked recomputes the readiness flag. Callers hold coreLock.
func (c *Controller) refreshReadyLocked() {
	c.record.MiningReady = c.record.WalletAddress != "" && c.record.Resource != ""
}

// persistRecordLocked saves the bootstrap record. Callers hold coreLock.
func (c *Controller) persistRecordLocked() error {
	c.record.UpdatedAt = time.Now().Unix()
	return c.store.SetRecord(c.record)
}

// readyParticipants is the ready subset of the registry plus this node.
func (c *Controller) readyParticipants() *peers.PeerSet {
	self := peers.NewPeer(c.self.PubKeyHex, c.trans.AdvertiseAddr(), c.self.Moniker)
	self.Ready = true

	return c.discovery.ReadyPeers().WithNewPeer(self)
}

// persistPeers saves the registry and the genesis participant set, both in
// the store and as JSON peer files in the data dir.
func (c *Controller) persistPeers(doc *genesis.Document) {
	known := c.discovery.FoundPeers()

	if err := c.store.SetPeerSet(known); err != nil {
		c.logger.WithError(err).Error("Persisting peer set")
	}

	if c.conf.DataDir != "" {
		if err := c.jsonPeers.Write(known.Peers); err != nil {
			c.logger.WithError(err).Error("Writing peers.json")
		}

		founders := []*peers.Peer{}
		for _, pk := range doc.Block.Participants {
			if p, ok := known.ByPubKey[pk]; ok {
				founders = append(founders, p)
				continue
			}
			if pk == c.self.PubKeyString() {
				founders = append(founders, peers.NewPeer(c.self.PubKeyHex, c.trans.AdvertiseAddr(), c.self.Moniker))
				continue
			}
			founders = append(founders, peers.NewPeer(pk, "", ""))
		}
		if err := c.jsonGenesisPeers.Write(founders); err != nil {
			c.logger.WithError(err).Error("Writing peers.genesis.json")
		}
	}
}

// publishError logs an error and surfaces it on the bus.
func (c *Controller) publishError(err error) {
	c.logger.WithError(err).Error("Bootstrap error")

	if c.bus == nil {
		return
	}

	if e, ok := err.(common.Error); ok {
		c.bus.PublishError(e.Kind().String(), e.Op(), e.Error())
		return
	}

	c.bus.PublishError("unknown", "boot", err.Error())
}

/*******************************************************************************
RPC handling
*******************************************************************************/

func (c *Controller) processRPC(rpc net.RPC) {
	switch cmd := rpc.Command.(type) {
	case *net.ProbeRequest:
		c.processProbeRequest(rpc, cmd)
	case *net.GenesisProposalRequest:
		c.processGenesisProposalRequest(rpc, cmd)
	case *net.GenesisCommitRequest:
		c.processGenesisCommitRequest(rpc, cmd)
	default:
		c.logger.WithField("cmd", rpc.Command).Error("Unexpected RPC command")
		rpc.Respond(nil, fmt.Errorf("unexpected command"))
	}
}

// processProbeRequest answers a discovery probe with this node's identity
// and view of the forming group, and registers the prober in the registry.
// A node that already holds the genesis document pushes it to the prober,
// which is how a late joiner catches up.
func (c *Controller) processProbeRequest(rpc net.RPC, cmd *net.ProbeRequest) {
	c.logger.WithFields(logrus.Fields{
		"from":       cmd.FromMoniker,
		"network_id": cmd.NetworkID,
	}).Debug("Process ProbeRequest")

	c.discovery.RegisterProbe(cmd)

	genesisHash := ""
	var committed *genesis.Document

	c.coreLock.Lock()
	if c.genesis != nil {
		committed = c.genesis
		genesisHash = c.genesis.Block.Hash
	}
	ready := c.record.MiningReady
	c.coreLock.Unlock()

	resp := &net.ProbeResponse{
		FromID:      c.self.ID(),
		PubKey:      c.self.PubKeyHex,
		Moniker:     c.self.Moniker,
		NetworkID:   c.network.ID,
		Mode:        c.getMode().String(),
		Ready:       ready,
		GenesisHash: genesisHash,
		KnownPeers:  c.discovery.FoundPeers().Peers,
	}

	rpc.Respond(resp, nil)

	if committed != nil && cmd.NetworkID == c.network.ID && cmd.FromAddr != "" {
		c.goFunc(func() { c.pushGenesis(cmd.FromAddr, committed) })
	}
}

// pushGenesis delivers the committed genesis document to a peer that probed
// us after formation.
func (c *Controller) pushGenesis(target string, doc *genesis.Document) {
	args := &net.GenesisCommitRequest{
		FromID:   c.self.ID(),
		Document: doc,
	}

	var resp net.GenesisCommitResponse
	if err := c.trans.GenesisCommit(target, args, &resp); err != nil {
		c.logger.WithField("target", target).WithError(err).Debug("Genesis push failed")
	}
}

func (c *Controller) processGenesisProposalRequest(rpc net.RPC, cmd *net.GenesisProposalRequest) {
	c.logger.WithField("from", cmd.FromID).Debug("Process GenesisProposalRequest")

	resp := &net.GenesisProposalResponse{
		FromID: c.self.ID(),
	}

	if cmd.Proposal == nil || cmd.Proposal.Document == nil {
		resp.Message = "missing proposal"
		rpc.Respond(resp, nil)
		return
	}

	resp.HashHex = cmd.Proposal.Document.Block.Hash

	if err := c.coordinator.HandleProposal(cmd.Proposal); err != nil {
		c.publishError(err)
		resp.Message = err.Error()
		rpc.Respond(resp, nil)
		return
	}

	resp.Accepted = true
	rpc.Respond(resp, nil)

	// an accepted proposal implies the group reached quorum
	if c.getMode() == Discovery {
		c.setMode(Genesis)
	}
}

func (c *Controller) processGenesisCommitRequest(rpc net.RPC, cmd *net.GenesisCommitRequest) {
	c.logger.WithField("from", cmd.FromID).Debug("Process GenesisCommitRequest")

	resp := &net.GenesisCommitResponse{
		FromID: c.self.ID(),
	}

	if cmd.Document == nil {
		rpc.Respond(resp, nil)
		return
	}

	resp.GenesisHash = cmd.Document.Block.Hash

	if err := c.coordinator.HandleCommit(cmd.Document); err != nil {
		c.publishError(err)
		rpc.Respond(resp, nil)
		return
	}

	resp.Success = true
	rpc.Respond(resp, nil)
}

/*******************************************************************************
Messenger
*******************************************************************************/

// transportMessenger sends negotiation messages through the node's
// transport. It implements genesis.Messenger.
type transportMessenger struct {
	c *Controller
}

func (t *transportMessenger) Propose(target *peers.Peer, proposal *genesis.Proposal) (bool, error) {
	args := &net.GenesisProposalRequest{
		FromID:   t.c.self.ID(),
		Proposal: proposal,
	}

	var resp net.GenesisProposalResponse
	if err := t.c.trans.GenesisProposal(target.NetAddr, args, &resp); err != nil {
		return false, err
	}

	if !resp.Accepted && resp.Message != "" {
		t.c.logger.WithFields(logrus.Fields{
			"peer":   target.NetAddr,
			"reason": resp.Message,
		}).Warn("Proposal rejected")
	}

	return resp.Accepted, nil
}

func (t *transportMessenger) Commit(target *peers.Peer, doc *genesis.Document) error {
	args := &net.GenesisCommitRequest{
		FromID:   t.c.self.ID(),
		Document: doc,
	}

	var resp net.GenesisCommitResponse
	if err := t.c.trans.GenesisCommit(target.NetAddr, args, &resp); err != nil {
		return err
	}

	if !resp.Success {
		return fmt.Errorf("commit refused by %s", target.NetAddr)
	}

	return nil
}
