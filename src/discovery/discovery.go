package discovery

import (
	"fmt"
	"sync"
	"time"

	"github.com/playergold/goldnode/src/bus"
	"github.com/playergold/goldnode/src/common"
	"github.com/playergold/goldnode/src/net"
	"github.com/playergold/goldnode/src/peers"
	"github.com/sirupsen/logrus"
)

// Progress describes how far the current scan pass has come.
type Progress struct {
	Percentage   int    `json:"percentage"`
	CurrentRange string `json:"currentRange"`
	PeersFound   int    `json:"peersFound"`
	StatusText   string `json:"statusText"`
}

// Config holds the discovery parameters.
type Config struct {
	// NetworkID identifies the network being formed. Peers answering for a
	// different network are discarded.
	NetworkID string

	// Ranges are the address ranges to scan, in ParseRange syntax.
	Ranges []string

	// ScanTimeout bounds a whole Start run. Zero means no timeout.
	ScanTimeout time.Duration

	// PassInterval is the pause between scan passes.
	PassInterval time.Duration

	// MaxPeers caps the registry. Once full, new peers are dropped; updates
	// to known peers still apply. Zero means no cap.
	MaxPeers int
}

type scanTarget struct {
	addr string
	rang string
}

// messageHistorySize bounds the progress message log.
const messageHistorySize = 50

// Discovery scans the configured ranges for peers and accumulates them in a
// registry keyed by peer ID. The registry survives across Start runs, so a
// restarted scan resumes instead of starting over.
type Discovery struct {
	coreLock sync.Mutex

	conf   *Config
	self   *peers.Peer
	selfID uint32
	ranges []*Range

	trans net.Transport

	found map[uint32]*peers.Peer
	order []uint32

	progress Progress
	history  *common.RollingList
	pass     int

	running     bool
	stopCh      chan struct{}
	shutdownCh  chan struct{}
	runDeadline time.Time

	bus    *bus.Bus
	logger *logrus.Entry
}

// NewDiscovery instantiates a Discovery from a Config, the local peer, and
// a Transport for issuing probes.
func NewDiscovery(conf *Config,
	self *peers.Peer,
	trans net.Transport,
	b *bus.Bus,
	logger *logrus.Entry) (*Discovery, error) {

	if conf == nil || conf.NetworkID == "" {
		return nil, common.NewError(common.InvalidArgument, "discovery.NewDiscovery", "missing network ID")
	}

	if self == nil {
		return nil, common.NewError(common.InvalidArgument, "discovery.NewDiscovery", "missing self peer")
	}

	ranges, err := ParseRanges(conf.Ranges)
	if err != nil {
		return nil, err
	}

	if conf.PassInterval == 0 {
		conf.PassInterval = 1 * time.Second
	}

	if logger == nil {
		log := logrus.New()
		log.Level = logrus.DebugLevel
		logger = logrus.NewEntry(log)
	}

	return &Discovery{
		conf:       conf,
		self:       self,
		selfID:     self.ID(),
		ranges:     ranges,
		trans:      trans,
		found:      make(map[uint32]*peers.Peer),
		progress:   Progress{StatusText: "idle"},
		history:    common.NewRollingList(messageHistorySize),
		shutdownCh: make(chan struct{}),
		bus:        b,
		logger:     logger,
	}, nil
}

// Start runs scan passes until the scan timeout expires, Stop is called, or
// the Discovery is shut down. It blocks for the duration of the run. On
// timeout it returns a NetworkTimeout error; peers found so far stay in the
// registry either way. Calling Start while a run is active is a no-op.
func (d *Discovery) Start() error {
	d.coreLock.Lock()
	if d.running {
		d.coreLock.Unlock()
		return nil
	}
	d.running = true
	d.stopCh = make(chan struct{})
	d.runDeadline = time.Time{}
	if d.conf.ScanTimeout > 0 {
		d.runDeadline = time.Now().Add(d.conf.ScanTimeout)
	}
	d.coreLock.Unlock()

	defer func() {
		d.coreLock.Lock()
		d.running = false
		d.coreLock.Unlock()
	}()

	d.logger.WithFields(logrus.Fields{
		"ranges":  len(d.ranges),
		"timeout": d.conf.ScanTimeout,
	}).Debug("Starting peer scan")

	timer := common.NewFixedControlTimer()
	go timer.Run(time.Millisecond)
	defer timer.Shutdown()

	var timeoutCh <-chan time.Time
	if d.conf.ScanTimeout > 0 {
		timeoutCh = time.After(d.conf.ScanTimeout)
	}

	for {
		select {
		case <-timer.TickCh:
			d.scanPass()
			timer.ResetCh <- d.conf.PassInterval
		case <-timeoutCh:
			found, ready := d.counts()
			d.setProgress(Progress{
				Percentage: 100,
				PeersFound: found,
				StatusText: fmt.Sprintf("discovery timeout: keeping %d found peers (%d ready)", found, ready),
			})
			return common.NewError(common.NetworkTimeout, "discovery.Start", "scan timeout reached")
		case <-d.stopCh:
			return nil
		case <-d.shutdownCh:
			return nil
		}
	}
}

// Stop ends the current Start run, if any. The registry is kept.
func (d *Discovery) Stop() {
	d.coreLock.Lock()
	defer d.coreLock.Unlock()

	if d.stopCh == nil {
		return
	}

	select {
	case <-d.stopCh:
	default:
		close(d.stopCh)
	}
}

// Shutdown ends the current run and prevents any further ones.
func (d *Discovery) Shutdown() {
	d.coreLock.Lock()
	defer d.coreLock.Unlock()

	select {
	case <-d.shutdownCh:
	default:
		d.logger.Debug("Discovery shutdown")
		close(d.shutdownCh)
	}
}

// Running reports whether a Start run is active.
func (d *Discovery) Running() bool {
	d.coreLock.Lock()
	defer d.coreLock.Unlock()
	return d.running
}

// CurrentProgress returns the latest progress report.
func (d *Discovery) CurrentProgress() Progress {
	d.coreLock.Lock()
	defer d.coreLock.Unlock()
	return d.progress
}

// MessageHistory returns the most recent progress messages along with the
// total number of messages ever reported.
func (d *Discovery) MessageHistory() ([]string, int) {
	d.coreLock.Lock()
	defer d.coreLock.Unlock()

	window, tot := d.history.Get()

	res := make([]string, len(window))
	copy(res, window)

	return res, tot
}

// FoundPeers returns a copy of the registry in discovery order.
func (d *Discovery) FoundPeers() *peers.PeerSet {
	d.coreLock.Lock()
	defer d.coreLock.Unlock()

	res := []*peers.Peer{}
	for _, id := range d.order {
		p := d.found[id]
		c := peers.NewPeer(p.PubKeyHex, p.NetAddr, p.Moniker)
		c.Ready = p.Ready
		res = append(res, c)
	}

	return peers.NewPeerSet(res)
}

// ReadyPeers returns the subset of the registry that passed the readiness
// handshake.
func (d *Discovery) ReadyPeers() *peers.PeerSet {
	return d.FoundPeers().Ready()
}

// RegisterProbe records the sender of an inbound probe. The prober tells us
// where it lives, which seeds the registry without waiting for our own
// scanner to reach it. Readiness is still only granted by a direct
// handshake, so a new entry starts not-ready and is probed on the next
// pass.
func (d *Discovery) RegisterProbe(args *net.ProbeRequest) {
	if args == nil || args.FromPubKey == "" || args.NetworkID != d.conf.NetworkID {
		return
	}

	p := peers.NewPeer(args.FromPubKey, args.FromAddr, args.FromMoniker)
	id := p.ID()

	d.coreLock.Lock()
	defer d.coreLock.Unlock()

	if id == d.selfID {
		return
	}

	if existing, ok := d.found[id]; ok {
		if args.FromAddr != "" {
			existing.NetAddr = args.FromAddr
		}
		if args.FromMoniker != "" {
			existing.Moniker = args.FromMoniker
		}
		return
	}

	if d.fullLocked() {
		return
	}

	d.found[id] = p
	d.order = append(d.order, id)

	d.logger.WithFields(logrus.Fields{
		"peer": p.Moniker,
		"addr": p.NetAddr,
	}).Debug("Recorded inbound prober")
}

func (d *Discovery) scanPass() {
	targets := d.passTargets()

	d.coreLock.Lock()
	d.pass++
	pass := d.pass
	d.coreLock.Unlock()

	total := len(targets)

	for i, target := range targets {
		select {
		case <-d.stopCh:
			return
		case <-d.shutdownCh:
			return
		default:
		}

		if !d.runDeadline.IsZero() && time.Now().After(d.runDeadline) {
			return
		}

		d.setProgress(Progress{
			Percentage:   pct(i, total),
			CurrentRange: target.rang,
			PeersFound:   d.foundCount(),
			StatusText:   fmt.Sprintf("scanning %s", target.rang),
		})

		d.probe(target)
	}

	found, ready := d.counts()
	d.setProgress(Progress{
		Percentage: 100,
		PeersFound: found,
		StatusText: fmt.Sprintf("pass %d complete: %d peers found (%d ready)", pass, found, ready),
	})
}

// passTargets lists the addresses to probe this pass: every address in the
// configured ranges, plus known peers that are not ready yet, wherever they
// came from.
func (d *Discovery) passTargets() []scanTarget {
	seen := map[string]bool{}
	targets := []scanTarget{}

	for _, r := range d.ranges {
		for _, host := range r.Hosts() {
			if host == d.self.NetAddr || seen[host] {
				continue
			}
			seen[host] = true
			targets = append(targets, scanTarget{addr: host, rang: r.String()})
		}
	}

	d.coreLock.Lock()
	defer d.coreLock.Unlock()

	for _, id := range d.order {
		p := d.found[id]
		if p.Ready || p.NetAddr == "" || p.NetAddr == d.self.NetAddr || seen[p.NetAddr] {
			continue
		}
		seen[p.NetAddr] = true
		targets = append(targets, scanTarget{addr: p.NetAddr, rang: "known peers"})
	}

	return targets
}

func (d *Discovery) probe(target scanTarget) {
	args := net.ProbeRequest{
		FromID:      d.selfID,
		FromPubKey:  d.self.PubKeyHex,
		FromAddr:    d.self.NetAddr,
		FromMoniker: d.self.Moniker,
		NetworkID:   d.conf.NetworkID,
		Ready:       d.self.Ready,
	}

	var resp net.ProbeResponse
	if err := d.trans.Probe(target.addr, &args, &resp); err != nil {
		d.logger.WithField("target", target.addr).WithError(err).Debug("No probe response")
		return
	}

	if resp.NetworkID != d.conf.NetworkID {
		d.logger.WithFields(logrus.Fields{
			"target":     target.addr,
			"network_id": resp.NetworkID,
		}).Warning("Discarding peer with mismatched network ID")
		if d.bus != nil {
			d.bus.PublishError(common.ValidationFailure.String(), "discovery.probe",
				fmt.Sprintf("peer %s answered for network %s", target.addr, resp.NetworkID))
		}
		return
	}

	if resp.FromID == d.selfID {
		return
	}

	d.register(target.addr, &resp)

	for _, kp := range resp.KnownPeers {
		d.registerGossip(kp)
	}
}

func (d *Discovery) register(addr string, resp *net.ProbeResponse) {
	d.coreLock.Lock()
	defer d.coreLock.Unlock()

	if p, ok := d.found[resp.FromID]; ok {
		wasReady := p.Ready
		p.Ready = resp.Ready
		p.NetAddr = addr
		if resp.Moniker != "" {
			p.Moniker = resp.Moniker
		}
		if !wasReady && p.Ready {
			d.logger.WithField("peer", p.Moniker).Debug("Peer became ready")
		}
		return
	}

	if d.fullLocked() {
		d.logger.WithFields(logrus.Fields{
			"peer": resp.Moniker,
			"max":  d.conf.MaxPeers,
		}).Warning("Dropping discovered peer, registry full")
		return
	}

	p := peers.NewPeer(resp.PubKey, addr, resp.Moniker)
	p.Ready = resp.Ready

	d.found[resp.FromID] = p
	d.order = append(d.order, resp.FromID)

	d.logger.WithFields(logrus.Fields{
		"peer":  p.Moniker,
		"addr":  addr,
		"ready": p.Ready,
	}).Info("Discovered peer")
}

// registerGossip records a peer learned from another peer's probe response.
func (d *Discovery) registerGossip(kp *peers.Peer) {
	if kp == nil || kp.PubKeyHex == "" {
		return
	}

	p := peers.NewPeer(kp.PubKeyHex, kp.NetAddr, kp.Moniker)
	id := p.ID()

	d.coreLock.Lock()
	defer d.coreLock.Unlock()

	if id == d.selfID {
		return
	}

	if _, ok := d.found[id]; ok {
		return
	}

	if d.fullLocked() {
		return
	}

	d.found[id] = p
	d.order = append(d.order, id)

	d.logger.WithFields(logrus.Fields{
		"peer": p.Moniker,
		"addr": p.NetAddr,
	}).Debug("Recorded gossiped peer")
}

func (d *Discovery) counts() (int, int) {
	d.coreLock.Lock()
	defer d.coreLock.Unlock()

	ready := 0
	for _, p := range d.found {
		if p.Ready {
			ready++
		}
	}

	return len(d.found), ready
}

func (d *Discovery) foundCount() int {
	d.coreLock.Lock()
	defer d.coreLock.Unlock()
	return len(d.found)
}

// fullLocked reports whether the registry reached the MaxPeers cap. The
// caller must hold coreLock.
func (d *Discovery) fullLocked() bool {
	return d.conf.MaxPeers > 0 && len(d.found) >= d.conf.MaxPeers
}

func (d *Discovery) setProgress(p Progress) {
	d.coreLock.Lock()
	d.progress = p
	d.history.Add(p.StatusText)
	d.coreLock.Unlock()

	d.logger.WithFields(logrus.Fields{
		"percentage": p.Percentage,
		"found":      p.PeersFound,
		"status":     p.StatusText,
	}).Debug("Discovery progress")

	if d.bus != nil {
		d.bus.PublishPeerDiscoveryStatus(bus.PeerDiscoveryStatus{
			Percentage:   p.Percentage,
			CurrentRange: p.CurrentRange,
			PeersFound:   p.PeersFound,
			StatusText:   p.StatusText,
		})
	}
}

func pct(done, total int) int {
	if total == 0 {
		return 100
	}

	p := done * 100 / total
	if p > 100 {
		p = 100
	}

	return p
}
