// Package service exposes the node's bootstrap and wallet state over HTTP.
package service

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/playergold/goldnode/src/boot"
	"github.com/playergold/goldnode/src/common"
	"github.com/playergold/goldnode/src/discovery"
	"github.com/playergold/goldnode/src/genesis"
	"github.com/playergold/goldnode/src/netstate"
	"github.com/playergold/goldnode/src/peers"
	"github.com/playergold/goldnode/src/store"
	"github.com/playergold/goldnode/src/wallet"
	"github.com/sirupsen/logrus"
)

// Status is the response of the /status endpoint. It bundles everything a
// wallet UI polls at once.
type Status struct {
	Mode               string             `json:"mode"`
	Ready              bool               `json:"ready"`
	NetworkState       string             `json:"networkState"`
	NetworkID          string             `json:"networkId"`
	Record             store.Record       `json:"record"`
	Genesis            genesis.Record     `json:"genesis"`
	DiscoveryProgress  discovery.Progress `json:"discoveryProgress"`
	GenesisProgress    genesis.Progress   `json:"genesisProgress"`
	RestrictedFeatures []string           `json:"restrictedFeatures"`
}

// NetworkInfo is the response of the /network endpoint. It is only available
// once the network is active.
type NetworkInfo struct {
	State     string                `json:"state"`
	NetworkID string                `json:"networkId"`
	Config    genesis.NetworkConfig `json:"config"`
	Peers     []*peers.Peer         `json:"peers"`
}

// ErrorPayload is the JSON form of a typed error.
type ErrorPayload struct {
	Kind  string `json:"kind"`
	Op    string `json:"op"`
	Error string `json:"error"`
}

// Service ...
type Service struct {
	sync.Mutex

	bindAddress string
	controller  *boot.Controller
	wallet      *wallet.Cache
	netstate    *netstate.Manager
	logger      *logrus.Entry
}

// NewService ...
func NewService(
	bindAddress string,
	controller *boot.Controller,
	walletCache *wallet.Cache,
	nsm *netstate.Manager,
	logger *logrus.Entry) *Service {

	service := Service{
		bindAddress: bindAddress,
		controller:  controller,
		wallet:      walletCache,
		netstate:    nsm,
		logger:      logger,
	}

	service.registerHandlers()

	return &service
}

// registerHandlers registers the API handlers with the DefaultServerMux of the
// http package. It is possible that another server in the same process is
// simultaneously using the DefaultServerMux. In which case, the handlers will
// be accessible from both servers. This is usefull when goldnode is used
// in-memory and expecpted to use the same endpoint (address:port) as the
// application's API.
func (s *Service) registerHandlers() {
	s.logger.Debug("Registering goldnode API handlers")
	http.HandleFunc("/status", s.makeHandler(s.GetStatus))
	http.HandleFunc("/peers", s.makeHandler(s.GetPeers))
	http.HandleFunc("/genesis", s.makeHandler(s.GetGenesis))
	http.HandleFunc("/network", s.makeHandler(s.GetNetwork))
	http.HandleFunc("/wallet/", s.makeHandler(s.GetWallet))
}

func (s *Service) makeHandler(fn func(http.ResponseWriter, *http.Request)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.Lock()
		defer s.Unlock()

		// enable CORS
		w.Header().Set("Access-Control-Allow-Origin", "*")

		fn(w, r)
	}
}

// Serve calls ListenAndServe. This is a blocking call. It is not necessary to
// call Serve when goldnode is used in-memory and another server has already
// been started with the DefaultServerMux and the same address:port
// combination. Indeed, goldnode API handlers have already been registered when
// the service was instantiated.
func (s *Service) Serve() {
	if s.bindAddress == "" {
		s.logger.Debug("No service address; relying on the shared DefaultServerMux")
		return
	}

	s.logger.WithField("bind_address", s.bindAddress).Debug("Serving goldnode API")

	// Use the DefaultServerMux
	err := http.ListenAndServe(s.bindAddress, nil)
	if err != nil {
		s.logger.Error(err)
	}
}

// GetStatus ...
func (s *Service) GetStatus(w http.ResponseWriter, r *http.Request) {
	status := Status{
		Mode:               s.controller.Mode().String(),
		Ready:              s.controller.IsReady(),
		NetworkState:       s.netstate.State().String(),
		NetworkID:          s.controller.NetworkID(),
		Record:             s.controller.BootstrapRecord(),
		Genesis:            s.controller.GenesisRecord(),
		DiscoveryProgress:  s.controller.DiscoveryProgress(),
		GenesisProgress:    s.controller.NegotiationProgress(),
		RestrictedFeatures: s.controller.RestrictedFeatures(),
	}

	w.Header().Set("Content-Type", "application/json")

	json.NewEncoder(w).Encode(status)
}

// GetPeers ...
func (s *Service) GetPeers(w http.ResponseWriter, r *http.Request) {
	returnPeerSet(w, r, s.controller.KnownPeers().Peers)
}

// GetGenesis returns the full genesis document. It answers 412 until a
// genesis block exists.
func (s *Service) GetGenesis(w http.ResponseWriter, r *http.Request) {
	doc := s.controller.GenesisDocument()

	if doc == nil {
		returnError(w, http.StatusPreconditionFailed, common.NewError(
			common.PreconditionFailed,
			"service.genesis",
			"no genesis block exists yet"))

		return
	}

	w.Header().Set("Content-Type", "application/json")

	json.NewEncoder(w).Encode(doc)
}

// GetNetwork returns the formed network's configuration and members. It
// answers 412 while the network-state allow-list denies network operations.
func (s *Service) GetNetwork(w http.ResponseWriter, r *http.Request) {
	if !s.checkAllowed(w, "service.network", netstate.ConsensusParticipation) {
		return
	}

	doc := s.controller.GenesisDocument()

	if doc == nil {
		returnError(w, http.StatusPreconditionFailed, common.NewError(
			common.PreconditionFailed,
			"service.network",
			"no genesis block exists yet"))

		return
	}

	info := NetworkInfo{
		State:     s.netstate.State().String(),
		NetworkID: doc.NetworkConfig.NetworkID,
		Config:    doc.NetworkConfig,
		Peers:     s.controller.KnownPeers().Peers,
	}

	w.Header().Set("Content-Type", "application/json")

	json.NewEncoder(w).Encode(info)
}

// GetWallet returns the display state of the wallet identified by the path
// parameter.
func (s *Service) GetWallet(w http.ResponseWriter, r *http.Request) {
	walletID := r.URL.Path[len("/wallet/"):]

	if walletID == "" {
		returnError(w, http.StatusBadRequest, common.NewError(
			common.InvalidArgument,
			"service.wallet",
			"missing wallet id"))

		return
	}

	state := s.wallet.Get(walletID)

	w.Header().Set("Content-Type", "application/json")

	json.NewEncoder(w).Encode(state)
}

// checkAllowed answers 412 with a typed error payload when the network-state
// allow-list denies op. It reports whether the request may proceed.
func (s *Service) checkAllowed(w http.ResponseWriter, handlerOp string, op netstate.Operation) bool {
	if s.netstate.IsOperationAllowed(op) {
		return true
	}

	returnError(w, http.StatusPreconditionFailed, common.Errorf(
		common.PreconditionFailed,
		handlerOp,
		"%s denied in state %s", op, s.netstate.State()))

	return false
}

func returnPeerSet(w http.ResponseWriter, r *http.Request, peers []*peers.Peer) {
	w.Header().Set("Content-Type", "application/json")

	encoder := json.NewEncoder(w)

	encoder.Encode(peers)
}

func returnError(w http.ResponseWriter, status int, err common.Error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	json.NewEncoder(w).Encode(ErrorPayload{
		Kind:  err.Kind().String(),
		Op:    err.Op(),
		Error: err.Error(),
	})
}
