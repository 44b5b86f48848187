package net

import (
	"reflect"
	"testing"
	"time"

	"github.com/playergold/goldnode/src/common"
	"github.com/playergold/goldnode/src/crypto/keys"
	"github.com/playergold/goldnode/src/genesis"
	"github.com/playergold/goldnode/src/peers"
	"github.com/sirupsen/logrus"
)

const (
	INMEM = iota
	TCP
	numTestTransports // NOTE: must be last
)

// The WebRTC transport is excluded from the matrix because its Dial requires
// a live ICE negotiation; the signaling path is covered by the signal
// packages' own tests.

func NewTestTransport(ttype int, addr string, t *testing.T) Transport {
	switch ttype {
	case INMEM:
		_, it := NewInmemTransport(addr)
		return it
	case TCP:
		tt, err := NewTCPTransport(addr, "", 2, time.Second, 2*time.Second,
			common.NewTestEntry(t, "net", logrus.DebugLevel))
		if err != nil {
			t.Fatal(err)
		}
		go tt.Listen()
		return tt
	default:
		panic("Unknown transport type")
	}
}

// connectTransports wires two inmem transports together; TCP transports find
// each other through their listen addresses.
func connectTransports(trans1, trans2 Transport) {
	it1, ok1 := trans1.(*InmemTransport)
	it2, ok2 := trans2.(*InmemTransport)
	if ok1 && ok2 {
		it1.Connect(it2.LocalAddr(), it2)
		it2.Connect(it1.LocalAddr(), it1)
	}
}

// testProposal builds a valid signed proposal for wire tests.
func testProposal(t *testing.T) *genesis.Proposal {
	t.Helper()

	key, err := keys.GenerateECDSAKey()
	if err != nil {
		t.Fatal(err)
	}

	self := peers.NewPeer(keys.PublicKeyHex(&key.PublicKey), "127.0.0.1:18333", "node0")
	ps := peers.NewPeerSet([]*peers.Peer{self})

	params := genesis.BuildParams{
		NetworkID:   "t1",
		NetworkName: "playergold-testnet",
		P2PPort:     18333,
		APIPort:     18080,
		CreatedBy:   self.PubKeyString(),
		Timestamp:   1700000000,
	}

	doc, err := genesis.Build(params, ps)
	if err != nil {
		t.Fatal(err)
	}

	proposal, err := genesis.NewProposal(doc, key)
	if err != nil {
		t.Fatal(err)
	}

	return proposal
}

func TestTransport_StartStop(t *testing.T) {
	for ttype := 0; ttype < numTestTransports; ttype++ {
		trans := NewTestTransport(ttype, "127.0.0.1:0", t)
		if err := trans.Close(); err != nil {
			t.Fatalf("err: %v", err)
		}
	}
}

func TestTransport_Probe(t *testing.T) {
	for ttype := 0; ttype < numTestTransports; ttype++ {
		trans1 := NewTestTransport(ttype, "127.0.0.1:0", t)
		defer trans1.Close()
		rpcCh := trans1.Consumer()

		// Make the RPC request
		args := ProbeRequest{
			FromID:      0,
			FromPubKey:  "0XABCDEF",
			FromAddr:    "127.0.0.1:18334",
			FromMoniker: "scanner",
			NetworkID:   "t1",
		}

		// KnownPeers must not have their lazy identifiers computed, so that
		// they compare equal to freshly decoded peers.
		resp := ProbeResponse{
			FromID:    1,
			PubKey:    "0X123456",
			Moniker:   "responder",
			NetworkID: "t1",
			Mode:      "discovery",
			Ready:     true,
			KnownPeers: []*peers.Peer{
				peers.NewPeer("0XAA", "127.0.0.1:18335", "third"),
			},
		}

		// Listen for a request
		go func() {
			select {
			case rpc := <-rpcCh:
				// Verify the command
				req := rpc.Command.(*ProbeRequest)
				if !reflect.DeepEqual(req, &args) {
					t.Errorf("command mismatch: %#v %#v", *req, args)
				}
				rpc.Respond(&resp, nil)

			case <-time.After(200 * time.Millisecond):
				t.Errorf("timeout")
			}
		}()

		// Transport 2 makes outbound request
		trans2 := NewTestTransport(ttype, "127.0.0.1:0", t)
		defer trans2.Close()

		connectTransports(trans1, trans2)

		var out ProbeResponse
		if err := trans2.Probe(trans1.LocalAddr(), &args, &out); err != nil {
			t.Fatalf("err: %v", err)
		}

		// Verify the response
		if !reflect.DeepEqual(resp, out) {
			t.Fatalf("response mismatch: %#v %#v", resp, out)
		}
	}
}

func TestTransport_GenesisProposal(t *testing.T) {
	proposal := testProposal(t)

	for ttype := 0; ttype < numTestTransports; ttype++ {
		trans1 := NewTestTransport(ttype, "127.0.0.1:0", t)
		defer trans1.Close()
		rpcCh := trans1.Consumer()

		args := GenesisProposalRequest{
			FromID:   0,
			Proposal: proposal,
		}

		resp := GenesisProposalResponse{
			FromID:   1,
			Accepted: true,
			HashHex:  proposal.Document.Block.Hash,
		}

		// Listen for a request
		go func() {
			select {
			case rpc := <-rpcCh:
				req := rpc.Command.(*GenesisProposalRequest)
				if !reflect.DeepEqual(req, &args) {
					t.Errorf("command mismatch: %#v %#v", *req, args)
				}

				// the document must survive the wire intact
				if err := req.Proposal.Validate("t1"); err != nil {
					t.Errorf("proposal invalid after transit: %v", err)
				}

				rpc.Respond(&resp, nil)

			case <-time.After(200 * time.Millisecond):
				t.Errorf("timeout")
			}
		}()

		trans2 := NewTestTransport(ttype, "127.0.0.1:0", t)
		defer trans2.Close()

		connectTransports(trans1, trans2)

		var out GenesisProposalResponse
		if err := trans2.GenesisProposal(trans1.LocalAddr(), &args, &out); err != nil {
			t.Fatalf("err: %v", err)
		}

		if !reflect.DeepEqual(resp, out) {
			t.Fatalf("response mismatch: %#v %#v", resp, out)
		}
	}
}

func TestTransport_GenesisCommit(t *testing.T) {
	proposal := testProposal(t)
	doc := proposal.Document

	for ttype := 0; ttype < numTestTransports; ttype++ {
		trans1 := NewTestTransport(ttype, "127.0.0.1:0", t)
		defer trans1.Close()
		rpcCh := trans1.Consumer()

		args := GenesisCommitRequest{
			FromID:   0,
			Document: doc,
		}

		resp := GenesisCommitResponse{
			FromID:      1,
			Success:     true,
			GenesisHash: doc.Block.Hash,
		}

		// Listen for a request
		go func() {
			select {
			case rpc := <-rpcCh:
				req := rpc.Command.(*GenesisCommitRequest)
				if !reflect.DeepEqual(req, &args) {
					t.Errorf("command mismatch: %#v %#v", *req, args)
				}

				if ok, _ := req.Document.Verify(); !ok {
					t.Errorf("document does not verify after transit")
				}

				rpc.Respond(&resp, nil)

			case <-time.After(200 * time.Millisecond):
				t.Errorf("timeout")
			}
		}()

		trans2 := NewTestTransport(ttype, "127.0.0.1:0", t)
		defer trans2.Close()

		connectTransports(trans1, trans2)

		var out GenesisCommitResponse
		if err := trans2.GenesisCommit(trans1.LocalAddr(), &args, &out); err != nil {
			t.Fatalf("err: %v", err)
		}

		if !reflect.DeepEqual(resp, out) {
			t.Fatalf("response mismatch: %#v %#v", resp, out)
		}
	}
}
