package peers

import (
	"crypto/ecdsa"
	"fmt"
	"reflect"
	"testing"

	"github.com/playergold/goldnode/src/crypto/keys"
)

func TestJSONPeerSet(t *testing.T) {
	dir := t.TempDir()

	// Create the store
	store := NewJSONPeerSet(dir, true)

	// Try a read, should get nothing
	peerSet, err := store.PeerSet()
	if err == nil {
		t.Fatalf("store.PeerSet() should generate an error")
	}
	if peerSet != nil {
		t.Fatalf("peerSet: %v", peerSet)
	}

	privKeys := map[string]*ecdsa.PrivateKey{}
	peers := []*Peer{}
	for i := 0; i < 3; i++ {
		key, _ := keys.GenerateECDSAKey()
		peer := &Peer{
			NetAddr:   fmt.Sprintf("addr%d", i),
			PubKeyHex: keys.PublicKeyHex(&key.PublicKey),
			Moniker:   fmt.Sprintf("peer%d", i),
			Ready:     i%2 == 0,
		}
		peers = append(peers, peer)
		privKeys[peer.NetAddr] = key
	}

	newPeerSet := NewPeerSet(peers)
	newPeerSlice := newPeerSet.Peers

	if err := store.Write(newPeerSlice); err != nil {
		t.Fatalf("err: %v", err)
	}

	// Try a read, should find 3 peers
	peerSet, err = store.PeerSet()
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if peerSet.Len() != 3 {
		t.Fatalf("peers: %v", peers)
	}

	peerSlice := peerSet.Peers

	for i := 0; i < 3; i++ {
		if peerSlice[i].NetAddr != newPeerSlice[i].NetAddr {
			t.Fatalf("peers[%d] NetAddr should be %s, not %s", i,
				newPeerSlice[i].NetAddr, peerSlice[i].NetAddr)
		}
		if peerSlice[i].Moniker != newPeerSlice[i].Moniker {
			t.Fatalf("peers[%d] Moniker should be %s, not %s", i,
				newPeerSlice[i].Moniker, peerSlice[i].Moniker)
		}
		if peerSlice[i].Ready != newPeerSlice[i].Ready {
			t.Fatalf("peers[%d] Ready should be %v, not %v", i,
				newPeerSlice[i].Ready, peerSlice[i].Ready)
		}
		if peerSlice[i].PubKeyHex != newPeerSlice[i].PubKeyHex {
			t.Fatalf("peers[%d] PubKeyHex should be %s, not %s", i,
				newPeerSlice[i].PubKeyHex, peerSlice[i].PubKeyHex)
		}
		pubKeyBytes := peerSlice[i].PubKeyBytes()
		pubKey := keys.ToPublicKey(pubKeyBytes)
		if !reflect.DeepEqual(*pubKey, privKeys[peerSlice[i].NetAddr].PublicKey) {
			t.Fatalf("peers[%d] PublicKey not parsed correctly", i)
		}
	}
}
