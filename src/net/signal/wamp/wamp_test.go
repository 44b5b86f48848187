package wamp

import (
	"strings"
	"testing"
	"time"

	webrtc "github.com/pion/webrtc/v2"
	"github.com/playergold/goldnode/src/common"
	"github.com/sirupsen/logrus"
)

// connectTestClient retries until the server goroutine is accepting.
func connectTestClient(t *testing.T, url, realm, id string) *Client {
	t.Helper()

	logger := common.NewTestEntry(t, "wamp", logrus.DebugLevel)

	var cli *Client
	var err error
	for i := 0; i < 20; i++ {
		cli, err = NewClient(url, realm, id, "", false, time.Second, logger)
		if err == nil {
			return cli
		}
		time.Sleep(100 * time.Millisecond)
	}

	t.Fatal(err)
	return nil
}

func TestWamp(t *testing.T) {
	url := "127.0.0.1:18443"

	logger := common.NewTestEntry(t, "wamp", logrus.DebugLevel)

	server, err := NewServer(url, "office", "", "", logger)
	if err != nil {
		t.Fatal(err)
	}

	go server.Run()
	defer server.Shutdown()

	callee := connectTestClient(t, "ws://"+url, "office", "callee")
	defer callee.Close()

	if err := callee.Listen(); err != nil {
		t.Fatal(err)
	}

	caller := connectTestClient(t, "ws://"+url, "office", "caller")
	defer caller.Close()

	// We expect the call to reach the callee and to generate an
	// ErrProcessingOffer error because the SDP is empty. We are only trying
	// to test that the RPC call is relayed and that the handler on the
	// receiving end is called
	_, err = caller.Offer("callee", webrtc.SessionDescription{})
	if err == nil || !strings.Contains(err.Error(), ErrProcessingOffer) {
		t.Fatalf("expected ErrProcessingOffer, got %v", err)
	}
}
