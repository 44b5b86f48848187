package net

import (
	"testing"

	"github.com/playergold/goldnode/src/common"
	"github.com/sirupsen/logrus"
)

func TestTCPTransport_BadAddr(t *testing.T) {
	_, err := NewTCPTransport("0.0.0.0:0", "", 1, 0, 0,
		common.NewTestEntry(t, "net", logrus.DebugLevel))
	if err != errNotAdvertisable {
		t.Fatalf("err: %v", err)
	}
}

func TestTCPTransport_WithAdvertise(t *testing.T) {
	trans, err := NewTCPTransport("0.0.0.0:0", "127.0.0.1:12345", 1, 0, 0,
		common.NewTestEntry(t, "net", logrus.DebugLevel))
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	defer trans.Close()

	if trans.AdvertiseAddr() != "127.0.0.1:12345" {
		t.Fatalf("bad: %v", trans.AdvertiseAddr())
	}
}
