// Package file implements a Signal that exchanges SDP payloads through files
// in a shared directory. It is only used for testing, where it replaces the
// WAMP signaling server.
package file

import (
	"encoding/json"
	"fmt"
	"io/ioutil"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/playergold/goldnode/src/net/signal"
	webrtc "github.com/pion/webrtc/v2"
)

// Signal implements the signal.Signal interface by reading and writing files
// on disk. Filenames are of the form <offerer>_<answerer>_offer.sdp or
// <offerer>_<answerer>_answer.sdp. So if alice makes an offer to bob, she
// writes the offer in a file called alice_bob_offer.sdp and bob answers in
// alice_bob_answer.sdp.
type Signal struct {
	id       string
	consumer chan signal.OfferPromise
	dir      string
	stopCh   chan struct{}
}

// NewTestSignal instantiates a file-based Signal rooted at dir.
func NewTestSignal(id string, dir string) *Signal {
	return &Signal{
		id:       id,
		consumer: make(chan signal.OfferPromise),
		dir:      dir,
		stopCh:   make(chan struct{}),
	}
}

// ID implements the Signal interface.
func (fs *Signal) ID() string {
	return fs.id
}

// Listen implements the Signal interface. It scans the shared directory for
// offers addressed to this id and submits new ones to the consumer channel.
func (fs *Signal) Listen() error {

	// offers already processed
	processed := make(map[string]bool)

	for {
		select {
		case <-fs.stopCh:
			return nil
		default:
		}

		sdpDir, err := os.Open(fs.dir)
		if err != nil {
			return err
		}

		fileNames, err := sdpDir.Readdirnames(0)
		sdpDir.Close()
		if err != nil {
			return err
		}

		for _, fileName := range fileNames {
			s := strings.Split(fileName, "_")

			if len(s) != 3 ||
				s[1] != fs.id ||
				s[2] != "offer.sdp" {
				continue
			}

			if _, ok := processed[s[0]]; ok {
				continue
			}

			offer, err := readSDP(filepath.Join(fs.dir, fileName))
			if err != nil {
				return err
			}

			if offer != nil {
				respCh := make(chan signal.OfferPromiseResponse, 1)

				promise := signal.OfferPromise{
					From:     s[0],
					Offer:    *offer,
					RespChan: respCh,
				}

				fs.consumer <- promise

				resp := <-respCh
				if resp.Error == nil && resp.Answer != nil {
					answerFilename := fmt.Sprintf("%s_%s_answer.sdp", s[0], s[1])
					writeSDP(*resp.Answer, filepath.Join(fs.dir, answerFilename))
				}

				processed[s[0]] = true
			}
		}

		time.Sleep(100 * time.Millisecond)
	}
}

// Consumer implements the Signal interface.
func (fs *Signal) Consumer() <-chan signal.OfferPromise {
	return fs.consumer
}

// Offer implements the Signal interface.
func (fs *Signal) Offer(target string, offer webrtc.SessionDescription) (*webrtc.SessionDescription, error) {

	offerFilename := fmt.Sprintf("%s_%s_offer.sdp", fs.id, target)
	if err := writeSDP(offer, filepath.Join(fs.dir, offerFilename)); err != nil {
		return nil, err
	}

	answerFilename := fmt.Sprintf("%s_%s_answer.sdp", fs.id, target)
	answerFile := filepath.Join(fs.dir, answerFilename)

	timeout := time.After(5 * time.Second)
	for {
		select {
		case <-timeout:
			return nil, fmt.Errorf("timeout waiting for SDP answer")
		default:
			answer, err := readSDP(answerFile)
			if err != nil {
				return nil, err
			}

			if answer != nil {
				return answer, nil
			}

			time.Sleep(100 * time.Millisecond)
		}
	}
}

// Close implements the Signal interface.
func (fs *Signal) Close() error {
	select {
	case <-fs.stopCh:
	default:
		close(fs.stopCh)
	}
	return nil
}

func readSDP(file string) (*webrtc.SessionDescription, error) {
	if _, err := os.Stat(file); os.IsNotExist(err) {
		return nil, nil
	}

	fileContent, err := ioutil.ReadFile(file)
	if err != nil {
		return nil, err
	}

	res := webrtc.SessionDescription{}

	if err := json.Unmarshal(fileContent, &res); err != nil {
		return nil, err
	}

	return &res, nil
}

func writeSDP(sdp webrtc.SessionDescription, file string) error {
	raw, err := json.Marshal(sdp)
	if err != nil {
		return err
	}

	return ioutil.WriteFile(file, raw, 0644)
}
