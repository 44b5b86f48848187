package genesis

import (
	"crypto/ecdsa"

	"github.com/playergold/goldnode/src/common"
	"github.com/playergold/goldnode/src/crypto/keys"
)

// Proposal is a signed genesis document offered by the proposer to the other
// participants.
type Proposal struct {
	Document  *Document `json:"document"`
	Signature string    `json:"signature"`
}

// NewProposal signs the document hash with the proposer's key.
func NewProposal(doc *Document, key *ecdsa.PrivateKey) (*Proposal, error) {
	hash, err := doc.Hash()
	if err != nil {
		return nil, err
	}

	r, s, err := keys.Sign(key, hash)
	if err != nil {
		return nil, err
	}

	return &Proposal{
		Document:  doc,
		Signature: keys.EncodeSignature(r, s),
	}, nil
}

// Validate checks a received proposal: the document hash must match its
// content, the signature must verify against the proposer's public key, the
// proposer must be the lowest participant identifier, and the network id
// must match networkID. A failure returns a validation_failure error.
func (p *Proposal) Validate(networkID string) error {
	if p.Document == nil {
		return common.NewError(common.ValidationFailure, "Proposal.Validate", "missing document")
	}

	ok, err := p.Document.Verify()
	if err != nil {
		return err
	}
	if !ok {
		return common.NewError(common.ValidationFailure, "Proposal.Validate", "document hash mismatch")
	}

	if p.Document.NetworkConfig.NetworkID != networkID {
		return common.Errorf(common.ValidationFailure, "Proposal.Validate",
			"network id %s does not match %s", p.Document.NetworkConfig.NetworkID, networkID)
	}

	if len(p.Document.Block.Participants) == 0 {
		return common.NewError(common.ValidationFailure, "Proposal.Validate", "empty participant set")
	}

	createdBy := p.Document.Block.CreatedBy

	found := false
	for _, part := range p.Document.Block.Participants {
		if part == createdBy {
			found = true
			break
		}
	}
	if !found {
		return common.NewError(common.ValidationFailure, "Proposal.Validate", "proposer not in participant set")
	}

	// the proposer must hold the lowest identifier of the participant set
	proposerID := keys.PublicKeyID(pubKeyBytes(createdBy))
	for _, part := range p.Document.Block.Participants {
		if id := keys.PublicKeyID(pubKeyBytes(part)); id < proposerID {
			return common.Errorf(common.ValidationFailure, "Proposal.Validate",
				"proposer %d is not the lowest participant id (%d)", proposerID, id)
		}
	}

	pub := keys.ToPublicKey(pubKeyBytes(createdBy))
	if pub == nil || pub.X == nil {
		return common.NewError(common.ValidationFailure, "Proposal.Validate", "unparseable proposer key")
	}

	r, s, err := keys.DecodeSignature(p.Signature)
	if err != nil {
		return common.Errorf(common.ValidationFailure, "Proposal.Validate", "bad signature encoding: %v", err)
	}

	hash, err := p.Document.Hash()
	if err != nil {
		return err
	}

	if !keys.Verify(pub, hash, r, s) {
		return common.NewError(common.ValidationFailure, "Proposal.Validate", "signature does not verify")
	}

	return nil
}

func pubKeyBytes(pubKeyHex string) []byte {
	res, _ := common.DecodeFromString(pubKeyHex)
	return res
}
