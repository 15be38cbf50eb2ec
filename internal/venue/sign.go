package venue

import (
	"crypto/ecdsa"
	"encoding/binary"
	"encoding/hex"
	"strings"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/yanun0323/errors"
)

type rsvSignature struct {
	R string `json:"r"`
	S string `json:"s"`
	V uint8  `json:"v"`
}

// ParseKey decodes a hex-encoded secp256k1 private key, with or without a
// 0x prefix.
func ParseKey(hexKey string) (*ecdsa.PrivateKey, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(hexKey, "0x"))
	if err != nil {
		return nil, errors.Wrap(err, "parse private key")
	}
	return key, nil
}

// signAction signs keccak256(payload || nonce) and returns the signature in
// the r/s/v form the venue expects.
func signAction(key *ecdsa.PrivateKey, payload []byte, nonce int64) (rsvSignature, error) {
	var nonceBytes [8]byte
	binary.BigEndian.PutUint64(nonceBytes[:], uint64(nonce))

	digest := crypto.Keccak256(payload, nonceBytes[:])
	sig, err := crypto.Sign(digest, key)
	if err != nil {
		return rsvSignature{}, errors.Wrap(err, "sign action digest")
	}

	return rsvSignature{
		R: "0x" + hex.EncodeToString(sig[:32]),
		S: "0x" + hex.EncodeToString(sig[32:64]),
		V: sig[64] + 27,
	}, nil
}
