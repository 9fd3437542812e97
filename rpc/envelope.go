package rpc

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"rentchain/core"
	"rentchain/crypto"
)

// Envelope is the signed wrapper every mutating method takes. Tx is signed
// byte for byte as transmitted.
type Envelope struct {
	Tx  json.RawMessage `json:"tx"`
	Sig string          `json:"sig"`
}

type envelopeHeader struct {
	From  string  `json:"from"`
	Nonce *uint64 `json:"nonce"`
}

// SignEnvelope builds the envelope for method. fields is encoded to a JSON
// object and stamped with the signer's address and nonce.
func SignEnvelope(method string, key *crypto.PrivateKey, nonce uint64, fields interface{}) (*Envelope, error) {
	if key == nil {
		return nil, fmt.Errorf("rpc: signing key required")
	}
	tx := map[string]interface{}{}
	if fields != nil {
		raw, err := json.Marshal(fields)
		if err != nil {
			return nil, err
		}
		if err := json.Unmarshal(raw, &tx); err != nil {
			return nil, fmt.Errorf("rpc: envelope fields must encode to an object: %w", err)
		}
	}
	tx["from"] = key.Address().String()
	tx["nonce"] = nonce
	payload, err := json.Marshal(tx)
	if err != nil {
		return nil, err
	}
	sig, err := key.Sign(crypto.Digest(method, payload))
	if err != nil {
		return nil, err
	}
	return &Envelope{Tx: payload, Sig: "0x" + hex.EncodeToString(sig)}, nil
}

// openEnvelope authenticates the envelope carried by req and decodes the tx
// fields into out. The returned caller is bound to the recovered signer.
func openEnvelope(req *RPCRequest, out interface{}) (core.Caller, *RPCError) {
	if len(req.Params) != 1 {
		return core.Caller{}, invalidParams("exactly one signed envelope expected")
	}
	var env Envelope
	if err := json.Unmarshal(req.Params[0], &env); err != nil {
		return core.Caller{}, invalidParams("envelope: %v", err)
	}
	if len(env.Tx) == 0 {
		return core.Caller{}, invalidParams("envelope: tx is required")
	}
	var header envelopeHeader
	if err := json.Unmarshal(env.Tx, &header); err != nil {
		return core.Caller{}, invalidParams("envelope tx: %v", err)
	}
	if header.Nonce == nil {
		return core.Caller{}, invalidParams("envelope tx: nonce is required")
	}
	from, rpcErr := parseAddress("from", header.From)
	if rpcErr != nil {
		return core.Caller{}, rpcErr
	}
	sig, err := hex.DecodeString(strings.TrimPrefix(strings.TrimSpace(env.Sig), "0x"))
	if err != nil {
		return core.Caller{}, badEnvelope("signature is not hex")
	}
	digest := crypto.Digest(req.Method, env.Tx)
	signer, err := crypto.RecoverAddress(digest, sig)
	if err != nil {
		return core.Caller{}, badEnvelope(err.Error())
	}
	if [20]byte(signer) != from {
		return core.Caller{}, badEnvelope(fmt.Sprintf("signer %s does not match from %s", signer, crypto.Address(from)))
	}
	if out != nil {
		if err := json.Unmarshal(env.Tx, out); err != nil {
			return core.Caller{}, invalidParams("envelope tx: %v", err)
		}
	}
	var txHash [32]byte
	copy(txHash[:], ethcrypto.Keccak256(digest, sig))
	return core.Caller{From: from, Nonce: *header.Nonce, TxHash: txHash}, nil
}

func badEnvelope(detail string) *RPCError {
	return &RPCError{Code: codeBadEnvelope, Message: "invalid_signature", Data: detail}
}
