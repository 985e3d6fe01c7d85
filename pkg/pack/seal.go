package pack

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/kojibai/pbi-core/pkg/action"
	"github.com/kojibai/pbi-core/pkg/enc"
	"github.com/kojibai/pbi-core/pkg/jwk"
	"github.com/kojibai/pbi-core/pkg/merkle"
	"github.com/kojibai/pbi-core/pkg/receipt"
	"github.com/kojibai/pbi-core/pkg/signing"
)

// RawFile is a loaded document plus the path it was read from, relative to
// the pack directory root — e.g. "receipts/r1.json".
type RawFile struct {
	Path  string
	Bytes []byte
}

// SealInput is everything a seal operation needs already loaded into
// memory; the core performs no I/O itself — a thin wrapper around a
// capability.ByteSource does the loading before calling Seal.
type SealInput struct {
	ReceiptFiles []RawFile          // receipts/<id>.json, any order; Seal sorts by Path
	ActionFiles  map[string]RawFile // keyed by id
	PubkeyFiles  map[string]RawFile // keyed by credId

	IssuerName string
	IssuerAud  string
	Policy     receipt.Policy
	CreatedAt  time.Time
	PrevPackID string

	Signer          signing.Signer
	IssuerPubKeyJwk jwk.JWK
}

// SealResult is the output of a successful seal: the signed manifest and
// one proof document per receipt, keyed by receipt id.
type SealResult struct {
	Manifest *Manifest
	Proofs   map[string]*Proof
}

// Seal builds a signed, Merkle-committed manifest and per-receipt proofs
// from a pack directory's loaded contents, in seven steps.
func Seal(in SealInput) (*SealResult, error) {
	files := append([]RawFile(nil), in.ReceiptFiles...)
	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })

	fileHashes := map[string]FileEntry{}
	entries := make([]ReceiptEntry, 0, len(files))
	leafHashes := make([]string, 0, len(files))
	loadedReceipts := make([]*receipt.Receipt, 0, len(files))
	loadedActions := make([]*action.Action, 0, len(files))
	loadedPubkeys := make([]jwk.JWK, 0, len(files))

	for _, rf := range files {
		id := idFromPath(rf.Path, "receipts/", ".json")

		var r receipt.Receipt
		if err := json.Unmarshal(rf.Bytes, &r); err != nil {
			return nil, fmt.Errorf("pack: seal: parse receipt %q: %w", rf.Path, err)
		}
		receiptHash, err := receipt.Hash(&r)
		if err != nil {
			return nil, fmt.Errorf("pack: seal: hash receipt %q: %w", rf.Path, err)
		}

		actionFile, ok := in.ActionFiles[id]
		if !ok {
			return nil, fmt.Errorf("pack: seal: no action file paired with receipt %q", id)
		}
		var a action.Action
		if err := json.Unmarshal(actionFile.Bytes, &a); err != nil {
			return nil, fmt.Errorf("pack: seal: parse action %q: %w", actionFile.Path, err)
		}
		actionHash, err := action.Hash(&a)
		if err != nil {
			return nil, fmt.Errorf("pack: seal: hash action %q: %w", actionFile.Path, err)
		}
		if actionHash != r.ActionHash {
			return nil, fmt.Errorf("pack: seal: action %q hash %s does not match receipt.actionHash %s", id, actionHash, r.ActionHash)
		}

		pubkeyFile, ok := in.PubkeyFiles[r.AuthorSig.CredID]
		if !ok {
			return nil, fmt.Errorf("pack: seal: no pubkey file for credId %q referenced by receipt %q", r.AuthorSig.CredID, id)
		}
		var key jwk.JWK
		if err := json.Unmarshal(pubkeyFile.Bytes, &key); err != nil {
			return nil, fmt.Errorf("pack: seal: parse pubkey %q: %w", pubkeyFile.Path, err)
		}

		fileHashes[rf.Path] = FileEntry{Sha256: enc.Sha256Hex(rf.Bytes), Bytes: len(rf.Bytes)}
		fileHashes[actionFile.Path] = FileEntry{Sha256: enc.Sha256Hex(actionFile.Bytes), Bytes: len(actionFile.Bytes)}
		fileHashes[pubkeyFile.Path] = FileEntry{Sha256: enc.Sha256Hex(pubkeyFile.Bytes), Bytes: len(pubkeyFile.Bytes)}

		entries = append(entries, ReceiptEntry{
			ID:          id,
			ReceiptPath: rf.Path,
			ActionPath:  actionFile.Path,
			CredID:      r.AuthorSig.CredID,
			ReceiptHash: receiptHash,
			ActionHash:  actionHash,
		})
		leafHashes = append(leafHashes, receiptHash)
		loadedReceipts = append(loadedReceipts, &r)
		loadedActions = append(loadedActions, &a)
		loadedPubkeys = append(loadedPubkeys, key)
	}

	tree, err := merkle.Build(leafHashes)
	if err != nil {
		return nil, fmt.Errorf("pack: seal: build merkle tree: %w", err)
	}

	m := &Manifest{
		Ver:       ManifestVersion,
		CreatedAt: in.CreatedAt,
		Issuer:    IssuerBlock{Name: in.IssuerName, Aud: in.IssuerAud},
		Policy:    in.Policy,
		Pack:      PackBlock{PrevPackID: in.PrevPackID},
		Merkle:    MerkleBlock{Algo: "sha256", Leaf: "receiptHashHex", Root: tree.Root, Count: len(leafHashes)},
		Receipts:  entries,
		Files:     fileHashes,
	}

	packID, err := enc.CanonicalHash(m.WithoutPackIDAndIssuerSig())
	if err != nil {
		return nil, fmt.Errorf("pack: seal: compute packId: %w", err)
	}
	m.Pack.PackID = packID

	keyID, err := in.IssuerPubKeyJwk.KeyID()
	if err != nil {
		return nil, fmt.Errorf("pack: seal: compute issuer keyId: %w", err)
	}

	signingPayload, err := enc.Canonicalize(m)
	if err != nil {
		return nil, fmt.Errorf("pack: seal: canonicalize signing payload: %w", err)
	}
	sig, err := in.Signer.Sign(signingPayload)
	if err != nil {
		return nil, fmt.Errorf("pack: seal: sign manifest: %w", err)
	}

	m.IssuerSig = &IssuerSig{
		Alg:       in.Signer.Alg(),
		KeyID:     keyID,
		SignedAt:  in.CreatedAt,
		PubKeyJwk: in.IssuerPubKeyJwk,
		SigB64url: enc.B64URLEncode(sig),
	}

	proofs := make(map[string]*Proof, len(entries))
	for i, e := range entries {
		mp, err := merkle.GenerateProof(tree, i)
		if err != nil {
			return nil, fmt.Errorf("pack: seal: generate proof for %q: %w", e.ID, err)
		}
		proofs[e.ID] = &Proof{
			Ver:        ProofVersion,
			CreatedAt:  in.CreatedAt,
			PackID:     m.Pack.PackID,
			PrevPackID: m.Pack.PrevPackID,
			Manifest:   m,
			Merkle: ProofMerkle{
				Algo:     "sha256",
				Leaf:     "receiptHashHex",
				Root:     mp.Root,
				Index:    mp.Index,
				Siblings: mp.Siblings,
			},
			Leaf: ProofLeaf{
				ID:          e.ID,
				CredID:      e.CredID,
				ReceiptHash: e.ReceiptHash,
				ActionHash:  e.ActionHash,
				Receipt:     loadedReceipts[i],
				Action:      loadedActions[i],
				PubKeyJwk:   loadedPubkeys[i],
			},
		}
	}

	return &SealResult{Manifest: m, Proofs: proofs}, nil
}

func idFromPath(path, prefix, suffix string) string {
	id := strings.TrimSuffix(path, suffix)
	if idx := strings.LastIndex(id, "/"); idx >= 0 {
		id = id[idx+1:]
	}
	_ = prefix
	return id
}
