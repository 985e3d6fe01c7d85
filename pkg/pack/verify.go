package pack

import (
	"context"
	"crypto/ecdsa"
	"crypto/ed25519"
	"encoding/json"
	"fmt"
	"time"

	"github.com/kojibai/pbi-core/pkg/action"
	"github.com/kojibai/pbi-core/pkg/capability"
	"github.com/kojibai/pbi-core/pkg/enc"
	"github.com/kojibai/pbi-core/pkg/jwk"
	"github.com/kojibai/pbi-core/pkg/merkle"
	"github.com/kojibai/pbi-core/pkg/pbierr"
	"github.com/kojibai/pbi-core/pkg/receipt"
	"github.com/kojibai/pbi-core/pkg/signing"
	"github.com/kojibai/pbi-core/pkg/trust"
	"github.com/kojibai/pbi-core/pkg/version"
)

// ReceiptCheck is one row of a whole-pack verification report.
type ReceiptCheck struct {
	ID    string `json:"id"`
	OK    bool   `json:"ok"`
	Code  string `json:"code,omitempty"`
	Error string `json:"error,omitempty"`
}

// Report is the outcome of a whole-pack verification.
type Report struct {
	Verified      bool           `json:"verified"`
	VerifiedCount int            `json:"verifiedCount"`
	Total         int            `json:"total"`
	Receipts      []ReceiptCheck `json:"receipts"`
}

// VerifyWholeInput bundles the loaded bytes a whole-pack verification needs.
// As with Seal, all I/O happens in a thin wrapper before this pure call.
type VerifyWholeInput struct {
	Manifest *Manifest
	RawFiles map[string][]byte // every path in Manifest.Files, keyed by that same path
	Trust    *trust.Engine     // nil means no --trust files were supplied
	At       time.Time
}

// VerifyWhole runs the whole-pack checks in order: version, file integrity,
// packId, Merkle root, issuer signature/trust, then per-receipt
// verification. Every check before the per-receipt step is fatal and
// short-circuits the remainder; per-receipt failures go into the report.
func VerifyWhole(ctx context.Context, in VerifyWholeInput) (*Report, error) {
	m := in.Manifest
	if err := version.Compatible(m.Ver, ManifestVersionPrefix, ManifestVersionConstraint); err != nil {
		return nil, pbierr.Newf(pbierr.VersionMismatch, "manifest.ver %q is not compatible with %s %s: %v", m.Ver, ManifestVersionPrefix, ManifestVersionConstraint, err)
	}

	// 2. Recompute files{}.
	for path, entry := range m.Files {
		raw, ok := in.RawFiles[path]
		if !ok {
			return nil, pbierr.Newf(pbierr.ManifestFileHashMismatch, "file %q listed in manifest is missing", path)
		}
		if len(raw) != entry.Bytes || enc.Sha256Hex(raw) != entry.Sha256 {
			return nil, pbierr.Newf(pbierr.ManifestFileHashMismatch, "file %q does not match its manifest hash", path)
		}
	}

	// 3. Recompute packId.
	computedPackID, err := enc.CanonicalHash(m.WithoutPackIDAndIssuerSig())
	if err != nil {
		return nil, err
	}
	if computedPackID != m.Pack.PackID {
		return nil, pbierr.Newf(pbierr.PackIDMismatch, "computed packId %s != manifest pack.packId %s", computedPackID, m.Pack.PackID)
	}

	// 4. Recompute merkle.root.
	leaves := make([]string, len(m.Receipts))
	for i, r := range m.Receipts {
		leaves[i] = r.ReceiptHash
	}
	tree, err := merkle.Build(leaves)
	if err != nil {
		return nil, err
	}
	if tree.Root != m.Merkle.Root {
		return nil, pbierr.Newf(pbierr.MerkleRootMismatch, "computed merkle root %s != manifest merkle.root %s", tree.Root, m.Merkle.Root)
	}

	// 5. Issuer signature + trust.
	if m.IssuerSig != nil {
		if err := verifyIssuerSignature(m, in.Trust, in.At); err != nil {
			return nil, err
		}
	}

	// 6/7. Per-receipt verification.
	report := &Report{Total: len(m.Receipts)}
	for _, entry := range m.Receipts {
		check := ReceiptCheck{ID: entry.ID}
		if err := verifyOneReceipt(ctx, m, entry, in.RawFiles); err != nil {
			check.OK = false
			if code, ok := pbierr.CodeOf(err); ok {
				check.Code = string(code)
			}
			check.Error = err.Error()
		} else {
			check.OK = true
			report.VerifiedCount++
		}
		report.Receipts = append(report.Receipts, check)
	}
	report.Verified = report.VerifiedCount == report.Total

	return report, nil
}

func verifyIssuerSignature(m *Manifest, engine *trust.Engine, at time.Time) error {
	sig := m.IssuerSig
	recomputedKeyID, err := sig.PubKeyJwk.KeyID()
	if err != nil {
		return err
	}
	if recomputedKeyID != sig.KeyID {
		return pbierr.New(pbierr.InvalidStructure, "issuerSig.keyId does not match SHA-256(canonical(pubKeyJwk))")
	}

	if engine != nil {
		if err := engine.Evaluate(trust.EvalInput{
			Kind:  trust.KindIssuer,
			KeyID: recomputedKeyID,
			At:    at,
			ManifestMeta: &trust.IssuerConstraint{
				Name: m.Issuer.Name,
				Aud:  m.Issuer.Aud,
			},
		}); err != nil {
			return err
		}
	}

	var ecdsaPub *ecdsa.PublicKey
	var ed25519Pub ed25519.PublicKey
	switch sig.Alg {
	case signing.AlgES256:
		ecdsaPub, err = sig.PubKeyJwk.ECDSAPublicKey()
	case signing.AlgEd25519:
		ed25519Pub, err = sig.PubKeyJwk.Ed25519PublicKey()
	default:
		return pbierr.Newf(pbierr.InvalidStructure, "unknown issuerSig.alg %q", sig.Alg)
	}
	if err != nil {
		return err
	}

	verifier, err := signing.VerifierFor(sig.Alg, ecdsaPub, ed25519Pub)
	if err != nil {
		return err
	}

	sigBytes, err := enc.B64URLDecode(sig.SigB64url)
	if err != nil {
		return pbierr.New(pbierr.InvalidStructure, "issuerSig.sig_b64url is not valid base64url")
	}

	payload, err := enc.Canonicalize(m.WithoutIssuerSig())
	if err != nil {
		return err
	}

	return verifier.Verify(payload, sigBytes)
}

func verifyOneReceipt(ctx context.Context, m *Manifest, entry ReceiptEntry, rawFiles map[string][]byte) error {
	receiptRaw, ok := rawFiles[entry.ReceiptPath]
	if !ok {
		return pbierr.Newf(pbierr.ManifestFileHashMismatch, "receipt file %q missing", entry.ReceiptPath)
	}
	actionRaw, ok := rawFiles[entry.ActionPath]
	if !ok {
		return pbierr.Newf(pbierr.ManifestFileHashMismatch, "action file %q missing", entry.ActionPath)
	}

	var r receipt.Receipt
	if err := json.Unmarshal(receiptRaw, &r); err != nil {
		return pbierr.Newf(pbierr.InvalidStructure, "malformed receipt %q: %v", entry.ReceiptPath, err)
	}
	var a action.Action
	if err := json.Unmarshal(actionRaw, &a); err != nil {
		return pbierr.Newf(pbierr.InvalidStructure, "malformed action %q: %v", entry.ActionPath, err)
	}

	receiptHash, err := receipt.Hash(&r)
	if err != nil {
		return err
	}
	if receiptHash != entry.ReceiptHash {
		return pbierr.Newf(pbierr.ManifestFileHashMismatch, "receipt %q hash does not match manifest row", entry.ID)
	}
	if r.AuthorSig.CredID != entry.CredID {
		return pbierr.Newf(pbierr.ManifestFileHashMismatch, "receipt %q credId does not match manifest row", entry.ID)
	}

	store := staticCredentialStore{byCredID: map[string]jwk.JWK{}}
	if pkBytes, ok := findPubkeyFile(m, entry.CredID, rawFiles); ok {
		var key jwk.JWK
		if err := json.Unmarshal(pkBytes, &key); err != nil {
			return pbierr.Newf(pbierr.InvalidStructure, "malformed pubkey for credId %q: %v", entry.CredID, err)
		}
		store.byCredID[entry.CredID] = key
	}

	_, err = receipt.Verify(ctx, receipt.VerifyInput{
		Receipt:     &r,
		Action:      &a,
		Policy:      m.Policy,
		Credentials: store,
	})
	return err
}

// findPubkeyFile locates the pubkey bytes for credID among the manifest's
// listed files by convention (pubkeys/<credId>.jwk.json); the manifest does
// not carry a direct credId->path index. Seal does not check this layout: it
// records each pubkey file under the path its caller supplied.
func findPubkeyFile(m *Manifest, credID string, rawFiles map[string][]byte) ([]byte, bool) {
	path := fmt.Sprintf("pubkeys/%s.jwk.json", credID)
	b, ok := rawFiles[path]
	return b, ok
}

type staticCredentialStore struct {
	byCredID map[string]jwk.JWK
}

func (s staticCredentialStore) Lookup(_ context.Context, credID string) (jwk.JWK, bool, error) {
	key, ok := s.byCredID[credID]
	return key, ok, nil
}

var _ capability.CredentialStore = staticCredentialStore{}

// VerifyProofInput is a standalone proof document plus the trust context to
// verify it against, with no other pack files required. This is the
// air-gapped path: a single proof.json carries its own embedded manifest.
type VerifyProofInput struct {
	Proof *Proof
	Trust *trust.Engine
	At    time.Time
}

// VerifyProof verifies one offline proof document from scratch: the
// embedded manifest's own packId and issuer signature, the leaf's
// receipt hash, the Merkle fold against both the proof's own root and the
// embedded manifest's root, and finally the leaf receipt itself.
func VerifyProof(ctx context.Context, in VerifyProofInput) (*receipt.Result, error) {
	p := in.Proof
	if err := version.Compatible(p.Ver, ProofVersionPrefix, ProofVersionConstraint); err != nil {
		return nil, pbierr.Newf(pbierr.VersionMismatch, "proof.ver %q is not compatible with %s %s: %v", p.Ver, ProofVersionPrefix, ProofVersionConstraint, err)
	}
	m := p.Manifest
	if m == nil {
		return nil, pbierr.New(pbierr.InvalidStructure, "proof.manifest is missing")
	}

	computedPackID, err := enc.CanonicalHash(m.WithoutPackIDAndIssuerSig())
	if err != nil {
		return nil, err
	}
	if computedPackID != p.PackID || computedPackID != m.Pack.PackID {
		return nil, pbierr.Newf(pbierr.PackIDMismatch, "computed packId %s does not match proof/manifest packId", computedPackID)
	}

	if m.IssuerSig != nil {
		if err := verifyIssuerSignature(m, in.Trust, in.At); err != nil {
			return nil, err
		}
	}

	leaf := p.Leaf
	receiptHash, err := receipt.Hash(leaf.Receipt)
	if err != nil {
		return nil, err
	}
	if receiptHash != leaf.ReceiptHash {
		return nil, pbierr.New(pbierr.ManifestFileHashMismatch, "recomputed receipt hash does not match proof.leaf.receiptHash")
	}
	if leaf.Action != nil {
		actionHash, err := action.Hash(leaf.Action)
		if err != nil {
			return nil, err
		}
		if actionHash != leaf.ActionHash {
			return nil, pbierr.Newf(pbierr.ActionHashMismatch, "computed actionHash %s != proof.leaf.actionHash %s", actionHash, leaf.ActionHash)
		}
	}

	folded, err := merkle.Fold(leaf.ReceiptHash, p.Merkle.Siblings)
	if err != nil {
		return nil, err
	}
	if folded != p.Merkle.Root {
		return nil, pbierr.Newf(pbierr.MerkleRootMismatch, "folded root %s != proof.merkle.root %s", folded, p.Merkle.Root)
	}
	if folded != m.Merkle.Root {
		return nil, pbierr.Newf(pbierr.MerkleRootMismatch, "folded root %s != manifest.merkle.root %s", folded, m.Merkle.Root)
	}

	store := staticCredentialStore{byCredID: map[string]jwk.JWK{leaf.CredID: leaf.PubKeyJwk}}
	return receipt.Verify(ctx, receipt.VerifyInput{
		Receipt:     leaf.Receipt,
		Action:      leaf.Action,
		Policy:      m.Policy,
		Credentials: store,
	})
}
