// Package pack implements the Pack Engine: sealing a directory of receipts
// into a signed, Merkle-committed manifest plus one proof document per
// receipt, and verifying such manifests and proofs from scratch.
package pack

import (
	"time"

	"github.com/kojibai/pbi-core/pkg/action"
	"github.com/kojibai/pbi-core/pkg/jwk"
	"github.com/kojibai/pbi-core/pkg/merkle"
	"github.com/kojibai/pbi-core/pkg/receipt"
)

const ManifestVersion = "pbi-pack-1.1"
const ProofVersion = "pbi-proof-1.0"

// Version prefixes and compatibility constraints accepted by Verify, so a
// pack or proof minted by a newer compatible minor release still verifies.
const ManifestVersionPrefix = "pbi-pack"
const ManifestVersionConstraint = "^1.0"
const ProofVersionPrefix = "pbi-proof"
const ProofVersionConstraint = "^1.0"

// IssuerBlock names the pack's signer for audience/constraint checking.
type IssuerBlock struct {
	Name string `json:"name"`
	Aud  string `json:"aud"`
}

// PackBlock carries the pack's own identity and optional chain link.
// PackID and PrevPackID are both omitempty so the packId closure (computed
// before PackID is known, and always excluding issuerSig) can be produced by
// canonicalizing the manifest with these fields simply unset.
type PackBlock struct {
	PackID     string `json:"packId,omitempty"`
	PrevPackID string `json:"prevPackId,omitempty"`
}

// MerkleBlock is the manifest's summary of the receipt Merkle tree.
type MerkleBlock struct {
	Algo  string `json:"algo"`
	Leaf  string `json:"leaf"`
	Root  string `json:"root"`
	Count int    `json:"count"`
}

// ReceiptEntry is one row of the manifest's receipts[] array.
type ReceiptEntry struct {
	ID          string `json:"id"`
	ReceiptPath string `json:"receiptPath"`
	ActionPath  string `json:"actionPath"`
	CredID      string `json:"credId"`
	ReceiptHash string `json:"receiptHash"`
	ActionHash  string `json:"actionHash"`
}

// FileEntry is one row of the manifest's files{} integrity map.
type FileEntry struct {
	Sha256 string `json:"sha256"`
	Bytes  int    `json:"bytes"`
}

// IssuerSig is the issuer's signature over the manifest, added only once
// sealing is complete. Its algorithm is a field-declared value dispatched
// by the signing package, never hardcoded.
type IssuerSig struct {
	Alg       string    `json:"alg"`
	KeyID     string    `json:"keyId"`
	SignedAt  time.Time `json:"signedAt"`
	PubKeyJwk jwk.JWK   `json:"pubKeyJwk"`
	SigB64url string    `json:"sig_b64url"`
}

// Manifest is a pack's root document.
//
// IssuerSig is a pointer with omitempty so that clearing it before
// canonicalizing reproduces exactly the "manifest_without_issuerSig"
// closure needed for both the packId computation and the signing payload.
type Manifest struct {
	Ver       string              `json:"ver"`
	CreatedAt time.Time           `json:"createdAt"`
	Issuer    IssuerBlock         `json:"issuer"`
	Policy    receipt.Policy      `json:"policy"`
	Pack      PackBlock           `json:"pack"`
	Merkle    MerkleBlock         `json:"merkle"`
	Receipts  []ReceiptEntry      `json:"receipts"`
	Files     map[string]FileEntry `json:"files"`
	IssuerSig *IssuerSig          `json:"issuerSig,omitempty"`
}

// Clone returns a deep-enough copy of m for the identity/signing closures to
// mutate without disturbing the caller's copy.
func (m *Manifest) Clone() *Manifest {
	c := *m
	c.Receipts = append([]ReceiptEntry(nil), m.Receipts...)
	files := make(map[string]FileEntry, len(m.Files))
	for k, v := range m.Files {
		files[k] = v
	}
	c.Files = files
	if m.IssuerSig != nil {
		sig := *m.IssuerSig
		c.IssuerSig = &sig
	}
	return &c
}

// WithoutPackIDAndIssuerSig returns a clone with both pack.packId and
// issuerSig cleared, for computing packId.
func (m *Manifest) WithoutPackIDAndIssuerSig() *Manifest {
	c := m.Clone()
	c.Pack.PackID = ""
	c.IssuerSig = nil
	return c
}

// WithoutIssuerSig returns a clone with only issuerSig cleared, for
// computing (or verifying) the signing payload.
func (m *Manifest) WithoutIssuerSig() *Manifest {
	c := m.Clone()
	c.IssuerSig = nil
	return c
}

// Proof is a standalone, offline-verifiable slice of a pack.
type Proof struct {
	Ver        string      `json:"ver"`
	CreatedAt  time.Time   `json:"createdAt"`
	PackID     string      `json:"packId"`
	PrevPackID string      `json:"prevPackId,omitempty"`
	Merkle     ProofMerkle `json:"merkle"`
	Manifest   *Manifest   `json:"manifest"`
	Leaf       ProofLeaf   `json:"leaf"`
}

// ProofMerkle is the per-proof Merkle summary: the sibling path plus enough
// context (algo, leaf kind, root, index) to fold independently of the
// embedded manifest.
type ProofMerkle struct {
	Algo     string            `json:"algo"`
	Leaf     string            `json:"leaf"`
	Root     string            `json:"root"`
	Index    int               `json:"index"`
	Siblings []merkle.Sibling `json:"siblings"`
}

// ProofLeaf embeds everything needed to independently re-verify one receipt.
type ProofLeaf struct {
	ID          string           `json:"id"`
	CredID      string           `json:"credId"`
	ReceiptHash string           `json:"receiptHash"`
	ActionHash  string           `json:"actionHash"`
	Receipt     *receipt.Receipt `json:"receipt"`
	Action      *action.Action   `json:"action"`
	PubKeyJwk   jwk.JWK          `json:"pubKeyJwk"`
}
