package main

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/kojibai/pbi-core/internal/keyio"
	"github.com/kojibai/pbi-core/pkg/action"
	"github.com/kojibai/pbi-core/pkg/enc"
	"github.com/kojibai/pbi-core/pkg/jwk"
	"github.com/kojibai/pbi-core/pkg/pack"
	"github.com/kojibai/pbi-core/pkg/receipt"
	"github.com/kojibai/pbi-core/pkg/signing"
	"github.com/kojibai/pbi-core/pkg/trust"
	"github.com/kojibai/pbi-core/pkg/webauthn"
)

func main() {
	os.Exit(Run(os.Args[1:], os.Stdout, os.Stderr))
}

// Run drives an end-to-end demonstration: it builds two chained packs from
// synthesized receipts, verifies them, then exercises the negative paths
// (a revoked issuer key, an expired issuer key) to show the Trust Policy
// Engine's decisions in each case.
func Run(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("pbi-pack-demo", flag.ContinueOnError)
	cmd.SetOutput(stderr)

	var outDir string
	var privkeyPath string
	cmd.StringVar(&outDir, "outDir", "", "directory to write the demo packs into; a temp dir is used if omitted")
	cmd.StringVar(&privkeyPath, "privkey", "", "issuer PKCS8 PEM private key; a fresh ES256 key is generated if omitted")

	if err := cmd.Parse(args); err != nil {
		return 2
	}

	if outDir == "" {
		dir, err := os.MkdirTemp("", "pbi-pack-demo-*")
		if err != nil {
			fmt.Fprintf(stderr, "pbi-pack-demo: %v\n", err)
			return 2
		}
		outDir = dir
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		fmt.Fprintf(stderr, "pbi-pack-demo: %v\n", err)
		return 2
	}

	var signer signing.Signer
	var issuerPub jwk.JWK
	if privkeyPath != "" {
		raw, err := os.ReadFile(privkeyPath)
		if err != nil {
			fmt.Fprintf(stderr, "pbi-pack-demo: %v\n", err)
			return 2
		}
		signer, issuerPub, err = keyio.LoadSigner(raw, signing.AlgES256)
		if err != nil {
			fmt.Fprintf(stderr, "pbi-pack-demo: %v\n", err)
			return 2
		}
	} else {
		priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
		if err != nil {
			fmt.Fprintf(stderr, "pbi-pack-demo: %v\n", err)
			return 2
		}
		signer = &signing.ES256Signer{Priv: priv}
		issuerPub, err = jwk.FromECDSA(&priv.PublicKey)
		if err != nil {
			fmt.Fprintf(stderr, "pbi-pack-demo: %v\n", err)
			return 2
		}
	}

	issuerKeyID, err := issuerPub.KeyID()
	if err != nil {
		fmt.Fprintf(stderr, "pbi-pack-demo: %v\n", err)
		return 2
	}

	now := time.Now().UTC()
	ctx := context.Background()

	packA, err := sealDemoPack(signer, issuerPub, "", now, 2)
	if err != nil {
		fmt.Fprintf(stderr, "pbi-pack-demo: seal pack A: %v\n", err)
		return 2
	}
	packB, err := sealDemoPack(signer, issuerPub, packA.Manifest.Pack.PackID, now.Add(time.Hour), 1)
	if err != nil {
		fmt.Fprintf(stderr, "pbi-pack-demo: seal pack B: %v\n", err)
		return 2
	}

	fmt.Fprintf(stdout, "pack A: packId=%s merkleRoot=%s receipts=%d\n", packA.Manifest.Pack.PackID, packA.Manifest.Merkle.Root, len(packA.Manifest.Receipts))
	fmt.Fprintf(stdout, "pack B: packId=%s merkleRoot=%s prevPackId=%s receipts=%d\n", packB.Manifest.Pack.PackID, packB.Manifest.Merkle.Root, packB.Manifest.Pack.PrevPackID, len(packB.Manifest.Receipts))

	trustedRoots := &trust.Roots{
		Ver: trust.RootsVersion,
		TrustedIssuers: []trust.KeyEntry{
			{KeyID: issuerKeyID, PubKeyJwk: issuerPub},
		},
	}
	engine := trust.NewEngine(trustedRoots)

	reportA, err := verifyWholePack(ctx, packA, engine, now)
	if err != nil {
		fmt.Fprintf(stderr, "pbi-pack-demo: verify pack A: %v\n", err)
		return 1
	}
	fmt.Fprintf(stdout, "verify pack A (trusted): verified=%v (%d/%d)\n", reportA.Verified, reportA.VerifiedCount, reportA.Total)

	reportB, err := verifyWholePack(ctx, packB, engine, now)
	if err != nil {
		fmt.Fprintf(stderr, "pbi-pack-demo: verify pack B: %v\n", err)
		return 1
	}
	fmt.Fprintf(stdout, "verify pack B (trusted): verified=%v (%d/%d)\n", reportB.Verified, reportB.VerifiedCount, reportB.Total)

	fmt.Fprintln(stdout, "--- negative path: revoked issuer key ---")
	revokedRoots := &trust.Roots{
		Ver:            trust.RootsVersion,
		TrustedIssuers: trustedRoots.TrustedIssuers,
		RevokedKeyIDs:  []string{issuerKeyID},
	}
	_, revokedErr := verifyWholePack(ctx, packA, trust.NewEngine(revokedRoots), now)
	fmt.Fprintf(stdout, "verify pack A (revoked issuer): ok=%v err=%v\n", revokedErr == nil, revokedErr)

	fmt.Fprintln(stdout, "--- negative path: expired issuer key ---")
	past := now.Add(-48 * time.Hour)
	expiredRoots := &trust.Roots{
		Ver: trust.RootsVersion,
		TrustedIssuers: []trust.KeyEntry{
			{KeyID: issuerKeyID, PubKeyJwk: issuerPub, NotAfter: &past},
		},
	}
	_, expiredErr := verifyWholePack(ctx, packA, trust.NewEngine(expiredRoots), now)
	fmt.Fprintf(stdout, "verify pack A (expired issuer): ok=%v err=%v\n", expiredErr == nil, expiredErr)

	for name, result := range map[string]*pack.SealResult{"a": packA, "b": packB} {
		packDir := filepath.Join(outDir, "pack-"+name)
		if err := writeSealResult(packDir, result); err != nil {
			fmt.Fprintf(stderr, "pbi-pack-demo: write pack %s: %v\n", name, err)
			return 2
		}
	}
	fmt.Fprintf(stdout, "demo packs written under %s\n", outDir)

	return 0
}

func verifyWholePack(ctx context.Context, sealed *pack.SealResult, engine *trust.Engine, at time.Time) (*pack.Report, error) {
	rawFiles, err := rawFilesFromSeal(sealed)
	if err != nil {
		return nil, err
	}
	return pack.VerifyWhole(ctx, pack.VerifyWholeInput{
		Manifest: sealed.Manifest,
		RawFiles: rawFiles,
		Trust:    engine,
		At:       at,
	})
}

// sealDemoPack synthesizes n presence-ceremony receipts signed by fresh
// per-credential ES256 keys, then seals them into a manifest signed by the
// issuer key.
func sealDemoPack(issuerSigner signing.Signer, issuerPub jwk.JWK, prevPackID string, createdAt time.Time, n int) (*pack.SealResult, error) {
	var receiptFiles []pack.RawFile
	actionFiles := map[string]pack.RawFile{}
	pubkeyFiles := map[string]pack.RawFile{}

	for i := 0; i < n; i++ {
		id := fmt.Sprintf("demo-%s", uuid.New().String())
		credPriv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
		if err != nil {
			return nil, err
		}
		credPub, err := jwk.FromECDSA(&credPriv.PublicKey)
		if err != nil {
			return nil, err
		}

		a := &action.Action{
			Ver:     action.Version,
			Aud:     "demo-aud",
			Purpose: "demo-ceremony",
			Method:  "POST",
			Path:    "/demo/widgets",
			Params:  map[string]interface{}{"seq": i},
		}
		actionHash, err := action.Hash(a)
		if err != nil {
			return nil, err
		}

		challengeBytes := make([]byte, 32)
		if _, err := rand.Read(challengeBytes); err != nil {
			return nil, err
		}
		challenge := enc.B64URLEncode(challengeBytes)

		cd := webauthn.ClientData{Type: webauthn.TypeGet, Challenge: challenge, Origin: "https://demo.example"}
		cdBytes, err := json.Marshal(cd)
		if err != nil {
			return nil, err
		}
		rpIDHash := sha256.Sum256([]byte("demo.example"))
		authData := append(append([]byte{}, rpIDHash[:]...), 0x05) // UP+UV
		authData = append(authData, enc.PutU32BE(uint32(i+1))...)

		cdHash := sha256.Sum256(cdBytes)
		signedData := append(append([]byte{}, authData...), cdHash[:]...)
		digest := sha256.Sum256(signedData)
		sig, err := ecdsa.SignASN1(rand.Reader, credPriv, digest[:])
		if err != nil {
			return nil, err
		}

		credID := fmt.Sprintf("cred-%s", id)
		r := &receipt.Receipt{
			Ver:         receipt.Version,
			ChallengeID: "chal-" + id,
			Challenge:   challenge,
			ActionHash:  actionHash,
			Aud:         a.Aud,
			Purpose:     a.Purpose,
			AuthorSig: receipt.AuthorSig{
				Alg:               receipt.AlgWebauthnES256,
				CredID:            credID,
				AuthenticatorData: enc.B64URLEncode(authData),
				ClientDataJSON:    enc.B64URLEncode(cdBytes),
				Signature:         enc.B64URLEncode(sig),
			},
		}
		receiptBytes, err := json.Marshal(r)
		if err != nil {
			return nil, err
		}
		actionBytes, err := json.Marshal(a)
		if err != nil {
			return nil, err
		}
		pubBytes, err := json.Marshal(credPub)
		if err != nil {
			return nil, err
		}

		receiptFiles = append(receiptFiles, pack.RawFile{Path: "receipts/" + id + ".json", Bytes: receiptBytes})
		actionFiles[id] = pack.RawFile{Path: "actions/" + id + ".json", Bytes: actionBytes}
		pubkeyFiles[credID] = pack.RawFile{Path: "pubkeys/" + credID + ".jwk.json", Bytes: pubBytes}
	}

	policy := receipt.DefaultPolicy()
	policy.RpIDAllowList = []string{"demo.example"}
	policy.OriginAllowList = []string{"https://demo.example"}

	return pack.Seal(pack.SealInput{
		ReceiptFiles:    receiptFiles,
		ActionFiles:     actionFiles,
		PubkeyFiles:     pubkeyFiles,
		IssuerName:      "pbi-pack-demo",
		IssuerAud:       "demo-aud",
		Policy:          policy,
		CreatedAt:       createdAt,
		PrevPackID:      prevPackID,
		Signer:          issuerSigner,
		IssuerPubKeyJwk: issuerPub,
	})
}

// rawFilesFromSeal reconstructs the raw file bytes a verification pass
// needs straight from the in-memory seal result: manifest.Files only
// records hashes, but each proof already embeds its receipt, action, and
// pubkey documents.
func rawFilesFromSeal(sealed *pack.SealResult) (map[string][]byte, error) {
	out := map[string][]byte{}
	for _, p := range sealed.Proofs {
		receiptBytes, err := json.Marshal(p.Leaf.Receipt)
		if err != nil {
			return nil, err
		}
		actionBytes, err := json.Marshal(p.Leaf.Action)
		if err != nil {
			return nil, err
		}
		pubBytes, err := json.Marshal(p.Leaf.PubKeyJwk)
		if err != nil {
			return nil, err
		}
		for _, entry := range sealed.Manifest.Receipts {
			if entry.CredID != p.Leaf.CredID {
				continue
			}
			out[entry.ReceiptPath] = receiptBytes
			out[entry.ActionPath] = actionBytes
			out["pubkeys/"+entry.CredID+".jwk.json"] = pubBytes
		}
	}
	return out, nil
}

func writeSealResult(dir string, result *pack.SealResult) error {
	for _, sub := range []string{"receipts", "actions", "pubkeys", "proofs"} {
		if err := os.MkdirAll(filepath.Join(dir, sub), 0o755); err != nil {
			return err
		}
	}
	for _, entry := range result.Manifest.Receipts {
		proof, ok := result.Proofs[entry.ID]
		if !ok {
			continue
		}
		if err := writeJSONFile(filepath.Join(dir, entry.ReceiptPath), proof.Leaf.Receipt); err != nil {
			return err
		}
		if err := writeJSONFile(filepath.Join(dir, entry.ActionPath), proof.Leaf.Action); err != nil {
			return err
		}
		if err := writeJSONFile(filepath.Join(dir, "pubkeys", entry.CredID+".jwk.json"), proof.Leaf.PubKeyJwk); err != nil {
			return err
		}
		if err := writeJSONFile(filepath.Join(dir, "proofs", entry.ID+".proof.json"), proof); err != nil {
			return err
		}
	}
	return writeJSONFile(filepath.Join(dir, "manifest.json"), result.Manifest)
}

func writeJSONFile(path string, v interface{}) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	b = append(b, '\n')
	return os.WriteFile(path, b, 0o644)
}
