package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/kojibai/pbi-core/internal/keyio"
	"github.com/kojibai/pbi-core/internal/obslog"
	"github.com/kojibai/pbi-core/pkg/pack"
	"github.com/kojibai/pbi-core/pkg/receipt"
)

func main() {
	os.Exit(Run(os.Args[1:], os.Stdout, os.Stderr))
}

// Run walks a pack directory's receipts/, actions/, and pubkeys/
// subdirectories, seals them into a signed manifest and per-receipt
// proofs, and writes manifest.json and proofs/*.proof.json in place.
func Run(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("pbi-pack-seal", flag.ContinueOnError)
	cmd.SetOutput(stderr)

	var (
		dir         string
		privkeyPath string
		alg         string
		issuerName  string
		issuerAud   string
		createdAt   string
		prevPackID  string
		requireUV   bool
		noRequireUP bool
	)
	cmd.StringVar(&dir, "dir", "", "pack directory containing receipts/, actions/, pubkeys/ (required)")
	cmd.StringVar(&privkeyPath, "privkey", "", "path to the issuer's PKCS8 PEM private key (required)")
	cmd.StringVar(&alg, "alg", "es256", "issuer signing algorithm: es256 or ed25519")
	cmd.StringVar(&issuerName, "issuerName", "", "issuer name recorded in the manifest")
	cmd.StringVar(&issuerAud, "issuerAud", "", "issuer audience recorded in the manifest")
	cmd.StringVar(&createdAt, "createdAt", "", "manifest createdAt (RFC3339); defaults to now")
	cmd.StringVar(&prevPackID, "prevPackId", "", "previous pack's packId, for chaining")
	cmd.BoolVar(&requireUV, "requireUV", false, "require the UV flag on every receipt")
	cmd.BoolVar(&noRequireUP, "no-requireUP", false, "do not require the UP flag on every receipt")

	// rpId/origin are accepted for CLI symmetry with pbi-verify but the
	// pack's policy carries only the allow-list shape; a seal operation
	// does not itself re-verify receipts against them.
	var rpID, origin string
	cmd.StringVar(&rpID, "rpId", "", "relying-party id recorded in the pack policy")
	cmd.StringVar(&origin, "origin", "", "origin recorded in the pack policy")

	if err := cmd.Parse(args); err != nil {
		return 2
	}
	if dir == "" || privkeyPath == "" {
		fmt.Fprintln(stderr, "pbi-pack-seal: --dir and --privkey are required")
		return 2
	}

	logger := obslog.New(os.Getenv("PBI_LOG_LEVEL"))

	createdAtTime := time.Now().UTC()
	if createdAt != "" {
		parsed, err := time.Parse(time.RFC3339, createdAt)
		if err != nil {
			fmt.Fprintf(stderr, "pbi-pack-seal: invalid --createdAt: %v\n", err)
			return 2
		}
		createdAtTime = parsed
	}

	privBytes, err := os.ReadFile(privkeyPath)
	if err != nil {
		fmt.Fprintf(stderr, "pbi-pack-seal: read privkey: %v\n", err)
		return 2
	}
	signer, pubJWK, err := keyio.LoadSigner(privBytes, alg)
	if err != nil {
		fmt.Fprintf(stderr, "pbi-pack-seal: %v\n", err)
		return 2
	}

	receiptFiles, err := loadRawFiles(filepath.Join(dir, "receipts"), "receipts")
	if err != nil {
		fmt.Fprintf(stderr, "pbi-pack-seal: %v\n", err)
		return 2
	}
	actionFiles, err := loadKeyedFiles(filepath.Join(dir, "actions"), "actions")
	if err != nil {
		fmt.Fprintf(stderr, "pbi-pack-seal: %v\n", err)
		return 2
	}
	pubkeyFiles, err := loadKeyedPubkeys(filepath.Join(dir, "pubkeys"))
	if err != nil {
		fmt.Fprintf(stderr, "pbi-pack-seal: %v\n", err)
		return 2
	}

	policy := receipt.DefaultPolicy()
	policy.RequireUV = requireUV
	policy.RequireUP = !noRequireUP
	if rpID != "" {
		policy.RpIDAllowList = []string{rpID}
	}
	if origin != "" {
		policy.OriginAllowList = []string{origin}
	}

	result, err := pack.Seal(pack.SealInput{
		ReceiptFiles:    receiptFiles,
		ActionFiles:     actionFiles,
		PubkeyFiles:     pubkeyFiles,
		IssuerName:      issuerName,
		IssuerAud:       issuerAud,
		Policy:          policy,
		CreatedAt:       createdAtTime,
		PrevPackID:      prevPackID,
		Signer:          signer,
		IssuerPubKeyJwk: pubJWK,
	})
	if err != nil {
		logger.Error("seal failed", "dir", dir, "error", err)
		fmt.Fprintf(stderr, "pbi-pack-seal: seal: %v\n", err)
		return 2
	}
	logger.Debug("pack sealed", "packId", result.Manifest.Pack.PackID, "receipts", len(result.Proofs))

	manifestBytes, err := json.MarshalIndent(result.Manifest, "", "  ")
	if err != nil {
		fmt.Fprintf(stderr, "pbi-pack-seal: marshal manifest: %v\n", err)
		return 2
	}
	manifestBytes = append(manifestBytes, '\n')
	if err := os.WriteFile(filepath.Join(dir, "manifest.json"), manifestBytes, 0o644); err != nil {
		fmt.Fprintf(stderr, "pbi-pack-seal: write manifest: %v\n", err)
		return 2
	}

	proofsDir := filepath.Join(dir, "proofs")
	if err := os.MkdirAll(proofsDir, 0o755); err != nil {
		fmt.Fprintf(stderr, "pbi-pack-seal: create proofs dir: %v\n", err)
		return 2
	}
	for id, proof := range result.Proofs {
		proofBytes, err := json.MarshalIndent(proof, "", "  ")
		if err != nil {
			fmt.Fprintf(stderr, "pbi-pack-seal: marshal proof %q: %v\n", id, err)
			return 2
		}
		proofBytes = append(proofBytes, '\n')
		path := filepath.Join(proofsDir, id+".proof.json")
		if err := os.WriteFile(path, proofBytes, 0o644); err != nil {
			fmt.Fprintf(stderr, "pbi-pack-seal: write proof %q: %v\n", id, err)
			return 2
		}
	}

	fmt.Fprintf(stdout, "packId=%s merkleRoot=%s\n", result.Manifest.Pack.PackID, result.Manifest.Merkle.Root)
	return 0
}

func loadRawFiles(dir, relPrefix string) ([]pack.RawFile, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read %s/: %w", relPrefix, err)
	}
	var files []pack.RawFile
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		b, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("read %s/%s: %w", relPrefix, entry.Name(), err)
		}
		files = append(files, pack.RawFile{Path: relPrefix + "/" + entry.Name(), Bytes: b})
	}
	return files, nil
}

func loadKeyedFiles(dir, relPrefix string) (map[string]pack.RawFile, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read %s/: %w", relPrefix, err)
	}
	out := map[string]pack.RawFile{}
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		id := strings.TrimSuffix(entry.Name(), ".json")
		b, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("read %s/%s: %w", relPrefix, entry.Name(), err)
		}
		out[id] = pack.RawFile{Path: relPrefix + "/" + entry.Name(), Bytes: b}
	}
	return out, nil
}

func loadKeyedPubkeys(dir string) (map[string]pack.RawFile, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read pubkeys/: %w", err)
	}
	out := map[string]pack.RawFile{}
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".jwk.json") {
			continue
		}
		credID := strings.TrimSuffix(entry.Name(), ".jwk.json")
		b, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("read pubkeys/%s: %w", entry.Name(), err)
		}
		out[credID] = pack.RawFile{Path: "pubkeys/" + entry.Name(), Bytes: b}
	}
	return out, nil
}
