package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/kojibai/pbi-core/internal/obslog"
	"github.com/kojibai/pbi-core/pkg/pack"
	"github.com/kojibai/pbi-core/pkg/telemetry"
	"github.com/kojibai/pbi-core/pkg/trust"
)

func main() {
	os.Exit(Run(os.Args[1:], os.Stdout, os.Stderr))
}

type trustFlags []string

func (t *trustFlags) String() string { return strings.Join(*t, ",") }
func (t *trustFlags) Set(v string) error {
	*t = append(*t, v)
	return nil
}

// Run verifies either a whole pack directory (--dir, or a bare positional
// argument) or a single standalone proof (--proof). Exit 0 iff every
// receipt verifies and, when any --trust files are supplied, the issuer
// signature is trusted.
func Run(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("pbi-pack-verify", flag.ContinueOnError)
	cmd.SetOutput(stderr)

	var (
		dir        string
		proofPath  string
		trustPaths trustFlags
		pretty     bool
	)
	cmd.StringVar(&dir, "dir", "", "pack directory to verify (or pass it positionally)")
	cmd.StringVar(&proofPath, "proof", "", "standalone proof document to verify instead of a whole pack")
	cmd.Var(&trustPaths, "trust", "trust-roots file (repeatable); omit for mode=none")
	cmd.BoolVar(&pretty, "pretty", false, "pretty-print the JSON result")

	if err := cmd.Parse(args); err != nil {
		return 2
	}
	if dir == "" && proofPath == "" && cmd.NArg() > 0 {
		dir = cmd.Arg(0)
	}
	if dir == "" && proofPath == "" {
		fmt.Fprintln(stderr, "pbi-pack-verify: a pack directory or --proof is required")
		return 2
	}

	logger := obslog.New(os.Getenv("PBI_LOG_LEVEL"))

	engine, err := buildEngine(trustPaths)
	if err != nil {
		logger.Error("trust engine setup failed", "error", err)
		fmt.Fprintf(stderr, "pbi-pack-verify: %v\n", err)
		return 2
	}

	at := time.Now().UTC()
	tp := telemetry.NoOp()
	defer func() { _ = tp.Shutdown(context.Background()) }()
	ctx, done := tp.Track(context.Background(), "pbi-pack-verify.Run")
	defer func() { done(nil) }()

	if proofPath != "" {
		raw, err := os.ReadFile(proofPath)
		if err != nil {
			fmt.Fprintf(stderr, "pbi-pack-verify: read proof: %v\n", err)
			return 2
		}
		var p pack.Proof
		if err := json.Unmarshal(raw, &p); err != nil {
			fmt.Fprintf(stderr, "pbi-pack-verify: parse proof: %v\n", err)
			return 2
		}
		result, err := pack.VerifyProof(ctx, pack.VerifyProofInput{Proof: &p, Trust: engine, At: at})
		if err != nil {
			writeJSON(stdout, pretty, map[string]any{"ok": false, "error": err.Error()})
			return 1
		}
		writeJSON(stdout, pretty, map[string]any{"ok": result.OK, "credId": result.CredID})
		return 0
	}

	manifestBytes, err := os.ReadFile(filepath.Join(dir, "manifest.json"))
	if err != nil {
		fmt.Fprintf(stderr, "pbi-pack-verify: read manifest: %v\n", err)
		return 2
	}
	var manifest pack.Manifest
	if err := json.Unmarshal(manifestBytes, &manifest); err != nil {
		fmt.Fprintf(stderr, "pbi-pack-verify: parse manifest: %v\n", err)
		return 2
	}

	rawFiles := map[string][]byte{}
	for path := range manifest.Files {
		b, err := os.ReadFile(filepath.Join(dir, path))
		if err != nil {
			fmt.Fprintf(stderr, "pbi-pack-verify: read %s: %v\n", path, err)
			return 2
		}
		rawFiles[path] = b
	}

	report, err := pack.VerifyWhole(ctx, pack.VerifyWholeInput{
		Manifest: &manifest,
		RawFiles: rawFiles,
		Trust:    engine,
		At:       at,
	})
	if err != nil {
		logger.Error("pack verification failed", "dir", dir, "error", err)
		writeJSON(stdout, pretty, map[string]any{"ok": false, "error": err.Error()})
		return 1
	}
	logger.Debug("pack verified", "packId", manifest.Pack.PackID, "verifiedCount", report.VerifiedCount, "total", report.Total)

	writeJSON(stdout, pretty, report)
	if report.Verified {
		return 0
	}
	return 1
}

func buildEngine(trustPaths []string) (*trust.Engine, error) {
	if len(trustPaths) == 0 {
		return trust.NewNoneEngine(), nil
	}
	var all []*trust.Roots
	for _, p := range trustPaths {
		raw, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("read trust file %s: %w", p, err)
		}
		roots, err := trust.LoadRoots(raw, p)
		if err != nil {
			return nil, err
		}
		all = append(all, roots)
	}
	return trust.NewEngine(trust.MergeRoots(all...)), nil
}

func writeJSON(w io.Writer, pretty bool, v any) {
	var b []byte
	var err error
	if pretty {
		b, err = json.MarshalIndent(v, "", "  ")
	} else {
		b, err = json.Marshal(v)
	}
	if err != nil {
		fmt.Fprintf(w, `{"ok":false,"error":%q}`+"\n", err.Error())
		return
	}
	fmt.Fprintln(w, string(b))
}
