package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/kojibai/pbi-core/pkg/trust"
)

func main() {
	os.Exit(Run(os.Args[1:], os.Stdout, os.Stderr))
}

// Run checks that a signed attestor trust bundle was minted by a root key
// listed in the roots file. Exit 0 trusted, 1 not trusted, 2 usage error.
func Run(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("pbi-attestor-trust-verify", flag.ContinueOnError)
	cmd.SetOutput(stderr)

	var bundlePath, rootsPath string
	var pretty bool
	cmd.StringVar(&bundlePath, "bundle", "", "path to the signed attestor trust bundle (required)")
	cmd.StringVar(&rootsPath, "roots", "", "path to the root-keys file the bundle must be signed by (required)")
	cmd.BoolVar(&pretty, "pretty", false, "pretty-print the JSON result")

	if err := cmd.Parse(args); err != nil {
		return 2
	}
	if bundlePath == "" || rootsPath == "" {
		fmt.Fprintln(stderr, "pbi-attestor-trust-verify: --bundle and --roots are required")
		return 2
	}

	bundleBytes, err := os.ReadFile(bundlePath)
	if err != nil {
		fmt.Fprintf(stderr, "pbi-attestor-trust-verify: read bundle: %v\n", err)
		return 2
	}
	var bundle trust.SignedBundle
	if err := json.Unmarshal(bundleBytes, &bundle); err != nil {
		fmt.Fprintf(stderr, "pbi-attestor-trust-verify: parse bundle: %v\n", err)
		return 2
	}

	rootsBytes, err := os.ReadFile(rootsPath)
	if err != nil {
		fmt.Fprintf(stderr, "pbi-attestor-trust-verify: read roots: %v\n", err)
		return 2
	}
	roots, err := trust.LoadRoots(rootsBytes, rootsPath)
	if err != nil {
		fmt.Fprintf(stderr, "pbi-attestor-trust-verify: %v\n", err)
		return 2
	}

	verifyErr := trust.VerifyBundleSignature(&bundle, roots, time.Now().UTC())

	result := map[string]any{"ok": verifyErr == nil}
	if verifyErr != nil {
		result["error"] = verifyErr.Error()
	}
	var b []byte
	if pretty {
		b, err = json.MarshalIndent(result, "", "  ")
	} else {
		b, err = json.Marshal(result)
	}
	if err != nil {
		return 2
	}
	fmt.Fprintln(stdout, string(b))

	if verifyErr == nil {
		return 0
	}
	return 1
}
