package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/kojibai/pbi-core/pkg/action"
	"github.com/kojibai/pbi-core/pkg/capability"
	"github.com/kojibai/pbi-core/pkg/jwk"
	"github.com/kojibai/pbi-core/pkg/pbierr"
	"github.com/kojibai/pbi-core/pkg/receipt"
	"github.com/kojibai/pbi-core/pkg/telemetry"
)

func main() {
	os.Exit(Run(os.Args[1:], os.Stdout, os.Stderr))
}

// Run parses flags, loads a single receipt and a single credential's public
// key, and verifies the receipt against them. Exit 0 verified, 1 failed, 2
// usage error.
func Run(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("pbi-verify", flag.ContinueOnError)
	cmd.SetOutput(stderr)

	var (
		receiptPath string
		pubkeyPath  string
		actionPath  string
		rpID        string
		origin      string
		credID      string
		requireUV   bool
		noRequireUP bool
		pretty      bool
	)
	cmd.StringVar(&receiptPath, "receipt", "", "path to the receipt JSON document (required)")
	cmd.StringVar(&pubkeyPath, "pubkey", "", "path to the credential's public JWK document (required)")
	cmd.StringVar(&actionPath, "action", "", "path to the original action document, for actionHash recomputation")
	cmd.StringVar(&rpID, "rpId", "", "relying-party id the authenticatorData rpIdHash must match (required)")
	cmd.StringVar(&origin, "origin", "", "origin the clientDataJSON.origin must match (required)")
	cmd.StringVar(&credID, "credId", "", "expected credential id (base64url); if set, must match authorSig.credId")
	cmd.BoolVar(&requireUV, "requireUV", false, "require the UV (user verified) flag")
	cmd.BoolVar(&noRequireUP, "no-requireUP", false, "do not require the UP (user present) flag")
	cmd.BoolVar(&pretty, "pretty", false, "pretty-print the JSON result")

	if err := cmd.Parse(args); err != nil {
		return 2
	}
	if receiptPath == "" || pubkeyPath == "" || rpID == "" || origin == "" {
		fmt.Fprintln(stderr, "pbi-verify: --receipt, --pubkey, --rpId, and --origin are required")
		return 2
	}

	receiptBytes, err := os.ReadFile(receiptPath)
	if err != nil {
		fmt.Fprintf(stderr, "pbi-verify: read receipt: %v\n", err)
		return 2
	}
	var r receipt.Receipt
	if err := json.Unmarshal(receiptBytes, &r); err != nil {
		fmt.Fprintf(stderr, "pbi-verify: parse receipt: %v\n", err)
		return 2
	}

	pubkeyBytes, err := os.ReadFile(pubkeyPath)
	if err != nil {
		fmt.Fprintf(stderr, "pbi-verify: read pubkey: %v\n", err)
		return 2
	}
	var key jwk.JWK
	if err := json.Unmarshal(pubkeyBytes, &key); err != nil {
		fmt.Fprintf(stderr, "pbi-verify: parse pubkey: %v\n", err)
		return 2
	}

	var a *action.Action
	if actionPath != "" {
		actionBytes, err := os.ReadFile(actionPath)
		if err != nil {
			fmt.Fprintf(stderr, "pbi-verify: read action: %v\n", err)
			return 2
		}
		var parsed action.Action
		if err := json.Unmarshal(actionBytes, &parsed); err != nil {
			fmt.Fprintf(stderr, "pbi-verify: parse action: %v\n", err)
			return 2
		}
		a = &parsed
	}

	if credID != "" && r.AuthorSig.CredID != credID {
		return writeResult(stdout, pretty, false, string(pbierr.CredentialUnknown), "authorSig.credId does not match --credId")
	}

	policy := receipt.DefaultPolicy()
	policy.RpIDAllowList = []string{rpID}
	policy.OriginAllowList = []string{origin}
	policy.RequireUV = requireUV
	policy.RequireUP = !noRequireUP

	store := fixedCredentialStore{credID: r.AuthorSig.CredID, key: key}

	tp := telemetry.NoOp()
	defer func() { _ = tp.Shutdown(context.Background()) }()
	ctx, done := tp.Track(context.Background(), "pbi-verify.Verify")

	_, err = receipt.Verify(ctx, receipt.VerifyInput{
		Receipt:     &r,
		Action:      a,
		Policy:      policy,
		Credentials: store,
	})
	done(err)
	if err != nil {
		code, _ := pbierr.CodeOf(err)
		return writeResult(stdout, pretty, false, string(code), err.Error())
	}
	return writeResult(stdout, pretty, true, "", "")
}

type verifyResult struct {
	OK     bool   `json:"ok"`
	Code   string `json:"code,omitempty"`
	Detail string `json:"detail,omitempty"`
}

func writeResult(w io.Writer, pretty bool, ok bool, code, detail string) int {
	res := verifyResult{OK: ok, Code: code, Detail: detail}
	var b []byte
	var err error
	if pretty {
		b, err = json.MarshalIndent(res, "", "  ")
	} else {
		b, err = json.Marshal(res)
	}
	if err != nil {
		return 2
	}
	fmt.Fprintln(w, string(b))
	if ok {
		return 0
	}
	return 1
}

type fixedCredentialStore struct {
	credID string
	key    jwk.JWK
}

func (s fixedCredentialStore) Lookup(_ context.Context, credID string) (jwk.JWK, bool, error) {
	if credID != s.credID {
		return nil, false, nil
	}
	return s.key, true, nil
}

var _ capability.CredentialStore = fixedCredentialStore{}
