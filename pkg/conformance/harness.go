package conformance

import (
	"context"
	"encoding/json"

	"github.com/kojibai/pbi-core/pkg/action"
	"github.com/kojibai/pbi-core/pkg/capability"
	"github.com/kojibai/pbi-core/pkg/jwk"
	"github.com/kojibai/pbi-core/pkg/pbierr"
	"github.com/kojibai/pbi-core/pkg/receipt"
)

// Outcome is the harness's normalized verdict for a single case: "ok" on
// success, "err:<code>" on a structured failure.
type Outcome string

const okOutcome Outcome = "ok"

func errOutcome(code string) Outcome { return Outcome("err:" + code) }

// CaseResult is one row of a harness run.
type CaseResult struct {
	Name     string  `json:"name"`
	Expected Outcome `json:"expected"`
	Actual   Outcome `json:"actual"`
	Pass     bool    `json:"pass"`
	Detail   string  `json:"detail,omitempty"`
}

// Report is the aggregate outcome of a harness run.
type Report struct {
	Total  int          `json:"total"`
	Passed int          `json:"passed"`
	Cases  []CaseResult `json:"cases"`
}

// AllPassed reports whether every case in the run matched its expectation.
func (r *Report) AllPassed() bool { return r.Passed == r.Total }

// Verifier runs one conformance case and returns its normalized outcome.
// BuiltinVerifier and ExternalVerifier are the two implementations.
type Verifier interface {
	Verify(ctx context.Context, in VerifierInput) (Outcome, string, error)
}

// Run drives every case in vf, in declared order, through v and builds a
// Report. A case whose harness call itself errors (as opposed to returning
// a structured verification failure) is recorded as a non-match rather than
// aborting the whole run.
func Run(ctx context.Context, vf *VectorFile, v Verifier) *Report {
	report := &Report{Total: len(vf.Cases)}
	for _, c := range vf.Cases {
		expected := expectedOutcome(c.Expect)
		actual, detail, err := v.Verify(ctx, c.verifierInput())
		if err != nil {
			actual = errOutcome("harness_error")
			detail = err.Error()
		}
		pass := actual == expected
		if pass {
			report.Passed++
		}
		report.Cases = append(report.Cases, CaseResult{
			Name:     c.Name,
			Expected: expected,
			Actual:   actual,
			Pass:     pass,
			Detail:   detail,
		})
	}
	return report
}

func expectedOutcome(e Expect) Outcome {
	if e.Result == "ok" {
		return okOutcome
	}
	return errOutcome(e.Code)
}

// BuiltinVerifier drives cases through this repository's own Receipt
// Verifier rather than an external subprocess.
type BuiltinVerifier struct{}

func (BuiltinVerifier) Verify(ctx context.Context, in VerifierInput) (Outcome, string, error) {
	var r receipt.Receipt
	if err := json.Unmarshal(in.Receipt, &r); err != nil {
		return errOutcome(string(pbierr.InvalidStructure)), err.Error(), nil
	}

	var a *action.Action
	if len(in.Action) > 0 {
		var parsed action.Action
		if err := json.Unmarshal(in.Action, &parsed); err != nil {
			return errOutcome(string(pbierr.InvalidStructure)), err.Error(), nil
		}
		a = &parsed
	}

	store := singleCredentialStore{credID: r.AuthorSig.CredID, pub: in.PubKeyJwk}
	policy := receipt.DefaultPolicy()
	policy.RpIDAllowList = []string{in.RpID}
	policy.OriginAllowList = []string{in.Origin}

	_, err := receipt.Verify(ctx, receipt.VerifyInput{
		Receipt:     &r,
		Action:      a,
		Policy:      policy,
		Credentials: store,
	})
	if err == nil {
		return okOutcome, "", nil
	}
	if code, ok := pbierr.CodeOf(err); ok {
		return errOutcome(string(code)), err.Error(), nil
	}
	return errOutcome("unknown"), err.Error(), nil
}

type singleCredentialStore struct {
	credID string
	pub    jwk.JWK
}

func (s singleCredentialStore) Lookup(_ context.Context, credID string) (jwk.JWK, bool, error) {
	if credID != s.credID {
		return nil, false, nil
	}
	return s.pub, true, nil
}

var _ capability.CredentialStore = singleCredentialStore{}
