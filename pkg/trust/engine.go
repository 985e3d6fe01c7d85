package trust

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/cel-go/cel"

	"github.com/kojibai/pbi-core/pkg/pbierr"
)

// Kind distinguishes the issuer and attestor rule variants (attestor kid
// constraint vs. issuer name/aud constraint).
type Kind int

const (
	KindIssuer Kind = iota
	KindAttestor
)

// Engine evaluates Roots under a Mode, caching compiled constraint
// expressions the same way the policy evaluators elsewhere in this lineage
// cache CEL programs keyed by expression text.
type Engine struct {
	Mode  Mode
	Roots *Roots

	mu       sync.Mutex
	env      *cel.Env
	prgCache map[string]cel.Program
}

// NewEngine builds an Engine over roots in ModeTrust. Use ModeNone/ModeJWK
// constructors for the weaker development/raw-key variants.
func NewEngine(roots *Roots) *Engine {
	return &Engine{Mode: ModeTrust, Roots: roots}
}

// NewNoneEngine builds an Engine that accepts any key that verifies.
func NewNoneEngine() *Engine {
	return &Engine{Mode: ModeNone}
}

// NewJWKEngine builds an Engine that trusts the given raw keys as-is, with
// no rotation, revocation, or constraint evaluation.
func NewJWKEngine(trustedIssuers, trustedAttestors []KeyEntry) *Engine {
	return &Engine{Mode: ModeJWK, Roots: &Roots{Ver: RootsVersion, TrustedIssuers: trustedIssuers, TrustedAttestors: trustedAttestors}}
}

// EvalInput carries everything Evaluate needs to apply the seven normative
// trust-evaluation rules.
type EvalInput struct {
	Kind         Kind
	KeyID        string // SHA-256(canonical(pubKeyJwk)), precomputed by the caller
	At           time.Time
	CallerKid    string            // the caller-supplied key id, for the attestor kid constraint
	ManifestMeta *IssuerConstraint // the manifest's issuer{name,aud} block, for the issuer constraint
}

// Evaluate runs the Trust Policy Engine's seven rules against keyID.
func (e *Engine) Evaluate(in EvalInput) error {
	if e.Mode == ModeNone {
		return nil
	}
	if e.Mode == ModeJWK {
		entries := e.entriesFor(in.Kind)
		for _, entry := range entries {
			if entry.KeyID == in.KeyID {
				return nil
			}
		}
		return e.untrustedErr(in.Kind)
	}

	roots := e.Roots
	if roots == nil {
		return e.untrustedErr(in.Kind)
	}

	// 2. Hard revocation.
	for _, rk := range roots.RevokedKeyIDs {
		if rk == in.KeyID {
			return e.revokedErr(in.Kind)
		}
	}

	// 3. Time-scoped revocation.
	for _, rev := range roots.Revocations {
		if rev.KeyID == in.KeyID && !rev.RevokedAt.After(in.At) {
			return e.revokedErr(in.Kind)
		}
	}

	// 4. Must be a trusted key.
	entry, found := e.findEntry(in.Kind, in.KeyID)
	if !found {
		return e.untrustedErr(in.Kind)
	}

	// 5. Attestor-only kid constraint.
	if in.Kind == KindAttestor && entry.Kid != "" && entry.Kid != in.CallerKid {
		return pbierr.New(pbierr.AttestorKidMismatch, "caller-supplied key id does not match the trusted entry's kid")
	}

	// 6. Validity window.
	if entry.NotBefore != nil && in.At.Before(*entry.NotBefore) {
		return e.notYetValidErr(in.Kind)
	}
	if entry.NotAfter != nil && in.At.After(*entry.NotAfter) {
		return e.expiredErr(in.Kind)
	}

	// 7. Issuer name/aud constraint.
	if in.Kind == KindIssuer && entry.Issuer != nil {
		if in.ManifestMeta == nil || *entry.Issuer != *in.ManifestMeta {
			return pbierr.New(pbierr.IssuerConstraintMismatch, "manifest issuer block does not match the trusted entry's constraint")
		}
	}

	// Optional supplementary constraint expression, advisory on top of the
	// rules above.
	if roots.Constraint != "" {
		ok, err := e.evalConstraint(roots.Constraint, in)
		if err != nil {
			return fmt.Errorf("trust: constraint evaluation failed: %w", err)
		}
		if !ok {
			return e.untrustedErr(in.Kind)
		}
	}

	return nil
}

func (e *Engine) entriesFor(k Kind) []KeyEntry {
	if e.Roots == nil {
		return nil
	}
	if k == KindIssuer {
		return e.Roots.TrustedIssuers
	}
	return e.Roots.TrustedAttestors
}

func (e *Engine) findEntry(k Kind, keyID string) (KeyEntry, bool) {
	for _, entry := range e.entriesFor(k) {
		if entry.KeyID == keyID {
			return entry, true
		}
	}
	return KeyEntry{}, false
}

func (e *Engine) untrustedErr(k Kind) error {
	if k == KindIssuer {
		return pbierr.New(pbierr.IssuerUntrusted, "issuer key is not in the trusted-issuers list")
	}
	return pbierr.New(pbierr.AttestorUntrusted, "attestor key is not in the trusted-attestors list")
}

func (e *Engine) revokedErr(k Kind) error {
	if k == KindIssuer {
		return pbierr.New(pbierr.IssuerRevoked, "issuer key is revoked")
	}
	return pbierr.New(pbierr.AttestorRevoked, "attestor key is revoked")
}

func (e *Engine) notYetValidErr(k Kind) error {
	if k == KindIssuer {
		return pbierr.New(pbierr.IssuerNotYetValid, "issuer key is not yet valid at the evaluation time")
	}
	return pbierr.New(pbierr.AttestorNotYetValid, "attestor key is not yet valid at the evaluation time")
}

func (e *Engine) expiredErr(k Kind) error {
	if k == KindIssuer {
		return pbierr.New(pbierr.IssuerExpired, "issuer key has expired")
	}
	return pbierr.New(pbierr.AttestorExpired, "attestor key has expired")
}

func (e *Engine) evalConstraint(expr string, in EvalInput) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.env == nil {
		env, err := cel.NewEnv(
			cel.Variable("issuer", cel.MapType(cel.StringType, cel.StringType)),
			cel.Variable("at", cel.IntType),
		)
		if err != nil {
			return false, fmt.Errorf("cel env: %w", err)
		}
		e.env = env
		e.prgCache = make(map[string]cel.Program)
	}

	prg, hit := e.prgCache[expr]
	if !hit {
		ast, issues := e.env.Compile(expr)
		if issues != nil && issues.Err() != nil {
			return false, fmt.Errorf("compile: %w", issues.Err())
		}
		p, err := e.env.Program(ast, cel.InterruptCheckFrequency(100), cel.CostLimit(10000))
		if err != nil {
			return false, fmt.Errorf("program: %w", err)
		}
		e.prgCache[expr] = p
		prg = p
	}

	issuer := map[string]string{}
	if in.ManifestMeta != nil {
		issuer["name"] = in.ManifestMeta.Name
		issuer["aud"] = in.ManifestMeta.Aud
	}

	out, _, err := prg.Eval(map[string]interface{}{
		"issuer": issuer,
		"at":     in.At.Unix(),
	})
	if err != nil {
		return false, fmt.Errorf("eval: %w", err)
	}
	val, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("constraint expression did not evaluate to bool")
	}
	return val, nil
}
