// SPDX-License-Identifier: AGPL-3.0-or-later
package crypto

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/trellisfw/masklink/internal/domain/models"
	"github.com/trellisfw/masklink/pkg/jsonpointer"
	"github.com/trellisfw/masklink/pkg/logger"
)

// Header is the protected header of a signature, loosely modeled on JWS. The core
// itself does not define the on-wire signature format; this is this module's own
// stand-in for an external signing service, not a format the core depends on.
type Header struct {
	Kid string `json:"kid"`
	JKU string `json:"jku,omitempty"`
	JWK JWK    `json:"jwk"`
}

// JWK is a minimal Octet Key Pair JSON Web Key carrying an Ed25519 public key.
type JWK struct {
	Kty string `json:"kty"`
	Crv string `json:"crv"`
	X   string `json:"x"`
}

// SignOptions configures a single Sign call.
type SignOptions struct {
	Header  Header
	Type    string
	Payload models.SignaturePayload
}

const signaturesField = "signatures"

// protectedClaims is the envelope actually signed over: the header plus the payload
// plus the set of mask paths this round genuinely introduced (paths already
// accounted for by an earlier round's signature are excluded). The latter is what
// lets Verify report `unchanged=false` when a payload's declared "mask-paths"
// diverge from what this round actually masked, whether in membership or in order.
type protectedClaims struct {
	Header          Header   `json:"header"`
	Type            string   `json:"type"`
	MaskPaths       []string `json:"mask-paths,omitempty"`
	ActualMaskPaths []string `json:"actual-mask-paths,omitempty"`
}

// Ed25519Signer is a self-contained stand-in for an external JWS-shaped signing
// service. It implements Sign/Verify with Ed25519 so the rest of the core — and its
// tests — can run without a real OADA/trellis signing service.
type Ed25519Signer struct {
	privateKey   ed25519.PrivateKey
	publicKey    ed25519.PublicKey
	trustedPeers map[string]bool
}

// NewEd25519Signer loads a persisted key from MASKLINK_SIGNING_KEY (base64 standard
// encoding of an ed25519.PrivateKey) or generates an ephemeral one.
func NewEd25519Signer(trustedPeers ...string) (*Ed25519Signer, error) {
	priv, pub, err := loadOrGenerateKeys()
	if err != nil {
		return nil, fmt.Errorf("failed to load or generate signing key: %w", err)
	}

	trusted := make(map[string]bool, len(trustedPeers))
	for _, p := range trustedPeers {
		trusted[p] = true
	}

	return &Ed25519Signer{privateKey: priv, publicKey: pub, trustedPeers: trusted}, nil
}

func loadOrGenerateKeys() (ed25519.PrivateKey, ed25519.PublicKey, error) {
	if encoded := os.Getenv("MASKLINK_SIGNING_KEY"); encoded != "" {
		raw, err := base64.StdEncoding.DecodeString(encoded)
		if err != nil {
			return nil, nil, fmt.Errorf("invalid MASKLINK_SIGNING_KEY encoding: %w", err)
		}
		if len(raw) != ed25519.PrivateKeySize {
			return nil, nil, fmt.Errorf("invalid MASKLINK_SIGNING_KEY length: got %d bytes", len(raw))
		}
		priv := ed25519.PrivateKey(raw)
		return priv, priv.Public().(ed25519.PublicKey), nil
	}

	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, nil, err
	}
	logger.Logger.Warn("masklink: generated ephemeral signing key; set MASKLINK_SIGNING_KEY to persist identity across restarts")
	return priv, pub, nil
}

// PublicKeyBase64 exports the base64-encoded public key, usable as a trust-list entry
// for a peer Ed25519Signer.
func (s *Ed25519Signer) PublicKeyBase64() string {
	return base64.StdEncoding.EncodeToString(s.publicKey)
}

// Sign appends a new signature to a copy of doc; it never mutates its input.
func (s *Ed25519Signer) Sign(doc models.Resource, opts SignOptions) (models.Resource, error) {
	opts.Header.JWK = JWK{Kty: "OKP", Crv: "Ed25519", X: s.PublicKeyBase64()}
	if opts.Header.Kid == "" {
		opts.Header.Kid = opts.Header.JWK.X[:16]
	}

	// A mask signature's mask-paths declares only what this round masked, not
	// every mask the document carries: earlier rounds' masks are still physically
	// present in doc but already accounted for by their own signatures.
	actualPaths := newMaskPaths(jsonpointer.FindAllMaskPaths(doc), previouslySignedMaskPaths(doc))

	claims := protectedClaims{
		Header:          opts.Header,
		Type:            opts.Type,
		MaskPaths:       opts.Payload.MaskPaths,
		ActualMaskPaths: actualPaths,
	}

	protectedJSON, err := json.Marshal(claims)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal signature header: %w", err)
	}
	originalJSON, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal signed-over document: %w", err)
	}

	protectedB64 := base64.RawURLEncoding.EncodeToString(protectedJSON)
	payloadB64 := base64.RawURLEncoding.EncodeToString(originalJSON)
	signingInput := protectedB64 + "." + payloadB64

	sig := ed25519.Sign(s.privateKey, []byte(signingInput))
	sigB64 := base64.RawURLEncoding.EncodeToString(sig)

	compact := strings.Join([]string{protectedB64, payloadB64, sigB64}, ".")

	signed := models.DeepCopyResource(doc)
	existing, _ := signed[signaturesField].([]interface{})
	signed[signaturesField] = append(append([]interface{}{}, existing...), compact)

	return signed, nil
}

// Verify consumes the top-most signature on doc and returns it as-signed.
func (s *Ed25519Signer) Verify(doc models.Resource) (models.SignatureVerification, error) {
	rawSigs, _ := doc[signaturesField].([]interface{})
	if len(rawSigs) == 0 {
		return models.SignatureVerification{}, fmt.Errorf("document carries no signatures")
	}

	compact, ok := rawSigs[len(rawSigs)-1].(string)
	if !ok {
		return models.SignatureVerification{}, fmt.Errorf("malformed signature entry")
	}

	parts := strings.Split(compact, ".")
	if len(parts) != 3 {
		return models.SignatureVerification{}, fmt.Errorf("malformed compact signature")
	}
	protectedB64, payloadB64, sigB64 := parts[0], parts[1], parts[2]

	protectedJSON, err := base64.RawURLEncoding.DecodeString(protectedB64)
	if err != nil {
		return models.SignatureVerification{}, fmt.Errorf("invalid signature header encoding: %w", err)
	}
	var claims protectedClaims
	if err := json.Unmarshal(protectedJSON, &claims); err != nil {
		return models.SignatureVerification{}, fmt.Errorf("invalid signature header: %w", err)
	}

	sigBytes, err := base64.RawURLEncoding.DecodeString(sigB64)
	if err != nil {
		return models.SignatureVerification{}, fmt.Errorf("invalid signature encoding: %w", err)
	}

	pubKeyBytes, err := base64.StdEncoding.DecodeString(claims.Header.JWK.X)
	if err != nil || len(pubKeyBytes) != ed25519.PublicKeySize {
		return models.SignatureVerification{
			Valid:   false,
			Details: []string{"signature header carries an invalid or missing public key"},
		}, nil
	}

	signingInput := protectedB64 + "." + payloadB64
	valid := ed25519.Verify(ed25519.PublicKey(pubKeyBytes), []byte(signingInput), sigBytes)

	details := make([]string, 0, 2)
	if !valid {
		details = append(details, fmt.Errorf("%w: ed25519 signature verification failed", models.ErrSignatureInvalid).Error())
		return models.SignatureVerification{Valid: false, Details: details}, nil
	}

	originalJSON, err := base64.RawURLEncoding.DecodeString(payloadB64)
	if err != nil {
		return models.SignatureVerification{Valid: false, Details: []string{"invalid signed-over payload encoding"}}, nil
	}
	var original models.Resource
	if err := json.Unmarshal(originalJSON, &original); err != nil {
		return models.SignatureVerification{Valid: false, Details: []string{"invalid signed-over payload"}}, nil
	}

	unchanged := claims.Type != models.SignatureTypeMask || orderedPathsEqual(claims.MaskPaths, claims.ActualMaskPaths)
	if !unchanged {
		details = append(details, "declared mask-paths do not match the resource's actual masked paths at signing time")
	}

	trusted := s.trustedPeers[claims.Header.JWK.X]
	if !trusted {
		details = append(details, "signer is not present in the configured trust list")
	}

	return models.SignatureVerification{
		Trusted:   trusted,
		Unchanged: unchanged,
		Valid:     true,
		Original:  original,
		Payload:   models.SignaturePayload{Type: claims.Type, MaskPaths: claims.MaskPaths},
		Details:   details,
	}, nil
}

// orderedPathsEqual reports whether a and b list the same mask paths in the same
// order. It does not sort: a reordering of the same set must still compare unequal,
// since unchanged also detects out-of-order mask-path enumeration.
func orderedPathsEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// previouslySignedMaskPaths unions the ActualMaskPaths recorded by every signature
// already on doc, i.e. every mask path some earlier round already attested to.
// Entries that fail to decode are skipped: Sign only consults its own prior output,
// never untrusted input, so a malformed entry has nothing useful to contribute.
func previouslySignedMaskPaths(doc models.Resource) []string {
	rawSigs, _ := doc[signaturesField].([]interface{})

	seen := make(map[string]bool)
	for _, raw := range rawSigs {
		compact, ok := raw.(string)
		if !ok {
			continue
		}
		parts := strings.Split(compact, ".")
		if len(parts) != 3 {
			continue
		}
		protectedJSON, err := base64.RawURLEncoding.DecodeString(parts[0])
		if err != nil {
			continue
		}
		var claims protectedClaims
		if err := json.Unmarshal(protectedJSON, &claims); err != nil {
			continue
		}
		for _, p := range claims.ActualMaskPaths {
			seen[p] = true
		}
	}

	paths := make([]string, 0, len(seen))
	for p := range seen {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// newMaskPaths returns the paths in all that are not in previous, sorted for a
// deterministic, canonical enumeration order.
func newMaskPaths(all, previous []string) []string {
	prev := make(map[string]bool, len(previous))
	for _, p := range previous {
		prev[p] = true
	}

	fresh := make([]string, 0, len(all))
	for _, p := range all {
		if !prev[p] {
			fresh = append(fresh, p)
		}
	}
	sort.Strings(fresh)
	return fresh
}
