package dnssec

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"fmt"
	"time"

	"authdns/wire"
)

// AlgorithmRSASHA256 is the only DNSSEC algorithm this signer supports
// (spec.md §4.4, Open Question 1). Keys loaded with any other algorithm
// value are rejected at load time, not silently accepted.
const AlgorithmRSASHA256 = 8

const (
	signatureValidity = 30 * 24 * time.Hour
	inceptionSkew     = 1 * time.Hour
)

// now is overridable in tests so signature lifetimes are deterministic.
var now = time.Now

// Key is a loaded DNSSEC signing key (spec.md §3 DnssecKey). Private is
// nil for a key that is only used to validate or serve DNSKEY records.
type Key struct {
	Owner     wire.DomainName
	Flags     uint16
	Protocol  uint8
	Algorithm uint8
	PublicKey []byte
	Private   *rsa.PrivateKey
	KeyTag    uint16
}

// DNSKEY returns the wire RDATA for this key's public half.
func (k Key) DNSKEY() wire.DNSKEYRdata {
	return wire.DNSKEYRdata{
		Flags:     k.Flags,
		Protocol:  k.Protocol,
		Algorithm: k.Algorithm,
		PublicKey: k.PublicKey,
	}
}

// Signer signs RRsets with a single DNSSEC key. It is safe for concurrent
// use: signing is stateless beyond the immutable private key.
type Signer struct {
	Key Key
}

// NewSigner wraps key for signing. It returns an error if key carries an
// unsupported algorithm or has no private half.
func NewSigner(key Key) (*Signer, error) {
	if key.Algorithm != AlgorithmRSASHA256 {
		return nil, fmt.Errorf("dnssec: unsupported algorithm %d, only RSA/SHA-256 (8) is supported", key.Algorithm)
	}

	if key.Private == nil {
		return nil, fmt.Errorf("dnssec: key for %q has no private component", key.Owner)
	}

	return &Signer{Key: key}, nil
}

// Sign produces the RRSIG covering set, owned by signerName (normally
// the zone apex). TTL in the RRSIG's original_ttl field is the RRset's
// served TTL, per spec.md §4.4 step 2.
func (s *Signer) Sign(set wire.RRset, signerName wire.DomainName) (wire.RRSIGRdata, error) {
	inception := now().Add(-inceptionSkew)
	expiration := inception.Add(inceptionSkew + signatureValidity)

	sig := wire.RRSIGRdata{
		TypeCovered: set.Type,
		Algorithm:   s.Key.Algorithm,
		Labels:      uint8(set.Name.LabelCount()),
		OriginalTTL: set.TTL,
		Expiration:  uint32(expiration.Unix()),
		Inception:   uint32(inception.Unix()),
		KeyTag:      s.Key.KeyTag,
		SignerName:  wire.NewDomainName(string(signerName)),
	}

	signedData := SignedData(sig.PrefixBytes(), set)

	digest := sha256.Sum256(signedData)

	signature, err := rsa.SignPKCS1v15(rand.Reader, s.Key.Private, crypto.SHA256, digest[:])
	if err != nil {
		return wire.RRSIGRdata{}, fmt.Errorf("dnssec: sign failed: %w", err)
	}

	sig.Signature = signature

	return sig, nil
}

// Verify checks an RRSIG against the RRset it claims to cover, using pub.
// Used by tests (spec.md Testable Property 4: signatures verify against
// the served DNSKEY).
func Verify(set wire.RRset, sig wire.RRSIGRdata, pub *rsa.PublicKey) error {
	signedData := SignedData(sig.PrefixBytes(), set)
	digest := sha256.Sum256(signedData)

	return rsa.VerifyPKCS1v15(pub, crypto.SHA256, digest[:], sig.Signature)
}
