package dnssec

import (
	"bufio"
	"crypto/rsa"
	"encoding/base64"
	"fmt"
	"math/big"
	"os"
	"strconv"
	"strings"

	"authdns/wire"
)

// LoadKey reads the public key file and its companion ".private" file
// (spec.md §6) and returns the fully-populated Key, including its
// computed key tag. Comments (";…") are stripped defensively even though
// preprocessing is documented to have already done so.
func LoadKey(publicPath string) (Key, error) {
	line, err := readSingleRecordLine(publicPath)
	if err != nil {
		return Key{}, err
	}

	fields := strings.Fields(line)
	if len(fields) != 7 || !strings.EqualFold(fields[1], "IN") || !strings.EqualFold(fields[2], "DNSKEY") {
		return Key{}, fmt.Errorf("dnssec: malformed key file %s: expected '<owner> IN DNSKEY <flags> <protocol> <algorithm> <pubkey>'", publicPath)
	}

	owner := wire.NewDomainName(fields[0])

	flags, err := strconv.ParseUint(fields[3], 10, 16)
	if err != nil {
		return Key{}, fmt.Errorf("dnssec: bad flags in %s: %w", publicPath, err)
	}

	protocol, err := strconv.ParseUint(fields[4], 10, 8)
	if err != nil {
		return Key{}, fmt.Errorf("dnssec: bad protocol in %s: %w", publicPath, err)
	}

	algorithm, err := strconv.ParseUint(fields[5], 10, 8)
	if err != nil {
		return Key{}, fmt.Errorf("dnssec: bad algorithm in %s: %w", publicPath, err)
	}

	if algorithm != AlgorithmRSASHA256 {
		return Key{}, fmt.Errorf("dnssec: key %s uses algorithm %d, only RSA/SHA-256 (8) is supported", publicPath, algorithm)
	}

	pubKeyBytes, err := base64.StdEncoding.DecodeString(fields[6])
	if err != nil {
		return Key{}, fmt.Errorf("dnssec: bad base64 public key in %s: %w", publicPath, err)
	}

	key := Key{
		Owner:     owner,
		Flags:     uint16(flags),
		Protocol:  uint8(protocol),
		Algorithm: uint8(algorithm),
		PublicKey: pubKeyBytes,
	}
	key.KeyTag = KeyTag(key.DNSKEY())

	privatePath := publicPath + ".private"
	if _, statErr := os.Stat(privatePath); statErr == nil {
		priv, privErr := loadPrivateKey(privatePath)
		if privErr != nil {
			return Key{}, privErr
		}

		key.Private = priv
	}

	return key, nil
}

func readSingleRecordLine(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("dnssec: can't open key file %s: %w", path, err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)

	for scanner.Scan() {
		line := stripComment(scanner.Text())
		line = strings.TrimSpace(line)

		if line != "" {
			return line, nil
		}
	}

	if err := scanner.Err(); err != nil {
		return "", fmt.Errorf("dnssec: reading key file %s: %w", path, err)
	}

	return "", fmt.Errorf("dnssec: key file %s has no record line", path)
}

func stripComment(line string) string {
	if idx := strings.IndexByte(line, ';'); idx >= 0 {
		return line[:idx]
	}

	return line
}

// loadPrivateKey parses the conventional BIND-style key=value private key
// file: one "Key: value" pair per line, values base64-encoded big
// integers, e.g. "Modulus: ...", "PrivateExponent: ...".
func loadPrivateKey(path string) (*rsa.PrivateKey, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("dnssec: can't open private key file %s: %w", path, err)
	}
	defer f.Close()

	fields := map[string]*big.Int{}

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := stripComment(scanner.Text())
		line = strings.TrimSpace(line)

		if line == "" {
			continue
		}

		parts := strings.SplitN(line, ":", 2)
		if len(parts) != 2 {
			continue
		}

		key := strings.TrimSpace(parts[0])
		val := strings.TrimSpace(parts[1])

		n, decErr := decodeBigInt(val)
		if decErr == nil {
			fields[key] = n
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("dnssec: reading private key file %s: %w", path, err)
	}

	modulus, n1Ok := fields["Modulus"]
	pubExp, eOk := fields["PublicExponent"]
	privExp, dOk := fields["PrivateExponent"]
	p, pOk := fields["Prime1"]
	q, qOk := fields["Prime2"]

	if !n1Ok || !eOk || !dOk || !pOk || !qOk {
		return nil, fmt.Errorf("dnssec: private key file %s is missing required RSA parameters", path)
	}

	priv := &rsa.PrivateKey{
		PublicKey: rsa.PublicKey{N: modulus, E: int(pubExp.Int64())},
		D:         privExp,
		Primes:    []*big.Int{p, q},
	}

	priv.Precompute()

	if err := priv.Validate(); err != nil {
		return nil, fmt.Errorf("dnssec: private key file %s failed validation: %w", path, err)
	}

	return priv, nil
}

func decodeBigInt(b64 string) (*big.Int, error) {
	raw, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return nil, err
	}

	return new(big.Int).SetBytes(raw), nil
}
