// Package crypto holds the digest and credential primitives the legacy
// protocols are built on: CRC-16 checksums, hex MD5 digests and the random
// challenge/token material exchanged during login.
package crypto

import (
	"crypto/md5"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"strings"
)

const challengeChartable = "ABCDEFGHIJKLMNOPQRSTUVWXYZ1234567890"

// tokenRandomBytes is the amount of entropy behind an auth token.
const tokenRandomBytes = 96

// MD5Hex returns the lowercase hex MD5 digest of s.
func MD5Hex(s string) string {
	sum := md5.Sum([]byte(s))
	return hex.EncodeToString(sum[:])
}

// Challenge returns a random challenge string of length n over the
// protocol's A-Z0-9 chartable.
func Challenge(n int) string {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		panic("crypto: rand failed: " + err.Error())
	}
	out := make([]byte, n)
	for i, b := range buf {
		out[i] = challengeChartable[int(b)%len(challengeChartable)]
	}
	return string(out)
}

// AuthToken returns a fresh opaque auth token. The NDS prefix is what the
// client firmware expects to echo back verbatim.
func AuthToken() string {
	buf := make([]byte, tokenRandomBytes)
	if _, err := rand.Read(buf); err != nil {
		panic("crypto: rand failed: " + err.Error())
	}
	return "NDS" + base64.URLEncoding.EncodeToString(buf)
}

// LoginProof computes the challenge-response digest exchanged on the match
// connection. Client and server compute it with the challenge order swapped:
// the client proves with (client, server), the server with (server, client).
func LoginProof(challengeHash, authToken, inChallenge, outChallenge string) string {
	var b strings.Builder
	b.WriteString(challengeHash)
	b.WriteString(strings.Repeat(" ", 48))
	b.WriteString(authToken)
	b.WriteString(inChallenge)
	b.WriteString(outChallenge)
	b.WriteString(challengeHash)
	return MD5Hex(b.String())
}
