package verifier

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

const (
	headerSuffix = " wants you to sign in with your Ethereum account:"

	tagURI            = "URI: "
	tagVersion        = "Version: "
	tagChainID        = "Chain ID: "
	tagNonce          = "Nonce: "
	tagIssuedAt       = "Issued At: "
	tagExpirationTime = "Expiration Time: "
	tagNotBefore      = "Not Before: "
	tagRequestID      = "Request ID: "
	tagResources      = "Resources:"

	// MessageVersion is the only sign-in message version accepted.
	MessageVersion = "1"

	minNonceLength = 8
)

var errMalformedMessage = errors.New("malformed sign-in message")

// Message is an EIP-4361 (Sign-In with Ethereum) challenge message.
type Message struct {
	Scheme         string
	Domain         string
	Address        string
	Statement      string
	URI            string
	Version        string
	ChainID        int64
	Nonce          string
	IssuedAt       time.Time
	ExpirationTime *time.Time
	NotBefore      *time.Time
	RequestID      string
	Resources      []string

	// raw timestamps as they appeared in the parsed text, so String() can
	// reproduce the signed bytes exactly
	rawIssuedAt       string
	rawExpirationTime string
	rawNotBefore      string
}

// ParseMessage parses the canonical EIP-4361 text form.
func ParseMessage(text string) (*Message, error) {
	lines := strings.Split(text, "\n")
	m := &Message{}
	i := 0

	next := func() (string, bool) {
		if i >= len(lines) {
			return "", false
		}
		l := lines[i]
		i++
		return l, true
	}
	peek := func() string {
		if i >= len(lines) {
			return ""
		}
		return lines[i]
	}

	header, ok := next()
	if !ok || !strings.HasSuffix(header, headerSuffix) {
		return nil, fmt.Errorf("%w: missing header", errMalformedMessage)
	}
	authority := strings.TrimSuffix(header, headerSuffix)
	if scheme, rest, found := strings.Cut(authority, "://"); found {
		m.Scheme = scheme
		authority = rest
	}
	if authority == "" || strings.ContainsAny(authority, " /") {
		return nil, fmt.Errorf("%w: invalid domain", errMalformedMessage)
	}
	m.Domain = authority

	address, _ := next()
	if !strings.HasPrefix(address, "0x") || !common.IsHexAddress(address) {
		return nil, fmt.Errorf("%w: invalid address", errMalformedMessage)
	}
	m.Address = address

	if blank, _ := next(); blank != "" {
		return nil, fmt.Errorf("%w: expected blank line after address", errMalformedMessage)
	}

	// [ statement LF ] LF
	if line := peek(); line != "" {
		if strings.HasPrefix(line, tagURI) {
			return nil, fmt.Errorf("%w: expected blank line before fields", errMalformedMessage)
		}
		m.Statement = line
		i++
	}
	if blank, _ := next(); blank != "" {
		return nil, fmt.Errorf("%w: expected blank line before fields", errMalformedMessage)
	}

	required := func(tag string) (string, error) {
		line, ok := next()
		if !ok || !strings.HasPrefix(line, tag) {
			return "", fmt.Errorf("%w: missing %q", errMalformedMessage, strings.TrimSpace(tag))
		}
		return strings.TrimPrefix(line, tag), nil
	}
	optional := func(tag string) (string, bool) {
		if i < len(lines) && strings.HasPrefix(lines[i], tag) {
			i++
			return strings.TrimPrefix(lines[i-1], tag), true
		}
		return "", false
	}

	var err error
	if m.URI, err = required(tagURI); err != nil {
		return nil, err
	}
	if m.Version, err = required(tagVersion); err != nil {
		return nil, err
	}
	if m.Version != MessageVersion {
		return nil, fmt.Errorf("%w: unsupported version %q", errMalformedMessage, m.Version)
	}

	chain, err := required(tagChainID)
	if err != nil {
		return nil, err
	}
	m.ChainID, err = strconv.ParseInt(chain, 10, 64)
	if err != nil || m.ChainID <= 0 {
		return nil, fmt.Errorf("%w: invalid chain id", errMalformedMessage)
	}

	// nonce format is checked by the verifier after comparing it
	if m.Nonce, err = required(tagNonce); err != nil {
		return nil, err
	}

	// a missing issued at leaves IssuedAt zero; the verifier treats it as expired
	if raw, ok := optional(tagIssuedAt); ok {
		if m.IssuedAt, err = parseTimestamp(raw); err != nil {
			return nil, err
		}
		m.rawIssuedAt = raw
	}

	if raw, ok := optional(tagExpirationTime); ok {
		t, err := parseTimestamp(raw)
		if err != nil {
			return nil, err
		}
		m.ExpirationTime, m.rawExpirationTime = &t, raw
	}
	if raw, ok := optional(tagNotBefore); ok {
		t, err := parseTimestamp(raw)
		if err != nil {
			return nil, err
		}
		m.NotBefore, m.rawNotBefore = &t, raw
	}
	if raw, ok := optional(tagRequestID); ok {
		m.RequestID = raw
	}
	if line := peek(); line == tagResources {
		i++
		for i < len(lines) && strings.HasPrefix(lines[i], "- ") {
			m.Resources = append(m.Resources, strings.TrimPrefix(lines[i], "- "))
			i++
		}
	}

	if i != len(lines) {
		return nil, fmt.Errorf("%w: unexpected trailing content", errMalformedMessage)
	}
	return m, nil
}

// String renders the message in the canonical text form that wallets sign.
func (m *Message) String() string {
	var b strings.Builder

	if m.Scheme != "" {
		b.WriteString(m.Scheme + "://")
	}
	b.WriteString(m.Domain + headerSuffix + "\n")
	b.WriteString(m.Address + "\n\n")
	if m.Statement != "" {
		b.WriteString(m.Statement + "\n")
	}
	b.WriteString("\n")

	b.WriteString(tagURI + m.URI + "\n")
	b.WriteString(tagVersion + m.Version + "\n")
	b.WriteString(tagChainID + strconv.FormatInt(m.ChainID, 10) + "\n")
	b.WriteString(tagNonce + m.Nonce)
	if m.rawIssuedAt != "" || !m.IssuedAt.IsZero() {
		b.WriteString("\n" + tagIssuedAt + formatTimestamp(m.rawIssuedAt, &m.IssuedAt))
	}
	if m.ExpirationTime != nil {
		b.WriteString("\n" + tagExpirationTime + formatTimestamp(m.rawExpirationTime, m.ExpirationTime))
	}
	if m.NotBefore != nil {
		b.WriteString("\n" + tagNotBefore + formatTimestamp(m.rawNotBefore, m.NotBefore))
	}
	if m.RequestID != "" {
		b.WriteString("\n" + tagRequestID + m.RequestID)
	}
	if len(m.Resources) > 0 {
		b.WriteString("\n" + tagResources)
		for _, r := range m.Resources {
			b.WriteString("\n- " + r)
		}
	}
	return b.String()
}

func parseTimestamp(raw string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: invalid timestamp %q", errMalformedMessage, raw)
	}
	return t, nil
}

func formatTimestamp(raw string, t *time.Time) string {
	if raw != "" {
		return raw
	}
	return t.UTC().Format(time.RFC3339)
}

func validNonce(n string) bool {
	if len(n) < minNonceLength {
		return false
	}
	for _, r := range n {
		if !(r >= '0' && r <= '9' || r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z') {
			return false
		}
	}
	return true
}
