// Package sessionkey canonicalises a conversation identity into a
// deterministic, filesystem-safe string.
//
// A session key has the form:
//
//	agent:<a>:channel:<c>:account:<ac>:peer:<pk>:<pid>
//
// where pk is one of direct, group, channel. Every segment is
// normalised independently before assembly.
package sessionkey

import (
	"errors"
	"strings"
	"unicode"
)

// PeerKind identifies the shape of the conversation's counterparty.
type PeerKind string

const (
	PeerDirect  PeerKind = "direct"
	PeerGroup   PeerKind = "group"
	PeerChannel PeerKind = "channel"
)

// maxSegmentLen is the clamp applied to every normalised segment.
const maxSegmentLen = 128

// ErrMalformed signals that a string could not be parsed as a session
// key, distinct from a key that parses to empty-fallback segments.
var ErrMalformed = errors.New("sessionkey: malformed key")

// Params are the unnormalised inputs to Build.
type Params struct {
	Agent   string
	Channel string
	Account string
	Peer    PeerKind
	PeerID  string
}

// Build assembles the canonical session key string from params,
// normalising every segment independently.
func Build(p Params) string {
	agent := normalize(p.Agent, "main")
	channel := normalize(p.Channel, "unknown")
	account := normalize(p.Account, "default")
	peer := normalize(string(p.Peer), "unknown")
	peerID := normalize(p.PeerID, "unknown")

	var b strings.Builder
	b.WriteString("agent:")
	b.WriteString(agent)
	b.WriteString(":channel:")
	b.WriteString(channel)
	b.WriteString(":account:")
	b.WriteString(account)
	b.WriteString(":peer:")
	b.WriteString(peer)
	b.WriteString(":")
	b.WriteString(peerID)
	return b.String()
}

// Parse splits a canonical session key back into its five fields. The
// peer identifier segment may itself contain ':' separators; everything
// after the "peer:<pk>:" prefix is treated as one field.
func Parse(key string) (Params, error) {
	const (
		pAgent = "agent:"
		pChan  = ":channel:"
		pAcct  = ":account:"
		pPeer  = ":peer:"
	)

	if !strings.HasPrefix(key, pAgent) {
		return Params{}, ErrMalformed
	}
	rest := key[len(pAgent):]

	chanIdx := strings.Index(rest, pChan)
	if chanIdx < 0 {
		return Params{}, ErrMalformed
	}
	agent := rest[:chanIdx]
	rest = rest[chanIdx+len(pChan):]

	acctIdx := strings.Index(rest, pAcct)
	if acctIdx < 0 {
		return Params{}, ErrMalformed
	}
	channel := rest[:acctIdx]
	rest = rest[acctIdx+len(pAcct):]

	peerIdx := strings.Index(rest, pPeer)
	if peerIdx < 0 {
		return Params{}, ErrMalformed
	}
	account := rest[:peerIdx]
	rest = rest[peerIdx+len(pPeer):]

	// rest is now "<pk>:<pid...>" where pid may contain further ':'.
	colonIdx := strings.Index(rest, ":")
	if colonIdx < 0 {
		return Params{}, ErrMalformed
	}
	peer := rest[:colonIdx]
	peerID := rest[colonIdx+1:]

	if agent == "" || channel == "" || account == "" || peer == "" {
		return Params{}, ErrMalformed
	}

	return Params{
		Agent:   agent,
		Channel: channel,
		Account: account,
		Peer:    PeerKind(peer),
		PeerID:  peerID,
	}, nil
}

// ToSlug produces the filesystem-safe form of a (normalised) session
// key by replacing every ':' with "__".
func ToSlug(key string) string {
	return strings.ReplaceAll(key, ":", "__")
}

// normalize trims, lowercases, collapses whitespace to '_', strips any
// character outside [a-z0-9_.@+:-], clamps to maxSegmentLen code
// points, and substitutes fallback if the result is empty.
func normalize(s, fallback string) string {
	s = strings.TrimSpace(s)
	s = strings.ToLower(s)

	var b strings.Builder
	lastWasSpace := false
	for _, r := range s {
		if unicode.IsSpace(r) {
			if !lastWasSpace {
				b.WriteRune('_')
			}
			lastWasSpace = true
			continue
		}
		lastWasSpace = false
		if isAllowedRune(r) {
			b.WriteRune(r)
		}
	}

	out := clamp(b.String(), maxSegmentLen)
	if out == "" {
		return fallback
	}
	return out
}

func isAllowedRune(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z':
		return true
	case r >= '0' && r <= '9':
		return true
	case r == '_' || r == '.' || r == '@' || r == '+' || r == ':' || r == '-':
		return true
	default:
		return false
	}
}

func clamp(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
