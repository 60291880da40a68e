package dts

import (
	"fmt"
	"strings"
)

// UserID identifies who or what triggered an audit event.
type UserID uint8

// Fixed public actor enumeration. The values are part of the exchange
// format and must not be renumbered.
const (
	UserSystem       UserID = 0
	UserAdmin        UserID = 1
	UserOperator     UserID = 2
	UserService      UserID = 3
	UserUnauthorized UserID = 255
)

func (u UserID) String() string {
	switch u {
	case UserSystem:
		return "system"
	case UserAdmin:
		return "admin"
	case UserOperator:
		return "operator"
	case UserService:
		return "service"
	case UserUnauthorized:
		return "unauthorized"
	}
	return fmt.Sprintf("user(%d)", uint8(u))
}

// Severity is the event criticality level, ordered ascending.
type Severity uint8

// Fixed public severity enumeration, part of the exchange format.
const (
	SeverityDebug    Severity = 0
	SeverityInfo     Severity = 1
	SeverityWarning  Severity = 2
	SeverityError    Severity = 3
	SeverityCritical Severity = 4
)

func (s Severity) String() string {
	switch s {
	case SeverityDebug:
		return "debug"
	case SeverityInfo:
		return "info"
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	case SeverityCritical:
		return "critical"
	}
	return fmt.Sprintf("severity(%d)", uint8(s))
}

// timestampLayout renders millisecond-resolution UTC timestamps as
// YYYY-MM-DDTHH:MM:SS.mmmZ. The textual form is hashed, so the layout
// is fixed for the lifetime of the format.
const timestampLayout = "2006-01-02T15:04:05.000Z"

// Entry is the decoded form of one serialized audit record. Entries are
// value objects: produced once, never mutated, and they carry no
// reference back to the chain that created them.
type Entry struct {
	DeviceID     string
	Timestamp    string
	UserID       UserID
	Severity     Severity
	Message      string
	PreviousHash string
	ChainHash    string
}

// payload builds the exact byte sequence that is hashed into ChainHash:
// device, timestamp, actor, severity, raw message, and the hex rendering
// of the previous digest, joined by '|' in this fixed order.
func (e Entry) payload() string {
	return fmt.Sprintf("%s|%s|%d|%d|%s|%s",
		e.DeviceID, e.Timestamp, uint8(e.UserID), uint8(e.Severity),
		e.Message, e.PreviousHash)
}

// encodeEntry serializes an entry in the fixed exchange format. Field
// order and escaping are byte-exact; a general JSON encoder is not used
// because verification hashes depend on the precise output bytes.
func encodeEntry(e Entry) string {
	var b strings.Builder
	b.Grow(len(e.Message) + len(e.DeviceID) + 220)
	b.WriteString(`{"device_id":"`)
	b.WriteString(escapeText(e.DeviceID))
	b.WriteString(`","timestamp":"`)
	b.WriteString(e.Timestamp)
	b.WriteString(`","user_id":`)
	fmt.Fprintf(&b, "%d", uint8(e.UserID))
	b.WriteString(`,"severity":`)
	fmt.Fprintf(&b, "%d", uint8(e.Severity))
	b.WriteString(`,"message":"`)
	b.WriteString(escapeText(e.Message))
	b.WriteString(`","previous_hash":"`)
	b.WriteString(e.PreviousHash)
	b.WriteString(`","chain_hash":"`)
	b.WriteString(e.ChainHash)
	b.WriteString(`"}`)
	return b.String()
}

// escapeText escapes quote, backslash, and control characters so the
// result parses as a valid embedded string literal. All other bytes
// pass through untouched.
func escapeText(s string) string {
	if !needsEscape(s) {
		return s
	}
	var b strings.Builder
	b.Grow(len(s) + 8)
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch c {
		case '"':
			b.WriteString(`\"`)
		case '\\':
			b.WriteString(`\\`)
		case '\b':
			b.WriteString(`\b`)
		case '\f':
			b.WriteString(`\f`)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case '\t':
			b.WriteString(`\t`)
		default:
			if c < 0x20 {
				fmt.Fprintf(&b, `\u%04x`, c)
			} else {
				b.WriteByte(c)
			}
		}
	}
	return b.String()
}

func needsEscape(s string) bool {
	for i := 0; i < len(s); i++ {
		if c := s[i]; c == '"' || c == '\\' || c < 0x20 {
			return true
		}
	}
	return false
}

// unescapeText reverses escapeText. Unknown escape sequences fail.
func unescapeText(s string) (string, error) {
	if !strings.ContainsRune(s, '\\') {
		return s, nil
	}
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c != '\\' {
			b.WriteByte(c)
			continue
		}
		i++
		if i >= len(s) {
			return "", fmt.Errorf("truncated escape sequence")
		}
		switch s[i] {
		case '"':
			b.WriteByte('"')
		case '\\':
			b.WriteByte('\\')
		case 'b':
			b.WriteByte('\b')
		case 'f':
			b.WriteByte('\f')
		case 'n':
			b.WriteByte('\n')
		case 'r':
			b.WriteByte('\r')
		case 't':
			b.WriteByte('\t')
		case 'u':
			if i+4 >= len(s) {
				return "", fmt.Errorf("truncated \\u escape")
			}
			var v uint32
			for j := 1; j <= 4; j++ {
				d, ok := hexDigit(s[i+j])
				if !ok {
					return "", fmt.Errorf("invalid \\u escape %q", s[i+1:i+5])
				}
				v = v<<4 | uint32(d)
			}
			b.WriteRune(rune(v))
			i += 4
		default:
			return "", fmt.Errorf("unknown escape sequence \\%c", s[i])
		}
	}
	return b.String(), nil
}

func hexDigit(c byte) (byte, bool) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', true
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, true
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10, true
	}
	return 0, false
}

// DecodeEntry strictly parses one serialized entry. The format has a
// fixed field order, so decoding walks the text in that order instead
// of accepting arbitrary JSON. Any deviation fails.
func DecodeEntry(raw string) (Entry, error) {
	var e Entry
	p := parser{s: raw}

	if err := p.literal(`{"device_id":"`); err != nil {
		return e, err
	}
	dev, err := p.escapedString()
	if err != nil {
		return e, fmt.Errorf("device_id: %w", err)
	}
	e.DeviceID = dev

	if err := p.literal(`,"timestamp":"`); err != nil {
		return e, err
	}
	ts, err := p.escapedString()
	if err != nil {
		return e, fmt.Errorf("timestamp: %w", err)
	}
	e.Timestamp = ts

	if err := p.literal(`,"user_id":`); err != nil {
		return e, err
	}
	uid, err := p.integer()
	if err != nil {
		return e, fmt.Errorf("user_id: %w", err)
	}
	if uid > 255 {
		return e, fmt.Errorf("user_id %d out of range", uid)
	}
	e.UserID = UserID(uid)

	if err := p.literal(`,"severity":`); err != nil {
		return e, err
	}
	sev, err := p.integer()
	if err != nil {
		return e, fmt.Errorf("severity: %w", err)
	}
	if sev > 255 {
		return e, fmt.Errorf("severity %d out of range", sev)
	}
	e.Severity = Severity(sev)

	if err := p.literal(`,"message":"`); err != nil {
		return e, err
	}
	msg, err := p.escapedString()
	if err != nil {
		return e, fmt.Errorf("message: %w", err)
	}
	e.Message = msg

	if err := p.literal(`,"previous_hash":"`); err != nil {
		return e, err
	}
	prev, err := p.hexDigest()
	if err != nil {
		return e, fmt.Errorf("previous_hash: %w", err)
	}
	e.PreviousHash = prev

	if err := p.literal(`","chain_hash":"`); err != nil {
		return e, err
	}
	cur, err := p.hexDigest()
	if err != nil {
		return e, fmt.Errorf("chain_hash: %w", err)
	}
	e.ChainHash = cur

	if err := p.literal(`"}`); err != nil {
		return e, err
	}
	if p.pos != len(p.s) {
		return e, fmt.Errorf("trailing data after entry")
	}
	return e, nil
}

// parser is a minimal cursor over the fixed entry format.
type parser struct {
	s   string
	pos int
}

func (p *parser) literal(lit string) error {
	if !strings.HasPrefix(p.s[p.pos:], lit) {
		return fmt.Errorf("malformed entry at offset %d: expected %q", p.pos, lit)
	}
	p.pos += len(lit)
	return nil
}

// escapedString consumes up to the next unescaped quote and unescapes.
// The closing quote is consumed.
func (p *parser) escapedString() (string, error) {
	start := p.pos
	for p.pos < len(p.s) {
		switch p.s[p.pos] {
		case '\\':
			p.pos += 2
		case '"':
			out, err := unescapeText(p.s[start:p.pos])
			if err != nil {
				return "", err
			}
			p.pos++
			return out, nil
		default:
			p.pos++
		}
	}
	return "", fmt.Errorf("unterminated string")
}

func (p *parser) integer() (uint64, error) {
	start := p.pos
	for p.pos < len(p.s) && p.s[p.pos] >= '0' && p.s[p.pos] <= '9' {
		p.pos++
	}
	if p.pos == start || p.pos-start > 3 {
		return 0, fmt.Errorf("malformed integer at offset %d", start)
	}
	var v uint64
	for _, c := range []byte(p.s[start:p.pos]) {
		v = v*10 + uint64(c-'0')
	}
	return v, nil
}

// hexDigest consumes exactly 64 lowercase hex characters. The closing
// quote is left for the caller so the surrounding literal check stays
// explicit.
func (p *parser) hexDigest() (string, error) {
	if p.pos+DigestSize*2 > len(p.s) {
		return "", fmt.Errorf("truncated digest at offset %d", p.pos)
	}
	out := p.s[p.pos : p.pos+DigestSize*2]
	if _, err := ParseDigest(out); err != nil {
		return "", err
	}
	p.pos += DigestSize * 2
	return out, nil
}
