package entity

import (
	"strings"
)

const hexDigits = "0123456789ABCDEF"

// escape percent-encodes every byte outside [A-Za-z0-9._-]. With strict
// set the dot is encoded as well.
func escape(s string, strict bool) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '_', c == '-':
			b.WriteByte(c)
		case c == '.' && !strict:
			b.WriteByte(c)
		default:
			b.WriteByte('%')
			b.WriteByte(hexDigits[c>>4])
			b.WriteByte(hexDigits[c&0x0f])
		}
	}
	return b.String()
}

// DeviceID identifies a physical device across restarts.
func DeviceID(installation, serial, device string) string {
	return escape(installation, false) + "/" + escape(serial, false) + "/" + escape(device, false)
}

type idParts struct {
	scope  string
	index  string
	hasCmp bool
	subAPI string
	hasSub bool
}

// IDOption adds an optional qualifier to an entity id.
type IDOption func(*idParts)

// WithComponent qualifies the id with a sub-component such as circuit 1.
func WithComponent(scope, index string) IDOption {
	return func(p *idParts) {
		p.scope, p.index, p.hasCmp = scope, index, true
	}
}

// withSubAPI qualifies the id with a vendor sub-device identifier. The
// ViCare client reports one logical device per device id, so no setup path
// passes it yet; the id format reserves the slot.
func withSubAPI(id string) IDOption {
	return func(p *idParts) {
		p.subAPI, p.hasSub = id, true
	}
}

// EntityID builds a stable id from the device id, the descriptor key and
// optional qualifiers. Distinct inputs never produce the same id and the
// result contains no MQTT wildcards.
func EntityID(deviceID, key string, opts ...IDOption) string {
	var p idParts
	for _, opt := range opts {
		opt(&p)
	}
	id := deviceID + "/" + escape(key, false)
	if p.hasCmp {
		id += "/c." + escape(p.scope, true) + "." + escape(p.index, true)
	}
	if p.hasSub {
		id += "/s." + escape(p.subAPI, true)
	}
	return id
}
