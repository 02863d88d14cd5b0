package handshake

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"strings"
)

// splitFields tokenizes a handshake line the way the wire grammar allows:
// fields separated by any run of spaces, tabs, or colons. Messages are sent
// with a colon after the keyword ("CKEY: ..."), and parsers accept either
// separator.
func splitFields(line string) []string {
	return strings.FieldsFunc(line, func(r rune) bool {
		return r == ' ' || r == '\t' || r == ':'
	})
}

const bannerVersion = "1.0"

func banner() string {
	return "VTUN server ver " + bannerVersion
}

// parseBanner ignores the version field, per the protocol: the client
// accepts any banner shaped "VTUN server ver <v>".
func parseBanner(line string) error {
	if !strings.HasPrefix(line, "VTUN server ver ") {
		return fmt.Errorf("%w: bad banner %q", ErrProtocol, line)
	}
	return nil
}

// buildCKEY renders "CKEY: host-id hex(ckey)".
func buildCKEY(hostID string, ckey []byte) string {
	return fmt.Sprintf("CKEY: %s %s", hostID, hex.EncodeToString(ckey))
}

// parseCKEY parses "CKEY: host-id hex(ckey)".
func parseCKEY(line string) (hostID string, ckey []byte, err error) {
	fields := splitFields(line)
	if len(fields) != 3 || fields[0] != "CKEY" {
		return "", nil, fmt.Errorf("%w: malformed CKEY line", ErrProtocol)
	}
	ckey, err = hex.DecodeString(fields[2])
	if err != nil {
		return "", nil, fmt.Errorf("%w: bad ckey hex: %v", ErrProtocol, err)
	}
	return fields[1], ckey, nil
}

// buildSKEY renders "SKEY: hex(skey)".
func buildSKEY(skey []byte) string {
	return "SKEY: " + hex.EncodeToString(skey)
}

func parseSKEY(line string) (skey []byte, err error) {
	fields := splitFields(line)
	if len(fields) != 2 || fields[0] != "SKEY" {
		return nil, fmt.Errorf("%w: malformed SKEY line", ErrProtocol)
	}
	skey, err = hex.DecodeString(fields[1])
	if err != nil {
		return nil, fmt.Errorf("%w: bad skey hex: %v", ErrProtocol, err)
	}
	return skey, nil
}

func buildCACK(cack []byte) string {
	return "CACK: " + hex.EncodeToString(cack)
}

func parseCACK(line string) (cack []byte, err error) {
	fields := splitFields(line)
	if len(fields) != 2 || fields[0] != "CACK" {
		return nil, fmt.Errorf("%w: malformed CACK line", ErrProtocol)
	}
	cack, err = hex.DecodeString(fields[1])
	if err != nil {
		return nil, fmt.Errorf("%w: bad cack hex: %v", ErrProtocol, err)
	}
	return cack, nil
}

func buildFLAGS(flagString string, flhash []byte) string {
	return fmt.Sprintf("FLAGS: %s %s", flagString, hex.EncodeToString(flhash))
}

func parseFLAGS(line string) (flagString string, flhash []byte, err error) {
	fields := splitFields(line)
	if len(fields) != 3 || fields[0] != "FLAGS" {
		return "", nil, fmt.Errorf("%w: malformed FLAGS line", ErrProtocol)
	}
	flhash, err = hex.DecodeString(fields[2])
	if err != nil {
		return "", nil, fmt.Errorf("%w: bad flhash hex: %v", ErrProtocol, err)
	}
	return fields[1], flhash, nil
}

// encodeTimestamp renders the informational 4-byte big-endian wall-clock
// field. The server does not validate it on receipt.
func encodeTimestamp(unixSeconds uint32) []byte {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], unixSeconds)
	return b[:]
}
