// Package framing implements the two wire codecs — stream and datagram —
// that carry both data and in-band control frames. Both expose the same
// 16-bit header: the low bits are a payload length, the high bits an
// enumeration of control codes that preempt length interpretation.
package framing

import "gvtun/internal/settings"

// ControlFlag is a high-bit control code carried in the frame header's
// upper nibble. A non-zero flag preempts payload-length interpretation of
// the low bits.
type ControlFlag uint16

// Control codes, shifted into the header's upper nibble. These are the bit
// values used on the wire today; implementations must preserve them for
// compatibility with any peer already speaking this protocol version.
const (
	FlagNone        ControlFlag = 0
	FlagEchoRequest ControlFlag = 1 << settings.HeaderFlagShift
	FlagEchoReply   ControlFlag = 2 << settings.HeaderFlagShift
	FlagBadFrame    ControlFlag = 3 << settings.HeaderFlagShift
	FlagConnClose   ControlFlag = 4 << settings.HeaderFlagShift
)

// Header is the decoded form of the 16-bit frame header word.
type Header struct {
	Length uint16
	Flag   ControlFlag
}

// Encode packs length and flag into the 16-bit wire header word.
func Encode(length uint16, flag ControlFlag) uint16 {
	return (uint16(flag) &^ settings.HeaderLengthMask) | (length & settings.HeaderLengthMask)
}

// Decode splits a 16-bit wire header word into its length and flag parts.
// A non-zero flag means the length bits must not be interpreted as a
// payload length; callers must check Flag before trusting Length.
func Decode(word uint16) Header {
	flag := ControlFlag(word &^ settings.HeaderLengthMask)
	return Header{
		Length: word & settings.HeaderLengthMask,
		Flag:   flag,
	}
}
