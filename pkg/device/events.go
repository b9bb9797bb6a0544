package device

import "fmt"

// Event codes used by the bundled skills and the simulator.
const (
	EventVerifySuccessFinger    uint32 = 0x1301
	EventVerifySuccessFingerPIN uint32 = 0x1302
	EventIdentifySuccessFinger  uint32 = 0x1401
	EventVerifyFail             uint32 = 0x1600
	EventAccessDenied           uint32 = 0x1900
	EventUserEnrollSuccess      uint32 = 0x2000
	EventUserDeleteSuccess      uint32 = 0x2200
	EventUserDeleteAllSuccess   uint32 = 0x2300
)

var eventDescriptions = map[uint32]string{
	EventVerifySuccessFinger:    "1:1 authentication succeeded (fingerprint)",
	EventVerifySuccessFingerPIN: "1:1 authentication succeeded (fingerprint + PIN)",
	EventIdentifySuccessFinger:  "1:N authentication succeeded (fingerprint)",
	EventVerifyFail:             "1:1 authentication failed",
	EventAccessDenied:           "access denied",
	EventUserEnrollSuccess:      "user enrolled",
	EventUserDeleteSuccess:      "user deleted",
	EventUserDeleteAllSuccess:   "all users deleted",
}

// DescribeEvent returns the static description of a full event code.
func DescribeEvent(code uint32) string {
	if desc, ok := eventDescriptions[code]; ok {
		return desc
	}
	return fmt.Sprintf("unknown event 0x%04x", code)
}
