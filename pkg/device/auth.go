package device

// FingerprintOnlyConfig returns a copy of current whose schedules are replaced
// by a single fingerprint-only schedule. Devices reporting
// extendedFingerprintOnlySupported get the extended mode, others fall back to
// biometric-only.
func FingerprintOnlyConfig(current *AuthConfig, caps Capabilities) *AuthConfig {
	out := current.Clone()
	if out == nil {
		out = &AuthConfig{}
	}

	mode := AuthModeBiometricOnly
	if extended, _ := caps.Lookup("extendedFingerprintOnlySupported"); extended {
		mode = AuthExtModeFingerprintOnly
	}
	out.Schedules = []AuthSchedule{{ScheduleID: 1, Mode: mode}}
	return out
}
