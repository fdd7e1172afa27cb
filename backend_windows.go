//go:build windows

package reactor

// Windows support is limited to compiling; IOCP's completion-based model
// doesn't map onto the readiness-based Backend interface without a
// socket-specific shim (WSAEventSelect or a Winsock AFD trick), which is
// out of scope here. newWindowsBackend always fails so NewBackend falls
// through to ErrBackendUnavailable, matching how the teacher's own IOCP
// poller left dispatchEvents effectively a no-op on this platform.
func newWindowsBackend() (Backend, error) {
	return nil, ErrBackendUnavailable
}

func platformBackendCandidates() []func() (Backend, error) {
	return []func() (Backend, error){newWindowsBackend}
}
