package link

// Code distinguishes why the link engine stopped.
type Code int

const (
	// CodeGraceful means the local side initiated a clean shutdown.
	CodeGraceful Code = iota
	// CodePeerClose means the peer sent (or the engine inferred from EOF)
	// a connection-close.
	CodePeerClose
	// CodeError means a transport or fatal transform error occurred.
	CodeError
	// CodeTimeout means the keep-alive max-fail threshold was exceeded.
	CodeTimeout
	// CodeReload means the session was asked to reconfigure and restart.
	CodeReload
)
