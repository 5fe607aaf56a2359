package logger

import "log/slog"

// Standard field keys for structured logging. Use these consistently across
// the runtime so SM-plane and background-plane log lines aggregate cleanly.
const (
	// Endpoint identification
	KeyRpcID      = "rpc_id"      // 8-bit RPC endpoint ID
	KeySessionNum = "session_num" // session number at this host
	KeyReqType    = "req_type"    // request handler type (8-bit)
	KeyReqNum     = "req_num"     // request number within a session

	// Control plane
	KeySmEvent  = "sm_event"  // control-transport event: connect, receive, disconnect
	KeySmPkt    = "sm_pkt"    // session-management packet kind
	KeySmErr    = "sm_err"    // session-management error code
	KeyPeer     = "peer"      // control-transport peer address
	KeyPeerMode = "peer_mode" // client or server
	KeyHostname = "hostname"  // remote hostname as given by the user
	KeyUDPPort  = "udp_port"  // management UDP port

	// Threads and queues
	KeyBgThread   = "bg_thread"   // background worker index
	KeyThreadID   = "thread_id"   // dense thread ID from the TLS registry
	KeyQueueDepth = "queue_depth" // mailbox depth at drain time
	KeyCore       = "core"        // CPU core a thread is pinned to

	// Operation metadata
	KeyError      = "error"       // error message
	KeyDurationMs = "duration_ms" // operation duration in milliseconds
	KeyFreqGHz    = "freq_ghz"    // measured TSC frequency
)

// Typed attribute constructors for the hot fields.

// RpcID returns a slog.Attr for an RPC endpoint ID
func RpcID(id uint8) slog.Attr {
	return slog.Int(KeyRpcID, int(id))
}

// ReqType returns a slog.Attr for a request handler type
func ReqType(t uint8) slog.Attr {
	return slog.Int(KeyReqType, int(t))
}

// BgThread returns a slog.Attr for a background worker index
func BgThread(idx int) slog.Attr {
	return slog.Int(KeyBgThread, idx)
}

// Err returns a slog.Attr for an error value
func Err(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyError, "")
	}
	return slog.String(KeyError, err.Error())
}
