// Package singbox reads the server-side parameters a share link needs out of
// a sing-box configuration document.
//
// # Overview
//
// The editor that owns config.json hands the raw document to Parse, which
// accepts JSON with comments and trailing commas, then to Extract, which
// locates the VLESS inbound and pulls out the REALITY settings:
//
//	{
//	  "inbounds": [{
//	    "type": "vless",
//	    "tag": "vless-in",
//	    "listen_port": 443,
//	    "users": [{"name": "alice", "uuid": "...", "flow": "xtls-rprx-vision"}],
//	    "tls": {
//	      "enabled": true,
//	      "server_name": "www.example.com",
//	      "reality": {
//	        "enabled": true,
//	        "handshake": {"server": "www.example.com", "server_port": 443},
//	        "private_key": "...",
//	        "short_id": ["0123abcd"]
//	      }
//	    }
//	  }]
//	}
//
// # Inbound Selection
//
// With a tag, the first inbound whose type is "vless" and whose tag matches
// wins. Without a match (or without a tag) the first "vless" inbound is used.
//
// # Validation
//
// Records keep optional keys optional. Extract is the single validation pass
// that turns a missing or malformed value into one of the package errors:
//
//   - ErrNoMatchingInbound: no VLESS inbound in the document
//   - ErrMissingPort: listen_port absent or not numeric
//   - MissingFieldError: a required REALITY field is absent or blank
//   - PortRangeError: listen_port outside 1-65535
//
// The REALITY public key is never read from the document. It is derived from
// private_key with package reality.
package singbox
