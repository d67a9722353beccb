package portal

import "embed"

// ContentFS holds the legal pages shipped with the binary. Set CONTENT_PATH
// to serve them from disk instead.
//
//go:embed content/legal
var ContentFS embed.FS
