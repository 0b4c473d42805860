// Package web holds the embedded single-page chat client.
package web

import _ "embed"

// Index is the chat page served at the root path.
//
//go:embed index.html
var Index []byte
