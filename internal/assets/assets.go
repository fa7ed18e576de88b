package assets

import _ "embed"

// Embedded verification page and collector script.
// These are compiled into the binary at build time.

//go:embed verify.html
var VerifyHTML []byte

//go:embed collector.js
var CollectorJS []byte
