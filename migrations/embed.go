// Package migrations holds the ordered SQL schema files applied at boot.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
