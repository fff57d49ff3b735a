// Package fs exposes the embedded application assets:
// database migrations and email templates.
package fs

import "embed"

//go:embed migrations all:templates
var FS embed.FS
