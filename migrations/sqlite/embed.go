// Package sqlite embeds the SQL migrations for the sqlite dialect.
package sqlite

import "embed"

// CredentialsFS contains the credential store migrations.
//
//go:embed credentials/*.sql
var CredentialsFS embed.FS

// CredentialsDir is the directory within CredentialsFS where migrations live.
const CredentialsDir = "credentials"
