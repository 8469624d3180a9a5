package appfs

import "embed"

// FS holds the SQL migrations, the email and prompt templates and static assets.
//
//go:embed migrations/*.sql templates/email/* templates/prompts/* assets/*
var FS embed.FS
