package scaffold

import (
	"embed"
)

//go:embed templates/usersd.yaml templates/env.example templates/gitignore
var templatesFS embed.FS

// projectFile maps an embedded template to its path in the new project.
type projectFile struct {
	template string
	target   string
}

var projectFiles = []projectFile{
	{"templates/usersd.yaml", "usersd.yaml"},
	{"templates/env.example", ".env.example"},
	{"templates/gitignore", ".gitignore"},
}
