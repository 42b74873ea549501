package visualization

import "embed"

//go:embed templates/graph.html.tmpl
var templates embed.FS
