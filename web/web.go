package web

import "embed"

//go:embed *.html
var pages embed.FS

func Page(name string) ([]byte, error) {
	return pages.ReadFile(name)
}
