//go:build !prod

package gnuplotter

import "embed"

var webuiFiles embed.FS

func openBrowser(url string) {
	// Dev builds embed no page; open webui/index.html against the server
	// by hand.
}
