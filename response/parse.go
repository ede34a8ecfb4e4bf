// response/parse.go
package response

import (
	"mime"
	"strings"
)

// parseHeader splits a Content-Type or Content-Disposition value into its lower-cased main
// value and parameters. Malformed parameters are dropped rather than failing the whole value.
func parseHeader(header string) (string, map[string]string) {
	value, params, err := mime.ParseMediaType(header)
	if err != nil {
		value = strings.ToLower(strings.TrimSpace(strings.SplitN(header, ";", 2)[0]))
		params = map[string]string{}
	}
	return value, params
}
