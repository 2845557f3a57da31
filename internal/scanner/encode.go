package scanner

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/buemura/redirhunt/pkg/types"
)

// BuildTestURL appends param=<encoded destination> to baseURL. The pair is
// joined with '&' when baseURL already carries a query string.
func BuildTestURL(baseURL, param, destination string, enc types.Encoding) string {
	sep := "?"
	if i := strings.IndexByte(baseURL, '?'); i >= 0 {
		sep = "&"
		if i == len(baseURL)-1 || strings.HasSuffix(baseURL, "&") {
			sep = ""
		}
	}
	return baseURL + sep + url.QueryEscape(param) + "=" + EncodeDestination(destination, enc)
}

// EncodeDestination renders destination for the given encoding mode.
//
// Raw mode only escapes bytes that would corrupt the request line or cut the
// query short. Encoded mode percent-encodes everything, writes spaces as '+'
// and also turns every '.' into %2E.
func EncodeDestination(destination string, enc types.Encoding) string {
	if enc == types.EncodingDotted {
		return strings.ReplaceAll(url.QueryEscape(destination), ".", "%2E")
	}

	var b strings.Builder
	b.Grow(len(destination))
	for i := 0; i < len(destination); i++ {
		c := destination[i]
		if c <= ' ' || c == '#' || c >= 0x7f {
			fmt.Fprintf(&b, "%%%02X", c)
			continue
		}
		b.WriteByte(c)
	}
	return b.String()
}
