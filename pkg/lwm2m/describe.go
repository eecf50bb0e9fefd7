package lwm2m

import (
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/gregLibert/sim-bootstrap/pkg/tlv"
)

// securityResources names the resources of the LwM2M Security object (0),
// the object a bootstrap configuration provisions.
var securityResources = map[uint16]string{
	0:  "LwM2M Server URI",
	1:  "Bootstrap-Server",
	2:  "Security Mode",
	3:  "Public Key or Identity",
	4:  "Server Public Key",
	5:  "Secret Key",
	6:  "SMS Security Mode",
	10: "Short Server ID",
	11: "Client Hold Off Time",
	12: "Bootstrap-Server Account Timeout",
}

// ResourceName returns the Security object name of resource id, or "".
func ResourceName(id uint16) string {
	return securityResources[id]
}

// Describe writes one line per entry, nested entries indented.
func Describe(w io.Writer, entries []Entry) error {
	var sb strings.Builder
	describe(&sb, entries, 0)
	_, err := io.WriteString(w, sb.String())
	return err
}

func describe(sb *strings.Builder, entries []Entry, depth int) {
	indent := strings.Repeat("  ", depth)
	for _, e := range entries {
		name := ""
		if e.Kind == Resource || e.Kind == MultipleResource {
			if n := ResourceName(e.ID); n != "" {
				name = " (" + n + ")"
			}
		}

		if e.Kind.nested() {
			fmt.Fprintf(sb, "%s- %s %d%s\n", indent, e.Kind, e.ID, name)
			describe(sb, e.Children, depth+1)
			continue
		}
		fmt.Fprintf(sb, "%s- %s %d%s: %s\n", indent, e.Kind, e.ID, name, formatValue(e.Value))
	}
}

// formatValue prints printable text as a quoted string and anything else as
// hex, small values with their integer reading.
func formatValue(v []byte) string {
	if len(v) > 1 && utf8.Valid(v) && tlv.MakeSafeASCII(v) == string(v) {
		return fmt.Sprintf("%q", v)
	}
	hex := tlv.EncodeUpperString(v)
	if i, err := (Entry{Value: v}).Int(); err == nil {
		return fmt.Sprintf("%s (Dec: %d)", hex, i)
	}
	return hex
}
