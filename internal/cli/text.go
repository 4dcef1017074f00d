package cli

import (
	"golang.org/x/text/unicode/norm"

	"github.com/ssured/drawbot/internal/value"
)

// nfc normalizes every string typed on the command line, so that a name
// entered through a decomposing input method addresses the same node as one
// written by a client.
func nfc(e value.Entry) value.Entry {
	switch val := e.(type) {
	case string:
		return norm.NFC.String(val)
	case value.Ref:
		return value.Ref{Subject: nfcSubject(val.Subject)}
	case []any:
		out := make([]any, len(val))
		for i, elem := range val {
			out[i] = nfc(elem)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, elem := range val {
			out[norm.NFC.String(k)] = nfc(elem)
		}
		return out
	}
	return e
}

func nfcSubject(s value.Subject) value.Subject {
	out := make(value.Subject, len(s))
	for i, seg := range s {
		out[i] = norm.NFC.String(seg)
	}
	return out
}
