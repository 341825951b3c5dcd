package lesc

// AdvRecords holds the advertising data records a report carries. Only
// the records the pairing flow cares about are modeled; anything else
// the link layer parsed stays in Raw.
type AdvRecords struct {
	CompleteLocalName string
	ShortLocalName    string
	Raw               []byte
}

// LocalName returns the advertised device name, preferring the
// complete form over the shortened one. ok is false if the report
// carried neither.
func (a AdvRecords) LocalName() (string, bool) {
	if a.CompleteLocalName != "" {
		return a.CompleteLocalName, true
	}
	if a.ShortLocalName != "" {
		return a.ShortLocalName, true
	}
	return "", false
}
