// Package lisproto implements the LIS (lab-information-system) ASTM-style
// ASCII record protocol: whole-buffer tokenization, record parsing, the
// result-transmission builder, and the per-connection session.
package lisproto

import "strings"

const (
	recordSep    = "\r"
	fieldSep     = "|"
	componentSep = "^"
	repeatSep    = "~"
)

// Tokenize splits buf (the accumulated inbound buffer) on CR, then groups
// complete records into transmissions: each spans an "H|"-prefixed record
// through the next "L|"-prefixed record, inclusive. Records outside such a
// span are discarded. The buffer is tokenized whole first and then
// windowed — not windowed by string-searching "L|" and re-scanning for CR
// — so a transmission boundary can never straddle a not-yet-received CR.
// remainder is the trailing partial record (no CR yet) to prepend to the
// next read.
func Tokenize(buf string) (transmissions [][]string, remainder string) {
	parts := strings.Split(buf, recordSep)
	if len(parts) == 0 {
		return nil, buf
	}
	remainder = parts[len(parts)-1]
	complete := parts[:len(parts)-1]

	var current []string
	inTransmission := false
	for _, rec := range complete {
		if rec == "" {
			continue
		}
		if !inTransmission {
			if strings.HasPrefix(rec, "H"+fieldSep) {
				inTransmission = true
				current = []string{rec}
			}
			continue
		}
		current = append(current, rec)
		if strings.HasPrefix(rec, "L"+fieldSep) {
			transmissions = append(transmissions, current)
			current = nil
			inTransmission = false
		}
	}
	return transmissions, remainder
}

// PatientRecord is a parsed P record.
type PatientRecord struct {
	PatientID string
	LastName  string
	FirstName string
	DOB       string
	Gender    string
}

// ParsePatientRecord parses a "P|..." record's fields (already split on the
// field separator).
func ParsePatientRecord(fields []string) PatientRecord {
	var p PatientRecord
	if len(fields) > 1 {
		p.PatientID = fields[1]
	}
	if len(fields) > 2 {
		name := strings.Split(fields[2], componentSep)
		if len(name) > 0 {
			p.LastName = name[0]
		}
		if len(name) > 1 {
			p.FirstName = name[1]
		}
	}
	if len(fields) > 3 {
		p.DOB = fields[3]
	}
	if len(fields) > 4 {
		p.Gender = fields[4]
	}
	return p
}

// OrderRecord is a parsed O record.
type OrderRecord struct {
	SampleID string
	Tests    []string
}

// ParseOrderRecord parses an "O|..." record's fields. Field 2 holds one or
// more test requests separated by '~', each test request's first
// '^'-component is the test code. Unknown test codes are still returned —
// the state store is what filters them against inventory.
func ParseOrderRecord(fields []string) OrderRecord {
	var o OrderRecord
	if len(fields) > 1 {
		o.SampleID = fields[1]
	}
	if len(fields) > 2 && fields[2] != "" {
		for _, rep := range strings.Split(fields[2], repeatSep) {
			comps := strings.Split(rep, componentSep)
			if len(comps) > 0 && comps[0] != "" {
				o.Tests = append(o.Tests, comps[0])
			}
		}
	}
	return o
}

// splitFields splits one record on the field separator.
func splitFields(record string) []string {
	return strings.Split(record, fieldSep)
}
