package lisproto

import (
	"fmt"
	"time"

	"github.com/labsim/atellica-sim/internal/simstate"
)

// BuildResultTransmission renders a completed sample as an ASTM-style
// result transmission: header, patient, order, one result record per test,
// and a terminator. now is taken as a parameter so the timestamp fields are
// computed once per call.
func BuildResultTransmission(sample simstate.Sample, now time.Time) string {
	var b []string

	b = append(b, fmt.Sprintf("H|LIS|ATELLICA|%s|1|1|1\r", now.Format("20060102150405")))

	patientID, last, first, dob, gender := "", "", "", "", ""
	if sample.Patient != nil {
		patientID = sample.Patient.PatientID
		last = sample.Patient.LastName
		first = sample.Patient.FirstName
		dob = sample.Patient.DOB
		gender = sample.Patient.Gender
	}
	b = append(b, fmt.Sprintf("P|%s|%s^%s|%s|%s|||\r", patientID, last, first, dob, gender))

	dateStr := now.Format("20060102")
	b = append(b, fmt.Sprintf("O|%s||%s||||||F||||\r", sample.ID, dateStr))

	timeStr := now.Format("150405")
	for _, test := range sample.Tests {
		r, ok := sample.Results[test]
		if !ok {
			continue
		}
		b = append(b, fmt.Sprintf("R|%s||%s|%s||%s||%s|%s|ATL|F|||\r", test, r.Value, r.Unit, r.Flags, dateStr, timeStr))
	}

	b = append(b, "L|1|1\r")

	out := ""
	for _, rec := range b {
		out += rec
	}
	return out
}
