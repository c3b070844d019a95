package entities

import "time"

// Report is immutable once appended to a patient's profile.
type Report struct {
	ReportID  string    `json:"report_id"`
	Title     string    `json:"title"`
	Text      string    `json:"text"`
	AuthorID  string    `json:"author_id"`
	Timestamp time.Time `json:"timestamp"`
}

// ClinicalProfile holds the protected fields of a patient record.
type ClinicalProfile struct {
	Reports    []Report       `json:"reports"`
	HealthData map[string]any `json:"health_data"`
}

// AppendReport adds report at the end of the sequence. The timestamp is
// clamped to the last report so the sequence never goes backwards.
func (c *ClinicalProfile) AppendReport(report Report) Report {
	if c.Reports == nil {
		c.Reports = make([]Report, 0, 1)
	}
	if n := len(c.Reports); n > 0 {
		last := c.Reports[n-1].Timestamp
		if report.Timestamp.Before(last) {
			report.Timestamp = last
		}
	}
	c.Reports = append(c.Reports, report)
	return report
}

// MergeHealthData sets each applied field, leaving other fields untouched.
func (c *ClinicalProfile) MergeHealthData(applied map[string]any) {
	if c.HealthData == nil {
		c.HealthData = make(map[string]any, len(applied))
	}
	for key, value := range applied {
		c.HealthData[key] = value
	}
}

func (c ClinicalProfile) Clone() ClinicalProfile {
	out := ClinicalProfile{
		Reports:    append([]Report(nil), c.Reports...),
		HealthData: make(map[string]any, len(c.HealthData)),
	}
	for key, value := range c.HealthData {
		out.HealthData[key] = value
	}
	return out
}
