package domain

// AttendanceStatus is the recorded presence of a student for a session.
type AttendanceStatus string

const (
	AttendancePresent    AttendanceStatus = "hadir"
	AttendancePermission AttendanceStatus = "izin"
	AttendanceSick       AttendanceStatus = "sakit"
	AttendanceAbsent     AttendanceStatus = "alpa"
)

// AttendanceRecord is one row returned by the ABSENTA attendance API.
type AttendanceRecord struct {
	ID          string           `json:"id"`
	StudentID   string           `json:"student_id"`
	StudentName string           `json:"student_name"`
	ClassName   string           `json:"class_name"`
	Subject     string           `json:"subject"`
	Date        string           `json:"date"`
	Status      AttendanceStatus `json:"status"`
	Note        string           `json:"note,omitempty"`
}

// ExportSummary describes the last completed attendance export.
type ExportSummary struct {
	Records    int    `json:"records"`
	Batches    int    `json:"batches"`
	Cached     int    `json:"cached"`
	Output     string `json:"output"`
	FinishedAt int64  `json:"finished_at"`
}
