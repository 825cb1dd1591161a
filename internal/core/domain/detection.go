package domain

import "time"

// ModelKind is the declared capability of a registered detection model.
type ModelKind string

const (
	ModelDetector   ModelKind = "detector"
	ModelRecognizer ModelKind = "recognizer"
	ModelClassifier ModelKind = "classifier"
)

// DetectionModel is a registry entry. Read-only from the pipeline's
// perspective; the active set is snapshotted once per job.
type DetectionModel struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Kind      ModelKind `json:"kind"`
	Version   string    `json:"version"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

type JobStatus string

const (
	JobPending    JobStatus = "pending"
	JobProcessing JobStatus = "processing"
	JobCompleted  JobStatus = "completed"
	JobFailed     JobStatus = "failed"
)

// Terminal reports whether the status is an end state. Jobs never leave
// a terminal state; retries create new jobs.
func (s JobStatus) Terminal() bool {
	return s == JobCompleted || s == JobFailed
}

// DetectionJob is one tracked analysis attempt. CompletedAt is set if
// and only if the status is terminal.
type DetectionJob struct {
	ID           string           `json:"id"`
	DocumentID   string           `json:"document_id"`
	UserID       string           `json:"user_id"`
	Status       JobStatus        `json:"status"`
	ModelsUsed   []DetectionModel `json:"models_used"`
	StartedAt    time.Time        `json:"started_at"`
	CompletedAt  *time.Time       `json:"completed_at,omitempty"`
	ErrorMessage string           `json:"error_message,omitempty"`
}

type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// DocumentScan records one successful analysis run. Immutable after
// creation; RedactedKey is nil when no redacted artifact was produced.
type DocumentScan struct {
	ID          string        `json:"id"`
	DocumentID  string        `json:"document_id"`
	JobID       string        `json:"job_id"`
	RiskLevel   RiskLevel     `json:"risk_level"`
	RedactedKey *string       `json:"redacted_key,omitempty"`
	Duration    time.Duration `json:"processing_ms"`
	CreatedAt   time.Time     `json:"created_at"`
}

// Category is the closed enumeration of sensitive information types.
type Category string

const (
	CategoryPII            Category = "pii"
	CategoryCreditCard     Category = "credit_card"
	CategoryPassport       Category = "passport"
	CategoryDriverLicense  Category = "driver_license"
	CategoryBankAccount    Category = "bank_account"
	CategorySocialSecurity Category = "social_security"
	CategoryPhoneNumber    Category = "phone_number"
	CategoryEmail          Category = "email"
	CategoryAddress        Category = "address"
	CategoryMedicalRecord  Category = "medical_record"
	CategoryOther          Category = "other"
)

// Region locates a finding in source-artifact coordinates. Frame is set
// for video findings, Page for pdf findings.
type Region struct {
	X      int  `json:"x"`
	Y      int  `json:"y"`
	Width  int  `json:"width"`
	Height int  `json:"height"`
	Frame  *int `json:"frame,omitempty"`
	Page   *int `json:"page,omitempty"`
}

// Finding is one detected instance of sensitive information. Count
// carries merged duplicates (same category, same region). Redacted is
// set once the redactor confirms the mask for this finding.
type Finding struct {
	ID         string   `json:"id"`
	ScanID     string   `json:"scan_id,omitempty"`
	Category   Category `json:"category"`
	Confidence float64  `json:"confidence"`
	Region     *Region  `json:"region,omitempty"`
	Count      int      `json:"count"`
	Redacted   bool     `json:"redacted"`
}

// Analysis is the normalized output of a per-modality analyzer.
// Discarded counts instances dropped below the confidence threshold.
type Analysis struct {
	Findings  []Finding
	Discarded int
}

// Instances is the total number of sensitive instances across findings,
// honoring per-finding merge counts.
func Instances(findings []Finding) int {
	total := 0
	for _, f := range findings {
		if f.Count > 0 {
			total += f.Count
		} else {
			total++
		}
	}
	return total
}
