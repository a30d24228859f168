package event

// Wire messages for the external scanning engine. The engine consumes
// ScanTask messages on the task channel and publishes ResultMessage values
// on the results channel. Field names follow the engine's JSON contract.

// ScanTask describes one dispatched scan for the engine.
type ScanTask struct {
	ScanID     string   `json:"scanId"`
	Target     string   `json:"target"`
	TargetType string   `json:"targetType"`
	Profile    string   `json:"profile"`
	Modules    []string `json:"modules"`
	OrgID      string   `json:"orgId"`
}

// Result statuses reported by the engine.
const (
	ResultStatusProgress  = "PROGRESS"
	ResultStatusCompleted = "COMPLETED"
	ResultStatusFailed    = "FAILED"
)

// ResultMessage is one message on the inbound results channel. The shape is
// discriminated by Status: PROGRESS carries Progress/CurrentModule/Message,
// COMPLETED carries Assets/Findings/Summary, FAILED carries Error.
type ResultMessage struct {
	ScanID        string           `json:"scanId"`
	Status        string           `json:"status"`
	Progress      int              `json:"progress,omitempty"`
	CurrentModule string           `json:"currentModule,omitempty"`
	Message       string           `json:"message,omitempty"`
	Assets        []AssetPayload   `json:"assets,omitempty"`
	Findings      []FindingPayload `json:"findings,omitempty"`
	Summary       *SummaryPayload  `json:"summary,omitempty"`
	Error         string           `json:"error,omitempty"`
}

// AssetPayload is a discovered asset as reported by the engine.
type AssetPayload struct {
	Type     string         `json:"type"`
	Value    string         `json:"value"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// FindingPayload is a vulnerability finding as reported by the engine.
// Category is a free-form string here; the reconciler maps it through the
// closed category table.
type FindingPayload struct {
	Title             string         `json:"title"`
	Severity          string         `json:"severity"`
	Category          string         `json:"category"`
	Description       string         `json:"description"`
	Solution          string         `json:"solution,omitempty"`
	CVEID             string         `json:"cve_id,omitempty"`
	CVSSScore         *float64       `json:"cvss_score,omitempty"`
	AffectedComponent string         `json:"affected_component,omitempty"`
	Evidence          string         `json:"evidence,omitempty"`
	References        []string       `json:"references,omitempty"`
	Metadata          map[string]any `json:"metadata,omitempty"`
}

// SummaryPayload is the engine's aggregate summary for a completed scan.
type SummaryPayload struct {
	TotalFindings  int            `json:"total_findings"`
	SeverityCounts map[string]int `json:"severity_counts"`
	RiskScore      int            `json:"risk_score"`
	SecurityScore  int            `json:"security_score"`
}
