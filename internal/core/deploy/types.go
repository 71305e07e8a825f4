package deploy

// Element modes declared through data-wording-mode.
const (
	ModeText       = "text"
	ModeHTML       = "html"
	ModeAttrPrefix = "attr:"
)

// DonePageLabel is reported as CurrentPage on the final progress tick.
const DonePageLabel = "Done"

// unknownPageLabel names a page whose name and slug both failed to resolve.
const unknownPageLabel = "Unknown page"

// currentPageLabel is the page name of a single-page report.
const currentPageLabel = "Current page"

// ScannedElement is one tagged element found on the active page.
type ScannedElement struct {
	Key      string `json:"key"`
	Selector string `json:"selector"`
	Mode     string `json:"mode"`
}

// ScanResult is the outcome of scanning the active page.
type ScanResult struct {
	Elements []ScannedElement `json:"elements"`
	Total    int              `json:"total"`
}

// ChangeRecord is a preview line: a scanned key and its replacement, if any.
type ChangeRecord struct {
	Key      string `json:"key"`
	HasValue bool   `json:"hasValue"`
	NewValue string `json:"newValue,omitempty"`
}

// PreviewResult is the change-set of the active page.
type PreviewResult struct {
	Changes     []ChangeRecord `json:"changes"`
	MissingKeys []string       `json:"missingKeys"`
	UnusedKeys  []string       `json:"unusedKeys"`
}

// ChangeStatus classifies one applied change.
type ChangeStatus string

const (
	StatusSuccess ChangeStatus = "success"
	StatusError   ChangeStatus = "error"
	StatusWarning ChangeStatus = "warning"
)

// ChangeReport records the outcome of one element mutation.
type ChangeReport struct {
	Key             string       `json:"key"`
	OldValue        string       `json:"old_value"`
	NewValue        string       `json:"new_value"`
	ElementSelector string       `json:"element_selector"`
	Status          ChangeStatus `json:"status"`
	Message         string       `json:"message,omitempty"`
}

// Stats are the running tallies of an apply pass.
type Stats struct {
	TotalKeys int `json:"total_keys"`
	Applied   int `json:"applied"`
	Failed    int `json:"failed"`
	Missing   int `json:"missing"`
}

// Add sums s and o field by field.
func (s Stats) Add(o Stats) Stats {
	return Stats{
		TotalKeys: s.TotalKeys + o.TotalKeys,
		Applied:   s.Applied + o.Applied,
		Failed:    s.Failed + o.Failed,
		Missing:   s.Missing + o.Missing,
	}
}

// DeploymentReport is the audit record of one apply pass. A multi-page run
// produces a synthetic top-level report with empty Changes whose Stats sum
// the nested per-page reports.
type DeploymentReport struct {
	DeploymentID     string             `json:"deployment_id"`
	SiteID           string             `json:"site_id"`
	Timestamp        string             `json:"timestamp"`
	PageName         string             `json:"page_name"`
	Changes          []ChangeReport     `json:"changes"`
	Warnings         []string           `json:"warnings"`
	Errors           []string           `json:"errors"`
	Stats            Stats              `json:"stats"`
	MultiPageReports []DeploymentReport `json:"multiPageReports,omitempty"`
	Cancelled        bool               `json:"cancelled,omitempty"`
}

// ScanProgress is one progress tick of a multi-page run.
type ScanProgress struct {
	CurrentPage string `json:"currentPage"`
	Completed   int    `json:"completed"`
	Total       int    `json:"total"`
}

// ProgressFunc receives progress ticks. It must not block for long and must
// not panic; a nil ProgressFunc is allowed.
type ProgressFunc func(ScanProgress)

// PageStats summarises one page preview.
type PageStats struct {
	Total     int `json:"total"`
	WithValue int `json:"withValue"`
	Missing   int `json:"missing"`
}

// PagePreview is the change-set of one page in a multi-page scan.
type PagePreview struct {
	PageName    string         `json:"pageName"`
	Changes     []ChangeRecord `json:"changes"`
	MissingKeys []string       `json:"missingKeys"`
	Stats       PageStats      `json:"stats"`
}

// ScanSummary aggregates a multi-page scan.
type ScanSummary struct {
	TotalPages     int      `json:"totalPages"`
	TotalElements  int      `json:"totalElements"`
	TotalWithValue int      `json:"totalWithValue"`
	TotalMissing   int      `json:"totalMissing"`
	UnusedKeys     []string `json:"unusedKeys"`
}

// MultiScanResult is returned by ScanAllPages.
type MultiScanResult struct {
	PagesPreviews []PagePreview `json:"pagesPreviews"`
	Summary       ScanSummary   `json:"summary"`
	Cancelled     bool          `json:"cancelled,omitempty"`
}

// DeploySummary aggregates a multi-page deployment.
type DeploySummary struct {
	TotalPages   int `json:"totalPages"`
	SuccessPages int `json:"successPages"`
	TotalApplied int `json:"totalApplied"`
	TotalFailed  int `json:"totalFailed"`
	TotalMissing int `json:"totalMissing"`
}

// MultiDeployResult is returned by DeployToAllPages.
type MultiDeployResult struct {
	Reports   []DeploymentReport `json:"reports"`
	Summary   DeploySummary      `json:"summary"`
	Cancelled bool               `json:"cancelled,omitempty"`
}

// Mode is the targeting intent of a run.
type Mode int

const (
	SinglePage Mode = iota
	MultiPage
)

func (m Mode) String() string {
	if m == MultiPage {
		return "multi-page"
	}
	return "single-page"
}

// Preview is the result of Session.Scan. Exactly one of Single and Multi is
// set, according to Mode.
type Preview struct {
	Mode   Mode
	Single *PreviewResult
	Multi  *MultiScanResult
}

// ApplicableChanges counts the changes that an apply pass would write.
func (p *Preview) ApplicableChanges() int {
	if p == nil {
		return 0
	}
	if p.Mode == MultiPage {
		if p.Multi == nil {
			return 0
		}
		return p.Multi.Summary.TotalWithValue
	}
	if p.Single == nil {
		return 0
	}
	n := 0
	for _, c := range p.Single.Changes {
		if c.HasValue {
			n++
		}
	}
	return n
}

// UnusedKeys returns the content keys not matched by any scanned element.
func (p *Preview) UnusedKeys() []string {
	if p == nil {
		return nil
	}
	if p.Mode == MultiPage && p.Multi != nil {
		return p.Multi.Summary.UnusedKeys
	}
	if p.Single != nil {
		return p.Single.UnusedKeys
	}
	return nil
}
