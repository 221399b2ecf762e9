package domain

// QuotaStatus reports a credential's position inside its rate window.
type QuotaStatus struct {
	Credential  string
	RecentCalls int
	MaxAllowed  int
	Remaining   int
	Available   bool
}
