package slack

import "context"

// Service posts administrator reports to a Slack channel
type Service interface {
	// PostReport sends report as a single plain text message
	PostReport(ctx context.Context, report *Report) error
}

// Report is a titled list of user IDs split into sections
type Report struct {
	Title    string
	Sections []Section
}

// Section is one list of a report. Sections without items are not posted.
type Section struct {
	Heading string
	Items   []string
}
