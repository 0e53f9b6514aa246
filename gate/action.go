package gate

// Action describes the kind of operation a subject wants to perform.
type Action string

const (
	ActionView   Action = "view"
	ActionList   Action = "list"
	ActionUpdate Action = "update"
	ActionAgree  Action = "agree"
	ActionUpload Action = "upload"
	ActionReview Action = "review"
	ActionExport Action = "export"
)
