package email

const (
	subjectAlertFmt = "[lead alert] %s: %s"
)
