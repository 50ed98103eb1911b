package transfer

type PostCreation struct {
	Content     string `json:"content"`
	ScheduledAt string `json:"scheduled_at"` // "2006-01-02T15:04", empty = post now
	XAccountID  int64  `json:"x_account_id"`
}

type ScheduleCreation struct {
	Content    string `json:"content"`
	UseAI      bool   `json:"use_ai"`
	AIPrompt   string `json:"ai_prompt"`
	AILanguage string `json:"ai_language"`
	XAccountID int64  `json:"x_account_id"`
	Frequency  string `json:"frequency"`
	CronExpr   string `json:"cron_expr"`
}
