package catalogsync

const (
	WorkflowName       = "catalog_sync"
	ActivityImport     = "catalog_sync_import"
	ActivityTagMissing = "catalog_sync_tag_missing"
	ActivityEmbed      = "catalog_sync_embed_missing"

	// ScheduleID is the workflow id of the cron schedule, so at most one runs.
	ScheduleID = "catalog-sync-cron"

	// MaxAttempts bounds retries of every sync activity.
	MaxAttempts = 3
)

type Input struct {
	Prune bool `json:"prune"`
	// SkipTagging and SkipEmbedding leave untagged or unembedded rows for a
	// later run.
	SkipTagging   bool `json:"skip_tagging,omitempty"`
	SkipEmbedding bool `json:"skip_embedding,omitempty"`
	// Limit caps rows tagged and embedded per run; 0 means all.
	Limit int `json:"limit,omitempty"`
}

type Result struct {
	Fetched  int   `json:"fetched"`
	Upserted int   `json:"upserted"`
	Skipped  int   `json:"skipped"`
	Pruned   int64 `json:"pruned"`
	Tagged   int   `json:"tagged"`
	Embedded int   `json:"embedded"`
	// Errors lists tagging and embedding failures that did not abort the run.
	Errors []string `json:"errors,omitempty"`
}
