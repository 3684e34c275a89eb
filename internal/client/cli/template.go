package cli

const statusTemplate = `=== Sync Status ===

Device:        {{.DeviceID}}
State:         {{.Status.State}}
Version:       {{.Status.Version}}
Last synced:   {{if .Status.LastSyncedAt.IsZero}}never{{else}}{{.Status.LastSyncedAt.Format "2006-01-02T15:04:05Z07:00"}}{{end}}
Pending ops:   {{.Status.PendingOperationCount}}
Dead letters:  {{.Status.DeadLetterCount}}
{{- if .Status.LastError}}
Last error:    {{.Status.LastError}}
{{- end}}
{{- if .Status.NextRetryIn}}
Next retry in: {{.Status.NextRetryIn}}
{{- end}}
{{- if .Conflicts}}

Recent conflicts ({{.ConflictTotal}} total):
{{- range .Conflicts}}
  {{.ResolvedAt.Format "2006-01-02T15:04:05Z07:00"}}  {{.Path}}  {{.Resolution}}
{{- end}}
{{- end}}
`

const deadLetterTemplate = `{{range .}}#{{.Seq}}  {{.Type}} {{.TargetFragment}}{{if .EntityID}}/{{.EntityID}}{{end}}  retries={{.RetryCount}}
{{- if .LastError}}
    last error: {{.LastError}}
{{- end}}
{{end}}`
