package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"panelcast/internal/manifest"
	"panelcast/internal/stage"
)

const jobColumns = "id, fingerprint, title, source_path, page_start, page_end, normalize, forced, plan, stage, committed, progress_pct, error_message, manifest_json, created_at, updated_at, finished_at"

func scanJob(scanner interface{ Scan(dest ...any) error }) (*Job, error) {
	var (
		job          Job
		title        sql.NullString
		sourcePath   sql.NullString
		normalize    int
		forced       int
		plan         string
		stageName    string
		errorMessage sql.NullString
		manifestJSON sql.NullString
		createdRaw   string
		updatedRaw   string
		finishedRaw  sql.NullString
	)
	if err := scanner.Scan(
		&job.ID,
		&job.Fingerprint,
		&title,
		&sourcePath,
		&job.Pages.Start,
		&job.Pages.End,
		&normalize,
		&forced,
		&plan,
		&stageName,
		&job.Committed,
		&job.ProgressPct,
		&errorMessage,
		&manifestJSON,
		&createdRaw,
		&updatedRaw,
		&finishedRaw,
	); err != nil {
		return nil, err
	}

	job.Title = title.String
	job.SourcePath = sourcePath.String
	job.Normalize = normalize != 0
	job.Forced = forced != 0
	job.Stage = stage.Name(stageName)
	job.Error = errorMessage.String

	parsedPlan, err := decodePlan(plan)
	if err != nil {
		return nil, fmt.Errorf("job %s: %w", job.ID, err)
	}
	job.Plan = parsedPlan

	if manifestJSON.Valid && manifestJSON.String != "" {
		doc, err := decodeManifest(manifestJSON.String)
		if err != nil {
			return nil, fmt.Errorf("job %s: %w", job.ID, err)
		}
		job.Manifest = doc
	}
	if created, err := parseTimeString(createdRaw); err == nil {
		job.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw); err == nil {
		job.UpdatedAt = updated
	}
	if finishedRaw.Valid {
		if finished, err := parseTimeString(finishedRaw.String); err == nil {
			job.FinishedAt = &finished
		}
	}
	return &job, nil
}

func encodePlan(plan []stage.Name) string {
	parts := make([]string, len(plan))
	for i, name := range plan {
		parts[i] = string(name)
	}
	return strings.Join(parts, ",")
}

func decodePlan(raw string) ([]stage.Name, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	parts := strings.Split(raw, ",")
	plan := make([]stage.Name, 0, len(parts))
	for _, part := range parts {
		name, err := stage.ParseName(part)
		if err != nil {
			return nil, fmt.Errorf("decode plan: %w", err)
		}
		plan = append(plan, name)
	}
	return plan, nil
}

func encodeManifest(doc *manifest.Comic) (any, error) {
	if doc == nil {
		return nil, nil
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("encode manifest: %w", err)
	}
	return string(data), nil
}

func decodeManifest(raw string) (*manifest.Comic, error) {
	var doc manifest.Comic
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return nil, fmt.Errorf("decode manifest: %w", err)
	}
	return &doc, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	placeholders := make([]byte, 0, count*2)
	for i := 0; i < count; i++ {
		if i > 0 {
			placeholders = append(placeholders, ',')
		}
		placeholders = append(placeholders, '?')
	}
	return string(placeholders)
}
