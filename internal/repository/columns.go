// Package repository implements data persistence using PostgreSQL.
// This file centralizes column lists to prevent drift between queries and
// the schema in migrations.
package repository

import (
	"strings"
)

// Table column definitions - these must match the database schema exactly.
// When adding/removing columns, update these definitions and all relevant queries will use them.

// CallRecordColumns defines the columns for the call_records table.
var CallRecordColumns = TableColumns{
	TableName: "call_records",
	Columns: []string{
		"id",
		"provider_call_id",
		"direction",
		"phone_number",
		"campaign",
		"started_at",
		"ended_at",
		"duration_seconds",
		"final_stage",
		"end_reason",
		"outcome",
		"score",
		"summary",
		"transcript",
		"meeting_scheduled",
		"positive_signals",
		"objection_count",
		"created_at",
		"updated_at",
	},
}

// ResponseTemplateColumns defines the columns for the response_templates table.
var ResponseTemplateColumns = TableColumns{
	TableName: "response_templates",
	Columns: []string{
		"id",
		"stage",
		"sub_category",
		"situation",
		"text",
		"alternative_1",
		"alternative_2",
		"strategy",
		"tone",
		"urgency_level",
		"expected_reply",
		"next_step",
		"times_used",
		"times_led_to_meeting",
		"success_rate",
		"conversion_rate",
		"last_used_at",
	},
}

// RedirectTemplateColumns defines the columns for the redirect_templates table.
var RedirectTemplateColumns = TableColumns{
	TableName: "redirect_templates",
	Columns: []string{
		"id",
		"category",
		"acknowledgment",
		"redirect_direct",
		"redirect_soft",
		"times_used",
		"times_successful",
		"success_rate",
	},
}

// TopicColumns defines the columns for the allowed_topics table.
var TopicColumns = TableColumns{
	TableName: "allowed_topics",
	Columns: []string{
		"id",
		"name",
		"category",
		"keywords",
		"priority",
		"is_core",
	},
}

// FillerColumns defines the columns for the filler_phrases table.
var FillerColumns = TableColumns{
	TableName: "filler_phrases",
	Columns: []string{
		"id",
		"type",
		"phrase",
		"frequency",
		"natural_score",
	},
}

// PatternColumns defines the columns for the learned_patterns table.
var PatternColumns = TableColumns{
	TableName: "learned_patterns",
	Columns: []string{
		"id",
		"kind",
		"phrase",
		"stage",
		"score",
		"source_call",
		"created_at",
	},
}

// TableColumns provides helper methods for generating SQL fragments.
type TableColumns struct {
	TableName string
	Columns   []string
}

// Select returns a comma-separated list of columns for SELECT queries.
// Example: "id, kind, phrase, created_at"
func (tc TableColumns) Select() string {
	return strings.Join(tc.Columns, ", ")
}

// SelectPrefixed returns columns prefixed with table name for joins.
// Example: "call_records.id, call_records.outcome"
func (tc TableColumns) SelectPrefixed() string {
	prefixed := make([]string, len(tc.Columns))
	for i, col := range tc.Columns {
		prefixed[i] = tc.TableName + "." + col
	}
	return strings.Join(prefixed, ", ")
}

// SelectAliased returns columns aliased with a prefix for disambiguating joins.
// Example: SelectAliased("cr") gives "call_records.id AS cr_id, ..."
func (tc TableColumns) SelectAliased(alias string) string {
	aliased := make([]string, len(tc.Columns))
	for i, col := range tc.Columns {
		aliased[i] = tc.TableName + "." + col + " AS " + alias + "_" + col
	}
	return strings.Join(aliased, ", ")
}

// Placeholders returns numbered placeholders for the columns.
// Example: "$1, $2, $3, $4" for 4 columns
func (tc TableColumns) Placeholders() string {
	placeholders := make([]string, len(tc.Columns))
	for i := range tc.Columns {
		placeholders[i] = "$" + itoa(i+1)
	}
	return strings.Join(placeholders, ", ")
}

// PlaceholdersFrom returns numbered placeholders starting from a given number.
// Example: PlaceholdersFrom(3) for 4 columns returns "$3, $4, $5, $6"
func (tc TableColumns) PlaceholdersFrom(start int) string {
	placeholders := make([]string, len(tc.Columns))
	for i := range tc.Columns {
		placeholders[i] = "$" + itoa(start+i)
	}
	return strings.Join(placeholders, ", ")
}

// UpdateSet returns the SET clause for UPDATE queries (excluding first column, assumed to be id).
// Example: "phrase = $2, score = $3, created_at = $4"
func (tc TableColumns) UpdateSet() string {
	if len(tc.Columns) <= 1 {
		return ""
	}
	parts := make([]string, len(tc.Columns)-1)
	for i := 1; i < len(tc.Columns); i++ {
		parts[i-1] = tc.Columns[i] + " = $" + itoa(i+1)
	}
	return strings.Join(parts, ", ")
}

// UpdateSetFrom returns the SET clause with placeholders starting at a given
// number, for queries that bind other parameters first.
func (tc TableColumns) UpdateSetFrom(start int) string {
	if len(tc.Columns) <= 1 {
		return ""
	}
	parts := make([]string, len(tc.Columns)-1)
	for i := 1; i < len(tc.Columns); i++ {
		parts[i-1] = tc.Columns[i] + " = $" + itoa(start+i-1)
	}
	return strings.Join(parts, ", ")
}

// InsertColumns returns a comma-separated list of columns for INSERT queries.
// Same as Select() but explicitly named for clarity.
func (tc TableColumns) InsertColumns() string {
	return tc.Select()
}

// Count returns the number of columns.
func (tc TableColumns) Count() int {
	return len(tc.Columns)
}

// Without returns a new TableColumns excluding the specified columns.
func (tc TableColumns) Without(exclude ...string) TableColumns {
	excludeMap := make(map[string]bool, len(exclude))
	for _, col := range exclude {
		excludeMap[col] = true
	}

	filtered := make([]string, 0, len(tc.Columns))
	for _, col := range tc.Columns {
		if !excludeMap[col] {
			filtered = append(filtered, col)
		}
	}

	return TableColumns{
		TableName: tc.TableName,
		Columns:   filtered,
	}
}

// Only returns a new TableColumns restricted to the specified columns,
// preserving the original column order.
func (tc TableColumns) Only(include ...string) TableColumns {
	includeMap := make(map[string]bool, len(include))
	for _, col := range include {
		includeMap[col] = true
	}

	filtered := make([]string, 0, len(include))
	for _, col := range tc.Columns {
		if includeMap[col] {
			filtered = append(filtered, col)
		}
	}

	return TableColumns{
		TableName: tc.TableName,
		Columns:   filtered,
	}
}

// itoa converts an integer to a string without importing strconv.
func itoa(i int) string {
	if i == 0 {
		return "0"
	}
	if i < 0 {
		return "-" + itoa(-i)
	}

	var result []byte
	for i > 0 {
		result = append([]byte{byte('0' + i%10)}, result...)
		i /= 10
	}
	return string(result)
}
