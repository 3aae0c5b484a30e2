package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/Joseda-hg/lazytracker/internal/model"
	"github.com/Joseda-hg/lazytracker/internal/web"
)

const timeLayout = "2006-01-02 15:04"

func writeJSON(w io.Writer, value any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(value)
}

// writeEntities prints one row per entity, or a JSON array using the
// payload shape of the web API.
func writeEntities(w io.Writer, format string, values []model.Entity) error {
	if format == "json" {
		payloads := make([]web.EntityPayload, 0, len(values))
		for _, value := range values {
			payloads = append(payloads, web.NewPayload(value))
		}
		return writeJSON(w, payloads)
	}

	if len(values) == 0 {
		_, err := fmt.Fprintln(w, "nothing here yet")
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tKIND\tSTATUS\tNAME\tSTART\tDURATION")
	for _, value := range values {
		task := value.Common()
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\n",
			task.ID,
			strings.ToLower(string(value.Kind())),
			task.Status,
			task.Name,
			formatTime(task.StartTime),
			formatMinutes(task.Duration),
		)
	}
	return tw.Flush()
}

func writeEntity(w io.Writer, format string, entity model.Entity) error {
	if format == "json" {
		return writeJSON(w, web.NewPayload(entity))
	}

	payload := web.NewPayload(entity)
	tw := tabwriter.NewWriter(w, 0, 4, 1, ' ', 0)
	fmt.Fprintf(tw, "%s #%d\t%s\n", strings.ToLower(string(payload.Kind)), payload.ID, payload.Name)
	fmt.Fprintf(tw, "status:\t%s\n", payload.Status)
	fmt.Fprintf(tw, "duration:\t%dm\n", payload.DurationMinutes)
	fmt.Fprintf(tw, "start:\t%s\n", formatTime(payload.StartTime))
	fmt.Fprintf(tw, "end:\t%s\n", formatTime(payload.EndTime))
	if payload.EpicID != 0 {
		fmt.Fprintf(tw, "epic:\t#%d\n", payload.EpicID)
	}
	if entity.Kind() == model.KindEpic {
		ids := make([]string, 0, len(payload.SubtaskIDs))
		for _, id := range payload.SubtaskIDs {
			ids = append(ids, fmt.Sprintf("#%d", id))
		}
		fmt.Fprintf(tw, "subtasks:\t%s\n", valueOr(strings.Join(ids, " "), "none"))
	}
	if payload.Description != "" {
		fmt.Fprintf(tw, "description:\t%s\n", payload.Description)
	}
	return tw.Flush()
}

func formatTime(value *time.Time) string {
	if value == nil {
		return "-"
	}
	return value.Format(timeLayout)
}

func formatMinutes(duration time.Duration) string {
	return fmt.Sprintf("%dm", int64(duration/time.Minute))
}

func valueOr(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}
