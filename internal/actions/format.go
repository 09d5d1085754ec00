package actions

import (
	"fmt"
	"strings"
)

// Format renders a batch outcome as a single human-readable sentence. Pure;
// calling it twice on the same result yields the same string.
func Format(br BatchResult) string {
	total := br.Summary.Total
	if total == 0 {
		return "No actions to perform."
	}
	succeeded := br.Summary.Succeeded
	if succeeded == total {
		if total == 1 {
			return formatSingle(br.Results[0])
		}
		return formatAllSucceeded(br.Results)
	}
	if succeeded == 0 {
		return br.Results[0].Error
	}
	var errs []string
	for _, r := range br.Results {
		if !r.Success {
			errs = append(errs, r.Error)
		}
	}
	return fmt.Sprintf("Completed %d of %d actions. %d failed: %s",
		succeeded, total, br.Summary.Failed, strings.Join(errs, ", "))
}

func formatSingle(r Result) string {
	switch r.ActionType {
	case TypeCreateTask:
		return fmt.Sprintf("Created task %q.", dataString(r, "title"))
	case TypeUpdateTask:
		return fmt.Sprintf("Updated task %q.", dataString(r, "title"))
	case TypeDeleteTask:
		return fmt.Sprintf("Deleted task %q.", dataString(r, "title"))
	case TypeDeleteAllTasks:
		return fmt.Sprintf("Deleted %d tasks.", dataInt(r, "deletedCount"))
	case TypeCreateGoal:
		return fmt.Sprintf("Created goal %q.", dataString(r, "title"))
	case TypeUpdateGoal:
		return fmt.Sprintf("Updated goal %q.", dataString(r, "title"))
	case TypeDeleteGoal:
		return fmt.Sprintf("Deleted goal %q.", dataString(r, "title"))
	case TypeDeleteAllGoals:
		return fmt.Sprintf("Deleted %d goals.", dataInt(r, "deletedCount"))
	case TypeSyncCalendarEvent:
		return fmt.Sprintf("Synced %q to your calendar.", dataString(r, "taskTitle"))
	case TypeSyncBulkCalendar:
		if failed := dataInt(r, "failed"); failed > 0 {
			return fmt.Sprintf("Synced %d tasks to your calendar, %d failed.", dataInt(r, "success"), failed)
		}
		return fmt.Sprintf("Synced %d tasks to your calendar.", dataInt(r, "success"))
	}
	return "Done."
}

func formatAllSucceeded(results []Result) string {
	allBulkDelete := true
	tasks, goals := 0, 0
	for _, r := range results {
		switch r.ActionType {
		case TypeDeleteAllTasks:
			tasks += dataInt(r, "deletedCount")
		case TypeDeleteAllGoals:
			goals += dataInt(r, "deletedCount")
		default:
			allBulkDelete = false
		}
	}
	if allBulkDelete {
		return fmt.Sprintf("Deleted %d tasks and %d goals.", tasks, goals)
	}
	return fmt.Sprintf("Completed all %d actions.", len(results))
}

func dataString(r Result, key string) string {
	if r.Data == nil {
		return ""
	}
	s, _ := r.Data[key].(string)
	return s
}

func dataInt(r Result, key string) int {
	if r.Data == nil {
		return 0
	}
	return asInt(r.Data[key])
}
