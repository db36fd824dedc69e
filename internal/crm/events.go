package crm

import (
	"fmt"
	"strings"
	"time"
)

// ProspectEvent is one entry of a prospect's activity history. The
// history replaces a mutable free-text description field: rows are only
// ever appended (or re-pointed during consolidation), and the
// human-readable narrative is rendered from them on demand.
type ProspectEvent struct {
	Seq        int64     `json:"seq" db:"seq"`
	ProspectID string    `json:"prospect_id" db:"prospect_id"`
	Type       string    `json:"type" db:"event_type"`
	Body       string    `json:"body" db:"body"`
	OccurredAt time.Time `json:"occurred_at" db:"occurred_at"`
}

// EventMerge marks the point where a duplicate record was folded into
// this one. It is the visible merge marker in the rendered description.
const EventMerge = "merge"

// RenderDescription renders the dated narrative for a prospect from its
// event history. Events are expected in (occurred_at, seq) order, which
// is what Store.ListEvents returns.
func RenderDescription(events []ProspectEvent) string {
	var b strings.Builder
	for i, ev := range events {
		if i > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "[%s] %s: %s", ev.OccurredAt.Format("2006-01-02"), ev.Type, ev.Body)
	}
	return b.String()
}
