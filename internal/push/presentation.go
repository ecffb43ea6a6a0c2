package push

// Presentation controls how a notification type is shown to the user.
type Presentation struct {
	Icon  string
	Label string
	Level string
}

// presentations maps notification types to their look. Unknown types fall
// back to the generic entry so a new server-side type never breaks display.
var presentations = map[string]Presentation{
	"TASK_ASSIGNED":  {Icon: "📌", Label: "Task assigned", Level: "info"},
	"TASK_UPDATED":   {Icon: "✏️", Label: "Task updated", Level: "info"},
	"TASK_COMPLETED": {Icon: "✅", Label: "Task completed", Level: "info"},
	"TASK_OVERDUE":   {Icon: "⏰", Label: "Task overdue", Level: "warn"},
}

var genericPresentation = Presentation{Icon: "🔔", Label: "Notification", Level: "info"}

// PresentationFor returns the presentation for a notification type.
func PresentationFor(typ string) Presentation {
	if p, ok := presentations[typ]; ok {
		return p
	}
	return genericPresentation
}
