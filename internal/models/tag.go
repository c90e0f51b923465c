package models

// Tag slugs owned by the engine.
const (
	TagMaintenanceDue     = "maintenance-due"
	TagMaintenanceOverdue = "maintenance-overdue"
)

// Tag is a reusable label definition.
type Tag struct {
	ID    int64  `json:"id"`
	Slug  string `json:"slug"`
	Name  string `json:"name"`
	Color string `json:"color"`
	Icon  string `json:"icon"`
}

// EngineTags are the definitions upserted at start-up.
var EngineTags = []Tag{
	{Slug: TagMaintenanceDue, Name: "Maintenance due", Color: "#f59e0b", Icon: "wrench"},
	{Slug: TagMaintenanceOverdue, Name: "Maintenance overdue", Color: "#dc2626", Icon: "alert-triangle"},
}
