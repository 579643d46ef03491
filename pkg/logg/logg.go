package logg

const (
	Layer     = "layer"
	Operation = "op"
	URL       = "url"
	Selector  = "selector"
	Action    = "action"
	TaskID    = "task_id"
	Scenario  = "scenario"
	Provider  = "provider"
	Tool      = "tool"
	Sheet     = "sheet"
)
