package enum

// NotificationView is what a notification message currently displays.
type NotificationView string

const (
	ViewHeader   NotificationView = "header"
	ViewPreview  NotificationView = "preview"
	ViewSummary  NotificationView = "summary"
	ViewFullText NotificationView = "text"
	ViewOnline   NotificationView = "online"
	ViewDeleted  NotificationView = "deleted"
	ViewNotFound NotificationView = "not_found"
)

func (v NotificationView) String() string {
	return string(v)
}

// CallbackAction is the prefix of an inline button token "action:target".
type CallbackAction string

const (
	ActionBack        CallbackAction = "back"
	ActionPreview     CallbackAction = "preview"
	ActionSummary     CallbackAction = "summary"
	ActionText        CallbackAction = "text"
	ActionHTML        CallbackAction = "html"
	ActionDelete      CallbackAction = "del"
	ActionBlock       CallbackAction = "blk"
	ActionWhitelist   CallbackAction = "wht"
	ActionUnblockList CallbackAction = "unblock_list"
)

func (a CallbackAction) String() string {
	return string(a)
}

// View returns the view an action renders, ok=false for actions that leave the view as is.
func (a CallbackAction) View() (NotificationView, bool) {
	switch a {
	case ActionBack:
		return ViewHeader, true
	case ActionPreview:
		return ViewPreview, true
	case ActionSummary:
		return ViewSummary, true
	case ActionText:
		return ViewFullText, true
	case ActionHTML:
		return ViewOnline, true
	case ActionDelete:
		return ViewDeleted, true
	default:
		return "", false
	}
}
