package domain

type NoticeLevel string

const (
	NoticeInfo  NoticeLevel = "info"
	NoticeError NoticeLevel = "error"
)

// Notice is a message shown to the customer on the checkout screen.
type Notice struct {
	Level   NoticeLevel `json:"level"`
	Message string      `json:"message"`
}

func InfoNotice(msg string) Notice {
	return Notice{Level: NoticeInfo, Message: msg}
}

func ErrorNotice(msg string) Notice {
	return Notice{Level: NoticeError, Message: msg}
}

// IsZero reports whether there is nothing to show.
func (n Notice) IsZero() bool {
	return n.Message == ""
}
