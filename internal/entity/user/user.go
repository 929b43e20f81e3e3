package user

// Identity is the sender metadata Telegram attaches to every update.
type Identity struct {
	TelegramID int64
	FirstName  string
	LastName   string
	UserName   string
}

func (i Identity) DisplayName() string {
	if i.FirstName != "" {
		return i.FirstName
	}
	if i.UserName != "" {
		return i.UserName
	}
	return "kamu"
}
