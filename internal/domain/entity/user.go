package entity

// UserState состояние пользователя в диалоге
type UserState string

const (
	StateMainMenu       UserState = "main_menu"       // В главном меню
	StateAwaitingLeft   UserState = "awaiting_left"   // Ожидание левого кадра
	StateAwaitingCenter UserState = "awaiting_center" // Ожидание центрального кадра
	StateAwaitingRight  UserState = "awaiting_right"  // Ожидание правого кадра
	StateProcessing     UserState = "processing"      // Сборка панорамы
)

// User представляет пользователя бота
type User struct {
	ID     int64     // Telegram User ID
	ChatID int64     // Telegram Chat ID
	State  UserState // Текущее состояние пользователя
}

// NewUser создаёт нового пользователя с начальным состоянием
func NewUser(userID, chatID int64) *User {
	return &User{
		ID:     userID,
		ChatID: chatID,
		State:  StateMainMenu,
	}
}

// SetState обновляет состояние пользователя
func (u *User) SetState(state UserState) {
	u.State = state
}

// AwaitingPhoto сообщает, ждёт ли бот от пользователя кадр панорамы.
func (u *User) AwaitingPhoto() bool {
	switch u.State {
	case StateAwaitingLeft, StateAwaitingCenter, StateAwaitingRight:
		return true
	}
	return false
}

// NextPhotoState возвращает состояние после приёма очередного кадра.
func (u *User) NextPhotoState() UserState {
	switch u.State {
	case StateAwaitingLeft:
		return StateAwaitingCenter
	case StateAwaitingCenter:
		return StateAwaitingRight
	case StateAwaitingRight:
		return StateProcessing
	default:
		return u.State
	}
}

// PhotoIndex возвращает индекс ожидаемого кадра (0 — левый) или -1.
func (u *User) PhotoIndex() int {
	switch u.State {
	case StateAwaitingLeft:
		return 0
	case StateAwaitingCenter:
		return 1
	case StateAwaitingRight:
		return 2
	default:
		return -1
	}
}
