package entity

// UserState состояние пользователя в диалоге
type UserState string

const (
	StateMainMenu      UserState = "main_menu"      // В главном меню
	StateAwaitingImage UserState = "awaiting_image" // Ожидание снимка
	StateProcessing    UserState = "processing"     // Обработка снимка
)

// User представляет пользователя бота
type User struct {
	ID        int64     // Telegram User ID
	ChatID    int64     // Telegram Chat ID
	State     UserState // Текущее состояние пользователя
	ImageType ImageType // Тип снимков, которые присылает пользователь
}

// NewUser создаёт нового пользователя с начальным состоянием
func NewUser(userID, chatID int64) *User {
	return &User{
		ID:        userID,
		ChatID:    chatID,
		State:     StateMainMenu,
		ImageType: ImageTypePlanet,
	}
}

// SetState обновляет состояние пользователя
func (u *User) SetState(state UserState) {
	u.State = state
}

// SetImageType обновляет тип снимков пользователя
func (u *User) SetImageType(it ImageType) {
	u.ImageType = it
}
