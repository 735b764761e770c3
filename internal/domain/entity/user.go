package entity

// UserState состояние пользователя в диалоге
type UserState string

const (
	StateMainMenu     UserState = "main_menu"     // В главном меню
	StateAwaitingScan UserState = "awaiting_scan" // Ожидание снимка МРТ
	StateProcessing   UserState = "processing"    // Обработка снимка
)

// User представляет пользователя бота
type User struct {
	ID     int64     // Telegram User ID
	ChatID int64     // Telegram Chat ID
	State  UserState // Текущее состояние пользователя
	Model  ModelID   // Выбранный классификатор
}

// NewUser создаёт нового пользователя с начальным состоянием
func NewUser(userID, chatID int64, model ModelID) *User {
	return &User{
		ID:     userID,
		ChatID: chatID,
		State:  StateMainMenu,
		Model:  model,
	}
}

// SetState обновляет состояние пользователя
func (u *User) SetState(state UserState) {
	u.State = state
}

// SetModel меняет выбранный классификатор
func (u *User) SetModel(model ModelID) {
	u.Model = model
}
