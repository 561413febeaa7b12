package models

import "encoding/json"

// Credentials — пара токенов одной пользовательской сессии.
//
// Описание:
//   - AccessToken — короткоживущий подписанный токен (JWT) с claim exp;
//   - RefreshToken — непрозрачная строка, срок действия клиенту не виден.
type Credentials struct {
	// AccessToken — токен для заголовка Authorization: Bearer.
	AccessToken string
	// RefreshToken — секрет для выпуска нового access-токена.
	RefreshToken string
}

// Profile — кэшированные, неавторитетные атрибуты пользователя
// (например, is_admin). Хранится сериализованным в JSON вместе с парой токенов
// и не меняется до следующего входа.
type Profile map[string]any

// IsAdmin сообщает значение флага is_admin (false, если его нет или тип не bool).
func (p Profile) IsAdmin() bool {
	v, _ := p["is_admin"].(bool)
	return v
}

// Email возвращает e-mail пользователя, если он есть в профиле.
func (p Profile) Email() string {
	v, _ := p["email"].(string)
	return v
}

// UserID возвращает идентификатор пользователя, если он есть в профиле.
func (p Profile) UserID() string {
	v, _ := p["id"].(string)
	return v
}

// MarshalProfile сериализует профиль для хранилища.
func MarshalProfile(p Profile) (string, error) {
	b, err := json.Marshal(p)
	if err != nil {
		return "", err
	}

	return string(b), nil
}

// UnmarshalProfile восстанавливает профиль из хранилища.
func UnmarshalProfile(s string) (Profile, error) {
	var p Profile
	if err := json.Unmarshal([]byte(s), &p); err != nil {
		return nil, err
	}

	return p, nil
}
