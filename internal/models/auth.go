// Входные/выходные модели REST API бэкенда авторизации.
package models

// LoginRequest — тело POST /auth/login. Бэкенд следует OAuth2 и ждёт e-mail в поле username.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type RegisterRequest struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	FullName    string `json:"full_name,omitempty"`
	CompanyName string `json:"company_name,omitempty"`
}

// RefreshRequest — тело POST /auth/refresh.
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// RefreshResponse — ответ /auth/refresh. Сервер может вернуть и новый
// refresh_token, клиент его не использует.
type RefreshResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
	TokenType    string `json:"token_type,omitempty"`
}

// AuthResponse — ответ /auth/login и /auth/register.
type AuthResponse struct {
	AccessToken  string  `json:"access_token"`
	RefreshToken string  `json:"refresh_token"`
	TokenType    string  `json:"token_type"`
	User         Profile `json:"user,omitempty"`
}

// SessionStatus — состояние локальной сессии (GET /session шлюза, `sessionctl status`).
type SessionStatus struct {
	Authenticated bool    `json:"authenticated"`
	ExpiresAt     int64   `json:"expires_at,omitempty"` // Unix UTC, 0 — claim exp отсутствует
	Profile       Profile `json:"profile,omitempty"`
}
