package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/pribylovaa/go-session-client/internal/service"
	"github.com/pribylovaa/go-session-client/internal/session"
)

// Handlers агрегирует зависимости: сервис учётной записи и его сессию.
type Handlers struct {
	Svc  *service.Service
	Sess *session.Session
}

func New(svc *service.Service) *Handlers {
	return &Handlers{Svc: svc, Sess: svc.Session()}
}

// writeJSON — единый ответ JSON с нужным Content-Type.
// Ошибки выводим через apierrors.WriteError.
func writeJSON(w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(value)
}

// decodeStrict — строгий JSON-декодер: запрещаем неизвестные поля.
func decodeStrict(r *http.Request, value any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(value)
}
